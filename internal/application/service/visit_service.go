package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/afyacare/clinic-api/internal/domain/entity"
	"github.com/afyacare/clinic-api/internal/domain/enum"
	"github.com/afyacare/clinic-api/internal/domain/event"
	"github.com/afyacare/clinic-api/internal/domain/repository"
	"github.com/afyacare/clinic-api/internal/domain/workflow"
	"github.com/afyacare/clinic-api/pkg/apperror"
)

// InvoiceComposer builds the invoice when a visit enters the Billing stage.
// Implemented by BillingService; injected after construction to break the
// mutual dependency between the two services.
type InvoiceComposer interface {
	ComposeInvoice(ctx context.Context, visitID, actor uuid.UUID) (*entity.Invoice, error)
}

// VisitService drives the visit workflow engine
type VisitService struct {
	visitRepo        repository.VisitRepository
	patientRepo      repository.PatientRepository
	prescriptionRepo repository.PrescriptionRepository
	labOrderRepo     repository.LabOrderRepository
	publisher        event.Publisher
	composer         InvoiceComposer
	log              zerolog.Logger
}

// NewVisitService creates a new visit service
func NewVisitService(
	visitRepo repository.VisitRepository,
	patientRepo repository.PatientRepository,
	prescriptionRepo repository.PrescriptionRepository,
	labOrderRepo repository.LabOrderRepository,
	publisher event.Publisher,
	log zerolog.Logger,
) *VisitService {
	return &VisitService{
		visitRepo:        visitRepo,
		patientRepo:      patientRepo,
		prescriptionRepo: prescriptionRepo,
		labOrderRepo:     labOrderRepo,
		publisher:        publisher,
		log:              log,
	}
}

// SetInvoiceComposer wires the billing collaborator
func (s *VisitService) SetInvoiceComposer(composer InvoiceComposer) {
	s.composer = composer
}

// CheckInInput represents the check-in input
type CheckInInput struct {
	PatientID   uuid.UUID
	CheckedInBy uuid.UUID
}

// CheckIn opens a new Active visit at the Reception stage. A patient can
// have at most one Active visit at a time.
func (s *VisitService) CheckIn(ctx context.Context, input *CheckInInput) (*entity.Visit, error) {
	patient, err := s.patientRepo.GetByID(ctx, input.PatientID)
	if err != nil {
		return nil, err
	}
	if patient == nil {
		return nil, apperror.NewNotFoundError("Patient")
	}

	active, err := s.visitRepo.GetActiveByPatient(ctx, input.PatientID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, apperror.ErrVisitAlreadyActive
	}

	visit := &entity.Visit{
		PatientID:    input.PatientID,
		CurrentStage: enum.StageReception,
		Status:       enum.VisitStatusActive,
		CheckedInBy:  input.CheckedInBy,
	}

	stages := []entity.VisitStage{
		{Stage: enum.StageReception, Status: enum.StageStatusInProgress},
		{Stage: enum.StageNurse},
		{Stage: enum.StageDoctor},
		{Stage: enum.StageLab},
		{Stage: enum.StagePharmacy},
		{Stage: enum.StageBilling},
	}

	if err := s.visitRepo.Create(ctx, visit, stages); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("visit_id", visit.ID.String()).
		Str("patient_id", input.PatientID.String()).
		Msg("visit checked in")

	return visit, nil
}

// PrescriptionInput is one prescription written at the Doctor stage
type PrescriptionInput struct {
	MedicationID uuid.UUID
	Quantity     int
	Dosage       string
}

// LabOrderInput is one test ordered at the Doctor stage
type LabOrderInput struct {
	TestName string
	Price    int64 // cents
}

// CompleteStageInput represents a stage completion request
type CompleteStageInput struct {
	VisitID   uuid.UUID
	Stage     enum.VisitStage
	ActorID   uuid.UUID
	ActorRole enum.StaffRole
	Notes     string

	// Stage payloads; each is consumed only at its owning stage
	Vitals        *entity.Vitals      // Nurse
	Diagnosis     string              // Doctor
	Prescriptions []PrescriptionInput // Doctor
	LabOrders     []LabOrderInput     // Doctor
}

// CompleteStage completes the visit's current stage and advances it along
// the stage graph. The write is an optimistic version check: when another
// actor advanced the visit in between, the transition is re-validated
// against fresh state and retried once before surfacing the conflict.
func (s *VisitService) CompleteStage(ctx context.Context, input *CompleteStageInput) (*entity.Visit, error) {
	visit, err := s.completeStageAttempt(ctx, input)
	if err == nil || !apperror.IsConcurrentModification(err) {
		return visit, err
	}

	// One retry against re-read state
	visit, err = s.completeStageAttempt(ctx, input)
	if err != nil && apperror.IsConcurrentModification(err) {
		return nil, apperror.ErrConcurrentModification
	}
	return visit, err
}

func (s *VisitService) completeStageAttempt(ctx context.Context, input *CompleteStageInput) (*entity.Visit, error) {
	visit, err := s.visitRepo.GetWithStages(ctx, input.VisitID)
	if err != nil {
		return nil, err
	}
	if visit == nil {
		return nil, apperror.NewNotFoundError("Visit")
	}

	if input.Stage == enum.StageBilling {
		// Billing never completes by hand; reconciliation closes it when the
		// invoice reaches Paid
		return nil, apperror.NewStageGuardViolation("billing completes through payment reconciliation")
	}

	target, err := s.resolveTarget(ctx, visit, input)
	if err != nil {
		return nil, err
	}

	if err := s.applyPayload(visit, input); err != nil {
		return nil, err
	}

	now := time.Now()
	fromRecord := visit.StageRecord(input.Stage)
	if fromRecord == nil {
		return nil, apperror.NewStageGuardViolation("visit has no record for stage " + input.Stage.String())
	}
	fromRecord.Status = enum.StageStatusCompleted
	fromRecord.CompletedBy = &input.ActorID
	fromRecord.CompletedAt = &now
	if input.Notes != "" {
		fromRecord.Notes = input.Notes
	}

	if err := workflow.CanTransition(visit, input.Stage, target, input.ActorRole); err != nil {
		return nil, err
	}

	touched := []*entity.VisitStage{fromRecord}

	toRecord := visit.StageRecord(target)
	if toRecord != nil {
		if target == enum.StageDoctor && input.Stage == enum.StageLab {
			// Lab results re-open the Doctor stage for a final review
			toRecord.Status = enum.StageStatusInProgress
			toRecord.CompletedBy = nil
			toRecord.CompletedAt = nil
		} else {
			toRecord.Status = enum.StageStatusInProgress
		}
		touched = append(touched, toRecord)
	}

	// A visit skipping the Lab detour carries its Lab row as Skipped
	if input.Stage == enum.StageDoctor && target == enum.StagePharmacy {
		if labRecord := visit.StageRecord(enum.StageLab); labRecord != nil && labRecord.Status == enum.StageStatusPending {
			labRecord.Status = enum.StageStatusSkipped
			touched = append(touched, labRecord)
		}
	}

	expectedVersion := visit.Version
	visit.CurrentStage = target

	committed, err := s.visitRepo.CommitTransition(ctx, visit, expectedVersion, buildDoctorOrders(visit, input), touched...)
	if err != nil {
		return nil, err
	}
	if !committed {
		return nil, apperror.ErrConcurrentModification
	}

	if pubErr := s.publisher.PublishStageCompleted(ctx, event.StageCompleted{
		VisitID:     visit.ID,
		PatientID:   visit.PatientID,
		Stage:       input.Stage,
		NextStage:   target,
		CompletedBy: input.ActorID,
		CompletedAt: now,
	}); pubErr != nil {
		s.log.Warn().Err(pubErr).Str("visit_id", visit.ID.String()).Msg("stage completed event not published")
	}

	if target == enum.StageBilling && s.composer != nil {
		if _, composeErr := s.composer.ComposeInvoice(ctx, visit.ID, input.ActorID); composeErr != nil &&
			composeErr != apperror.ErrInvoiceAlreadyOpen {
			s.log.Warn().Err(composeErr).Str("visit_id", visit.ID.String()).Msg("invoice composition failed at billing entry")
		}
	}

	return visit, nil
}

// resolveTarget picks the next stage: the default forward edge, or the Lab
// detour when the doctor ordered tests
func (s *VisitService) resolveTarget(ctx context.Context, visit *entity.Visit, input *CompleteStageInput) (enum.VisitStage, error) {
	if input.Stage == enum.StageDoctor && len(input.LabOrders) > 0 {
		return enum.StageLab, nil
	}

	if input.Stage == enum.StageLab {
		outstanding, err := s.labOrderRepo.GetByVisitAndStatus(ctx, visit.ID, enum.LabOrderStatusOrdered)
		if err != nil {
			return 0, err
		}
		if len(outstanding) > 0 {
			return 0, apperror.NewStageGuardViolation("lab orders are still outstanding")
		}
		return enum.StageDoctor, nil
	}

	if input.Stage == enum.StagePharmacy {
		pending, err := s.prescriptionRepo.GetByVisitAndStatus(ctx, visit.ID, enum.PrescriptionStatusPending)
		if err != nil {
			return 0, err
		}
		if len(pending) > 0 {
			return 0, apperror.NewStageGuardViolation("undispensed prescriptions remain")
		}
	}

	target, ok := workflow.NextStage(input.Stage)
	if !ok {
		return 0, apperror.NewStageGuardViolation("stage " + input.Stage.String() + " has no next stage")
	}
	return target, nil
}

// applyPayload merges the stage-specific payload into the visit
func (s *VisitService) applyPayload(visit *entity.Visit, input *CompleteStageInput) error {
	switch input.Stage {
	case enum.StageNurse:
		if input.Vitals == nil {
			return apperror.NewBadRequestError("Vitals are required to complete the nurse stage")
		}
		if err := input.Vitals.Validate(); err != nil {
			return apperror.NewBadRequestError(err.Error())
		}
		visit.Vitals = input.Vitals
	case enum.StageDoctor:
		if input.Diagnosis != "" {
			visit.Diagnosis = input.Diagnosis
		}
		for _, p := range input.Prescriptions {
			if p.Quantity <= 0 {
				return apperror.NewBadRequestError("Prescription quantity must be positive")
			}
		}
		for _, l := range input.LabOrders {
			if l.TestName == "" {
				return apperror.NewBadRequestError("Lab order test name is required")
			}
		}
	}
	return nil
}

// buildDoctorOrders turns the Doctor-stage payload into rows that commit
// atomically with the transition
func buildDoctorOrders(visit *entity.Visit, input *CompleteStageInput) *entity.DoctorOrders {
	if input.Stage != enum.StageDoctor {
		return nil
	}

	orders := &entity.DoctorOrders{}
	for _, p := range input.Prescriptions {
		orders.Prescriptions = append(orders.Prescriptions, entity.Prescription{
			VisitID:      visit.ID,
			MedicationID: p.MedicationID,
			Quantity:     p.Quantity,
			Dosage:       p.Dosage,
			Status:       enum.PrescriptionStatusPending,
			PrescribedBy: input.ActorID,
		})
	}
	for _, l := range input.LabOrders {
		orders.LabOrders = append(orders.LabOrders, entity.LabOrder{
			VisitID:   visit.ID,
			TestName:  l.TestName,
			Price:     l.Price,
			Status:    enum.LabOrderStatusOrdered,
			OrderedBy: input.ActorID,
		})
	}
	return orders
}

// CompleteLabOrderInput represents a lab order completion
type CompleteLabOrderInput struct {
	OrderID   uuid.UUID
	Result    string
	ActorID   uuid.UUID
	ActorRole enum.StaffRole
}

// CompleteLabOrder records a test result. When it was the visit's last
// outstanding order and the visit sits at the Lab stage, the visit routes
// back to the Doctor stage for review.
func (s *VisitService) CompleteLabOrder(ctx context.Context, input *CompleteLabOrderInput) (*entity.LabOrder, error) {
	order, err := s.labOrderRepo.GetByID(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, apperror.NewNotFoundError("Lab order")
	}
	if order.Status != enum.LabOrderStatusOrdered {
		return nil, apperror.NewConflictError("Lab order is already resolved")
	}

	now := time.Now()
	order.Status = enum.LabOrderStatusCompleted
	order.Result = input.Result
	order.CompletedBy = &input.ActorID
	order.CompletedAt = &now

	if err := s.labOrderRepo.Update(ctx, order); err != nil {
		return nil, err
	}

	outstanding, err := s.labOrderRepo.GetByVisitAndStatus(ctx, order.VisitID, enum.LabOrderStatusOrdered)
	if err != nil {
		return nil, err
	}
	if len(outstanding) > 0 {
		return order, nil
	}

	visit, err := s.visitRepo.GetByID(ctx, order.VisitID)
	if err != nil {
		return nil, err
	}
	if visit == nil || visit.CurrentStage != enum.StageLab || visit.Status != enum.VisitStatusActive {
		return order, nil
	}

	_, err = s.CompleteStage(ctx, &CompleteStageInput{
		VisitID:   order.VisitID,
		Stage:     enum.StageLab,
		ActorID:   input.ActorID,
		ActorRole: input.ActorRole,
	})
	if err != nil {
		s.log.Warn().Err(err).
			Str("visit_id", order.VisitID.String()).
			Msg("lab stage did not advance after last order completed")
	}

	return order, nil
}

// CancelVisitInput represents a visit cancellation
type CancelVisitInput struct {
	VisitID uuid.UUID
	Reason  string
	ActorID uuid.UUID
}

// CancelVisit terminates a visit without completing it
func (s *VisitService) CancelVisit(ctx context.Context, input *CancelVisitInput) (*entity.Visit, error) {
	for attempt := 0; attempt < 2; attempt++ {
		visit, err := s.visitRepo.GetByID(ctx, input.VisitID)
		if err != nil {
			return nil, err
		}
		if visit == nil {
			return nil, apperror.NewNotFoundError("Visit")
		}
		if visit.Status != enum.VisitStatusActive {
			return nil, apperror.NewConflictError("Visit is already " + visit.Status.String())
		}

		now := time.Now()
		updated, err := s.visitRepo.UpdateStatus(ctx, visit.ID, enum.VisitStatusCancelled, visit.Version, &now)
		if err != nil {
			return nil, err
		}
		if updated {
			s.log.Info().
				Str("visit_id", visit.ID.String()).
				Str("reason", input.Reason).
				Msg("visit cancelled")
			return s.visitRepo.GetWithStages(ctx, visit.ID)
		}
	}
	return nil, apperror.ErrConcurrentModification
}

// CompleteVisitOnPayment closes a visit as the side effect of its invoice
// reaching Paid. It is the only path into the Completed stage.
func (s *VisitService) CompleteVisitOnPayment(ctx context.Context, visitID, invoiceID uuid.UUID) error {
	for attempt := 0; attempt < 2; attempt++ {
		visit, err := s.visitRepo.GetWithStages(ctx, visitID)
		if err != nil {
			return err
		}
		if visit == nil {
			return apperror.NewNotFoundError("Visit")
		}
		if visit.Status != enum.VisitStatusActive {
			// Already closed; reconciliation has nothing left to do
			return nil
		}
		if visit.CurrentStage != enum.StageBilling {
			return apperror.NewStageGuardViolation(
				"visit is at stage " + visit.CurrentStage.String() + ", not " + enum.StageBilling.String())
		}

		now := time.Now()
		billingRecord := visit.StageRecord(enum.StageBilling)
		touched := []*entity.VisitStage{}
		if billingRecord != nil {
			billingRecord.Status = enum.StageStatusCompleted
			billingRecord.CompletedAt = &now
			touched = append(touched, billingRecord)
		}

		expectedVersion := visit.Version
		visit.CurrentStage = enum.StageCompleted
		visit.Status = enum.VisitStatusCompleted
		visit.CompletedAt = &now

		committed, err := s.visitRepo.CommitTransition(ctx, visit, expectedVersion, nil, touched...)
		if err != nil {
			return err
		}
		if !committed {
			continue
		}

		if pubErr := s.publisher.PublishVisitCompleted(ctx, event.VisitCompleted{
			VisitID:     visit.ID,
			PatientID:   visit.PatientID,
			InvoiceID:   invoiceID,
			CompletedAt: now,
		}); pubErr != nil {
			s.log.Warn().Err(pubErr).Str("visit_id", visit.ID.String()).Msg("visit completed event not published")
		}

		s.log.Info().
			Str("visit_id", visit.ID.String()).
			Str("invoice_id", invoiceID.String()).
			Msg("visit completed through reconciliation")
		return nil
	}
	return apperror.ErrConcurrentModification
}

// GetVisit retrieves a visit with its stage rows
func (s *VisitService) GetVisit(ctx context.Context, id uuid.UUID) (*entity.Visit, error) {
	visit, err := s.visitRepo.GetWithStages(ctx, id)
	if err != nil {
		return nil, err
	}
	if visit == nil {
		return nil, apperror.NewNotFoundError("Visit")
	}
	return visit, nil
}

// GetActiveVisit retrieves the patient's Active visit
func (s *VisitService) GetActiveVisit(ctx context.Context, patientID uuid.UUID) (*entity.Visit, error) {
	visit, err := s.visitRepo.GetActiveByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if visit == nil {
		return nil, apperror.ErrNoActiveVisit
	}
	return visit, nil
}

// ListVisits lists visits with filters and pagination
func (s *VisitService) ListVisits(ctx context.Context, params *repository.VisitFilterParams) ([]entity.Visit, int64, error) {
	return s.visitRepo.List(ctx, params)
}

// GetVisitLabOrders lists the lab orders of a visit
func (s *VisitService) GetVisitLabOrders(ctx context.Context, visitID uuid.UUID) ([]entity.LabOrder, error) {
	return s.labOrderRepo.GetByVisit(ctx, visitID)
}

// ListLabOrdersByStatus lists lab orders queue-style for the lab station
func (s *VisitService) ListLabOrdersByStatus(ctx context.Context, status enum.LabOrderStatus) ([]entity.LabOrder, error) {
	return s.labOrderRepo.ListByStatus(ctx, status)
}
