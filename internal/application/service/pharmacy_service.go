package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/afyacare/clinic-api/internal/domain/entity"
	"github.com/afyacare/clinic-api/internal/domain/enum"
	"github.com/afyacare/clinic-api/internal/domain/repository"
	"github.com/afyacare/clinic-api/pkg/apperror"
	"github.com/afyacare/clinic-api/pkg/pagination"
)

// PharmacyService handles medication inventory and dispensing
type PharmacyService struct {
	medicationRepo   repository.MedicationRepository
	prescriptionRepo repository.PrescriptionRepository
	visitRepo        repository.VisitRepository
	log              zerolog.Logger
}

// NewPharmacyService creates a new pharmacy service
func NewPharmacyService(
	medicationRepo repository.MedicationRepository,
	prescriptionRepo repository.PrescriptionRepository,
	visitRepo repository.VisitRepository,
	log zerolog.Logger,
) *PharmacyService {
	return &PharmacyService{
		medicationRepo:   medicationRepo,
		prescriptionRepo: prescriptionRepo,
		visitRepo:        visitRepo,
		log:              log,
	}
}

// CreateMedicationInput represents a new formulary item
type CreateMedicationInput struct {
	Name            string
	Code            string
	QuantityInStock int
	ReorderLevel    int
	UnitPrice       int64 // cents
}

// CreateMedication adds a medication to the formulary
func (s *PharmacyService) CreateMedication(ctx context.Context, input *CreateMedicationInput) (*entity.Medication, error) {
	existing, err := s.medicationRepo.GetByCode(ctx, input.Code)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperror.NewConflictError("Medication code already exists")
	}

	medication := &entity.Medication{
		Name:            input.Name,
		Code:            input.Code,
		QuantityInStock: input.QuantityInStock,
		ReorderLevel:    input.ReorderLevel,
		UnitPrice:       input.UnitPrice,
	}
	if err := s.medicationRepo.Create(ctx, medication); err != nil {
		return nil, err
	}
	return medication, nil
}

// ListMedications lists the formulary with search and pagination
func (s *PharmacyService) ListMedications(ctx context.Context, params *pagination.PaginationParams, search string) ([]entity.Medication, int64, error) {
	return s.medicationRepo.List(ctx, params, search)
}

// LowStock lists medications at or below their reorder level
func (s *PharmacyService) LowStock(ctx context.Context) ([]entity.Medication, error) {
	return s.medicationRepo.GetLowStock(ctx)
}

// PendingPrescriptions lists a visit's undispensed prescriptions
func (s *PharmacyService) PendingPrescriptions(ctx context.Context, visitID uuid.UUID) ([]entity.Prescription, error) {
	return s.prescriptionRepo.GetByVisitAndStatus(ctx, visitID, enum.PrescriptionStatusPending)
}

// DispenseInput represents a dispense request
type DispenseInput struct {
	PrescriptionID uuid.UUID
	ActorID        uuid.UUID
}

// Dispense hands out one prescription. The stock deduction is a single
// conditional decrement: of two concurrent dispenses against the last units
// exactly one succeeds, the other gets InsufficientStock and no deduction.
func (s *PharmacyService) Dispense(ctx context.Context, input *DispenseInput) (*entity.Prescription, error) {
	prescription, err := s.prescriptionRepo.GetByID(ctx, input.PrescriptionID)
	if err != nil {
		return nil, err
	}
	if prescription == nil {
		return nil, apperror.NewNotFoundError("Prescription")
	}
	if prescription.Status != enum.PrescriptionStatusPending {
		return nil, apperror.NewConflictError("Prescription is already " + prescription.Status.String())
	}

	visit, err := s.visitRepo.GetByID(ctx, prescription.VisitID)
	if err != nil {
		return nil, err
	}
	if visit == nil || visit.Status != enum.VisitStatusActive {
		return nil, apperror.NewConflictError("Visit is not active")
	}
	if visit.CurrentStage != enum.StagePharmacy {
		return nil, apperror.NewConflictError("Visit is not at the pharmacy stage")
	}

	deducted, err := s.medicationRepo.AtomicDecrementStock(ctx, prescription.MedicationID, prescription.Quantity)
	if err != nil {
		return nil, err
	}
	if !deducted {
		return nil, apperror.ErrInsufficientStock
	}

	dispensed, err := s.prescriptionRepo.MarkDispensed(ctx, prescription.ID, input.ActorID)
	if err != nil {
		return nil, err
	}
	if !dispensed {
		// Another pharmacist got there between our read and write; give the
		// stock back since their dispense already deducted it
		if restoreErr := s.medicationRepo.AtomicIncrementStock(ctx, prescription.MedicationID, prescription.Quantity); restoreErr != nil {
			s.log.Error().Err(restoreErr).
				Str("medication_id", prescription.MedicationID.String()).
				Int("quantity", prescription.Quantity).
				Msg("failed to restore stock after dispense race")
		}
		return nil, apperror.NewConflictError("Prescription was already dispensed")
	}

	medication, err := s.medicationRepo.GetByID(ctx, prescription.MedicationID)
	if err == nil && medication != nil && medication.IsLowStock() {
		s.log.Warn().
			Str("medication_id", medication.ID.String()).
			Str("code", medication.Code).
			Int("quantity_in_stock", medication.QuantityInStock).
			Int("reorder_level", medication.ReorderLevel).
			Msg("medication at or below reorder level")
	}

	return s.prescriptionRepo.GetByID(ctx, prescription.ID)
}

// RestockInput represents a restock request
type RestockInput struct {
	MedicationID uuid.UUID
	Quantity     int
	ActorID      uuid.UUID
}

// Restock adds received stock to a medication
func (s *PharmacyService) Restock(ctx context.Context, input *RestockInput) (*entity.Medication, error) {
	if input.Quantity <= 0 {
		return nil, apperror.NewBadRequestError("Restock quantity must be positive")
	}

	medication, err := s.medicationRepo.GetByID(ctx, input.MedicationID)
	if err != nil {
		return nil, err
	}
	if medication == nil {
		return nil, apperror.NewNotFoundError("Medication")
	}

	if err := s.medicationRepo.AtomicIncrementStock(ctx, input.MedicationID, input.Quantity); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("medication_id", input.MedicationID.String()).
		Int("quantity", input.Quantity).
		Str("actor_id", input.ActorID.String()).
		Msg("medication restocked")

	return s.medicationRepo.GetByID(ctx, input.MedicationID)
}
