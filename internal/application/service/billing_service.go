package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/afyacare/clinic-api/internal/domain/entity"
	"github.com/afyacare/clinic-api/internal/domain/enum"
	"github.com/afyacare/clinic-api/internal/domain/repository"
	"github.com/afyacare/clinic-api/pkg/apperror"
	"github.com/afyacare/clinic-api/pkg/email"
	"github.com/afyacare/clinic-api/pkg/utils"
)

// VisitCompleter closes a visit when its invoice reaches Paid. Implemented
// by VisitService; injected after construction.
type VisitCompleter interface {
	CompleteVisitOnPayment(ctx context.Context, visitID, invoiceID uuid.UUID) error
}

// OperatorAlerter mails the operator when reconciliation needs a human.
// Satisfied by email.EmailService; nil disables alerting.
type OperatorAlerter interface {
	SendReconciliationAlert(reference, invoiceNo, detail string) error
}

// BillingService composes invoices and reconciles payments against them
type BillingService struct {
	invoiceRepo      repository.InvoiceRepository
	visitRepo        repository.VisitRepository
	prescriptionRepo repository.PrescriptionRepository
	labOrderRepo     repository.LabOrderRepository
	medicationRepo   repository.MedicationRepository
	completer        VisitCompleter
	alerter          OperatorAlerter
	consultationFee  int64 // cents
	log              zerolog.Logger
}

// NewBillingService creates a new billing service
func NewBillingService(
	invoiceRepo repository.InvoiceRepository,
	visitRepo repository.VisitRepository,
	prescriptionRepo repository.PrescriptionRepository,
	labOrderRepo repository.LabOrderRepository,
	medicationRepo repository.MedicationRepository,
	consultationFee int64,
	log zerolog.Logger,
) *BillingService {
	return &BillingService{
		invoiceRepo:      invoiceRepo,
		visitRepo:        visitRepo,
		prescriptionRepo: prescriptionRepo,
		labOrderRepo:     labOrderRepo,
		medicationRepo:   medicationRepo,
		consultationFee:  consultationFee,
		log:              log,
	}
}

// SetVisitCompleter wires the workflow collaborator
func (s *BillingService) SetVisitCompleter(completer VisitCompleter) {
	s.completer = completer
}

// SetOperatorAlerter wires the operator email collaborator
func (s *BillingService) SetOperatorAlerter(alerter OperatorAlerter) {
	s.alerter = alerter
}

var _ OperatorAlerter = (*email.EmailService)(nil)

// ComposeInvoice builds the visit's invoice from the consultation fee, the
// dispensed prescriptions, and the completed lab orders. A visit carries at
// most one open invoice.
func (s *BillingService) ComposeInvoice(ctx context.Context, visitID, actor uuid.UUID) (*entity.Invoice, error) {
	visit, err := s.visitRepo.GetByID(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if visit == nil {
		return nil, apperror.NewNotFoundError("Visit")
	}
	if visit.Status != enum.VisitStatusActive {
		return nil, apperror.NewConflictError("Visit is not active")
	}

	open, err := s.invoiceRepo.GetOpenByVisit(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return open, apperror.ErrInvoiceAlreadyOpen
	}

	items := []entity.InvoiceItem{
		{
			Description: "Consultation fee",
			UnitPrice:   s.consultationFee,
			Quantity:    1,
			TotalPrice:  s.consultationFee,
		},
	}

	dispensed, err := s.prescriptionRepo.GetByVisitAndStatus(ctx, visitID, enum.PrescriptionStatusDispensed)
	if err != nil {
		return nil, err
	}
	for i := range dispensed {
		p := &dispensed[i]
		name := p.Medication.Name
		if name == "" {
			name = "Medication"
		}
		prescriptionID := p.ID
		items = append(items, entity.InvoiceItem{
			Description:    name,
			UnitPrice:      p.Medication.UnitPrice,
			Quantity:       p.Quantity,
			TotalPrice:     p.Medication.UnitPrice * int64(p.Quantity),
			PrescriptionID: &prescriptionID,
		})
	}

	completed, err := s.labOrderRepo.GetByVisitAndStatus(ctx, visitID, enum.LabOrderStatusCompleted)
	if err != nil {
		return nil, err
	}
	for i := range completed {
		l := &completed[i]
		labOrderID := l.ID
		items = append(items, entity.InvoiceItem{
			Description: fmt.Sprintf("Lab: %s", l.TestName),
			UnitPrice:   l.Price,
			Quantity:    1,
			TotalPrice:  l.Price,
			LabOrderID:  &labOrderID,
		})
	}

	var total int64
	for i := range items {
		total += items[i].TotalPrice
	}

	invoice := &entity.Invoice{
		VisitID:     visitID,
		PatientID:   visit.PatientID,
		InvoiceNo:   utils.GenerateInvoiceNo(),
		TotalAmount: total,
		PaidAmount:  0,
		Status:      enum.InvoiceStatusUnpaid,
		ComposedBy:  actor,
	}

	if err := s.invoiceRepo.Create(ctx, invoice, items); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("invoice_id", invoice.ID.String()).
		Str("invoice_no", invoice.InvoiceNo).
		Str("visit_id", visitID.String()).
		Int64("total_cents", total).
		Msg("invoice composed")

	return invoice, nil
}

// GetInvoice retrieves an invoice with its items and payments
func (s *BillingService) GetInvoice(ctx context.Context, id uuid.UUID) (*entity.Invoice, error) {
	invoice, err := s.invoiceRepo.GetWithItems(ctx, id)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, apperror.NewNotFoundError("Invoice")
	}
	return invoice, nil
}

// ListInvoices lists invoices with filters and pagination
func (s *BillingService) ListInvoices(ctx context.Context, params *repository.InvoiceFilterParams) ([]entity.Invoice, int64, error) {
	return s.invoiceRepo.List(ctx, params)
}

// ApplyPaymentInput represents a synchronous payment (cash, insurance)
type ApplyPaymentInput struct {
	InvoiceID  uuid.UUID
	Amount     int64 // cents
	Method     enum.PaymentMethod
	Reference  string
	ReceivedBy uuid.UUID
}

// ApplyPayment records a completed payment and reconciles the invoice. When
// the invoice reaches Paid the visit completes as a side effect; a failure
// in that follow-up never fails the recorded payment.
func (s *BillingService) ApplyPayment(ctx context.Context, input *ApplyPaymentInput) (*entity.Payment, error) {
	if input.Amount <= 0 {
		return nil, apperror.NewBadRequestError("Payment amount must be positive")
	}

	invoice, err := s.invoiceRepo.GetByID(ctx, input.InvoiceID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, apperror.NewNotFoundError("Invoice")
	}
	if !invoice.IsOpen() {
		return nil, apperror.NewConflictError("Invoice is already paid in full")
	}
	if input.Amount > invoice.Remaining() {
		return nil, apperror.ErrExcessPayment
	}

	reference := input.Reference
	if reference == "" {
		reference = utils.GenerateReferenceNo("PAY")
	}

	payment := &entity.Payment{
		InvoiceID:  input.InvoiceID,
		Amount:     input.Amount,
		Method:     input.Method,
		Status:     enum.PaymentStatusCompleted,
		Reference:  reference,
		ReceivedBy: &input.ReceivedBy,
	}

	// Increment and payment row commit together: losing the balance guard
	// to a concurrent payment leaves no record behind
	applied, err := s.invoiceRepo.ApplyPayment(ctx, payment)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, apperror.ErrExcessPayment
	}

	if err := s.completeIfPaid(ctx, payment); err != nil {
		return nil, err
	}

	return payment, nil
}

// ApplyResolvedPayment reconciles an already-recorded payment that just
// resolved to completed (the mobile money path)
func (s *BillingService) ApplyResolvedPayment(ctx context.Context, payment *entity.Payment) error {
	return s.reconcile(ctx, payment)
}

// reconcile increments the invoice's paid_amount under the overpayment
// guard and, when the invoice reached Paid, completes the visit. Used for
// payments whose row already exists (the mobile money path).
func (s *BillingService) reconcile(ctx context.Context, payment *entity.Payment) error {
	applied, err := s.invoiceRepo.AddPaidAmount(ctx, payment.InvoiceID, payment.Amount)
	if err != nil {
		return err
	}
	if !applied {
		// A concurrent payment consumed the remaining balance first
		return apperror.ErrExcessPayment
	}

	return s.completeIfPaid(ctx, payment)
}

// completeIfPaid logs the applied payment and closes the visit once the
// invoice reached Paid. A completion miss alerts the operator but never
// fails the recorded payment.
func (s *BillingService) completeIfPaid(ctx context.Context, payment *entity.Payment) error {
	invoice, err := s.invoiceRepo.GetByID(ctx, payment.InvoiceID)
	if err != nil {
		return err
	}
	if invoice == nil {
		return apperror.NewNotFoundError("Invoice")
	}

	s.log.Info().
		Str("invoice_id", invoice.ID.String()).
		Str("payment_reference", payment.Reference).
		Int64("amount_cents", payment.Amount).
		Str("status", invoice.Status.String()).
		Msg("payment applied to invoice")

	if invoice.Status != enum.InvoiceStatusPaid {
		return nil
	}

	if s.completer == nil {
		return nil
	}

	if err := s.completer.CompleteVisitOnPayment(ctx, invoice.VisitID, invoice.ID); err != nil {
		// The financial record stands; the visit needs a human eye
		s.log.Warn().Err(err).
			Str("invoice_id", invoice.ID.String()).
			Str("visit_id", invoice.VisitID.String()).
			Msg("invoice paid but visit completion did not apply")
		if s.alerter != nil {
			if mailErr := s.alerter.SendReconciliationAlert(payment.Reference, invoice.InvoiceNo, err.Error()); mailErr != nil {
				s.log.Error().Err(mailErr).Msg("failed to send reconciliation alert")
			}
		}
	}

	return nil
}
