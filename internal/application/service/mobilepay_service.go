package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/afyacare/clinic-api/internal/domain/entity"
	"github.com/afyacare/clinic-api/internal/domain/enum"
	"github.com/afyacare/clinic-api/internal/domain/repository"
	"github.com/afyacare/clinic-api/pkg/apperror"
	"github.com/afyacare/clinic-api/pkg/mpesa"
	"github.com/afyacare/clinic-api/pkg/utils"
)

// ProviderClient is the slice of the mobile-money provider API the service
// uses. Satisfied by mpesa.Client.
type ProviderClient interface {
	InitiatePayment(ctx context.Context, req *mpesa.InitiateRequest) (*mpesa.InitiateResponse, error)
	QueryStatus(ctx context.Context, orderID string) (*mpesa.StatusResponse, error)
}

// TimeoutAlerter mails the operator when polling exhausts without a
// terminal answer. Satisfied by email.EmailService; nil disables alerting.
type TimeoutAlerter interface {
	SendPaymentTimeoutAlert(reference, invoiceNo string, attempts int) error
}

// MobilePayConfig bounds the confirmation poller
type MobilePayConfig struct {
	PollMaxAttempts int
	PollBaseDelay   time.Duration
	PollMaxDelay    time.Duration
}

// MobilePayService drives asynchronous mobile money payments: initiation,
// provider confirmation (webhook and poller), and reconciliation.
type MobilePayService struct {
	paymentRepo repository.PaymentRepository
	invoiceRepo repository.InvoiceRepository
	billing     *BillingService
	client      ProviderClient
	alerter     TimeoutAlerter
	cfg         MobilePayConfig
	log         zerolog.Logger
}

// NewMobilePayService creates a new mobile payment service
func NewMobilePayService(
	paymentRepo repository.PaymentRepository,
	invoiceRepo repository.InvoiceRepository,
	billing *BillingService,
	client ProviderClient,
	cfg MobilePayConfig,
	log zerolog.Logger,
) *MobilePayService {
	if cfg.PollMaxAttempts <= 0 {
		cfg.PollMaxAttempts = 8
	}
	if cfg.PollBaseDelay <= 0 {
		cfg.PollBaseDelay = 5 * time.Second
	}
	if cfg.PollMaxDelay <= 0 {
		cfg.PollMaxDelay = 60 * time.Second
	}
	return &MobilePayService{
		paymentRepo: paymentRepo,
		invoiceRepo: invoiceRepo,
		billing:     billing,
		client:      client,
		cfg:         cfg,
		log:         log,
	}
}

// SetTimeoutAlerter wires the operator email collaborator
func (s *MobilePayService) SetTimeoutAlerter(alerter TimeoutAlerter) {
	s.alerter = alerter
}

// InitiateMobilePaymentInput represents an STK-push initiation
type InitiateMobilePaymentInput struct {
	InvoiceID uuid.UUID
	Phone     string
	Amount    int64 // cents
	ActorID   uuid.UUID
}

// Initiate pushes a payment prompt to the patient's phone and records the
// pending payment. An invoice carries at most one unresolved mobile payment
// at a time; a second initiation is rejected, not superseded.
func (s *MobilePayService) Initiate(ctx context.Context, input *InitiateMobilePaymentInput) (*entity.Payment, error) {
	if input.Amount <= 0 {
		return nil, apperror.NewBadRequestError("Payment amount must be positive")
	}
	if input.Phone == "" {
		return nil, apperror.NewBadRequestError("Phone number is required")
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

	pending, err := s.paymentRepo.GetPendingByInvoice(ctx, input.InvoiceID)
	if err != nil {
		return nil, err
	}
	if pending != nil {
		return nil, apperror.ErrPaymentPending
	}

	orderID := utils.GenerateReferenceNo("MPX")

	// The pending row reserves the invoice's payment slot before the
	// provider is asked to prompt the phone; the partial unique index stops
	// a racing initiation that passed the read check above
	payment := &entity.Payment{
		InvoiceID:  input.InvoiceID,
		Amount:     input.Amount,
		Method:     enum.PaymentMethodMobile,
		Status:     enum.PaymentStatusPending,
		Reference:  orderID,
		Phone:      input.Phone,
		ReceivedBy: &input.ActorID,
	}
	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		if errors.Is(err, repository.ErrDuplicatePending) {
			return nil, apperror.ErrPaymentPending
		}
		return nil, err
	}

	resp, err := s.client.InitiatePayment(ctx, &mpesa.InitiateRequest{
		OrderID:    orderID,
		Amount:     float64(input.Amount) / 100,
		BuyerPhone: input.Phone,
		Metadata: map[string]string{
			"invoice_no": invoice.InvoiceNo,
		},
	})
	if err != nil {
		// Release the slot so the next attempt is not locked out
		if _, markErr := s.paymentRepo.MarkResolved(ctx, payment.ID, enum.PaymentStatusFailed, "initiation failed: "+err.Error()); markErr != nil {
			s.log.Error().Err(markErr).
				Str("payment_reference", orderID).
				Msg("failed to release payment after initiation error")
		}
		return nil, err
	}

	s.log.Info().
		Str("payment_reference", orderID).
		Str("provider_transaction_id", resp.TransactionID).
		Str("invoice_no", invoice.InvoiceNo).
		Msg("mobile payment initiated")

	go s.pollUntilResolved(payment.ID, orderID, invoice.InvoiceNo)

	return payment, nil
}

// pollUntilResolved polls the provider with exponential backoff until the
// payment resolves or the attempt budget runs out. The webhook usually wins
// the race; resolution is idempotent either way.
func (s *MobilePayService) pollUntilResolved(paymentID uuid.UUID, orderID, invoiceNo string) {
	delay := s.cfg.PollBaseDelay

	for attempt := 1; attempt <= s.cfg.PollMaxAttempts; attempt++ {
		time.Sleep(delay)
		delay *= 2
		if delay > s.cfg.PollMaxDelay {
			delay = s.cfg.PollMaxDelay
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		payment, err := s.paymentRepo.GetByID(ctx, paymentID)
		if err == nil && (payment == nil || payment.Status.IsTerminal()) {
			cancel()
			return
		}

		status, err := s.client.QueryStatus(ctx, orderID)
		cancel()
		if err != nil {
			s.log.Warn().Err(err).
				Str("payment_reference", orderID).
				Int("attempt", attempt).
				Msg("provider status query failed")
			continue
		}

		switch status.PaymentStatus {
		case mpesa.StatusCompleted:
			s.resolve(context.Background(), paymentID, enum.PaymentStatusCompleted, "")
			return
		case mpesa.StatusFailed:
			reason := status.Reason
			if reason == "" {
				reason = "provider reported failure"
			}
			s.resolve(context.Background(), paymentID, enum.PaymentStatusFailed, reason)
			return
		}
	}

	// Budget exhausted with the provider still saying pending
	resolved := s.resolve(context.Background(), paymentID, enum.PaymentStatusFailed, apperror.ErrPaymentTimeout.Message)
	if resolved {
		s.log.Error().
			Str("payment_reference", orderID).
			Int("attempts", s.cfg.PollMaxAttempts).
			Msg("mobile payment confirmation timed out")
		if s.alerter != nil {
			if err := s.alerter.SendPaymentTimeoutAlert(orderID, invoiceNo, s.cfg.PollMaxAttempts); err != nil {
				s.log.Error().Err(err).Msg("failed to send payment timeout alert")
			}
		}
	}
}

// HandleCallback processes a provider webhook confirmation. Confirmations
// for unknown or already-terminal payments are acknowledged as no-ops.
func (s *MobilePayService) HandleCallback(ctx context.Context, payload *mpesa.WebhookPayload) error {
	payment, err := s.paymentRepo.GetByReference(ctx, payload.OrderID)
	if err != nil {
		return err
	}
	if payment == nil {
		s.log.Warn().
			Str("order_id", payload.OrderID).
			Msg("webhook for unknown payment reference")
		return nil
	}

	switch payload.PaymentStatus {
	case mpesa.StatusCompleted:
		s.resolve(ctx, payment.ID, enum.PaymentStatusCompleted, "")
	case mpesa.StatusFailed:
		reason := payload.Reason
		if reason == "" {
			reason = "provider reported failure"
		}
		s.resolve(ctx, payment.ID, enum.PaymentStatusFailed, reason)
	default:
		s.log.Debug().
			Str("order_id", payload.OrderID).
			Str("status", payload.PaymentStatus).
			Msg("webhook with non-terminal status ignored")
	}

	return nil
}

// resolve moves a pending payment to a terminal status exactly once and,
// on completion, reconciles the invoice. Returns true when this call won
// the resolution.
func (s *MobilePayService) resolve(ctx context.Context, paymentID uuid.UUID, status enum.PaymentStatus, failureReason string) bool {
	won, err := s.paymentRepo.MarkResolved(ctx, paymentID, status, failureReason)
	if err != nil {
		s.log.Error().Err(err).
			Str("payment_id", paymentID.String()).
			Msg("failed to resolve payment")
		return false
	}
	if !won {
		// Duplicate confirmation; the first one already reconciled
		return false
	}

	if status != enum.PaymentStatusCompleted {
		s.log.Info().
			Str("payment_id", paymentID.String()).
			Str("reason", failureReason).
			Msg("mobile payment failed")
		return true
	}

	payment, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil || payment == nil {
		s.log.Error().Err(err).
			Str("payment_id", paymentID.String()).
			Msg("resolved payment could not be reloaded")
		return true
	}

	s.reconcileWithRetry(ctx, payment)
	return true
}

// reconcileWithRetry applies a provider-confirmed payment to its invoice.
// The money is already collected, so failures are retried and finally
// escalated to the operator instead of being dropped.
func (s *MobilePayService) reconcileWithRetry(ctx context.Context, payment *entity.Payment) {
	const maxAttempts = 3

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = s.billing.ApplyResolvedPayment(ctx, payment)
		if err == nil {
			return
		}
		s.log.Warn().Err(err).
			Str("payment_reference", payment.Reference).
			Int("attempt", attempt).
			Msg("reconciliation of confirmed payment failed")
		if attempt < maxAttempts {
			time.Sleep(time.Duration(attempt) * time.Second)
		}
	}

	s.log.Error().Err(err).
		Str("payment_reference", payment.Reference).
		Msg("confirmed payment left unreconciled")

	if s.billing.alerter != nil {
		invoice, invErr := s.invoiceRepo.GetByID(ctx, payment.InvoiceID)
		invoiceNo := payment.InvoiceID.String()
		if invErr == nil && invoice != nil {
			invoiceNo = invoice.InvoiceNo
		}
		if mailErr := s.billing.alerter.SendReconciliationAlert(payment.Reference, invoiceNo, err.Error()); mailErr != nil {
			s.log.Error().Err(mailErr).Msg("failed to send reconciliation alert")
		}
	}
}

// QueryStatus returns the local payment together with a fresh provider
// status lookup
func (s *MobilePayService) QueryStatus(ctx context.Context, reference string) (*entity.Payment, *mpesa.StatusResponse, error) {
	payment, err := s.paymentRepo.GetByReference(ctx, reference)
	if err != nil {
		return nil, nil, err
	}
	if payment == nil {
		return nil, nil, apperror.NewNotFoundError("Payment")
	}

	if payment.Status.IsTerminal() {
		return payment, nil, nil
	}

	status, err := s.client.QueryStatus(ctx, reference)
	if err != nil {
		return payment, nil, err
	}
	return payment, status, nil
}
