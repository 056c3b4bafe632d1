package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/afyacare/clinic-api/internal/domain/entity"
	"github.com/afyacare/clinic-api/internal/domain/enum"
)

// ErrDuplicatePending is returned by Create when the invoice already carries
// an unresolved payment. A partial unique index backs the check, so two
// racing initiations cannot both get a pending row.
var ErrDuplicatePending = errors.New("invoice already has a pending payment")

// PaymentRepository defines the interface for payment data operations.
// Payments are append-only; pending ones resolve to a terminal status
// exactly once via the conditional MarkResolved update.
type PaymentRepository interface {
	// Create persists a payment. Returns ErrDuplicatePending when a pending
	// payment for the same invoice already exists.
	Create(ctx context.Context, payment *entity.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Payment, error)
	GetByReference(ctx context.Context, reference string) (*entity.Payment, error)
	GetByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]entity.Payment, error)
	// GetPendingByInvoice returns the invoice's unresolved mobile payment,
	// nil if none
	GetPendingByInvoice(ctx context.Context, invoiceID uuid.UUID) (*entity.Payment, error)
	// MarkResolved moves a pending payment to a terminal status. Returns
	// false when the payment was already resolved, making duplicate
	// confirmations a no-op.
	MarkResolved(ctx context.Context, id uuid.UUID, status enum.PaymentStatus, failureReason string) (bool, error)
}
