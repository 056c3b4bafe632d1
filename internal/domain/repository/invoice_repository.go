package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/afyacare/clinic-api/internal/domain/entity"
	"github.com/afyacare/clinic-api/internal/domain/enum"
	"github.com/afyacare/clinic-api/pkg/pagination"
)

// InvoiceRepository defines the interface for invoice data operations
type InvoiceRepository interface {
	// Create persists an invoice together with its line items
	Create(ctx context.Context, invoice *entity.Invoice, items []entity.InvoiceItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Invoice, error)
	// GetWithItems loads an invoice with items and payments preloaded
	GetWithItems(ctx context.Context, id uuid.UUID) (*entity.Invoice, error)
	// GetOpenByVisit returns the visit's not-yet-Paid invoice, nil if none
	GetOpenByVisit(ctx context.Context, visitID uuid.UUID) (*entity.Invoice, error)
	List(ctx context.Context, params *InvoiceFilterParams) ([]entity.Invoice, int64, error)
	// AddPaidAmount increments paid_amount and recomputes status as a single
	// conditional update guarded by paid_amount + amount <= total_amount.
	// Returns false when the guard fails (would overpay).
	AddPaidAmount(ctx context.Context, id uuid.UUID, amount int64) (bool, error)
	// ApplyPayment runs AddPaidAmount and creates the payment row in one
	// transaction, so a payment that loses the balance guard leaves no
	// record behind. Returns false when the guard fails.
	ApplyPayment(ctx context.Context, payment *entity.Payment) (bool, error)
}

// InvoiceFilterParams contains filtering parameters for invoice queries
type InvoiceFilterParams struct {
	Pagination *pagination.PaginationParams
	PatientID  *uuid.UUID
	VisitID    *uuid.UUID
	Status     *enum.InvoiceStatus
}
