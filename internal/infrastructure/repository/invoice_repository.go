package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/afyacare/clinic-api/internal/domain/entity"
	"github.com/afyacare/clinic-api/internal/domain/enum"
	domainRepo "github.com/afyacare/clinic-api/internal/domain/repository"
)

type invoiceRepository struct {
	db *gorm.DB
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *gorm.DB) domainRepo.InvoiceRepository {
	return &invoiceRepository{db: db}
}

func (r *invoiceRepository) Create(ctx context.Context, invoice *entity.Invoice, items []entity.InvoiceItem) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(invoice).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].InvoiceID = invoice.ID
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}
		invoice.Items = items
		return nil
	})
}

func (r *invoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Invoice, error) {
	var invoice entity.Invoice
	err := r.db.WithContext(ctx).First(&invoice, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &invoice, err
}

func (r *invoiceRepository) GetWithItems(ctx context.Context, id uuid.UUID) (*entity.Invoice, error) {
	var invoice entity.Invoice
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Payments", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("Patient").
		First(&invoice, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &invoice, err
}

func (r *invoiceRepository) GetOpenByVisit(ctx context.Context, visitID uuid.UUID) (*entity.Invoice, error) {
	var invoice entity.Invoice
	err := r.db.WithContext(ctx).
		Preload("Items").
		First(&invoice, "visit_id = ? AND status <> ?", visitID, enum.InvoiceStatusPaid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &invoice, err
}

func (r *invoiceRepository) List(ctx context.Context, params *domainRepo.InvoiceFilterParams) ([]entity.Invoice, int64, error) {
	var invoices []entity.Invoice
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Invoice{})

	if params.PatientID != nil {
		query = query.Where("patient_id = ?", *params.PatientID)
	}
	if params.VisitID != nil {
		query = query.Where("visit_id = ?", *params.VisitID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	params.Pagination.Validate()
	err := query.Offset(params.Pagination.Offset()).Limit(params.Pagination.PerPage).
		Preload("Patient").
		Order("created_at DESC").
		Find(&invoices).Error

	return invoices, total, err
}

// addPaidAmount increments paid_amount and recomputes status in one
// conditional update. The guard paid_amount + amount <= total_amount keeps
// the invoice from ever recording more than it billed; when two payments
// race, the loser's update affects zero rows.
func addPaidAmount(db *gorm.DB, id uuid.UUID, amount int64) (bool, error) {
	result := db.Model(&entity.Invoice{}).
		Where("id = ? AND paid_amount + ? <= total_amount", id, amount).
		Updates(map[string]interface{}{
			"paid_amount": gorm.Expr("paid_amount + ?", amount),
			"status": gorm.Expr(
				"CASE WHEN paid_amount + ? >= total_amount THEN ? ELSE ? END",
				amount, enum.InvoiceStatusPaid, enum.InvoiceStatusPartiallyPaid,
			),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *invoiceRepository) AddPaidAmount(ctx context.Context, id uuid.UUID, amount int64) (bool, error) {
	return addPaidAmount(r.db.WithContext(ctx), id, amount)
}

// ApplyPayment increments paid_amount and records the payment row in one
// transaction. A payment that loses the balance guard rolls back without a
// payment row, so recorded payments always sum to paid_amount.
func (r *invoiceRepository) ApplyPayment(ctx context.Context, payment *entity.Payment) (bool, error) {
	applied := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := addPaidAmount(tx, payment.InvoiceID, payment.Amount)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := tx.Create(payment).Error; err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}
