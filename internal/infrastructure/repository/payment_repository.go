package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/afyacare/clinic-api/internal/domain/entity"
	"github.com/afyacare/clinic-api/internal/domain/enum"
	domainRepo "github.com/afyacare/clinic-api/internal/domain/repository"
)

type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *gorm.DB) domainRepo.PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(ctx context.Context, payment *entity.Payment) error {
	err := r.db.WithContext(ctx).Create(payment).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) && payment.Status == enum.PaymentStatusPending {
		// The partial unique index on pending payments caught a racing
		// initiation for the same invoice
		return domainRepo.ErrDuplicatePending
	}
	return err
}

func (r *paymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Payment, error) {
	var payment entity.Payment
	err := r.db.WithContext(ctx).First(&payment, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &payment, err
}

func (r *paymentRepository) GetByReference(ctx context.Context, reference string) (*entity.Payment, error) {
	var payment entity.Payment
	err := r.db.WithContext(ctx).First(&payment, "reference = ?", reference).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &payment, err
}

func (r *paymentRepository) GetByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]entity.Payment, error) {
	var payments []entity.Payment
	err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("created_at ASC").
		Find(&payments).Error
	return payments, err
}

func (r *paymentRepository) GetPendingByInvoice(ctx context.Context, invoiceID uuid.UUID) (*entity.Payment, error) {
	var payment entity.Payment
	err := r.db.WithContext(ctx).
		First(&payment, "invoice_id = ? AND status = ?", invoiceID, enum.PaymentStatusPending).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &payment, err
}

// MarkResolved moves a pending payment to a terminal status with a
// conditional update. A payment that already resolved affects zero rows,
// which makes duplicate provider confirmations harmless.
func (r *paymentRepository) MarkResolved(ctx context.Context, id uuid.UUID, status enum.PaymentStatus, failureReason string) (bool, error) {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&entity.Payment{}).
		Where("id = ? AND status = ?", id, enum.PaymentStatusPending).
		Updates(map[string]interface{}{
			"status":         status,
			"failure_reason": failureReason,
			"resolved_at":    now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
