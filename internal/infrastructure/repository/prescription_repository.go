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

type prescriptionRepository struct {
	db *gorm.DB
}

// NewPrescriptionRepository creates a new prescription repository
func NewPrescriptionRepository(db *gorm.DB) domainRepo.PrescriptionRepository {
	return &prescriptionRepository{db: db}
}

func (r *prescriptionRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Prescription, error) {
	var prescription entity.Prescription
	err := r.db.WithContext(ctx).
		Preload("Medication").
		First(&prescription, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &prescription, err
}

func (r *prescriptionRepository) GetByVisit(ctx context.Context, visitID uuid.UUID) ([]entity.Prescription, error) {
	var prescriptions []entity.Prescription
	err := r.db.WithContext(ctx).
		Preload("Medication").
		Where("visit_id = ?", visitID).
		Order("created_at ASC").
		Find(&prescriptions).Error
	return prescriptions, err
}

func (r *prescriptionRepository) GetByVisitAndStatus(ctx context.Context, visitID uuid.UUID, status enum.PrescriptionStatus) ([]entity.Prescription, error) {
	var prescriptions []entity.Prescription
	err := r.db.WithContext(ctx).
		Preload("Medication").
		Where("visit_id = ? AND status = ?", visitID, status).
		Order("created_at ASC").
		Find(&prescriptions).Error
	return prescriptions, err
}

// MarkDispensed flips a Pending prescription to Dispensed with a conditional
// update, so dispensing the same prescription twice affects zero rows.
func (r *prescriptionRepository) MarkDispensed(ctx context.Context, id uuid.UUID, dispensedBy uuid.UUID) (bool, error) {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&entity.Prescription{}).
		Where("id = ? AND status = ?", id, enum.PrescriptionStatusPending).
		Updates(map[string]interface{}{
			"status":       enum.PrescriptionStatusDispensed,
			"dispensed_by": dispensedBy,
			"dispensed_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
