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

type labOrderRepository struct {
	db *gorm.DB
}

// NewLabOrderRepository creates a new lab order repository
func NewLabOrderRepository(db *gorm.DB) domainRepo.LabOrderRepository {
	return &labOrderRepository{db: db}
}

func (r *labOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.LabOrder, error) {
	var order entity.LabOrder
	err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &order, err
}

func (r *labOrderRepository) GetByVisit(ctx context.Context, visitID uuid.UUID) ([]entity.LabOrder, error) {
	var orders []entity.LabOrder
	err := r.db.WithContext(ctx).
		Where("visit_id = ?", visitID).
		Order("created_at ASC").
		Find(&orders).Error
	return orders, err
}

func (r *labOrderRepository) GetByVisitAndStatus(ctx context.Context, visitID uuid.UUID, status enum.LabOrderStatus) ([]entity.LabOrder, error) {
	var orders []entity.LabOrder
	err := r.db.WithContext(ctx).
		Where("visit_id = ? AND status = ?", visitID, status).
		Order("created_at ASC").
		Find(&orders).Error
	return orders, err
}

func (r *labOrderRepository) ListByStatus(ctx context.Context, status enum.LabOrderStatus) ([]entity.LabOrder, error) {
	var orders []entity.LabOrder
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Find(&orders).Error
	return orders, err
}

func (r *labOrderRepository) Update(ctx context.Context, order *entity.LabOrder) error {
	return r.db.WithContext(ctx).Save(order).Error
}
