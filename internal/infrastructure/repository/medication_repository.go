package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/afyacare/clinic-api/internal/domain/entity"
	domainRepo "github.com/afyacare/clinic-api/internal/domain/repository"
	"github.com/afyacare/clinic-api/pkg/pagination"
)

type medicationRepository struct {
	db *gorm.DB
}

// NewMedicationRepository creates a new medication repository
func NewMedicationRepository(db *gorm.DB) domainRepo.MedicationRepository {
	return &medicationRepository{db: db}
}

func (r *medicationRepository) Create(ctx context.Context, medication *entity.Medication) error {
	return r.db.WithContext(ctx).Create(medication).Error
}

func (r *medicationRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Medication, error) {
	var medication entity.Medication
	err := r.db.WithContext(ctx).First(&medication, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &medication, err
}

// GetByIDs retrieves multiple medications by their IDs in a single query
func (r *medicationRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]entity.Medication, error) {
	if len(ids) == 0 {
		return []entity.Medication{}, nil
	}
	var medications []entity.Medication
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&medications).Error
	return medications, err
}

func (r *medicationRepository) GetByCode(ctx context.Context, code string) (*entity.Medication, error) {
	var medication entity.Medication
	err := r.db.WithContext(ctx).First(&medication, "code = ?", code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &medication, err
}

func (r *medicationRepository) List(ctx context.Context, params *pagination.PaginationParams, search string) ([]entity.Medication, int64, error) {
	var medications []entity.Medication
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Medication{})

	if search != "" {
		query = query.Where("name LIKE ? OR code LIKE ?",
			"%"+search+"%", "%"+search+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	params.Validate()
	err := query.Offset(params.Offset()).Limit(params.PerPage).
		Order("name ASC").
		Find(&medications).Error

	return medications, total, err
}

func (r *medicationRepository) GetLowStock(ctx context.Context) ([]entity.Medication, error) {
	var medications []entity.Medication
	err := r.db.WithContext(ctx).
		Where("quantity_in_stock <= reorder_level").
		Order("name ASC").
		Find(&medications).Error
	return medications, err
}

// AtomicDecrementStock atomically decrements stock only if sufficient quantity exists.
// Uses: UPDATE medications SET quantity_in_stock = quantity_in_stock - amount
//       WHERE id = ? AND quantity_in_stock >= amount
func (r *medicationRepository) AtomicDecrementStock(ctx context.Context, id uuid.UUID, amount int) (bool, error) {
	result := r.db.WithContext(ctx).Model(&entity.Medication{}).
		Where("id = ? AND quantity_in_stock >= ?", id, amount).
		Update("quantity_in_stock", gorm.Expr("quantity_in_stock - ?", amount))

	if result.Error != nil {
		return false, result.Error
	}

	// If no rows were affected, insufficient stock
	return result.RowsAffected > 0, nil
}

// AtomicIncrementStock adds stock back (restocks, cancelled dispenses)
func (r *medicationRepository) AtomicIncrementStock(ctx context.Context, id uuid.UUID, amount int) error {
	return r.db.WithContext(ctx).Model(&entity.Medication{}).
		Where("id = ?", id).
		Update("quantity_in_stock", gorm.Expr("quantity_in_stock + ?", amount)).Error
}
