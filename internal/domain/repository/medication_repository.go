package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/afyacare/clinic-api/internal/domain/entity"
	"github.com/afyacare/clinic-api/pkg/pagination"
)

// MedicationRepository defines the interface for medication stock operations
type MedicationRepository interface {
	Create(ctx context.Context, medication *entity.Medication) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Medication, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]entity.Medication, error)
	GetByCode(ctx context.Context, code string) (*entity.Medication, error)
	List(ctx context.Context, params *pagination.PaginationParams, search string) ([]entity.Medication, int64, error)
	GetLowStock(ctx context.Context) ([]entity.Medication, error)
	// AtomicDecrementStock decrements stock only if sufficient quantity
	// exists, as a single conditional update. Returns false when stock was
	// insufficient.
	AtomicDecrementStock(ctx context.Context, id uuid.UUID, amount int) (bool, error)
	// AtomicIncrementStock adds stock (restock, returns)
	AtomicIncrementStock(ctx context.Context, id uuid.UUID, amount int) error
}
