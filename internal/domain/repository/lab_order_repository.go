package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/afyacare/clinic-api/internal/domain/entity"
	"github.com/afyacare/clinic-api/internal/domain/enum"
)

// LabOrderRepository defines the interface for lab order data operations.
// Orders are created through the visit repository's CommitTransition so they
// land in the same transaction as the Doctor stage.
type LabOrderRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.LabOrder, error)
	GetByVisit(ctx context.Context, visitID uuid.UUID) ([]entity.LabOrder, error)
	GetByVisitAndStatus(ctx context.Context, visitID uuid.UUID, status enum.LabOrderStatus) ([]entity.LabOrder, error)
	ListByStatus(ctx context.Context, status enum.LabOrderStatus) ([]entity.LabOrder, error)
	Update(ctx context.Context, order *entity.LabOrder) error
}
