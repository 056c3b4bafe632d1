package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/afyacare/clinic-api/internal/domain/entity"
	"github.com/afyacare/clinic-api/internal/domain/enum"
	"github.com/afyacare/clinic-api/pkg/pagination"
)

// VisitRepository defines the interface for visit data operations.
// Mutations that race with other actors go through version-checked updates:
// the caller passes the version it read and gets false back when another
// writer advanced the visit in between.
type VisitRepository interface {
	// Create persists a visit together with its seeded stage rows
	Create(ctx context.Context, visit *entity.Visit, stages []entity.VisitStage) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Visit, error)
	// GetWithStages loads a visit with its stage rows preloaded
	GetWithStages(ctx context.Context, id uuid.UUID) (*entity.Visit, error)
	// GetActiveByPatient returns the patient's Active visit, nil if none
	GetActiveByPatient(ctx context.Context, patientID uuid.UUID) (*entity.Visit, error)
	List(ctx context.Context, params *VisitFilterParams) ([]entity.Visit, int64, error)
	// CommitTransition persists a stage completion in one transaction: the
	// visit header (version-checked), the touched stage rows, and any
	// doctor orders captured at the completed stage. Returns false without
	// writing anything when the version check fails.
	CommitTransition(ctx context.Context, visit *entity.Visit, expectedVersion int64, orders *entity.DoctorOrders, stages ...*entity.VisitStage) (bool, error)
	// UpdateStatus terminates a visit (Completed or Cancelled) with a
	// version check
	UpdateStatus(ctx context.Context, id uuid.UUID, status enum.VisitStatus, expectedVersion int64, completedAt *time.Time) (bool, error)
}

// VisitFilterParams contains filtering parameters for visit queries
type VisitFilterParams struct {
	Pagination *pagination.PaginationParams
	PatientID  *uuid.UUID
	Stage      *enum.VisitStage
	Status     *enum.VisitStatus
	StartDate  *time.Time
	EndDate    *time.Time
}
