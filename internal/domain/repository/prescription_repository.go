package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/afyacare/clinic-api/internal/domain/entity"
	"github.com/afyacare/clinic-api/internal/domain/enum"
)

// PrescriptionRepository defines the interface for prescription data
// operations. Prescriptions are created through the visit repository's
// CommitTransition so they land in the same transaction as the Doctor stage.
type PrescriptionRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Prescription, error)
	GetByVisit(ctx context.Context, visitID uuid.UUID) ([]entity.Prescription, error)
	GetByVisitAndStatus(ctx context.Context, visitID uuid.UUID, status enum.PrescriptionStatus) ([]entity.Prescription, error)
	// MarkDispensed flips a Pending prescription to Dispensed. Returns false
	// when the prescription was no longer Pending.
	MarkDispensed(ctx context.Context, id uuid.UUID, dispensedBy uuid.UUID) (bool, error)
}
