package event

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/afyacare/clinic-api/internal/domain/enum"
)

// Routing keys for published domain events
const (
	TopicStageCompleted = "visit.stage.completed"
	TopicVisitCompleted = "visit.completed"
)

// StageCompleted is emitted after a stage transition commits
type StageCompleted struct {
	VisitID     uuid.UUID       `json:"visit_id"`
	PatientID   uuid.UUID       `json:"patient_id"`
	Stage       enum.VisitStage `json:"stage"`
	NextStage   enum.VisitStage `json:"next_stage"`
	CompletedBy uuid.UUID       `json:"completed_by"`
	CompletedAt time.Time       `json:"completed_at"`
}

// VisitCompleted is emitted when reconciliation closes a visit
type VisitCompleted struct {
	VisitID     uuid.UUID `json:"visit_id"`
	PatientID   uuid.UUID `json:"patient_id"`
	InvoiceID   uuid.UUID `json:"invoice_id"`
	CompletedAt time.Time `json:"completed_at"`
}

// Publisher emits domain events to interested consumers. Publishing is
// best-effort: workflow commits never roll back on a publish failure.
type Publisher interface {
	PublishStageCompleted(ctx context.Context, evt StageCompleted) error
	PublishVisitCompleted(ctx context.Context, evt VisitCompleted) error
}

// NopPublisher discards all events. Used when messaging is not configured
// and in tests.
type NopPublisher struct{}

func (NopPublisher) PublishStageCompleted(ctx context.Context, evt StageCompleted) error {
	return nil
}

func (NopPublisher) PublishVisitCompleted(ctx context.Context, evt VisitCompleted) error {
	return nil
}
