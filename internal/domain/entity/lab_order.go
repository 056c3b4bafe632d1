package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/afyacare/clinic-api/internal/domain/enum"
)

// LabOrder is a doctor-ordered test. Ordering one routes the visit through
// the Lab stage; completing it routes the visit back to the Doctor stage.
type LabOrder struct {
	ID          uuid.UUID           `gorm:"type:uuid;primary_key" json:"id"`
	VisitID     uuid.UUID           `gorm:"type:uuid;not null;index" json:"visit_id"`
	TestName    string              `gorm:"size:255;not null" json:"test_name"`
	Price       int64               `gorm:"default:0" json:"-"` // Stored in cents, excluded from JSON
	Status      enum.LabOrderStatus `gorm:"default:0;index" json:"status"`
	Result      string              `gorm:"type:text" json:"result,omitempty"`
	OrderedBy   uuid.UUID           `gorm:"type:uuid" json:"ordered_by"`
	CompletedBy *uuid.UUID          `gorm:"type:uuid" json:"completed_by,omitempty"`
	CompletedAt *time.Time          `json:"completed_at,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
	DeletedAt   gorm.DeletedAt      `gorm:"index" json:"-"`

	// Relationships
	Visit Visit `gorm:"foreignKey:VisitID" json:"-"`
}

// MarshalJSON custom marshaler to convert cents to decimal for API responses
func (l LabOrder) MarshalJSON() ([]byte, error) {
	type Alias LabOrder
	return json.Marshal(&struct {
		Alias
		Price float64 `json:"price"`
	}{
		Alias: Alias(l),
		Price: float64(l.Price) / 100,
	})
}

// BeforeCreate generates a UUID before creating a new lab order
func (l *LabOrder) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the LabOrder model
func (LabOrder) TableName() string {
	return "lab_orders"
}
