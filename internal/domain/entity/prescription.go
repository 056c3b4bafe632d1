package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/afyacare/clinic-api/internal/domain/enum"
)

// Prescription links a visit to a medication with a quantity. Dispensing it
// is the trigger for the stock deduction and the billable line item.
type Prescription struct {
	ID           uuid.UUID               `gorm:"type:uuid;primary_key" json:"id"`
	VisitID      uuid.UUID               `gorm:"type:uuid;not null;index" json:"visit_id"`
	MedicationID uuid.UUID               `gorm:"type:uuid;not null;index" json:"medication_id"`
	Quantity     int                     `gorm:"not null" json:"quantity"`
	Dosage       string                  `gorm:"size:255" json:"dosage"`
	Status       enum.PrescriptionStatus `gorm:"default:0;index" json:"status"`
	PrescribedBy uuid.UUID               `gorm:"type:uuid" json:"prescribed_by"`
	DispensedBy  *uuid.UUID              `gorm:"type:uuid" json:"dispensed_by,omitempty"`
	DispensedAt  *time.Time              `json:"dispensed_at,omitempty"`
	CreatedAt    time.Time               `json:"created_at"`
	UpdatedAt    time.Time               `json:"updated_at"`
	DeletedAt    gorm.DeletedAt          `gorm:"index" json:"-"`

	// Relationships
	Visit      Visit      `gorm:"foreignKey:VisitID" json:"-"`
	Medication Medication `gorm:"foreignKey:MedicationID" json:"medication,omitempty"`
}

// BeforeCreate generates a UUID before creating a new prescription
func (p *Prescription) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the Prescription model
func (Prescription) TableName() string {
	return "prescriptions"
}
