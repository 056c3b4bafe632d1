package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Medication represents a pharmacy inventory item
type Medication struct {
	ID              uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	Name            string         `gorm:"size:255;not null" json:"name"`
	Code            string         `gorm:"size:100;unique;not null" json:"code"`
	QuantityInStock int            `gorm:"default:0" json:"quantity_in_stock"`
	ReorderLevel    int            `gorm:"default:0" json:"reorder_level"`
	UnitPrice       int64          `gorm:"default:0" json:"-"` // Stored in cents, excluded from JSON
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

// MarshalJSON custom marshaler to convert cents to decimal for API responses
func (m Medication) MarshalJSON() ([]byte, error) {
	type Alias Medication
	return json.Marshal(&struct {
		Alias
		UnitPrice float64 `json:"unit_price"`
	}{
		Alias:     Alias(m),
		UnitPrice: float64(m.UnitPrice) / 100,
	})
}

// BeforeCreate generates a UUID before creating a new medication
func (m *Medication) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the Medication model
func (Medication) TableName() string {
	return "medications"
}

// IsLowStock reports whether stock has reached the reorder level
func (m *Medication) IsLowStock() bool {
	return m.QuantityInStock <= m.ReorderLevel
}
