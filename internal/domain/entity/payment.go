package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/afyacare/clinic-api/internal/domain/enum"
)

// Payment is an append-only record against one invoice. Asynchronous
// (mobile money) payments are created pending with the merchant order
// reference as their correlation id and resolved exactly once.
type Payment struct {
	ID            uuid.UUID          `gorm:"type:uuid;primary_key" json:"id"`
	InvoiceID     uuid.UUID          `gorm:"type:uuid;not null;index" json:"invoice_id"`
	Amount        int64              `gorm:"not null" json:"-"` // Stored in cents, excluded from JSON
	Method        enum.PaymentMethod `gorm:"size:50;not null" json:"method"`
	Status        enum.PaymentStatus `gorm:"default:0;index" json:"status"`
	Reference     string             `gorm:"size:100;uniqueIndex" json:"reference"`
	Phone         string             `gorm:"size:20" json:"phone,omitempty"`
	ReceivedBy    *uuid.UUID         `gorm:"type:uuid" json:"received_by,omitempty"`
	FailureReason string             `gorm:"size:255" json:"failure_reason,omitempty"`
	ResolvedAt    *time.Time         `json:"resolved_at,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`

	// Relationships
	Invoice Invoice `gorm:"foreignKey:InvoiceID" json:"-"`
}

// MarshalJSON custom marshaler to convert cents to decimal for API responses
func (p Payment) MarshalJSON() ([]byte, error) {
	type Alias Payment
	return json.Marshal(&struct {
		Alias
		Amount float64 `json:"amount"`
	}{
		Alias:  Alias(p),
		Amount: float64(p.Amount) / 100,
	})
}

// BeforeCreate generates a UUID before creating a new payment
func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the Payment model
func (Payment) TableName() string {
	return "payments"
}
