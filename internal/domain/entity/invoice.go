package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/afyacare/clinic-api/internal/domain/enum"
)

// Invoice aggregates the chargeable items of a visit. The invariant
// 0 <= paid_amount <= total_amount holds at every committed state; the
// repository enforces it with a conditional update on paid_amount.
type Invoice struct {
	ID          uuid.UUID          `gorm:"type:uuid;primary_key" json:"id"`
	VisitID     uuid.UUID          `gorm:"type:uuid;not null;index" json:"visit_id"`
	PatientID   uuid.UUID          `gorm:"type:uuid;not null;index" json:"patient_id"`
	InvoiceNo   string             `gorm:"size:100;unique;not null" json:"invoice_no"`
	TotalAmount int64              `gorm:"default:0" json:"-"` // Stored in cents, excluded from JSON
	PaidAmount  int64              `gorm:"default:0" json:"-"` // Stored in cents, excluded from JSON
	Status      enum.InvoiceStatus `gorm:"default:0;index" json:"status"`
	ComposedBy  uuid.UUID          `gorm:"type:uuid" json:"composed_by"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
	DeletedAt   gorm.DeletedAt     `gorm:"index" json:"-"`

	// Relationships
	Visit    Visit         `gorm:"foreignKey:VisitID" json:"-"`
	Patient  Patient       `gorm:"foreignKey:PatientID" json:"patient,omitempty"`
	Items    []InvoiceItem `gorm:"foreignKey:InvoiceID" json:"items,omitempty"`
	Payments []Payment     `gorm:"foreignKey:InvoiceID" json:"payments,omitempty"`
}

// MarshalJSON custom marshaler to convert cents to decimal for API responses
func (i Invoice) MarshalJSON() ([]byte, error) {
	type Alias Invoice
	return json.Marshal(&struct {
		Alias
		TotalAmount float64 `json:"total_amount"`
		PaidAmount  float64 `json:"paid_amount"`
		Balance     float64 `json:"balance"`
	}{
		Alias:       Alias(i),
		TotalAmount: float64(i.TotalAmount) / 100,
		PaidAmount:  float64(i.PaidAmount) / 100,
		Balance:     float64(i.Remaining()) / 100,
	})
}

// BeforeCreate generates a UUID before creating a new invoice
func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the Invoice model
func (Invoice) TableName() string {
	return "invoices"
}

// Remaining returns the unpaid balance in cents
func (i *Invoice) Remaining() int64 {
	return i.TotalAmount - i.PaidAmount
}

// IsOpen reports whether the invoice still accepts payments
func (i *Invoice) IsOpen() bool {
	return i.Status != enum.InvoiceStatusPaid
}

// InvoiceItem is one immutable line on an invoice. The optional source
// references point back at the record that produced the charge.
type InvoiceItem struct {
	ID             uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	InvoiceID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"invoice_id"`
	Description    string     `gorm:"size:255;not null" json:"description"`
	UnitPrice      int64      `gorm:"not null" json:"-"` // Stored in cents, excluded from JSON
	Quantity       int        `gorm:"not null" json:"quantity"`
	TotalPrice     int64      `gorm:"not null" json:"-"` // Stored in cents, excluded from JSON
	PrescriptionID *uuid.UUID `gorm:"type:uuid" json:"prescription_id,omitempty"`
	LabOrderID     *uuid.UUID `gorm:"type:uuid" json:"lab_order_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	// Relationships
	Invoice Invoice `gorm:"foreignKey:InvoiceID" json:"-"`
}

// MarshalJSON custom marshaler to convert cents to decimal for API responses
func (it InvoiceItem) MarshalJSON() ([]byte, error) {
	type Alias InvoiceItem
	return json.Marshal(&struct {
		Alias
		UnitPrice  float64 `json:"unit_price"`
		TotalPrice float64 `json:"total_price"`
	}{
		Alias:      Alias(it),
		UnitPrice:  float64(it.UnitPrice) / 100,
		TotalPrice: float64(it.TotalPrice) / 100,
	})
}

// BeforeCreate generates a UUID before creating a new invoice item
func (it *InvoiceItem) BeforeCreate(tx *gorm.DB) error {
	if it.ID == uuid.Nil {
		it.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the InvoiceItem model
func (InvoiceItem) TableName() string {
	return "invoice_items"
}
