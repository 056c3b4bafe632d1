package entity

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/afyacare/clinic-api/internal/domain/enum"
)

// Visit represents one clinical encounter tracked through the stage workflow.
// Version backs the optimistic concurrency check: every committed stage
// transition increments it, and writers supply the version they read.
type Visit struct {
	ID           uuid.UUID        `gorm:"type:uuid;primary_key" json:"id"`
	PatientID    uuid.UUID        `gorm:"type:uuid;not null;index" json:"patient_id"`
	CurrentStage enum.VisitStage  `gorm:"default:0;index" json:"current_stage"`
	Status       enum.VisitStatus `gorm:"default:0;index" json:"status"`
	Version      int64            `gorm:"default:0" json:"version"`
	Vitals       *Vitals          `gorm:"serializer:json" json:"vitals,omitempty"`
	Diagnosis    string           `gorm:"type:text" json:"diagnosis,omitempty"`
	CheckedInBy  uuid.UUID        `gorm:"type:uuid" json:"checked_in_by"`
	CompletedAt  *time.Time       `json:"completed_at,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	DeletedAt    gorm.DeletedAt   `gorm:"index" json:"-"`

	// Relationships
	Patient Patient      `gorm:"foreignKey:PatientID" json:"patient,omitempty"`
	Stages  []VisitStage `gorm:"foreignKey:VisitID" json:"stages,omitempty"`
}

// BeforeCreate generates a UUID before creating a new visit
func (v *Visit) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the Visit model
func (Visit) TableName() string {
	return "visits"
}

// StageRecord returns the sub-state row for the given stage, or nil
func (v *Visit) StageRecord(stage enum.VisitStage) *VisitStage {
	for i := range v.Stages {
		if v.Stages[i].Stage == stage {
			return &v.Stages[i]
		}
	}
	return nil
}

// VisitStage holds the per-stage sub-state of a visit
type VisitStage struct {
	ID          uuid.UUID        `gorm:"type:uuid;primary_key" json:"id"`
	VisitID     uuid.UUID        `gorm:"type:uuid;not null;index:idx_visit_stage,unique" json:"visit_id"`
	Stage       enum.VisitStage  `gorm:"not null;index:idx_visit_stage,unique" json:"stage"`
	Status      enum.StageStatus `gorm:"default:0" json:"status"`
	Notes       string           `gorm:"type:text" json:"notes,omitempty"`
	CompletedBy *uuid.UUID       `gorm:"type:uuid" json:"completed_by,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// BeforeCreate generates a UUID before creating a new visit stage row
func (s *VisitStage) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the VisitStage model
func (VisitStage) TableName() string {
	return "visit_stages"
}

// DoctorOrders carries the prescriptions and lab orders written at the
// Doctor stage. They persist in the same transaction as the stage
// transition, so an advanced visit never loses its orders.
type DoctorOrders struct {
	Prescriptions []Prescription
	LabOrders     []LabOrder
}

// IsEmpty reports whether the doctor ordered anything
func (d *DoctorOrders) IsEmpty() bool {
	return d == nil || (len(d.Prescriptions) == 0 && len(d.LabOrders) == 0)
}

// Vitals is the nurse-recorded measurement set. It is written once at the
// Nurse stage and read-only afterward. All fields are optional; present
// values are range-checked at write time.
type Vitals struct {
	SystolicBP  *int     `json:"systolic_bp,omitempty"`
	DiastolicBP *int     `json:"diastolic_bp,omitempty"`
	HeartRate   *int     `json:"heart_rate,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	SpO2        *int     `json:"spo2,omitempty"`
	WeightKg    *float64 `json:"weight_kg,omitempty"`
	HeightCm    *float64 `json:"height_cm,omitempty"`
}

// Validate range-checks every present measurement
func (v *Vitals) Validate() error {
	if v.SystolicBP != nil && (*v.SystolicBP < 50 || *v.SystolicBP > 300) {
		return errors.New("systolic blood pressure out of range")
	}
	if v.DiastolicBP != nil && (*v.DiastolicBP < 20 || *v.DiastolicBP > 200) {
		return errors.New("diastolic blood pressure out of range")
	}
	if v.HeartRate != nil && (*v.HeartRate < 20 || *v.HeartRate > 300) {
		return errors.New("heart rate out of range")
	}
	if v.Temperature != nil && (*v.Temperature < 25 || *v.Temperature > 45) {
		return errors.New("temperature out of range")
	}
	if v.SpO2 != nil && (*v.SpO2 < 40 || *v.SpO2 > 100) {
		return errors.New("SpO2 out of range")
	}
	if v.WeightKg != nil && (*v.WeightKg <= 0 || *v.WeightKg > 500) {
		return errors.New("weight out of range")
	}
	if v.HeightCm != nil && (*v.HeightCm <= 0 || *v.HeightCm > 280) {
		return errors.New("height out of range")
	}
	return nil
}
