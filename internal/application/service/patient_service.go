package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/afyacare/clinic-api/internal/domain/entity"
	"github.com/afyacare/clinic-api/internal/domain/repository"
	"github.com/afyacare/clinic-api/pkg/apperror"
	"github.com/afyacare/clinic-api/pkg/pagination"
)

// PatientService handles patient registration and lookups
type PatientService struct {
	patientRepo repository.PatientRepository
}

// NewPatientService creates a new patient service
func NewPatientService(patientRepo repository.PatientRepository) *PatientService {
	return &PatientService{patientRepo: patientRepo}
}

// RegisterPatientInput represents a patient registration
type RegisterPatientInput struct {
	FirstName    string
	LastName     string
	Phone        string
	Sex          string
	DateOfBirth  *time.Time
	RegisteredBy uuid.UUID
}

// Register creates a new patient record
func (s *PatientService) Register(ctx context.Context, input *RegisterPatientInput) (*entity.Patient, error) {
	if input.FirstName == "" {
		return nil, apperror.NewBadRequestError("First name is required")
	}

	patient := &entity.Patient{
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Phone:        input.Phone,
		Sex:          input.Sex,
		DateOfBirth:  input.DateOfBirth,
		RegisteredBy: input.RegisteredBy,
	}
	if err := s.patientRepo.Create(ctx, patient); err != nil {
		return nil, err
	}
	return patient, nil
}

// Get retrieves a patient by ID
func (s *PatientService) Get(ctx context.Context, id uuid.UUID) (*entity.Patient, error) {
	patient, err := s.patientRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if patient == nil {
		return nil, apperror.NewNotFoundError("Patient")
	}
	return patient, nil
}

// List lists patients with search and pagination
func (s *PatientService) List(ctx context.Context, params *pagination.PaginationParams, search string) ([]entity.Patient, int64, error) {
	return s.patientRepo.List(ctx, params, search)
}
