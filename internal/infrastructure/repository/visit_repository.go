package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/afyacare/clinic-api/internal/domain/entity"
	"github.com/afyacare/clinic-api/internal/domain/enum"
	domainRepo "github.com/afyacare/clinic-api/internal/domain/repository"
)

type visitRepository struct {
	db *gorm.DB
}

// NewVisitRepository creates a new visit repository
func NewVisitRepository(db *gorm.DB) domainRepo.VisitRepository {
	return &visitRepository{db: db}
}

func (r *visitRepository) Create(ctx context.Context, visit *entity.Visit, stages []entity.VisitStage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(visit).Error; err != nil {
			return err
		}
		for i := range stages {
			stages[i].VisitID = visit.ID
		}
		if len(stages) > 0 {
			if err := tx.Create(&stages).Error; err != nil {
				return err
			}
		}
		visit.Stages = stages
		return nil
	})
}

func (r *visitRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Visit, error) {
	var visit entity.Visit
	err := r.db.WithContext(ctx).First(&visit, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &visit, err
}

func (r *visitRepository) GetWithStages(ctx context.Context, id uuid.UUID) (*entity.Visit, error) {
	var visit entity.Visit
	err := r.db.WithContext(ctx).
		Preload("Patient").
		Preload("Stages", func(db *gorm.DB) *gorm.DB {
			return db.Order("stage ASC")
		}).
		First(&visit, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &visit, err
}

func (r *visitRepository) GetActiveByPatient(ctx context.Context, patientID uuid.UUID) (*entity.Visit, error) {
	var visit entity.Visit
	err := r.db.WithContext(ctx).
		Preload("Stages", func(db *gorm.DB) *gorm.DB {
			return db.Order("stage ASC")
		}).
		First(&visit, "patient_id = ? AND status = ?", patientID, enum.VisitStatusActive).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &visit, err
}

func (r *visitRepository) List(ctx context.Context, params *domainRepo.VisitFilterParams) ([]entity.Visit, int64, error) {
	var visits []entity.Visit
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Visit{})

	if params.PatientID != nil {
		query = query.Where("patient_id = ?", *params.PatientID)
	}
	if params.Stage != nil {
		query = query.Where("current_stage = ?", *params.Stage)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.StartDate != nil {
		query = query.Where("created_at >= ?", *params.StartDate)
	}
	if params.EndDate != nil {
		query = query.Where("created_at <= ?", *params.EndDate)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	params.Pagination.Validate()
	err := query.Offset(params.Pagination.Offset()).Limit(params.Pagination.PerPage).
		Preload("Patient").
		Order("created_at DESC").
		Find(&visits).Error

	return visits, total, err
}

// CommitTransition writes the visit header, the touched stage rows, and the
// doctor orders in one transaction. The header update is guarded by the
// version the caller read; when another writer got there first no rows match
// and nothing is written.
func (r *visitRepository) CommitTransition(ctx context.Context, visit *entity.Visit, expectedVersion int64, orders *entity.DoctorOrders, stages ...*entity.VisitStage) (bool, error) {
	committed := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"current_stage": visit.CurrentStage,
			"status":        visit.Status,
			"version":       expectedVersion + 1,
			"diagnosis":     visit.Diagnosis,
		}
		// Map updates bypass GORM field serializers, so the vitals column
		// gets its JSON encoding by hand
		if visit.Vitals != nil {
			encoded, err := json.Marshal(visit.Vitals)
			if err != nil {
				return err
			}
			updates["vitals"] = string(encoded)
		} else {
			updates["vitals"] = nil
		}
		if visit.CompletedAt != nil {
			updates["completed_at"] = *visit.CompletedAt
		}

		result := tx.Model(&entity.Visit{}).
			Where("id = ? AND version = ? AND status = ?", visit.ID, expectedVersion, enum.VisitStatusActive).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}

		for _, stage := range stages {
			if err := tx.Save(stage).Error; err != nil {
				return err
			}
		}

		if !orders.IsEmpty() {
			if len(orders.Prescriptions) > 0 {
				if err := tx.Create(&orders.Prescriptions).Error; err != nil {
					return err
				}
			}
			if len(orders.LabOrders) > 0 {
				if err := tx.Create(&orders.LabOrders).Error; err != nil {
					return err
				}
			}
		}

		committed = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if committed {
		visit.Version = expectedVersion + 1
	}
	return committed, nil
}

func (r *visitRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status enum.VisitStatus, expectedVersion int64, completedAt *time.Time) (bool, error) {
	updates := map[string]interface{}{
		"status":  status,
		"version": expectedVersion + 1,
	}
	if status == enum.VisitStatusCompleted {
		updates["current_stage"] = enum.StageCompleted
	}
	if completedAt != nil {
		updates["completed_at"] = *completedAt
	}

	result := r.db.WithContext(ctx).Model(&entity.Visit{}).
		Where("id = ? AND version = ? AND status = ?", id, expectedVersion, enum.VisitStatusActive).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
