package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afyacare/clinic-api/internal/domain/entity"
	"github.com/afyacare/clinic-api/internal/domain/enum"
	"github.com/afyacare/clinic-api/pkg/apperror"
)

func TestCheckIn(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("opens a visit at reception with all stage rows", func(t *testing.T) {
		visit := env.checkIn(t)

		assert.Equal(t, enum.StageReception, visit.CurrentStage)
		assert.Equal(t, enum.VisitStatusActive, visit.Status)
		assert.Len(t, visit.Stages, 6)

		loaded, err := env.visitRepo.GetWithStages(ctx, visit.ID)
		require.NoError(t, err)
		assert.Equal(t, enum.StageStatusInProgress, loaded.StageRecord(enum.StageReception).Status)
		assert.Equal(t, enum.StageStatusPending, loaded.StageRecord(enum.StageBilling).Status)
	})

	t.Run("rejects a second active visit for the same patient", func(t *testing.T) {
		visit := env.checkIn(t)

		_, err := env.visitService.CheckIn(ctx, &CheckInInput{
			PatientID:   visit.PatientID,
			CheckedInBy: env.actorID,
		})
		assert.ErrorIs(t, err, apperror.ErrVisitAlreadyActive)
	})

	t.Run("rejects an unknown patient", func(t *testing.T) {
		_, err := env.visitService.CheckIn(ctx, &CheckInInput{
			PatientID:   uuid.New(),
			CheckedInBy: env.actorID,
		})
		require.Error(t, err)
		appErr := apperror.GetAppError(err)
		assert.Equal(t, 404, appErr.Code)
	})
}

func TestCompleteStage_ForwardPath(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	visit := env.checkIn(t)

	visit = env.completeStage(t, visit.ID, &CompleteStageInput{
		Stage:     enum.StageReception,
		ActorRole: enum.RoleReceptionist,
	})
	assert.Equal(t, enum.StageNurse, visit.CurrentStage)
	assert.Equal(t, int64(1), visit.Version)

	visit = env.completeStage(t, visit.ID, &CompleteStageInput{
		Stage:     enum.StageNurse,
		ActorRole: enum.RoleNurse,
		Vitals:    testVitals(),
	})
	assert.Equal(t, enum.StageDoctor, visit.CurrentStage)
	assert.Equal(t, int64(2), visit.Version)

	visit = env.completeStage(t, visit.ID, &CompleteStageInput{
		Stage:     enum.StageDoctor,
		ActorRole: enum.RoleDoctor,
		Diagnosis: "Seasonal flu",
	})
	assert.Equal(t, enum.StagePharmacy, visit.CurrentStage)

	// No lab detour, so the lab row is carried as skipped
	loaded, err := env.visitRepo.GetWithStages(ctx, visit.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.StageStatusSkipped, loaded.StageRecord(enum.StageLab).Status)
	assert.Equal(t, "Seasonal flu", loaded.Diagnosis)
	require.NotNil(t, loaded.Vitals)
	assert.Equal(t, 120, *loaded.Vitals.SystolicBP)
	assert.Equal(t, 80, *loaded.Vitals.DiastolicBP)
	assert.Equal(t, 36.8, *loaded.Vitals.Temperature)

	visit = env.completeStage(t, visit.ID, &CompleteStageInput{
		Stage:     enum.StagePharmacy,
		ActorRole: enum.RolePharmacist,
	})
	assert.Equal(t, enum.StageBilling, visit.CurrentStage)

	// Entering billing composed the invoice
	invoice := env.openInvoice(t, visit.ID)
	assert.Equal(t, testConsultationFee, invoice.TotalAmount)
	assert.Equal(t, enum.InvoiceStatusUnpaid, invoice.Status)
}

func TestCompleteStage_Guards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("billing never completes by hand", func(t *testing.T) {
		visit := env.checkIn(t)
		env.advanceToBilling(t, visit.ID)

		_, err := env.visitService.CompleteStage(ctx, &CompleteStageInput{
			VisitID:   visit.ID,
			Stage:     enum.StageBilling,
			ActorID:   env.actorID,
			ActorRole: enum.RoleAccountant,
		})
		assert.True(t, apperror.IsStageGuardViolation(err))
	})

	t.Run("stage out of order is rejected", func(t *testing.T) {
		visit := env.checkIn(t)

		_, err := env.visitService.CompleteStage(ctx, &CompleteStageInput{
			VisitID:   visit.ID,
			Stage:     enum.StageDoctor,
			ActorID:   env.actorID,
			ActorRole: enum.RoleDoctor,
		})
		assert.True(t, apperror.IsStageGuardViolation(err))
	})

	t.Run("unrelated role is rejected", func(t *testing.T) {
		visit := env.checkIn(t)

		_, err := env.visitService.CompleteStage(ctx, &CompleteStageInput{
			VisitID:   visit.ID,
			Stage:     enum.StageReception,
			ActorID:   env.actorID,
			ActorRole: enum.RolePharmacist,
		})
		assert.True(t, apperror.IsStageGuardViolation(err))
	})

	t.Run("nurse stage requires vitals", func(t *testing.T) {
		visit := env.checkIn(t)
		env.completeStage(t, visit.ID, &CompleteStageInput{Stage: enum.StageReception, ActorRole: enum.RoleReceptionist})

		_, err := env.visitService.CompleteStage(ctx, &CompleteStageInput{
			VisitID:   visit.ID,
			Stage:     enum.StageNurse,
			ActorID:   env.actorID,
			ActorRole: enum.RoleNurse,
		})
		require.Error(t, err)
		assert.Equal(t, 400, apperror.GetAppError(err).Code)
	})

	t.Run("out of range vitals are rejected", func(t *testing.T) {
		visit := env.checkIn(t)
		env.completeStage(t, visit.ID, &CompleteStageInput{Stage: enum.StageReception, ActorRole: enum.RoleReceptionist})

		heartRate := 900
		_, err := env.visitService.CompleteStage(ctx, &CompleteStageInput{
			VisitID:   visit.ID,
			Stage:     enum.StageNurse,
			ActorID:   env.actorID,
			ActorRole: enum.RoleNurse,
			Vitals:    &entity.Vitals{HeartRate: &heartRate},
		})
		require.Error(t, err)
		assert.Equal(t, 400, apperror.GetAppError(err).Code)
	})

	t.Run("unknown visit", func(t *testing.T) {
		_, err := env.visitService.CompleteStage(ctx, &CompleteStageInput{
			VisitID:   uuid.New(),
			Stage:     enum.StageReception,
			ActorID:   env.actorID,
			ActorRole: enum.RoleReceptionist,
		})
		require.Error(t, err)
		assert.Equal(t, 404, apperror.GetAppError(err).Code)
	})
}

func TestCommitTransition_StaleVersion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	visit := env.checkIn(t)
	loaded, err := env.visitRepo.GetWithStages(ctx, visit.ID)
	require.NoError(t, err)

	// A writer holding the version it read wins exactly once
	loaded.CurrentStage = enum.StageNurse
	committed, err := env.visitRepo.CommitTransition(ctx, loaded, 0, nil)
	require.NoError(t, err)
	assert.True(t, committed)
	assert.Equal(t, int64(1), loaded.Version)

	// The same expected version loses the second time around, and the
	// orders it carried roll back with it
	stale, err := env.visitRepo.GetWithStages(ctx, visit.ID)
	require.NoError(t, err)
	stale.CurrentStage = enum.StageDoctor
	staleOrders := &entity.DoctorOrders{
		LabOrders: []entity.LabOrder{
			{VisitID: visit.ID, TestName: "Urinalysis", Price: 50000, Status: enum.LabOrderStatusOrdered, OrderedBy: env.actorID},
		},
	}
	committed, err = env.visitRepo.CommitTransition(ctx, stale, 0, staleOrders)
	require.NoError(t, err)
	assert.False(t, committed)

	unchanged, err := env.visitRepo.GetByID(ctx, visit.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.StageNurse, unchanged.CurrentStage)
	assert.Equal(t, int64(1), unchanged.Version)

	orders, err := env.labOrderRepo.GetByVisit(ctx, visit.ID)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestLabDetour(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	visit := env.checkIn(t)
	env.completeStage(t, visit.ID, &CompleteStageInput{Stage: enum.StageReception, ActorRole: enum.RoleReceptionist})
	env.completeStage(t, visit.ID, &CompleteStageInput{Stage: enum.StageNurse, ActorRole: enum.RoleNurse, Vitals: testVitals()})

	// Ordering a test routes the visit to the lab instead of the pharmacy
	updated := env.completeStage(t, visit.ID, &CompleteStageInput{
		Stage:     enum.StageDoctor,
		ActorRole: enum.RoleDoctor,
		Diagnosis: "Suspected malaria",
		LabOrders: []LabOrderInput{
			{TestName: "Malaria smear", Price: 80000},
			{TestName: "Full blood count", Price: 120000},
		},
	})
	assert.Equal(t, enum.StageLab, updated.CurrentStage)

	orders, err := env.labOrderRepo.GetByVisit(ctx, visit.ID)
	require.NoError(t, err)
	require.Len(t, orders, 2)

	t.Run("lab stage cannot complete with outstanding orders", func(t *testing.T) {
		_, err := env.visitService.CompleteStage(ctx, &CompleteStageInput{
			VisitID:   visit.ID,
			Stage:     enum.StageLab,
			ActorID:   env.actorID,
			ActorRole: enum.RoleLabTech,
		})
		assert.True(t, apperror.IsStageGuardViolation(err))
	})

	t.Run("last result routes the visit back to the doctor", func(t *testing.T) {
		_, err := env.visitService.CompleteLabOrder(ctx, &CompleteLabOrderInput{
			OrderID:   orders[0].ID,
			Result:    "Negative",
			ActorID:   env.actorID,
			ActorRole: enum.RoleLabTech,
		})
		require.NoError(t, err)

		midway, err := env.visitRepo.GetByID(ctx, visit.ID)
		require.NoError(t, err)
		assert.Equal(t, enum.StageLab, midway.CurrentStage)

		_, err = env.visitService.CompleteLabOrder(ctx, &CompleteLabOrderInput{
			OrderID:   orders[1].ID,
			Result:    "Within normal range",
			ActorID:   env.actorID,
			ActorRole: enum.RoleLabTech,
		})
		require.NoError(t, err)

		back, err := env.visitRepo.GetWithStages(ctx, visit.ID)
		require.NoError(t, err)
		assert.Equal(t, enum.StageDoctor, back.CurrentStage)

		// The doctor stage re-opened for the result review
		doctorRow := back.StageRecord(enum.StageDoctor)
		assert.Equal(t, enum.StageStatusInProgress, doctorRow.Status)
		assert.Nil(t, doctorRow.CompletedBy)
		assert.Equal(t, enum.StageStatusCompleted, back.StageRecord(enum.StageLab).Status)
	})

	t.Run("completed lab order cannot be completed twice", func(t *testing.T) {
		_, err := env.visitService.CompleteLabOrder(ctx, &CompleteLabOrderInput{
			OrderID:   orders[0].ID,
			Result:    "Negative",
			ActorID:   env.actorID,
			ActorRole: enum.RoleLabTech,
		})
		require.Error(t, err)
		assert.Equal(t, 409, apperror.GetAppError(err).Code)
	})

	t.Run("second doctor pass proceeds to pharmacy keeping the lab row", func(t *testing.T) {
		after := env.completeStage(t, visit.ID, &CompleteStageInput{
			Stage:     enum.StageDoctor,
			ActorRole: enum.RoleDoctor,
			Diagnosis: "Malaria ruled out",
		})
		assert.Equal(t, enum.StagePharmacy, after.CurrentStage)

		final, err := env.visitRepo.GetWithStages(ctx, visit.ID)
		require.NoError(t, err)
		assert.Equal(t, enum.StageStatusCompleted, final.StageRecord(enum.StageLab).Status)
	})
}

func TestCancelVisit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	visit := env.checkIn(t)

	cancelled, err := env.visitService.CancelVisit(ctx, &CancelVisitInput{
		VisitID: visit.ID,
		Reason:  "patient left",
		ActorID: env.actorID,
	})
	require.NoError(t, err)
	assert.Equal(t, enum.VisitStatusCancelled, cancelled.Status)

	t.Run("cancelled visit cannot be cancelled again", func(t *testing.T) {
		_, err := env.visitService.CancelVisit(ctx, &CancelVisitInput{
			VisitID: visit.ID,
			ActorID: env.actorID,
		})
		require.Error(t, err)
		assert.Equal(t, 409, apperror.GetAppError(err).Code)
	})

	t.Run("cancelled visit accepts no stage completion", func(t *testing.T) {
		_, err := env.visitService.CompleteStage(ctx, &CompleteStageInput{
			VisitID:   visit.ID,
			Stage:     enum.StageReception,
			ActorID:   env.actorID,
			ActorRole: enum.RoleReceptionist,
		})
		assert.True(t, apperror.IsStageGuardViolation(err))
	})

	t.Run("patient can check in again after cancellation", func(t *testing.T) {
		fresh, err := env.visitService.CheckIn(ctx, &CheckInInput{
			PatientID:   visit.PatientID,
			CheckedInBy: env.actorID,
		})
		require.NoError(t, err)
		assert.Equal(t, enum.VisitStatusActive, fresh.Status)
	})
}

func TestGetActiveVisit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("returns the active visit", func(t *testing.T) {
		visit := env.checkIn(t)
		active, err := env.visitService.GetActiveVisit(ctx, visit.PatientID)
		require.NoError(t, err)
		assert.Equal(t, visit.ID, active.ID)
	})

	t.Run("no active visit", func(t *testing.T) {
		patient := env.createPatient(t)
		_, err := env.visitService.GetActiveVisit(ctx, patient.ID)
		assert.ErrorIs(t, err, apperror.ErrNoActiveVisit)
	})
}
