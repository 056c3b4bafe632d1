package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afyacare/clinic-api/internal/domain/enum"
	"github.com/afyacare/clinic-api/pkg/apperror"
	"github.com/afyacare/clinic-api/pkg/pagination"
)

func TestCreateMedication(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.pharmacyService.CreateMedication(ctx, &CreateMedicationInput{
		Name:            "Paracetamol 500mg",
		Code:            "MED-PARA-500",
		QuantityInStock: 100,
		ReorderLevel:    20,
		UnitPrice:       1500,
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)

	t.Run("duplicate code is rejected", func(t *testing.T) {
		_, err := env.pharmacyService.CreateMedication(ctx, &CreateMedicationInput{
			Name: "Paracetamol generic",
			Code: "MED-PARA-500",
		})
		require.Error(t, err)
		assert.Equal(t, 409, apperror.GetAppError(err).Code)
	})

	t.Run("appears in the formulary listing", func(t *testing.T) {
		medications, total, err := env.pharmacyService.ListMedications(ctx, &pagination.PaginationParams{Page: 1, PerPage: 10}, "Paracetamol")
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, medications, 1)
		assert.Equal(t, "MED-PARA-500", medications[0].Code)
	})
}

func TestDispense(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	medication := env.createMedication(t, "MED-AMOX-250", 5, 4500)

	visit := env.checkIn(t)
	env.advanceToPharmacy(t, visit.ID, PrescriptionInput{
		MedicationID: medication.ID,
		Quantity:     3,
		Dosage:       "1x3 for 5 days",
	})

	prescriptions, err := env.pharmacyService.PendingPrescriptions(ctx, visit.ID)
	require.NoError(t, err)
	require.Len(t, prescriptions, 1)

	dispensed, err := env.pharmacyService.Dispense(ctx, &DispenseInput{
		PrescriptionID: prescriptions[0].ID,
		ActorID:        env.actorID,
	})
	require.NoError(t, err)
	assert.Equal(t, enum.PrescriptionStatusDispensed, dispensed.Status)
	require.NotNil(t, dispensed.DispensedAt)

	// Stock deducted exactly once
	reloaded, err := env.medicationRepo.GetByID(ctx, medication.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.QuantityInStock)

	t.Run("already dispensed prescription is rejected", func(t *testing.T) {
		_, err := env.pharmacyService.Dispense(ctx, &DispenseInput{
			PrescriptionID: prescriptions[0].ID,
			ActorID:        env.actorID,
		})
		require.Error(t, err)
		assert.Equal(t, 409, apperror.GetAppError(err).Code)

		// The rejected attempt deducted nothing
		unchanged, err := env.medicationRepo.GetByID(ctx, medication.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, unchanged.QuantityInStock)
	})

	t.Run("pharmacy stage completes once nothing is pending", func(t *testing.T) {
		advanced := env.completeStage(t, visit.ID, &CompleteStageInput{
			Stage:     enum.StagePharmacy,
			ActorRole: enum.RolePharmacist,
		})
		assert.Equal(t, enum.StageBilling, advanced.CurrentStage)
	})
}

func TestDispense_InsufficientStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	medication := env.createMedication(t, "MED-IBU-400", 2, 2000)

	visit := env.checkIn(t)
	env.advanceToPharmacy(t, visit.ID, PrescriptionInput{
		MedicationID: medication.ID,
		Quantity:     3,
		Dosage:       "1x2 for 3 days",
	})

	prescriptions, err := env.pharmacyService.PendingPrescriptions(ctx, visit.ID)
	require.NoError(t, err)
	require.Len(t, prescriptions, 1)

	_, err = env.pharmacyService.Dispense(ctx, &DispenseInput{
		PrescriptionID: prescriptions[0].ID,
		ActorID:        env.actorID,
	})
	assert.ErrorIs(t, err, apperror.ErrInsufficientStock)

	// Nothing was deducted and the prescription stays pending
	unchanged, err := env.medicationRepo.GetByID(ctx, medication.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, unchanged.QuantityInStock)

	pending, err := env.pharmacyService.PendingPrescriptions(ctx, visit.ID)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	t.Run("pharmacy stage is blocked while prescriptions are pending", func(t *testing.T) {
		_, err := env.visitService.CompleteStage(ctx, &CompleteStageInput{
			VisitID:   visit.ID,
			Stage:     enum.StagePharmacy,
			ActorID:   env.actorID,
			ActorRole: enum.RolePharmacist,
		})
		assert.True(t, apperror.IsStageGuardViolation(err))
	})

	t.Run("restock unblocks the dispense", func(t *testing.T) {
		_, err := env.pharmacyService.Restock(ctx, &RestockInput{
			MedicationID: medication.ID,
			Quantity:     10,
			ActorID:      env.actorID,
		})
		require.NoError(t, err)

		dispensed, err := env.pharmacyService.Dispense(ctx, &DispenseInput{
			PrescriptionID: prescriptions[0].ID,
			ActorID:        env.actorID,
		})
		require.NoError(t, err)
		assert.Equal(t, enum.PrescriptionStatusDispensed, dispensed.Status)

		reloaded, err := env.medicationRepo.GetByID(ctx, medication.ID)
		require.NoError(t, err)
		assert.Equal(t, 9, reloaded.QuantityInStock)
	})
}

func TestDispense_VisitNotAtPharmacy(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	medication := env.createMedication(t, "MED-CETI-10", 50, 1200)

	visit := env.checkIn(t)
	env.completeStage(t, visit.ID, &CompleteStageInput{Stage: enum.StageReception, ActorRole: enum.RoleReceptionist})
	env.completeStage(t, visit.ID, &CompleteStageInput{Stage: enum.StageNurse, ActorRole: enum.RoleNurse, Vitals: testVitals()})

	// Doctor routes through the lab, leaving the prescription behind
	env.completeStage(t, visit.ID, &CompleteStageInput{
		Stage:         enum.StageDoctor,
		ActorRole:     enum.RoleDoctor,
		Prescriptions: []PrescriptionInput{{MedicationID: medication.ID, Quantity: 1, Dosage: "1x1"}},
		LabOrders:     []LabOrderInput{{TestName: "Allergy panel", Price: 250000}},
	})

	prescriptions, err := env.pharmacyService.PendingPrescriptions(ctx, visit.ID)
	require.NoError(t, err)
	require.Len(t, prescriptions, 1)

	_, err = env.pharmacyService.Dispense(ctx, &DispenseInput{
		PrescriptionID: prescriptions[0].ID,
		ActorID:        env.actorID,
	})
	require.Error(t, err)
	assert.Equal(t, 409, apperror.GetAppError(err).Code)
}

func TestRestock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	medication := env.createMedication(t, "MED-ORS-1", 1, 500)

	t.Run("non-positive quantity is rejected", func(t *testing.T) {
		_, err := env.pharmacyService.Restock(ctx, &RestockInput{
			MedicationID: medication.ID,
			Quantity:     0,
			ActorID:      env.actorID,
		})
		require.Error(t, err)
		assert.Equal(t, 400, apperror.GetAppError(err).Code)
	})

	t.Run("unknown medication", func(t *testing.T) {
		_, err := env.pharmacyService.Restock(ctx, &RestockInput{
			MedicationID: uuid.New(),
			Quantity:     5,
			ActorID:      env.actorID,
		})
		require.Error(t, err)
		assert.Equal(t, 404, apperror.GetAppError(err).Code)
	})

	t.Run("adds received stock", func(t *testing.T) {
		updated, err := env.pharmacyService.Restock(ctx, &RestockInput{
			MedicationID: medication.ID,
			Quantity:     24,
			ActorID:      env.actorID,
		})
		require.NoError(t, err)
		assert.Equal(t, 25, updated.QuantityInStock)
	})
}

func TestLowStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// ReorderLevel is 2 in the fixture
	env.createMedication(t, "MED-LOW-1", 1, 1000)
	env.createMedication(t, "MED-LOW-2", 2, 1000)
	env.createMedication(t, "MED-OK-1", 30, 1000)

	low, err := env.pharmacyService.LowStock(ctx)
	require.NoError(t, err)
	require.Len(t, low, 2)
	for _, m := range low {
		assert.True(t, m.IsLowStock())
	}
}
