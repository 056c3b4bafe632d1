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

func TestComposeInvoice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	medication := env.createMedication(t, "MED-AML-5", 40, 3200)

	visit := env.checkIn(t)
	env.completeStage(t, visit.ID, &CompleteStageInput{Stage: enum.StageReception, ActorRole: enum.RoleReceptionist})
	env.completeStage(t, visit.ID, &CompleteStageInput{Stage: enum.StageNurse, ActorRole: enum.RoleNurse, Vitals: testVitals()})
	env.completeStage(t, visit.ID, &CompleteStageInput{
		Stage:         enum.StageDoctor,
		ActorRole:     enum.RoleDoctor,
		Diagnosis:     "Hypertension follow-up",
		Prescriptions: []PrescriptionInput{{MedicationID: medication.ID, Quantity: 2, Dosage: "1x1 mornings"}},
		LabOrders:     []LabOrderInput{{TestName: "Lipid profile", Price: 150000}},
	})

	orders, err := env.labOrderRepo.GetByVisit(ctx, visit.ID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	_, err = env.visitService.CompleteLabOrder(ctx, &CompleteLabOrderInput{
		OrderID:   orders[0].ID,
		Result:    "LDL elevated",
		ActorID:   env.actorID,
		ActorRole: enum.RoleLabTech,
	})
	require.NoError(t, err)

	env.completeStage(t, visit.ID, &CompleteStageInput{Stage: enum.StageDoctor, ActorRole: enum.RoleDoctor})

	prescriptions, err := env.pharmacyService.PendingPrescriptions(ctx, visit.ID)
	require.NoError(t, err)
	require.Len(t, prescriptions, 1)
	_, err = env.pharmacyService.Dispense(ctx, &DispenseInput{PrescriptionID: prescriptions[0].ID, ActorID: env.actorID})
	require.NoError(t, err)

	env.completeStage(t, visit.ID, &CompleteStageInput{Stage: enum.StagePharmacy, ActorRole: enum.RolePharmacist})

	// Consultation + 2 x amlodipine + lipid profile
	invoice := env.openInvoice(t, visit.ID)
	wantTotal := testConsultationFee + 2*3200 + 150000
	assert.Equal(t, wantTotal, invoice.TotalAmount)
	assert.Equal(t, enum.InvoiceStatusUnpaid, invoice.Status)

	full, err := env.billingService.GetInvoice(ctx, invoice.ID)
	require.NoError(t, err)
	require.Len(t, full.Items, 3)

	t.Run("second composition returns the open invoice", func(t *testing.T) {
		again, err := env.billingService.ComposeInvoice(ctx, visit.ID, env.actorID)
		assert.ErrorIs(t, err, apperror.ErrInvoiceAlreadyOpen)
		require.NotNil(t, again)
		assert.Equal(t, invoice.ID, again.ID)
	})
}

func TestComposeInvoice_Guards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("unknown visit", func(t *testing.T) {
		_, err := env.billingService.ComposeInvoice(ctx, uuid.New(), env.actorID)
		require.Error(t, err)
		assert.Equal(t, 404, apperror.GetAppError(err).Code)
	})

	t.Run("cancelled visit is not billable", func(t *testing.T) {
		visit := env.checkIn(t)
		_, err := env.visitService.CancelVisit(ctx, &CancelVisitInput{VisitID: visit.ID, ActorID: env.actorID})
		require.NoError(t, err)

		_, err = env.billingService.ComposeInvoice(ctx, visit.ID, env.actorID)
		require.Error(t, err)
		assert.Equal(t, 409, apperror.GetAppError(err).Code)
	})
}

func TestApplyPayment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	visit := env.checkIn(t)
	env.advanceToBilling(t, visit.ID)
	invoice := env.openInvoice(t, visit.ID)

	half := invoice.TotalAmount / 2

	t.Run("partial payment leaves the invoice open and the visit at billing", func(t *testing.T) {
		payment, err := env.billingService.ApplyPayment(ctx, &ApplyPaymentInput{
			InvoiceID:  invoice.ID,
			Amount:     half,
			Method:     enum.PaymentMethodCash,
			ReceivedBy: env.actorID,
		})
		require.NoError(t, err)
		assert.Equal(t, enum.PaymentStatusCompleted, payment.Status)
		assert.NotEmpty(t, payment.Reference)

		reloaded, err := env.invoiceRepo.GetByID(ctx, invoice.ID)
		require.NoError(t, err)
		assert.Equal(t, half, reloaded.PaidAmount)
		assert.Equal(t, enum.InvoiceStatusPartiallyPaid, reloaded.Status)

		openVisit, err := env.visitRepo.GetByID(ctx, visit.ID)
		require.NoError(t, err)
		assert.Equal(t, enum.VisitStatusActive, openVisit.Status)
		assert.Equal(t, enum.StageBilling, openVisit.CurrentStage)
	})

	t.Run("overpayment is rejected", func(t *testing.T) {
		_, err := env.billingService.ApplyPayment(ctx, &ApplyPaymentInput{
			InvoiceID:  invoice.ID,
			Amount:     invoice.TotalAmount, // more than the remaining half
			Method:     enum.PaymentMethodCash,
			ReceivedBy: env.actorID,
		})
		assert.ErrorIs(t, err, apperror.ErrExcessPayment)
	})

	t.Run("settling payment closes the invoice and completes the visit", func(t *testing.T) {
		_, err := env.billingService.ApplyPayment(ctx, &ApplyPaymentInput{
			InvoiceID:  invoice.ID,
			Amount:     invoice.TotalAmount - half,
			Method:     enum.PaymentMethodInsurance,
			Reference:  "NHIF-2024-00042",
			ReceivedBy: env.actorID,
		})
		require.NoError(t, err)

		paid, err := env.invoiceRepo.GetByID(ctx, invoice.ID)
		require.NoError(t, err)
		assert.Equal(t, enum.InvoiceStatusPaid, paid.Status)
		assert.Equal(t, paid.TotalAmount, paid.PaidAmount)

		completed, err := env.visitRepo.GetWithStages(ctx, visit.ID)
		require.NoError(t, err)
		assert.Equal(t, enum.VisitStatusCompleted, completed.Status)
		assert.Equal(t, enum.StageCompleted, completed.CurrentStage)
		require.NotNil(t, completed.CompletedAt)
		assert.Equal(t, enum.StageStatusCompleted, completed.StageRecord(enum.StageBilling).Status)
	})

	t.Run("paid invoice accepts no further payments", func(t *testing.T) {
		_, err := env.billingService.ApplyPayment(ctx, &ApplyPaymentInput{
			InvoiceID:  invoice.ID,
			Amount:     100,
			Method:     enum.PaymentMethodCash,
			ReceivedBy: env.actorID,
		})
		require.Error(t, err)
		assert.Equal(t, 409, apperror.GetAppError(err).Code)
	})

	t.Run("losing the balance guard records no payment", func(t *testing.T) {
		// A payment whose balance check read stale state before a racing
		// payment settled the invoice: the guard loses and nothing persists
		stale := &entity.Payment{
			InvoiceID:  invoice.ID,
			Amount:     100,
			Method:     enum.PaymentMethodCash,
			Status:     enum.PaymentStatusCompleted,
			Reference:  "PAY-STALE-0001",
			ReceivedBy: &env.actorID,
		}
		applied, err := env.invoiceRepo.ApplyPayment(ctx, stale)
		require.NoError(t, err)
		assert.False(t, applied)

		payments, err := env.paymentRepo.GetByInvoice(ctx, invoice.ID)
		require.NoError(t, err)
		require.Len(t, payments, 2)

		var recorded int64
		for i := range payments {
			recorded += payments[i].Amount
		}
		settled, err := env.invoiceRepo.GetByID(ctx, invoice.ID)
		require.NoError(t, err)
		assert.Equal(t, settled.PaidAmount, recorded)
	})
}

func TestApplyPayment_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("amount must be positive", func(t *testing.T) {
		_, err := env.billingService.ApplyPayment(ctx, &ApplyPaymentInput{
			InvoiceID:  uuid.New(),
			Amount:     0,
			Method:     enum.PaymentMethodCash,
			ReceivedBy: env.actorID,
		})
		require.Error(t, err)
		assert.Equal(t, 400, apperror.GetAppError(err).Code)
	})

	t.Run("unknown invoice", func(t *testing.T) {
		_, err := env.billingService.ApplyPayment(ctx, &ApplyPaymentInput{
			InvoiceID:  uuid.New(),
			Amount:     100,
			Method:     enum.PaymentMethodCash,
			ReceivedBy: env.actorID,
		})
		require.Error(t, err)
		assert.Equal(t, 404, apperror.GetAppError(err).Code)
	})
}

func TestReconciliationEscalation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alerter := &fakeAlerter{}
	env.billingService.SetOperatorAlerter(alerter)

	visit := env.checkIn(t)
	env.advanceToBilling(t, visit.ID)
	invoice := env.openInvoice(t, visit.ID)

	// Rewind the visit behind billing's back so completion cannot apply
	res := env.db.WithContext(ctx).Exec(
		"UPDATE visits SET current_stage = ?, version = version + 1 WHERE id = ?",
		enum.StagePharmacy, visit.ID,
	)
	require.NoError(t, res.Error)

	// The payment still succeeds; the mismatch goes to the operator
	payment, err := env.billingService.ApplyPayment(ctx, &ApplyPaymentInput{
		InvoiceID:  invoice.ID,
		Amount:     invoice.TotalAmount,
		Method:     enum.PaymentMethodCash,
		ReceivedBy: env.actorID,
	})
	require.NoError(t, err)
	assert.Equal(t, enum.PaymentStatusCompleted, payment.Status)

	paid, err := env.invoiceRepo.GetByID(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.InvoiceStatusPaid, paid.Status)

	alerter.mu.Lock()
	defer alerter.mu.Unlock()
	require.Len(t, alerter.reconciliation, 1)
	assert.Equal(t, payment.Reference, alerter.reconciliation[0])
}
