package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/afyacare/clinic-api/internal/domain/entity"
	"github.com/afyacare/clinic-api/internal/domain/enum"
	"github.com/afyacare/clinic-api/internal/domain/event"
	"github.com/afyacare/clinic-api/internal/domain/repository"
	infraRepo "github.com/afyacare/clinic-api/internal/infrastructure/repository"
	"github.com/afyacare/clinic-api/pkg/mpesa"
)

const testConsultationFee = int64(200000) // cents

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	// A single connection keeps every query on the same in-memory database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&entity.User{},
		&entity.Patient{},
		&entity.Visit{},
		&entity.VisitStage{},
		&entity.LabOrder{},
		&entity.Medication{},
		&entity.Prescription{},
		&entity.Invoice{},
		&entity.InvoiceItem{},
		&entity.Payment{},
		&entity.IdempotencyKey{},
	))

	// Same partial index the production migration creates
	require.NoError(t, db.Exec(fmt.Sprintf(
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_pending_invoice ON payments(invoice_id) WHERE status = %d",
		int(enum.PaymentStatusPending),
	)).Error)

	return db
}

type testEnv struct {
	db *gorm.DB

	patientRepo      repository.PatientRepository
	visitRepo        repository.VisitRepository
	medicationRepo   repository.MedicationRepository
	prescriptionRepo repository.PrescriptionRepository
	labOrderRepo     repository.LabOrderRepository
	invoiceRepo      repository.InvoiceRepository
	paymentRepo      repository.PaymentRepository

	visitService    *VisitService
	pharmacyService *PharmacyService
	billingService  *BillingService

	actorID uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := newTestDB(t)
	log := zerolog.Nop()

	env := &testEnv{
		db:               db,
		patientRepo:      infraRepo.NewPatientRepository(db),
		visitRepo:        infraRepo.NewVisitRepository(db),
		medicationRepo:   infraRepo.NewMedicationRepository(db),
		prescriptionRepo: infraRepo.NewPrescriptionRepository(db),
		labOrderRepo:     infraRepo.NewLabOrderRepository(db),
		invoiceRepo:      infraRepo.NewInvoiceRepository(db),
		paymentRepo:      infraRepo.NewPaymentRepository(db),
		actorID:          uuid.New(),
	}

	env.visitService = NewVisitService(
		env.visitRepo, env.patientRepo, env.prescriptionRepo, env.labOrderRepo,
		event.NopPublisher{}, log,
	)
	env.pharmacyService = NewPharmacyService(
		env.medicationRepo, env.prescriptionRepo, env.visitRepo, log,
	)
	env.billingService = NewBillingService(
		env.invoiceRepo, env.visitRepo,
		env.prescriptionRepo, env.labOrderRepo, env.medicationRepo,
		testConsultationFee, log,
	)

	env.visitService.SetInvoiceComposer(env.billingService)
	env.billingService.SetVisitCompleter(env.visitService)

	return env
}

func (e *testEnv) createPatient(t *testing.T) *entity.Patient {
	t.Helper()
	patient := &entity.Patient{
		FirstName:    "Amina",
		LastName:     "Odhiambo",
		Phone:        "+254700000001",
		RegisteredBy: e.actorID,
	}
	require.NoError(t, e.patientRepo.Create(context.Background(), patient))
	return patient
}

func (e *testEnv) createMedication(t *testing.T, code string, stock int, unitPrice int64) *entity.Medication {
	t.Helper()
	medication := &entity.Medication{
		Name:            "Test medication " + code,
		Code:            code,
		QuantityInStock: stock,
		ReorderLevel:    2,
		UnitPrice:       unitPrice,
	}
	require.NoError(t, e.medicationRepo.Create(context.Background(), medication))
	return medication
}

func (e *testEnv) checkIn(t *testing.T) *entity.Visit {
	t.Helper()
	patient := e.createPatient(t)
	visit, err := e.visitService.CheckIn(context.Background(), &CheckInInput{
		PatientID:   patient.ID,
		CheckedInBy: e.actorID,
	})
	require.NoError(t, err)
	return visit
}

func testVitals() *entity.Vitals {
	systolic, diastolic, heartRate := 120, 80, 72
	temperature := 36.8
	return &entity.Vitals{
		SystolicBP:  &systolic,
		DiastolicBP: &diastolic,
		HeartRate:   &heartRate,
		Temperature: &temperature,
	}
}

func (e *testEnv) completeStage(t *testing.T, visitID uuid.UUID, input *CompleteStageInput) *entity.Visit {
	t.Helper()
	input.VisitID = visitID
	if input.ActorID == uuid.Nil {
		input.ActorID = e.actorID
	}
	visit, err := e.visitService.CompleteStage(context.Background(), input)
	require.NoError(t, err)
	return visit
}

// advanceToPharmacy walks a fresh visit up to the Pharmacy stage, optionally
// prescribing along the way.
func (e *testEnv) advanceToPharmacy(t *testing.T, visitID uuid.UUID, prescriptions ...PrescriptionInput) *entity.Visit {
	t.Helper()
	e.completeStage(t, visitID, &CompleteStageInput{Stage: enum.StageReception, ActorRole: enum.RoleReceptionist})
	e.completeStage(t, visitID, &CompleteStageInput{Stage: enum.StageNurse, ActorRole: enum.RoleNurse, Vitals: testVitals()})
	return e.completeStage(t, visitID, &CompleteStageInput{
		Stage:         enum.StageDoctor,
		ActorRole:     enum.RoleDoctor,
		Diagnosis:     "Acute tonsillitis",
		Prescriptions: prescriptions,
	})
}

// advanceToBilling walks a fresh visit all the way to the Billing stage
func (e *testEnv) advanceToBilling(t *testing.T, visitID uuid.UUID) *entity.Visit {
	t.Helper()
	e.advanceToPharmacy(t, visitID)
	return e.completeStage(t, visitID, &CompleteStageInput{Stage: enum.StagePharmacy, ActorRole: enum.RolePharmacist})
}

func (e *testEnv) openInvoice(t *testing.T, visitID uuid.UUID) *entity.Invoice {
	t.Helper()
	invoice, err := e.invoiceRepo.GetOpenByVisit(context.Background(), visitID)
	require.NoError(t, err)
	require.NotNil(t, invoice)
	return invoice
}

// fakeProvider is an in-memory stand-in for the mobile money provider
type fakeProvider struct {
	mu           sync.Mutex
	status       string
	reason       string
	initiations  int
	statusCalls  int
	failInitiate error
}

func (f *fakeProvider) InitiatePayment(ctx context.Context, req *mpesa.InitiateRequest) (*mpesa.InitiateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initiations++
	if f.failInitiate != nil {
		return nil, f.failInitiate
	}
	return &mpesa.InitiateResponse{
		TransactionID: "TXN-" + req.OrderID,
		OrderID:       req.OrderID,
	}, nil
}

func (f *fakeProvider) QueryStatus(ctx context.Context, orderID string) (*mpesa.StatusResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	status := f.status
	if status == "" {
		status = mpesa.StatusPending
	}
	return &mpesa.StatusResponse{
		OrderID:       orderID,
		PaymentStatus: status,
		Reason:        f.reason,
	}, nil
}

func (f *fakeProvider) setStatus(status, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
	f.reason = reason
}

// fakeAlerter records operator escalations instead of sending mail
type fakeAlerter struct {
	mu             sync.Mutex
	timeoutAlerts  []string
	reconciliation []string
}

func (f *fakeAlerter) SendPaymentTimeoutAlert(reference, invoiceNo string, attempts int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timeoutAlerts = append(f.timeoutAlerts, reference)
	return nil
}

func (f *fakeAlerter) SendReconciliationAlert(reference, invoiceNo, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconciliation = append(f.reconciliation, reference)
	return nil
}

func (f *fakeAlerter) timeoutCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.timeoutAlerts)
}
