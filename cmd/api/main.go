package main

import (
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/afyacare/clinic-api/internal/application/service"
	"github.com/afyacare/clinic-api/internal/config"
	"github.com/afyacare/clinic-api/internal/domain/event"
	"github.com/afyacare/clinic-api/internal/infrastructure/database"
	"github.com/afyacare/clinic-api/internal/infrastructure/messaging"
	"github.com/afyacare/clinic-api/internal/infrastructure/repository"
	"github.com/afyacare/clinic-api/internal/presentation/http/handler"
	"github.com/afyacare/clinic-api/internal/presentation/http/routes"
	"github.com/afyacare/clinic-api/pkg/email"
	"github.com/afyacare/clinic-api/pkg/mpesa"
	"github.com/afyacare/clinic-api/pkg/utils"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.App.Name).Logger()
	if cfg.App.Debug {
		log = log.Level(zerolog.DebugLevel)
	} else {
		log = log.Level(zerolog.InfoLevel)
	}

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to database
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	// Run auto-migrations
	if err := database.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	// Seed default data
	if err := database.SeedDefaultData(db); err != nil {
		log.Warn().Err(err).Msg("failed to seed default data")
	}

	// Initialize JWT manager
	jwtManager := utils.NewJWTManager(
		cfg.JWT.Secret,
		cfg.JWT.ExpiryHours,
		cfg.JWT.RefreshExpiryHours,
	)

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	patientRepo := repository.NewPatientRepository(db)
	visitRepo := repository.NewVisitRepository(db)
	medicationRepo := repository.NewMedicationRepository(db)
	prescriptionRepo := repository.NewPrescriptionRepository(db)
	labOrderRepo := repository.NewLabOrderRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	idempotencyRepo := repository.NewIdempotencyRepository(db)

	// Initialize email service
	emailService := email.NewEmailService(email.EmailConfig{
		SMTPHost:      cfg.Email.SMTPHost,
		SMTPPort:      cfg.Email.SMTPPort,
		SMTPUsername:  cfg.Email.SMTPUsername,
		SMTPPassword:  cfg.Email.SMTPPassword,
		FromName:      cfg.Email.FromName,
		FromEmail:     cfg.Email.FromEmail,
		OperatorEmail: cfg.Email.OperatorEmail,
	})

	// Initialize the event publisher; without a broker events are dropped
	var publisher event.Publisher = event.NopPublisher{}
	if cfg.AMQP.URL != "" {
		conn, err := messaging.NewRabbitMQ(cfg.AMQP.URL)
		if err != nil {
			log.Warn().Err(err).Msg("RabbitMQ unavailable, domain events disabled")
		} else {
			amqpPublisher, err := messaging.NewPublisher(conn, cfg.AMQP.Exchange, log)
			if err != nil {
				log.Warn().Err(err).Msg("RabbitMQ channel setup failed, domain events disabled")
			} else {
				publisher = amqpPublisher
				log.Info().Str("exchange", cfg.AMQP.Exchange).Msg("domain events enabled")
			}
		}
	}

	// Initialize the mobile money provider client
	mpesaClient := mpesa.NewClient(mpesa.Config{
		BaseURL:        cfg.Mpesa.BaseURL,
		ConsumerKey:    cfg.Mpesa.ConsumerKey,
		ConsumerSecret: cfg.Mpesa.ConsumerSecret,
		ShortCode:      cfg.Mpesa.ShortCode,
		WebhookURL:     cfg.Mpesa.WebhookURL,
		Timeout:        30 * time.Second,
	})

	// Initialize services
	authService := service.NewAuthService(userRepo, jwtManager)
	patientService := service.NewPatientService(patientRepo)
	visitService := service.NewVisitService(visitRepo, patientRepo, prescriptionRepo, labOrderRepo, publisher, log)
	pharmacyService := service.NewPharmacyService(medicationRepo, prescriptionRepo, visitRepo, log)
	billingService := service.NewBillingService(
		invoiceRepo, visitRepo, prescriptionRepo, labOrderRepo, medicationRepo,
		int64(cfg.Billing.ConsultationFee*100), log,
	)
	mobilePayService := service.NewMobilePayService(
		paymentRepo, invoiceRepo, billingService, mpesaClient,
		service.MobilePayConfig{
			PollMaxAttempts: cfg.Mpesa.PollMaxAttempts,
			PollBaseDelay:   cfg.Mpesa.PollBaseDelay,
			PollMaxDelay:    cfg.Mpesa.PollMaxDelay,
		},
		log,
	)

	// Wire the cross-service collaborators
	visitService.SetInvoiceComposer(billingService)
	billingService.SetVisitCompleter(visitService)
	billingService.SetOperatorAlerter(emailService)
	mobilePayService.SetTimeoutAlerter(emailService)

	// Initialize handlers
	handlers := &routes.Handlers{
		Auth:     handler.NewAuthHandler(authService),
		Patient:  handler.NewPatientHandler(patientService),
		Visit:    handler.NewVisitHandler(visitService),
		Pharmacy: handler.NewPharmacyHandler(pharmacyService),
		Billing:  handler.NewBillingHandler(billingService),
		Payment:  handler.NewPaymentHandler(mobilePayService),
	}

	// Setup routes
	router := routes.Setup(handlers, &routes.Deps{
		JWTManager:      jwtManager,
		Cfg:             cfg,
		IdempotencyRepo: idempotencyRepo,
		Log:             log,
	})

	port := cfg.App.Port
	if port == "" {
		port = "8080"
	}

	log.Info().Str("port", port).Str("env", cfg.App.Env).Msg("starting server")

	if err := router.Run(":" + port); err != nil {
		log.Fatal().Err(err).Msg("failed to start server")
	}
}
