package database

import (
	"fmt"
	"log"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/afyacare/clinic-api/internal/config"
	"github.com/afyacare/clinic-api/internal/domain/entity"
	"github.com/afyacare/clinic-api/internal/domain/enum"
)

// NewPostgresDB creates a new PostgreSQL database connection
func NewPostgresDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	logLevel := logger.Warn

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DSN(),
		PreferSimpleProtocol: true, // disables implicit prepared statement usage
	}), &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying SQL DB to set connection pool settings
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	log.Println("Successfully connected to PostgreSQL database")
	return db, nil
}

// AutoMigrate runs GORM auto-migration for all entities
func AutoMigrate(db *gorm.DB) error {
	log.Println("Running database migrations...")

	err := db.AutoMigrate(
		// Staff and patients
		&entity.User{},
		&entity.Patient{},

		// Visit workflow entities
		&entity.Visit{},
		&entity.VisitStage{},
		&entity.LabOrder{},

		// Pharmacy entities
		&entity.Medication{},
		&entity.Prescription{},

		// Billing entities
		&entity.Invoice{},
		&entity.InvoiceItem{},
		&entity.Payment{},

		// System entities
		&entity.IdempotencyKey{},
	)

	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// At most one unresolved payment per invoice, enforced at the database
	// so racing initiations cannot both reserve the slot
	if err := db.Exec(fmt.Sprintf(
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_pending_invoice ON payments(invoice_id) WHERE status = %d",
		int(enum.PaymentStatusPending),
	)).Error; err != nil {
		return fmt.Errorf("failed to create pending payment index: %w", err)
	}

	log.Println("Database migrations completed successfully")
	return nil
}

// SeedDefaultData seeds an admin user and starter formulary when configured
func SeedDefaultData(db *gorm.DB) error {
	log.Println("Seeding default data...")

	adminEmail := viper.GetString("ADMIN_EMAIL")
	adminPassword := viper.GetString("ADMIN_PASSWORD")
	adminName := viper.GetString("ADMIN_NAME")

	if adminEmail != "" && adminPassword != "" {
		var existingAdmin entity.User
		if err := db.Where("email = ?", adminEmail).First(&existingAdmin).Error; err != nil {
			hashedPassword, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
			if err != nil {
				log.Printf("Warning: failed to hash admin password: %v", err)
			} else {
				if adminName == "" {
					adminName = "Clinic Admin"
				}
				firstName := adminName
				lastName := ""
				for i, c := range adminName {
					if c == ' ' {
						firstName = adminName[:i]
						lastName = adminName[i+1:]
						break
					}
				}
				adminUser := entity.User{
					FirstName: firstName,
					LastName:  lastName,
					Email:     adminEmail,
					Password:  string(hashedPassword),
					Role:      enum.RoleAdmin,
					Active:    true,
				}
				if err := db.Create(&adminUser).Error; err != nil {
					log.Printf("Warning: failed to create admin user: %v", err)
				} else {
					log.Printf("Admin user created: %s", adminEmail)
				}
			}
		} else {
			log.Printf("Admin user already exists: %s", adminEmail)
		}
	}

	// Starter formulary so a fresh install can dispense immediately
	medications := []entity.Medication{
		{Name: "Paracetamol 500mg", Code: "MED-PARA-500", QuantityInStock: 500, ReorderLevel: 100, UnitPrice: 1000},
		{Name: "Amoxicillin 250mg", Code: "MED-AMOX-250", QuantityInStock: 300, ReorderLevel: 50, UnitPrice: 2500},
		{Name: "Artemether-Lumefantrine 20/120mg", Code: "MED-AL-20-120", QuantityInStock: 200, ReorderLevel: 40, UnitPrice: 8000},
		{Name: "ORS Sachet", Code: "MED-ORS", QuantityInStock: 400, ReorderLevel: 80, UnitPrice: 500},
		{Name: "Ibuprofen 400mg", Code: "MED-IBU-400", QuantityInStock: 350, ReorderLevel: 70, UnitPrice: 1500},
	}

	for i := range medications {
		var existing entity.Medication
		if err := db.Where("code = ?", medications[i].Code).First(&existing).Error; err != nil {
			if err := db.Create(&medications[i]).Error; err != nil {
				log.Printf("Warning: failed to seed medication %s: %v", medications[i].Code, err)
			}
		}
	}

	log.Println("Default data seeding completed")
	return nil
}
