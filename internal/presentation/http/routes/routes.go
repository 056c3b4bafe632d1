package routes

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/afyacare/clinic-api/internal/config"
	"github.com/afyacare/clinic-api/internal/domain/enum"
	domainRepo "github.com/afyacare/clinic-api/internal/domain/repository"
	"github.com/afyacare/clinic-api/internal/presentation/http/handler"
	"github.com/afyacare/clinic-api/internal/presentation/http/middleware"
	"github.com/afyacare/clinic-api/pkg/utils"
)

// Handlers holds all the HTTP handlers used for route registration.
type Handlers struct {
	Auth     *handler.AuthHandler
	Patient  *handler.PatientHandler
	Visit    *handler.VisitHandler
	Pharmacy *handler.PharmacyHandler
	Billing  *handler.BillingHandler
	Payment  *handler.PaymentHandler
}

// Deps holds shared dependencies needed by the routes.
type Deps struct {
	JWTManager      *utils.JWTManager
	Cfg             *config.Config
	IdempotencyRepo domainRepo.IdempotencyRepository
	Log             zerolog.Logger
}

// Setup creates the Gin router and registers all routes.
func Setup(h *Handlers, deps *Deps) *gin.Engine {
	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.LoggerMiddleware(deps.Log))
	router.Use(middleware.CORSMiddleware(&deps.Cfg.CORS))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": deps.Cfg.App.Name,
		})
	})

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Public routes (no authentication required)
		auth := v1.Group("/auth")
		{
			auth.POST("/login", h.Auth.Login)
			auth.POST("/refresh", h.Auth.Refresh)
		}

		// Provider webhook is public; the provider cannot carry our JWT
		v1.POST("/payments/webhook", h.Payment.Webhook)

		// Protected routes (authentication required)
		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware(deps.JWTManager))

		rateLimiter := middleware.NewUserRateLimiter(middleware.RateLimiterConfig{
			RequestsPerSecond: float64(deps.Cfg.RateLimit.Requests) / float64(deps.Cfg.RateLimit.Duration),
			BurstSize:         deps.Cfg.RateLimit.Requests,
			CleanupInterval:   5 * time.Minute,
			EntryTTL:          10 * time.Minute,
		})
		protected.Use(rateLimiter.Middleware())

		registerProtectedRoutes(protected, h, deps)
	}

	return router
}

func registerProtectedRoutes(rg *gin.RouterGroup, h *Handlers, deps *Deps) {
	idempotency := middleware.IdempotencyRequired(middleware.IdempotencyConfig{
		Repo: deps.IdempotencyRepo,
	})

	rg.GET("/auth/profile", h.Auth.Profile)

	patients := rg.Group("/patients")
	{
		patients.POST("", middleware.RequireRole(enum.RoleReceptionist), h.Patient.Register)
		patients.GET("", h.Patient.List)
		patients.GET("/:id", h.Patient.Get)
		patients.GET("/:id/active-visit", h.Visit.ActiveForPatient)
	}

	visits := rg.Group("/visits")
	{
		visits.POST("", middleware.RequireRole(enum.RoleReceptionist), h.Visit.CheckIn)
		visits.GET("", h.Visit.List)
		visits.GET("/:id", h.Visit.Get)
		visits.POST("/:id/complete-stage", h.Visit.CompleteStage)
		visits.POST("/:id/cancel", middleware.RequireRole(enum.RoleReceptionist), h.Visit.Cancel)
		visits.GET("/:id/lab-orders", h.Visit.LabOrders)
		visits.GET("/:id/prescriptions/pending", h.Pharmacy.PendingPrescriptions)
	}

	lab := rg.Group("/lab")
	lab.Use(middleware.RequireRole(enum.RoleLabTech))
	{
		lab.GET("/orders/pending", h.Visit.PendingLabOrders)
		lab.POST("/orders/:id/complete", h.Visit.CompleteLabOrder)
	}

	pharmacy := rg.Group("/pharmacy")
	{
		pharmacy.GET("/medications", h.Pharmacy.ListMedications)
		pharmacy.POST("/medications", middleware.RequireRole(enum.RoleAdmin), h.Pharmacy.CreateMedication)
		pharmacy.GET("/medications/low-stock", middleware.RequireRole(enum.RolePharmacist), h.Pharmacy.LowStock)
		pharmacy.POST("/medications/:id/restock", middleware.RequireRole(enum.RolePharmacist), h.Pharmacy.Restock)
		pharmacy.POST("/prescriptions/:id/dispense", middleware.RequireRole(enum.RolePharmacist), h.Pharmacy.Dispense)
	}

	billing := rg.Group("/billing")
	billing.Use(middleware.RequireRole(enum.RoleAccountant))
	{
		billing.POST("/invoices", h.Billing.ComposeInvoice)
		billing.GET("/invoices", h.Billing.ListInvoices)
		billing.GET("/invoices/:id", h.Billing.GetInvoice)
		billing.POST("/invoices/:id/payments", idempotency, h.Billing.RecordPayment)
	}

	payments := rg.Group("/payments")
	payments.Use(middleware.RequireRole(enum.RoleAccountant))
	{
		payments.POST("/initiate", idempotency, h.Payment.Initiate)
		payments.GET("/:reference/status", h.Payment.Status)
	}
}
