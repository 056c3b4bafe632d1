package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/afyacare/clinic-api/internal/application/service"
	"github.com/afyacare/clinic-api/internal/presentation/http/dto/response"
	"github.com/afyacare/clinic-api/pkg/mpesa"
)

// PaymentHandler handles mobile money payment HTTP requests
type PaymentHandler struct {
	mobilePayService *service.MobilePayService
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(mobilePayService *service.MobilePayService) *PaymentHandler {
	return &PaymentHandler{mobilePayService: mobilePayService}
}

// InitiateRequest represents the mobile payment initiation body
type InitiateRequest struct {
	InvoiceID string  `json:"invoice_id" binding:"required"`
	Phone     string  `json:"phone" binding:"required"`
	Amount    float64 `json:"amount" binding:"required"`
}

// Initiate pushes a payment prompt to the patient's phone
func (h *PaymentHandler) Initiate(c *gin.Context) {
	userID := GetUserID(c)
	if userID == nil {
		response.Unauthorized(c, "User not authenticated")
		return
	}

	var req InitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	invoiceID, err := uuid.Parse(req.InvoiceID)
	if err != nil {
		response.BadRequest(c, "Invalid invoice ID")
		return
	}

	payment, err := h.mobilePayService.Initiate(c.Request.Context(), &service.InitiateMobilePaymentInput{
		InvoiceID: invoiceID,
		Phone:     req.Phone,
		Amount:    toCents(req.Amount),
		ActorID:   *userID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, "Mobile payment initiated", payment)
}

// Webhook receives provider confirmations. It always acknowledges so the
// provider stops retrying; resolution itself is idempotent.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	var payload mpesa.WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.BadRequest(c, "Invalid webhook payload")
		return
	}

	if err := h.mobilePayService.HandleCallback(c.Request.Context(), &payload); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Webhook processed", nil)
}

// Status returns the local payment together with a fresh provider lookup
func (h *PaymentHandler) Status(c *gin.Context) {
	reference := c.Param("reference")
	if reference == "" {
		response.BadRequest(c, "Payment reference is required")
		return
	}

	payment, providerStatus, err := h.mobilePayService.QueryStatus(c.Request.Context(), reference)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Payment status retrieved", gin.H{
		"payment":         payment,
		"provider_status": providerStatus,
	})
}
