package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/afyacare/clinic-api/internal/application/service"
	"github.com/afyacare/clinic-api/internal/domain/enum"
	"github.com/afyacare/clinic-api/internal/domain/repository"
	"github.com/afyacare/clinic-api/internal/presentation/http/dto/response"
	"github.com/afyacare/clinic-api/pkg/pagination"
)

// BillingHandler handles invoice and payment HTTP requests
type BillingHandler struct {
	billingService *service.BillingService
}

// NewBillingHandler creates a new billing handler
func NewBillingHandler(billingService *service.BillingService) *BillingHandler {
	return &BillingHandler{billingService: billingService}
}

// ComposeInvoiceRequest represents the invoice composition body
type ComposeInvoiceRequest struct {
	VisitID string `json:"visit_id" binding:"required"`
}

// ComposeInvoice builds the invoice for a visit
func (h *BillingHandler) ComposeInvoice(c *gin.Context) {
	userID := GetUserID(c)
	if userID == nil {
		response.Unauthorized(c, "User not authenticated")
		return
	}

	var req ComposeInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	visitID, err := uuid.Parse(req.VisitID)
	if err != nil {
		response.BadRequest(c, "Invalid visit ID")
		return
	}

	invoice, err := h.billingService.ComposeInvoice(c.Request.Context(), visitID, *userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, "Invoice composed successfully", invoice)
}

// GetInvoice retrieves an invoice with its items and payments
func (h *BillingHandler) GetInvoice(c *gin.Context) {
	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid invoice ID")
		return
	}

	invoice, err := h.billingService.GetInvoice(c.Request.Context(), invoiceID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Invoice retrieved successfully", invoice)
}

// ListInvoices lists invoices with filters
func (h *BillingHandler) ListInvoices(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "15"))

	params := &repository.InvoiceFilterParams{
		Pagination: &pagination.PaginationParams{Page: page, PerPage: perPage},
	}

	if statusStr := c.Query("status"); statusStr != "" {
		statusInt, err := strconv.Atoi(statusStr)
		if err != nil {
			response.BadRequest(c, "Invalid status")
			return
		}
		status := enum.InvoiceStatus(statusInt)
		params.Status = &status
	}

	if patientIDStr := c.Query("patient_id"); patientIDStr != "" {
		if patientID, err := uuid.Parse(patientIDStr); err == nil {
			params.PatientID = &patientID
		}
	}

	if visitIDStr := c.Query("visit_id"); visitIDStr != "" {
		if visitID, err := uuid.Parse(visitIDStr); err == nil {
			params.VisitID = &visitID
		}
	}

	invoices, total, err := h.billingService.ListInvoices(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	result := pagination.NewPaginatedResult(invoices, pagination.NewPagination(params.Pagination.Page, params.Pagination.PerPage, total))
	response.SuccessWithPagination(c, 200, "Invoices retrieved successfully", result)
}

// RecordPaymentRequest represents a synchronous payment body
type RecordPaymentRequest struct {
	Amount    float64 `json:"amount" binding:"required"`
	Method    string  `json:"method" binding:"required"`
	Reference string  `json:"reference"`
}

// RecordPayment records a cash or insurance payment against an invoice
func (h *BillingHandler) RecordPayment(c *gin.Context) {
	userID := GetUserID(c)
	if userID == nil {
		response.Unauthorized(c, "User not authenticated")
		return
	}

	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid invoice ID")
		return
	}

	var req RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	method := enum.PaymentMethod(req.Method)
	if !method.IsValid() || method == enum.PaymentMethodMobile {
		response.BadRequest(c, "Unsupported payment method; mobile payments go through /payments/initiate")
		return
	}

	payment, err := h.billingService.ApplyPayment(c.Request.Context(), &service.ApplyPaymentInput{
		InvoiceID:  invoiceID,
		Amount:     toCents(req.Amount),
		Method:     method,
		Reference:  req.Reference,
		ReceivedBy: *userID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, "Payment recorded successfully", payment)
}
