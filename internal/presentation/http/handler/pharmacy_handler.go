package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/afyacare/clinic-api/internal/application/service"
	"github.com/afyacare/clinic-api/internal/presentation/http/dto/response"
	"github.com/afyacare/clinic-api/pkg/pagination"
)

// PharmacyHandler handles pharmacy HTTP requests
type PharmacyHandler struct {
	pharmacyService *service.PharmacyService
}

// NewPharmacyHandler creates a new pharmacy handler
func NewPharmacyHandler(pharmacyService *service.PharmacyService) *PharmacyHandler {
	return &PharmacyHandler{pharmacyService: pharmacyService}
}

// CreateMedicationRequest represents a new formulary item body
type CreateMedicationRequest struct {
	Name            string  `json:"name" binding:"required"`
	Code            string  `json:"code" binding:"required"`
	QuantityInStock int     `json:"quantity_in_stock"`
	ReorderLevel    int     `json:"reorder_level"`
	UnitPrice       float64 `json:"unit_price"`
}

// CreateMedication adds a medication to the formulary
func (h *PharmacyHandler) CreateMedication(c *gin.Context) {
	var req CreateMedicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	medication, err := h.pharmacyService.CreateMedication(c.Request.Context(), &service.CreateMedicationInput{
		Name:            req.Name,
		Code:            req.Code,
		QuantityInStock: req.QuantityInStock,
		ReorderLevel:    req.ReorderLevel,
		UnitPrice:       toCents(req.UnitPrice),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, "Medication created successfully", medication)
}

// ListMedications lists the formulary
func (h *PharmacyHandler) ListMedications(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "15"))
	search := c.Query("search")

	params := &pagination.PaginationParams{Page: page, PerPage: perPage}

	medications, total, err := h.pharmacyService.ListMedications(c.Request.Context(), params, search)
	if err != nil {
		response.Error(c, err)
		return
	}

	result := pagination.NewPaginatedResult(medications, pagination.NewPagination(params.Page, params.PerPage, total))
	response.SuccessWithPagination(c, 200, "Medications retrieved successfully", result)
}

// LowStock lists medications at or below their reorder level
func (h *PharmacyHandler) LowStock(c *gin.Context) {
	medications, err := h.pharmacyService.LowStock(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Low stock medications retrieved successfully", medications)
}

// PendingPrescriptions lists a visit's undispensed prescriptions
func (h *PharmacyHandler) PendingPrescriptions(c *gin.Context) {
	visitID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid visit ID")
		return
	}

	prescriptions, err := h.pharmacyService.PendingPrescriptions(c.Request.Context(), visitID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Pending prescriptions retrieved successfully", prescriptions)
}

// Dispense hands out one prescription
func (h *PharmacyHandler) Dispense(c *gin.Context) {
	userID := GetUserID(c)
	if userID == nil {
		response.Unauthorized(c, "User not authenticated")
		return
	}

	prescriptionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid prescription ID")
		return
	}

	prescription, err := h.pharmacyService.Dispense(c.Request.Context(), &service.DispenseInput{
		PrescriptionID: prescriptionID,
		ActorID:        *userID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Prescription dispensed successfully", prescription)
}

// RestockRequest represents a restock body
type RestockRequest struct {
	Quantity int `json:"quantity" binding:"required"`
}

// Restock adds received stock to a medication
func (h *PharmacyHandler) Restock(c *gin.Context) {
	userID := GetUserID(c)
	if userID == nil {
		response.Unauthorized(c, "User not authenticated")
		return
	}

	medicationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid medication ID")
		return
	}

	var req RestockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	medication, err := h.pharmacyService.Restock(c.Request.Context(), &service.RestockInput{
		MedicationID: medicationID,
		Quantity:     req.Quantity,
		ActorID:      *userID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Medication restocked successfully", medication)
}
