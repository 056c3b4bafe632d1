package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/afyacare/clinic-api/internal/application/service"
	"github.com/afyacare/clinic-api/internal/domain/entity"
	"github.com/afyacare/clinic-api/internal/domain/enum"
	"github.com/afyacare/clinic-api/internal/domain/repository"
	"github.com/afyacare/clinic-api/internal/presentation/http/dto/response"
	"github.com/afyacare/clinic-api/pkg/pagination"
)

// VisitHandler handles visit workflow HTTP requests
type VisitHandler struct {
	visitService *service.VisitService
}

// NewVisitHandler creates a new visit handler
func NewVisitHandler(visitService *service.VisitService) *VisitHandler {
	return &VisitHandler{visitService: visitService}
}

// CheckInRequest represents the check-in request body
type CheckInRequest struct {
	PatientID string `json:"patient_id" binding:"required"`
}

// CheckIn opens a new visit for a patient
func (h *VisitHandler) CheckIn(c *gin.Context) {
	userID := GetUserID(c)
	if userID == nil {
		response.Unauthorized(c, "User not authenticated")
		return
	}

	var req CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		response.BadRequest(c, "Invalid patient ID")
		return
	}

	visit, err := h.visitService.CheckIn(c.Request.Context(), &service.CheckInInput{
		PatientID:   patientID,
		CheckedInBy: *userID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, "Visit checked in successfully", visit)
}

// PrescriptionRequest is one prescribed medication in a stage completion
type PrescriptionRequest struct {
	MedicationID string `json:"medication_id" binding:"required"`
	Quantity     int    `json:"quantity" binding:"required"`
	Dosage       string `json:"dosage"`
}

// LabOrderRequest is one ordered test in a stage completion
type LabOrderRequest struct {
	TestName string  `json:"test_name" binding:"required"`
	Price    float64 `json:"price"`
}

// CompleteStageRequest represents the stage completion body
type CompleteStageRequest struct {
	Stage         string                `json:"stage" binding:"required"`
	Notes         string                `json:"notes"`
	Vitals        *entity.Vitals        `json:"vitals"`
	Diagnosis     string                `json:"diagnosis"`
	Prescriptions []PrescriptionRequest `json:"prescriptions"`
	LabOrders     []LabOrderRequest     `json:"lab_orders"`
}

// CompleteStage completes the visit's current stage
func (h *VisitHandler) CompleteStage(c *gin.Context) {
	userID := GetUserID(c)
	if userID == nil {
		response.Unauthorized(c, "User not authenticated")
		return
	}

	visitID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid visit ID")
		return
	}

	var req CompleteStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	stage, ok := enum.ParseVisitStage(req.Stage)
	if !ok {
		response.BadRequest(c, "Unknown stage: "+req.Stage)
		return
	}

	input := &service.CompleteStageInput{
		VisitID:   visitID,
		Stage:     stage,
		ActorID:   *userID,
		ActorRole: GetUserRole(c),
		Notes:     req.Notes,
		Vitals:    req.Vitals,
		Diagnosis: req.Diagnosis,
	}

	for _, p := range req.Prescriptions {
		medicationID, err := uuid.Parse(p.MedicationID)
		if err != nil {
			response.BadRequest(c, "Invalid medication ID: "+p.MedicationID)
			return
		}
		input.Prescriptions = append(input.Prescriptions, service.PrescriptionInput{
			MedicationID: medicationID,
			Quantity:     p.Quantity,
			Dosage:       p.Dosage,
		})
	}

	for _, l := range req.LabOrders {
		input.LabOrders = append(input.LabOrders, service.LabOrderInput{
			TestName: l.TestName,
			Price:    toCents(l.Price),
		})
	}

	visit, err := h.visitService.CompleteStage(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Stage completed successfully", visit)
}

// CancelRequest represents the visit cancellation body
type CancelRequest struct {
	Reason string `json:"reason"`
}

// Cancel terminates a visit without completing it
func (h *VisitHandler) Cancel(c *gin.Context) {
	userID := GetUserID(c)
	if userID == nil {
		response.Unauthorized(c, "User not authenticated")
		return
	}

	visitID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid visit ID")
		return
	}

	var req CancelRequest
	_ = c.ShouldBindJSON(&req)

	visit, err := h.visitService.CancelVisit(c.Request.Context(), &service.CancelVisitInput{
		VisitID: visitID,
		Reason:  req.Reason,
		ActorID: *userID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Visit cancelled", visit)
}

// Get retrieves a visit with its stage history
func (h *VisitHandler) Get(c *gin.Context) {
	visitID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid visit ID")
		return
	}

	visit, err := h.visitService.GetVisit(c.Request.Context(), visitID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Visit retrieved successfully", visit)
}

// ActiveForPatient retrieves the patient's active visit
func (h *VisitHandler) ActiveForPatient(c *gin.Context) {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid patient ID")
		return
	}

	visit, err := h.visitService.GetActiveVisit(c.Request.Context(), patientID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Active visit retrieved successfully", visit)
}

// List lists visits with filters
func (h *VisitHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "15"))

	params := &repository.VisitFilterParams{
		Pagination: &pagination.PaginationParams{Page: page, PerPage: perPage},
	}

	if stageStr := c.Query("stage"); stageStr != "" {
		stage, ok := enum.ParseVisitStage(stageStr)
		if !ok {
			response.BadRequest(c, "Unknown stage: "+stageStr)
			return
		}
		params.Stage = &stage
	}

	if statusStr := c.Query("status"); statusStr != "" {
		statusInt, err := strconv.Atoi(statusStr)
		if err != nil {
			response.BadRequest(c, "Invalid status")
			return
		}
		status := enum.VisitStatus(statusInt)
		params.Status = &status
	}

	if patientIDStr := c.Query("patient_id"); patientIDStr != "" {
		if patientID, err := uuid.Parse(patientIDStr); err == nil {
			params.PatientID = &patientID
		}
	}

	if startDateStr := c.Query("start_date"); startDateStr != "" {
		if startDate, err := time.Parse("2006-01-02", startDateStr); err == nil {
			params.StartDate = &startDate
		}
	}

	if endDateStr := c.Query("end_date"); endDateStr != "" {
		if endDate, err := time.Parse("2006-01-02", endDateStr); err == nil {
			params.EndDate = &endDate
		}
	}

	visits, total, err := h.visitService.ListVisits(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	result := pagination.NewPaginatedResult(visits, pagination.NewPagination(params.Pagination.Page, params.Pagination.PerPage, total))
	response.SuccessWithPagination(c, 200, "Visits retrieved successfully", result)
}

// LabOrders lists the lab orders of a visit
func (h *VisitHandler) LabOrders(c *gin.Context) {
	visitID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid visit ID")
		return
	}

	orders, err := h.visitService.GetVisitLabOrders(c.Request.Context(), visitID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Lab orders retrieved successfully", orders)
}

// PendingLabOrders lists the lab station's work queue
func (h *VisitHandler) PendingLabOrders(c *gin.Context) {
	orders, err := h.visitService.ListLabOrdersByStatus(c.Request.Context(), enum.LabOrderStatusOrdered)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Pending lab orders retrieved successfully", orders)
}

// CompleteLabOrderRequest represents a lab order completion body
type CompleteLabOrderRequest struct {
	Result string `json:"result" binding:"required"`
}

// CompleteLabOrder records a test result
func (h *VisitHandler) CompleteLabOrder(c *gin.Context) {
	userID := GetUserID(c)
	if userID == nil {
		response.Unauthorized(c, "User not authenticated")
		return
	}

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid lab order ID")
		return
	}

	var req CompleteLabOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	order, err := h.visitService.CompleteLabOrder(c.Request.Context(), &service.CompleteLabOrderInput{
		OrderID:   orderID,
		Result:    req.Result,
		ActorID:   *userID,
		ActorRole: GetUserRole(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Lab order completed successfully", order)
}
