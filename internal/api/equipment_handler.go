package api

import (
	"alcyxob/equipment-app/internal/domain"
	"alcyxob/equipment-app/internal/service"
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EquipmentHandler serves equipment reads, lock-out/unlock, return and the competency check.
type EquipmentHandler struct {
	equipmentService service.EquipmentService
	oracle           *service.CompetencyOracle
}

// NewEquipmentHandler creates a new EquipmentHandler.
func NewEquipmentHandler(equipmentService service.EquipmentService, oracle *service.CompetencyOracle) *EquipmentHandler {
	return &EquipmentHandler{equipmentService: equipmentService, oracle: oracle}
}

// --- DTOs ---

// LockRequest is the checklist body for lock-out and unlock.
type LockRequest struct {
	Date        string   `json:"date"`
	CompletedBy string   `json:"completedBy"`
	Steps       []string `json:"steps"`
	Notes       string   `json:"notes"`
}

func (r LockRequest) toService() (service.LockRequest, error) {
	date, err := parseDate("date", r.Date)
	if err != nil {
		return service.LockRequest{}, err
	}
	return service.LockRequest{Date: date, CompletedBy: r.CompletedBy, Steps: r.Steps, Notes: r.Notes}, nil
}

type ReturnRequest struct {
	Date  string `json:"date"`
	Notes string `json:"notes"`
}

// SetLessonRequest links a lesson; a null lessonId clears the link.
type SetLessonRequest struct {
	LessonID *string `json:"lessonId"`
}

type CompetencyResponse struct {
	EquipmentID string                  `json:"equipmentId"`
	Borrower    string                  `json:"borrower"`
	Status      domain.CompetencyStatus `json:"status"`
	Reasons     []string                `json:"reasons"`
	Message     string                  `json:"message"`
	StaffID     string                  `json:"staffId,omitempty"`
	LessonName  string                  `json:"lessonName,omitempty"`
}

// --- Handler Methods ---

// ListEquipment godoc
// @Summary List equipment with its current state
// @Tags Equipment
// @Router /equipment [get]
func (h *EquipmentHandler) ListEquipment(c *gin.Context) {
	items, err := h.equipmentService.ListEquipment(c.Request.Context())
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// GetEquipment godoc
// @Summary Get one equipment item with its current state
// @Tags Equipment
// @Router /equipment/{id} [get]
func (h *EquipmentHandler) GetEquipment(c *gin.Context) {
	id, ok := parseObjectIDParam(c, "id")
	if !ok {
		return
	}
	equipment, err := h.equipmentService.GetEquipment(c.Request.Context(), id)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, equipment)
}

// SetLinkedLesson godoc
// @Summary Link or unlink the competency lesson for an item
// @Tags Equipment
// @Router /equipment/{id}/lesson [put]
func (h *EquipmentHandler) SetLinkedLesson(c *gin.Context) {
	id, ok := parseObjectIDParam(c, "id")
	if !ok {
		return
	}
	var req SetLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	var lessonID *primitive.ObjectID
	if req.LessonID != nil {
		parsed, err := primitive.ObjectIDFromHex(*req.LessonID)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "Invalid lessonId format")
			return
		}
		lessonID = &parsed
	}

	equipment, err := h.equipmentService.SetLinkedLesson(c.Request.Context(), id, lessonID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, equipment)
}

// EvaluateCompetency godoc
// @Summary Check whether a borrower is competent for an item
// @Description Point-in-time check; does not change any state.
// @Tags Equipment
// @Param borrower query string true "Borrower name as written on the loan"
// @Router /equipment/{id}/competency [get]
func (h *EquipmentHandler) EvaluateCompetency(c *gin.Context) {
	id, ok := parseObjectIDParam(c, "id")
	if !ok {
		return
	}
	borrower := c.Query("borrower")
	result, err := h.oracle.Evaluate(c.Request.Context(), id, borrower)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	resp := CompetencyResponse{
		EquipmentID: id.Hex(),
		Borrower:    borrower,
		Status:      result.Status,
		Reasons:     result.Reasons,
		Message:     result.Message(),
		LessonName:  result.LessonName,
	}
	if result.StaffID != nil {
		resp.StaffID = result.StaffID.Hex()
	}
	c.JSON(http.StatusOK, resp)
}

// LockOut godoc
// @Summary Lock an item out of service
// @Tags Equipment
// @Param request body LockRequest true "Completed safety checklist"
// @Success 200 {object} service.TransitionResult
// @Failure 400 {object} gin.H "MissingRequiredField or IncompleteChecklist"
// @Failure 409 {object} gin.H "AlreadyLocked or AlreadyOnLoan"
// @Router /equipment/{id}/lockout [post]
func (h *EquipmentHandler) LockOut(c *gin.Context) {
	h.checklistTransition(c, h.equipmentService.LockOut)
}

// Unlock godoc
// @Summary Return a locked-out item to service
// @Tags Equipment
// @Param request body LockRequest true "Completed safety checklist"
// @Failure 409 {object} gin.H "NotLocked"
// @Router /equipment/{id}/unlock [post]
func (h *EquipmentHandler) Unlock(c *gin.Context) {
	h.checklistTransition(c, h.equipmentService.Unlock)
}

type transitionFunc func(ctx context.Context, id primitive.ObjectID, req service.LockRequest, operator string) (*service.TransitionResult, error)

func (h *EquipmentHandler) checklistTransition(c *gin.Context, apply transitionFunc) {
	id, ok := parseObjectIDParam(c, "id")
	if !ok {
		return
	}
	var body LockRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	req, err := body.toService()
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	result, err := apply(c.Request.Context(), id, req, getOperatorFromContext(c))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ReturnEquipment godoc
// @Summary Close the current loan
// @Tags Equipment
// @Failure 409 {object} gin.H "NotOnLoan"
// @Router /equipment/{id}/return [post]
func (h *EquipmentHandler) ReturnEquipment(c *gin.Context) {
	id, ok := parseObjectIDParam(c, "id")
	if !ok {
		return
	}
	var body ReturnRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
			return
		}
	}
	date, err := parseDate("date", body.Date)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	result, err := h.equipmentService.Return(c.Request.Context(), id, service.ReturnRequest{Date: date, Notes: body.Notes}, getOperatorFromContext(c))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// AuditTrail godoc
// @Summary List audit notes for an item, newest first
// @Tags Equipment
// @Router /equipment/{id}/audit [get]
func (h *EquipmentHandler) AuditTrail(c *gin.Context) {
	id, ok := parseObjectIDParam(c, "id")
	if !ok {
		return
	}
	notes, err := h.equipmentService.AuditTrail(c.Request.Context(), id)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	if notes == nil {
		notes = []domain.AuditNote{}
	}
	c.JSON(http.StatusOK, notes)
}
