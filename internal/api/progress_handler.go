package api

import (
	"alcyxob/equipment-app/internal/domain"
	"alcyxob/equipment-app/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProgressHandler holds the progress service dependency.
type ProgressHandler struct {
	progressService service.ProgressService
}

// NewProgressHandler creates a new ProgressHandler.
func NewProgressHandler(progressService service.ProgressService) *ProgressHandler {
	return &ProgressHandler{progressService: progressService}
}

// --- DTOs ---

// ProgressUpdateRequest maps lesson names to either a bare percentage or a full entry.
type ProgressUpdateRequest map[string]domain.ProgressEntry

type ResetProgressRequest struct {
	Lessons []string `json:"lessons"`
}

type MarkCompetentRequest struct {
	PersonIDs []string `json:"personIds"`
	Lessons   []string `json:"lessons"`
}

type ProgressResponse struct {
	PersonID string                          `json:"personId"`
	Progress map[string]domain.ProgressEntry `json:"progress"`
}

// --- Handler Methods ---

// UpdateProgress godoc
// @Summary Apply progress for one person
// @Description Sets the target entry for each lesson. Completion and competency dates are stamped once and kept.
// @Tags Progress
// @Accept json
// @Produce json
// @Param id path string true "Person ID"
// @Param progress body ProgressUpdateRequest true "Lesson name to percentage or entry"
// @Success 200 {object} ProgressResponse
// @Failure 400 {object} gin.H "Validation error"
// @Failure 404 {object} gin.H "Person not found"
// @Router /people/{id}/progress [put]
func (h *ProgressHandler) UpdateProgress(c *gin.Context) {
	personID, ok := parseObjectIDParam(c, "id")
	if !ok {
		return
	}
	var req ProgressUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	progress, err := h.progressService.ApplyProgressUpdate(c.Request.Context(), personID, req)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ProgressResponse{PersonID: personID.Hex(), Progress: progress})
}

// ResetProgress godoc
// @Summary Reset lessons for one person
// @Tags Progress
// @Router /people/{id}/progress/reset [post]
func (h *ProgressHandler) ResetProgress(c *gin.Context) {
	personID, ok := parseObjectIDParam(c, "id")
	if !ok {
		return
	}
	var req ResetProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	progress, err := h.progressService.ResetProgress(c.Request.Context(), personID, req.Lessons)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ProgressResponse{PersonID: personID.Hex(), Progress: progress})
}

// GetProgress godoc
// @Summary Read the progress map of one person
// @Tags Progress
// @Router /people/{id}/progress [get]
func (h *ProgressHandler) GetProgress(c *gin.Context) {
	personID, ok := parseObjectIDParam(c, "id")
	if !ok {
		return
	}
	progress, err := h.progressService.GetProgress(c.Request.Context(), personID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ProgressResponse{PersonID: personID.Hex(), Progress: progress})
}

// MarkCompetent godoc
// @Summary Grant competency in bulk
// @Description Marks every listed person competent in every listed lesson. Every person is checked before anything is written.
// @Description On a store failure mid-batch the error body also lists the people already written under "people".
// @Tags Progress
// @Router /progress/competency [post]
func (h *ProgressHandler) MarkCompetent(c *gin.Context) {
	var req MarkCompetentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	ids := make([]primitive.ObjectID, 0, len(req.PersonIDs))
	for _, raw := range req.PersonIDs {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "Invalid person ID format: "+raw)
			return
		}
		ids = append(ids, id)
	}

	results, err := h.progressService.MarkCompetent(c.Request.Context(), ids, req.Lessons)
	responses := make([]ProgressResponse, 0, len(results))
	for _, id := range ids {
		if progress, ok := results[id]; ok {
			responses = append(responses, ProgressResponse{PersonID: id.Hex(), Progress: progress})
		}
	}
	if err != nil {
		// People written before the failure are listed too.
		status, body := serviceErrorResponse(c, err)
		body["people"] = responses
		c.AbortWithStatusJSON(status, body)
		return
	}
	c.JSON(http.StatusOK, gin.H{"people": responses})
}
