package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edupulse/edupulse-api/internal/models"
	"github.com/edupulse/edupulse-api/internal/service"
	appErrors "github.com/edupulse/edupulse-api/pkg/errors"
	"github.com/edupulse/edupulse-api/pkg/response"
)

// RecommendationHandler exposes intervention recommendation endpoints.
type RecommendationHandler struct {
	recommendations *service.RecommendationService
	predictions     *service.PredictionService
	students        *service.StudentService
}

// NewRecommendationHandler constructs RecommendationHandler.
func NewRecommendationHandler(
	recommendations *service.RecommendationService,
	predictions *service.PredictionService,
	students *service.StudentService,
) *RecommendationHandler {
	return &RecommendationHandler{
		recommendations: recommendations,
		predictions:     predictions,
		students:        students,
	}
}

type generateRecommendationsPayload struct {
	PredictionID      string `json:"prediction_id" binding:"required"`
	IncludeResources  bool   `json:"include_resources"`
	PriorityThreshold string `json:"priority_threshold"`
}

// Generate godoc
// @Summary Generate recommendations from a prediction
// @Tags Recommendations
// @Accept json
// @Produce json
// @Param payload body generateRecommendationsPayload true "Generation payload"
// @Success 201 {object} response.Envelope
// @Router /recommendations/generate [post]
func (h *RecommendationHandler) Generate(c *gin.Context) {
	var payload generateRecommendationsPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	prediction, err := h.predictions.Find(c.Request.Context(), payload.PredictionID)
	if err != nil {
		response.Error(c, err)
		return
	}

	var createdBy *string
	if claims := claimsFromContext(c); claims != nil {
		createdBy = &claims.UserID
	}

	recommendations, err := h.recommendations.Generate(
		c.Request.Context(),
		prediction,
		payload.IncludeResources,
		models.RecommendationPriority(payload.PriorityThreshold),
		createdBy,
	)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, recommendations)
}

// Needs godoc
// @Summary Analyze a student's intervention needs
// @Tags Recommendations
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/needs [get]
func (h *RecommendationHandler) Needs(c *gin.Context) {
	student, err := h.students.Find(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	needs, err := h.recommendations.AnalyzeStudentNeeds(c.Request.Context(), student)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"student_id": student.ID, "needs": needs}, nil)
}

// List godoc
// @Summary List recommendations
// @Tags Recommendations
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param category query string false "Filter by category"
// @Param priority query string false "Filter by priority"
// @Param status query string false "Filter by status"
// @Param overdue query bool false "Only overdue"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /recommendations [get]
func (h *RecommendationHandler) List(c *gin.Context) {
	var filter models.RecommendationFilter
	filter.StudentID = c.Query("studentId")
	filter.Category = models.RecommendationCategory(c.Query("category"))
	filter.Priority = models.RecommendationPriority(c.Query("priority"))
	filter.Status = models.RecommendationStatus(c.Query("status"))
	filter.Overdue = c.Query("overdue") == "true"
	filter.Page, filter.PageSize = pageParams(c)

	recommendations, total, err := h.recommendations.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, recommendations, paginationFor(filter.Page, filter.PageSize, total))
}

// Get godoc
// @Summary Get recommendation detail
// @Tags Recommendations
// @Produce json
// @Param id path string true "Recommendation ID"
// @Success 200 {object} response.Envelope
// @Router /recommendations/{id} [get]
func (h *RecommendationHandler) Get(c *gin.Context) {
	recommendation, err := h.recommendations.Find(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, recommendation, nil)
}

// UpdateStatus godoc
// @Summary Transition a recommendation's status
// @Tags Recommendations
// @Accept json
// @Produce json
// @Param id path string true "Recommendation ID"
// @Param payload body map[string]string true "Status"
// @Success 204 {object} response.Envelope
// @Router /recommendations/{id}/status [put]
func (h *RecommendationHandler) UpdateStatus(c *gin.Context) {
	var payload struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "status required"))
		return
	}
	if err := h.recommendations.UpdateStatus(c.Request.Context(), c.Param("id"), models.RecommendationStatus(payload.Status)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Rate godoc
// @Summary Rate a completed recommendation's effectiveness
// @Tags Recommendations
// @Accept json
// @Produce json
// @Param id path string true "Recommendation ID"
// @Param payload body map[string]int true "Rating 1-5"
// @Success 204 {object} response.Envelope
// @Router /recommendations/{id}/effectiveness [put]
func (h *RecommendationHandler) Rate(c *gin.Context) {
	var payload struct {
		Rating int `json:"rating" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "rating required"))
		return
	}
	if err := h.recommendations.RateEffectiveness(c.Request.Context(), c.Param("id"), payload.Rating); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
