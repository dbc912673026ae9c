package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edupulse/edupulse-api/internal/models"
	"github.com/edupulse/edupulse-api/internal/service"
	appErrors "github.com/edupulse/edupulse-api/pkg/errors"
	"github.com/edupulse/edupulse-api/pkg/response"
)

// BehaviorHandler exposes behavior record endpoints.
type BehaviorHandler struct {
	behavior *service.BehaviorService
}

// NewBehaviorHandler constructs BehaviorHandler.
func NewBehaviorHandler(behavior *service.BehaviorService) *BehaviorHandler {
	return &BehaviorHandler{behavior: behavior}
}

// List godoc
// @Summary List behavior records
// @Tags Behavior
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param type query string false "Filter by behavior type"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /behavior [get]
func (h *BehaviorHandler) List(c *gin.Context) {
	var filter models.BehaviorFilter
	filter.StudentID = c.Query("studentId")
	filter.Type = models.BehaviorType(c.Query("type"))
	filter.DateFrom = timeQuery(c, "from")
	filter.DateTo = timeQuery(c, "to")
	filter.Page, filter.PageSize = pageParams(c)

	records, total, err := h.behavior.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, paginationFor(filter.Page, filter.PageSize, total))
}

// Counts godoc
// @Summary Per-student behavior counts
// @Tags Behavior
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/behavior-counts [get]
func (h *BehaviorHandler) Counts(c *gin.Context) {
	counts, err := h.behavior.Counts(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, counts, nil)
}

// Record godoc
// @Summary Record a behavioral incident
// @Tags Behavior
// @Accept json
// @Produce json
// @Param payload body service.RecordBehaviorRequest true "Behavior payload"
// @Success 201 {object} response.Envelope
// @Router /behavior [post]
func (h *BehaviorHandler) Record(c *gin.Context) {
	var req service.RecordBehaviorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.behavior.Record(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}
