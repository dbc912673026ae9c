package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/edupulse/edupulse-api/internal/models"
	"github.com/edupulse/edupulse-api/internal/service"
	appErrors "github.com/edupulse/edupulse-api/pkg/errors"
	"github.com/edupulse/edupulse-api/pkg/response"
)

// RuleHandler exposes notification rule endpoints.
type RuleHandler struct {
	rules *service.RuleService
}

// NewRuleHandler constructs RuleHandler.
func NewRuleHandler(rules *service.RuleService) *RuleHandler {
	return &RuleHandler{rules: rules}
}

// List godoc
// @Summary List notification rules
// @Tags Rules
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /rules [get]
func (h *RuleHandler) List(c *gin.Context) {
	rules, err := h.rules.ListRules(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rules, nil)
}

// Create godoc
// @Summary Create a notification rule
// @Tags Rules
// @Accept json
// @Produce json
// @Param payload body models.NotificationRule true "Rule payload"
// @Success 201 {object} response.Envelope
// @Router /rules [post]
func (h *RuleHandler) Create(c *gin.Context) {
	var rule models.NotificationRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.rules.CreateRule(c.Request.Context(), &rule); err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, rule)
}

// Update godoc
// @Summary Update a notification rule
// @Tags Rules
// @Accept json
// @Produce json
// @Param id path string true "Rule ID"
// @Param payload body models.NotificationRule true "Rule payload"
// @Success 200 {object} response.Envelope
// @Router /rules/{id} [put]
func (h *RuleHandler) Update(c *gin.Context) {
	var rule models.NotificationRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	rule.ID = c.Param("id")
	if err := h.rules.UpdateRule(c.Request.Context(), &rule); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rule, nil)
}

// Delete godoc
// @Summary Delete a notification rule
// @Tags Rules
// @Produce json
// @Param id path string true "Rule ID"
// @Success 204 {object} response.Envelope
// @Router /rules/{id} [delete]
func (h *RuleHandler) Delete(c *gin.Context) {
	if err := h.rules.DeleteRule(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Test godoc
// @Summary Dry-run a rule against one student
// @Tags Rules
// @Produce json
// @Param id path string true "Rule ID"
// @Param studentId query string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /rules/{id}/test [post]
func (h *RuleHandler) Test(c *gin.Context) {
	studentID := c.Query("studentId")
	if studentID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "studentId is required"))
		return
	}
	result, err := h.rules.TestRule(c.Request.Context(), c.Param("id"), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Evaluate godoc
// @Summary Evaluate all active rules against all active students
// @Tags Rules
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /rules/evaluate [post]
func (h *RuleHandler) Evaluate(c *gin.Context) {
	stats, err := h.rules.EvaluateRules(c.Request.Context(), nil, nil)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Executions godoc
// @Summary List recent executions of a rule
// @Tags Rules
// @Produce json
// @Param id path string true "Rule ID"
// @Param limit query int false "Max rows"
// @Success 200 {object} response.Envelope
// @Router /rules/{id}/executions [get]
func (h *RuleHandler) Executions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	executions, err := h.rules.Executions(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, executions, nil)
}
