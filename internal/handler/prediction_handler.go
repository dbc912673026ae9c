package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edupulse/edupulse-api/internal/models"
	"github.com/edupulse/edupulse-api/internal/service"
	appErrors "github.com/edupulse/edupulse-api/pkg/errors"
	"github.com/edupulse/edupulse-api/pkg/response"
)

const atRiskCacheKey = "predictions:at_risk"

// PredictionHandler exposes model and inference endpoints.
type PredictionHandler struct {
	predictions *service.PredictionService
	metrics     *service.MetricsService
	cache       *service.CacheService
}

// NewPredictionHandler constructs PredictionHandler.
func NewPredictionHandler(predictions *service.PredictionService, metrics *service.MetricsService, cache *service.CacheService) *PredictionHandler {
	return &PredictionHandler{predictions: predictions, metrics: metrics, cache: cache}
}

// Train godoc
// @Summary Train a new model
// @Tags Predictions
// @Accept json
// @Produce json
// @Param payload body service.TrainModelRequest true "Training set"
// @Success 201 {object} response.Envelope
// @Router /models/train [post]
func (h *PredictionHandler) Train(c *gin.Context) {
	var req service.TrainModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	model, err := h.predictions.Train(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, model)
}

// Activate godoc
// @Summary Activate a trained model
// @Tags Predictions
// @Produce json
// @Param id path string true "Model ID"
// @Success 204 {object} response.Envelope
// @Router /models/{id}/activate [post]
func (h *PredictionHandler) Activate(c *gin.Context) {
	if err := h.predictions.Activate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Models godoc
// @Summary List registered models
// @Tags Predictions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /models [get]
func (h *PredictionHandler) Models(c *gin.Context) {
	records, err := h.predictions.Models(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// Predict godoc
// @Summary Run inference for one student
// @Tags Predictions
// @Produce json
// @Param id path string true "Student ID"
// @Param type query string false "Prediction type (default dropout)"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/predict [post]
func (h *PredictionHandler) Predict(c *gin.Context) {
	predictionType := models.PredictionType(c.DefaultQuery("type", string(models.PredictionDropout)))
	result, err := h.predictions.Predict(c.Request.Context(), c.Param("id"), predictionType)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordPrediction(string(result.PredictionType), string(result.RiskLevel))
	h.cache.Invalidate(c.Request.Context(), atRiskCacheKey)
	response.JSON(c, http.StatusOK, result, nil)
}

// BatchPredict godoc
// @Summary Run inference for every active student
// @Tags Predictions
// @Produce json
// @Param type query string false "Prediction type (default dropout)"
// @Success 200 {object} response.Envelope
// @Router /predictions/batch [post]
func (h *PredictionHandler) BatchPredict(c *gin.Context) {
	predictionType := models.PredictionType(c.DefaultQuery("type", string(models.PredictionDropout)))
	result, err := h.predictions.BatchPredict(c.Request.Context(), nil, predictionType)
	if err != nil {
		response.Error(c, err)
		return
	}
	for i := range result.Predictions {
		h.metrics.RecordPrediction(string(result.Predictions[i].PredictionType), string(result.Predictions[i].RiskLevel))
	}
	h.cache.Invalidate(c.Request.Context(), atRiskCacheKey)
	response.JSON(c, http.StatusOK, result, nil)
}

// List godoc
// @Summary List stored predictions
// @Tags Predictions
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param type query string false "Filter by prediction type"
// @Param riskLevel query string false "Filter by risk level"
// @Param active query bool false "Filter by active flag"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /predictions [get]
func (h *PredictionHandler) List(c *gin.Context) {
	var filter models.PredictionFilter
	filter.StudentID = c.Query("studentId")
	filter.Type = models.PredictionType(c.Query("type"))
	filter.RiskLevel = models.RiskLevel(c.Query("riskLevel"))
	filter.Active = boolQuery(c, "active")
	filter.Page, filter.PageSize = pageParams(c)

	predictions, total, err := h.predictions.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, predictions, paginationFor(filter.Page, filter.PageSize, total))
}

// Latest godoc
// @Summary Latest active prediction for a student
// @Tags Predictions
// @Produce json
// @Param id path string true "Student ID"
// @Param type query string false "Prediction type (default dropout)"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/predictions/latest [get]
func (h *PredictionHandler) Latest(c *gin.Context) {
	predictionType := models.PredictionType(c.DefaultQuery("type", string(models.PredictionDropout)))
	prediction, err := h.predictions.Latest(c.Request.Context(), c.Param("id"), predictionType)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, prediction, nil)
}

// AtRisk godoc
// @Summary List active predictions flagged high or critical
// @Tags Predictions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /predictions/at-risk [get]
func (h *PredictionHandler) AtRisk(c *gin.Context) {
	var cached []models.Prediction
	if hit, err := h.cache.Get(c.Request.Context(), atRiskCacheKey, &cached); err == nil && hit {
		response.JSON(c, http.StatusOK, cached, nil)
		return
	}
	predictions, err := h.predictions.AtRisk(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	h.cache.Set(c.Request.Context(), atRiskCacheKey, predictions)
	response.JSON(c, http.StatusOK, predictions, nil)
}

// RecordOutcome godoc
// @Summary Backfill the observed outcome for a prediction
// @Tags Predictions
// @Accept json
// @Produce json
// @Param id path string true "Prediction ID"
// @Param payload body map[string]float64 true "Outcome"
// @Success 204 {object} response.Envelope
// @Router /predictions/{id}/outcome [put]
func (h *PredictionHandler) RecordOutcome(c *gin.Context) {
	var payload struct {
		ActualOutcome *float64 `json:"actual_outcome" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "actual_outcome required"))
		return
	}
	if err := h.predictions.RecordOutcome(c.Request.Context(), c.Param("id"), *payload.ActualOutcome); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
