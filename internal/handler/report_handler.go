package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edupulse/edupulse-api/internal/service"
	appErrors "github.com/edupulse/edupulse-api/pkg/errors"
	"github.com/edupulse/edupulse-api/pkg/response"
)

// ReportHandler exposes report generation and download endpoints.
type ReportHandler struct {
	reports *service.ReportService
}

// NewReportHandler constructs ReportHandler.
func NewReportHandler(reports *service.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// GenerateAtRisk godoc
// @Summary Generate the at-risk student summary
// @Tags Reports
// @Produce json
// @Param format query string false "csv or pdf (default csv)"
// @Success 201 {object} response.Envelope
// @Router /reports/at-risk [post]
func (h *ReportHandler) GenerateAtRisk(c *gin.Context) {
	format := service.ReportFormat(c.DefaultQuery("format", string(service.ReportCSV)))
	report, err := h.reports.GenerateAtRiskSummary(c.Request.Context(), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, report)
}

// Download godoc
// @Summary Download a generated report
// @Tags Reports
// @Produce octet-stream
// @Param key path string true "Report key"
// @Success 200 {file} binary
// @Router /reports/{key} [get]
func (h *ReportHandler) Download(c *gin.Context) {
	key := c.Param("key")
	if key == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "report key is required"))
		return
	}
	blob, err := h.reports.Download(c.Request.Context(), key)
	if err != nil {
		response.Error(c, err)
		return
	}
	contentType := "text/csv"
	if len(key) > 4 && key[len(key)-4:] == ".pdf" {
		contentType = "application/pdf"
	}
	c.Header("Content-Disposition", "attachment; filename="+key)
	c.Data(http.StatusOK, contentType, blob)
}
