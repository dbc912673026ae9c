package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edupulse/edupulse-api/internal/models"
	"github.com/edupulse/edupulse-api/internal/service"
	appErrors "github.com/edupulse/edupulse-api/pkg/errors"
	"github.com/edupulse/edupulse-api/pkg/response"
)

// NotificationHandler exposes notification, template and preference endpoints.
type NotificationHandler struct {
	notifications *service.NotificationService
}

// NewNotificationHandler constructs NotificationHandler.
func NewNotificationHandler(notifications *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

type createNotificationPayload struct {
	TemplateID   string  `json:"template_id" binding:"required"`
	RecipientID  string  `json:"recipient_id" binding:"required"`
	StudentID    *string `json:"student_id"`
	Channel      string  `json:"channel"`
	StudentName  string  `json:"student_name"`
	StudentNum   string  `json:"student_number"`
	TriggerValue float64 `json:"trigger_value"`
	Threshold    float64 `json:"threshold_value"`
	RuleName     string  `json:"rule_name"`
}

// List godoc
// @Summary List notifications
// @Tags Notifications
// @Produce json
// @Param recipientId query string false "Filter by recipient"
// @Param studentId query string false "Filter by student"
// @Param status query string false "Filter by status"
// @Param channel query string false "Filter by channel"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	var filter models.NotificationFilter
	filter.RecipientID = c.Query("recipientId")
	filter.StudentID = c.Query("studentId")
	filter.Status = models.NotificationStatus(c.Query("status"))
	filter.Channel = models.NotificationChannel(c.Query("channel"))
	filter.Page, filter.PageSize = pageParams(c)

	notifications, total, err := h.notifications.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, notifications, paginationFor(filter.Page, filter.PageSize, total))
}

// Create godoc
// @Summary Create a notification from a template
// @Tags Notifications
// @Accept json
// @Produce json
// @Param payload body createNotificationPayload true "Notification payload"
// @Success 201 {object} response.Envelope
// @Router /notifications [post]
func (h *NotificationHandler) Create(c *gin.Context) {
	var payload createNotificationPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	channel := models.NotificationChannel(payload.Channel)
	if channel == "" {
		channel = models.ChannelInApp
	}
	notification, err := h.notifications.Create(c.Request.Context(), service.CreateNotificationInput{
		TemplateID:  payload.TemplateID,
		RecipientID: payload.RecipientID,
		StudentID:   payload.StudentID,
		Channel:     channel,
		Context: service.TemplateContext{
			StudentName:  payload.StudentName,
			StudentID:    payload.StudentNum,
			TriggerValue: payload.TriggerValue,
			Threshold:    payload.Threshold,
			RuleName:     payload.RuleName,
		},
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	if notification == nil {
		// Blocked by recipient preferences.
		response.JSON(c, http.StatusOK, gin.H{"created": false, "reason": "blocked by preferences"}, nil)
		return
	}
	response.Created(c, notification)
}

// MarkRead godoc
// @Summary Mark a notification as read
// @Tags Notifications
// @Produce json
// @Param id path string true "Notification ID"
// @Success 204 {object} response.Envelope
// @Router /notifications/{id}/read [post]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.notifications.MarkRead(c.Request.Context(), c.Param("id"), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Cancel godoc
// @Summary Cancel a pending notification
// @Tags Notifications
// @Produce json
// @Param id path string true "Notification ID"
// @Success 204 {object} response.Envelope
// @Router /notifications/{id}/cancel [post]
func (h *NotificationHandler) Cancel(c *gin.Context) {
	if err := h.notifications.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// SendPending godoc
// @Summary Queue due pending notifications for delivery
// @Tags Notifications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /notifications/send-pending [post]
func (h *NotificationHandler) SendPending(c *gin.Context) {
	queued, err := h.notifications.SendPending(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"queued": queued}, nil)
}

// Templates godoc
// @Summary List notification templates
// @Tags Notifications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /notification-templates [get]
func (h *NotificationHandler) Templates(c *gin.Context) {
	templates, err := h.notifications.Templates(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, templates, nil)
}

// CreateTemplate godoc
// @Summary Create a notification template
// @Tags Notifications
// @Accept json
// @Produce json
// @Param payload body models.NotificationTemplate true "Template payload"
// @Success 201 {object} response.Envelope
// @Router /notification-templates [post]
func (h *NotificationHandler) CreateTemplate(c *gin.Context) {
	var tpl models.NotificationTemplate
	if err := c.ShouldBindJSON(&tpl); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.notifications.CreateTemplate(c.Request.Context(), &tpl); err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, tpl)
}

// UpdateTemplate godoc
// @Summary Update a notification template
// @Tags Notifications
// @Accept json
// @Produce json
// @Param id path string true "Template ID"
// @Param payload body models.NotificationTemplate true "Template payload"
// @Success 200 {object} response.Envelope
// @Router /notification-templates/{id} [put]
func (h *NotificationHandler) UpdateTemplate(c *gin.Context) {
	var tpl models.NotificationTemplate
	if err := c.ShouldBindJSON(&tpl); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	tpl.ID = c.Param("id")
	if err := h.notifications.UpdateTemplate(c.Request.Context(), &tpl); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tpl, nil)
}

// Preference godoc
// @Summary Get the current user's notification preferences
// @Tags Notifications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /notification-preferences [get]
func (h *NotificationHandler) Preference(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	pref, err := h.notifications.Preference(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pref, nil)
}

// SavePreference godoc
// @Summary Upsert the current user's notification preferences
// @Tags Notifications
// @Accept json
// @Produce json
// @Param payload body models.NotificationPreference true "Preference payload"
// @Success 200 {object} response.Envelope
// @Router /notification-preferences [put]
func (h *NotificationHandler) SavePreference(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var pref models.NotificationPreference
	if err := c.ShouldBindJSON(&pref); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	pref.UserID = claims.UserID
	if err := h.notifications.SavePreference(c.Request.Context(), &pref); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pref, nil)
}
