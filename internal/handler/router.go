package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/edupulse/edupulse-api/internal/middleware"
	"github.com/edupulse/edupulse-api/internal/models"
	"github.com/edupulse/edupulse-api/internal/service"
)

// Handlers bundles every HTTP handler for route registration.
type Handlers struct {
	Auth            *AuthHandler
	Users           *UserHandler
	Students        *StudentHandler
	Grades          *GradeHandler
	Attendance      *AttendanceHandler
	Behavior        *BehaviorHandler
	Notifications   *NotificationHandler
	Rules           *RuleHandler
	Predictions     *PredictionHandler
	Recommendations *RecommendationHandler
	Reports         *ReportHandler
	Metrics         *MetricsHandler
}

// RegisterRoutes mounts the API under the given prefix.
func RegisterRoutes(r *gin.Engine, prefix string, h Handlers, auth *service.AuthService) {
	staff := middleware.RequireRoles(models.RoleAdministrator, models.RoleTeacher, models.RoleCounselor)
	adminOnly := middleware.RequireRoles(models.RoleAdministrator)
	adminOrCounselor := middleware.RequireRoles(models.RoleAdministrator, models.RoleCounselor)
	adminOrTeacher := middleware.RequireRoles(models.RoleAdministrator, models.RoleTeacher)

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Health)
	r.GET("/metrics", h.Metrics.Prometheus)

	api := r.Group(prefix)

	api.POST("/auth/login", h.Auth.Login)
	api.POST("/auth/refresh", h.Auth.Refresh)

	authed := api.Group("")
	authed.Use(middleware.JWT(auth))

	authed.POST("/auth/logout", h.Auth.Logout)
	authed.POST("/auth/change-password", h.Auth.ChangePassword)
	authed.GET("/auth/me", h.Auth.Me)

	authed.GET("/users", adminOnly, h.Users.List)
	authed.GET("/users/:id", middleware.RBAC(string(models.RoleAdministrator), "SELF"), h.Users.Get)
	authed.POST("/users", adminOnly, h.Users.Create)
	authed.PUT("/users/:id", adminOnly, h.Users.Update)

	authed.GET("/students", staff, h.Students.List)
	authed.GET("/students/:id", staff, h.Students.Get)
	authed.POST("/students", adminOnly, h.Students.Create)
	authed.PUT("/students/:id", adminOnly, h.Students.Update)
	authed.GET("/students/:id/features", staff, h.Students.Features)
	authed.GET("/students/:id/attendance-summary", staff, h.Attendance.Summary)
	authed.GET("/students/:id/behavior-counts", staff, h.Behavior.Counts)
	authed.GET("/students/:id/needs", adminOrCounselor, h.Recommendations.Needs)
	authed.POST("/students/:id/predict", adminOrCounselor, h.Predictions.Predict)
	authed.GET("/students/:id/predictions/latest", staff, h.Predictions.Latest)

	authed.GET("/grades", staff, h.Grades.List)
	authed.POST("/grades", adminOrTeacher, h.Grades.Create)
	authed.PUT("/grades/:id/feedback", adminOrTeacher, h.Grades.UpdateFeedback)

	authed.GET("/attendance", staff, h.Attendance.List)
	authed.POST("/attendance", adminOrTeacher, h.Attendance.Record)

	authed.GET("/behavior", staff, h.Behavior.List)
	authed.POST("/behavior", adminOrTeacher, h.Behavior.Record)

	authed.GET("/notifications", h.Notifications.List)
	authed.POST("/notifications", staff, h.Notifications.Create)
	authed.POST("/notifications/:id/read", h.Notifications.MarkRead)
	authed.POST("/notifications/:id/cancel", adminOnly, h.Notifications.Cancel)
	authed.POST("/notifications/send-pending", adminOnly, h.Notifications.SendPending)
	authed.GET("/notification-templates", staff, h.Notifications.Templates)
	authed.POST("/notification-templates", adminOnly, h.Notifications.CreateTemplate)
	authed.PUT("/notification-templates/:id", adminOnly, h.Notifications.UpdateTemplate)
	authed.GET("/notification-preferences", h.Notifications.Preference)
	authed.PUT("/notification-preferences", h.Notifications.SavePreference)

	authed.GET("/rules", staff, h.Rules.List)
	authed.POST("/rules", adminOnly, h.Rules.Create)
	authed.PUT("/rules/:id", adminOnly, h.Rules.Update)
	authed.DELETE("/rules/:id", adminOnly, h.Rules.Delete)
	authed.POST("/rules/:id/test", adminOrCounselor, h.Rules.Test)
	authed.POST("/rules/evaluate", adminOnly, h.Rules.Evaluate)
	authed.GET("/rules/:id/executions", staff, h.Rules.Executions)

	authed.GET("/models", adminOrCounselor, h.Predictions.Models)
	authed.POST("/models/train", adminOnly, h.Predictions.Train)
	authed.POST("/models/:id/activate", adminOnly, h.Predictions.Activate)

	authed.GET("/predictions", staff, h.Predictions.List)
	authed.POST("/predictions/batch", adminOrCounselor, h.Predictions.BatchPredict)
	authed.GET("/predictions/at-risk", staff, h.Predictions.AtRisk)
	authed.PUT("/predictions/:id/outcome", adminOrCounselor, h.Predictions.RecordOutcome)

	authed.GET("/recommendations", staff, h.Recommendations.List)
	authed.GET("/recommendations/:id", staff, h.Recommendations.Get)
	authed.POST("/recommendations/generate", adminOrCounselor, h.Recommendations.Generate)
	authed.PUT("/recommendations/:id/status", staff, h.Recommendations.UpdateStatus)
	authed.PUT("/recommendations/:id/effectiveness", adminOrCounselor, h.Recommendations.Rate)

	authed.POST("/reports/at-risk", adminOrCounselor, h.Reports.GenerateAtRisk)
	authed.GET("/reports/:key", adminOrCounselor, h.Reports.Download)
}
