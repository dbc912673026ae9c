package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edupulse/edupulse-api/internal/models"
)

// NotificationRepository manages persistence for templates, notifications
// and per-user preferences.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs a new repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

const templateColumns = `id, name, notification_type, title_template, message_template, delay_minutes, active, created_at, updated_at`
const notificationColumns = `id, template_id, recipient_id, student_id, title, message, channel, status, scheduled_at, sent_at, delivered_at, read_at, delivery_attempts, last_error, created_at`

// FindTemplate fetches one template by ID.
func (r *NotificationRepository) FindTemplate(ctx context.Context, id string) (*models.NotificationTemplate, error) {
	var tpl models.NotificationTemplate
	query := fmt.Sprintf("SELECT %s FROM notification_templates WHERE id = $1", templateColumns)
	if err := r.db.GetContext(ctx, &tpl, query, id); err != nil {
		return nil, fmt.Errorf("find template: %w", err)
	}
	return &tpl, nil
}

// ListTemplates returns all templates, active first.
func (r *NotificationRepository) ListTemplates(ctx context.Context) ([]models.NotificationTemplate, error) {
	var templates []models.NotificationTemplate
	query := fmt.Sprintf("SELECT %s FROM notification_templates ORDER BY active DESC, name ASC", templateColumns)
	if err := r.db.SelectContext(ctx, &templates, query); err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return templates, nil
}

// CreateTemplate inserts a new template.
func (r *NotificationRepository) CreateTemplate(ctx context.Context, tpl *models.NotificationTemplate) error {
	if tpl.ID == "" {
		tpl.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	tpl.CreatedAt = now
	tpl.UpdatedAt = now
	_, err := r.db.ExecContext(ctx, `INSERT INTO notification_templates
		(id, name, notification_type, title_template, message_template, delay_minutes, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		tpl.ID, tpl.Name, tpl.Type, tpl.TitleTemplate, tpl.MessageTemplate, tpl.DelayMinutes, tpl.Active, tpl.CreatedAt, tpl.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create template: %w", err)
	}
	return nil
}

// UpdateTemplate modifies a template.
func (r *NotificationRepository) UpdateTemplate(ctx context.Context, tpl *models.NotificationTemplate) error {
	tpl.UpdatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `UPDATE notification_templates SET
		name = $2, notification_type = $3, title_template = $4, message_template = $5,
		delay_minutes = $6, active = $7, updated_at = $8
		WHERE id = $1`,
		tpl.ID, tpl.Name, tpl.Type, tpl.TitleTemplate, tpl.MessageTemplate, tpl.DelayMinutes, tpl.Active, tpl.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	return nil
}

// Create inserts a pending notification.
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.CreatedAt = time.Now().UTC()
	if n.Status == "" {
		n.Status = models.NotificationPending
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO notifications
		(id, template_id, recipient_id, student_id, title, message, channel, status, scheduled_at, delivery_attempts, last_error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		n.ID, n.TemplateID, n.RecipientID, n.StudentID, n.Title, n.Message, n.Channel, n.Status,
		n.ScheduledAt, n.DeliveryAttempts, n.LastError, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// List returns notifications per provided filter.
func (r *NotificationRepository) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.RecipientID != "" {
		where = append(where, fmt.Sprintf("recipient_id = $%d", len(args)+1))
		args = append(args, filter.RecipientID)
	}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Channel != "" {
		where = append(where, fmt.Sprintf("channel = $%d", len(args)+1))
		args = append(args, filter.Channel)
	}
	whereClause := strings.Join(where, " AND ")
	page, size := normalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT %s FROM notifications WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		notificationColumns, whereClause, size, (page-1)*size)
	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM notifications WHERE %s", whereClause)
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}
	return notifications, total, nil
}

// FindByID fetches one notification.
func (r *NotificationRepository) FindByID(ctx context.Context, id string) (*models.Notification, error) {
	var n models.Notification
	query := fmt.Sprintf("SELECT %s FROM notifications WHERE id = $1", notificationColumns)
	if err := r.db.GetContext(ctx, &n, query, id); err != nil {
		return nil, fmt.Errorf("find notification: %w", err)
	}
	return &n, nil
}

// ListDuePending returns pending notifications whose scheduled time has
// passed, oldest first.
func (r *NotificationRepository) ListDuePending(ctx context.Context, now time.Time, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT %s FROM notifications
		WHERE status = $1 AND scheduled_at <= $2 ORDER BY scheduled_at ASC LIMIT %d`, notificationColumns, limit)
	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, models.NotificationPending, now); err != nil {
		return nil, fmt.Errorf("list due notifications: %w", err)
	}
	return notifications, nil
}

// MarkSent transitions pending -> sent.
func (r *NotificationRepository) MarkSent(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE notifications SET status = $2, sent_at = $3,
		delivery_attempts = delivery_attempts + 1 WHERE id = $1`,
		id, models.NotificationSent, at)
	if err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}
	return nil
}

// MarkDelivered transitions sent -> delivered.
func (r *NotificationRepository) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE notifications SET status = $2, delivered_at = $3 WHERE id = $1`,
		id, models.NotificationDelivered, at)
	if err != nil {
		return fmt.Errorf("mark notification delivered: %w", err)
	}
	return nil
}

// MarkRead transitions delivered -> read.
func (r *NotificationRepository) MarkRead(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE notifications SET status = $2, read_at = $3 WHERE id = $1`,
		id, models.NotificationRead, at)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

// MarkFailed records a delivery failure; the row stays retryable.
func (r *NotificationRepository) MarkFailed(ctx context.Context, id, reason string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE notifications SET status = $2, last_error = $3,
		delivery_attempts = delivery_attempts + 1 WHERE id = $1`,
		id, models.NotificationFailed, reason)
	if err != nil {
		return fmt.Errorf("mark notification failed: %w", err)
	}
	return nil
}

// Cancel transitions a pending notification to cancelled.
func (r *NotificationRepository) Cancel(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE notifications SET status = $2 WHERE id = $1 AND status = $3`,
		id, models.NotificationCancelled, models.NotificationPending)
	if err != nil {
		return fmt.Errorf("cancel notification: %w", err)
	}
	return nil
}

// FindPreference fetches a user's notification preference, if any.
func (r *NotificationRepository) FindPreference(ctx context.Context, userID string) (*models.NotificationPreference, error) {
	var pref models.NotificationPreference
	query := `SELECT user_id, email_enabled, sms_enabled, push_enabled, grade_alerts, attendance_warnings,
		behavior_incidents, prediction_alerts, recommendation_assignments, assignment_reminders,
		system_announcements, updated_at FROM notification_preferences WHERE user_id = $1`
	if err := r.db.GetContext(ctx, &pref, query, userID); err != nil {
		return nil, fmt.Errorf("find preference: %w", err)
	}
	return &pref, nil
}

// UpsertPreference creates or replaces a user's preference row.
func (r *NotificationRepository) UpsertPreference(ctx context.Context, pref *models.NotificationPreference) error {
	pref.UpdatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `INSERT INTO notification_preferences
		(user_id, email_enabled, sms_enabled, push_enabled, grade_alerts, attendance_warnings,
		 behavior_incidents, prediction_alerts, recommendation_assignments, assignment_reminders,
		 system_announcements, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (user_id) DO UPDATE SET
		 email_enabled = EXCLUDED.email_enabled, sms_enabled = EXCLUDED.sms_enabled,
		 push_enabled = EXCLUDED.push_enabled, grade_alerts = EXCLUDED.grade_alerts,
		 attendance_warnings = EXCLUDED.attendance_warnings, behavior_incidents = EXCLUDED.behavior_incidents,
		 prediction_alerts = EXCLUDED.prediction_alerts, recommendation_assignments = EXCLUDED.recommendation_assignments,
		 assignment_reminders = EXCLUDED.assignment_reminders, system_announcements = EXCLUDED.system_announcements,
		 updated_at = EXCLUDED.updated_at`,
		pref.UserID, pref.EmailEnabled, pref.SMSEnabled, pref.PushEnabled, pref.GradeAlerts,
		pref.AttendanceWarnings, pref.BehaviorIncidents, pref.PredictionAlerts,
		pref.RecommendationAssignments, pref.AssignmentReminders, pref.SystemAnnouncements, pref.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert preference: %w", err)
	}
	return nil
}
