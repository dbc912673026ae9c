package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edupulse/edupulse-api/internal/models"
	appErrors "github.com/edupulse/edupulse-api/pkg/errors"
	"github.com/edupulse/edupulse-api/pkg/jobs"
)

type notificationRepo interface {
	FindTemplate(ctx context.Context, id string) (*models.NotificationTemplate, error)
	ListTemplates(ctx context.Context) ([]models.NotificationTemplate, error)
	CreateTemplate(ctx context.Context, tpl *models.NotificationTemplate) error
	UpdateTemplate(ctx context.Context, tpl *models.NotificationTemplate) error
	Create(ctx context.Context, n *models.Notification) error
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
	FindByID(ctx context.Context, id string) (*models.Notification, error)
	ListDuePending(ctx context.Context, now time.Time, limit int) ([]models.Notification, error)
	MarkSent(ctx context.Context, id string, at time.Time) error
	MarkDelivered(ctx context.Context, id string, at time.Time) error
	MarkRead(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id, reason string) error
	Cancel(ctx context.Context, id string) error
	FindPreference(ctx context.Context, userID string) (*models.NotificationPreference, error)
	UpsertPreference(ctx context.Context, pref *models.NotificationPreference) error
}

type notificationUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// Sender delivers one rendered notification over an external channel.
// Transport specifics live behind this boundary.
type Sender interface {
	Send(ctx context.Context, n *models.Notification, recipient *models.User) error
}

// TemplateContext carries the fixed substitution keys available to
// notification templates.
type TemplateContext struct {
	StudentName  string
	StudentID    string
	TriggerValue float64
	Threshold    float64
	RuleName     string
}

func (c TemplateContext) values() map[string]string {
	return map[string]string{
		"student_name":    c.StudentName,
		"student_id":      c.StudentID,
		"trigger_value":   strconv.FormatFloat(c.TriggerValue, 'f', -1, 64),
		"threshold_value": strconv.FormatFloat(c.Threshold, 'f', -1, 64),
		"rule_name":       c.RuleName,
	}
}

// RenderTemplate substitutes {{key}} placeholders. Unknown placeholders are
// left intact so a template typo is visible instead of silently blank.
func RenderTemplate(tpl string, ctx TemplateContext) string {
	out := tpl
	for key, value := range ctx.values() {
		out = strings.ReplaceAll(out, "{{"+key+"}}", value)
		out = strings.ReplaceAll(out, "{{ "+key+" }}", value)
	}
	return out
}

// CreateNotificationInput is the payload for creating one notification.
type CreateNotificationInput struct {
	TemplateID  string                     `validate:"required"`
	RecipientID string                     `validate:"required"`
	StudentID   *string
	Channel     models.NotificationChannel
	ScheduledAt *time.Time
	Context     TemplateContext
}

// NotificationService renders templates, gates creation on user preferences
// and drives delivery through the background queue.
type NotificationService struct {
	repo      notificationRepo
	users     notificationUserReader
	senders   map[models.NotificationChannel]Sender
	queue     *jobs.Queue
	validator *validator.Validate
	logger    *zap.Logger
}

// NewNotificationService constructs the service. Start must be called before
// SendPending can drain the queue.
func NewNotificationService(
	repo notificationRepo,
	users notificationUserReader,
	senders map[models.NotificationChannel]Sender,
	validate *validator.Validate,
	logger *zap.Logger,
	queueCfg jobs.QueueConfig,
) *NotificationService {
	s := &NotificationService{
		repo:      repo,
		users:     users,
		senders:   senders,
		validator: validate,
		logger:    logger,
	}
	queueCfg.Logger = logger
	s.queue = jobs.NewQueue("notification-delivery", s.handleDeliveryJob, queueCfg)
	return s
}

// Start launches the delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the delivery workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Create renders and stores one pending notification. A nil notification
// with no error means the recipient's preferences blocked it.
func (s *NotificationService) Create(ctx context.Context, input CreateNotificationInput) (*models.Notification, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid notification input")
	}
	template, err := s.repo.FindTemplate(ctx, input.TemplateID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrTemplateNotFound.Code, appErrors.ErrTemplateNotFound.Status, appErrors.ErrTemplateNotFound.Message)
	}

	channel := input.Channel
	if channel == "" {
		channel = models.ChannelInApp
	}

	pref, err := s.repo.FindPreference(ctx, input.RecipientID)
	if errors.Is(err, sql.ErrNoRows) {
		pref = nil // no stored preference, everything allowed
	} else if err != nil {
		return nil, fmt.Errorf("find preference: %w", err)
	}
	if !pref.AllowsChannel(channel) || !pref.AllowsType(template.Type) {
		s.logger.Debug("notification blocked by preferences",
			zap.String("recipient_id", input.RecipientID),
			zap.String("template", template.Name))
		return nil, nil
	}

	scheduledAt := time.Now().UTC().Add(time.Duration(template.DelayMinutes) * time.Minute)
	if input.ScheduledAt != nil {
		scheduledAt = input.ScheduledAt.UTC()
	}

	notification := &models.Notification{
		TemplateID:  template.ID,
		RecipientID: input.RecipientID,
		StudentID:   input.StudentID,
		Title:       RenderTemplate(template.TitleTemplate, input.Context),
		Message:     RenderTemplate(template.MessageTemplate, input.Context),
		Channel:     channel,
		ScheduledAt: scheduledAt,
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		return nil, err
	}
	return notification, nil
}

// CreateBulk fans one template out to many recipients. Blocked recipients
// are skipped, not errors.
func (s *NotificationService) CreateBulk(ctx context.Context, templateID string, recipientIDs []string, studentID *string, channel models.NotificationChannel, tplCtx TemplateContext) (int, error) {
	var created int
	for _, recipientID := range recipientIDs {
		notification, err := s.Create(ctx, CreateNotificationInput{
			TemplateID:  templateID,
			RecipientID: recipientID,
			StudentID:   studentID,
			Channel:     channel,
			Context:     tplCtx,
		})
		if err != nil {
			return created, err
		}
		if notification != nil {
			created++
		}
	}
	return created, nil
}

// SendPending enqueues every due pending notification for delivery and
// returns how many were queued.
func (s *NotificationService) SendPending(ctx context.Context) (int, error) {
	due, err := s.repo.ListDuePending(ctx, time.Now().UTC(), 0)
	if err != nil {
		return 0, err
	}
	var queued int
	for _, n := range due {
		if err := s.queue.Enqueue(jobs.Job{ID: n.ID, Type: "deliver", Payload: n.ID}); err != nil {
			return queued, fmt.Errorf("enqueue notification: %w", err)
		}
		queued++
	}
	if queued > 0 {
		s.logger.Info("pending notifications queued", zap.Int("count", queued))
	}
	return queued, nil
}

func (s *NotificationService) handleDeliveryJob(ctx context.Context, job jobs.Job) error {
	id, ok := job.Payload.(string)
	if !ok {
		return fmt.Errorf("deliver: unexpected payload %T", job.Payload)
	}
	return s.Deliver(ctx, id)
}

// Deliver pushes one notification through its channel sender and advances
// the state machine. Failures are recorded and returned so the queue can
// retry.
func (s *NotificationService) Deliver(ctx context.Context, id string) error {
	notification, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if notification.Status != models.NotificationPending && notification.Status != models.NotificationFailed {
		return nil // already handled
	}

	now := time.Now().UTC()
	if notification.Channel == models.ChannelInApp {
		// In-app messages are delivered the moment they are sent.
		if err := s.repo.MarkSent(ctx, id, now); err != nil {
			return err
		}
		return s.repo.MarkDelivered(ctx, id, now)
	}

	sender, ok := s.senders[notification.Channel]
	if !ok {
		reason := fmt.Sprintf("no sender for channel %s", notification.Channel)
		if err := s.repo.MarkFailed(ctx, id, reason); err != nil {
			return err
		}
		return fmt.Errorf("deliver %s: %s", id, reason)
	}

	recipient, err := s.users.FindByID(ctx, notification.RecipientID)
	if err != nil {
		if markErr := s.repo.MarkFailed(ctx, id, "recipient lookup failed"); markErr != nil {
			return markErr
		}
		return err
	}

	if err := sender.Send(ctx, notification, recipient); err != nil {
		if markErr := s.repo.MarkFailed(ctx, id, err.Error()); markErr != nil {
			return markErr
		}
		return fmt.Errorf("deliver %s: %w", id, err)
	}
	if err := s.repo.MarkSent(ctx, id, now); err != nil {
		return err
	}
	return s.repo.MarkDelivered(ctx, id, now)
}

// MarkRead transitions a delivered (or sent) notification to read. The
// recipient check keeps users out of each other's inboxes.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	notification, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "notification not found")
	}
	if notification.RecipientID != userID {
		return appErrors.ErrForbidden
	}
	switch notification.Status {
	case models.NotificationSent, models.NotificationDelivered:
		return s.repo.MarkRead(ctx, id, time.Now().UTC())
	case models.NotificationRead:
		return nil
	default:
		return appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("cannot mark %s notification as read", notification.Status))
	}
}

// Cancel withdraws a pending notification.
func (s *NotificationService) Cancel(ctx context.Context, id string) error {
	notification, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "notification not found")
	}
	if notification.Status != models.NotificationPending {
		return appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("cannot cancel %s notification", notification.Status))
	}
	return s.repo.Cancel(ctx, id)
}

// List returns notifications per filter.
func (s *NotificationService) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	return s.repo.List(ctx, filter)
}

// Templates lists all templates.
func (s *NotificationService) Templates(ctx context.Context) ([]models.NotificationTemplate, error) {
	return s.repo.ListTemplates(ctx)
}

// CreateTemplate stores a new template.
func (s *NotificationService) CreateTemplate(ctx context.Context, tpl *models.NotificationTemplate) error {
	if err := s.validator.Struct(tpl); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid template")
	}
	return s.repo.CreateTemplate(ctx, tpl)
}

// UpdateTemplate modifies a template.
func (s *NotificationService) UpdateTemplate(ctx context.Context, tpl *models.NotificationTemplate) error {
	if err := s.validator.Struct(tpl); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid template")
	}
	if _, err := s.repo.FindTemplate(ctx, tpl.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrTemplateNotFound.Code, appErrors.ErrTemplateNotFound.Status, appErrors.ErrTemplateNotFound.Message)
	}
	return s.repo.UpdateTemplate(ctx, tpl)
}

// Preference returns a user's stored preference, or nil when none exists.
func (s *NotificationService) Preference(ctx context.Context, userID string) (*models.NotificationPreference, error) {
	pref, err := s.repo.FindPreference(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return pref, nil
}

// SavePreference upserts a user's preference.
func (s *NotificationService) SavePreference(ctx context.Context, pref *models.NotificationPreference) error {
	return s.repo.UpsertPreference(ctx, pref)
}
