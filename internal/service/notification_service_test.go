package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edupulse/edupulse-api/internal/models"
	appErrors "github.com/edupulse/edupulse-api/pkg/errors"
	"github.com/edupulse/edupulse-api/pkg/jobs"
)

type mockNotificationRepo struct {
	templates     map[string]models.NotificationTemplate
	notifications map[string]models.Notification
	preferences   map[string]models.NotificationPreference
	prefErr       error
	created       []models.Notification
	sent          []string
	delivered     []string
	read          []string
	failed        map[string]string
	cancelled     []string
}

func newMockNotificationRepo() *mockNotificationRepo {
	return &mockNotificationRepo{
		templates:     map[string]models.NotificationTemplate{},
		notifications: map[string]models.Notification{},
		preferences:   map[string]models.NotificationPreference{},
		failed:        map[string]string{},
	}
}

func (m *mockNotificationRepo) FindTemplate(ctx context.Context, id string) (*models.NotificationTemplate, error) {
	if t, ok := m.templates[id]; ok {
		return &t, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockNotificationRepo) ListTemplates(ctx context.Context) ([]models.NotificationTemplate, error) {
	var list []models.NotificationTemplate
	for _, t := range m.templates {
		list = append(list, t)
	}
	return list, nil
}

func (m *mockNotificationRepo) CreateTemplate(ctx context.Context, tpl *models.NotificationTemplate) error {
	m.templates[tpl.ID] = *tpl
	return nil
}

func (m *mockNotificationRepo) UpdateTemplate(ctx context.Context, tpl *models.NotificationTemplate) error {
	m.templates[tpl.ID] = *tpl
	return nil
}

func (m *mockNotificationRepo) Create(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = "n-new"
	}
	n.Status = models.NotificationPending
	m.notifications[n.ID] = *n
	m.created = append(m.created, *n)
	return nil
}

func (m *mockNotificationRepo) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	return nil, 0, nil
}

func (m *mockNotificationRepo) FindByID(ctx context.Context, id string) (*models.Notification, error) {
	if n, ok := m.notifications[id]; ok {
		return &n, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockNotificationRepo) ListDuePending(ctx context.Context, now time.Time, limit int) ([]models.Notification, error) {
	var due []models.Notification
	for _, n := range m.notifications {
		if n.Status == models.NotificationPending && !n.ScheduledAt.After(now) {
			due = append(due, n)
		}
	}
	return due, nil
}

func (m *mockNotificationRepo) MarkSent(ctx context.Context, id string, at time.Time) error {
	m.sent = append(m.sent, id)
	n := m.notifications[id]
	n.Status = models.NotificationSent
	m.notifications[id] = n
	return nil
}

func (m *mockNotificationRepo) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	m.delivered = append(m.delivered, id)
	n := m.notifications[id]
	n.Status = models.NotificationDelivered
	m.notifications[id] = n
	return nil
}

func (m *mockNotificationRepo) MarkRead(ctx context.Context, id string, at time.Time) error {
	m.read = append(m.read, id)
	n := m.notifications[id]
	n.Status = models.NotificationRead
	m.notifications[id] = n
	return nil
}

func (m *mockNotificationRepo) MarkFailed(ctx context.Context, id, reason string) error {
	m.failed[id] = reason
	n := m.notifications[id]
	n.Status = models.NotificationFailed
	m.notifications[id] = n
	return nil
}

func (m *mockNotificationRepo) Cancel(ctx context.Context, id string) error {
	m.cancelled = append(m.cancelled, id)
	n := m.notifications[id]
	n.Status = models.NotificationCancelled
	m.notifications[id] = n
	return nil
}

func (m *mockNotificationRepo) FindPreference(ctx context.Context, userID string) (*models.NotificationPreference, error) {
	if m.prefErr != nil {
		return nil, m.prefErr
	}
	if p, ok := m.preferences[userID]; ok {
		return &p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockNotificationRepo) UpsertPreference(ctx context.Context, pref *models.NotificationPreference) error {
	m.preferences[pref.UserID] = *pref
	return nil
}

type mockNotificationUsers struct {
	users map[string]*models.User
}

func (m *mockNotificationUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

type mockSender struct {
	sent []string
	err  error
}

func (m *mockSender) Send(ctx context.Context, n *models.Notification, recipient *models.User) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, n.ID)
	return nil
}

func newNotificationService(repo *mockNotificationRepo, senders map[models.NotificationChannel]Sender) *NotificationService {
	users := &mockNotificationUsers{users: map[string]*models.User{"u1": {ID: "u1", Email: "u1@example.com"}}}
	return NewNotificationService(repo, users, senders, validator.New(), zap.NewNop(), jobs.QueueConfig{})
}

func gradeAlertTemplate() models.NotificationTemplate {
	return models.NotificationTemplate{
		ID:              "tpl-1",
		Name:            "grade alert",
		Type:            models.NotificationGradeAlert,
		TitleTemplate:   "Alert for {{student_name}}",
		MessageTemplate: "{{ student_name }} scored {{trigger_value}} against threshold {{threshold_value}} ({{unknown_key}})",
		Active:          true,
	}
}

func TestRenderTemplateSubstitution(t *testing.T) {
	ctx := TemplateContext{StudentName: "Avery Cole", TriggerValue: 52.5, Threshold: 60, RuleName: "low grade"}

	assert.Equal(t, "Alert for Avery Cole", RenderTemplate("Alert for {{student_name}}", ctx))
	// spaced placeholders render the same
	assert.Equal(t, "Alert for Avery Cole", RenderTemplate("Alert for {{ student_name }}", ctx))
	// unknown keys stay visible
	assert.Equal(t, "{{typo_key}}", RenderTemplate("{{typo_key}}", ctx))
	assert.Equal(t, "52.5 vs 60", RenderTemplate("{{trigger_value}} vs {{threshold_value}}", ctx))
}

func TestNotificationCreateRendersTemplate(t *testing.T) {
	repo := newMockNotificationRepo()
	repo.templates["tpl-1"] = gradeAlertTemplate()
	svc := newNotificationService(repo, nil)

	n, err := svc.Create(context.Background(), CreateNotificationInput{
		TemplateID:  "tpl-1",
		RecipientID: "u1",
		Context:     TemplateContext{StudentName: "Avery Cole", TriggerValue: 52.5, Threshold: 60},
	})
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, "Alert for Avery Cole", n.Title)
	assert.Equal(t, "Avery Cole scored 52.5 against threshold 60 ({{unknown_key}})", n.Message)
	assert.Equal(t, models.ChannelInApp, n.Channel)
}

func TestNotificationCreateBlockedByPreference(t *testing.T) {
	repo := newMockNotificationRepo()
	repo.templates["tpl-1"] = gradeAlertTemplate()
	repo.preferences["u1"] = models.NotificationPreference{UserID: "u1", GradeAlerts: false, EmailEnabled: true}
	svc := newNotificationService(repo, nil)

	n, err := svc.Create(context.Background(), CreateNotificationInput{TemplateID: "tpl-1", RecipientID: "u1"})
	require.NoError(t, err)
	assert.Nil(t, n)
	assert.Empty(t, repo.created)
}

func TestNotificationPreferenceLookupFailureIsAnError(t *testing.T) {
	repo := newMockNotificationRepo()
	repo.templates["tpl-1"] = gradeAlertTemplate()
	repo.prefErr = errors.New("connection refused")
	svc := newNotificationService(repo, nil)

	// a failed lookup must not fall through to "everything allowed"
	_, err := svc.Create(context.Background(), CreateNotificationInput{TemplateID: "tpl-1", RecipientID: "u1"})
	assert.Error(t, err)
	assert.Empty(t, repo.created)

	_, err = svc.Preference(context.Background(), "u1")
	assert.Error(t, err)

	// a plain miss still means no stored preference
	repo.prefErr = nil
	pref, err := svc.Preference(context.Background(), "u1")
	require.NoError(t, err)
	assert.Nil(t, pref)
}

func TestNotificationCreateBlockedChannel(t *testing.T) {
	repo := newMockNotificationRepo()
	repo.templates["tpl-1"] = gradeAlertTemplate()
	repo.preferences["u1"] = models.NotificationPreference{UserID: "u1", GradeAlerts: true, EmailEnabled: false}
	svc := newNotificationService(repo, nil)

	n, err := svc.Create(context.Background(), CreateNotificationInput{TemplateID: "tpl-1", RecipientID: "u1", Channel: models.ChannelEmail})
	require.NoError(t, err)
	assert.Nil(t, n)

	// in-app cannot be turned off
	n, err = svc.Create(context.Background(), CreateNotificationInput{TemplateID: "tpl-1", RecipientID: "u1", Channel: models.ChannelInApp})
	require.NoError(t, err)
	assert.NotNil(t, n)
}

func TestNotificationCreateBulkSkipsBlocked(t *testing.T) {
	repo := newMockNotificationRepo()
	repo.templates["tpl-1"] = gradeAlertTemplate()
	repo.preferences["blocked"] = models.NotificationPreference{UserID: "blocked", GradeAlerts: false}
	svc := newNotificationService(repo, nil)

	created, err := svc.CreateBulk(context.Background(), "tpl-1", []string{"u1", "blocked", "u2"}, nil, models.ChannelInApp, TemplateContext{})
	require.NoError(t, err)
	assert.Equal(t, 2, created)
}

func TestNotificationCreateUnknownTemplate(t *testing.T) {
	repo := newMockNotificationRepo()
	svc := newNotificationService(repo, nil)

	_, err := svc.Create(context.Background(), CreateNotificationInput{TemplateID: "missing", RecipientID: "u1"})
	assert.True(t, appErrors.Is(err, appErrors.ErrTemplateNotFound))
}

func TestNotificationDeliverInApp(t *testing.T) {
	repo := newMockNotificationRepo()
	repo.notifications["n1"] = models.Notification{ID: "n1", RecipientID: "u1", Channel: models.ChannelInApp, Status: models.NotificationPending}
	svc := newNotificationService(repo, nil)

	require.NoError(t, svc.Deliver(context.Background(), "n1"))
	assert.Contains(t, repo.sent, "n1")
	assert.Contains(t, repo.delivered, "n1")
}

func TestNotificationDeliverMissingSender(t *testing.T) {
	repo := newMockNotificationRepo()
	repo.notifications["n1"] = models.Notification{ID: "n1", RecipientID: "u1", Channel: models.ChannelSMS, Status: models.NotificationPending}
	svc := newNotificationService(repo, map[models.NotificationChannel]Sender{})

	err := svc.Deliver(context.Background(), "n1")
	assert.Error(t, err)
	assert.Contains(t, repo.failed["n1"], "no sender")
}

func TestNotificationDeliverSenderFailure(t *testing.T) {
	repo := newMockNotificationRepo()
	repo.notifications["n1"] = models.Notification{ID: "n1", RecipientID: "u1", Channel: models.ChannelEmail, Status: models.NotificationPending}
	sender := &mockSender{err: errors.New("smtp unreachable")}
	svc := newNotificationService(repo, map[models.NotificationChannel]Sender{models.ChannelEmail: sender})

	err := svc.Deliver(context.Background(), "n1")
	assert.Error(t, err)
	assert.Equal(t, "smtp unreachable", repo.failed["n1"])
	assert.Empty(t, repo.sent)
}

func TestNotificationDeliverAlreadyHandled(t *testing.T) {
	repo := newMockNotificationRepo()
	repo.notifications["n1"] = models.Notification{ID: "n1", RecipientID: "u1", Channel: models.ChannelEmail, Status: models.NotificationDelivered}
	svc := newNotificationService(repo, nil)

	require.NoError(t, svc.Deliver(context.Background(), "n1"))
	assert.Empty(t, repo.sent)
}

func TestNotificationMarkReadTransitions(t *testing.T) {
	repo := newMockNotificationRepo()
	repo.notifications["delivered"] = models.Notification{ID: "delivered", RecipientID: "u1", Status: models.NotificationDelivered}
	repo.notifications["pending"] = models.Notification{ID: "pending", RecipientID: "u1", Status: models.NotificationPending}
	repo.notifications["read"] = models.Notification{ID: "read", RecipientID: "u1", Status: models.NotificationRead}
	svc := newNotificationService(repo, nil)

	require.NoError(t, svc.MarkRead(context.Background(), "delivered", "u1"))
	assert.Contains(t, repo.read, "delivered")

	err := svc.MarkRead(context.Background(), "pending", "u1")
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))

	// marking an already-read notification is a no-op
	require.NoError(t, svc.MarkRead(context.Background(), "read", "u1"))

	err = svc.MarkRead(context.Background(), "delivered", "someone-else")
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestNotificationCancelPendingOnly(t *testing.T) {
	repo := newMockNotificationRepo()
	repo.notifications["pending"] = models.Notification{ID: "pending", Status: models.NotificationPending}
	repo.notifications["sent"] = models.Notification{ID: "sent", Status: models.NotificationSent}
	svc := newNotificationService(repo, nil)

	require.NoError(t, svc.Cancel(context.Background(), "pending"))
	assert.Contains(t, repo.cancelled, "pending")

	err := svc.Cancel(context.Background(), "sent")
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))
}

func TestNotificationScheduledAtRespectsDelay(t *testing.T) {
	repo := newMockNotificationRepo()
	tpl := gradeAlertTemplate()
	tpl.DelayMinutes = 30
	repo.templates["tpl-1"] = tpl
	svc := newNotificationService(repo, nil)

	before := time.Now().UTC()
	n, err := svc.Create(context.Background(), CreateNotificationInput{TemplateID: "tpl-1", RecipientID: "u1"})
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.True(t, n.ScheduledAt.After(before.Add(29*time.Minute)))
}
