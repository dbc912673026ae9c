package models

import (
	"time"

	"github.com/lib/pq"
)

// NotificationType classifies what a template announces.
type NotificationType string

const (
	NotificationGradeAlert        NotificationType = "grade_alert"
	NotificationAttendanceWarning NotificationType = "attendance_warning"
	NotificationBehaviorIncident  NotificationType = "behavior_incident"
	NotificationPredictionAlert   NotificationType = "prediction_alert"
	NotificationRecommendation    NotificationType = "recommendation_assigned"
	NotificationAssignmentDue     NotificationType = "assignment_due"
	NotificationAnnouncement      NotificationType = "system_announcement"
)

// NotificationChannel is the delivery medium.
type NotificationChannel string

const (
	ChannelInApp NotificationChannel = "in_app"
	ChannelEmail NotificationChannel = "email"
	ChannelSMS   NotificationChannel = "sms"
	ChannelPush  NotificationChannel = "push"
)

// NotificationStatus tracks delivery lifecycle. Transitions:
// pending -> sent -> delivered -> read, or -> failed (retryable),
// or -> cancelled.
type NotificationStatus string

const (
	NotificationPending   NotificationStatus = "pending"
	NotificationSent      NotificationStatus = "sent"
	NotificationDelivered NotificationStatus = "delivered"
	NotificationRead      NotificationStatus = "read"
	NotificationFailed    NotificationStatus = "failed"
	NotificationCancelled NotificationStatus = "cancelled"
)

// NotificationTemplate defines reusable title/message bodies with
// {{placeholder}} substitution keys.
type NotificationTemplate struct {
	ID              string           `db:"id" json:"id"`
	Name            string           `db:"name" json:"name"`
	Type            NotificationType `db:"notification_type" json:"notification_type"`
	TitleTemplate   string           `db:"title_template" json:"title_template"`
	MessageTemplate string           `db:"message_template" json:"message_template"`
	DelayMinutes    int              `db:"delay_minutes" json:"delay_minutes"`
	Active          bool             `db:"active" json:"active"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updated_at"`
}

// Notification is a rendered message addressed to one recipient.
type Notification struct {
	ID               string              `db:"id" json:"id"`
	TemplateID       string              `db:"template_id" json:"template_id"`
	RecipientID      string              `db:"recipient_id" json:"recipient_id"`
	StudentID        *string             `db:"student_id" json:"student_id,omitempty"`
	Title            string              `db:"title" json:"title"`
	Message          string              `db:"message" json:"message"`
	Channel          NotificationChannel `db:"channel" json:"channel"`
	Status           NotificationStatus  `db:"status" json:"status"`
	ScheduledAt      time.Time           `db:"scheduled_at" json:"scheduled_at"`
	SentAt           *time.Time          `db:"sent_at" json:"sent_at,omitempty"`
	DeliveredAt      *time.Time          `db:"delivered_at" json:"delivered_at,omitempty"`
	ReadAt           *time.Time          `db:"read_at" json:"read_at,omitempty"`
	DeliveryAttempts int                 `db:"delivery_attempts" json:"delivery_attempts"`
	LastError        string              `db:"last_error" json:"last_error"`
	CreatedAt        time.Time           `db:"created_at" json:"created_at"`
}

// NotificationFilter narrows notification listings.
type NotificationFilter struct {
	RecipientID string
	StudentID   string
	Status      NotificationStatus
	Channel     NotificationChannel
	Page        int
	PageSize    int
}

// NotificationPreference gates which notifications a user receives.
type NotificationPreference struct {
	UserID                    string    `db:"user_id" json:"user_id"`
	EmailEnabled              bool      `db:"email_enabled" json:"email_enabled"`
	SMSEnabled                bool      `db:"sms_enabled" json:"sms_enabled"`
	PushEnabled               bool      `db:"push_enabled" json:"push_enabled"`
	GradeAlerts               bool      `db:"grade_alerts" json:"grade_alerts"`
	AttendanceWarnings        bool      `db:"attendance_warnings" json:"attendance_warnings"`
	BehaviorIncidents         bool      `db:"behavior_incidents" json:"behavior_incidents"`
	PredictionAlerts          bool      `db:"prediction_alerts" json:"prediction_alerts"`
	RecommendationAssignments bool      `db:"recommendation_assignments" json:"recommendation_assignments"`
	AssignmentReminders       bool      `db:"assignment_reminders" json:"assignment_reminders"`
	SystemAnnouncements       bool      `db:"system_announcements" json:"system_announcements"`
	UpdatedAt                 time.Time `db:"updated_at" json:"updated_at"`
}

// AllowsType reports whether the preference admits the given template type.
func (p *NotificationPreference) AllowsType(t NotificationType) bool {
	if p == nil {
		return true
	}
	switch t {
	case NotificationGradeAlert:
		return p.GradeAlerts
	case NotificationAttendanceWarning:
		return p.AttendanceWarnings
	case NotificationBehaviorIncident:
		return p.BehaviorIncidents
	case NotificationPredictionAlert:
		return p.PredictionAlerts
	case NotificationRecommendation:
		return p.RecommendationAssignments
	case NotificationAssignmentDue:
		return p.AssignmentReminders
	case NotificationAnnouncement:
		return p.SystemAnnouncements
	default:
		return true
	}
}

// AllowsChannel reports whether the preference admits the given channel.
// In-app notifications cannot be turned off.
func (p *NotificationPreference) AllowsChannel(ch NotificationChannel) bool {
	if p == nil {
		return true
	}
	switch ch {
	case ChannelEmail:
		return p.EmailEnabled
	case ChannelSMS:
		return p.SMSEnabled
	case ChannelPush:
		return p.PushEnabled
	default:
		return true
	}
}

// TriggerType enumerates the signals a rule can watch.
type TriggerType string

const (
	TriggerGradeThreshold    TriggerType = "grade_threshold"
	TriggerAttendanceRate    TriggerType = "attendance_rate"
	TriggerBehaviorIncident  TriggerType = "behavior_incident"
	TriggerPredictionRisk    TriggerType = "prediction_risk"
	TriggerRecommendationDue TriggerType = "recommendation_due"
)

// RuleCondition is the comparison applied between trigger value and threshold.
type RuleCondition string

const (
	ConditionLessThan       RuleCondition = "lt"
	ConditionLessThanEqual  RuleCondition = "lte"
	ConditionGreaterThan    RuleCondition = "gt"
	ConditionGreaterOrEqual RuleCondition = "gte"
	ConditionEquals         RuleCondition = "eq"
	ConditionNotEquals      RuleCondition = "ne"
)

// NotificationRule is the configuration for one alerting rule.
type NotificationRule struct {
	ID            string         `db:"id" json:"id"`
	Name          string         `db:"name" json:"name"`
	Description   string         `db:"description" json:"description"`
	TriggerType   TriggerType    `db:"trigger_type" json:"trigger_type"`
	Condition     RuleCondition  `db:"condition" json:"condition"`
	Threshold     float64        `db:"threshold_value" json:"threshold_value"`
	TemplateID    string         `db:"template_id" json:"template_id"`
	TargetRoles   pq.StringArray `db:"target_roles" json:"target_roles"`
	CooldownHours int            `db:"cooldown_hours" json:"cooldown_hours"`
	Active        bool           `db:"active" json:"active"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// RuleExecution is the append-only log of rule firings, used to enforce the
// cooldown window.
type RuleExecution struct {
	ID                   string    `db:"id" json:"id"`
	RuleID               string    `db:"rule_id" json:"rule_id"`
	StudentID            string    `db:"student_id" json:"student_id"`
	TriggeredAt          time.Time `db:"triggered_at" json:"triggered_at"`
	TriggerValue         float64   `db:"trigger_value" json:"trigger_value"`
	NotificationsCreated int       `db:"notifications_created" json:"notifications_created"`
}

// RuleTestResult is the diagnostic payload returned by dry-running a rule
// against a single student.
type RuleTestResult struct {
	RuleName     string        `json:"rule_name"`
	StudentID    string        `json:"student_id"`
	TriggerValue *float64      `json:"trigger_value"`
	Threshold    float64       `json:"threshold_value"`
	Condition    RuleCondition `json:"condition"`
	ConditionMet bool          `json:"condition_met"`
	TargetRoles  []string      `json:"target_roles"`
	WouldNotify  bool          `json:"would_create_notifications"`
	InCooldown   bool          `json:"in_cooldown"`
}

// RuleEvaluationStats summarises one batch evaluation run.
type RuleEvaluationStats struct {
	RulesEvaluated       int      `json:"rules_evaluated"`
	StudentsEvaluated    int      `json:"students_evaluated"`
	NotificationsCreated int      `json:"notifications_created"`
	Skipped              int      `json:"skipped"`
	Errors               []string `json:"errors,omitempty"`
}
