package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/edupulse/edupulse-api/internal/models"
)

// RuleRepository manages persistence for notification rules and their
// execution log.
type RuleRepository struct {
	db *sqlx.DB
}

// NewRuleRepository constructs a new repository.
func NewRuleRepository(db *sqlx.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

const ruleColumns = `id, name, description, trigger_type, condition, threshold_value, template_id, target_roles, cooldown_hours, active, created_at, updated_at`

// List returns every rule, active first.
func (r *RuleRepository) List(ctx context.Context) ([]models.NotificationRule, error) {
	var rules []models.NotificationRule
	query := fmt.Sprintf("SELECT %s FROM notification_rules ORDER BY active DESC, name ASC", ruleColumns)
	if err := r.db.SelectContext(ctx, &rules, query); err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return rules, nil
}

// ListActive returns only the rules eligible for evaluation.
func (r *RuleRepository) ListActive(ctx context.Context) ([]models.NotificationRule, error) {
	var rules []models.NotificationRule
	query := fmt.Sprintf("SELECT %s FROM notification_rules WHERE active = TRUE ORDER BY name ASC", ruleColumns)
	if err := r.db.SelectContext(ctx, &rules, query); err != nil {
		return nil, fmt.Errorf("list active rules: %w", err)
	}
	return rules, nil
}

// FindByID fetches one rule.
func (r *RuleRepository) FindByID(ctx context.Context, id string) (*models.NotificationRule, error) {
	var rule models.NotificationRule
	query := fmt.Sprintf("SELECT %s FROM notification_rules WHERE id = $1", ruleColumns)
	if err := r.db.GetContext(ctx, &rule, query, id); err != nil {
		return nil, fmt.Errorf("find rule: %w", err)
	}
	return &rule, nil
}

// Create inserts a new rule.
func (r *RuleRepository) Create(ctx context.Context, rule *models.NotificationRule) error {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now
	_, err := r.db.ExecContext(ctx, `INSERT INTO notification_rules
		(id, name, description, trigger_type, condition, threshold_value, template_id, target_roles, cooldown_hours, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		rule.ID, rule.Name, rule.Description, rule.TriggerType, rule.Condition, rule.Threshold,
		rule.TemplateID, pq.Array(rule.TargetRoles), rule.CooldownHours, rule.Active,
		rule.CreatedAt, rule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create rule: %w", err)
	}
	return nil
}

// Update modifies a rule's configuration.
func (r *RuleRepository) Update(ctx context.Context, rule *models.NotificationRule) error {
	rule.UpdatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `UPDATE notification_rules SET
		name = $2, description = $3, trigger_type = $4, condition = $5, threshold_value = $6,
		template_id = $7, target_roles = $8, cooldown_hours = $9, active = $10, updated_at = $11
		WHERE id = $1`,
		rule.ID, rule.Name, rule.Description, rule.TriggerType, rule.Condition, rule.Threshold,
		rule.TemplateID, pq.Array(rule.TargetRoles), rule.CooldownHours, rule.Active, rule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	return nil
}

// Delete removes a rule. Execution log rows are kept for audit.
func (r *RuleRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM notification_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	return nil
}

// CreateExecution appends one firing to the execution log.
func (r *RuleRepository) CreateExecution(ctx context.Context, exec *models.RuleExecution) error {
	if exec.ID == "" {
		exec.ID = uuid.NewString()
	}
	if exec.TriggeredAt.IsZero() {
		exec.TriggeredAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO rule_executions
		(id, rule_id, student_id, triggered_at, trigger_value, notifications_created)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		exec.ID, exec.RuleID, exec.StudentID, exec.TriggeredAt, exec.TriggerValue, exec.NotificationsCreated)
	if err != nil {
		return fmt.Errorf("create rule execution: %w", err)
	}
	return nil
}

// HasRecentExecution reports whether the rule already fired for the student
// after the given time. Used to enforce the cooldown window.
func (r *RuleRepository) HasRecentExecution(ctx context.Context, ruleID, studentID string, since time.Time) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM rule_executions
		WHERE rule_id = $1 AND student_id = $2 AND triggered_at >= $3)`
	if err := r.db.GetContext(ctx, &exists, query, ruleID, studentID, since); err != nil {
		return false, fmt.Errorf("check rule execution: %w", err)
	}
	return exists, nil
}

// ListExecutions returns the newest firings of one rule.
func (r *RuleRepository) ListExecutions(ctx context.Context, ruleID string, limit int) ([]models.RuleExecution, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT id, rule_id, student_id, triggered_at, trigger_value, notifications_created
		FROM rule_executions WHERE rule_id = $1 ORDER BY triggered_at DESC LIMIT %d`, limit)
	var executions []models.RuleExecution
	if err := r.db.SelectContext(ctx, &executions, query, ruleID); err != nil {
		return nil, fmt.Errorf("list rule executions: %w", err)
	}
	return executions, nil
}
