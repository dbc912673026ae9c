package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edupulse/edupulse-api/internal/models"
	appErrors "github.com/edupulse/edupulse-api/pkg/errors"
)

// eqTolerance is the absolute tolerance for eq/ne threshold comparisons.
const eqTolerance = 0.001

const (
	gradeTriggerWindow    = 10
	behaviorTriggerWindow = 30 * 24 * time.Hour
)

type ruleRepo interface {
	List(ctx context.Context) ([]models.NotificationRule, error)
	ListActive(ctx context.Context) ([]models.NotificationRule, error)
	FindByID(ctx context.Context, id string) (*models.NotificationRule, error)
	Create(ctx context.Context, rule *models.NotificationRule) error
	Update(ctx context.Context, rule *models.NotificationRule) error
	Delete(ctx context.Context, id string) error
	CreateExecution(ctx context.Context, exec *models.RuleExecution) error
	HasRecentExecution(ctx context.Context, ruleID, studentID string, since time.Time) (bool, error)
	ListExecutions(ctx context.Context, ruleID string, limit int) ([]models.RuleExecution, error)
}

type ruleStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ListActive(ctx context.Context) ([]models.Student, error)
}

type ruleGradeReader interface {
	ListRecent(ctx context.Context, studentID string, limit int) ([]models.Grade, error)
}

type ruleAttendanceReader interface {
	Summary(ctx context.Context, studentID string) (*models.AttendanceSummary, error)
}

type ruleBehaviorReader interface {
	CountNegativeSince(ctx context.Context, studentID string, since time.Time) (int, error)
}

type rulePredictionReader interface {
	FindLatestAtRisk(ctx context.Context, studentID string) (*models.Prediction, error)
}

type ruleRecommendationReader interface {
	CountOverdue(ctx context.Context, studentID string, now time.Time) (int, error)
}

type ruleUserReader interface {
	ListByRole(ctx context.Context, role models.UserRole) ([]models.User, error)
	ListTeachersForStudent(ctx context.Context, studentID string) ([]models.User, error)
}

type ruleNotifier interface {
	CreateBulk(ctx context.Context, templateID string, recipientIDs []string, studentID *string, channel models.NotificationChannel, tplCtx TemplateContext) (int, error)
}

// RuleService evaluates alerting rules against student signals and creates
// notifications when a rule fires.
type RuleService struct {
	rules           ruleRepo
	students        ruleStudentReader
	grades          ruleGradeReader
	attendance      ruleAttendanceReader
	behavior        ruleBehaviorReader
	predictions     rulePredictionReader
	recommendations ruleRecommendationReader
	users           ruleUserReader
	notifier        ruleNotifier
	validator       *validator.Validate
	logger          *zap.Logger
	batchDeadline   time.Duration
}

// NewRuleService constructs the service.
func NewRuleService(
	rules ruleRepo,
	students ruleStudentReader,
	grades ruleGradeReader,
	attendance ruleAttendanceReader,
	behavior ruleBehaviorReader,
	predictions rulePredictionReader,
	recommendations ruleRecommendationReader,
	users ruleUserReader,
	notifier ruleNotifier,
	validate *validator.Validate,
	logger *zap.Logger,
	batchDeadline time.Duration,
) *RuleService {
	if batchDeadline <= 0 {
		batchDeadline = 10 * time.Minute
	}
	return &RuleService{
		rules:           rules,
		students:        students,
		grades:          grades,
		attendance:      attendance,
		behavior:        behavior,
		predictions:     predictions,
		recommendations: recommendations,
		users:           users,
		notifier:        notifier,
		validator:       validate,
		logger:          logger,
		batchDeadline:   batchDeadline,
	}
}

// EvaluateRules runs every (rule, student) pair. A failing pair is logged
// and counted but never aborts the batch. Nil arguments default to all
// active students and all active rules.
func (s *RuleService) EvaluateRules(ctx context.Context, students []models.Student, rules []models.NotificationRule) (*models.RuleEvaluationStats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.batchDeadline)
	defer cancel()

	var err error
	if students == nil {
		students, err = s.students.ListActive(ctx)
		if err != nil {
			return nil, err
		}
	}
	if rules == nil {
		rules, err = s.rules.ListActive(ctx)
		if err != nil {
			return nil, err
		}
	}

	stats := &models.RuleEvaluationStats{
		RulesEvaluated:    len(rules),
		StudentsEvaluated: len(students),
	}
	for i := range rules {
		rule := &rules[i]
		for j := range students {
			student := &students[j]
			if ctx.Err() != nil {
				stats.Errors = append(stats.Errors, fmt.Sprintf("batch deadline exceeded: %v", ctx.Err()))
				return stats, nil
			}
			created, skipped, err := s.evaluatePair(ctx, rule, student)
			if err != nil {
				s.logger.Error("rule evaluation failed",
					zap.String("rule_id", rule.ID),
					zap.String("student_id", student.ID),
					zap.Error(err))
				stats.Errors = append(stats.Errors, fmt.Sprintf("rule %s student %s: %v", rule.ID, student.ID, err))
				continue
			}
			if skipped {
				stats.Skipped++
			}
			stats.NotificationsCreated += created
		}
	}
	s.logger.Info("rule evaluation completed",
		zap.Int("rules", stats.RulesEvaluated),
		zap.Int("students", stats.StudentsEvaluated),
		zap.Int("notifications", stats.NotificationsCreated),
		zap.Int("skipped", stats.Skipped),
		zap.Int("errors", len(stats.Errors)))
	return stats, nil
}

func (s *RuleService) evaluatePair(ctx context.Context, rule *models.NotificationRule, student *models.Student) (created int, skipped bool, err error) {
	inCooldown, err := s.inCooldown(ctx, rule, student.ID)
	if err != nil {
		return 0, false, err
	}
	if inCooldown {
		return 0, true, nil
	}

	value, ok, err := s.triggerValue(ctx, rule.TriggerType, student)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		return 0, true, nil
	}
	if !evaluateCondition(rule.Condition, value, rule.Threshold) {
		return 0, false, nil
	}

	targets, err := s.targetUsers(ctx, rule.TargetRoles, student)
	if err != nil {
		return 0, false, err
	}
	tplCtx := TemplateContext{
		StudentName:  student.FullName,
		StudentID:    student.StudentNumber,
		TriggerValue: value,
		Threshold:    rule.Threshold,
		RuleName:     rule.Name,
	}
	created, err = s.notifier.CreateBulk(ctx, rule.TemplateID, targets, &student.ID, models.ChannelInApp, tplCtx)
	if err != nil {
		return created, false, err
	}

	exec := &models.RuleExecution{
		RuleID:               rule.ID,
		StudentID:            student.ID,
		TriggerValue:         value,
		NotificationsCreated: created,
	}
	if err := s.rules.CreateExecution(ctx, exec); err != nil {
		return created, false, err
	}
	return created, false, nil
}

// TestRule dry-runs one rule against one student without side effects.
func (s *RuleService) TestRule(ctx context.Context, ruleID, studentID string) (*models.RuleTestResult, error) {
	rule, err := s.rules.FindByID(ctx, ruleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "rule not found")
	}
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "student not found")
	}

	result := &models.RuleTestResult{
		RuleName:    rule.Name,
		StudentID:   student.StudentNumber,
		Threshold:   rule.Threshold,
		Condition:   rule.Condition,
		TargetRoles: rule.TargetRoles,
	}
	inCooldown, err := s.inCooldown(ctx, rule, student.ID)
	if err != nil {
		return nil, err
	}
	result.InCooldown = inCooldown

	value, ok, err := s.triggerValue(ctx, rule.TriggerType, student)
	if err != nil {
		return nil, err
	}
	if ok {
		result.TriggerValue = &value
		result.ConditionMet = evaluateCondition(rule.Condition, value, rule.Threshold)
	}
	result.WouldNotify = result.ConditionMet && !inCooldown
	return result, nil
}

func (s *RuleService) inCooldown(ctx context.Context, rule *models.NotificationRule, studentID string) (bool, error) {
	if rule.CooldownHours <= 0 {
		return false, nil
	}
	since := time.Now().UTC().Add(-time.Duration(rule.CooldownHours) * time.Hour)
	return s.rules.HasRecentExecution(ctx, rule.ID, studentID, since)
}

// triggerValue resolves the signal a rule compares against its threshold.
// The boolean is false when the student has no data for the signal.
func (s *RuleService) triggerValue(ctx context.Context, trigger models.TriggerType, student *models.Student) (float64, bool, error) {
	switch trigger {
	case models.TriggerGradeThreshold:
		grades, err := s.grades.ListRecent(ctx, student.ID, gradeTriggerWindow)
		if err != nil {
			return 0, false, err
		}
		if len(grades) > 0 {
			var sum float64
			for _, g := range grades {
				sum += g.Percentage
			}
			return sum / float64(len(grades)), true, nil
		}
		if student.GPA != nil {
			return *student.GPA * 25, true, nil
		}
		return 0, false, nil

	case models.TriggerAttendanceRate:
		summary, err := s.attendance.Summary(ctx, student.ID)
		if err != nil {
			return 0, false, err
		}
		rate, ok := summary.Rate()
		if !ok {
			return 0, false, nil
		}
		return rate * 100, true, nil

	case models.TriggerBehaviorIncident:
		since := time.Now().UTC().Add(-behaviorTriggerWindow)
		count, err := s.behavior.CountNegativeSince(ctx, student.ID, since)
		if err != nil {
			return 0, false, err
		}
		return float64(count), true, nil

	case models.TriggerPredictionRisk:
		prediction, err := s.predictions.FindLatestAtRisk(ctx, student.ID)
		if errors.Is(err, sql.ErrNoRows) {
			// No flagged prediction counts as zero risk, not an error.
			return 0, true, nil
		}
		if err != nil {
			return 0, false, err
		}
		return float64(prediction.RiskLevel.Rank()), true, nil

	case models.TriggerRecommendationDue:
		count, err := s.recommendations.CountOverdue(ctx, student.ID, time.Now().UTC())
		if err != nil {
			return 0, false, err
		}
		return float64(count), true, nil

	default:
		return 0, false, fmt.Errorf("unknown trigger type %q", trigger)
	}
}

// targetUsers resolves the deduplicated recipient set for a firing rule.
func (s *RuleService) targetUsers(ctx context.Context, roles []string, student *models.Student) ([]string, error) {
	seen := make(map[string]struct{})
	var targets []string
	add := func(id string) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		targets = append(targets, id)
	}

	for _, role := range roles {
		switch models.UserRole(role) {
		case models.RoleAdministrator:
			admins, err := s.users.ListByRole(ctx, models.RoleAdministrator)
			if err != nil {
				return nil, err
			}
			for _, u := range admins {
				add(u.ID)
			}
		case models.RoleTeacher:
			teachers, err := s.users.ListTeachersForStudent(ctx, student.ID)
			if err != nil {
				return nil, err
			}
			for _, u := range teachers {
				add(u.ID)
			}
		case models.RoleStudent:
			add(student.UserID)
		}
	}
	return targets, nil
}

func evaluateCondition(condition models.RuleCondition, value, threshold float64) bool {
	switch condition {
	case models.ConditionLessThan:
		return value < threshold
	case models.ConditionLessThanEqual:
		return value <= threshold
	case models.ConditionGreaterThan:
		return value > threshold
	case models.ConditionGreaterOrEqual:
		return value >= threshold
	case models.ConditionEquals:
		return math.Abs(value-threshold) < eqTolerance
	case models.ConditionNotEquals:
		return math.Abs(value-threshold) >= eqTolerance
	default:
		return false
	}
}

// ListRules returns all rules.
func (s *RuleService) ListRules(ctx context.Context) ([]models.NotificationRule, error) {
	return s.rules.List(ctx)
}

// CreateRule validates and stores a new rule.
func (s *RuleService) CreateRule(ctx context.Context, rule *models.NotificationRule) error {
	if err := s.validateRule(rule); err != nil {
		return err
	}
	return s.rules.Create(ctx, rule)
}

// UpdateRule validates and modifies a rule.
func (s *RuleService) UpdateRule(ctx context.Context, rule *models.NotificationRule) error {
	if err := s.validateRule(rule); err != nil {
		return err
	}
	if _, err := s.rules.FindByID(ctx, rule.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "rule not found")
	}
	return s.rules.Update(ctx, rule)
}

// DeleteRule removes a rule.
func (s *RuleService) DeleteRule(ctx context.Context, id string) error {
	if _, err := s.rules.FindByID(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "rule not found")
	}
	return s.rules.Delete(ctx, id)
}

// Executions returns the recent firings of one rule.
func (s *RuleService) Executions(ctx context.Context, ruleID string, limit int) ([]models.RuleExecution, error) {
	return s.rules.ListExecutions(ctx, ruleID, limit)
}

func (s *RuleService) validateRule(rule *models.NotificationRule) error {
	if rule.Name == "" || rule.TemplateID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "rule name and template are required")
	}
	switch rule.TriggerType {
	case models.TriggerGradeThreshold, models.TriggerAttendanceRate, models.TriggerBehaviorIncident,
		models.TriggerPredictionRisk, models.TriggerRecommendationDue:
	default:
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown trigger type %q", rule.TriggerType))
	}
	switch rule.Condition {
	case models.ConditionLessThan, models.ConditionLessThanEqual, models.ConditionGreaterThan,
		models.ConditionGreaterOrEqual, models.ConditionEquals, models.ConditionNotEquals:
	default:
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown condition %q", rule.Condition))
	}
	return nil
}
