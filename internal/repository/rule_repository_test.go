package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edupulse/edupulse-api/internal/models"
)

func newRuleMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestRuleRepositoryListActive(t *testing.T) {
	db, mock, cleanup := newRuleMock(t)
	defer cleanup()
	repo := NewRuleRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "description", "trigger_type", "condition", "threshold_value", "template_id", "target_roles", "cooldown_hours", "active", "created_at", "updated_at"}).
		AddRow("r1", "Low GPA", "", "grade_threshold", "lt", 2.0, "t1", "{teacher}", 24, true, time.Now(), time.Now())
	mock.ExpectQuery("SELECT .* FROM notification_rules WHERE active = TRUE ORDER BY name ASC").
		WillReturnRows(rows)

	rules, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, models.TriggerGradeThreshold, rules[0].TriggerType)
	assert.Equal(t, []string{"teacher"}, []string(rules[0].TargetRoles))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRuleRepositoryCreateExecution(t *testing.T) {
	db, mock, cleanup := newRuleMock(t)
	defer cleanup()
	repo := NewRuleRepository(db)

	mock.ExpectExec("INSERT INTO rule_executions").
		WithArgs(sqlmock.AnyArg(), "r1", "s1", sqlmock.AnyArg(), 1.8, 2).
		WillReturnResult(sqlmock.NewResult(1, 1))

	exec := &models.RuleExecution{RuleID: "r1", StudentID: "s1", TriggerValue: 1.8, NotificationsCreated: 2}
	err := repo.CreateExecution(context.Background(), exec)
	require.NoError(t, err)
	assert.NotEmpty(t, exec.ID)
	assert.False(t, exec.TriggeredAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRuleRepositoryHasRecentExecution(t *testing.T) {
	db, mock, cleanup := newRuleMock(t)
	defer cleanup()
	repo := NewRuleRepository(db)

	since := time.Now().Add(-24 * time.Hour)
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("r1", "s1", since).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	recent, err := repo.HasRecentExecution(context.Background(), "r1", "s1", since)
	require.NoError(t, err)
	assert.True(t, recent)
	assert.NoError(t, mock.ExpectationsWereMet())
}
