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

// BehaviorRepository manages persistence for behavioural incidents.
type BehaviorRepository struct {
	db *sqlx.DB
}

// NewBehaviorRepository constructs a new repository.
func NewBehaviorRepository(db *sqlx.DB) *BehaviorRepository {
	return &BehaviorRepository{db: db}
}

const behaviorColumns = `id, student_id, behavior_type, severity, description, incident_date, reported_by, created_at`

// List returns behavior records per provided filter.
func (r *BehaviorRepository) List(ctx context.Context, filter models.BehaviorFilter) ([]models.BehaviorRecord, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Type != "" {
		where = append(where, fmt.Sprintf("behavior_type = $%d", len(args)+1))
		args = append(args, filter.Type)
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("incident_date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("incident_date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	whereClause := strings.Join(where, " AND ")
	page, size := normalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT %s FROM behavior_records WHERE %s ORDER BY incident_date DESC LIMIT %d OFFSET %d`,
		behaviorColumns, whereClause, size, (page-1)*size)
	var records []models.BehaviorRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list behavior records: %w", err)
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM behavior_records WHERE %s", whereClause)
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count behavior records: %w", err)
	}
	return records, total, nil
}

// Counts aggregates incident counts by type for one student.
func (r *BehaviorRepository) Counts(ctx context.Context, studentID string) (*models.BehaviorCounts, error) {
	counts := models.BehaviorCounts{StudentID: studentID}
	query := `SELECT
		COUNT(*) FILTER (WHERE behavior_type = 'positive') AS positive_count,
		COUNT(*) FILTER (WHERE behavior_type = 'negative') AS negative_count,
		COUNT(*) FILTER (WHERE behavior_type = 'neutral') AS neutral_count
		FROM behavior_records WHERE student_id = $1`
	row := r.db.QueryRowxContext(ctx, query, studentID)
	if err := row.Scan(&counts.PositiveCount, &counts.NegativeCount, &counts.NeutralCount); err != nil {
		return nil, fmt.Errorf("behavior counts: %w", err)
	}
	return &counts, nil
}

// CountNegativeSince counts negative incidents recorded after the given time.
func (r *BehaviorRepository) CountNegativeSince(ctx context.Context, studentID string, since time.Time) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM behavior_records WHERE student_id = $1 AND behavior_type = 'negative' AND incident_date >= $2`
	if err := r.db.GetContext(ctx, &count, query, studentID, since); err != nil {
		return 0, fmt.Errorf("count negative behavior: %w", err)
	}
	return count, nil
}

// Create inserts a new behavior record.
func (r *BehaviorRepository) Create(ctx context.Context, record *models.BehaviorRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.CreatedAt = time.Now().UTC()
	if record.IncidentDate.IsZero() {
		record.IncidentDate = record.CreatedAt
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO behavior_records
		(id, student_id, behavior_type, severity, description, incident_date, reported_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		record.ID, record.StudentID, record.BehaviorType, record.Severity, record.Description,
		record.IncidentDate, record.ReportedBy, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("create behavior record: %w", err)
	}
	return nil
}
