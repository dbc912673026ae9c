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

// GradeRepository manages persistence for scored assignments.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository constructs a new repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

const gradeColumns = `id, student_id, class_id, assignment_name, points_earned, points_possible, percentage, feedback, graded_at, created_at`

// List returns grades per provided filter.
func (r *GradeRepository) List(ctx context.Context, filter models.GradeFilter) ([]models.Grade, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ClassID != "" {
		where = append(where, fmt.Sprintf("class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("graded_at >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("graded_at <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	whereClause := strings.Join(where, " AND ")
	page, size := normalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT %s FROM grades WHERE %s ORDER BY graded_at DESC LIMIT %d OFFSET %d`,
		gradeColumns, whereClause, size, (page-1)*size)
	var grades []models.Grade
	if err := r.db.SelectContext(ctx, &grades, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list grades: %w", err)
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM grades WHERE %s", whereClause)
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count grades: %w", err)
	}
	return grades, total, nil
}

// ListRecent returns the newest grades for a student, most recent first.
func (r *GradeRepository) ListRecent(ctx context.Context, studentID string, limit int) ([]models.Grade, error) {
	if limit <= 0 {
		limit = 10
	}
	query := fmt.Sprintf(`SELECT %s FROM grades WHERE student_id = $1 ORDER BY graded_at DESC LIMIT %d`, gradeColumns, limit)
	var grades []models.Grade
	if err := r.db.SelectContext(ctx, &grades, query, studentID); err != nil {
		return nil, fmt.Errorf("list recent grades: %w", err)
	}
	return grades, nil
}

// ListSince returns all grades recorded for a student after the given time.
func (r *GradeRepository) ListSince(ctx context.Context, studentID string, since time.Time) ([]models.Grade, error) {
	query := fmt.Sprintf(`SELECT %s FROM grades WHERE student_id = $1 AND graded_at >= $2 ORDER BY graded_at DESC`, gradeColumns)
	var grades []models.Grade
	if err := r.db.SelectContext(ctx, &grades, query, studentID, since); err != nil {
		return nil, fmt.Errorf("list grades since: %w", err)
	}
	return grades, nil
}

// CountByStudent returns the total number of grades on record.
func (r *GradeRepository) CountByStudent(ctx context.Context, studentID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM grades WHERE student_id = $1`, studentID); err != nil {
		return 0, fmt.Errorf("count grades: %w", err)
	}
	return count, nil
}

// Create inserts a new grade. The stored percentage is derived from points.
func (r *GradeRepository) Create(ctx context.Context, grade *models.Grade) error {
	if grade.ID == "" {
		grade.ID = uuid.NewString()
	}
	grade.Percentage = grade.ComputePercentage()
	grade.CreatedAt = time.Now().UTC()
	if grade.GradedAt.IsZero() {
		grade.GradedAt = grade.CreatedAt
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO grades
		(id, student_id, class_id, assignment_name, points_earned, points_possible, percentage, feedback, graded_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		grade.ID, grade.StudentID, grade.ClassID, grade.AssignmentName, grade.PointsEarned,
		grade.PointsPossible, grade.Percentage, grade.Feedback, grade.GradedAt, grade.CreatedAt)
	if err != nil {
		return fmt.Errorf("create grade: %w", err)
	}
	return nil
}

// UpdateFeedback is the only mutation allowed on an existing grade.
func (r *GradeRepository) UpdateFeedback(ctx context.Context, id, feedback string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE grades SET feedback = $2 WHERE id = $1`, id, feedback)
	if err != nil {
		return fmt.Errorf("update grade feedback: %w", err)
	}
	return nil
}
