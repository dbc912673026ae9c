package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/edupulse/edupulse-api/internal/models"
)

// RecommendationRepository manages persistence for intervention
// recommendations.
type RecommendationRepository struct {
	db *sqlx.DB
}

// NewRecommendationRepository constructs a new repository.
func NewRecommendationRepository(db *sqlx.DB) *RecommendationRepository {
	return &RecommendationRepository{db: db}
}

const recommendationColumns = `id, student_id, prediction_id, title, description, category, priority, status, suggested_actions, resources_needed, success_metrics, estimated_duration, due_date, effectiveness_rating, created_by, created_at, updated_at`

// Create inserts a new recommendation.
func (r *RecommendationRepository) Create(ctx context.Context, rec *models.Recommendation) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	if rec.Status == "" {
		rec.Status = models.RecommendationPending
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO recommendations
		(id, student_id, prediction_id, title, description, category, priority, status,
		 suggested_actions, resources_needed, success_metrics, estimated_duration, due_date,
		 created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		rec.ID, rec.StudentID, rec.PredictionID, rec.Title, rec.Description, rec.Category,
		rec.Priority, rec.Status, pq.Array(rec.SuggestedActions), pq.Array(rec.ResourcesNeeded),
		pq.Array(rec.SuccessMetrics), rec.EstimatedDuration, rec.DueDate, rec.CreatedBy,
		rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create recommendation: %w", err)
	}
	return nil
}

// List returns recommendations per provided filter.
func (r *RecommendationRepository) List(ctx context.Context, filter models.RecommendationFilter) ([]models.Recommendation, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Category != "" {
		where = append(where, fmt.Sprintf("category = $%d", len(args)+1))
		args = append(args, filter.Category)
	}
	if filter.Priority != "" {
		where = append(where, fmt.Sprintf("priority = $%d", len(args)+1))
		args = append(args, filter.Priority)
	}
	if filter.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Overdue {
		where = append(where, fmt.Sprintf("due_date < $%d AND status IN ('pending', 'in_progress')", len(args)+1))
		args = append(args, time.Now().UTC())
	}
	whereClause := strings.Join(where, " AND ")
	page, size := normalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT %s FROM recommendations WHERE %s ORDER BY due_date ASC LIMIT %d OFFSET %d`,
		recommendationColumns, whereClause, size, (page-1)*size)
	var recommendations []models.Recommendation
	if err := r.db.SelectContext(ctx, &recommendations, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list recommendations: %w", err)
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM recommendations WHERE %s", whereClause)
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count recommendations: %w", err)
	}
	return recommendations, total, nil
}

// FindByID fetches one recommendation.
func (r *RecommendationRepository) FindByID(ctx context.Context, id string) (*models.Recommendation, error) {
	var rec models.Recommendation
	query := fmt.Sprintf("SELECT %s FROM recommendations WHERE id = $1", recommendationColumns)
	if err := r.db.GetContext(ctx, &rec, query, id); err != nil {
		return nil, fmt.Errorf("find recommendation: %w", err)
	}
	return &rec, nil
}

// UpdateStatus moves a recommendation through its lifecycle.
func (r *RecommendationRepository) UpdateStatus(ctx context.Context, id string, status models.RecommendationStatus) error {
	_, err := r.db.ExecContext(ctx, `UPDATE recommendations SET status = $2, updated_at = $3 WHERE id = $1`,
		id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update recommendation status: %w", err)
	}
	return nil
}

// SetEffectiveness records a 1-5 rating after the intervention completed.
func (r *RecommendationRepository) SetEffectiveness(ctx context.Context, id string, rating int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE recommendations SET effectiveness_rating = $2, updated_at = $3 WHERE id = $1`,
		id, rating, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set recommendation effectiveness: %w", err)
	}
	return nil
}

// CountOverdue counts open recommendations past their due date for a student.
func (r *RecommendationRepository) CountOverdue(ctx context.Context, studentID string, now time.Time) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM recommendations
		WHERE student_id = $1 AND due_date < $2 AND status IN ('pending', 'in_progress')`
	if err := r.db.GetContext(ctx, &count, query, studentID, now); err != nil {
		return 0, fmt.Errorf("count overdue recommendations: %w", err)
	}
	return count, nil
}

// CountOpenByStudent counts pending or in-progress recommendations.
func (r *RecommendationRepository) CountOpenByStudent(ctx context.Context, studentID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM recommendations
		WHERE student_id = $1 AND status IN ('pending', 'in_progress')`
	if err := r.db.GetContext(ctx, &count, query, studentID); err != nil {
		return 0, fmt.Errorf("count open recommendations: %w", err)
	}
	return count, nil
}
