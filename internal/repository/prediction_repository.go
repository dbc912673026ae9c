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

// PredictionRepository manages persistence for trained model records and
// individual inference results.
type PredictionRepository struct {
	db *sqlx.DB
}

// NewPredictionRepository constructs a new repository.
func NewPredictionRepository(db *sqlx.DB) *PredictionRepository {
	return &PredictionRepository{db: db}
}

const modelColumns = `id, name, version, description, model_path, scaler_path, status, accuracy, precision, recall, f1_score, training_data_size, features_used, created_at, updated_at`
const predictionColumns = `id, student_id, model_id, prediction_type, predicted_value, confidence_score, risk_level, input_features, active, actual_outcome, predicted_at, created_at`

// CreateModel inserts a new model registry record.
func (r *PredictionRepository) CreateModel(ctx context.Context, m *models.PredictionModel) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now
	_, err := r.db.ExecContext(ctx, `INSERT INTO prediction_models
		(id, name, version, description, model_path, scaler_path, status, accuracy, precision, recall,
		 f1_score, training_data_size, features_used, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		m.ID, m.Name, m.Version, m.Description, m.ModelPath, m.ScalerPath, m.Status,
		m.Accuracy, m.Precision, m.Recall, m.F1Score, m.TrainingDataSize,
		pq.Array(m.FeaturesUsed), m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create model: %w", err)
	}
	return nil
}

// FindModel fetches one model record.
func (r *PredictionRepository) FindModel(ctx context.Context, id string) (*models.PredictionModel, error) {
	var m models.PredictionModel
	query := fmt.Sprintf("SELECT %s FROM prediction_models WHERE id = $1", modelColumns)
	if err := r.db.GetContext(ctx, &m, query, id); err != nil {
		return nil, fmt.Errorf("find model: %w", err)
	}
	return &m, nil
}

// FindActiveModel returns the newest active model record.
func (r *PredictionRepository) FindActiveModel(ctx context.Context) (*models.PredictionModel, error) {
	var m models.PredictionModel
	query := fmt.Sprintf(`SELECT %s FROM prediction_models WHERE status = $1 ORDER BY updated_at DESC LIMIT 1`, modelColumns)
	if err := r.db.GetContext(ctx, &m, query, models.ModelActive); err != nil {
		return nil, fmt.Errorf("find active model: %w", err)
	}
	return &m, nil
}

// ListModels returns all model records, newest first.
func (r *PredictionRepository) ListModels(ctx context.Context) ([]models.PredictionModel, error) {
	var records []models.PredictionModel
	query := fmt.Sprintf("SELECT %s FROM prediction_models ORDER BY created_at DESC", modelColumns)
	if err := r.db.SelectContext(ctx, &records, query); err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	return records, nil
}

// SetModelStatus updates the lifecycle status of one model record.
func (r *PredictionRepository) SetModelStatus(ctx context.Context, id string, status models.ModelStatus) error {
	_, err := r.db.ExecContext(ctx, `UPDATE prediction_models SET status = $2, updated_at = $3 WHERE id = $1`,
		id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set model status: %w", err)
	}
	return nil
}

// ActivateModel promotes one model and demotes every other active record,
// in a single transaction.
func (r *PredictionRepository) ActivateModel(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("activate model: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `UPDATE prediction_models SET status = $1, updated_at = $2 WHERE status = $3 AND id <> $4`,
		models.ModelInactive, now, models.ModelActive, id); err != nil {
		return fmt.Errorf("demote active models: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE prediction_models SET status = $1, updated_at = $2 WHERE id = $3`,
		models.ModelActive, now, id); err != nil {
		return fmt.Errorf("promote model: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("activate model: %w", err)
	}
	return nil
}

// CreatePrediction inserts one inference result and deactivates prior
// predictions of the same type for the student.
func (r *PredictionRepository) CreatePrediction(ctx context.Context, p *models.Prediction) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	if p.PredictedAt.IsZero() {
		p.PredictedAt = now
	}
	p.Active = true

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("create prediction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE predictions SET active = FALSE
		WHERE student_id = $1 AND prediction_type = $2 AND active = TRUE`,
		p.StudentID, p.PredictionType); err != nil {
		return fmt.Errorf("deactivate prior predictions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO predictions
		(id, student_id, model_id, prediction_type, predicted_value, confidence_score, risk_level,
		 input_features, active, predicted_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.StudentID, p.ModelID, p.PredictionType, p.PredictedValue, p.Confidence,
		p.RiskLevel, p.InputFeatures, p.Active, p.PredictedAt, p.CreatedAt); err != nil {
		return fmt.Errorf("insert prediction: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("create prediction: %w", err)
	}
	return nil
}

// ListPredictions returns predictions per provided filter.
func (r *PredictionRepository) ListPredictions(ctx context.Context, filter models.PredictionFilter) ([]models.Prediction, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Type != "" {
		where = append(where, fmt.Sprintf("prediction_type = $%d", len(args)+1))
		args = append(args, filter.Type)
	}
	if filter.RiskLevel != "" {
		where = append(where, fmt.Sprintf("risk_level = $%d", len(args)+1))
		args = append(args, filter.RiskLevel)
	}
	if filter.Active != nil {
		where = append(where, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	whereClause := strings.Join(where, " AND ")
	page, size := normalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT %s FROM predictions WHERE %s ORDER BY predicted_at DESC LIMIT %d OFFSET %d`,
		predictionColumns, whereClause, size, (page-1)*size)
	var predictions []models.Prediction
	if err := r.db.SelectContext(ctx, &predictions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list predictions: %w", err)
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM predictions WHERE %s", whereClause)
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count predictions: %w", err)
	}
	return predictions, total, nil
}

// FindPrediction fetches one prediction.
func (r *PredictionRepository) FindPrediction(ctx context.Context, id string) (*models.Prediction, error) {
	var p models.Prediction
	query := fmt.Sprintf("SELECT %s FROM predictions WHERE id = $1", predictionColumns)
	if err := r.db.GetContext(ctx, &p, query, id); err != nil {
		return nil, fmt.Errorf("find prediction: %w", err)
	}
	return &p, nil
}

// FindLatestActive returns the newest active prediction of one type for a
// student, if any.
func (r *PredictionRepository) FindLatestActive(ctx context.Context, studentID string, predictionType models.PredictionType) (*models.Prediction, error) {
	var p models.Prediction
	query := fmt.Sprintf(`SELECT %s FROM predictions
		WHERE student_id = $1 AND prediction_type = $2 AND active = TRUE
		ORDER BY predicted_at DESC LIMIT 1`, predictionColumns)
	if err := r.db.GetContext(ctx, &p, query, studentID, predictionType); err != nil {
		return nil, fmt.Errorf("find latest prediction: %w", err)
	}
	return &p, nil
}

// FindLatestAtRisk returns the student's newest active prediction whose risk
// is high or critical, if any.
func (r *PredictionRepository) FindLatestAtRisk(ctx context.Context, studentID string) (*models.Prediction, error) {
	var p models.Prediction
	query := fmt.Sprintf(`SELECT %s FROM predictions
		WHERE student_id = $1 AND active = TRUE AND risk_level IN ('high', 'critical')
		ORDER BY predicted_at DESC LIMIT 1`, predictionColumns)
	if err := r.db.GetContext(ctx, &p, query, studentID); err != nil {
		return nil, fmt.Errorf("find at-risk prediction: %w", err)
	}
	return &p, nil
}

// ListAtRisk returns the active predictions at or above the given risk level.
func (r *PredictionRepository) ListAtRisk(ctx context.Context, levels []models.RiskLevel) ([]models.Prediction, error) {
	values := make([]string, len(levels))
	for i, l := range levels {
		values[i] = string(l)
	}
	query := fmt.Sprintf(`SELECT %s FROM predictions
		WHERE active = TRUE AND risk_level = ANY($1) ORDER BY predicted_at DESC`, predictionColumns)
	var predictions []models.Prediction
	if err := r.db.SelectContext(ctx, &predictions, query, pq.Array(values)); err != nil {
		return nil, fmt.Errorf("list at-risk predictions: %w", err)
	}
	return predictions, nil
}

// SetActualOutcome backfills the observed outcome on a past prediction.
func (r *PredictionRepository) SetActualOutcome(ctx context.Context, id string, outcome float64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE predictions SET actual_outcome = $2 WHERE id = $1`, id, outcome)
	if err != nil {
		return fmt.Errorf("set actual outcome: %w", err)
	}
	return nil
}
