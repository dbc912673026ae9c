package models

import (
	"encoding/json"
	"time"

	"github.com/lib/pq"
)

// PredictionType is the target the model was asked to estimate.
type PredictionType string

const (
	PredictionGrade      PredictionType = "grade"
	PredictionDropout    PredictionType = "dropout"
	PredictionAttendance PredictionType = "attendance"
	PredictionBehavior   PredictionType = "behavior"
)

// RiskLevel buckets a raw predicted value into an actionable severity.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Rank orders risk levels numerically (low=1 .. critical=4, unknown=0).
func (r RiskLevel) Rank() int {
	switch r {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	case RiskCritical:
		return 4
	default:
		return 0
	}
}

// BucketRisk derives the risk level for a predicted value. Dropout-style
// predictions are probabilities (higher is worse); everything else is
// grade-oriented on a 4.0 scale (lower is worse).
func BucketRisk(predictionType PredictionType, value float64) RiskLevel {
	if predictionType == PredictionDropout {
		switch {
		case value > 0.7:
			return RiskCritical
		case value > 0.5:
			return RiskHigh
		case value > 0.3:
			return RiskMedium
		default:
			return RiskLow
		}
	}
	switch {
	case value < 2.0:
		return RiskCritical
	case value < 2.5:
		return RiskHigh
	case value < 3.0:
		return RiskMedium
	default:
		return RiskLow
	}
}

// ModelStatus tracks the lifecycle of a trained model record.
type ModelStatus string

const (
	ModelTraining ModelStatus = "training"
	ModelActive   ModelStatus = "active"
	ModelInactive ModelStatus = "inactive"
	ModelFailed   ModelStatus = "failed"
)

// PredictionModel is the registry record for one persisted (model, scaler)
// artifact pair. At most one record is active per deployment; activation
// demotes all previously active records.
type PredictionModel struct {
	ID               string         `db:"id" json:"id"`
	Name             string         `db:"name" json:"name"`
	Version          string         `db:"version" json:"version"`
	Description      string         `db:"description" json:"description"`
	ModelPath        string         `db:"model_path" json:"model_path"`
	ScalerPath       string         `db:"scaler_path" json:"scaler_path"`
	Status           ModelStatus    `db:"status" json:"status"`
	Accuracy         float64        `db:"accuracy" json:"accuracy"`
	Precision        float64        `db:"precision" json:"precision"`
	Recall           float64        `db:"recall" json:"recall"`
	F1Score          float64        `db:"f1_score" json:"f1_score"`
	TrainingDataSize int            `db:"training_data_size" json:"training_data_size"`
	FeaturesUsed     pq.StringArray `db:"features_used" json:"features_used"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

// Prediction records one inference result. Immutable after creation except
// for actual-outcome backfill.
type Prediction struct {
	ID             string          `db:"id" json:"id"`
	StudentID      string          `db:"student_id" json:"student_id"`
	ModelID        string          `db:"model_id" json:"model_id"`
	PredictionType PredictionType  `db:"prediction_type" json:"prediction_type"`
	PredictedValue float64         `db:"predicted_value" json:"predicted_value"`
	Confidence     float64         `db:"confidence_score" json:"confidence_score"`
	RiskLevel      RiskLevel       `db:"risk_level" json:"risk_level"`
	InputFeatures  json.RawMessage `db:"input_features" json:"input_features"`
	Active         bool            `db:"active" json:"active"`
	ActualOutcome  *float64        `db:"actual_outcome" json:"actual_outcome,omitempty"`
	PredictedAt    time.Time       `db:"predicted_at" json:"predicted_at"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// PredictionFilter narrows prediction listings.
type PredictionFilter struct {
	StudentID string
	Type      PredictionType
	RiskLevel RiskLevel
	Active    *bool
	Page      int
	PageSize  int
}
