package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edupulse/edupulse-api/internal/ml"
	"github.com/edupulse/edupulse-api/internal/models"
	appErrors "github.com/edupulse/edupulse-api/pkg/errors"
)

const (
	testFraction      = 0.2
	classifierCutoff  = 10
	defaultModelTrees = 100
)

type predictionRepo interface {
	CreateModel(ctx context.Context, m *models.PredictionModel) error
	FindModel(ctx context.Context, id string) (*models.PredictionModel, error)
	FindActiveModel(ctx context.Context) (*models.PredictionModel, error)
	ListModels(ctx context.Context) ([]models.PredictionModel, error)
	ActivateModel(ctx context.Context, id string) error
	CreatePrediction(ctx context.Context, p *models.Prediction) error
	ListPredictions(ctx context.Context, filter models.PredictionFilter) ([]models.Prediction, int, error)
	FindPrediction(ctx context.Context, id string) (*models.Prediction, error)
	FindLatestActive(ctx context.Context, studentID string, predictionType models.PredictionType) (*models.Prediction, error)
	ListAtRisk(ctx context.Context, levels []models.RiskLevel) ([]models.Prediction, error)
	SetActualOutcome(ctx context.Context, id string, outcome float64) error
}

type predictionStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ListActive(ctx context.Context) ([]models.Student, error)
}

type featureExtractor interface {
	ExtractFromStudent(ctx context.Context, student *models.Student) (*models.FeatureSet, error)
}

type artifactStore interface {
	Save(key string, data []byte) (string, error)
	Load(key string) ([]byte, error)
}

// TrainModelRequest carries a prepared training set. Feature rows follow
// models.FeatureColumns order.
type TrainModelRequest struct {
	Name        string      `json:"name" validate:"required"`
	Description string      `json:"description"`
	Features    [][]float64 `json:"features" validate:"required,min=5"`
	Targets     []float64   `json:"targets" validate:"required"`
	Categorical bool        `json:"categorical"`
}

// PredictionResult is the inference payload returned to callers.
type PredictionResult struct {
	StudentID      string                `json:"student_id"`
	PredictionType models.PredictionType `json:"prediction_type"`
	PredictedValue float64               `json:"predicted_value"`
	Confidence     float64               `json:"confidence_score"`
	RiskLevel      models.RiskLevel      `json:"risk_level"`
	Features       *models.FeatureSet    `json:"input_features"`
}

// BatchPredictionResult aggregates a batch run; failures are isolated per
// student and reported alongside the successes.
type BatchPredictionResult struct {
	Predictions []PredictionResult `json:"predictions"`
	Failed      []string           `json:"failed_student_ids,omitempty"`
}

// loadedModel is the registry entry: the decoded predictor, its scaler and
// the record it came from.
type loadedModel struct {
	record    *models.PredictionModel
	predictor ml.Predictor
	scaler    *ml.StandardScaler
}

// PredictionService trains, persists and serves decision-tree ensemble
// models. The active (model, scaler) pair lives behind an RWMutex so
// activation can swap it without racing in-flight predictions.
type PredictionService struct {
	repo      predictionRepo
	students  predictionStudentReader
	features  featureExtractor
	artifacts artifactStore
	validator *validator.Validate
	logger    *zap.Logger
	seed      int64
	numTrees  int

	mu     sync.RWMutex
	active *loadedModel
}

// NewPredictionService constructs the service.
func NewPredictionService(
	repo predictionRepo,
	students predictionStudentReader,
	features featureExtractor,
	artifacts artifactStore,
	validate *validator.Validate,
	logger *zap.Logger,
	seed int64,
	numTrees int,
) *PredictionService {
	if numTrees <= 0 {
		numTrees = defaultModelTrees
	}
	return &PredictionService{
		repo:      repo,
		students:  students,
		features:  features,
		artifacts: artifacts,
		validator: validate,
		logger:    logger,
		seed:      seed,
		numTrees:  numTrees,
	}
}

// Train fits a model on the provided set, evaluates it on a held-out split
// and registers it as inactive. Targets that look categorical (or have few
// distinct values) get a random-forest classifier; everything else a
// gradient-boosting regressor.
func (s *PredictionService) Train(ctx context.Context, req TrainModelRequest) (*models.PredictionModel, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid training request")
	}
	if len(req.Features) != len(req.Targets) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "feature and target counts differ")
	}

	dataset := ml.Dataset{X: req.Features, Y: req.Targets}
	classification := req.Categorical || dataset.DistinctTargets() <= classifierCutoff

	train, test, err := ml.TrainTestSplit(dataset, testFraction, classification, s.seed)
	if err != nil {
		return nil, fmt.Errorf("train model: %w", err)
	}

	scaler, err := ml.FitScaler(train.X)
	if err != nil {
		return nil, fmt.Errorf("train model: %w", err)
	}
	trainX, err := scaler.Transform(train.X)
	if err != nil {
		return nil, fmt.Errorf("train model: %w", err)
	}
	testX, err := scaler.Transform(test.X)
	if err != nil {
		return nil, fmt.Errorf("train model: %w", err)
	}

	var predictor ml.Predictor
	var metrics ml.ClassificationMetrics
	if classification {
		forest, err := ml.TrainRandomForest(trainX, train.Y, ml.RandomForestConfig{NumTrees: s.numTrees, Seed: s.seed})
		if err != nil {
			return nil, fmt.Errorf("train model: %w", err)
		}
		predicted := make([]float64, len(testX))
		for i, row := range testX {
			predicted[i], _ = forest.Predict(row)
		}
		metrics = ml.EvaluateClassification(test.Y, predicted)
		predictor = forest
	} else {
		boosted, err := ml.TrainGradientBoosting(trainX, train.Y, ml.GradientBoostingConfig{NumTrees: s.numTrees, Seed: s.seed})
		if err != nil {
			return nil, fmt.Errorf("train model: %w", err)
		}
		predicted := make([]float64, len(testX))
		for i, row := range testX {
			predicted[i] = boosted.Predict(row)
		}
		accuracy := ml.RegressionAccuracy(test.Y, predicted)
		metrics = ml.ClassificationMetrics{Accuracy: accuracy, Precision: accuracy, Recall: accuracy, F1: accuracy}
		predictor = boosted
	}

	record, err := s.persistModel(ctx, req, predictor, scaler, metrics, len(req.Features))
	if err != nil {
		return nil, err
	}
	s.logger.Info("model trained",
		zap.String("model_id", record.ID),
		zap.String("name", record.Name),
		zap.Bool("classification", classification),
		zap.Float64("accuracy", metrics.Accuracy))
	return record, nil
}

func (s *PredictionService) persistModel(ctx context.Context, req TrainModelRequest, predictor ml.Predictor, scaler *ml.StandardScaler, metrics ml.ClassificationMetrics, samples int) (*models.PredictionModel, error) {
	modelBlob, err := ml.EncodeModel(predictor)
	if err != nil {
		return nil, fmt.Errorf("persist model: %w", err)
	}
	scalerBlob, err := ml.EncodeScaler(scaler)
	if err != nil {
		return nil, fmt.Errorf("persist model: %w", err)
	}

	stamp := time.Now().UTC().Format("20060102_150405")
	modelKey, err := s.artifacts.Save(fmt.Sprintf("%s_%s.gob", req.Name, stamp), modelBlob)
	if err != nil {
		return nil, fmt.Errorf("persist model: %w", err)
	}
	scalerKey, err := s.artifacts.Save(fmt.Sprintf("%s_scaler_%s.gob", req.Name, stamp), scalerBlob)
	if err != nil {
		return nil, fmt.Errorf("persist model: %w", err)
	}

	description := req.Description
	if description == "" {
		description = fmt.Sprintf("Trained on %d samples", samples)
	}
	record := &models.PredictionModel{
		Name:             req.Name,
		Version:          fmt.Sprintf("1.%s", time.Now().UTC().Format("20060102")),
		Description:      description,
		ModelPath:        modelKey,
		ScalerPath:       scalerKey,
		Status:           models.ModelInactive,
		Accuracy:         metrics.Accuracy,
		Precision:        metrics.Precision,
		Recall:           metrics.Recall,
		F1Score:          metrics.F1,
		TrainingDataSize: samples,
		FeaturesUsed:     models.FeatureColumns,
	}
	if err := s.repo.CreateModel(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// Activate promotes one model record, demotes the rest and swaps the
// in-memory registry under the write lock.
func (s *PredictionService) Activate(ctx context.Context, modelID string) error {
	record, err := s.repo.FindModel(ctx, modelID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "model not found")
	}
	loaded, err := s.loadArtifacts(record)
	if err != nil {
		return err
	}
	if err := s.repo.ActivateModel(ctx, modelID); err != nil {
		return err
	}

	s.mu.Lock()
	s.active = loaded
	s.mu.Unlock()

	s.logger.Info("model activated", zap.String("model_id", modelID), zap.String("name", record.Name))
	return nil
}

// LoadActiveModel primes the registry from the newest active record.
// Called at startup and lazily before the first prediction.
func (s *PredictionService) LoadActiveModel(ctx context.Context) error {
	record, err := s.repo.FindActiveModel(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrNoActiveModel.Code, appErrors.ErrNoActiveModel.Status, appErrors.ErrNoActiveModel.Message)
	}
	loaded, err := s.loadArtifacts(record)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.active = loaded
	s.mu.Unlock()
	return nil
}

func (s *PredictionService) loadArtifacts(record *models.PredictionModel) (*loadedModel, error) {
	modelBlob, err := s.artifacts.Load(record.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("load model artifact: %w", err)
	}
	predictor, err := ml.DecodeModel(modelBlob)
	if err != nil {
		return nil, fmt.Errorf("load model artifact: %w", err)
	}

	var scaler *ml.StandardScaler
	if record.ScalerPath != "" {
		scalerBlob, err := s.artifacts.Load(record.ScalerPath)
		if err != nil {
			return nil, fmt.Errorf("load scaler artifact: %w", err)
		}
		scaler, err = ml.DecodeScaler(scalerBlob)
		if err != nil {
			return nil, fmt.Errorf("load scaler artifact: %w", err)
		}
	}
	return &loadedModel{record: record, predictor: predictor, scaler: scaler}, nil
}

// snapshot returns the current registry entry, lazily loading it once.
func (s *PredictionService) snapshot(ctx context.Context) (*loadedModel, error) {
	s.mu.RLock()
	active := s.active
	s.mu.RUnlock()
	if active != nil {
		return active, nil
	}
	if err := s.LoadActiveModel(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active, nil
}

// Predict runs inference for one student and persists the result. Earlier
// active predictions of the same type are demoted by the repository.
func (s *PredictionService) Predict(ctx context.Context, studentID string, predictionType models.PredictionType) (*PredictionResult, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "student not found")
	}
	return s.predictStudent(ctx, student, predictionType)
}

func (s *PredictionService) predictStudent(ctx context.Context, student *models.Student, predictionType models.PredictionType) (*PredictionResult, error) {
	active, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	features, err := s.features.ExtractFromStudent(ctx, student)
	if err != nil {
		return nil, err
	}
	vector := features.Vector()
	if active.scaler != nil {
		vector, err = active.scaler.TransformRow(vector)
		if err != nil {
			return nil, fmt.Errorf("scale features: %w", err)
		}
	}

	value, confidence := active.predictor.PredictValue(vector)
	risk := models.BucketRisk(predictionType, value)

	inputBlob, err := json.Marshal(features)
	if err != nil {
		return nil, fmt.Errorf("encode features: %w", err)
	}
	prediction := &models.Prediction{
		StudentID:      student.ID,
		ModelID:        active.record.ID,
		PredictionType: predictionType,
		PredictedValue: value,
		Confidence:     confidence,
		RiskLevel:      risk,
		InputFeatures:  inputBlob,
	}
	if err := s.repo.CreatePrediction(ctx, prediction); err != nil {
		return nil, err
	}

	return &PredictionResult{
		StudentID:      student.ID,
		PredictionType: predictionType,
		PredictedValue: value,
		Confidence:     confidence,
		RiskLevel:      risk,
		Features:       features,
	}, nil
}

// BatchPredict runs inference for the given students, defaulting to every
// active student when nil. A failing student is logged and skipped; the
// rest of the batch proceeds.
func (s *PredictionService) BatchPredict(ctx context.Context, students []models.Student, predictionType models.PredictionType) (*BatchPredictionResult, error) {
	var err error
	if students == nil {
		students, err = s.students.ListActive(ctx)
		if err != nil {
			return nil, err
		}
	}

	result := &BatchPredictionResult{}
	for i := range students {
		student := &students[i]
		prediction, err := s.predictStudent(ctx, student, predictionType)
		if err != nil {
			if appErrors.Is(err, appErrors.ErrNoActiveModel) {
				return nil, err
			}
			s.logger.Warn("batch prediction failed for student",
				zap.String("student_id", student.ID), zap.Error(err))
			result.Failed = append(result.Failed, student.ID)
			continue
		}
		result.Predictions = append(result.Predictions, *prediction)
	}
	return result, nil
}

// List returns stored predictions per filter.
func (s *PredictionService) List(ctx context.Context, filter models.PredictionFilter) ([]models.Prediction, int, error) {
	return s.repo.ListPredictions(ctx, filter)
}

// Find returns one stored prediction.
func (s *PredictionService) Find(ctx context.Context, id string) (*models.Prediction, error) {
	prediction, err := s.repo.FindPrediction(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "prediction not found")
	}
	return prediction, nil
}

// Latest returns the newest active prediction of one type for a student.
func (s *PredictionService) Latest(ctx context.Context, studentID string, predictionType models.PredictionType) (*models.Prediction, error) {
	prediction, err := s.repo.FindLatestActive(ctx, studentID, predictionType)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "no prediction found")
	}
	return prediction, nil
}

// AtRisk returns the active predictions flagged high or critical.
func (s *PredictionService) AtRisk(ctx context.Context) ([]models.Prediction, error) {
	return s.repo.ListAtRisk(ctx, []models.RiskLevel{models.RiskHigh, models.RiskCritical})
}

// RecordOutcome backfills the observed outcome onto a past prediction.
func (s *PredictionService) RecordOutcome(ctx context.Context, predictionID string, outcome float64) error {
	if _, err := s.repo.FindPrediction(ctx, predictionID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "prediction not found")
	}
	return s.repo.SetActualOutcome(ctx, predictionID, outcome)
}

// Models lists every registered model record.
func (s *PredictionService) Models(ctx context.Context) ([]models.PredictionModel, error) {
	return s.repo.ListModels(ctx)
}
