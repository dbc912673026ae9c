package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edupulse/edupulse-api/internal/models"
	appErrors "github.com/edupulse/edupulse-api/pkg/errors"
)

type mockPredictionRepo struct {
	models      map[string]models.PredictionModel
	activeID    string
	predictions []models.Prediction
	outcomes    map[string]float64
	nextModelID int
}

func newMockPredictionRepo() *mockPredictionRepo {
	return &mockPredictionRepo{models: map[string]models.PredictionModel{}, outcomes: map[string]float64{}}
}

func (m *mockPredictionRepo) CreateModel(ctx context.Context, record *models.PredictionModel) error {
	m.nextModelID++
	record.ID = fmt.Sprintf("m-%d", m.nextModelID)
	m.models[record.ID] = *record
	return nil
}

func (m *mockPredictionRepo) FindModel(ctx context.Context, id string) (*models.PredictionModel, error) {
	if r, ok := m.models[id]; ok {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPredictionRepo) FindActiveModel(ctx context.Context) (*models.PredictionModel, error) {
	if m.activeID == "" {
		return nil, sql.ErrNoRows
	}
	return m.FindModel(ctx, m.activeID)
}

func (m *mockPredictionRepo) ListModels(ctx context.Context) ([]models.PredictionModel, error) {
	var list []models.PredictionModel
	for _, r := range m.models {
		list = append(list, r)
	}
	return list, nil
}

func (m *mockPredictionRepo) ActivateModel(ctx context.Context, id string) error {
	m.activeID = id
	r := m.models[id]
	r.Status = models.ModelActive
	m.models[id] = r
	return nil
}

func (m *mockPredictionRepo) CreatePrediction(ctx context.Context, p *models.Prediction) error {
	p.ID = fmt.Sprintf("p-%d", len(m.predictions)+1)
	m.predictions = append(m.predictions, *p)
	return nil
}

func (m *mockPredictionRepo) ListPredictions(ctx context.Context, filter models.PredictionFilter) ([]models.Prediction, int, error) {
	return m.predictions, len(m.predictions), nil
}

func (m *mockPredictionRepo) FindPrediction(ctx context.Context, id string) (*models.Prediction, error) {
	for i := range m.predictions {
		if m.predictions[i].ID == id {
			return &m.predictions[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockPredictionRepo) FindLatestActive(ctx context.Context, studentID string, predictionType models.PredictionType) (*models.Prediction, error) {
	for i := len(m.predictions) - 1; i >= 0; i-- {
		if m.predictions[i].StudentID == studentID && m.predictions[i].PredictionType == predictionType {
			return &m.predictions[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockPredictionRepo) ListAtRisk(ctx context.Context, levels []models.RiskLevel) ([]models.Prediction, error) {
	var flagged []models.Prediction
	for _, p := range m.predictions {
		for _, level := range levels {
			if p.RiskLevel == level {
				flagged = append(flagged, p)
				break
			}
		}
	}
	return flagged, nil
}

func (m *mockPredictionRepo) SetActualOutcome(ctx context.Context, id string, outcome float64) error {
	m.outcomes[id] = outcome
	return nil
}

type mockPredictionStudents struct {
	order []models.Student
}

func (m *mockPredictionStudents) FindByID(ctx context.Context, id string) (*models.Student, error) {
	for i := range m.order {
		if m.order[i].ID == id {
			return &m.order[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockPredictionStudents) ListActive(ctx context.Context) ([]models.Student, error) {
	return m.order, nil
}

type mockExtractor struct {
	failFor string
}

func (m *mockExtractor) ExtractFromStudent(ctx context.Context, student *models.Student) (*models.FeatureSet, error) {
	if m.failFor != "" && student.ID == m.failFor {
		return nil, errors.New("history unavailable")
	}
	return &models.FeatureSet{
		GPA:                      1.5,
		AttendanceRate:           0.6,
		AssignmentCompletionRate: 0.8,
		BehaviorScore:            0.5,
		ParticipationScore:       0.8,
		GradeLevelNumeric:        10,
		ParentalEducationNumeric: 2,
		FamilyIncomeNumeric:      1,
	}, nil
}

type memArtifactStore struct {
	blobs map[string][]byte
}

func newMemArtifactStore() *memArtifactStore {
	return &memArtifactStore{blobs: map[string][]byte{}}
}

func (m *memArtifactStore) Save(key string, data []byte) (string, error) {
	m.blobs[key] = data
	return key, nil
}

func (m *memArtifactStore) Load(key string) ([]byte, error) {
	if b, ok := m.blobs[key]; ok {
		return b, nil
	}
	return nil, errors.New("artifact not found")
}

// syntheticTrainingSet builds a separable binary dropout dataset: class 1
// rows have low GPA and attendance, class 0 rows are healthy.
func syntheticTrainingSet(n int) ([][]float64, []float64) {
	rng := rand.New(rand.NewSource(7))
	features := make([][]float64, n)
	targets := make([]float64, n)
	for i := range features {
		row := make([]float64, len(models.FeatureColumns))
		target := float64(i % 2)
		if target == 1 {
			row[0] = 1.0 + rng.Float64()*0.8
			row[1] = 0.5 + rng.Float64()*0.2
		} else {
			row[0] = 3.0 + rng.Float64()*0.9
			row[1] = 0.9 + rng.Float64()*0.1
		}
		for j := 2; j < len(row); j++ {
			row[j] = rng.Float64()
		}
		features[i] = row
		targets[i] = target
	}
	return features, targets
}

func newPredictionFixture(students []models.Student, extractor *mockExtractor) (*PredictionService, *mockPredictionRepo) {
	repo := newMockPredictionRepo()
	svc := NewPredictionService(
		repo, &mockPredictionStudents{order: students}, extractor, newMemArtifactStore(),
		validator.New(), zap.NewNop(), 42, 25,
	)
	return svc, repo
}

func trainAndActivate(t *testing.T, svc *PredictionService) *models.PredictionModel {
	t.Helper()
	features, targets := syntheticTrainingSet(60)
	record, err := svc.Train(context.Background(), TrainModelRequest{
		Name:     "dropout",
		Features: features,
		Targets:  targets,
	})
	require.NoError(t, err)
	require.NoError(t, svc.Activate(context.Background(), record.ID))
	return record
}

func TestTrainRegistersInactiveModel(t *testing.T) {
	svc, repo := newPredictionFixture(nil, &mockExtractor{})
	features, targets := syntheticTrainingSet(60)

	record, err := svc.Train(context.Background(), TrainModelRequest{
		Name:     "dropout",
		Features: features,
		Targets:  targets,
	})
	require.NoError(t, err)

	assert.Equal(t, models.ModelInactive, record.Status)
	assert.NotEmpty(t, record.ModelPath)
	assert.NotEmpty(t, record.ScalerPath)
	assert.Equal(t, 60, record.TrainingDataSize)
	assert.Equal(t, []string(record.FeaturesUsed), models.FeatureColumns)
	assert.GreaterOrEqual(t, record.Accuracy, 0.0)
	assert.LessOrEqual(t, record.Accuracy, 1.0)
	// training never activates
	assert.Empty(t, repo.activeID)
}

func TestTrainValidatesShape(t *testing.T) {
	svc, _ := newPredictionFixture(nil, &mockExtractor{})

	features, targets := syntheticTrainingSet(10)
	_, err := svc.Train(context.Background(), TrainModelRequest{Name: "bad", Features: features, Targets: targets[:5]})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.Train(context.Background(), TrainModelRequest{Name: "tiny", Features: features[:3], Targets: targets[:3]})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestPredictWithoutActiveModel(t *testing.T) {
	students := []models.Student{{ID: "s1", Active: true}}
	svc, _ := newPredictionFixture(students, &mockExtractor{})

	_, err := svc.Predict(context.Background(), "s1", models.PredictionDropout)
	assert.True(t, appErrors.Is(err, appErrors.ErrNoActiveModel))
}

func TestPredictStoresResult(t *testing.T) {
	students := []models.Student{{ID: "s1", Active: true}}
	svc, repo := newPredictionFixture(students, &mockExtractor{})
	record := trainAndActivate(t, svc)

	result, err := svc.Predict(context.Background(), "s1", models.PredictionDropout)
	require.NoError(t, err)

	assert.Equal(t, "s1", result.StudentID)
	assert.Equal(t, models.BucketRisk(models.PredictionDropout, result.PredictedValue), result.RiskLevel)
	require.NotNil(t, result.Features)

	require.Len(t, repo.predictions, 1)
	stored := repo.predictions[0]
	assert.Equal(t, record.ID, stored.ModelID)
	assert.NotEmpty(t, stored.InputFeatures)
}

func TestPredictUnknownStudent(t *testing.T) {
	svc, _ := newPredictionFixture(nil, &mockExtractor{})
	trainAndActivate(t, svc)

	_, err := svc.Predict(context.Background(), "missing", models.PredictionDropout)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestBatchPredictIsolatesFailures(t *testing.T) {
	students := make([]models.Student, 10)
	for i := range students {
		students[i] = models.Student{ID: fmt.Sprintf("s-%d", i), Active: true}
	}
	extractor := &mockExtractor{failFor: "s-4"}
	svc, repo := newPredictionFixture(students, extractor)
	trainAndActivate(t, svc)

	result, err := svc.BatchPredict(context.Background(), nil, models.PredictionDropout)
	require.NoError(t, err)

	assert.Len(t, result.Predictions, 9)
	assert.Equal(t, []string{"s-4"}, result.Failed)
	assert.Len(t, repo.predictions, 9)
}

func TestBatchPredictAcceptsStudentSubset(t *testing.T) {
	students := make([]models.Student, 10)
	for i := range students {
		students[i] = models.Student{ID: fmt.Sprintf("s-%d", i), Active: true}
	}
	svc, repo := newPredictionFixture(students, &mockExtractor{})
	trainAndActivate(t, svc)

	subset := []models.Student{students[1], students[3]}
	result, err := svc.BatchPredict(context.Background(), subset, models.PredictionDropout)
	require.NoError(t, err)

	require.Len(t, result.Predictions, 2)
	assert.Equal(t, "s-1", result.Predictions[0].StudentID)
	assert.Equal(t, "s-3", result.Predictions[1].StudentID)
	assert.Len(t, repo.predictions, 2)
}

func TestBatchPredictRequiresActiveModel(t *testing.T) {
	students := []models.Student{{ID: "s1", Active: true}}
	svc, _ := newPredictionFixture(students, &mockExtractor{})

	_, err := svc.BatchPredict(context.Background(), nil, models.PredictionDropout)
	assert.True(t, appErrors.Is(err, appErrors.ErrNoActiveModel))
}

func TestActivateSwapsRegistry(t *testing.T) {
	students := []models.Student{{ID: "s1", Active: true}}
	svc, repo := newPredictionFixture(students, &mockExtractor{})
	first := trainAndActivate(t, svc)

	features, targets := syntheticTrainingSet(60)
	second, err := svc.Train(context.Background(), TrainModelRequest{Name: "dropout-v2", Features: features, Targets: targets})
	require.NoError(t, err)
	require.NoError(t, svc.Activate(context.Background(), second.ID))

	assert.Equal(t, second.ID, repo.activeID)
	assert.NotEqual(t, first.ID, repo.activeID)

	result, err := svc.Predict(context.Background(), "s1", models.PredictionDropout)
	require.NoError(t, err)
	assert.Len(t, repo.predictions, 1)
	assert.Equal(t, second.ID, repo.predictions[0].ModelID)
	assert.NotNil(t, result)
}

func TestRecordOutcome(t *testing.T) {
	students := []models.Student{{ID: "s1", Active: true}}
	svc, repo := newPredictionFixture(students, &mockExtractor{})
	trainAndActivate(t, svc)

	_, err := svc.Predict(context.Background(), "s1", models.PredictionDropout)
	require.NoError(t, err)
	id := repo.predictions[0].ID

	require.NoError(t, svc.RecordOutcome(context.Background(), id, 1))
	assert.Equal(t, 1.0, repo.outcomes[id])

	err = svc.RecordOutcome(context.Background(), "missing", 1)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestLatestPrediction(t *testing.T) {
	students := []models.Student{{ID: "s1", Active: true}}
	svc, _ := newPredictionFixture(students, &mockExtractor{})
	trainAndActivate(t, svc)

	_, err := svc.Latest(context.Background(), "s1", models.PredictionDropout)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	_, err = svc.Predict(context.Background(), "s1", models.PredictionDropout)
	require.NoError(t, err)

	latest, err := svc.Latest(context.Background(), "s1", models.PredictionDropout)
	require.NoError(t, err)
	assert.Equal(t, "s1", latest.StudentID)
}
