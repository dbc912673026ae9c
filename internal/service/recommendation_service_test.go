package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edupulse/edupulse-api/internal/models"
	appErrors "github.com/edupulse/edupulse-api/pkg/errors"
)

type mockRecommendationRepo struct {
	recommendations map[string]models.Recommendation
	created         []models.Recommendation
	statusChanges   map[string]models.RecommendationStatus
	ratings         map[string]int
}

func newMockRecommendationRepo() *mockRecommendationRepo {
	return &mockRecommendationRepo{
		recommendations: map[string]models.Recommendation{},
		statusChanges:   map[string]models.RecommendationStatus{},
		ratings:         map[string]int{},
	}
}

func (m *mockRecommendationRepo) Create(ctx context.Context, rec *models.Recommendation) error {
	if rec.ID == "" {
		rec.ID = "rec-new"
	}
	m.recommendations[rec.ID] = *rec
	m.created = append(m.created, *rec)
	return nil
}

func (m *mockRecommendationRepo) List(ctx context.Context, filter models.RecommendationFilter) ([]models.Recommendation, int, error) {
	return nil, 0, nil
}

func (m *mockRecommendationRepo) FindByID(ctx context.Context, id string) (*models.Recommendation, error) {
	if r, ok := m.recommendations[id]; ok {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRecommendationRepo) UpdateStatus(ctx context.Context, id string, status models.RecommendationStatus) error {
	m.statusChanges[id] = status
	return nil
}

func (m *mockRecommendationRepo) SetEffectiveness(ctx context.Context, id string, rating int) error {
	m.ratings[id] = rating
	return nil
}

type mockRecGrades struct {
	grades []models.Grade
}

func (m *mockRecGrades) ListSince(ctx context.Context, studentID string, since time.Time) ([]models.Grade, error) {
	return m.grades, nil
}

type recFixture struct {
	repo       *mockRecommendationRepo
	grades     *mockRecGrades
	attendance *mockRuleAttendance
	behavior   *mockRuleBehavior
	student    *models.Student
	svc        *RecommendationService
}

func newRecFixture(student *models.Student) *recFixture {
	f := &recFixture{
		repo:       newMockRecommendationRepo(),
		grades:     &mockRecGrades{},
		attendance: &mockRuleAttendance{summaries: map[string]models.AttendanceSummary{}},
		behavior:   &mockRuleBehavior{negatives: map[string]int{}},
		student:    student,
	}
	f.svc = NewRecommendationService(
		f.repo,
		&mockRuleStudents{students: map[string]*models.Student{student.ID: student}},
		f.grades, f.attendance, f.behavior, zap.NewNop(),
	)
	return f
}

func healthyStudent() *models.Student {
	gpa := 3.5
	return &models.Student{ID: "s1", GPA: &gpa, FamilyIncomeBracket: models.IncomeMiddle, Active: true}
}

func TestAnalyzeNeedsHealthyStudent(t *testing.T) {
	f := newRecFixture(healthyStudent())
	f.attendance.summaries["s1"] = models.AttendanceSummary{TotalCount: 20, PresentCount: 20}

	needs, err := f.svc.AnalyzeStudentNeeds(context.Background(), f.student)
	require.NoError(t, err)
	assert.Empty(t, needs)
}

func TestAnalyzeNeedsDetectsEachSignal(t *testing.T) {
	gpa := 2.2
	student := &models.Student{ID: "s1", GPA: &gpa, Active: true}
	f := newRecFixture(student)
	f.attendance.summaries["s1"] = models.AttendanceSummary{TotalCount: 20, PresentCount: 16}
	f.behavior.negatives["s1"] = 4
	f.grades.grades = []models.Grade{{Percentage: 60}, {Percentage: 65}}

	needs, err := f.svc.AnalyzeStudentNeeds(context.Background(), student)
	require.NoError(t, err)
	assert.Equal(t, []string{
		NeedLowGPA,
		NeedPoorAttendance,
		NeedBehavioralConcerns,
		NeedLowEngagement,
		NeedSubjectHelp,
	}, needs)
}

func TestAnalyzeNeedsRiskFactorAccumulation(t *testing.T) {
	gpa := 1.8
	student := &models.Student{
		ID:                  "s1",
		GPA:                 &gpa,
		FamilyIncomeBracket: models.IncomeLow,
		Active:              true,
	}
	f := newRecFixture(student)
	// 75% attendance: below both the need and risk thresholds
	f.attendance.summaries["s1"] = models.AttendanceSummary{TotalCount: 20, PresentCount: 15}

	// GPA < 2.0 (+2), attendance < 0.8 (+2), low income (+1) = 5 factors
	needs, err := f.svc.AnalyzeStudentNeeds(context.Background(), student)
	require.NoError(t, err)
	assert.Contains(t, needs, NeedDropoutRisk)
}

func TestAnalyzeNeedsWorseningSignalsNeverShrinkNeeds(t *testing.T) {
	gpa := 2.4
	student := &models.Student{ID: "s1", GPA: &gpa, Active: true}
	f := newRecFixture(student)
	f.attendance.summaries["s1"] = models.AttendanceSummary{TotalCount: 20, PresentCount: 20}

	baseline, err := f.svc.AnalyzeStudentNeeds(context.Background(), student)
	require.NoError(t, err)

	// degrade every signal and re-analyze
	worse := 1.5
	student.GPA = &worse
	student.FamilyIncomeBracket = models.IncomeLow
	f.attendance.summaries["s1"] = models.AttendanceSummary{TotalCount: 20, PresentCount: 12}
	f.behavior.negatives["s1"] = 10

	degraded, err := f.svc.AnalyzeStudentNeeds(context.Background(), student)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, len(degraded), len(baseline))
	for _, need := range baseline {
		assert.Contains(t, degraded, need)
	}
}

func TestGenerateCriticalDropoutPrediction(t *testing.T) {
	f := newRecFixture(healthyStudent())
	f.attendance.summaries["s1"] = models.AttendanceSummary{TotalCount: 20, PresentCount: 20}
	prediction := &models.Prediction{
		ID:             "p1",
		StudentID:      "s1",
		PredictionType: models.PredictionDropout,
		PredictedValue: 0.85,
		Confidence:     0.9,
		RiskLevel:      models.RiskCritical,
	}

	created, err := f.svc.Generate(context.Background(), prediction, true, models.PriorityMedium, nil)
	require.NoError(t, err)
	require.Len(t, created, 1)

	rec := created[0]
	assert.Equal(t, "Dropout Prevention Program", rec.Title)
	assert.Equal(t, models.PriorityUrgent, rec.Priority)
	assert.Equal(t, "p1", *rec.PredictionID)
	assert.NotEmpty(t, rec.SuggestedActions)
	assert.NotEmpty(t, rec.ResourcesNeeded)
	assert.True(t, strings.Contains(rec.Description, "90.0% confidence"))
	assert.True(t, strings.Contains(rec.Description, "immediate attention"))
}

func TestGenerateDueDateFollowsPriority(t *testing.T) {
	f := newRecFixture(healthyStudent())
	f.attendance.summaries["s1"] = models.AttendanceSummary{TotalCount: 20, PresentCount: 20}
	prediction := &models.Prediction{ID: "p1", StudentID: "s1", PredictionType: models.PredictionDropout, RiskLevel: models.RiskCritical}

	before := time.Now().UTC()
	created, err := f.svc.Generate(context.Background(), prediction, false, models.PriorityMedium, nil)
	require.NoError(t, err)
	require.Len(t, created, 1)

	// urgent interventions are due within three days
	due := created[0].DueDate
	assert.True(t, due.After(before.Add(3*24*time.Hour-time.Minute)))
	assert.True(t, due.Before(before.Add(3*24*time.Hour+time.Minute)))
}

func TestGenerateExcludesResourcesWhenNotRequested(t *testing.T) {
	f := newRecFixture(healthyStudent())
	f.attendance.summaries["s1"] = models.AttendanceSummary{TotalCount: 20, PresentCount: 20}
	prediction := &models.Prediction{ID: "p1", StudentID: "s1", PredictionType: models.PredictionDropout, RiskLevel: models.RiskCritical}

	created, err := f.svc.Generate(context.Background(), prediction, false, models.PriorityMedium, nil)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Empty(t, created[0].SuggestedActions)
	assert.Empty(t, created[0].ResourcesNeeded)
	assert.NotEmpty(t, created[0].SuccessMetrics)
}

func TestGeneratePriorityThresholdFilters(t *testing.T) {
	f := newRecFixture(healthyStudent())
	f.attendance.summaries["s1"] = models.AttendanceSummary{TotalCount: 20, PresentCount: 20}
	// high risk maps to low_gpa (high) and subject_specific_help (medium)
	prediction := &models.Prediction{ID: "p1", StudentID: "s1", PredictionType: models.PredictionGrade, RiskLevel: models.RiskHigh}

	created, err := f.svc.Generate(context.Background(), prediction, false, models.PriorityHigh, nil)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "Academic Support Program", created[0].Title)
}

func TestGenerateDeduplicatesNeeds(t *testing.T) {
	gpa := 2.2
	student := &models.Student{ID: "s1", GPA: &gpa, Active: true}
	f := newRecFixture(student)
	f.attendance.summaries["s1"] = models.AttendanceSummary{TotalCount: 20, PresentCount: 20}
	// analysis already yields low_gpa; a critical grade prediction adds it again
	prediction := &models.Prediction{ID: "p1", StudentID: "s1", PredictionType: models.PredictionGrade, RiskLevel: models.RiskCritical}

	created, err := f.svc.Generate(context.Background(), prediction, false, models.PriorityMedium, nil)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "Academic Support Program", created[0].Title)
}

func TestUpdateStatusLifecycle(t *testing.T) {
	f := newRecFixture(healthyStudent())
	f.repo.recommendations["pending"] = models.Recommendation{ID: "pending", Status: models.RecommendationPending}
	f.repo.recommendations["done"] = models.Recommendation{ID: "done", Status: models.RecommendationCompleted}

	require.NoError(t, f.svc.UpdateStatus(context.Background(), "pending", models.RecommendationInProgress))
	assert.Equal(t, models.RecommendationInProgress, f.repo.statusChanges["pending"])

	err := f.svc.UpdateStatus(context.Background(), "done", models.RecommendationInProgress)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))

	err = f.svc.UpdateStatus(context.Background(), "pending", "archived")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestRateEffectiveness(t *testing.T) {
	f := newRecFixture(healthyStudent())
	f.repo.recommendations["done"] = models.Recommendation{ID: "done", Status: models.RecommendationCompleted}
	f.repo.recommendations["pending"] = models.Recommendation{ID: "pending", Status: models.RecommendationPending}

	require.NoError(t, f.svc.RateEffectiveness(context.Background(), "done", 4))
	assert.Equal(t, 4, f.repo.ratings["done"])

	err := f.svc.RateEffectiveness(context.Background(), "done", 6)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	err = f.svc.RateEffectiveness(context.Background(), "pending", 3)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))
}
