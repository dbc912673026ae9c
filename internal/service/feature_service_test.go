package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edupulse/edupulse-api/internal/models"
)

type mockFeatureStudents struct {
	students map[string]*models.Student
}

func (m *mockFeatureStudents) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

type mockFeatureGrades struct {
	grades []models.Grade
	total  int
}

func (m *mockFeatureGrades) ListRecent(ctx context.Context, studentID string, limit int) ([]models.Grade, error) {
	if limit < len(m.grades) {
		return m.grades[:limit], nil
	}
	return m.grades, nil
}

func (m *mockFeatureGrades) CountByStudent(ctx context.Context, studentID string) (int, error) {
	return m.total, nil
}

type mockFeatureAttendance struct {
	summary models.AttendanceSummary
}

func (m *mockFeatureAttendance) Summary(ctx context.Context, studentID string) (*models.AttendanceSummary, error) {
	s := m.summary
	s.StudentID = studentID
	return &s, nil
}

type mockFeatureBehavior struct {
	counts models.BehaviorCounts
}

func (m *mockFeatureBehavior) Counts(ctx context.Context, studentID string) (*models.BehaviorCounts, error) {
	c := m.counts
	c.StudentID = studentID
	return &c, nil
}

func newFeatureService(grades *mockFeatureGrades, attendance *mockFeatureAttendance, behavior *mockFeatureBehavior, student *models.Student) *FeatureService {
	return NewFeatureService(
		&mockFeatureStudents{students: map[string]*models.Student{student.ID: student}},
		grades, attendance, behavior, zap.NewNop(),
	)
}

func blankStudent() *models.Student {
	return &models.Student{ID: "s1", GradeLevel: "9", Active: true}
}

func TestFeatureServiceDefaultsWithoutHistory(t *testing.T) {
	svc := newFeatureService(&mockFeatureGrades{}, &mockFeatureAttendance{}, &mockFeatureBehavior{}, blankStudent())

	features, err := svc.Extract(context.Background(), "s1")
	require.NoError(t, err)

	assert.Equal(t, 2.5, features.GPA)
	assert.Equal(t, 0.95, features.AttendanceRate)
	assert.Equal(t, 0.8, features.AssignmentCompletionRate)
	assert.Equal(t, 0.8, features.BehaviorScore)
	assert.Equal(t, 0.8, features.ParticipationScore)
	assert.Equal(t, 9.0, features.GradeLevelNumeric)
}

func TestFeatureServiceGPAFromRecentGrades(t *testing.T) {
	grades := &mockFeatureGrades{
		grades: []models.Grade{
			{Percentage: 90},
			{Percentage: 80},
		},
		total: 2,
	}
	svc := newFeatureService(grades, &mockFeatureAttendance{}, &mockFeatureBehavior{}, blankStudent())

	features, err := svc.Extract(context.Background(), "s1")
	require.NoError(t, err)

	// mean 85% on the 4.0 scale
	assert.InDelta(t, 3.4, features.GPA, 1e-9)
	// any graded assignment counts as completed
	assert.Equal(t, 1.0, features.AssignmentCompletionRate)
}

func TestFeatureServiceGPAFallsBackToStored(t *testing.T) {
	stored := 3.1
	student := blankStudent()
	student.GPA = &stored
	svc := newFeatureService(&mockFeatureGrades{}, &mockFeatureAttendance{}, &mockFeatureBehavior{}, student)

	features, err := svc.Extract(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 3.1, features.GPA)
}

func TestFeatureServiceAttendanceRate(t *testing.T) {
	attendance := &mockFeatureAttendance{summary: models.AttendanceSummary{
		TotalCount:   10,
		PresentCount: 7,
		LateCount:    1,
		AbsentCount:  2,
	}}
	svc := newFeatureService(&mockFeatureGrades{}, attendance, &mockFeatureBehavior{}, blankStudent())

	features, err := svc.Extract(context.Background(), "s1")
	require.NoError(t, err)
	assert.InDelta(t, 0.8, features.AttendanceRate, 1e-9)
}

func TestFeatureServiceBehaviorScore(t *testing.T) {
	behavior := &mockFeatureBehavior{counts: models.BehaviorCounts{
		PositiveCount: 3,
		NegativeCount: 1,
		NeutralCount:  5,
	}}
	svc := newFeatureService(&mockFeatureGrades{}, &mockFeatureAttendance{}, behavior, blankStudent())

	features, err := svc.Extract(context.Background(), "s1")
	require.NoError(t, err)
	// neutral incidents are not scored
	assert.InDelta(t, 0.75, features.BehaviorScore, 1e-9)
}

func TestFeatureServiceDemographicEncoding(t *testing.T) {
	student := blankStudent()
	student.GradeLevel = "11"
	student.ParentalEducation = models.EducationMasters
	student.FamilyIncomeBracket = models.IncomeLow
	student.HasLearningDisability = true
	student.ReceivesFreeLunch = true

	svc := newFeatureService(&mockFeatureGrades{}, &mockFeatureAttendance{}, &mockFeatureBehavior{}, student)
	features, err := svc.Extract(context.Background(), "s1")
	require.NoError(t, err)

	assert.Equal(t, 11.0, features.GradeLevelNumeric)
	assert.Equal(t, 5.0, features.ParentalEducationNumeric)
	assert.Equal(t, 0.0, features.FamilyIncomeNumeric)
	assert.Equal(t, 1.0, features.HasLearningDisability)
	assert.Equal(t, 1.0, features.ReceivesFreeLunch)
}

func TestFeatureServiceUnknownEncodingsDefault(t *testing.T) {
	student := blankStudent()
	student.GradeLevel = "sophomore"
	student.ParentalEducation = ""
	student.FamilyIncomeBracket = ""

	svc := newFeatureService(&mockFeatureGrades{}, &mockFeatureAttendance{}, &mockFeatureBehavior{}, student)
	features, err := svc.Extract(context.Background(), "s1")
	require.NoError(t, err)

	assert.Equal(t, 10.0, features.GradeLevelNumeric)
	assert.Equal(t, 2.0, features.ParentalEducationNumeric)
	assert.Equal(t, 1.0, features.FamilyIncomeNumeric)
}

func TestFeatureServiceUnknownStudent(t *testing.T) {
	svc := newFeatureService(&mockFeatureGrades{}, &mockFeatureAttendance{}, &mockFeatureBehavior{}, blankStudent())

	_, err := svc.Extract(context.Background(), "missing")
	assert.Error(t, err)
}
