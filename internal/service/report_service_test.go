package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edupulse/edupulse-api/internal/models"
	appErrors "github.com/edupulse/edupulse-api/pkg/errors"
)

type mockReportPredictions struct {
	flagged []models.Prediction
}

func (m *mockReportPredictions) ListAtRisk(ctx context.Context, levels []models.RiskLevel) ([]models.Prediction, error) {
	return m.flagged, nil
}

type mockNeedAnalyzer struct {
	needs   map[string][]string
	failFor string
}

func (m *mockNeedAnalyzer) AnalyzeStudentNeeds(ctx context.Context, student *models.Student) ([]string, error) {
	if m.failFor != "" && student.ID == m.failFor {
		return nil, assert.AnError
	}
	return m.needs[student.ID], nil
}

func newReportFixture() (*ReportService, *memArtifactStore, *mockReportPredictions, *mockNeedAnalyzer, *mockRuleStudents) {
	predictions := &mockReportPredictions{}
	students := &mockRuleStudents{students: map[string]*models.Student{}}
	analyzer := &mockNeedAnalyzer{needs: map[string][]string{}}
	store := newMemArtifactStore()
	svc := NewReportService(predictions, students, analyzer, store, zap.NewNop())
	return svc, store, predictions, analyzer, students
}

func TestGenerateAtRiskSummaryCSV(t *testing.T) {
	svc, store, predictions, analyzer, students := newReportFixture()
	students.students["s1"] = &models.Student{ID: "s1", StudentNumber: "S-100", FullName: "Avery Cole", GradeLevel: "10"}
	analyzer.needs["s1"] = []string{NeedLowGPA, NeedPoorAttendance}
	predictions.flagged = []models.Prediction{{
		StudentID:      "s1",
		PredictionType: models.PredictionDropout,
		PredictedValue: 0.82,
		Confidence:     0.9,
		RiskLevel:      models.RiskCritical,
	}}

	report, err := svc.GenerateAtRiskSummary(context.Background(), ReportCSV)
	require.NoError(t, err)

	assert.Equal(t, 1, report.RowCount)
	assert.Equal(t, ReportCSV, report.Format)
	assert.True(t, strings.HasSuffix(report.Key, ".csv"))

	blob, ok := store.blobs[report.Key]
	require.True(t, ok)
	content := string(blob)
	assert.Contains(t, content, "Student Number")
	assert.Contains(t, content, "Avery Cole")
	assert.Contains(t, content, "0.82")
	assert.Contains(t, content, "low_gpa; poor_attendance")
}

func TestGenerateAtRiskSummaryPDF(t *testing.T) {
	svc, store, predictions, _, students := newReportFixture()
	students.students["s1"] = &models.Student{ID: "s1", StudentNumber: "S-100", FullName: "Avery Cole", GradeLevel: "10"}
	predictions.flagged = []models.Prediction{{StudentID: "s1", PredictionType: models.PredictionDropout, RiskLevel: models.RiskHigh}}

	report, err := svc.GenerateAtRiskSummary(context.Background(), ReportPDF)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(report.Key, ".pdf"))

	blob := store.blobs[report.Key]
	require.NotEmpty(t, blob)
	assert.True(t, strings.HasPrefix(string(blob), "%PDF"))
}

func TestGenerateAtRiskSummarySkipsBrokenStudents(t *testing.T) {
	svc, _, predictions, analyzer, students := newReportFixture()
	students.students["ok"] = &models.Student{ID: "ok", FullName: "Kept Student"}
	students.students["needs-fail"] = &models.Student{ID: "needs-fail"}
	analyzer.failFor = "needs-fail"
	predictions.flagged = []models.Prediction{
		{StudentID: "ok", RiskLevel: models.RiskHigh},
		{StudentID: "missing-profile", RiskLevel: models.RiskHigh},
		{StudentID: "needs-fail", RiskLevel: models.RiskCritical},
	}

	report, err := svc.GenerateAtRiskSummary(context.Background(), ReportCSV)
	require.NoError(t, err)
	assert.Equal(t, 1, report.RowCount)
}

func TestGenerateAtRiskSummaryUnknownFormat(t *testing.T) {
	svc, _, _, _, _ := newReportFixture()
	_, err := svc.GenerateAtRiskSummary(context.Background(), ReportFormat("xlsx"))
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestDownloadUnknownReport(t *testing.T) {
	svc, store, _, _, _ := newReportFixture()
	store.blobs["known"] = []byte("data")

	blob, err := svc.Download(context.Background(), "known")
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), blob)

	_, err = svc.Download(context.Background(), "unknown")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
