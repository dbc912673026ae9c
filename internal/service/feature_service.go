package service

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/edupulse/edupulse-api/internal/models"
)

// Fallback values used when a student has no history for a signal.
const (
	defaultGPA            = 2.5
	defaultAttendanceRate = 0.95
	defaultCompletionRate = 0.8
	defaultBehaviorScore  = 0.8
	defaultParticipation  = 0.8
	defaultGradeLevel     = 10

	recentGradesWindow = 20
	percentageToGPA    = 25.0
)

type featureStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type featureGradeReader interface {
	ListRecent(ctx context.Context, studentID string, limit int) ([]models.Grade, error)
	CountByStudent(ctx context.Context, studentID string) (int, error)
}

type featureAttendanceReader interface {
	Summary(ctx context.Context, studentID string) (*models.AttendanceSummary, error)
}

type featureBehaviorReader interface {
	Counts(ctx context.Context, studentID string) (*models.BehaviorCounts, error)
}

// FeatureService assembles the numeric snapshot of a student consumed by the
// trained models. Missing history falls back to fixed neutral defaults so a
// brand-new student still produces a usable vector.
type FeatureService struct {
	students   featureStudentReader
	grades     featureGradeReader
	attendance featureAttendanceReader
	behavior   featureBehaviorReader
	logger     *zap.Logger
}

// NewFeatureService constructs the service.
func NewFeatureService(
	students featureStudentReader,
	grades featureGradeReader,
	attendance featureAttendanceReader,
	behavior featureBehaviorReader,
	logger *zap.Logger,
) *FeatureService {
	return &FeatureService{
		students:   students,
		grades:     grades,
		attendance: attendance,
		behavior:   behavior,
		logger:     logger,
	}
}

// Extract builds the feature set for one student.
func (s *FeatureService) Extract(ctx context.Context, studentID string) (*models.FeatureSet, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("extract features: %w", err)
	}
	return s.ExtractFromStudent(ctx, student)
}

// ExtractFromStudent builds the feature set when the profile is already
// loaded, avoiding a redundant lookup in batch paths.
func (s *FeatureService) ExtractFromStudent(ctx context.Context, student *models.Student) (*models.FeatureSet, error) {
	gpa, err := s.gpaSignal(ctx, student)
	if err != nil {
		return nil, err
	}
	attendanceRate, err := s.attendanceSignal(ctx, student.ID)
	if err != nil {
		return nil, err
	}
	completionRate, err := s.completionSignal(ctx, student.ID)
	if err != nil {
		return nil, err
	}
	behaviorScore, err := s.behaviorSignal(ctx, student.ID)
	if err != nil {
		return nil, err
	}

	features := &models.FeatureSet{
		GPA:                      gpa,
		AttendanceRate:           attendanceRate,
		AssignmentCompletionRate: completionRate,
		BehaviorScore:            behaviorScore,
		ParticipationScore:       defaultParticipation,
		GradeLevelNumeric:        gradeLevelNumeric(student.GradeLevel),
		ParentalEducationNumeric: parentalEducationNumeric(student.ParentalEducation),
		FamilyIncomeNumeric:      familyIncomeNumeric(student.FamilyIncomeBracket),
		HasLearningDisability:    boolSignal(student.HasLearningDisability),
		ReceivesFreeLunch:        boolSignal(student.ReceivesFreeLunch),
	}
	s.logger.Debug("features extracted",
		zap.String("student_id", student.ID),
		zap.Float64("gpa", features.GPA),
		zap.Float64("attendance_rate", features.AttendanceRate))
	return features, nil
}

// gpaSignal averages the percentage of the most recent grades and converts
// it to the 4.0 scale. Without grades it uses the stored GPA, and without
// that a neutral default.
func (s *FeatureService) gpaSignal(ctx context.Context, student *models.Student) (float64, error) {
	grades, err := s.grades.ListRecent(ctx, student.ID, recentGradesWindow)
	if err != nil {
		return 0, fmt.Errorf("gpa signal: %w", err)
	}
	if len(grades) > 0 {
		var sum float64
		for _, g := range grades {
			sum += g.Percentage
		}
		return sum / float64(len(grades)) / percentageToGPA, nil
	}
	if student.GPA != nil {
		return *student.GPA, nil
	}
	return defaultGPA, nil
}

func (s *FeatureService) attendanceSignal(ctx context.Context, studentID string) (float64, error) {
	summary, err := s.attendance.Summary(ctx, studentID)
	if err != nil {
		return 0, fmt.Errorf("attendance signal: %w", err)
	}
	rate, ok := summary.Rate()
	if !ok {
		return defaultAttendanceRate, nil
	}
	return rate, nil
}

// completionSignal mirrors the historical behavior: any graded assignment
// counts as completed, so the rate is 1.0 whenever grades exist.
func (s *FeatureService) completionSignal(ctx context.Context, studentID string) (float64, error) {
	total, err := s.grades.CountByStudent(ctx, studentID)
	if err != nil {
		return 0, fmt.Errorf("completion signal: %w", err)
	}
	if total > 0 {
		return 1.0, nil
	}
	return defaultCompletionRate, nil
}

func (s *FeatureService) behaviorSignal(ctx context.Context, studentID string) (float64, error) {
	counts, err := s.behavior.Counts(ctx, studentID)
	if err != nil {
		return 0, fmt.Errorf("behavior signal: %w", err)
	}
	scored := counts.PositiveCount + counts.NegativeCount
	if scored == 0 {
		return defaultBehaviorScore, nil
	}
	return float64(counts.PositiveCount) / float64(scored), nil
}

func gradeLevelNumeric(level string) float64 {
	if n, err := strconv.Atoi(level); err == nil {
		return float64(n)
	}
	return defaultGradeLevel
}

func parentalEducationNumeric(level models.ParentalEducation) float64 {
	switch level {
	case models.EducationNone:
		return 0
	case models.EducationPrimary:
		return 1
	case models.EducationSecondary:
		return 2
	case models.EducationSomeCollege:
		return 3
	case models.EducationBachelors:
		return 4
	case models.EducationMasters:
		return 5
	case models.EducationDoctorate:
		return 6
	default:
		return 2
	}
}

func familyIncomeNumeric(bracket models.IncomeBracket) float64 {
	switch bracket {
	case models.IncomeLow:
		return 0
	case models.IncomeHigh:
		return 2
	default:
		return 1
	}
}

func boolSignal(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
