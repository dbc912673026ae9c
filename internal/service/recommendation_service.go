package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/edupulse/edupulse-api/internal/models"
	appErrors "github.com/edupulse/edupulse-api/pkg/errors"
)

// Need thresholds, tuned against historical intervention outcomes.
const (
	needGPAThreshold        = 2.5
	needAttendanceThreshold = 0.85
	needNegativeBehaviors   = 3
	needMeanGradeThreshold  = 70.0
	needRiskFactorCutoff    = 4

	riskGPAThreshold        = 2.0
	riskAttendanceThreshold = 0.8
	riskNegativeBehaviors   = 5

	confidenceCalloutFloor = 0.8
	needsWindow            = 30 * 24 * time.Hour
)

// Need keys identify intervention templates.
const (
	NeedLowGPA             = "low_gpa"
	NeedPoorAttendance     = "poor_attendance"
	NeedBehavioralConcerns = "behavioral_concerns"
	NeedLowEngagement      = "low_engagement"
	NeedDropoutRisk        = "dropout_risk"
	NeedSubjectHelp        = "subject_specific_help"
)

// interventionTemplate is one canned recommendation blueprint.
type interventionTemplate struct {
	Title            string
	Description      string
	Category         models.RecommendationCategory
	Priority         models.RecommendationPriority
	SuggestedActions []string
	ResourcesNeeded  []string
	SuccessMetrics   []string
}

var interventionTemplates = map[string]interventionTemplate{
	NeedLowGPA: {
		Title:       "Academic Support Program",
		Description: "Student shows signs of academic struggle and would benefit from additional support.",
		Category:    models.CategoryAcademic,
		Priority:    models.PriorityHigh,
		SuggestedActions: []string{
			"Enroll in tutoring program",
			"Schedule weekly check-ins with academic advisor",
			"Provide study skills workshop",
			"Consider reduced course load if appropriate",
		},
		ResourcesNeeded: []string{
			"Tutoring services",
			"Academic advisor time",
			"Study materials",
			"Quiet study space",
		},
		SuccessMetrics: []string{
			"Improved GPA by 0.5 points",
			"Increased assignment completion rate",
			"Better test scores",
		},
	},
	NeedPoorAttendance: {
		Title:       "Attendance Improvement Plan",
		Description: "Student has concerning attendance patterns that may impact academic success.",
		Category:    models.CategoryAttendance,
		Priority:    models.PriorityHigh,
		SuggestedActions: []string{
			"Meet with student and parents to discuss attendance",
			"Identify barriers to regular attendance",
			"Implement attendance monitoring system",
			"Provide transportation assistance if needed",
		},
		ResourcesNeeded: []string{
			"Counselor time",
			"Parent communication system",
			"Transportation resources",
			"Attendance tracking tools",
		},
		SuccessMetrics: []string{
			"Attendance rate above 90%",
			"Reduced unexcused absences",
			"Improved punctuality",
		},
	},
	NeedBehavioralConcerns: {
		Title:       "Behavioral Support Intervention",
		Description: "Student exhibits behavioral patterns that may interfere with learning.",
		Category:    models.CategoryBehavioral,
		Priority:    models.PriorityMedium,
		SuggestedActions: []string{
			"Implement positive behavior support plan",
			"Provide social-emotional learning resources",
			"Schedule regular counseling sessions",
			"Train teachers on behavior management strategies",
		},
		ResourcesNeeded: []string{
			"School counselor",
			"Behavior specialist",
			"SEL curriculum materials",
			"Teacher training time",
		},
		SuccessMetrics: []string{
			"Reduced disciplinary incidents",
			"Improved classroom behavior ratings",
			"Better peer relationships",
		},
	},
	NeedLowEngagement: {
		Title:       "Student Engagement Enhancement",
		Description: "Student shows low engagement levels that may affect academic performance.",
		Category:    models.CategoryEngagement,
		Priority:    models.PriorityMedium,
		SuggestedActions: []string{
			"Identify student interests and strengths",
			"Connect learning to real-world applications",
			"Encourage participation in extracurricular activities",
			"Implement project-based learning opportunities",
		},
		ResourcesNeeded: []string{
			"Interest assessment tools",
			"Project materials",
			"Activity program access",
			"Mentor assignment",
		},
		SuccessMetrics: []string{
			"Increased class participation",
			"Higher assignment quality",
			"Participation in school activities",
		},
	},
	NeedDropoutRisk: {
		Title:       "Dropout Prevention Program",
		Description: "Student is at high risk of dropping out and needs intensive intervention.",
		Category:    models.CategoryCounseling,
		Priority:    models.PriorityUrgent,
		SuggestedActions: []string{
			"Assign dedicated case manager",
			"Develop individualized success plan",
			"Provide career counseling and goal setting",
			"Connect with community support services",
			"Consider alternative education options",
		},
		ResourcesNeeded: []string{
			"Case manager",
			"Career counselor",
			"Community partnerships",
			"Alternative program options",
			"Family support services",
		},
		SuccessMetrics: []string{
			"Student remains enrolled",
			"Improved academic performance",
			"Clear post-graduation plan",
			"Increased family engagement",
		},
	},
	NeedSubjectHelp: {
		Title:       "Subject-Specific Tutoring",
		Description: "Student needs additional support in specific academic areas.",
		Category:    models.CategoryTutoring,
		Priority:    models.PriorityMedium,
		SuggestedActions: []string{
			"Arrange peer or professional tutoring",
			"Provide additional practice materials",
			"Use technology-assisted learning tools",
			"Schedule regular progress check-ins",
		},
		ResourcesNeeded: []string{
			"Qualified tutors",
			"Supplementary materials",
			"Learning software/apps",
			"Progress tracking system",
		},
		SuccessMetrics: []string{
			"Improved subject-specific grades",
			"Better understanding of concepts",
			"Increased confidence in subject area",
		},
	},
}

var categoryDurations = map[models.RecommendationCategory]string{
	models.CategoryAcademic:        "4-6 weeks",
	models.CategoryBehavioral:      "6-8 weeks",
	models.CategoryAttendance:      "2-4 weeks",
	models.CategoryEngagement:      "3-5 weeks",
	models.CategoryCounseling:      "8-12 weeks",
	models.CategoryTutoring:        "4-8 weeks",
	models.CategoryExtracurricular: "Ongoing",
}

type recommendationRepo interface {
	Create(ctx context.Context, rec *models.Recommendation) error
	List(ctx context.Context, filter models.RecommendationFilter) ([]models.Recommendation, int, error)
	FindByID(ctx context.Context, id string) (*models.Recommendation, error)
	UpdateStatus(ctx context.Context, id string, status models.RecommendationStatus) error
	SetEffectiveness(ctx context.Context, id string, rating int) error
}

type recommendationStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type recommendationGradeReader interface {
	ListSince(ctx context.Context, studentID string, since time.Time) ([]models.Grade, error)
}

type recommendationAttendanceReader interface {
	Summary(ctx context.Context, studentID string) (*models.AttendanceSummary, error)
}

type recommendationBehaviorReader interface {
	CountNegativeSince(ctx context.Context, studentID string, since time.Time) (int, error)
}

// RecommendationService turns student signals and prediction results into
// concrete interventions from the canned template set.
type RecommendationService struct {
	repo       recommendationRepo
	students   recommendationStudentReader
	grades     recommendationGradeReader
	attendance recommendationAttendanceReader
	behavior   recommendationBehaviorReader
	logger     *zap.Logger
}

// NewRecommendationService constructs the service.
func NewRecommendationService(
	repo recommendationRepo,
	students recommendationStudentReader,
	grades recommendationGradeReader,
	attendance recommendationAttendanceReader,
	behavior recommendationBehaviorReader,
	logger *zap.Logger,
) *RecommendationService {
	return &RecommendationService{
		repo:       repo,
		students:   students,
		grades:     grades,
		attendance: attendance,
		behavior:   behavior,
		logger:     logger,
	}
}

// AnalyzeStudentNeeds identifies the intervention areas for one student.
// Returned keys index interventionTemplates, in first-detected order.
func (s *RecommendationService) AnalyzeStudentNeeds(ctx context.Context, student *models.Student) ([]string, error) {
	var needs []string

	if student.GPA != nil && *student.GPA < needGPAThreshold {
		needs = append(needs, NeedLowGPA)
	}

	summary, err := s.attendance.Summary(ctx, student.ID)
	if err != nil {
		return nil, fmt.Errorf("analyze needs: %w", err)
	}
	attendanceRate, hasAttendance := summary.Rate()
	if hasAttendance && attendanceRate < needAttendanceThreshold {
		needs = append(needs, NeedPoorAttendance)
	}

	since := time.Now().UTC().Add(-needsWindow)
	negatives, err := s.behavior.CountNegativeSince(ctx, student.ID, since)
	if err != nil {
		return nil, fmt.Errorf("analyze needs: %w", err)
	}
	if negatives > needNegativeBehaviors {
		needs = append(needs, NeedBehavioralConcerns)
	}

	recentGrades, err := s.grades.ListSince(ctx, student.ID, since)
	if err != nil {
		return nil, fmt.Errorf("analyze needs: %w", err)
	}
	if len(recentGrades) > 0 {
		var sum float64
		for _, g := range recentGrades {
			sum += g.Percentage
		}
		if sum/float64(len(recentGrades)) < needMeanGradeThreshold {
			needs = append(needs, NeedLowEngagement, NeedSubjectHelp)
		}
	}

	var riskFactors int
	if student.GPA != nil && *student.GPA < riskGPAThreshold {
		riskFactors += 2
	}
	if hasAttendance && attendanceRate < riskAttendanceThreshold {
		riskFactors += 2
	}
	if negatives > riskNegativeBehaviors {
		riskFactors++
	}
	if student.FamilyIncomeBracket == models.IncomeLow {
		riskFactors++
	}
	if student.HasLearningDisability {
		riskFactors++
	}
	if riskFactors >= needRiskFactorCutoff {
		needs = append(needs, NeedDropoutRisk)
	}

	return needs, nil
}

// Generate materializes interventions for a prediction. Prediction-driven
// needs are merged with the analyzed ones, deduplicated, and filtered
// against the priority threshold before persistence.
func (s *RecommendationService) Generate(ctx context.Context, prediction *models.Prediction, includeResources bool, priorityThreshold models.RecommendationPriority, createdBy *string) ([]models.Recommendation, error) {
	student, err := s.students.FindByID(ctx, prediction.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "student not found")
	}

	needs, err := s.AnalyzeStudentNeeds(ctx, student)
	if err != nil {
		return nil, err
	}

	switch prediction.RiskLevel {
	case models.RiskCritical:
		if prediction.PredictionType == models.PredictionDropout {
			needs = append(needs, NeedDropoutRisk)
		} else {
			needs = append(needs, NeedLowGPA)
		}
	case models.RiskHigh:
		needs = append(needs, NeedLowGPA, NeedSubjectHelp)
	}
	needs = dedupeNeeds(needs)

	if priorityThreshold.Rank() < 0 {
		priorityThreshold = models.PriorityMedium
	}

	now := time.Now().UTC()
	var created []models.Recommendation
	for _, need := range needs {
		template, ok := interventionTemplates[need]
		if !ok {
			continue
		}
		if template.Priority.Rank() < priorityThreshold.Rank() {
			continue
		}

		rec := models.Recommendation{
			StudentID:         student.ID,
			PredictionID:      &prediction.ID,
			Title:             template.Title,
			Description:       s.personalize(template.Description, prediction),
			Category:          template.Category,
			Priority:          template.Priority,
			SuccessMetrics:    template.SuccessMetrics,
			EstimatedDuration: estimateDuration(template.Category),
			DueDate:           now.Add(template.Priority.DueIn()),
			CreatedBy:         createdBy,
		}
		if includeResources {
			rec.SuggestedActions = template.SuggestedActions
			rec.ResourcesNeeded = template.ResourcesNeeded
		}
		if err := s.repo.Create(ctx, &rec); err != nil {
			return created, err
		}
		s.logger.Info("recommendation created",
			zap.String("student_id", student.ID),
			zap.String("title", rec.Title),
			zap.String("priority", string(rec.Priority)))
		created = append(created, rec)
	}
	return created, nil
}

// personalize appends prediction context to a template description.
func (s *RecommendationService) personalize(description string, prediction *models.Prediction) string {
	out := description
	if prediction.Confidence > confidenceCalloutFloor {
		out += fmt.Sprintf(" Our model predicts this with %.1f%% confidence.", prediction.Confidence*100)
	}
	if prediction.RiskLevel == models.RiskCritical {
		out += " This is a high-priority intervention requiring immediate attention."
	}
	return out
}

func estimateDuration(category models.RecommendationCategory) string {
	if d, ok := categoryDurations[category]; ok {
		return d
	}
	return "4-6 weeks"
}

func dedupeNeeds(needs []string) []string {
	seen := make(map[string]struct{}, len(needs))
	out := needs[:0]
	for _, need := range needs {
		if _, ok := seen[need]; ok {
			continue
		}
		seen[need] = struct{}{}
		out = append(out, need)
	}
	return out
}

// List returns recommendations per filter.
func (s *RecommendationService) List(ctx context.Context, filter models.RecommendationFilter) ([]models.Recommendation, int, error) {
	return s.repo.List(ctx, filter)
}

// Find returns one recommendation.
func (s *RecommendationService) Find(ctx context.Context, id string) (*models.Recommendation, error) {
	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "recommendation not found")
	}
	return rec, nil
}

// UpdateStatus advances a recommendation through its lifecycle. Completed
// and dismissed are terminal.
func (s *RecommendationService) UpdateStatus(ctx context.Context, id string, status models.RecommendationStatus) error {
	rec, err := s.Find(ctx, id)
	if err != nil {
		return err
	}
	switch rec.Status {
	case models.RecommendationCompleted, models.RecommendationDismissed:
		return appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("recommendation already %s", rec.Status))
	}
	switch status {
	case models.RecommendationPending, models.RecommendationInProgress,
		models.RecommendationCompleted, models.RecommendationDismissed:
	default:
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", status))
	}
	return s.repo.UpdateStatus(ctx, id, status)
}

// RateEffectiveness stores a 1-5 rating on a completed recommendation.
func (s *RecommendationService) RateEffectiveness(ctx context.Context, id string, rating int) error {
	if rating < 1 || rating > 5 {
		return appErrors.Clone(appErrors.ErrValidation, "effectiveness rating must be between 1 and 5")
	}
	rec, err := s.Find(ctx, id)
	if err != nil {
		return err
	}
	if rec.Status != models.RecommendationCompleted {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "only completed recommendations can be rated")
	}
	return s.repo.SetEffectiveness(ctx, id, rating)
}
