package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edupulse/edupulse-api/internal/models"
	appErrors "github.com/edupulse/edupulse-api/pkg/errors"
)

type gradeRepo interface {
	List(ctx context.Context, filter models.GradeFilter) ([]models.Grade, int, error)
	ListRecent(ctx context.Context, studentID string, limit int) ([]models.Grade, error)
	Create(ctx context.Context, grade *models.Grade) error
	UpdateFeedback(ctx context.Context, id, feedback string) error
}

type gradeStudentUpdater interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	UpdateGPA(ctx context.Context, id string, gpa float64) error
}

// CreateGradeRequest is the payload for recording a scored assignment.
type CreateGradeRequest struct {
	StudentID      string     `json:"student_id" validate:"required"`
	ClassID        string     `json:"class_id" validate:"required"`
	AssignmentName string     `json:"assignment_name" validate:"required"`
	PointsEarned   float64    `json:"points_earned" validate:"gte=0"`
	PointsPossible float64    `json:"points_possible" validate:"gt=0"`
	Feedback       string     `json:"feedback"`
	GradedAt       *time.Time `json:"graded_at"`
}

// GradeService records assignments and keeps the cached student GPA fresh.
type GradeService struct {
	repo      gradeRepo
	students  gradeStudentUpdater
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGradeService constructs the service.
func NewGradeService(repo gradeRepo, students gradeStudentUpdater, validate *validator.Validate, logger *zap.Logger) *GradeService {
	return &GradeService{repo: repo, students: students, validator: validate, logger: logger}
}

// List returns grades per filter.
func (s *GradeService) List(ctx context.Context, filter models.GradeFilter) ([]models.Grade, int, error) {
	return s.repo.List(ctx, filter)
}

// Create records one grade. The student's cached GPA is recomputed from the
// same recent-grades window the feature extractor uses.
func (s *GradeService) Create(ctx context.Context, req CreateGradeRequest) (*models.Grade, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}

	grade := &models.Grade{
		StudentID:      req.StudentID,
		ClassID:        req.ClassID,
		AssignmentName: req.AssignmentName,
		PointsEarned:   req.PointsEarned,
		PointsPossible: req.PointsPossible,
		Feedback:       req.Feedback,
	}
	if req.GradedAt != nil {
		grade.GradedAt = req.GradedAt.UTC()
	}
	if err := s.repo.Create(ctx, grade); err != nil {
		return nil, err
	}

	if err := s.refreshGPA(ctx, req.StudentID); err != nil {
		s.logger.Warn("gpa refresh failed", zap.String("student_id", req.StudentID), zap.Error(err))
	}
	return grade, nil
}

// UpdateFeedback replaces the feedback text on a grade.
func (s *GradeService) UpdateFeedback(ctx context.Context, id, feedback string) error {
	return s.repo.UpdateFeedback(ctx, id, feedback)
}

func (s *GradeService) refreshGPA(ctx context.Context, studentID string) error {
	grades, err := s.repo.ListRecent(ctx, studentID, recentGradesWindow)
	if err != nil {
		return err
	}
	if len(grades) == 0 {
		return nil
	}
	var sum float64
	for _, g := range grades {
		sum += g.Percentage
	}
	gpa := sum / float64(len(grades)) / percentageToGPA
	return s.students.UpdateGPA(ctx, studentID, gpa)
}
