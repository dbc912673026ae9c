package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edupulse/edupulse-api/internal/models"
	appErrors "github.com/edupulse/edupulse-api/pkg/errors"
)

type studentRepo interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	ListActive(ctx context.Context) ([]models.Student, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	UpdateGPA(ctx context.Context, id string, gpa float64) error
}

// CreateStudentRequest is the payload for registering a student profile.
type CreateStudentRequest struct {
	UserID                string `json:"user_id" validate:"required"`
	StudentNumber         string `json:"student_number" validate:"required"`
	FullName              string `json:"full_name" validate:"required"`
	GradeLevel            string `json:"grade_level" validate:"required"`
	ParentalEducation     string `json:"parental_education"`
	FamilyIncomeBracket   string `json:"family_income_bracket"`
	HasLearningDisability bool   `json:"has_learning_disability"`
	ReceivesFreeLunch     bool   `json:"receives_free_lunch"`
}

// UpdateStudentRequest carries the mutable profile fields.
type UpdateStudentRequest struct {
	FullName              string `json:"full_name" validate:"required"`
	GradeLevel            string `json:"grade_level" validate:"required"`
	ParentalEducation     string `json:"parental_education"`
	FamilyIncomeBracket   string `json:"family_income_bracket"`
	HasLearningDisability bool   `json:"has_learning_disability"`
	ReceivesFreeLunch     bool   `json:"receives_free_lunch"`
	Active                bool   `json:"active"`
}

// StudentService manages student profiles.
type StudentService struct {
	repo      studentRepo
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the service.
func NewStudentService(repo studentRepo, validate *validator.Validate, logger *zap.Logger) *StudentService {
	return &StudentService{repo: repo, validator: validate, logger: logger}
}

// List returns students per filter.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	return s.repo.List(ctx, filter)
}

// Find returns one student.
func (s *StudentService) Find(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, err
	}
	return student, nil
}

// Create registers a new student profile.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	student := &models.Student{
		UserID:                req.UserID,
		StudentNumber:         req.StudentNumber,
		FullName:              req.FullName,
		GradeLevel:            req.GradeLevel,
		ParentalEducation:     models.ParentalEducation(req.ParentalEducation),
		FamilyIncomeBracket:   models.IncomeBracket(req.FamilyIncomeBracket),
		HasLearningDisability: req.HasLearningDisability,
		ReceivesFreeLunch:     req.ReceivesFreeLunch,
		EnrolledAt:            time.Now().UTC(),
		Active:                true,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, err
	}
	s.logger.Info("student created", zap.String("student_id", student.ID), zap.String("number", student.StudentNumber))
	return student, nil
}

// Update modifies a student's mutable profile fields.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	student, err := s.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	student.FullName = req.FullName
	student.GradeLevel = req.GradeLevel
	student.ParentalEducation = models.ParentalEducation(req.ParentalEducation)
	student.FamilyIncomeBracket = models.IncomeBracket(req.FamilyIncomeBracket)
	student.HasLearningDisability = req.HasLearningDisability
	student.ReceivesFreeLunch = req.ReceivesFreeLunch
	student.Active = req.Active
	if err := s.repo.Update(ctx, student); err != nil {
		return nil, err
	}
	return student, nil
}

// RefreshGPA recomputes the cached GPA column from recent grades.
func (s *StudentService) RefreshGPA(ctx context.Context, id string, gpa float64) error {
	if _, err := s.Find(ctx, id); err != nil {
		return err
	}
	return s.repo.UpdateGPA(ctx, id, gpa)
}
