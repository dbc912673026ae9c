package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edupulse/edupulse-api/internal/models"
	appErrors "github.com/edupulse/edupulse-api/pkg/errors"
)

type attendanceRepo interface {
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.Attendance, int, error)
	Summary(ctx context.Context, studentID string) (*models.AttendanceSummary, error)
	Create(ctx context.Context, record *models.Attendance) error
}

// RecordAttendanceRequest is the payload for one attendance entry.
type RecordAttendanceRequest struct {
	StudentID string    `json:"student_id" validate:"required"`
	ClassID   string    `json:"class_id" validate:"required"`
	Date      time.Time `json:"date" validate:"required"`
	Status    string    `json:"status" validate:"required,oneof=present absent late excused"`
	Note      string    `json:"note"`
}

// AttendanceService records and summarises attendance.
type AttendanceService struct {
	repo      attendanceRepo
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAttendanceService constructs the service.
func NewAttendanceService(repo attendanceRepo, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	return &AttendanceService{repo: repo, validator: validate, logger: logger}
}

// List returns attendance records per filter.
func (s *AttendanceService) List(ctx context.Context, filter models.AttendanceFilter) ([]models.Attendance, int, error) {
	return s.repo.List(ctx, filter)
}

// Summary aggregates presence counts for one student.
func (s *AttendanceService) Summary(ctx context.Context, studentID string) (*models.AttendanceSummary, error) {
	return s.repo.Summary(ctx, studentID)
}

// Record stores one attendance entry; re-recording the same
// student/class/date replaces the earlier status.
func (s *AttendanceService) Record(ctx context.Context, req RecordAttendanceRequest) (*models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	record := &models.Attendance{
		StudentID: req.StudentID,
		ClassID:   req.ClassID,
		Date:      req.Date.UTC().Truncate(24 * time.Hour),
		Status:    models.AttendanceStatus(req.Status),
		Note:      req.Note,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}
