package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edupulse/edupulse-api/internal/models"
	appErrors "github.com/edupulse/edupulse-api/pkg/errors"
)

type behaviorRepo interface {
	List(ctx context.Context, filter models.BehaviorFilter) ([]models.BehaviorRecord, int, error)
	Counts(ctx context.Context, studentID string) (*models.BehaviorCounts, error)
	Create(ctx context.Context, record *models.BehaviorRecord) error
}

// RecordBehaviorRequest is the payload for one behavioural incident.
type RecordBehaviorRequest struct {
	StudentID    string     `json:"student_id" validate:"required"`
	BehaviorType string     `json:"behavior_type" validate:"required,oneof=positive negative neutral"`
	Severity     int        `json:"severity" validate:"gte=1,lte=5"`
	Description  string     `json:"description" validate:"required"`
	IncidentDate *time.Time `json:"incident_date"`
	ReportedBy   string     `json:"reported_by" validate:"required"`
}

// BehaviorService records behavioural incidents.
type BehaviorService struct {
	repo      behaviorRepo
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBehaviorService constructs the service.
func NewBehaviorService(repo behaviorRepo, validate *validator.Validate, logger *zap.Logger) *BehaviorService {
	return &BehaviorService{repo: repo, validator: validate, logger: logger}
}

// List returns behavior records per filter.
func (s *BehaviorService) List(ctx context.Context, filter models.BehaviorFilter) ([]models.BehaviorRecord, int, error) {
	return s.repo.List(ctx, filter)
}

// Counts aggregates incident counts by type for one student.
func (s *BehaviorService) Counts(ctx context.Context, studentID string) (*models.BehaviorCounts, error) {
	return s.repo.Counts(ctx, studentID)
}

// Record stores one incident.
func (s *BehaviorService) Record(ctx context.Context, req RecordBehaviorRequest) (*models.BehaviorRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid behavior payload")
	}
	record := &models.BehaviorRecord{
		StudentID:    req.StudentID,
		BehaviorType: models.BehaviorType(req.BehaviorType),
		Severity:     req.Severity,
		Description:  req.Description,
		ReportedBy:   req.ReportedBy,
	}
	if req.IncidentDate != nil {
		record.IncidentDate = req.IncidentDate.UTC()
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}
