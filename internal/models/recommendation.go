package models

import (
	"time"

	"github.com/lib/pq"
)

// RecommendationCategory groups interventions by the kind of support given.
type RecommendationCategory string

const (
	CategoryAcademic        RecommendationCategory = "academic"
	CategoryAttendance      RecommendationCategory = "attendance"
	CategoryBehavioral      RecommendationCategory = "behavioral"
	CategoryEngagement      RecommendationCategory = "engagement"
	CategoryCounseling      RecommendationCategory = "counseling"
	CategoryTutoring        RecommendationCategory = "tutoring"
	CategoryExtracurricular RecommendationCategory = "extracurricular"
)

// RecommendationPriority orders interventions by urgency.
type RecommendationPriority string

const (
	PriorityLow    RecommendationPriority = "low"
	PriorityMedium RecommendationPriority = "medium"
	PriorityHigh   RecommendationPriority = "high"
	PriorityUrgent RecommendationPriority = "urgent"
)

// Rank orders priorities numerically (low=0 .. urgent=3, unknown=-1).
func (p RecommendationPriority) Rank() int {
	switch p {
	case PriorityLow:
		return 0
	case PriorityMedium:
		return 1
	case PriorityHigh:
		return 2
	case PriorityUrgent:
		return 3
	default:
		return -1
	}
}

// DueIn returns how long an intervention of this priority may wait.
func (p RecommendationPriority) DueIn() time.Duration {
	switch p {
	case PriorityUrgent:
		return 3 * 24 * time.Hour
	case PriorityHigh:
		return 7 * 24 * time.Hour
	case PriorityMedium:
		return 14 * 24 * time.Hour
	default:
		return 30 * 24 * time.Hour
	}
}

// RecommendationStatus tracks intervention progress.
type RecommendationStatus string

const (
	RecommendationPending    RecommendationStatus = "pending"
	RecommendationInProgress RecommendationStatus = "in_progress"
	RecommendationCompleted  RecommendationStatus = "completed"
	RecommendationDismissed  RecommendationStatus = "dismissed"
)

// Recommendation is a concrete intervention assigned to a student.
type Recommendation struct {
	ID                  string                 `db:"id" json:"id"`
	StudentID           string                 `db:"student_id" json:"student_id"`
	PredictionID        *string                `db:"prediction_id" json:"prediction_id,omitempty"`
	Title               string                 `db:"title" json:"title"`
	Description         string                 `db:"description" json:"description"`
	Category            RecommendationCategory `db:"category" json:"category"`
	Priority            RecommendationPriority `db:"priority" json:"priority"`
	Status              RecommendationStatus   `db:"status" json:"status"`
	SuggestedActions    pq.StringArray         `db:"suggested_actions" json:"suggested_actions"`
	ResourcesNeeded     pq.StringArray         `db:"resources_needed" json:"resources_needed"`
	SuccessMetrics      pq.StringArray         `db:"success_metrics" json:"success_metrics"`
	EstimatedDuration   string                 `db:"estimated_duration" json:"estimated_duration"`
	DueDate             time.Time              `db:"due_date" json:"due_date"`
	EffectivenessRating *int                   `db:"effectiveness_rating" json:"effectiveness_rating,omitempty"`
	CreatedBy           *string                `db:"created_by" json:"created_by,omitempty"`
	CreatedAt           time.Time              `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time              `db:"updated_at" json:"updated_at"`
}

// RecommendationFilter narrows recommendation listings.
type RecommendationFilter struct {
	StudentID string
	Category  RecommendationCategory
	Priority  RecommendationPriority
	Status    RecommendationStatus
	Overdue   bool
	Page      int
	PageSize  int
}
