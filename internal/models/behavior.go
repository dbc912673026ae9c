package models

import "time"

// BehaviorType classifies a recorded incident.
type BehaviorType string

const (
	BehaviorPositive BehaviorType = "positive"
	BehaviorNegative BehaviorType = "negative"
	BehaviorNeutral  BehaviorType = "neutral"
)

// BehaviorRecord captures a single behavioural incident for a student.
type BehaviorRecord struct {
	ID           string       `db:"id" json:"id"`
	StudentID    string       `db:"student_id" json:"student_id"`
	BehaviorType BehaviorType `db:"behavior_type" json:"behavior_type"`
	Severity     int          `db:"severity" json:"severity"`
	Description  string       `db:"description" json:"description"`
	IncidentDate time.Time    `db:"incident_date" json:"incident_date"`
	ReportedBy   string       `db:"reported_by" json:"reported_by"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
}

// BehaviorFilter narrows behavior listings.
type BehaviorFilter struct {
	StudentID string
	Type      BehaviorType
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
}

// BehaviorCounts aggregates incident counts by type for a student.
type BehaviorCounts struct {
	StudentID     string `db:"student_id" json:"student_id"`
	PositiveCount int    `db:"positive_count" json:"positive_count"`
	NegativeCount int    `db:"negative_count" json:"negative_count"`
	NeutralCount  int    `db:"neutral_count" json:"neutral_count"`
}
