package models

import "time"

// Grade records a scored assignment for a student. Rows are immutable once
// created except for teacher feedback.
type Grade struct {
	ID             string    `db:"id" json:"id"`
	StudentID      string    `db:"student_id" json:"student_id"`
	ClassID        string    `db:"class_id" json:"class_id"`
	AssignmentName string    `db:"assignment_name" json:"assignment_name"`
	PointsEarned   float64   `db:"points_earned" json:"points_earned"`
	PointsPossible float64   `db:"points_possible" json:"points_possible"`
	Percentage     float64   `db:"percentage" json:"percentage"`
	Feedback       string    `db:"feedback" json:"feedback"`
	GradedAt       time.Time `db:"graded_at" json:"graded_at"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// ComputePercentage derives the stored percentage from raw points.
func (g *Grade) ComputePercentage() float64 {
	if g.PointsPossible <= 0 {
		return 0
	}
	return g.PointsEarned / g.PointsPossible * 100
}

// GradeFilter narrows grade listings.
type GradeFilter struct {
	StudentID string
	ClassID   string
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
}
