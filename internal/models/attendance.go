package models

import "time"

// AttendanceStatus is the recorded presence state for a school day.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceLate    AttendanceStatus = "late"
	AttendanceExcused AttendanceStatus = "excused"
)

// Attendance is one record per (student, class, date).
type Attendance struct {
	ID        string           `db:"id" json:"id"`
	StudentID string           `db:"student_id" json:"student_id"`
	ClassID   string           `db:"class_id" json:"class_id"`
	Date      time.Time        `db:"date" json:"date"`
	Status    AttendanceStatus `db:"status" json:"status"`
	Note      string           `db:"note" json:"note"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

// AttendanceFilter narrows attendance listings.
type AttendanceFilter struct {
	StudentID string
	ClassID   string
	Status    AttendanceStatus
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
}

// AttendanceSummary aggregates per-student presence counts.
type AttendanceSummary struct {
	StudentID    string `db:"student_id" json:"student_id"`
	TotalCount   int    `db:"total_count" json:"total_count"`
	PresentCount int    `db:"present_count" json:"present_count"`
	LateCount    int    `db:"late_count" json:"late_count"`
	AbsentCount  int    `db:"absent_count" json:"absent_count"`
	ExcusedCount int    `db:"excused_count" json:"excused_count"`
}

// Rate returns the fraction of records counted as attended (present or late).
// The second return reports whether any records exist.
func (s AttendanceSummary) Rate() (float64, bool) {
	if s.TotalCount == 0 {
		return 0, false
	}
	return float64(s.PresentCount+s.LateCount) / float64(s.TotalCount), true
}
