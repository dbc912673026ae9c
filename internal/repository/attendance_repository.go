package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edupulse/edupulse-api/internal/models"
)

// AttendanceRepository manages persistence for attendance records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs a new repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

const attendanceColumns = `id, student_id, class_id, date, status, note, created_at`

// List returns attendance records per provided filter.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.Attendance, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ClassID != "" {
		where = append(where, fmt.Sprintf("class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	whereClause := strings.Join(where, " AND ")
	page, size := normalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT %s FROM attendance WHERE %s ORDER BY date DESC LIMIT %d OFFSET %d`,
		attendanceColumns, whereClause, size, (page-1)*size)
	var records []models.Attendance
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list attendance: %w", err)
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM attendance WHERE %s", whereClause)
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count attendance: %w", err)
	}
	return records, total, nil
}

// Summary aggregates presence counts for one student across all records.
func (r *AttendanceRepository) Summary(ctx context.Context, studentID string) (*models.AttendanceSummary, error) {
	summary := models.AttendanceSummary{StudentID: studentID}
	query := `SELECT
		COUNT(*) AS total_count,
		COUNT(*) FILTER (WHERE status = 'present') AS present_count,
		COUNT(*) FILTER (WHERE status = 'late') AS late_count,
		COUNT(*) FILTER (WHERE status = 'absent') AS absent_count,
		COUNT(*) FILTER (WHERE status = 'excused') AS excused_count
		FROM attendance WHERE student_id = $1`
	row := r.db.QueryRowxContext(ctx, query, studentID)
	if err := row.Scan(&summary.TotalCount, &summary.PresentCount, &summary.LateCount, &summary.AbsentCount, &summary.ExcusedCount); err != nil {
		return nil, fmt.Errorf("attendance summary: %w", err)
	}
	return &summary, nil
}

// Create inserts one record, replacing any existing row for the same
// (student, class, date).
func (r *AttendanceRepository) Create(ctx context.Context, record *models.Attendance) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.CreatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `INSERT INTO attendance
		(id, student_id, class_id, date, status, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (student_id, class_id, date)
		DO UPDATE SET status = EXCLUDED.status, note = EXCLUDED.note`,
		record.ID, record.StudentID, record.ClassID, record.Date, record.Status, record.Note, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("create attendance: %w", err)
	}
	return nil
}
