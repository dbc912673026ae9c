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

// StudentRepository manages persistence for student profiles.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a new repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentColumns = `id, user_id, student_number, full_name, grade_level, parental_education, family_income_bracket, has_learning_disability, receives_free_lunch, gpa, enrolled_at, active, created_at, updated_at`

// List returns students per provided filter.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.Search != "" {
		where = append(where, fmt.Sprintf("(full_name ILIKE $%d OR student_number ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.GradeLevel != "" {
		where = append(where, fmt.Sprintf("grade_level = $%d", len(args)+1))
		args = append(args, filter.GradeLevel)
	}
	if filter.Active != nil {
		where = append(where, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	whereClause := strings.Join(where, " AND ")
	page, size := normalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT %s FROM students WHERE %s ORDER BY full_name ASC LIMIT %d OFFSET %d`,
		studentColumns, whereClause, size, (page-1)*size)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM students WHERE %s", whereClause)
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// ListActive returns every active student, for batch jobs.
func (r *StudentRepository) ListActive(ctx context.Context) ([]models.Student, error) {
	var students []models.Student
	query := fmt.Sprintf("SELECT %s FROM students WHERE active = TRUE ORDER BY full_name ASC", studentColumns)
	if err := r.db.SelectContext(ctx, &students, query); err != nil {
		return nil, fmt.Errorf("list active students: %w", err)
	}
	return students, nil
}

// FindByID fetches a single student.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	var student models.Student
	query := fmt.Sprintf("SELECT %s FROM students WHERE id = $1", studentColumns)
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, fmt.Errorf("find student by id: %w", err)
	}
	return &student, nil
}

// Create inserts a new student profile.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	student.CreatedAt = now
	student.UpdatedAt = now
	_, err := r.db.ExecContext(ctx, `INSERT INTO students
		(id, user_id, student_number, full_name, grade_level, parental_education, family_income_bracket,
		 has_learning_disability, receives_free_lunch, gpa, enrolled_at, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		student.ID, student.UserID, student.StudentNumber, student.FullName, student.GradeLevel,
		student.ParentalEducation, student.FamilyIncomeBracket, student.HasLearningDisability,
		student.ReceivesFreeLunch, student.GPA, student.EnrolledAt, student.Active,
		student.CreatedAt, student.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update modifies the mutable profile fields.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `UPDATE students SET
		full_name = $2, grade_level = $3, parental_education = $4, family_income_bracket = $5,
		has_learning_disability = $6, receives_free_lunch = $7, active = $8, updated_at = $9
		WHERE id = $1`,
		student.ID, student.FullName, student.GradeLevel, student.ParentalEducation,
		student.FamilyIncomeBracket, student.HasLearningDisability, student.ReceivesFreeLunch,
		student.Active, student.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// UpdateGPA refreshes the cached GPA column.
func (r *StudentRepository) UpdateGPA(ctx context.Context, id string, gpa float64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE students SET gpa = $2, updated_at = $3 WHERE id = $1`,
		id, gpa, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update student gpa: %w", err)
	}
	return nil
}
