package models

import "time"

// ParentalEducation enumerates the highest education level reached by a
// student's parents or guardians.
type ParentalEducation string

const (
	EducationNone        ParentalEducation = "none"
	EducationPrimary     ParentalEducation = "primary"
	EducationSecondary   ParentalEducation = "secondary"
	EducationSomeCollege ParentalEducation = "some_college"
	EducationBachelors   ParentalEducation = "bachelors"
	EducationMasters     ParentalEducation = "masters"
	EducationDoctorate   ParentalEducation = "doctorate"
)

// IncomeBracket enumerates household income bands.
type IncomeBracket string

const (
	IncomeLow    IncomeBracket = "low"
	IncomeMiddle IncomeBracket = "middle"
	IncomeHigh   IncomeBracket = "high"
)

// Student holds the demographic profile tracked for each learner.
type Student struct {
	ID                    string            `db:"id" json:"id"`
	UserID                string            `db:"user_id" json:"user_id"`
	StudentNumber         string            `db:"student_number" json:"student_number"`
	FullName              string            `db:"full_name" json:"full_name"`
	GradeLevel            string            `db:"grade_level" json:"grade_level"`
	ParentalEducation     ParentalEducation `db:"parental_education" json:"parental_education"`
	FamilyIncomeBracket   IncomeBracket     `db:"family_income_bracket" json:"family_income_bracket"`
	HasLearningDisability bool              `db:"has_learning_disability" json:"has_learning_disability"`
	ReceivesFreeLunch     bool              `db:"receives_free_lunch" json:"receives_free_lunch"`
	GPA                   *float64          `db:"gpa" json:"gpa,omitempty"`
	EnrolledAt            time.Time         `db:"enrolled_at" json:"enrolled_at"`
	Active                bool              `db:"active" json:"active"`
	CreatedAt             time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time         `db:"updated_at" json:"updated_at"`
}

// StudentFilter narrows student listings.
type StudentFilter struct {
	Search     string
	GradeLevel string
	Active     *bool
	Page       int
	PageSize   int
}

// EnrollmentStatus tracks membership of a student in a class.
type EnrollmentStatus string

const (
	EnrollmentEnrolled  EnrollmentStatus = "enrolled"
	EnrollmentCompleted EnrollmentStatus = "completed"
	EnrollmentDropped   EnrollmentStatus = "dropped"
)

// Class is a taught group of students.
type Class struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Subject   string    `db:"subject" json:"subject"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Enrollment links a student to a class.
type Enrollment struct {
	ID        string           `db:"id" json:"id"`
	StudentID string           `db:"student_id" json:"student_id"`
	ClassID   string           `db:"class_id" json:"class_id"`
	Status    EnrollmentStatus `db:"status" json:"status"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}
