package models

// FeatureColumns is the fixed input order expected by every trained model.
// The order must match the order used at training time.
var FeatureColumns = []string{
	"gpa",
	"attendance_rate",
	"assignment_completion_rate",
	"behavior_score",
	"participation_score",
	"grade_level_numeric",
	"parental_education_numeric",
	"family_income_numeric",
	"has_learning_disability",
	"receives_free_lunch",
}

// FeatureSet is the numeric snapshot of a student fed into the models.
type FeatureSet struct {
	GPA                      float64 `json:"gpa"`
	AttendanceRate           float64 `json:"attendance_rate"`
	AssignmentCompletionRate float64 `json:"assignment_completion_rate"`
	BehaviorScore            float64 `json:"behavior_score"`
	ParticipationScore       float64 `json:"participation_score"`
	GradeLevelNumeric        float64 `json:"grade_level_numeric"`
	ParentalEducationNumeric float64 `json:"parental_education_numeric"`
	FamilyIncomeNumeric      float64 `json:"family_income_numeric"`
	HasLearningDisability    float64 `json:"has_learning_disability"`
	ReceivesFreeLunch        float64 `json:"receives_free_lunch"`
}

// Vector flattens the set into FeatureColumns order.
func (f FeatureSet) Vector() []float64 {
	return []float64{
		f.GPA,
		f.AttendanceRate,
		f.AssignmentCompletionRate,
		f.BehaviorScore,
		f.ParticipationScore,
		f.GradeLevelNumeric,
		f.ParentalEducationNumeric,
		f.FamilyIncomeNumeric,
		f.HasLearningDisability,
		f.ReceivesFreeLunch,
	}
}
