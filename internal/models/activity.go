package models

import "time"

// Activity is gradeable coursework attached to a module. Weight scales the
// activity's contribution to the activities average.
type Activity struct {
	ID        string  `db:"id" json:"id"`
	ModuleID  string  `db:"module_id" json:"module_id"`
	Title     string  `db:"title" json:"title"`
	Mandatory bool    `db:"mandatory" json:"mandatory"`
	MaxScore  float64 `db:"max_score" json:"max_score"`
	Weight    float64 `db:"weight" json:"weight"`
}

// SubmissionStatus represents the lifecycle of an activity submission.
type SubmissionStatus string

const (
	SubmissionPending   SubmissionStatus = "PENDING"
	SubmissionSubmitted SubmissionStatus = "SUBMITTED"
	SubmissionGraded    SubmissionStatus = "GRADED"
	SubmissionReturned  SubmissionStatus = "RETURNED"
)

// ActivitySubmission is one student's work for an activity. Score is set
// only when the submission is graded.
type ActivitySubmission struct {
	ID          string           `db:"id" json:"id"`
	ActivityID  string           `db:"activity_id" json:"activity_id"`
	StudentID   string           `db:"student_id" json:"student_id"`
	Status      SubmissionStatus `db:"status" json:"status"`
	Score       *float64         `db:"score" json:"score,omitempty"`
	Attempts    int              `db:"attempts" json:"attempts"`
	SubmittedAt *time.Time       `db:"submitted_at" json:"submitted_at,omitempty"`
	GradedAt    *time.Time       `db:"graded_at" json:"graded_at,omitempty"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updated_at"`
}

// GradedSubmission joins a graded submission with its activity's scoring
// attributes for aggregation.
type GradedSubmission struct {
	ActivityID string  `db:"activity_id" json:"activity_id"`
	Score      float64 `db:"score" json:"score"`
	MaxScore   float64 `db:"max_score" json:"max_score"`
	Weight     float64 `db:"weight" json:"weight"`
	Mandatory  bool    `db:"mandatory" json:"mandatory"`
}
