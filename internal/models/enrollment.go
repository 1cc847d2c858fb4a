package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusCompleted EnrollmentStatus = "COMPLETED"
	EnrollmentStatusDropped   EnrollmentStatus = "DROPPED"
)

// Enrollment links a student to a course. ProgressPercentage caches the
// last computed overall progress; rows are never hard-deleted, dropping an
// enrollment is a status change.
type Enrollment struct {
	ID                 string           `db:"id" json:"id"`
	CourseID           string           `db:"course_id" json:"course_id"`
	StudentID          string           `db:"student_id" json:"student_id"`
	Status             EnrollmentStatus `db:"status" json:"status"`
	ProgressPercentage float64          `db:"progress_percentage" json:"progress_percentage"`
	EnrolledAt         time.Time        `db:"enrolled_at" json:"enrolled_at"`
	CompletedAt        *time.Time       `db:"completed_at" json:"completed_at,omitempty"`
	DroppedAt          *time.Time       `db:"dropped_at" json:"dropped_at,omitempty"`
}

// EnrollmentDetail enriches Enrollment with student and course info.
type EnrollmentDetail struct {
	Enrollment
	StudentName   string `db:"student_name" json:"student_name"`
	StudentNumber int    `db:"student_number" json:"student_number"`
	CourseTitle   string `db:"course_title" json:"course_title"`
	CourseCode    int    `db:"course_code" json:"course_code"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	CourseID  string
	StudentID string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
