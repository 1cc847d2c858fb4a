package models

import "time"

// Course is the top-level learning container students enroll into.
type Course struct {
	ID                  string    `db:"id" json:"id"`
	Code                int       `db:"code" json:"code"`
	Title               string    `db:"title" json:"title"`
	Description         *string   `db:"description" json:"description,omitempty"`
	IntelligentProgress bool      `db:"intelligent_progress_enabled" json:"intelligent_progress_enabled"`
	Published           bool      `db:"published" json:"published"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}

// CourseModule is an ordered unit of content within a course.
type CourseModule struct {
	ID       string `db:"id" json:"id"`
	CourseID string `db:"course_id" json:"course_id"`
	Title    string `db:"title" json:"title"`
	Position int    `db:"position" json:"position"`
}

// ModuleComponent is a single piece of content inside a module. Only
// mandatory components count toward completion percentage.
type ModuleComponent struct {
	ID        string `db:"id" json:"id"`
	ModuleID  string `db:"module_id" json:"module_id"`
	Title     string `db:"title" json:"title"`
	Position  int    `db:"position" json:"position"`
	Mandatory bool   `db:"mandatory" json:"mandatory"`
}

// Student identifies a learner. Number is the human-facing registration
// number embedded into certificate numbers.
type Student struct {
	ID       string `db:"id" json:"id"`
	Number   int    `db:"number" json:"number"`
	FullName string `db:"full_name" json:"full_name"`
	Email    string `db:"email" json:"email"`
}

// CourseStructure bundles a course with its modules, components, quizzes
// and activities for a single progress computation pass.
type CourseStructure struct {
	Course     Course
	Modules    []CourseModule
	Components map[string][]ModuleComponent
	Quizzes    map[string][]Quiz
	Activities map[string][]Activity
}
