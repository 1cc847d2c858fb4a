package models

import "time"

// TrackableType is the closed set of content kinds a progress record can
// point at.
type TrackableType string

const (
	TrackableComponent TrackableType = "COMPONENT"
	TrackableQuiz      TrackableType = "QUIZ"
	TrackableActivity  TrackableType = "ACTIVITY"
)

// Valid reports whether the type is one of the known trackable kinds.
func (t TrackableType) Valid() bool {
	switch t {
	case TrackableComponent, TrackableQuiz, TrackableActivity:
		return true
	}
	return false
}

// ProgressRecord stores per-content completion state for an enrollment.
// Rows are unique per (enrollment, trackable type, trackable id).
type ProgressRecord struct {
	ID            string        `db:"id" json:"id"`
	EnrollmentID  string        `db:"enrollment_id" json:"enrollment_id"`
	TrackableType TrackableType `db:"trackable_type" json:"trackable_type"`
	TrackableID   string        `db:"trackable_id" json:"trackable_id"`
	Completed     bool          `db:"completed" json:"completed"`
	StartedAt     *time.Time    `db:"started_at" json:"started_at,omitempty"`
	CompletedAt   *time.Time    `db:"completed_at" json:"completed_at,omitempty"`
	TimeSpent     int64         `db:"time_spent" json:"time_spent"`
	Score         *float64      `db:"score" json:"score,omitempty"`
	Metadata      []byte        `db:"metadata" json:"metadata,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// ProgressSummary is the computed progress shape for an enrollment.
type ProgressSummary struct {
	Overall             float64  `json:"overall"`
	ModulesCompleted    int      `json:"modules_completed"`
	TotalModules        int      `json:"total_modules"`
	ComponentsCompleted int      `json:"components_completed"`
	TotalComponents     int      `json:"total_components"`
	QuizAverage         *float64 `json:"quiz_average"`
	ActivitiesAverage   *float64 `json:"activities_average"`
}

// BreakpointThresholds is the fixed set of unit progress milestones.
var BreakpointThresholds = []int{25, 50, 75, 100}

// UnitProgressBreakpoint records a discrete unit-level progress milestone.
// Rows are unique per (enrollment, unit, breakpoint percentage).
type UnitProgressBreakpoint struct {
	ID                   string    `db:"id" json:"id"`
	EnrollmentID         string    `db:"enrollment_id" json:"enrollment_id"`
	UnitID               string    `db:"unit_id" json:"unit_id"`
	BreakpointPercentage int       `db:"breakpoint_percentage" json:"breakpoint_percentage"`
	ScrollProgress       float64   `db:"scroll_progress" json:"scroll_progress"`
	ActivitiesProgress   float64   `db:"activities_progress" json:"activities_progress"`
	CombinedProgress     float64   `db:"combined_progress" json:"combined_progress"`
	IntelligentProgress  bool      `db:"intelligent_progress_enabled" json:"intelligent_progress_enabled"`
	Metadata             []byte    `db:"metadata" json:"metadata,omitempty"`
	ReachedAt            time.Time `db:"reached_at" json:"reached_at"`
}
