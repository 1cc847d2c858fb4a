package models

import "time"

// Quiz is a module-level assessment. Mandatory quizzes count toward
// completion percentage alongside mandatory components.
type Quiz struct {
	ID           string  `db:"id" json:"id"`
	ModuleID     string  `db:"module_id" json:"module_id"`
	Title        string  `db:"title" json:"title"`
	Mandatory    bool    `db:"mandatory" json:"mandatory"`
	MaxAttempts  int     `db:"max_attempts" json:"max_attempts"`
	PassingScore float64 `db:"passing_score" json:"passing_score"`
	FinalQuiz    bool    `db:"final_quiz" json:"final_quiz"`
}

// IsPassed reports whether the given percentage meets the passing score.
func (q Quiz) IsPassed(percentage float64) bool {
	return percentage >= q.PassingScore
}

// QuizQuestion carries the point value used when scoring submitted answers.
type QuizQuestion struct {
	ID       string  `db:"id" json:"id"`
	QuizID   string  `db:"quiz_id" json:"quiz_id"`
	Prompt   string  `db:"prompt" json:"prompt"`
	Answer   string  `db:"answer" json:"-"`
	Points   float64 `db:"points" json:"points"`
	Position int     `db:"position" json:"position"`
}

// QuizAttemptStatus represents the lifecycle of a quiz attempt.
type QuizAttemptStatus string

const (
	QuizAttemptInProgress QuizAttemptStatus = "IN_PROGRESS"
	QuizAttemptCompleted  QuizAttemptStatus = "COMPLETED"
	QuizAttemptAbandoned  QuizAttemptStatus = "ABANDONED"
)

// QuizAttempt is one student run at a quiz. AttemptNumber is strictly
// increasing per (quiz, student) and the number of completed attempts never
// exceeds the quiz's max attempts.
type QuizAttempt struct {
	ID             string            `db:"id" json:"id"`
	QuizID         string            `db:"quiz_id" json:"quiz_id"`
	StudentID      string            `db:"student_id" json:"student_id"`
	AttemptNumber  int               `db:"attempt_number" json:"attempt_number"`
	Status         QuizAttemptStatus `db:"status" json:"status"`
	StartedAt      time.Time         `db:"started_at" json:"started_at"`
	CompletedAt    *time.Time        `db:"completed_at" json:"completed_at,omitempty"`
	Score          float64           `db:"score" json:"score"`
	Percentage     float64           `db:"percentage" json:"percentage"`
	Answers        []byte            `db:"answers" json:"answers,omitempty"`
	QuestionScores []byte            `db:"question_scores" json:"question_scores,omitempty"`
}
