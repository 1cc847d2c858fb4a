package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-go-api/internal/models"
)

// QuizRepository handles quizzes, their questions and student attempts.
type QuizRepository struct {
	db *sqlx.DB
}

// NewQuizRepository constructs the repository.
func NewQuizRepository(db *sqlx.DB) *QuizRepository {
	return &QuizRepository{db: db}
}

// FindByID returns a quiz by its ID.
func (r *QuizRepository) FindByID(ctx context.Context, id string) (*models.Quiz, error) {
	const query = `SELECT id, module_id, title, mandatory, max_attempts, passing_score, final_quiz FROM quizzes WHERE id = $1`
	var quiz models.Quiz
	if err := r.db.GetContext(ctx, &quiz, query, id); err != nil {
		return nil, err
	}
	return &quiz, nil
}

// Questions returns the quiz's questions in order.
func (r *QuizRepository) Questions(ctx context.Context, quizID string) ([]models.QuizQuestion, error) {
	const query = `SELECT id, quiz_id, prompt, answer, points, position FROM quiz_questions WHERE quiz_id = $1 ORDER BY position ASC`
	var questions []models.QuizQuestion
	if err := r.db.SelectContext(ctx, &questions, query, quizID); err != nil {
		return nil, fmt.Errorf("list quiz questions: %w", err)
	}
	return questions, nil
}

// FindAttempt returns an attempt by its ID.
func (r *QuizRepository) FindAttempt(ctx context.Context, id string) (*models.QuizAttempt, error) {
	const query = `SELECT id, quiz_id, student_id, attempt_number, status, started_at, completed_at, score, percentage, answers, question_scores
        FROM quiz_attempts WHERE id = $1`
	var attempt models.QuizAttempt
	if err := r.db.GetContext(ctx, &attempt, query, id); err != nil {
		return nil, err
	}
	return &attempt, nil
}

// LastAttemptNumber returns the highest attempt number recorded for the
// (quiz, student) pair, zero when none exist.
func (r *QuizRepository) LastAttemptNumber(ctx context.Context, quizID, studentID string) (int, error) {
	const query = `SELECT COALESCE(MAX(attempt_number), 0) FROM quiz_attempts WHERE quiz_id = $1 AND student_id = $2`
	var last int
	if err := r.db.GetContext(ctx, &last, query, quizID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("last attempt number: %w", err)
	}
	return last, nil
}

// CountCompletedAttempts returns how many completed attempts exist for the
// (quiz, student) pair.
func (r *QuizRepository) CountCompletedAttempts(ctx context.Context, quizID, studentID string) (int, error) {
	const query = `SELECT COUNT(*) FROM quiz_attempts WHERE quiz_id = $1 AND student_id = $2 AND status = $3`
	var count int
	if err := r.db.GetContext(ctx, &count, query, quizID, studentID, models.QuizAttemptCompleted); err != nil {
		return 0, fmt.Errorf("count completed attempts: %w", err)
	}
	return count, nil
}

// CreateAttempt persists a new attempt row.
func (r *QuizRepository) CreateAttempt(ctx context.Context, attempt *models.QuizAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	if attempt.StartedAt.IsZero() {
		attempt.StartedAt = time.Now().UTC()
	}
	if attempt.Status == "" {
		attempt.Status = models.QuizAttemptInProgress
	}
	const query = `INSERT INTO quiz_attempts (id, quiz_id, student_id, attempt_number, status, started_at, completed_at, score, percentage, answers, question_scores)
        VALUES (:id, :quiz_id, :student_id, :attempt_number, :status, :started_at, :completed_at, :score, :percentage, :answers, :question_scores)`
	if _, err := r.db.NamedExecContext(ctx, query, attempt); err != nil {
		return fmt.Errorf("create quiz attempt: %w", err)
	}
	return nil
}

// UpdateAttempt persists the scored state of an attempt.
func (r *QuizRepository) UpdateAttempt(ctx context.Context, attempt *models.QuizAttempt) error {
	const query = `UPDATE quiz_attempts SET status = :status, completed_at = :completed_at, score = :score, percentage = :percentage,
        answers = :answers, question_scores = :question_scores WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, attempt); err != nil {
		return fmt.Errorf("update quiz attempt: %w", err)
	}
	return nil
}

// BestCompletedPercentages returns, per quiz, the highest percentage among
// the student's completed attempts. Quizzes without a completed attempt are
// absent from the result.
func (r *QuizRepository) BestCompletedPercentages(ctx context.Context, studentID string, quizIDs []string) (map[string]float64, error) {
	if len(quizIDs) == 0 {
		return map[string]float64{}, nil
	}
	placeholders := make([]string, len(quizIDs))
	args := make([]interface{}, 0, len(quizIDs)+2)
	args = append(args, studentID, models.QuizAttemptCompleted)
	for i, id := range quizIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+3)
		args = append(args, id)
	}
	query := fmt.Sprintf(`SELECT quiz_id, MAX(percentage) AS percentage FROM quiz_attempts
        WHERE student_id = $1 AND status = $2 AND quiz_id IN (%s) GROUP BY quiz_id`, strings.Join(placeholders, ","))
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("best attempt percentages: %w", err)
	}
	defer rows.Close()
	best := make(map[string]float64, len(quizIDs))
	for rows.Next() {
		var quizID string
		var percentage float64
		if err := rows.Scan(&quizID, &percentage); err != nil {
			return nil, fmt.Errorf("scan attempt percentage: %w", err)
		}
		best[quizID] = percentage
	}
	return best, nil
}
