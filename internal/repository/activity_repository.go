package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-go-api/internal/models"
)

// ActivityRepository handles activities and student submissions.
type ActivityRepository struct {
	db *sqlx.DB
}

// NewActivityRepository constructs the repository.
func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// FindByID returns an activity by its ID.
func (r *ActivityRepository) FindByID(ctx context.Context, id string) (*models.Activity, error) {
	const query = `SELECT id, module_id, title, mandatory, max_score, weight FROM activities WHERE id = $1`
	var activity models.Activity
	if err := r.db.GetContext(ctx, &activity, query, id); err != nil {
		return nil, err
	}
	return &activity, nil
}

// FindSubmission returns the submission for the unique (activity, student)
// pair.
func (r *ActivityRepository) FindSubmission(ctx context.Context, activityID, studentID string) (*models.ActivitySubmission, error) {
	const query = `SELECT id, activity_id, student_id, status, score, attempts, submitted_at, graded_at, created_at, updated_at
        FROM activity_submissions WHERE activity_id = $1 AND student_id = $2`
	var submission models.ActivitySubmission
	if err := r.db.GetContext(ctx, &submission, query, activityID, studentID); err != nil {
		return nil, err
	}
	return &submission, nil
}

// FindSubmissionByID returns a submission by its ID.
func (r *ActivityRepository) FindSubmissionByID(ctx context.Context, id string) (*models.ActivitySubmission, error) {
	const query = `SELECT id, activity_id, student_id, status, score, attempts, submitted_at, graded_at, created_at, updated_at
        FROM activity_submissions WHERE id = $1`
	var submission models.ActivitySubmission
	if err := r.db.GetContext(ctx, &submission, query, id); err != nil {
		return nil, err
	}
	return &submission, nil
}

// UpsertSubmission inserts or refreshes the submission keyed by its unique
// pair.
func (r *ActivityRepository) UpsertSubmission(ctx context.Context, submission *models.ActivitySubmission) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if submission.CreatedAt.IsZero() {
		submission.CreatedAt = now
	}
	submission.UpdatedAt = now
	const query = `INSERT INTO activity_submissions (id, activity_id, student_id, status, score, attempts, submitted_at, graded_at, created_at, updated_at)
        VALUES (:id, :activity_id, :student_id, :status, :score, :attempts, :submitted_at, :graded_at, :created_at, :updated_at)
        ON CONFLICT (activity_id, student_id)
        DO UPDATE SET status = EXCLUDED.status, score = EXCLUDED.score, attempts = EXCLUDED.attempts,
            submitted_at = EXCLUDED.submitted_at, graded_at = EXCLUDED.graded_at, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, submission); err != nil {
		return fmt.Errorf("upsert activity submission: %w", err)
	}
	return nil
}

// GradedSubmissions returns graded submissions joined with activity scoring
// attributes for the student across the given activities.
func (r *ActivityRepository) GradedSubmissions(ctx context.Context, studentID string, activityIDs []string) ([]models.GradedSubmission, error) {
	if len(activityIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(activityIDs))
	args := make([]interface{}, 0, len(activityIDs)+2)
	args = append(args, studentID, models.SubmissionGraded)
	for i, id := range activityIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+3)
		args = append(args, id)
	}
	query := fmt.Sprintf(`SELECT s.activity_id, s.score, a.max_score, a.weight, a.mandatory
        FROM activity_submissions s
        JOIN activities a ON a.id = s.activity_id
        WHERE s.student_id = $1 AND s.status = $2 AND s.score IS NOT NULL AND s.activity_id IN (%s)`, strings.Join(placeholders, ","))
	var graded []models.GradedSubmission
	if err := r.db.SelectContext(ctx, &graded, query, args...); err != nil {
		return nil, fmt.Errorf("list graded submissions: %w", err)
	}
	return graded, nil
}
