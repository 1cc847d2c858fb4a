package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-go-api/internal/models"
)

// ProgressRepository handles persistence of per-content progress records.
type ProgressRepository struct {
	db *sqlx.DB
}

// NewProgressRepository constructs the repository.
func NewProgressRepository(db *sqlx.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// FindByID returns a progress record by its ID.
func (r *ProgressRepository) FindByID(ctx context.Context, id string) (*models.ProgressRecord, error) {
	const query = `SELECT id, enrollment_id, trackable_type, trackable_id, completed, started_at, completed_at, time_spent, score, metadata, created_at, updated_at
        FROM progress_records WHERE id = $1`
	var record models.ProgressRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	return &record, nil
}

// FindByKey returns the record for the unique (enrollment, type, reference)
// triple.
func (r *ProgressRepository) FindByKey(ctx context.Context, enrollmentID string, trackableType models.TrackableType, trackableID string) (*models.ProgressRecord, error) {
	const query = `SELECT id, enrollment_id, trackable_type, trackable_id, completed, started_at, completed_at, time_spent, score, metadata, created_at, updated_at
        FROM progress_records WHERE enrollment_id = $1 AND trackable_type = $2 AND trackable_id = $3`
	var record models.ProgressRecord
	if err := r.db.GetContext(ctx, &record, query, enrollmentID, trackableType, trackableID); err != nil {
		return nil, err
	}
	return &record, nil
}

// Upsert inserts or refreshes the record keyed by its unique triple.
func (r *ProgressRepository) Upsert(ctx context.Context, record *models.ProgressRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	const query = `INSERT INTO progress_records (id, enrollment_id, trackable_type, trackable_id, completed, started_at, completed_at, time_spent, score, metadata, created_at, updated_at)
        VALUES (:id, :enrollment_id, :trackable_type, :trackable_id, :completed, :started_at, :completed_at, :time_spent, :score, :metadata, :created_at, :updated_at)
        ON CONFLICT (enrollment_id, trackable_type, trackable_id)
        DO UPDATE SET completed = EXCLUDED.completed, started_at = EXCLUDED.started_at, completed_at = EXCLUDED.completed_at,
            time_spent = EXCLUDED.time_spent, score = EXCLUDED.score, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("upsert progress record: %w", err)
	}
	return nil
}

// Update persists mutable fields of an existing record.
func (r *ProgressRepository) Update(ctx context.Context, record *models.ProgressRecord) error {
	record.UpdatedAt = time.Now().UTC()
	const query = `UPDATE progress_records SET completed = :completed, started_at = :started_at, completed_at = :completed_at,
        time_spent = :time_spent, score = :score, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("update progress record: %w", err)
	}
	return nil
}

// CompletedIDs returns the set of trackable IDs of the given type completed
// by the enrollment.
func (r *ProgressRepository) CompletedIDs(ctx context.Context, enrollmentID string, trackableType models.TrackableType) (map[string]bool, error) {
	const query = `SELECT trackable_id FROM progress_records WHERE enrollment_id = $1 AND trackable_type = $2 AND completed = TRUE`
	rows, err := r.db.QueryxContext(ctx, query, enrollmentID, trackableType)
	if err != nil {
		return nil, fmt.Errorf("list completed progress: %w", err)
	}
	defer rows.Close()
	completed := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan trackable id: %w", err)
		}
		completed[id] = true
	}
	return completed, nil
}

// ListByEnrollment returns all progress records for an enrollment.
func (r *ProgressRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.ProgressRecord, error) {
	const query = `SELECT id, enrollment_id, trackable_type, trackable_id, completed, started_at, completed_at, time_spent, score, metadata, created_at, updated_at
        FROM progress_records WHERE enrollment_id = $1 ORDER BY updated_at DESC`
	var records []models.ProgressRecord
	if err := r.db.SelectContext(ctx, &records, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list progress records: %w", err)
	}
	return records, nil
}
