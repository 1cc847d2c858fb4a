package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-go-api/internal/models"
)

// BreakpointRepository handles unit progress breakpoint rows.
type BreakpointRepository struct {
	db *sqlx.DB
}

// NewBreakpointRepository constructs the repository.
func NewBreakpointRepository(db *sqlx.DB) *BreakpointRepository {
	return &BreakpointRepository{db: db}
}

// RecordedPercentages returns the breakpoint percentages already stored for
// the (enrollment, unit) pair.
func (r *BreakpointRepository) RecordedPercentages(ctx context.Context, enrollmentID, unitID string) (map[int]bool, error) {
	const query = `SELECT breakpoint_percentage FROM unit_progress_breakpoints WHERE enrollment_id = $1 AND unit_id = $2`
	rows, err := r.db.QueryxContext(ctx, query, enrollmentID, unitID)
	if err != nil {
		return nil, fmt.Errorf("list breakpoints: %w", err)
	}
	defer rows.Close()
	recorded := make(map[int]bool, len(models.BreakpointThresholds))
	for rows.Next() {
		var percentage int
		if err := rows.Scan(&percentage); err != nil {
			return nil, fmt.Errorf("scan breakpoint: %w", err)
		}
		recorded[percentage] = true
	}
	return recorded, nil
}

// HasReached reports whether the given breakpoint exists for the pair.
func (r *BreakpointRepository) HasReached(ctx context.Context, enrollmentID, unitID string, percentage int) (bool, error) {
	const query = `SELECT 1 FROM unit_progress_breakpoints WHERE enrollment_id = $1 AND unit_id = $2 AND breakpoint_percentage = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, enrollmentID, unitID, percentage); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check breakpoint: %w", err)
	}
	return true, nil
}

// Create persists a new breakpoint row.
func (r *BreakpointRepository) Create(ctx context.Context, breakpoint *models.UnitProgressBreakpoint) error {
	if breakpoint.ID == "" {
		breakpoint.ID = uuid.NewString()
	}
	if breakpoint.ReachedAt.IsZero() {
		breakpoint.ReachedAt = time.Now().UTC()
	}
	const query = `INSERT INTO unit_progress_breakpoints (id, enrollment_id, unit_id, breakpoint_percentage, scroll_progress,
        activities_progress, combined_progress, intelligent_progress_enabled, metadata, reached_at)
        VALUES (:id, :enrollment_id, :unit_id, :breakpoint_percentage, :scroll_progress,
        :activities_progress, :combined_progress, :intelligent_progress_enabled, :metadata, :reached_at)
        ON CONFLICT (enrollment_id, unit_id, breakpoint_percentage) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, breakpoint); err != nil {
		return fmt.Errorf("create breakpoint: %w", err)
	}
	return nil
}

// ListByUnit returns every breakpoint recorded for the pair in ascending
// percentage order.
func (r *BreakpointRepository) ListByUnit(ctx context.Context, enrollmentID, unitID string) ([]models.UnitProgressBreakpoint, error) {
	const query = `SELECT id, enrollment_id, unit_id, breakpoint_percentage, scroll_progress, activities_progress, combined_progress,
        intelligent_progress_enabled, metadata, reached_at
        FROM unit_progress_breakpoints WHERE enrollment_id = $1 AND unit_id = $2 ORDER BY breakpoint_percentage ASC`
	var breakpoints []models.UnitProgressBreakpoint
	if err := r.db.SelectContext(ctx, &breakpoints, query, enrollmentID, unitID); err != nil {
		return nil, fmt.Errorf("list unit breakpoints: %w", err)
	}
	return breakpoints, nil
}
