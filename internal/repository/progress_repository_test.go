package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-go-api/internal/models"
)

func TestProgressRepositoryUpsertSetsTimestamps(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewProgressRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO progress_records")).
		WithArgs(sqlmock.AnyArg(), "e1", models.TrackableComponent, "comp-1", true,
			sqlmock.AnyArg(), sqlmock.AnyArg(), int64(120), nil, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	now := time.Now().UTC()
	record := &models.ProgressRecord{
		EnrollmentID:  "e1",
		TrackableType: models.TrackableComponent,
		TrackableID:   "comp-1",
		Completed:     true,
		StartedAt:     &now,
		CompletedAt:   &now,
		TimeSpent:     120,
	}
	err := repo.Upsert(context.Background(), record)
	require.NoError(t, err)
	require.NotEmpty(t, record.ID)
	require.False(t, record.CreatedAt.IsZero())
	require.False(t, record.UpdatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProgressRepositoryCompletedIDs(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewProgressRepository(db)

	rows := sqlmock.NewRows([]string{"trackable_id"}).AddRow("comp-1").AddRow("comp-2")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT trackable_id FROM progress_records WHERE enrollment_id = $1 AND trackable_type = $2 AND completed = TRUE")).
		WithArgs("e1", models.TrackableComponent).
		WillReturnRows(rows)

	completed, err := repo.CompletedIDs(context.Background(), "e1", models.TrackableComponent)
	require.NoError(t, err)
	require.Len(t, completed, 2)
	require.True(t, completed["comp-1"])
	require.NoError(t, mock.ExpectationsWereMet())
}
