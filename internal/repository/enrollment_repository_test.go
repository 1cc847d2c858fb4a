package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-go-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestEnrollmentRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "course_id", "student_id", "status", "progress_percentage", "enrolled_at", "completed_at", "dropped_at"}).
		AddRow("e1", "c1", "s1", models.EnrollmentStatusActive, 42.5, time.Now(), nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, course_id, student_id, status, progress_percentage, enrolled_at, completed_at, dropped_at FROM enrollments WHERE id = $1")).
		WithArgs("e1").
		WillReturnRows(rows)

	enrollment, err := repo.FindByID(context.Background(), "e1")
	require.NoError(t, err)
	require.Equal(t, "e1", enrollment.ID)
	require.Equal(t, 42.5, enrollment.ProgressPercentage)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryExistsActive(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	query := regexp.QuoteMeta("SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2 AND status = $3 LIMIT 1")

	mock.ExpectQuery(query).
		WithArgs("s1", "c1", models.EnrollmentStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	exists, err := repo.ExistsActive(context.Background(), "s1", "c1")
	require.NoError(t, err)
	require.True(t, exists)

	mock.ExpectQuery(query).
		WithArgs("s2", "c1", models.EnrollmentStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))
	exists, err = repo.ExistsActive(context.Background(), "s2", "c1")
	require.NoError(t, err)
	require.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateFillsDefaults(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollments")).
		WithArgs(sqlmock.AnyArg(), "c1", "s1", models.EnrollmentStatusActive, 0.0, sqlmock.AnyArg(), nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	enrollment := &models.Enrollment{CourseID: "c1", StudentID: "s1"}
	err := repo.Create(context.Background(), enrollment)
	require.NoError(t, err)
	require.NotEmpty(t, enrollment.ID)
	require.False(t, enrollment.EnrolledAt.IsZero())
	require.Equal(t, models.EnrollmentStatusActive, enrollment.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateProgress(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	completedAt := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET progress_percentage = $2, status = $3, completed_at = $4 WHERE id = $1")).
		WithArgs("e1", 100.0, models.EnrollmentStatusCompleted, completedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateProgress(context.Background(), "e1", 100, models.EnrollmentStatusCompleted, &completedAt)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	droppedAt := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $2, dropped_at = $3 WHERE id = $1")).
		WithArgs("e1", models.EnrollmentStatusDropped, droppedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), "e1", models.EnrollmentStatusDropped, &droppedAt)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
