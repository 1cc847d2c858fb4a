package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-go-api/internal/models"
	appErrors "github.com/noah-isme/lms-go-api/pkg/errors"
)

type mockActivityRepo struct {
	activity    *models.Activity
	submissions map[string]models.ActivitySubmission
}

func (m *mockActivityRepo) FindByID(ctx context.Context, id string) (*models.Activity, error) {
	if m.activity == nil || m.activity.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.activity, nil
}

func (m *mockActivityRepo) FindSubmission(ctx context.Context, activityID, studentID string) (*models.ActivitySubmission, error) {
	for _, s := range m.submissions {
		if s.ActivityID == activityID && s.StudentID == studentID {
			found := s
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockActivityRepo) FindSubmissionByID(ctx context.Context, id string) (*models.ActivitySubmission, error) {
	if s, ok := m.submissions[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockActivityRepo) UpsertSubmission(ctx context.Context, submission *models.ActivitySubmission) error {
	if m.submissions == nil {
		m.submissions = make(map[string]models.ActivitySubmission)
	}
	if submission.ID == "" {
		submission.ID = "sub-1"
	}
	m.submissions[submission.ID] = *submission
	return nil
}

func newActivityService(repo *mockActivityRepo, refresher *mockRefresher) *ActivityService {
	enrollments := &mockEnrollmentReader{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", CourseID: "c1", StudentID: "s1", Status: models.EnrollmentStatusActive},
	}}
	return NewActivityService(repo, enrollments, refresher, validator.New(), zap.NewNop())
}

func TestActivitySubmitCountsAttempts(t *testing.T) {
	repo := &mockActivityRepo{activity: &models.Activity{ID: "a1", ModuleID: "m1", MaxScore: 100}}
	svc := newActivityService(repo, &mockRefresher{})

	first, err := svc.Submit(context.Background(), SubmitActivityRequest{EnrollmentID: "e1", ActivityID: "a1"})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Attempts)
	assert.Equal(t, models.SubmissionSubmitted, first.Status)
	require.NotNil(t, first.SubmittedAt)

	second, err := svc.Submit(context.Background(), SubmitActivityRequest{EnrollmentID: "e1", ActivityID: "a1"})
	require.NoError(t, err)
	assert.Equal(t, 2, second.Attempts)
}

func TestActivityResubmissionClearsGrade(t *testing.T) {
	score := 85.0
	repo := &mockActivityRepo{
		activity: &models.Activity{ID: "a1", ModuleID: "m1", MaxScore: 100},
		submissions: map[string]models.ActivitySubmission{
			"sub-1": {ID: "sub-1", ActivityID: "a1", StudentID: "s1", Status: models.SubmissionGraded, Score: &score, Attempts: 1},
		},
	}
	svc := newActivityService(repo, &mockRefresher{})

	submission, err := svc.Submit(context.Background(), SubmitActivityRequest{EnrollmentID: "e1", ActivityID: "a1"})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionSubmitted, submission.Status)
	assert.Nil(t, submission.Score)
	assert.Nil(t, submission.GradedAt)
	assert.Equal(t, 2, submission.Attempts)
}

func TestActivityGradeSetsScoreAndRefreshes(t *testing.T) {
	repo := &mockActivityRepo{
		activity: &models.Activity{ID: "a1", ModuleID: "m1", MaxScore: 100},
		submissions: map[string]models.ActivitySubmission{
			"sub-1": {ID: "sub-1", ActivityID: "a1", StudentID: "s1", Status: models.SubmissionSubmitted, Attempts: 1},
		},
	}
	refresher := &mockRefresher{}
	svc := newActivityService(repo, refresher)

	submission, err := svc.Grade(context.Background(), GradeActivityRequest{EnrollmentID: "e1", SubmissionID: "sub-1", Score: 92})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionGraded, submission.Status)
	require.NotNil(t, submission.Score)
	assert.Equal(t, 92.0, *submission.Score)
	require.NotNil(t, submission.GradedAt)
	assert.Equal(t, []string{"e1"}, refresher.refreshed)
}

func TestActivityGradeRejectsScoreAboveMax(t *testing.T) {
	repo := &mockActivityRepo{
		activity: &models.Activity{ID: "a1", ModuleID: "m1", MaxScore: 50},
		submissions: map[string]models.ActivitySubmission{
			"sub-1": {ID: "sub-1", ActivityID: "a1", StudentID: "s1", Status: models.SubmissionSubmitted},
		},
	}
	svc := newActivityService(repo, &mockRefresher{})

	_, err := svc.Grade(context.Background(), GradeActivityRequest{EnrollmentID: "e1", SubmissionID: "sub-1", Score: 51})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestActivityReturnClearsScore(t *testing.T) {
	score := 40.0
	repo := &mockActivityRepo{
		activity: &models.Activity{ID: "a1", ModuleID: "m1", MaxScore: 100},
		submissions: map[string]models.ActivitySubmission{
			"sub-1": {ID: "sub-1", ActivityID: "a1", StudentID: "s1", Status: models.SubmissionGraded, Score: &score},
		},
	}
	svc := newActivityService(repo, &mockRefresher{})

	submission, err := svc.Return(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionReturned, submission.Status)
	assert.Nil(t, submission.Score)
	assert.Nil(t, submission.GradedAt)
}

func TestActivityReturnRequiresGradedStatus(t *testing.T) {
	repo := &mockActivityRepo{
		activity: &models.Activity{ID: "a1", ModuleID: "m1", MaxScore: 100},
		submissions: map[string]models.ActivitySubmission{
			"sub-1": {ID: "sub-1", ActivityID: "a1", StudentID: "s1", Status: models.SubmissionSubmitted},
		},
	}
	svc := newActivityService(repo, &mockRefresher{})

	_, err := svc.Return(context.Background(), "sub-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}
