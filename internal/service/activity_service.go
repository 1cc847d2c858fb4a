package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-go-api/internal/models"
	appErrors "github.com/noah-isme/lms-go-api/pkg/errors"
)

type activityRepo interface {
	FindByID(ctx context.Context, id string) (*models.Activity, error)
	FindSubmission(ctx context.Context, activityID, studentID string) (*models.ActivitySubmission, error)
	FindSubmissionByID(ctx context.Context, id string) (*models.ActivitySubmission, error)
	UpsertSubmission(ctx context.Context, submission *models.ActivitySubmission) error
}

// SubmitActivityRequest hands in work for an activity.
type SubmitActivityRequest struct {
	EnrollmentID string `json:"enrollment_id" validate:"required"`
	ActivityID   string `json:"activity_id" validate:"required"`
}

// GradeActivityRequest records a score for a submitted activity.
type GradeActivityRequest struct {
	EnrollmentID string  `json:"enrollment_id" validate:"required"`
	SubmissionID string  `json:"submission_id" validate:"required"`
	Score        float64 `json:"score" validate:"min=0"`
}

// ActivityService manages activity submission lifecycle and grading.
type ActivityService struct {
	activities  activityRepo
	enrollments progressEnrollmentReader
	refresher   enrollmentRefresher
	validate    *validator.Validate
	logger      *zap.Logger
}

// NewActivityService constructs an ActivityService.
func NewActivityService(activities activityRepo, enrollments progressEnrollmentReader, refresher enrollmentRefresher, validate *validator.Validate, logger *zap.Logger) *ActivityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityService{
		activities:  activities,
		enrollments: enrollments,
		refresher:   refresher,
		validate:    validate,
		logger:      logger,
	}
}

// Submit records a hand-in for the (activity, student) pair, bumping the
// attempts counter on resubmission. A graded submission goes back to
// SUBMITTED and loses its score, so the grader sees it again.
func (s *ActivityService) Submit(ctx context.Context, req SubmitActivityRequest) (*models.ActivitySubmission, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission request")
	}
	enrollment, err := s.enrollments.FindByID(ctx, req.EnrollmentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if _, err := s.activities.FindByID(ctx, req.ActivityID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "activity not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity")
	}

	now := time.Now().UTC()
	submission, err := s.activities.FindSubmission(ctx, req.ActivityID, enrollment.StudentID)
	if err != nil && err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	if submission == nil || err == sql.ErrNoRows {
		submission = &models.ActivitySubmission{
			ActivityID: req.ActivityID,
			StudentID:  enrollment.StudentID,
		}
	}
	submission.Status = models.SubmissionSubmitted
	submission.Score = nil
	submission.GradedAt = nil
	submission.Attempts++
	submission.SubmittedAt = &now
	if err := s.activities.UpsertSubmission(ctx, submission); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save submission")
	}
	s.logger.Info("activity submitted",
		zap.String("activity_id", req.ActivityID),
		zap.String("student_id", enrollment.StudentID),
		zap.Int("attempts", submission.Attempts))
	return submission, nil
}

// Grade scores a submitted activity. The score must not exceed the
// activity's max score. Grading refreshes enrollment progress, which may
// trigger certificate generation.
func (s *ActivityService) Grade(ctx context.Context, req GradeActivityRequest) (*models.ActivitySubmission, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grading request")
	}
	submission, err := s.submission(ctx, req.SubmissionID)
	if err != nil {
		return nil, err
	}
	if submission.Status != models.SubmissionSubmitted && submission.Status != models.SubmissionGraded {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "submission is not awaiting a grade")
	}
	activity, err := s.activities.FindByID(ctx, submission.ActivityID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "activity not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity")
	}
	if req.Score > activity.MaxScore {
		return nil, appErrors.Clone(appErrors.ErrValidation, "score exceeds the activity maximum")
	}

	now := time.Now().UTC()
	score := req.Score
	submission.Status = models.SubmissionGraded
	submission.Score = &score
	submission.GradedAt = &now
	if err := s.activities.UpsertSubmission(ctx, submission); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save grade")
	}
	s.logger.Info("activity graded",
		zap.String("submission_id", submission.ID),
		zap.String("activity_id", submission.ActivityID),
		zap.Float64("score", score))

	if _, err := s.refresher.RefreshProgress(ctx, req.EnrollmentID); err != nil {
		s.logger.Warn("enrollment progress refresh failed",
			zap.String("enrollment_id", req.EnrollmentID), zap.Error(err))
	}
	return submission, nil
}

// Return hands a graded submission back to the student for rework. The
// score is cleared; only graded submissions carry one.
func (s *ActivityService) Return(ctx context.Context, submissionID string) (*models.ActivitySubmission, error) {
	submission, err := s.submission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if submission.Status != models.SubmissionGraded {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "only graded submissions can be returned")
	}
	submission.Status = models.SubmissionReturned
	submission.Score = nil
	submission.GradedAt = nil
	if err := s.activities.UpsertSubmission(ctx, submission); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save submission")
	}
	return submission, nil
}

// GetSubmission returns a submission by its ID.
func (s *ActivityService) GetSubmission(ctx context.Context, submissionID string) (*models.ActivitySubmission, error) {
	return s.submission(ctx, submissionID)
}

func (s *ActivityService) submission(ctx context.Context, id string) (*models.ActivitySubmission, error) {
	submission, err := s.activities.FindSubmissionByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	return submission, nil
}
