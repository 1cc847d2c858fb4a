package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-go-api/internal/models"
	appErrors "github.com/noah-isme/lms-go-api/pkg/errors"
)

type progressRepo interface {
	FindByID(ctx context.Context, id string) (*models.ProgressRecord, error)
	FindByKey(ctx context.Context, enrollmentID string, trackableType models.TrackableType, trackableID string) (*models.ProgressRecord, error)
	Upsert(ctx context.Context, record *models.ProgressRecord) error
	Update(ctx context.Context, record *models.ProgressRecord) error
	CompletedIDs(ctx context.Context, enrollmentID string, trackableType models.TrackableType) (map[string]bool, error)
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.ProgressRecord, error)
}

type structureReader interface {
	Structure(ctx context.Context, courseID string) (*models.CourseStructure, error)
}

type bestAttemptReader interface {
	BestCompletedPercentages(ctx context.Context, studentID string, quizIDs []string) (map[string]float64, error)
}

type gradedSubmissionReader interface {
	GradedSubmissions(ctx context.Context, studentID string, activityIDs []string) ([]models.GradedSubmission, error)
}

type progressEnrollmentReader interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
}

// TrackProgressRequest identifies the content a progress record points at.
type TrackProgressRequest struct {
	EnrollmentID  string               `json:"enrollment_id" validate:"required"`
	TrackableType models.TrackableType `json:"trackable_type" validate:"required"`
	TrackableID   string               `json:"trackable_id" validate:"required"`
	Metadata      json.RawMessage      `json:"metadata,omitempty"`
}

// ProgressService records per-content completion and computes the overall
// progress summary for an enrollment.
type ProgressService struct {
	records     progressRepo
	courses     structureReader
	attempts    bestAttemptReader
	submissions gradedSubmissionReader
	enrollments progressEnrollmentReader
	cache       *CacheService
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewProgressService constructs a ProgressService.
func NewProgressService(records progressRepo, courses structureReader, attempts bestAttemptReader, submissions gradedSubmissionReader, enrollments progressEnrollmentReader, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ProgressService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressService{
		records:     records,
		courses:     courses,
		attempts:    attempts,
		submissions: submissions,
		enrollments: enrollments,
		cache:       cache,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
	}
}

// Track upserts the progress record keyed by (enrollment, type, reference),
// creating it with linkage metadata on first interaction.
func (s *ProgressService) Track(ctx context.Context, req TrackProgressRequest) (*models.ProgressRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid progress payload")
	}
	if !req.TrackableType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown trackable type")
	}
	if _, err := s.enrollments.FindByID(ctx, req.EnrollmentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	record, err := s.records.FindByKey(ctx, req.EnrollmentID, req.TrackableType, req.TrackableID)
	if err == nil {
		return record, nil
	}
	if err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load progress record")
	}
	record = &models.ProgressRecord{
		EnrollmentID:  req.EnrollmentID,
		TrackableType: req.TrackableType,
		TrackableID:   req.TrackableID,
		Metadata:      req.Metadata,
	}
	if err := s.records.Upsert(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create progress record")
	}
	return record, nil
}

// MarkStarted stamps started_at once; repeated calls are no-ops.
func (s *ProgressService) MarkStarted(ctx context.Context, recordID string) (*models.ProgressRecord, error) {
	record, err := s.records.FindByID(ctx, recordID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "progress record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load progress record")
	}
	if record.StartedAt != nil {
		return record, nil
	}
	now := time.Now().UTC()
	record.StartedAt = &now
	if err := s.records.Update(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark progress started")
	}
	return record, nil
}

// MarkCompleted completes the record, computing time spent from started_at
// (zero when the record was never started). Re-completion is idempotent in
// effect.
func (s *ProgressService) MarkCompleted(ctx context.Context, recordID string, score *float64) (*models.ProgressRecord, error) {
	record, err := s.records.FindByID(ctx, recordID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "progress record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load progress record")
	}
	now := time.Now().UTC()
	if record.StartedAt != nil {
		record.TimeSpent = int64(now.Sub(*record.StartedAt) / time.Second)
	}
	record.Completed = true
	record.CompletedAt = &now
	if score != nil {
		record.Score = score
	}
	if err := s.records.Update(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark progress completed")
	}
	s.InvalidateSummary(ctx, record.EnrollmentID)
	return record, nil
}

// Complete upserts and completes the record in one step; used when a quiz
// or activity finishes and only the reference is known.
func (s *ProgressService) Complete(ctx context.Context, req TrackProgressRequest, score *float64) (*models.ProgressRecord, error) {
	record, err := s.Track(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.MarkCompleted(ctx, record.ID, score)
}

// List returns all progress records for an enrollment.
func (s *ProgressService) List(ctx context.Context, enrollmentID string) ([]models.ProgressRecord, error) {
	records, err := s.records.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list progress records")
	}
	return records, nil
}

// Summary returns the cached progress summary when available, computing and
// caching it otherwise.
func (s *ProgressService) Summary(ctx context.Context, enrollment *models.Enrollment) (*models.ProgressSummary, error) {
	key := summaryCacheKey(enrollment.ID)
	if s.cache.Enabled() {
		var cached models.ProgressSummary
		hit, err := s.cache.Get(ctx, key, &cached)
		if err == nil && hit {
			return &cached, nil
		}
	}
	summary, err := s.Calculate(ctx, enrollment)
	if err != nil {
		return nil, err
	}
	if s.cache.Enabled() {
		if err := s.cache.Set(ctx, key, summary, 0); err != nil {
			s.logger.Warn("progress summary cache write failed", zap.String("enrollment_id", enrollment.ID), zap.Error(err))
		}
	}
	return summary, nil
}

// Calculate computes the progress summary for an enrollment. Mandatory
// components and mandatory quizzes are the completion units; a module is
// complete only when every one of its mandatory components is complete.
// All divisions guard against zero denominators and yield 0.
func (s *ProgressService) Calculate(ctx context.Context, enrollment *models.Enrollment) (*models.ProgressSummary, error) {
	start := time.Now()
	structure, err := s.courses.Structure(ctx, enrollment.CourseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course structure")
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("course_structure", time.Since(start))
	}
	completedComponents, err := s.records.CompletedIDs(ctx, enrollment.ID, models.TrackableComponent)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load completed components")
	}

	var quizIDs []string
	var activityIDs []string
	for _, module := range structure.Modules {
		for _, quiz := range structure.Quizzes[module.ID] {
			quizIDs = append(quizIDs, quiz.ID)
		}
		for _, activity := range structure.Activities[module.ID] {
			activityIDs = append(activityIDs, activity.ID)
		}
	}
	start = time.Now()
	bestAttempts, err := s.attempts.BestCompletedPercentages(ctx, enrollment.StudentID, quizIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quiz attempts")
	}
	graded, err := s.submissions.GradedSubmissions(ctx, enrollment.StudentID, activityIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load graded submissions")
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("progress_aggregates", time.Since(start))
	}

	summary := &models.ProgressSummary{TotalModules: len(structure.Modules)}
	totalUnits := 0
	completedUnits := 0
	for _, module := range structure.Modules {
		moduleComplete := true
		for _, component := range structure.Components[module.ID] {
			if !component.Mandatory {
				continue
			}
			summary.TotalComponents++
			totalUnits++
			if completedComponents[component.ID] {
				summary.ComponentsCompleted++
				completedUnits++
			} else {
				moduleComplete = false
			}
		}
		for _, quiz := range structure.Quizzes[module.ID] {
			if !quiz.Mandatory {
				continue
			}
			totalUnits++
			if _, ok := bestAttempts[quiz.ID]; ok {
				completedUnits++
			}
		}
		if moduleComplete {
			summary.ModulesCompleted++
		}
	}
	if totalUnits > 0 {
		summary.Overall = round2(float64(completedUnits) / float64(totalUnits) * 100)
	}

	if len(bestAttempts) > 0 {
		sum := 0.0
		for _, percentage := range bestAttempts {
			sum += percentage
		}
		avg := round2(sum / float64(len(bestAttempts)))
		summary.QuizAverage = &avg
	}

	gradedCount := 0
	gradedSum := 0.0
	for _, submission := range graded {
		if submission.MaxScore <= 0 {
			continue
		}
		gradedSum += submission.Score / submission.MaxScore * 100
		gradedCount++
	}
	if gradedCount > 0 {
		avg := round2(gradedSum / float64(gradedCount))
		summary.ActivitiesAverage = &avg
	}

	return summary, nil
}

// InvalidateSummary drops the cached summary for an enrollment.
func (s *ProgressService) InvalidateSummary(ctx context.Context, enrollmentID string) {
	if !s.cache.Enabled() {
		return
	}
	if err := s.cache.Delete(ctx, summaryCacheKey(enrollmentID)); err != nil {
		s.logger.Warn("progress summary cache invalidation failed", zap.String("enrollment_id", enrollmentID), zap.Error(err))
	}
}

func summaryCacheKey(enrollmentID string) string {
	return fmt.Sprintf("progress:summary:%s", enrollmentID)
}
