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

type enrollmentRepo interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	ExistsActive(ctx context.Context, studentID, courseID string) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	UpdateProgress(ctx context.Context, id string, progress float64, status models.EnrollmentStatus, completedAt *time.Time) error
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, droppedAt *time.Time) error
}

type enrollmentCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type progressSummarizer interface {
	Calculate(ctx context.Context, enrollment *models.Enrollment) (*models.ProgressSummary, error)
	InvalidateSummary(ctx context.Context, enrollmentID string)
}

type certificateIssuer interface {
	AutoGenerate(ctx context.Context, enrollmentID string)
	InvalidateForEnrollment(ctx context.Context, enrollmentID, reason string) error
}

// EnrollRequest registers a student in a course.
type EnrollRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	CourseID  string `json:"course_id" validate:"required"`
}

// EnrollmentService manages the enrollment lifecycle and keeps the cached
// progress percentage in step with the computed one.
type EnrollmentService struct {
	enrollments  enrollmentRepo
	courses      enrollmentCourseReader
	progress     progressSummarizer
	certificates certificateIssuer
	validate     *validator.Validate
	logger       *zap.Logger
}

// NewEnrollmentService constructs an EnrollmentService.
func NewEnrollmentService(enrollments enrollmentRepo, courses enrollmentCourseReader, progress progressSummarizer, certificates certificateIssuer, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		enrollments:  enrollments,
		courses:      courses,
		progress:     progress,
		certificates: certificates,
		validate:     validate,
		logger:       logger,
	}
}

// Enroll registers the student in the course. A student can hold at most one
// active enrollment per course; re-enrolling after a drop creates a fresh
// row.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest) (*models.Enrollment, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment request")
	}
	if _, err := s.courses.FindByID(ctx, req.CourseID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	exists, err := s.enrollments.ExistsActive(ctx, req.StudentID, req.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing enrollment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student is already enrolled in this course")
	}
	enrollment := &models.Enrollment{
		CourseID:  req.CourseID,
		StudentID: req.StudentID,
		Status:    models.EnrollmentStatusActive,
	}
	if err := s.enrollments.Create(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}
	s.logger.Info("student enrolled",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("student_id", req.StudentID),
		zap.String("course_id", req.CourseID))
	return enrollment, nil
}

// Get returns an enrollment by ID.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.enrollments.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

// GetDetail returns an enrollment enriched with student and course info.
func (s *EnrollmentService) GetDetail(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.enrollments.FindDetailByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return detail, nil
}

// List returns enrollments matching the filter along with the total count.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	enrollments, total, err := s.enrollments.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, total, nil
}

// RefreshProgress recomputes overall progress, stores it on the enrollment
// and flips the status to completed at 100. Certificate generation runs
// opportunistically afterwards; its failures never surface here.
func (s *EnrollmentService) RefreshProgress(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if enrollment.Status == models.EnrollmentStatusDropped {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "enrollment has been dropped")
	}
	summary, err := s.progress.Calculate(ctx, enrollment)
	if err != nil {
		return nil, err
	}

	status := enrollment.Status
	completedAt := enrollment.CompletedAt
	if summary.Overall >= 100 && status != models.EnrollmentStatusCompleted {
		now := time.Now().UTC()
		status = models.EnrollmentStatusCompleted
		completedAt = &now
	}
	if err := s.enrollments.UpdateProgress(ctx, id, summary.Overall, status, completedAt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment progress")
	}
	enrollment.ProgressPercentage = summary.Overall
	enrollment.Status = status
	enrollment.CompletedAt = completedAt
	s.progress.InvalidateSummary(ctx, id)
	s.logger.Info("enrollment progress refreshed",
		zap.String("enrollment_id", id),
		zap.Float64("progress", summary.Overall),
		zap.String("status", string(status)))

	s.certificates.AutoGenerate(ctx, id)
	return enrollment, nil
}

// Drop soft-deletes the enrollment and invalidates its certificates. The
// row itself is kept.
func (s *EnrollmentService) Drop(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if enrollment.Status == models.EnrollmentStatusDropped {
		return enrollment, nil
	}
	now := time.Now().UTC()
	if err := s.enrollments.UpdateStatus(ctx, id, models.EnrollmentStatusDropped, &now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to drop enrollment")
	}
	enrollment.Status = models.EnrollmentStatusDropped
	enrollment.DroppedAt = &now
	s.progress.InvalidateSummary(ctx, id)
	if err := s.certificates.InvalidateForEnrollment(ctx, id, "enrollment dropped"); err != nil {
		s.logger.Warn("certificate invalidation failed",
			zap.String("enrollment_id", id), zap.Error(err))
	}
	s.logger.Info("enrollment dropped", zap.String("enrollment_id", id))
	return enrollment, nil
}
