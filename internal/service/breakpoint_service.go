package service

import (
	"context"
	"database/sql"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-go-api/internal/models"
	appErrors "github.com/noah-isme/lms-go-api/pkg/errors"
)

type breakpointRepo interface {
	RecordedPercentages(ctx context.Context, enrollmentID, unitID string) (map[int]bool, error)
	HasReached(ctx context.Context, enrollmentID, unitID string, percentage int) (bool, error)
	Create(ctx context.Context, breakpoint *models.UnitProgressBreakpoint) error
	ListByUnit(ctx context.Context, enrollmentID, unitID string) ([]models.UnitProgressBreakpoint, error)
}

type breakpointCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	FindModule(ctx context.Context, courseID, moduleID string) (*models.CourseModule, error)
}

// RecordBreakpointRequest carries one unit progress update.
type RecordBreakpointRequest struct {
	EnrollmentID       string          `json:"enrollment_id" validate:"required"`
	UnitID             string          `json:"unit_id" validate:"required"`
	ScrollProgress     float64         `json:"scroll_progress" validate:"min=0,max=100"`
	ActivitiesProgress float64         `json:"activities_progress" validate:"min=0,max=100"`
	Metadata           json.RawMessage `json:"metadata,omitempty"`
}

// BreakpointService tracks coarse unit-level progress milestones and gates
// access to a unit's final quiz.
type BreakpointService struct {
	breakpoints breakpointRepo
	enrollments progressEnrollmentReader
	courses     breakpointCourseReader
	logger      *zap.Logger
}

// NewBreakpointService constructs a BreakpointService.
func NewBreakpointService(breakpoints breakpointRepo, enrollments progressEnrollmentReader, courses breakpointCourseReader, logger *zap.Logger) *BreakpointService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BreakpointService{
		breakpoints: breakpoints,
		enrollments: enrollments,
		courses:     courses,
		logger:      logger,
	}
}

// Record combines scroll and activity progress for a unit and stores the
// highest newly crossed milestone, if any. Milestones already recorded are
// never duplicated, and a single jump across several thresholds records only
// the top one. Returns nil when nothing new was crossed.
func (s *BreakpointService) Record(ctx context.Context, req RecordBreakpointRequest) (*models.UnitProgressBreakpoint, error) {
	enrollment, err := s.enrollments.FindByID(ctx, req.EnrollmentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	course, err := s.courses.FindByID(ctx, enrollment.CourseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if _, err := s.courses.FindModule(ctx, course.ID, req.UnitID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "unit not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load unit")
	}

	combined := CombineProgress(req.ScrollProgress, req.ActivitiesProgress, course.IntelligentProgress)

	recorded, err := s.breakpoints.RecordedPercentages(ctx, req.EnrollmentID, req.UnitID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recorded breakpoints")
	}
	// Milestones below an already recorded one are never backfilled, so a
	// later update with lower progress adds nothing.
	maxRecorded := 0
	for threshold := range recorded {
		if threshold > maxRecorded {
			maxRecorded = threshold
		}
	}
	highest := 0
	for _, threshold := range models.BreakpointThresholds {
		if combined >= float64(threshold) && threshold > maxRecorded && threshold > highest {
			highest = threshold
		}
	}
	if highest == 0 {
		return nil, nil
	}

	breakpoint := &models.UnitProgressBreakpoint{
		EnrollmentID:         req.EnrollmentID,
		UnitID:               req.UnitID,
		BreakpointPercentage: highest,
		ScrollProgress:       req.ScrollProgress,
		ActivitiesProgress:   req.ActivitiesProgress,
		CombinedProgress:     combined,
		IntelligentProgress:  course.IntelligentProgress,
		Metadata:             req.Metadata,
	}
	if err := s.breakpoints.Create(ctx, breakpoint); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record breakpoint")
	}
	s.logger.Info("unit breakpoint recorded",
		zap.String("enrollment_id", req.EnrollmentID),
		zap.String("unit_id", req.UnitID),
		zap.Int("breakpoint", highest),
		zap.Float64("combined_progress", combined))
	return breakpoint, nil
}

// List returns every recorded milestone for a unit, oldest first.
func (s *BreakpointService) List(ctx context.Context, enrollmentID, unitID string) ([]models.UnitProgressBreakpoint, error) {
	breakpoints, err := s.breakpoints.ListByUnit(ctx, enrollmentID, unitID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list breakpoints")
	}
	return breakpoints, nil
}

// CanAccessFinalQuiz reports whether the unit's final quiz is unlocked.
// Courses without intelligent progress never lock the quiz. Lookup failures
// deny access.
func (s *BreakpointService) CanAccessFinalQuiz(ctx context.Context, enrollment *models.Enrollment, unitID string) bool {
	course, err := s.courses.FindByID(ctx, enrollment.CourseID)
	if err != nil {
		s.logger.Warn("final quiz gate: course lookup failed",
			zap.String("course_id", enrollment.CourseID), zap.Error(err))
		return false
	}
	if !course.IntelligentProgress {
		return true
	}
	reached, err := s.breakpoints.HasReached(ctx, enrollment.ID, unitID, 100)
	if err != nil {
		s.logger.Warn("final quiz gate: breakpoint lookup failed",
			zap.String("enrollment_id", enrollment.ID),
			zap.String("unit_id", unitID), zap.Error(err))
		return false
	}
	return reached
}

// CombineProgress folds scroll and activity progress into one figure. With
// intelligent progress the split is 30% scroll and 70% activities, otherwise
// scroll alone counts. Result is clamped to [0, 100].
func CombineProgress(scrollProgress, activitiesProgress float64, intelligent bool) float64 {
	combined := scrollProgress
	if intelligent {
		combined = scrollProgress*0.30 + activitiesProgress*0.70
	}
	if combined < 0 {
		return 0
	}
	if combined > 100 {
		return 100
	}
	return combined
}
