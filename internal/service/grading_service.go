package service

import (
	"context"
	"database/sql"
	"math"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-go-api/internal/models"
	appErrors "github.com/noah-isme/lms-go-api/pkg/errors"
)

type gradeWeightSource interface {
	GradeWeights(ctx context.Context) (float64, float64)
}

// GradeBreakdown bundles the aggregates that feed certificate issuance.
type GradeBreakdown struct {
	InteractiveAverage float64 `json:"interactive_average"`
	ActivitiesAverage  float64 `json:"activities_average"`
	FinalScore         float64 `json:"final_score"`
	InteractiveWeight  float64 `json:"interactive_weight"`
	ActivitiesWeight   float64 `json:"activities_weight"`
}

// GradingService computes quiz and activity averages and the weighted final
// score for an enrollment.
type GradingService struct {
	courses     structureReader
	attempts    bestAttemptReader
	submissions gradedSubmissionReader
	settings    gradeWeightSource
	logger      *zap.Logger
}

// NewGradingService constructs a GradingService.
func NewGradingService(courses structureReader, attempts bestAttemptReader, submissions gradedSubmissionReader, settings gradeWeightSource, logger *zap.Logger) *GradingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradingService{
		courses:     courses,
		attempts:    attempts,
		submissions: submissions,
		settings:    settings,
		logger:      logger,
	}
}

// InteractiveAverage is the mean over distinct quizzes of the highest
// percentage among completed attempts, 0 when no completed attempts exist.
func (s *GradingService) InteractiveAverage(ctx context.Context, enrollment *models.Enrollment) (float64, error) {
	structure, err := s.structure(ctx, enrollment.CourseID)
	if err != nil {
		return 0, err
	}
	return s.interactiveAverage(ctx, enrollment, structure)
}

// ActivitiesAverage is the weighted mean of graded mandatory submissions:
// sum(score/max_score*100 * weight) / sum(weight), 0 when none are graded.
func (s *GradingService) ActivitiesAverage(ctx context.Context, enrollment *models.Enrollment) (float64, error) {
	structure, err := s.structure(ctx, enrollment.CourseID)
	if err != nil {
		return 0, err
	}
	return s.activitiesAverage(ctx, enrollment, structure)
}

// FinalScore combines the two averages using the configured weights. The
// weights are applied as-is; they are not normalized to sum to 100.
func (s *GradingService) FinalScore(ctx context.Context, enrollment *models.Enrollment) (float64, error) {
	breakdown, err := s.Breakdown(ctx, enrollment)
	if err != nil {
		return 0, err
	}
	return breakdown.FinalScore, nil
}

// Breakdown computes all grading aggregates in one pass.
func (s *GradingService) Breakdown(ctx context.Context, enrollment *models.Enrollment) (*GradeBreakdown, error) {
	structure, err := s.structure(ctx, enrollment.CourseID)
	if err != nil {
		return nil, err
	}
	interactive, err := s.interactiveAverage(ctx, enrollment, structure)
	if err != nil {
		return nil, err
	}
	activities, err := s.activitiesAverage(ctx, enrollment, structure)
	if err != nil {
		return nil, err
	}
	interactiveWeight, activitiesWeight := s.settings.GradeWeights(ctx)
	final := round2(interactive*(interactiveWeight/100) + activities*(activitiesWeight/100))
	return &GradeBreakdown{
		InteractiveAverage: interactive,
		ActivitiesAverage:  activities,
		FinalScore:         final,
		InteractiveWeight:  interactiveWeight,
		ActivitiesWeight:   activitiesWeight,
	}, nil
}

func (s *GradingService) structure(ctx context.Context, courseID string) (*models.CourseStructure, error) {
	structure, err := s.courses.Structure(ctx, courseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course structure")
	}
	return structure, nil
}

func (s *GradingService) interactiveAverage(ctx context.Context, enrollment *models.Enrollment, structure *models.CourseStructure) (float64, error) {
	var quizIDs []string
	for _, module := range structure.Modules {
		for _, quiz := range structure.Quizzes[module.ID] {
			quizIDs = append(quizIDs, quiz.ID)
		}
	}
	best, err := s.attempts.BestCompletedPercentages(ctx, enrollment.StudentID, quizIDs)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quiz attempts")
	}
	if len(best) == 0 {
		return 0, nil
	}
	sum := 0.0
	for _, percentage := range best {
		sum += percentage
	}
	return round2(sum / float64(len(best))), nil
}

func (s *GradingService) activitiesAverage(ctx context.Context, enrollment *models.Enrollment, structure *models.CourseStructure) (float64, error) {
	var activityIDs []string
	for _, module := range structure.Modules {
		for _, activity := range structure.Activities[module.ID] {
			activityIDs = append(activityIDs, activity.ID)
		}
	}
	graded, err := s.submissions.GradedSubmissions(ctx, enrollment.StudentID, activityIDs)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load graded submissions")
	}
	totalWeight := 0.0
	weightedSum := 0.0
	for _, submission := range graded {
		if !submission.Mandatory || submission.MaxScore <= 0 || submission.Weight <= 0 {
			continue
		}
		percentage := submission.Score / submission.MaxScore * 100
		weightedSum += percentage * submission.Weight
		totalWeight += submission.Weight
	}
	if totalWeight == 0 {
		return 0, nil
	}
	return round2(weightedSum / totalWeight), nil
}

func round2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}
