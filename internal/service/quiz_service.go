package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-go-api/internal/models"
	appErrors "github.com/noah-isme/lms-go-api/pkg/errors"
)

type quizRepo interface {
	FindByID(ctx context.Context, id string) (*models.Quiz, error)
	Questions(ctx context.Context, quizID string) ([]models.QuizQuestion, error)
	FindAttempt(ctx context.Context, id string) (*models.QuizAttempt, error)
	LastAttemptNumber(ctx context.Context, quizID, studentID string) (int, error)
	CountCompletedAttempts(ctx context.Context, quizID, studentID string) (int, error)
	CreateAttempt(ctx context.Context, attempt *models.QuizAttempt) error
	UpdateAttempt(ctx context.Context, attempt *models.QuizAttempt) error
}

type finalQuizGate interface {
	CanAccessFinalQuiz(ctx context.Context, enrollment *models.Enrollment, unitID string) bool
}

type progressCompleter interface {
	Complete(ctx context.Context, req TrackProgressRequest, score *float64) (*models.ProgressRecord, error)
}

type enrollmentRefresher interface {
	RefreshProgress(ctx context.Context, enrollmentID string) (*models.Enrollment, error)
}

// StartQuizAttemptRequest opens a new attempt at a quiz.
type StartQuizAttemptRequest struct {
	EnrollmentID string `json:"enrollment_id" validate:"required"`
	QuizID       string `json:"quiz_id" validate:"required"`
}

// SubmitQuizAttemptRequest completes an attempt with the student's answers,
// keyed by question ID.
type SubmitQuizAttemptRequest struct {
	EnrollmentID string            `json:"enrollment_id" validate:"required"`
	AttemptID    string            `json:"attempt_id" validate:"required"`
	Answers      map[string]string `json:"answers" validate:"required"`
}

// QuizService manages quiz attempt lifecycle and scoring.
type QuizService struct {
	quizzes     quizRepo
	enrollments progressEnrollmentReader
	gate        finalQuizGate
	progress    progressCompleter
	refresher   enrollmentRefresher
	validate    *validator.Validate
	logger      *zap.Logger
}

// NewQuizService constructs a QuizService.
func NewQuizService(quizzes quizRepo, enrollments progressEnrollmentReader, gate finalQuizGate, progress progressCompleter, refresher enrollmentRefresher, validate *validator.Validate, logger *zap.Logger) *QuizService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuizService{
		quizzes:     quizzes,
		enrollments: enrollments,
		gate:        gate,
		progress:    progress,
		refresher:   refresher,
		validate:    validate,
		logger:      logger,
	}
}

// StartAttempt opens a new attempt, enforcing the final quiz gate and the
// quiz's completed-attempt limit. Attempt numbers are strictly increasing
// per (quiz, student) and never reused, abandoned runs included.
func (s *QuizService) StartAttempt(ctx context.Context, req StartQuizAttemptRequest) (*models.QuizAttempt, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid quiz attempt request")
	}
	enrollment, err := s.enrollment(ctx, req.EnrollmentID)
	if err != nil {
		return nil, err
	}
	quiz, err := s.quiz(ctx, req.QuizID)
	if err != nil {
		return nil, err
	}
	if quiz.FinalQuiz && !s.gate.CanAccessFinalQuiz(ctx, enrollment, quiz.ModuleID) {
		return nil, appErrors.Clone(appErrors.ErrQuizLocked, "final quiz requires full unit progress")
	}
	if quiz.MaxAttempts > 0 {
		completed, err := s.quizzes.CountCompletedAttempts(ctx, quiz.ID, enrollment.StudentID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count attempts")
		}
		if completed >= quiz.MaxAttempts {
			return nil, appErrors.Clone(appErrors.ErrMaxAttempts, "")
		}
	}
	last, err := s.quizzes.LastAttemptNumber(ctx, quiz.ID, enrollment.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to determine attempt number")
	}
	attempt := &models.QuizAttempt{
		QuizID:        quiz.ID,
		StudentID:     enrollment.StudentID,
		AttemptNumber: last + 1,
		Status:        models.QuizAttemptInProgress,
		StartedAt:     time.Now().UTC(),
	}
	if err := s.quizzes.CreateAttempt(ctx, attempt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create attempt")
	}
	s.logger.Info("quiz attempt started",
		zap.String("quiz_id", quiz.ID),
		zap.String("student_id", enrollment.StudentID),
		zap.Int("attempt_number", attempt.AttemptNumber))
	return attempt, nil
}

// SubmitAttempt scores the answers, completes the attempt and records quiz
// progress for the enrollment. Scoring is per question: a trimmed
// case-insensitive match earns the question's points.
func (s *QuizService) SubmitAttempt(ctx context.Context, req SubmitQuizAttemptRequest) (*models.QuizAttempt, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid quiz submission")
	}
	attempt, err := s.attempt(ctx, req.AttemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Status != models.QuizAttemptInProgress {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "attempt is no longer in progress")
	}
	questions, err := s.quizzes.Questions(ctx, attempt.QuizID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quiz questions")
	}

	totalPoints := 0.0
	score := 0.0
	questionScores := make(map[string]float64, len(questions))
	for _, question := range questions {
		totalPoints += question.Points
		earned := 0.0
		if answer, ok := req.Answers[question.ID]; ok && answersMatch(answer, question.Answer) {
			earned = question.Points
		}
		questionScores[question.ID] = earned
		score += earned
	}
	percentage := 0.0
	if totalPoints > 0 {
		percentage = round2(score / totalPoints * 100)
	}

	answersJSON, err := json.Marshal(req.Answers)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode answers")
	}
	scoresJSON, err := json.Marshal(questionScores)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode question scores")
	}
	now := time.Now().UTC()
	attempt.Status = models.QuizAttemptCompleted
	attempt.CompletedAt = &now
	attempt.Score = score
	attempt.Percentage = percentage
	attempt.Answers = answersJSON
	attempt.QuestionScores = scoresJSON
	if err := s.quizzes.UpdateAttempt(ctx, attempt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save attempt")
	}
	s.logger.Info("quiz attempt completed",
		zap.String("attempt_id", attempt.ID),
		zap.String("quiz_id", attempt.QuizID),
		zap.Float64("percentage", percentage))

	if _, err := s.progress.Complete(ctx, TrackProgressRequest{
		EnrollmentID:  req.EnrollmentID,
		TrackableType: models.TrackableQuiz,
		TrackableID:   attempt.QuizID,
	}, &percentage); err != nil {
		s.logger.Warn("quiz progress update failed",
			zap.String("enrollment_id", req.EnrollmentID),
			zap.String("quiz_id", attempt.QuizID), zap.Error(err))
	}
	if _, err := s.refresher.RefreshProgress(ctx, req.EnrollmentID); err != nil {
		s.logger.Warn("enrollment progress refresh failed",
			zap.String("enrollment_id", req.EnrollmentID), zap.Error(err))
	}
	return attempt, nil
}

// AbandonAttempt closes an in-progress attempt without scoring. Abandoned
// attempts never count toward the completed-attempt limit.
func (s *QuizService) AbandonAttempt(ctx context.Context, attemptID string) (*models.QuizAttempt, error) {
	attempt, err := s.attempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Status != models.QuizAttemptInProgress {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "attempt is no longer in progress")
	}
	attempt.Status = models.QuizAttemptAbandoned
	if err := s.quizzes.UpdateAttempt(ctx, attempt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save attempt")
	}
	return attempt, nil
}

// GetAttempt returns a single attempt by ID.
func (s *QuizService) GetAttempt(ctx context.Context, attemptID string) (*models.QuizAttempt, error) {
	return s.attempt(ctx, attemptID)
}

func (s *QuizService) enrollment(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.enrollments.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

func (s *QuizService) quiz(ctx context.Context, id string) (*models.Quiz, error) {
	quiz, err := s.quizzes.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quiz")
	}
	return quiz, nil
}

func (s *QuizService) attempt(ctx context.Context, id string) (*models.QuizAttempt, error) {
	attempt, err := s.quizzes.FindAttempt(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attempt not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attempt")
	}
	return attempt, nil
}

func answersMatch(given, expected string) bool {
	return strings.EqualFold(strings.TrimSpace(given), strings.TrimSpace(expected))
}
