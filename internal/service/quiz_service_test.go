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

type mockQuizRepo struct {
	quiz      *models.Quiz
	questions []models.QuizQuestion
	attempts  map[string]models.QuizAttempt
	completed int
	last      int
	created   []string
}

func (m *mockQuizRepo) FindByID(ctx context.Context, id string) (*models.Quiz, error) {
	if m.quiz == nil || m.quiz.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.quiz, nil
}

func (m *mockQuizRepo) Questions(ctx context.Context, quizID string) ([]models.QuizQuestion, error) {
	return m.questions, nil
}

func (m *mockQuizRepo) FindAttempt(ctx context.Context, id string) (*models.QuizAttempt, error) {
	if a, ok := m.attempts[id]; ok {
		return &a, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockQuizRepo) LastAttemptNumber(ctx context.Context, quizID, studentID string) (int, error) {
	return m.last, nil
}

func (m *mockQuizRepo) CountCompletedAttempts(ctx context.Context, quizID, studentID string) (int, error) {
	return m.completed, nil
}

func (m *mockQuizRepo) CreateAttempt(ctx context.Context, attempt *models.QuizAttempt) error {
	if m.attempts == nil {
		m.attempts = make(map[string]models.QuizAttempt)
	}
	if attempt.ID == "" {
		attempt.ID = "att-1"
	}
	m.attempts[attempt.ID] = *attempt
	m.created = append(m.created, attempt.ID)
	m.last = attempt.AttemptNumber
	return nil
}

func (m *mockQuizRepo) UpdateAttempt(ctx context.Context, attempt *models.QuizAttempt) error {
	m.attempts[attempt.ID] = *attempt
	return nil
}

type mockGate struct {
	allow bool
}

func (m *mockGate) CanAccessFinalQuiz(ctx context.Context, enrollment *models.Enrollment, unitID string) bool {
	return m.allow
}

type mockCompleter struct {
	completed []TrackProgressRequest
	scores    []*float64
}

func (m *mockCompleter) Complete(ctx context.Context, req TrackProgressRequest, score *float64) (*models.ProgressRecord, error) {
	m.completed = append(m.completed, req)
	m.scores = append(m.scores, score)
	return &models.ProgressRecord{ID: "rec", EnrollmentID: req.EnrollmentID}, nil
}

type mockRefresher struct {
	refreshed []string
}

func (m *mockRefresher) RefreshProgress(ctx context.Context, enrollmentID string) (*models.Enrollment, error) {
	m.refreshed = append(m.refreshed, enrollmentID)
	return &models.Enrollment{ID: enrollmentID}, nil
}

func newQuizService(repo *mockQuizRepo, gate *mockGate, completer *mockCompleter, refresher *mockRefresher) *QuizService {
	enrollments := &mockEnrollmentReader{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", CourseID: "c1", StudentID: "s1", Status: models.EnrollmentStatusActive},
	}}
	return NewQuizService(repo, enrollments, gate, completer, refresher, validator.New(), zap.NewNop())
}

func TestQuizStartAttemptIncrementsNumber(t *testing.T) {
	repo := &mockQuizRepo{quiz: &models.Quiz{ID: "q1", ModuleID: "m1", MaxAttempts: 3}, last: 2}
	svc := newQuizService(repo, &mockGate{allow: true}, &mockCompleter{}, &mockRefresher{})

	attempt, err := svc.StartAttempt(context.Background(), StartQuizAttemptRequest{EnrollmentID: "e1", QuizID: "q1"})
	require.NoError(t, err)
	assert.Equal(t, 3, attempt.AttemptNumber)
	assert.Equal(t, models.QuizAttemptInProgress, attempt.Status)
}

func TestQuizStartAttemptEnforcesMaxAttempts(t *testing.T) {
	repo := &mockQuizRepo{quiz: &models.Quiz{ID: "q1", ModuleID: "m1", MaxAttempts: 2}, completed: 2}
	svc := newQuizService(repo, &mockGate{allow: true}, &mockCompleter{}, &mockRefresher{})

	_, err := svc.StartAttempt(context.Background(), StartQuizAttemptRequest{EnrollmentID: "e1", QuizID: "q1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrMaxAttempts.Code, appErrors.FromError(err).Code)
}

func TestQuizStartAttemptLocksFinalQuiz(t *testing.T) {
	repo := &mockQuizRepo{quiz: &models.Quiz{ID: "q1", ModuleID: "m1", FinalQuiz: true}}
	svc := newQuizService(repo, &mockGate{allow: false}, &mockCompleter{}, &mockRefresher{})

	_, err := svc.StartAttempt(context.Background(), StartQuizAttemptRequest{EnrollmentID: "e1", QuizID: "q1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrQuizLocked.Code, appErrors.FromError(err).Code)

	svc = newQuizService(repo, &mockGate{allow: true}, &mockCompleter{}, &mockRefresher{})
	_, err = svc.StartAttempt(context.Background(), StartQuizAttemptRequest{EnrollmentID: "e1", QuizID: "q1"})
	require.NoError(t, err)
}

func TestQuizSubmitScoresAnswers(t *testing.T) {
	repo := &mockQuizRepo{
		quiz: &models.Quiz{ID: "q1", ModuleID: "m1"},
		questions: []models.QuizQuestion{
			{ID: "qq1", QuizID: "q1", Answer: "Paris", Points: 2},
			{ID: "qq2", QuizID: "q1", Answer: "42", Points: 1},
			{ID: "qq3", QuizID: "q1", Answer: "blue", Points: 1},
		},
		attempts: map[string]models.QuizAttempt{
			"att-1": {ID: "att-1", QuizID: "q1", StudentID: "s1", AttemptNumber: 1, Status: models.QuizAttemptInProgress},
		},
	}
	completer := &mockCompleter{}
	refresher := &mockRefresher{}
	svc := newQuizService(repo, &mockGate{allow: true}, completer, refresher)

	attempt, err := svc.SubmitAttempt(context.Background(), SubmitQuizAttemptRequest{
		EnrollmentID: "e1",
		AttemptID:    "att-1",
		Answers:      map[string]string{"qq1": " paris ", "qq2": "41", "qq3": "BLUE"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.QuizAttemptCompleted, attempt.Status)
	assert.Equal(t, 3.0, attempt.Score)
	assert.Equal(t, 75.00, attempt.Percentage)
	require.NotNil(t, attempt.CompletedAt)

	require.Len(t, completer.completed, 1)
	assert.Equal(t, models.TrackableQuiz, completer.completed[0].TrackableType)
	require.NotNil(t, completer.scores[0])
	assert.Equal(t, 75.00, *completer.scores[0])
	assert.Equal(t, []string{"e1"}, refresher.refreshed)
}

func TestQuizSubmitRejectsFinishedAttempt(t *testing.T) {
	repo := &mockQuizRepo{
		quiz: &models.Quiz{ID: "q1", ModuleID: "m1"},
		attempts: map[string]models.QuizAttempt{
			"att-1": {ID: "att-1", QuizID: "q1", Status: models.QuizAttemptCompleted},
		},
	}
	svc := newQuizService(repo, &mockGate{allow: true}, &mockCompleter{}, &mockRefresher{})

	_, err := svc.SubmitAttempt(context.Background(), SubmitQuizAttemptRequest{
		EnrollmentID: "e1",
		AttemptID:    "att-1",
		Answers:      map[string]string{},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestQuizAbandonAttempt(t *testing.T) {
	repo := &mockQuizRepo{
		quiz: &models.Quiz{ID: "q1", ModuleID: "m1"},
		attempts: map[string]models.QuizAttempt{
			"att-1": {ID: "att-1", QuizID: "q1", Status: models.QuizAttemptInProgress},
		},
	}
	svc := newQuizService(repo, &mockGate{allow: true}, &mockCompleter{}, &mockRefresher{})

	attempt, err := svc.AbandonAttempt(context.Background(), "att-1")
	require.NoError(t, err)
	assert.Equal(t, models.QuizAttemptAbandoned, attempt.Status)
}

func TestQuizIsPassedBoundary(t *testing.T) {
	quiz := models.Quiz{PassingScore: 70}
	assert.False(t, quiz.IsPassed(69.99))
	assert.True(t, quiz.IsPassed(70.00))
}
