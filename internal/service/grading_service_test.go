package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-go-api/internal/models"
)

type mockWeightSource struct {
	interactive float64
	activities  float64
}

func (m *mockWeightSource) GradeWeights(ctx context.Context) (float64, float64) {
	return m.interactive, m.activities
}

func gradingStructure() *models.CourseStructure {
	return &models.CourseStructure{
		Course:  models.Course{ID: "c1"},
		Modules: []models.CourseModule{{ID: "m1", CourseID: "c1"}},
		Components: map[string][]models.ModuleComponent{},
		Quizzes: map[string][]models.Quiz{
			"m1": {{ID: "q1", ModuleID: "m1"}, {ID: "q2", ModuleID: "m1"}},
		},
		Activities: map[string][]models.Activity{
			"m1": {
				{ID: "a1", ModuleID: "m1", Mandatory: true, MaxScore: 100, Weight: 2},
				{ID: "a2", ModuleID: "m1", Mandatory: true, MaxScore: 100, Weight: 1},
			},
		},
	}
}

func TestGradingFinalScoreFiftyFifty(t *testing.T) {
	attempts := &mockAttemptReader{best: map[string]float64{"q1": 80, "q2": 80}}
	submissions := &mockSubmissionReader{graded: []models.GradedSubmission{
		{ActivityID: "a1", Score: 60, MaxScore: 100, Weight: 1, Mandatory: true},
	}}
	svc := NewGradingService(&mockStructureReader{structure: gradingStructure()}, attempts, submissions, &mockWeightSource{interactive: 50, activities: 50}, zap.NewNop())

	breakdown, err := svc.Breakdown(context.Background(), &models.Enrollment{ID: "e1", CourseID: "c1", StudentID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, 80.00, breakdown.InteractiveAverage)
	assert.Equal(t, 60.00, breakdown.ActivitiesAverage)
	assert.Equal(t, 70.00, breakdown.FinalScore)
}

func TestGradingInteractiveAverageUsesBestAttempts(t *testing.T) {
	attempts := &mockAttemptReader{best: map[string]float64{"q1": 90, "q2": 50}}
	svc := NewGradingService(&mockStructureReader{structure: gradingStructure()}, attempts, &mockSubmissionReader{}, &mockWeightSource{interactive: 50, activities: 50}, zap.NewNop())

	avg, err := svc.InteractiveAverage(context.Background(), &models.Enrollment{ID: "e1", CourseID: "c1", StudentID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, 70.00, avg)
}

func TestGradingInteractiveAverageZeroWithoutAttempts(t *testing.T) {
	svc := NewGradingService(&mockStructureReader{structure: gradingStructure()}, &mockAttemptReader{}, &mockSubmissionReader{}, &mockWeightSource{interactive: 50, activities: 50}, zap.NewNop())

	avg, err := svc.InteractiveAverage(context.Background(), &models.Enrollment{ID: "e1", CourseID: "c1", StudentID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, 0.00, avg)
}

func TestGradingActivitiesAverageIsWeighted(t *testing.T) {
	submissions := &mockSubmissionReader{graded: []models.GradedSubmission{
		{ActivityID: "a1", Score: 100, MaxScore: 100, Weight: 2, Mandatory: true},
		{ActivityID: "a2", Score: 40, MaxScore: 100, Weight: 1, Mandatory: true},
	}}
	svc := NewGradingService(&mockStructureReader{structure: gradingStructure()}, &mockAttemptReader{}, submissions, &mockWeightSource{interactive: 50, activities: 50}, zap.NewNop())

	avg, err := svc.ActivitiesAverage(context.Background(), &models.Enrollment{ID: "e1", CourseID: "c1", StudentID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, 80.00, avg)
}

func TestGradingActivitiesAverageSkipsOptional(t *testing.T) {
	submissions := &mockSubmissionReader{graded: []models.GradedSubmission{
		{ActivityID: "a1", Score: 100, MaxScore: 100, Weight: 1, Mandatory: true},
		{ActivityID: "a2", Score: 0, MaxScore: 100, Weight: 1, Mandatory: false},
	}}
	svc := NewGradingService(&mockStructureReader{structure: gradingStructure()}, &mockAttemptReader{}, submissions, &mockWeightSource{interactive: 50, activities: 50}, zap.NewNop())

	avg, err := svc.ActivitiesAverage(context.Background(), &models.Enrollment{ID: "e1", CourseID: "c1", StudentID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, 100.00, avg)
}

func TestGradingWeightsNotNormalized(t *testing.T) {
	attempts := &mockAttemptReader{best: map[string]float64{"q1": 100, "q2": 100}}
	submissions := &mockSubmissionReader{graded: []models.GradedSubmission{
		{ActivityID: "a1", Score: 100, MaxScore: 100, Weight: 1, Mandatory: true},
	}}
	svc := NewGradingService(&mockStructureReader{structure: gradingStructure()}, attempts, submissions, &mockWeightSource{interactive: 60, activities: 60}, zap.NewNop())

	breakdown, err := svc.Breakdown(context.Background(), &models.Enrollment{ID: "e1", CourseID: "c1", StudentID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, 120.00, breakdown.FinalScore)
}
