package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-go-api/internal/models"
)

type mockBreakpointRepo struct {
	recorded map[string]map[int]bool
	failures bool
	rows     []models.UnitProgressBreakpoint
}

func breakpointKey(enrollmentID, unitID string) string {
	return enrollmentID + "|" + unitID
}

func (m *mockBreakpointRepo) RecordedPercentages(ctx context.Context, enrollmentID, unitID string) (map[int]bool, error) {
	if m.failures {
		return nil, errors.New("store unavailable")
	}
	if set, ok := m.recorded[breakpointKey(enrollmentID, unitID)]; ok {
		return set, nil
	}
	return map[int]bool{}, nil
}

func (m *mockBreakpointRepo) HasReached(ctx context.Context, enrollmentID, unitID string, percentage int) (bool, error) {
	if m.failures {
		return false, errors.New("store unavailable")
	}
	set := m.recorded[breakpointKey(enrollmentID, unitID)]
	return set[percentage], nil
}

func (m *mockBreakpointRepo) Create(ctx context.Context, breakpoint *models.UnitProgressBreakpoint) error {
	if m.recorded == nil {
		m.recorded = make(map[string]map[int]bool)
	}
	key := breakpointKey(breakpoint.EnrollmentID, breakpoint.UnitID)
	if m.recorded[key] == nil {
		m.recorded[key] = make(map[int]bool)
	}
	m.recorded[key][breakpoint.BreakpointPercentage] = true
	m.rows = append(m.rows, *breakpoint)
	return nil
}

func (m *mockBreakpointRepo) ListByUnit(ctx context.Context, enrollmentID, unitID string) ([]models.UnitProgressBreakpoint, error) {
	var list []models.UnitProgressBreakpoint
	for _, row := range m.rows {
		if row.EnrollmentID == enrollmentID && row.UnitID == unitID {
			list = append(list, row)
		}
	}
	return list, nil
}

type mockCourseReader struct {
	course *models.Course
}

func (m *mockCourseReader) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if m.course == nil {
		return nil, sql.ErrNoRows
	}
	return m.course, nil
}

func (m *mockCourseReader) FindModule(ctx context.Context, courseID, moduleID string) (*models.CourseModule, error) {
	if moduleID == "missing" {
		return nil, sql.ErrNoRows
	}
	return &models.CourseModule{ID: moduleID, CourseID: courseID}, nil
}

func newBreakpointService(repo *mockBreakpointRepo, course *models.Course) *BreakpointService {
	enrollments := &mockEnrollmentReader{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", CourseID: "c1", StudentID: "s1", Status: models.EnrollmentStatusActive},
	}}
	return NewBreakpointService(repo, enrollments, &mockCourseReader{course: course}, zap.NewNop())
}

func TestCombineProgress(t *testing.T) {
	assert.Equal(t, 40.0, CombineProgress(40, 100, false))
	assert.Equal(t, 82.0, CombineProgress(40, 100, true))
	assert.Equal(t, 0.0, CombineProgress(-10, 0, false))
	assert.Equal(t, 100.0, CombineProgress(150, 0, false))
}

func TestBreakpointRecordsHighestNewlyCrossed(t *testing.T) {
	repo := &mockBreakpointRepo{}
	svc := newBreakpointService(repo, &models.Course{ID: "c1"})

	// A single jump across several thresholds stores only the top one.
	row, err := svc.Record(context.Background(), RecordBreakpointRequest{EnrollmentID: "e1", UnitID: "u1", ScrollProgress: 60})
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, 50, row.BreakpointPercentage)
	assert.Len(t, repo.rows, 1)
}

func TestBreakpointNoDuplicateRows(t *testing.T) {
	repo := &mockBreakpointRepo{}
	svc := newBreakpointService(repo, &models.Course{ID: "c1"})

	first, err := svc.Record(context.Background(), RecordBreakpointRequest{EnrollmentID: "e1", UnitID: "u1", ScrollProgress: 30})
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, 25, first.BreakpointPercentage)

	again, err := svc.Record(context.Background(), RecordBreakpointRequest{EnrollmentID: "e1", UnitID: "u1", ScrollProgress: 30})
	require.NoError(t, err)
	assert.Nil(t, again)
	assert.Len(t, repo.rows, 1)
}

func TestBreakpointNonIncreasingProgressAddsNothing(t *testing.T) {
	repo := &mockBreakpointRepo{}
	svc := newBreakpointService(repo, &models.Course{ID: "c1"})

	_, err := svc.Record(context.Background(), RecordBreakpointRequest{EnrollmentID: "e1", UnitID: "u1", ScrollProgress: 80})
	require.NoError(t, err)
	row, err := svc.Record(context.Background(), RecordBreakpointRequest{EnrollmentID: "e1", UnitID: "u1", ScrollProgress: 60})
	require.NoError(t, err)
	assert.Nil(t, row)
	assert.Len(t, repo.rows, 1)
}

func TestBreakpointIntelligentWeighting(t *testing.T) {
	repo := &mockBreakpointRepo{}
	svc := newBreakpointService(repo, &models.Course{ID: "c1", IntelligentProgress: true})

	row, err := svc.Record(context.Background(), RecordBreakpointRequest{EnrollmentID: "e1", UnitID: "u1", ScrollProgress: 40, ActivitiesProgress: 100})
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, 82.0, row.CombinedProgress)
	assert.Equal(t, 75, row.BreakpointPercentage)
	assert.True(t, row.IntelligentProgress)
}

func TestFinalQuizGateWithoutIntelligentProgress(t *testing.T) {
	svc := newBreakpointService(&mockBreakpointRepo{}, &models.Course{ID: "c1", IntelligentProgress: false})

	enrollment := &models.Enrollment{ID: "e1", CourseID: "c1"}
	assert.True(t, svc.CanAccessFinalQuiz(context.Background(), enrollment, "u1"))
}

func TestFinalQuizGateRequiresFullBreakpoint(t *testing.T) {
	repo := &mockBreakpointRepo{}
	svc := newBreakpointService(repo, &models.Course{ID: "c1", IntelligentProgress: true})
	enrollment := &models.Enrollment{ID: "e1", CourseID: "c1"}

	assert.False(t, svc.CanAccessFinalQuiz(context.Background(), enrollment, "u1"))

	_, err := svc.Record(context.Background(), RecordBreakpointRequest{EnrollmentID: "e1", UnitID: "u1", ScrollProgress: 100, ActivitiesProgress: 100})
	require.NoError(t, err)
	assert.True(t, svc.CanAccessFinalQuiz(context.Background(), enrollment, "u1"))
}

func TestFinalQuizGateFailsClosed(t *testing.T) {
	repo := &mockBreakpointRepo{failures: true}
	svc := newBreakpointService(repo, &models.Course{ID: "c1", IntelligentProgress: true})
	enrollment := &models.Enrollment{ID: "e1", CourseID: "c1"}

	assert.False(t, svc.CanAccessFinalQuiz(context.Background(), enrollment, "u1"))
}
