package service

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-go-api/internal/models"
	appErrors "github.com/noah-isme/lms-go-api/pkg/errors"
	"github.com/noah-isme/lms-go-api/pkg/render"
)

type mockCertificateRepo struct {
	certificates map[string]models.Certificate
	created      []string
	invalidated  map[string]string
}

func (m *mockCertificateRepo) FindByID(ctx context.Context, id string) (*models.Certificate, error) {
	if c, ok := m.certificates[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCertificateRepo) FindValid(ctx context.Context, enrollmentID string, certType models.CertificateType) (*models.Certificate, error) {
	for _, c := range m.certificates {
		if c.EnrollmentID == enrollmentID && c.Type == certType && c.Valid {
			return &c, nil
		}
	}
	return nil, nil
}

func (m *mockCertificateRepo) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Certificate, error) {
	var list []models.Certificate
	for _, c := range m.certificates {
		if c.EnrollmentID == enrollmentID {
			list = append(list, c)
		}
	}
	return list, nil
}

func (m *mockCertificateRepo) Create(ctx context.Context, certificate *models.Certificate) error {
	if m.certificates == nil {
		m.certificates = make(map[string]models.Certificate)
	}
	if certificate.ID == "" {
		certificate.ID = "cert-" + string(certificate.Type)
	}
	m.certificates[certificate.ID] = *certificate
	m.created = append(m.created, certificate.ID)
	return nil
}

func (m *mockCertificateRepo) UpdateFilePath(ctx context.Context, id, path string) error {
	if c, ok := m.certificates[id]; ok {
		c.FilePath = &path
		m.certificates[id] = c
	}
	return nil
}

func (m *mockCertificateRepo) Invalidate(ctx context.Context, id, reason string) error {
	if m.invalidated == nil {
		m.invalidated = make(map[string]string)
	}
	m.invalidated[id] = reason
	if c, ok := m.certificates[id]; ok {
		c.Valid = false
		c.InvalidationReason = &reason
		m.certificates[id] = c
	}
	return nil
}

type mockDetailReader struct {
	details map[string]models.EnrollmentDetail
}

func (m *mockDetailReader) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	if d, ok := m.details[id]; ok {
		return &d, nil
	}
	return nil, sql.ErrNoRows
}

type mockProgressCalculator struct {
	overall float64
}

func (m *mockProgressCalculator) Calculate(ctx context.Context, enrollment *models.Enrollment) (*models.ProgressSummary, error) {
	return &models.ProgressSummary{Overall: m.overall}, nil
}

type mockGradeCalculator struct {
	final       float64
	interactive float64
	activities  float64
}

func (m *mockGradeCalculator) Breakdown(ctx context.Context, enrollment *models.Enrollment) (*GradeBreakdown, error) {
	return &GradeBreakdown{
		InteractiveAverage: m.interactive,
		ActivitiesAverage:  m.activities,
		FinalScore:         m.final,
	}, nil
}

type mockCertSettings struct {
	virtual  float64
	complete float64
	auto     bool
}

func (m *mockCertSettings) VirtualCertificateThreshold(ctx context.Context) float64  { return m.virtual }
func (m *mockCertSettings) CompleteCertificateThreshold(ctx context.Context) float64 { return m.complete }
func (m *mockCertSettings) AutoGenerateCertificates(ctx context.Context) bool        { return m.auto }

type mockRenderer struct {
	fail     bool
	rendered []render.Certificate
}

func (m *mockRenderer) Render(data render.Certificate) ([]byte, error) {
	if m.fail {
		return nil, errors.New("render blew up")
	}
	m.rendered = append(m.rendered, data)
	return []byte("%PDF-1.4"), nil
}

type mockStorage struct {
	dir   string
	files map[string][]byte
}

func (m *mockStorage) Save(filename string, data []byte) (string, error) {
	if m.files == nil {
		m.files = make(map[string][]byte)
	}
	m.files[filename] = data
	path := filepath.Join(m.dir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (m *mockStorage) Open(filename string) (*os.File, error) {
	return os.Open(filename)
}

func (m *mockStorage) Delete(filename string) error {
	delete(m.files, filename)
	if err := os.Remove(filename); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func newCertificateService(t *testing.T, repo *mockCertificateRepo, progress *mockProgressCalculator, grades *mockGradeCalculator, settings *mockCertSettings, renderer *mockRenderer) *CertificateService {
	t.Helper()
	details := &mockDetailReader{details: map[string]models.EnrollmentDetail{
		"e1": {
			Enrollment:    models.Enrollment{ID: "e1", CourseID: "c1", StudentID: "s1", Status: models.EnrollmentStatusActive, ProgressPercentage: 50},
			StudentName:   "Dewi Lestari",
			StudentNumber: 123,
			CourseTitle:   "Data Structures",
			CourseCode:    7,
		},
	}}
	storage := &mockStorage{dir: t.TempDir()}
	return NewCertificateService(repo, details, progress, grades, settings, renderer, storage, zap.NewNop())
}

func TestCertificateEligibilityAtExactThreshold(t *testing.T) {
	svc := newCertificateService(t, &mockCertificateRepo{}, &mockProgressCalculator{overall: 80}, &mockGradeCalculator{final: 0}, &mockCertSettings{virtual: 80, complete: 70}, &mockRenderer{})

	eligibility, err := svc.CheckEligibility(context.Background(), "e1", models.CertificateVirtual)
	require.NoError(t, err)
	assert.True(t, eligibility.Eligible)
}

func TestCertificateCompleteRequiresFinalScore(t *testing.T) {
	svc := newCertificateService(t, &mockCertificateRepo{}, &mockProgressCalculator{overall: 100}, &mockGradeCalculator{final: 69.99}, &mockCertSettings{virtual: 80, complete: 70}, &mockRenderer{})

	eligibility, err := svc.CheckEligibility(context.Background(), "e1", models.CertificateComplete)
	require.NoError(t, err)
	assert.False(t, eligibility.Eligible)

	svc = newCertificateService(t, &mockCertificateRepo{}, &mockProgressCalculator{overall: 100}, &mockGradeCalculator{final: 70}, &mockCertSettings{virtual: 80, complete: 70}, &mockRenderer{})
	eligibility, err = svc.CheckEligibility(context.Background(), "e1", models.CertificateComplete)
	require.NoError(t, err)
	assert.True(t, eligibility.Eligible)
}

func TestCertificateEligibilityFallsBackToCachedProgress(t *testing.T) {
	// Calculated progress of zero falls back to the enrollment's cached 50.
	svc := newCertificateService(t, &mockCertificateRepo{}, &mockProgressCalculator{overall: 0}, &mockGradeCalculator{final: 90}, &mockCertSettings{virtual: 40, complete: 70}, &mockRenderer{})

	eligibility, err := svc.CheckEligibility(context.Background(), "e1", models.CertificateVirtual)
	require.NoError(t, err)
	assert.True(t, eligibility.Eligible)
	assert.Equal(t, 50.00, eligibility.Progress)
}

func TestCertificateGenerateIsIdempotent(t *testing.T) {
	repo := &mockCertificateRepo{}
	svc := newCertificateService(t, repo, &mockProgressCalculator{overall: 100}, &mockGradeCalculator{final: 95}, &mockCertSettings{virtual: 80, complete: 70}, &mockRenderer{})

	first, err := svc.Generate(context.Background(), "e1", models.CertificateVirtual)
	require.NoError(t, err)
	second, err := svc.Generate(context.Background(), "e1", models.CertificateVirtual)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, repo.created, 1)
}

func TestCertificateGenerateRejectsIneligible(t *testing.T) {
	svc := newCertificateService(t, &mockCertificateRepo{}, &mockProgressCalculator{overall: 79.99}, &mockGradeCalculator{final: 95}, &mockCertSettings{virtual: 80, complete: 70}, &mockRenderer{})

	_, err := svc.Generate(context.Background(), "e1", models.CertificateVirtual)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotEligible.Code, appErrors.FromError(err).Code)
}

func TestCertificateNumberFormat(t *testing.T) {
	repo := &mockCertificateRepo{}
	renderer := &mockRenderer{}
	svc := newCertificateService(t, repo, &mockProgressCalculator{overall: 100}, &mockGradeCalculator{final: 95}, &mockCertSettings{virtual: 80, complete: 70}, renderer)

	certificate, err := svc.Generate(context.Background(), "e1", models.CertificateComplete)
	require.NoError(t, err)
	assert.Regexp(t, `^CMP-0007-00123-\d{14}$`, certificate.CertificateNumber)
	require.Len(t, renderer.rendered, 1)
	assert.Equal(t, "Dewi Lestari", renderer.rendered[0].StudentName)
}

func TestCertificateRenderFailureKeepsRow(t *testing.T) {
	repo := &mockCertificateRepo{}
	svc := newCertificateService(t, repo, &mockProgressCalculator{overall: 100}, &mockGradeCalculator{final: 95}, &mockCertSettings{virtual: 80, complete: 70}, &mockRenderer{fail: true})

	_, err := svc.Generate(context.Background(), "e1", models.CertificateVirtual)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrRenderFailed.Code, appErrors.FromError(err).Code)
	require.Len(t, repo.created, 1)
	stored := repo.certificates[repo.created[0]]
	assert.True(t, stored.Valid)
	assert.Nil(t, stored.FilePath)
}

func TestCertificateAutoGenerateRespectsSetting(t *testing.T) {
	repo := &mockCertificateRepo{}
	svc := newCertificateService(t, repo, &mockProgressCalculator{overall: 100}, &mockGradeCalculator{final: 95}, &mockCertSettings{virtual: 80, complete: 70, auto: false}, &mockRenderer{})

	svc.AutoGenerate(context.Background(), "e1")
	assert.Empty(t, repo.created)
}

func TestCertificateAutoGenerateIssuesBothTiers(t *testing.T) {
	repo := &mockCertificateRepo{}
	svc := newCertificateService(t, repo, &mockProgressCalculator{overall: 100}, &mockGradeCalculator{final: 95}, &mockCertSettings{virtual: 80, complete: 70, auto: true}, &mockRenderer{})

	svc.AutoGenerate(context.Background(), "e1")
	assert.Len(t, repo.created, 2)
}

func TestCertificateInvalidateKeepsRow(t *testing.T) {
	repo := &mockCertificateRepo{certificates: map[string]models.Certificate{
		"cert-1": {ID: "cert-1", EnrollmentID: "e1", Type: models.CertificateVirtual, Valid: true},
	}}
	svc := newCertificateService(t, repo, &mockProgressCalculator{overall: 100}, &mockGradeCalculator{final: 95}, &mockCertSettings{virtual: 80, complete: 70}, &mockRenderer{})

	certificate, err := svc.Invalidate(context.Background(), "cert-1", "issued in error")
	require.NoError(t, err)
	assert.False(t, certificate.Valid)
	assert.Equal(t, "issued in error", repo.invalidated["cert-1"])
	_, stillThere := repo.certificates["cert-1"]
	assert.True(t, stillThere)
}

func TestCertificateRegenerateAfterInvalidation(t *testing.T) {
	repo := &mockCertificateRepo{certificates: map[string]models.Certificate{
		"cert-1": {ID: "cert-1", EnrollmentID: "e1", Type: models.CertificateVirtual, Valid: false},
	}}
	svc := newCertificateService(t, repo, &mockProgressCalculator{overall: 100}, &mockGradeCalculator{final: 95}, &mockCertSettings{virtual: 80, complete: 70}, &mockRenderer{})

	certificate, err := svc.Generate(context.Background(), "e1", models.CertificateVirtual)
	require.NoError(t, err)
	assert.NotEqual(t, "cert-1", certificate.ID)
	assert.True(t, certificate.Valid)
}
