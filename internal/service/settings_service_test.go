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
	appErrors "github.com/noah-isme/lms-go-api/pkg/errors"
)

type mockSettingsRepo struct {
	values map[string]string
	fail   bool
}

func (m *mockSettingsRepo) Get(ctx context.Context, key string) (*models.Configuration, error) {
	if m.fail {
		return nil, errors.New("connection refused")
	}
	if v, ok := m.values[key]; ok {
		return &models.Configuration{Key: key, Value: v}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSettingsRepo) ListByKeys(ctx context.Context, keys []string) ([]models.Configuration, error) {
	if m.fail {
		return nil, errors.New("connection refused")
	}
	var out []models.Configuration
	for _, key := range keys {
		if v, ok := m.values[key]; ok {
			out = append(out, models.Configuration{Key: key, Value: v})
		}
	}
	return out, nil
}

func (m *mockSettingsRepo) Upsert(ctx context.Context, cfg *models.Configuration) error {
	if m.values == nil {
		m.values = make(map[string]string)
	}
	m.values[cfg.Key] = cfg.Value
	return nil
}

func TestSettingsDefaultsWhenMissing(t *testing.T) {
	svc := NewSettingsService(&mockSettingsRepo{}, zap.NewNop())
	ctx := context.Background()

	assert.Equal(t, 80.0, svc.VirtualCertificateThreshold(ctx))
	assert.Equal(t, 70.0, svc.CompleteCertificateThreshold(ctx))
	iw, aw := svc.GradeWeights(ctx)
	assert.Equal(t, 50.0, iw)
	assert.Equal(t, 50.0, aw)
	assert.True(t, svc.AutoGenerateCertificates(ctx))
}

func TestSettingsDefaultsWhenRepoFails(t *testing.T) {
	svc := NewSettingsService(&mockSettingsRepo{fail: true}, zap.NewNop())
	ctx := context.Background()

	assert.Equal(t, 80.0, svc.VirtualCertificateThreshold(ctx))
	assert.True(t, svc.AutoGenerateCertificates(ctx))
}

func TestSettingsStoredValuesWin(t *testing.T) {
	svc := NewSettingsService(&mockSettingsRepo{values: map[string]string{
		KeyVirtualThreshold:  "90",
		KeyInteractiveWeight: "60",
		KeyActivitiesWeight:  "40",
		KeyAutoGenerateCerts: "false",
	}}, zap.NewNop())
	ctx := context.Background()

	assert.Equal(t, 90.0, svc.VirtualCertificateThreshold(ctx))
	iw, aw := svc.GradeWeights(ctx)
	assert.Equal(t, 60.0, iw)
	assert.Equal(t, 40.0, aw)
	assert.False(t, svc.AutoGenerateCertificates(ctx))
}

func TestSettingsMalformedValueFallsBack(t *testing.T) {
	svc := NewSettingsService(&mockSettingsRepo{values: map[string]string{
		KeyCompleteThreshold: "not-a-number",
		KeyAutoGenerateCerts: "maybe",
	}}, zap.NewNop())
	ctx := context.Background()

	assert.Equal(t, 70.0, svc.CompleteCertificateThreshold(ctx))
	assert.True(t, svc.AutoGenerateCertificates(ctx))
}

func TestSettingsUpdateValidatesKeyAndValue(t *testing.T) {
	repo := &mockSettingsRepo{}
	svc := NewSettingsService(repo, zap.NewNop())
	ctx := context.Background()

	_, err := svc.Update(ctx, "unknown_key", "1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Update(ctx, KeyVirtualThreshold, "ninety")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	cfg, err := svc.Update(ctx, KeyVirtualThreshold, "85")
	require.NoError(t, err)
	assert.Equal(t, "85", cfg.Value)
	assert.Equal(t, 85.0, svc.VirtualCertificateThreshold(ctx))
}

func TestSettingsListIncludesDefaults(t *testing.T) {
	svc := NewSettingsService(&mockSettingsRepo{values: map[string]string{
		KeyVirtualThreshold: "75",
	}}, zap.NewNop())

	settings, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, settings, 5)

	byKey := make(map[string]models.Configuration, len(settings))
	for _, cfg := range settings {
		byKey[cfg.Key] = cfg
	}
	assert.Equal(t, "75", byKey[KeyVirtualThreshold].Value)
	assert.Equal(t, "70", byKey[KeyCompleteThreshold].Value)
	assert.Equal(t, "true", byKey[KeyAutoGenerateCerts].Value)
}
