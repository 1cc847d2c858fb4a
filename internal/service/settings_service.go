package service

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-go-api/internal/models"
	appErrors "github.com/noah-isme/lms-go-api/pkg/errors"
)

// Configuration keys consumed by the progress/certificate pipeline.
const (
	KeyVirtualThreshold  = "certificate_virtual_threshold"
	KeyCompleteThreshold = "certificate_complete_threshold"
	KeyInteractiveWeight = "grade_weights.interactive"
	KeyActivitiesWeight  = "grade_weights.activities"
	KeyAutoGenerateCerts = "auto_generate_certificates"
)

type settingsRepository interface {
	Get(ctx context.Context, key string) (*models.Configuration, error)
	ListByKeys(ctx context.Context, keys []string) ([]models.Configuration, error)
	Upsert(ctx context.Context, cfg *models.Configuration) error
}

type allowedSetting struct {
	Key         string
	Type        models.ConfigurationType
	Description string
	Default     string
}

var allowedSettings = map[string]allowedSetting{
	KeyVirtualThreshold: {
		Key:         KeyVirtualThreshold,
		Type:        models.ConfigurationTypeNumber,
		Description: "Minimum overall progress for a virtual certificate",
		Default:     "80",
	},
	KeyCompleteThreshold: {
		Key:         KeyCompleteThreshold,
		Type:        models.ConfigurationTypeNumber,
		Description: "Minimum final score for a complete certificate",
		Default:     "70",
	},
	KeyInteractiveWeight: {
		Key:         KeyInteractiveWeight,
		Type:        models.ConfigurationTypeNumber,
		Description: "Weight of quiz performance in the final score",
		Default:     "50",
	},
	KeyActivitiesWeight: {
		Key:         KeyActivitiesWeight,
		Type:        models.ConfigurationTypeNumber,
		Description: "Weight of activity performance in the final score",
		Default:     "50",
	},
	KeyAutoGenerateCerts: {
		Key:         KeyAutoGenerateCerts,
		Type:        models.ConfigurationTypeBoolean,
		Description: "Attempt certificate generation automatically on progress changes",
		Default:     "true",
	},
}

var settingKeys = []string{
	KeyVirtualThreshold,
	KeyCompleteThreshold,
	KeyInteractiveWeight,
	KeyActivitiesWeight,
	KeyAutoGenerateCerts,
}

// SettingsService exposes typed accessors over configuration rows. Missing
// or malformed rows always fall back to built-in defaults, never an error.
type SettingsService struct {
	repo   settingsRepository
	logger *zap.Logger
}

// NewSettingsService constructs a SettingsService.
func NewSettingsService(repo settingsRepository, logger *zap.Logger) *SettingsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsService{repo: repo, logger: logger}
}

// VirtualCertificateThreshold returns the minimum overall progress for
// virtual certificate eligibility.
func (s *SettingsService) VirtualCertificateThreshold(ctx context.Context) float64 {
	return s.number(ctx, KeyVirtualThreshold)
}

// CompleteCertificateThreshold returns the minimum final score for complete
// certificate eligibility.
func (s *SettingsService) CompleteCertificateThreshold(ctx context.Context) float64 {
	return s.number(ctx, KeyCompleteThreshold)
}

// GradeWeights returns the interactive and activities weights. They are
// taken at face value and not normalized to sum to 100.
func (s *SettingsService) GradeWeights(ctx context.Context) (float64, float64) {
	return s.number(ctx, KeyInteractiveWeight), s.number(ctx, KeyActivitiesWeight)
}

// AutoGenerateCertificates reports whether progress updates should attempt
// certificate generation opportunistically.
func (s *SettingsService) AutoGenerateCertificates(ctx context.Context) bool {
	raw := s.value(ctx, KeyAutoGenerateCerts)
	enabled, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		fallback, _ := strconv.ParseBool(allowedSettings[KeyAutoGenerateCerts].Default)
		return fallback
	}
	return enabled
}

// List returns every known setting with its effective value.
func (s *SettingsService) List(ctx context.Context) ([]models.Configuration, error) {
	stored, err := s.repo.ListByKeys(ctx, settingKeys)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list settings")
	}
	byKey := make(map[string]models.Configuration, len(stored))
	for _, cfg := range stored {
		byKey[cfg.Key] = cfg
	}
	result := make([]models.Configuration, 0, len(settingKeys))
	for _, key := range settingKeys {
		if cfg, ok := byKey[key]; ok {
			result = append(result, cfg)
			continue
		}
		spec := allowedSettings[key]
		desc := spec.Description
		result = append(result, models.Configuration{Key: key, Value: spec.Default, Type: spec.Type, Description: &desc})
	}
	return result, nil
}

// Update validates and persists a setting value.
func (s *SettingsService) Update(ctx context.Context, key, value string) (*models.Configuration, error) {
	spec, ok := allowedSettings[key]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown setting key")
	}
	value = strings.TrimSpace(value)
	switch spec.Type {
	case models.ConfigurationTypeNumber:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "setting value must be numeric")
		}
	case models.ConfigurationTypeBoolean:
		if _, err := strconv.ParseBool(value); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "setting value must be boolean")
		}
	}
	desc := spec.Description
	cfg := &models.Configuration{Key: key, Value: value, Type: spec.Type, Description: &desc}
	if err := s.repo.Upsert(ctx, cfg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update setting")
	}
	return cfg, nil
}

func (s *SettingsService) value(ctx context.Context, key string) string {
	cfg, err := s.repo.Get(ctx, key)
	if err != nil {
		if err != sql.ErrNoRows {
			s.logger.Warn("setting lookup failed", zap.String("key", key), zap.Error(err))
		}
		return allowedSettings[key].Default
	}
	return cfg.Value
}

func (s *SettingsService) number(ctx context.Context, key string) float64 {
	raw := s.value(ctx, key)
	parsed, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		fallback, _ := strconv.ParseFloat(allowedSettings[key].Default, 64)
		return fallback
	}
	return parsed
}
