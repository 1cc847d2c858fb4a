package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-go-api/internal/models"
	"github.com/noah-isme/lms-go-api/internal/service"
)

type settingsRepoMock struct {
	values map[string]string
}

func (m *settingsRepoMock) Get(ctx context.Context, key string) (*models.Configuration, error) {
	if v, ok := m.values[key]; ok {
		return &models.Configuration{Key: key, Value: v}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *settingsRepoMock) ListByKeys(ctx context.Context, keys []string) ([]models.Configuration, error) {
	var out []models.Configuration
	for _, key := range keys {
		if v, ok := m.values[key]; ok {
			out = append(out, models.Configuration{Key: key, Value: v})
		}
	}
	return out, nil
}

func (m *settingsRepoMock) Upsert(ctx context.Context, cfg *models.Configuration) error {
	if m.values == nil {
		m.values = make(map[string]string)
	}
	m.values[cfg.Key] = cfg.Value
	return nil
}

func newSettingsHandler(repo *settingsRepoMock) *SettingsHandler {
	return NewSettingsHandler(service.NewSettingsService(repo, zap.NewNop()))
}

func TestSettingsHandlerList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newSettingsHandler(&settingsRepoMock{values: map[string]string{
		service.KeyVirtualThreshold: "90",
	}})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/settings", nil)
	c.Request = req

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data []models.Configuration `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Len(t, envelope.Data, 5)
}

func TestSettingsHandlerUpdate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &settingsRepoMock{}
	handler := newSettingsHandler(repo)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(updateSettingRequest{Value: "85"})
	req, _ := http.NewRequest(http.MethodPut, "/settings/certificate_virtual_threshold", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "key", Value: service.KeyVirtualThreshold}}

	handler.Update(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "85", repo.values[service.KeyVirtualThreshold])
}

func TestSettingsHandlerUpdateRejectsUnknownKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newSettingsHandler(&settingsRepoMock{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(updateSettingRequest{Value: "1"})
	req, _ := http.NewRequest(http.MethodPut, "/settings/made_up_key", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "key", Value: "made_up_key"}}

	handler.Update(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSettingsHandlerUpdateRejectsEmptyBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newSettingsHandler(&settingsRepoMock{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPut, "/settings/certificate_virtual_threshold", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "key", Value: service.KeyVirtualThreshold}}

	handler.Update(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
