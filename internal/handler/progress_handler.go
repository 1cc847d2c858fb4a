package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-go-api/internal/service"
	appErrors "github.com/noah-isme/lms-go-api/pkg/errors"
	"github.com/noah-isme/lms-go-api/pkg/response"
)

// ProgressHandler exposes per-content progress tracking endpoints.
type ProgressHandler struct {
	progress    *service.ProgressService
	enrollments *service.EnrollmentService
}

// NewProgressHandler constructs ProgressHandler.
func NewProgressHandler(progress *service.ProgressService, enrollments *service.EnrollmentService) *ProgressHandler {
	return &ProgressHandler{progress: progress, enrollments: enrollments}
}

type completeProgressRequest struct {
	service.TrackProgressRequest
	Score *float64 `json:"score,omitempty"`
}

// Track godoc
// @Summary Upsert a progress record for a piece of content
// @Tags Progress
// @Accept json
// @Produce json
// @Param payload body service.TrackProgressRequest true "Progress payload"
// @Success 200 {object} response.Envelope
// @Router /progress/track [post]
func (h *ProgressHandler) Track(c *gin.Context) {
	var req service.TrackProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.progress.Track(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Start godoc
// @Summary Mark a progress record as started
// @Tags Progress
// @Produce json
// @Param id path string true "Progress record ID"
// @Success 200 {object} response.Envelope
// @Router /progress/{id}/start [post]
func (h *ProgressHandler) Start(c *gin.Context) {
	record, err := h.progress.MarkStarted(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Complete godoc
// @Summary Record content completion and refresh enrollment progress
// @Tags Progress
// @Accept json
// @Produce json
// @Param payload body completeProgressRequest true "Completion payload"
// @Success 200 {object} response.Envelope
// @Router /progress/complete [post]
func (h *ProgressHandler) Complete(c *gin.Context) {
	var req completeProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.progress.Complete(c.Request.Context(), req.TrackProgressRequest, req.Score)
	if err != nil {
		response.Error(c, err)
		return
	}
	if _, err := h.enrollments.RefreshProgress(c.Request.Context(), req.EnrollmentID); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// List godoc
// @Summary List progress records for an enrollment
// @Tags Progress
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/progress [get]
func (h *ProgressHandler) List(c *gin.Context) {
	records, err := h.progress.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// Summary godoc
// @Summary Computed progress summary for an enrollment
// @Tags Progress
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/progress/summary [get]
func (h *ProgressHandler) Summary(c *gin.Context) {
	enrollment, err := h.enrollments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	summary, err := h.progress.Summary(c.Request.Context(), enrollment)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
