package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-go-api/internal/service"
	appErrors "github.com/noah-isme/lms-go-api/pkg/errors"
	"github.com/noah-isme/lms-go-api/pkg/response"
)

// BreakpointHandler exposes unit breakpoint endpoints.
type BreakpointHandler struct {
	breakpoints *service.BreakpointService
	enrollments *service.EnrollmentService
}

// NewBreakpointHandler constructs BreakpointHandler.
func NewBreakpointHandler(breakpoints *service.BreakpointService, enrollments *service.EnrollmentService) *BreakpointHandler {
	return &BreakpointHandler{breakpoints: breakpoints, enrollments: enrollments}
}

// Record godoc
// @Summary Record unit progress and store any newly crossed milestone
// @Tags Breakpoints
// @Accept json
// @Produce json
// @Param payload body service.RecordBreakpointRequest true "Breakpoint payload"
// @Success 200 {object} response.Envelope
// @Router /breakpoints [post]
func (h *BreakpointHandler) Record(c *gin.Context) {
	var req service.RecordBreakpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	breakpoint, err := h.breakpoints.Record(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if breakpoint == nil {
		response.JSON(c, http.StatusOK, gin.H{"recorded": false}, nil)
		return
	}
	response.JSON(c, http.StatusOK, breakpoint, nil)
}

// List godoc
// @Summary List recorded milestones for a unit
// @Tags Breakpoints
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param unitId path string true "Unit ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/units/{unitId}/breakpoints [get]
func (h *BreakpointHandler) List(c *gin.Context) {
	breakpoints, err := h.breakpoints.List(c.Request.Context(), c.Param("id"), c.Param("unitId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, breakpoints, nil)
}

// FinalQuizAccess godoc
// @Summary Report whether the unit's final quiz is unlocked
// @Tags Breakpoints
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param unitId path string true "Unit ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/units/{unitId}/final-quiz-access [get]
func (h *BreakpointHandler) FinalQuizAccess(c *gin.Context) {
	enrollment, err := h.enrollments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	allowed := h.breakpoints.CanAccessFinalQuiz(c.Request.Context(), enrollment, c.Param("unitId"))
	response.JSON(c, http.StatusOK, gin.H{"allowed": allowed}, nil)
}
