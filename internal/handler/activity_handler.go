package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-go-api/internal/service"
	appErrors "github.com/noah-isme/lms-go-api/pkg/errors"
	"github.com/noah-isme/lms-go-api/pkg/response"
)

// ActivityHandler exposes activity submission endpoints.
type ActivityHandler struct {
	activities *service.ActivityService
}

// NewActivityHandler constructs ActivityHandler.
func NewActivityHandler(activities *service.ActivityService) *ActivityHandler {
	return &ActivityHandler{activities: activities}
}

// Submit godoc
// @Summary Hand in work for an activity
// @Tags Activities
// @Accept json
// @Produce json
// @Param payload body service.SubmitActivityRequest true "Submission payload"
// @Success 201 {object} response.Envelope
// @Router /activity-submissions [post]
func (h *ActivityHandler) Submit(c *gin.Context) {
	var req service.SubmitActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	submission, err := h.activities.Submit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, submission)
}

// Grade godoc
// @Summary Grade a submission
// @Tags Activities
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body service.GradeActivityRequest true "Grading payload"
// @Success 200 {object} response.Envelope
// @Router /activity-submissions/{id}/grade [put]
func (h *ActivityHandler) Grade(c *gin.Context) {
	var req service.GradeActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.SubmissionID = c.Param("id")
	submission, err := h.activities.Grade(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}

// Return godoc
// @Summary Return a graded submission for rework
// @Tags Activities
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Router /activity-submissions/{id}/return [put]
func (h *ActivityHandler) Return(c *gin.Context) {
	submission, err := h.activities.Return(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}

// Get godoc
// @Summary Get a submission
// @Tags Activities
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Router /activity-submissions/{id} [get]
func (h *ActivityHandler) Get(c *gin.Context) {
	submission, err := h.activities.GetSubmission(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}
