package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-go-api/internal/service"
	appErrors "github.com/noah-isme/lms-go-api/pkg/errors"
	"github.com/noah-isme/lms-go-api/pkg/response"
)

// QuizHandler exposes quiz attempt endpoints.
type QuizHandler struct {
	quizzes *service.QuizService
}

// NewQuizHandler constructs QuizHandler.
func NewQuizHandler(quizzes *service.QuizService) *QuizHandler {
	return &QuizHandler{quizzes: quizzes}
}

// Start godoc
// @Summary Start a quiz attempt
// @Tags Quizzes
// @Accept json
// @Produce json
// @Param payload body service.StartQuizAttemptRequest true "Attempt payload"
// @Success 201 {object} response.Envelope
// @Router /quiz-attempts [post]
func (h *QuizHandler) Start(c *gin.Context) {
	var req service.StartQuizAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	attempt, err := h.quizzes.StartAttempt(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, attempt)
}

// Submit godoc
// @Summary Submit answers for an attempt
// @Tags Quizzes
// @Accept json
// @Produce json
// @Param id path string true "Attempt ID"
// @Param payload body service.SubmitQuizAttemptRequest true "Submission payload"
// @Success 200 {object} response.Envelope
// @Router /quiz-attempts/{id}/submit [post]
func (h *QuizHandler) Submit(c *gin.Context) {
	var req service.SubmitQuizAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.AttemptID = c.Param("id")
	attempt, err := h.quizzes.SubmitAttempt(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, attempt, nil)
}

// Abandon godoc
// @Summary Abandon an in-progress attempt
// @Tags Quizzes
// @Produce json
// @Param id path string true "Attempt ID"
// @Success 200 {object} response.Envelope
// @Router /quiz-attempts/{id}/abandon [post]
func (h *QuizHandler) Abandon(c *gin.Context) {
	attempt, err := h.quizzes.AbandonAttempt(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, attempt, nil)
}

// Get godoc
// @Summary Get a quiz attempt
// @Tags Quizzes
// @Produce json
// @Param id path string true "Attempt ID"
// @Success 200 {object} response.Envelope
// @Router /quiz-attempts/{id} [get]
func (h *QuizHandler) Get(c *gin.Context) {
	attempt, err := h.quizzes.GetAttempt(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, attempt, nil)
}
