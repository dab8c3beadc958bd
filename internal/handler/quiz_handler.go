package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edunik/edunik-api/internal/service"
	appErrors "github.com/edunik/edunik-api/pkg/errors"
	"github.com/edunik/edunik-api/pkg/response"
)

// QuizHandler handles quiz scheduling, live sessions and monitoring.
type QuizHandler struct {
	service *service.QuizService
}

// NewQuizHandler constructs a quiz handler.
func NewQuizHandler(svc *service.QuizService) *QuizHandler {
	return &QuizHandler{service: svc}
}

// List godoc
// @Summary List quizzes
// @Tags Quizzes
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /quizzes [get]
func (h *QuizHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	quizzes, err := h.service.List(c.Request.Context(), tenantFromContext(c), claims.UserID, isAdmin(claims))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, quizzes, nil)
}

// Get godoc
// @Summary Get quiz by id
// @Tags Quizzes
// @Produce json
// @Param id path string true "Quiz ID"
// @Success 200 {object} response.Envelope
// @Router /quizzes/{id} [get]
func (h *QuizHandler) Get(c *gin.Context) {
	quiz, err := h.service.Get(c.Request.Context(), tenantFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, quiz, nil)
}

// Create godoc
// @Summary Schedule a quiz
// @Tags Quizzes
// @Accept json
// @Produce json
// @Param payload body service.CreateQuizRequest true "Quiz payload"
// @Success 201 {object} response.Envelope
// @Router /quizzes [post]
func (h *QuizHandler) Create(c *gin.Context) {
	var req service.CreateQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	quiz, err := h.service.Create(c.Request.Context(), tenantFromContext(c), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, quiz)
}

// Delete godoc
// @Summary Delete a quiz and its live sessions
// @Tags Quizzes
// @Produce json
// @Param id path string true "Quiz ID"
// @Success 204
// @Router /quizzes/{id} [delete]
func (h *QuizHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if err := h.service.Delete(c.Request.Context(), tenantFromContext(c), claims.UserID, c.Param("id"), isAdmin(claims)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ReportSession godoc
// @Summary Report the caller's live quiz session state
// @Tags Quizzes
// @Accept json
// @Produce json
// @Param id path string true "Quiz ID"
// @Param payload body service.SessionUpdateRequest true "Session state"
// @Success 200 {object} response.Envelope
// @Router /quizzes/{id}/session [put]
func (h *QuizHandler) ReportSession(c *gin.Context) {
	var req service.SessionUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	session, err := h.service.ReportSession(c.Request.Context(), tenantFromContext(c), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

type submitResultPayload struct {
	Score float64 `json:"score"`
}

// SubmitResult godoc
// @Summary Record the caller's quiz score
// @Tags Quizzes
// @Accept json
// @Produce json
// @Param id path string true "Quiz ID"
// @Param payload body submitResultPayload true "Score"
// @Success 201 {object} response.Envelope
// @Router /quizzes/{id}/results [post]
func (h *QuizHandler) SubmitResult(c *gin.Context) {
	var req submitResultPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	result, err := h.service.SubmitResult(c.Request.Context(), tenantFromContext(c), c.Param("id"), claims.UserID, req.Score)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Results godoc
// @Summary Final standings, one best score per student
// @Tags Quizzes
// @Produce json
// @Param id path string true "Quiz ID"
// @Success 200 {object} response.Envelope
// @Router /quizzes/{id}/results [get]
func (h *QuizHandler) Results(c *gin.Context) {
	results, err := h.service.Results(c.Request.Context(), tenantFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, nil)
}

// StartMonitoring godoc
// @Summary Open the caller's live monitor for a quiz
// @Tags Quizzes
// @Produce json
// @Param id path string true "Quiz ID"
// @Success 204
// @Router /quizzes/{id}/monitor [post]
func (h *QuizHandler) StartMonitoring(c *gin.Context) {
	claims := claimsFromContext(c)
	if err := h.service.StartMonitoring(c.Request.Context(), tenantFromContext(c), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Monitor godoc
// @Summary The caller's current monitor view
// @Tags Quizzes
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /quizzes/monitor [get]
func (h *QuizHandler) Monitor(c *gin.Context) {
	claims := claimsFromContext(c)
	view, err := h.service.Monitor(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// StopMonitoring godoc
// @Summary Close the caller's live monitor
// @Tags Quizzes
// @Produce json
// @Success 204
// @Router /quizzes/monitor [delete]
func (h *QuizHandler) StopMonitoring(c *gin.Context) {
	claims := claimsFromContext(c)
	h.service.StopMonitoring(c.Request.Context(), claims.UserID)
	response.NoContent(c)
}

// Finish godoc
// @Summary End a quiz, clearing its live sessions
// @Tags Quizzes
// @Produce json
// @Param id path string true "Quiz ID"
// @Success 204
// @Router /quizzes/{id}/finish [post]
func (h *QuizHandler) Finish(c *gin.Context) {
	claims := claimsFromContext(c)
	if err := h.service.Finish(c.Request.Context(), tenantFromContext(c), claims.UserID, c.Param("id"), isAdmin(claims)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
