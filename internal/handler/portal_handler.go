package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/archprep/mockportal-backend/internal/exam"
	"github.com/archprep/mockportal-backend/internal/middleware"
	"github.com/archprep/mockportal-backend/internal/proctor"
	"github.com/archprep/mockportal-backend/internal/repository"
	"github.com/archprep/mockportal-backend/internal/response"
	"github.com/archprep/mockportal-backend/internal/service"
	"github.com/archprep/mockportal-backend/internal/validator"
)

// PortalHandler serves the student test-taking surface.
type PortalHandler struct {
	testService    *service.TestService
	attemptService *service.AttemptService
	attempts       *repository.AttemptRepository
	log            zerolog.Logger
}

// NewPortalHandler creates a new PortalHandler.
func NewPortalHandler(testService *service.TestService, attemptService *service.AttemptService, attempts *repository.AttemptRepository, log zerolog.Logger) *PortalHandler {
	return &PortalHandler{
		testService:    testService,
		attemptService: attemptService,
		attempts:       attempts,
		log:            log.With().Str("component", "portal_handler").Logger(),
	}
}

type startTestRequest struct {
	TestID string `json:"test_id" binding:"required,uuid"`
}

type answerRequest struct {
	QuestionID   int `json:"question_id" binding:"required"`
	DisplayIndex int `json:"display_index" binding:"min=0,max=3"`
}

type navigateRequest struct {
	Index int `json:"index" binding:"min=0"`
}

// ListTests godoc
// GET /api/v1/student/tests
func (h *PortalHandler) ListTests(c *gin.Context) {
	summaries, err := h.testService.Catalog(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list tests")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, summaries)
}

// SavedState godoc
// GET /api/v1/student/session/saved
// Returns resume information when a snapshot exists, 404 otherwise.
func (h *PortalHandler) SavedState(c *gin.Context) {
	claims := middleware.GetClaims(c)

	info, err := h.attemptService.SavedState(c.Request.Context(), claims.UserID)
	if errors.Is(err, service.ErrNoSavedState) {
		response.Fail(c, http.StatusNotFound, response.ErrNoSavedState)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Int("user_id", claims.UserID).Msg("failed to load saved state")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, info)
}

// StartTest godoc
// POST /api/v1/student/session/start
// Starts a fresh attempt, shuffling options and resetting the timer.
func (h *PortalHandler) StartTest(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req startTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	testID, err := uuid.Parse(req.TestID)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	sess, err := h.attemptService.Start(c.Request.Context(), claims.UserID, claims.Email, testID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrTestNotAvailable)
		return
	case errors.Is(err, exam.ErrMalformedQuestion):
		h.log.Error().Err(err).Str("test_id", testID.String()).Msg("test has malformed question")
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrTestMalformed)
		return
	case err != nil:
		h.log.Error().Err(err).Msg("failed to start test")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, sess)
}

// ResumeTest godoc
// POST /api/v1/student/session/resume
// Restores the saved attempt verbatim. A missing or invalid snapshot yields
// 404 so the client falls back to the test list.
func (h *PortalHandler) ResumeTest(c *gin.Context) {
	claims := middleware.GetClaims(c)

	sess, err := h.attemptService.Resume(c.Request.Context(), claims.UserID, claims.Email)
	if errors.Is(err, service.ErrNoSavedState) {
		response.Fail(c, http.StatusNotFound, response.ErrNoSavedState)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Int("user_id", claims.UserID).Msg("failed to resume test")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, sess)
}

// DiscardSaved godoc
// DELETE /api/v1/student/session/saved
func (h *PortalHandler) DiscardSaved(c *gin.Context) {
	claims := middleware.GetClaims(c)

	if err := h.attemptService.Discard(c.Request.Context(), claims.UserID); err != nil {
		h.log.Error().Err(err).Int("user_id", claims.UserID).Msg("failed to discard saved state")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"discarded": true})
}

// State godoc
// GET /api/v1/student/session
func (h *PortalHandler) State(c *gin.Context) {
	claims := middleware.GetClaims(c)

	sess, err := h.attemptService.State(claims.UserID)
	if errors.Is(err, service.ErrNoActiveAttempt) {
		response.Fail(c, http.StatusNotFound, response.ErrTestNotRunning)
		return
	}
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, sess)
}

// Answer godoc
// POST /api/v1/student/session/answer
func (h *PortalHandler) Answer(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req answerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	err := h.attemptService.Answer(claims.UserID, req.QuestionID, req.DisplayIndex)
	h.respondMutation(c, err)
}

// ClearResponse godoc
// POST /api/v1/student/session/clear
func (h *PortalHandler) ClearResponse(c *gin.Context) {
	claims := middleware.GetClaims(c)
	h.respondMutation(c, h.attemptService.ClearResponse(claims.UserID))
}

// SaveAndNext godoc
// POST /api/v1/student/session/next
func (h *PortalHandler) SaveAndNext(c *gin.Context) {
	claims := middleware.GetClaims(c)
	h.respondMutation(c, h.attemptService.SaveAndNext(claims.UserID))
}

// MarkAndNext godoc
// POST /api/v1/student/session/mark
func (h *PortalHandler) MarkAndNext(c *gin.Context) {
	claims := middleware.GetClaims(c)
	h.respondMutation(c, h.attemptService.MarkAndNext(claims.UserID))
}

// NavigateTo godoc
// POST /api/v1/student/session/navigate
func (h *PortalHandler) NavigateTo(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req navigateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	h.respondMutation(c, h.attemptService.NavigateTo(claims.UserID, req.Index))
}

// Submit godoc
// POST /api/v1/student/session/submit
func (h *PortalHandler) Submit(c *gin.Context) {
	claims := middleware.GetClaims(c)
	h.respondMutation(c, h.attemptService.Submit(claims.UserID))
}

// ReportEvent godoc
// POST /api/v1/student/session/events
// Feeds one raw client event through the violation detector and returns the
// resulting actions.
func (h *PortalHandler) ReportEvent(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var ev proctor.Event
	if fields := validator.Bind(c, &ev); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	actions, err := h.attemptService.HandleEvent(c.Request.Context(), claims.UserID, ev)
	if errors.Is(err, service.ErrNoActiveAttempt) {
		response.Fail(c, http.StatusNotFound, response.ErrTestNotRunning)
		return
	}
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"actions": actions})
}

// AcknowledgeFullscreen godoc
// POST /api/v1/student/session/fullscreen-ack
// Lowers the hard block after the student re-entered fullscreen.
func (h *PortalHandler) AcknowledgeFullscreen(c *gin.Context) {
	claims := middleware.GetClaims(c)

	err := h.attemptService.AcknowledgeFullscreen(claims.UserID)
	if errors.Is(err, service.ErrNoActiveAttempt) {
		response.Fail(c, http.StatusNotFound, response.ErrTestNotRunning)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"acknowledged": true})
}

// MyAttempts godoc
// GET /api/v1/student/attempts
func (h *PortalHandler) MyAttempts(c *gin.Context) {
	claims := middleware.GetClaims(c)

	attempts, err := h.attempts.ListByUser(c.Request.Context(), claims.UserID)
	if err != nil {
		h.log.Error().Err(err).Int("user_id", claims.UserID).Msg("failed to list attempts")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, attempts)
}

// respondMutation maps session mutation errors onto the response envelope.
func (h *PortalHandler) respondMutation(c *gin.Context, err error) {
	switch {
	case err == nil:
		response.Success(c, http.StatusOK, gin.H{"ok": true})
	case errors.Is(err, service.ErrNoActiveAttempt), errors.Is(err, exam.ErrNotRunning):
		response.Fail(c, http.StatusConflict, response.ErrTestNotRunning)
	case errors.Is(err, service.ErrBlocked):
		response.Fail(c, http.StatusLocked, response.ErrInteractionLocked)
	case errors.Is(err, exam.ErrIndexOutOfRange), errors.Is(err, exam.ErrUnknownQuestion):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
	default:
		h.log.Error().Err(err).Msg("session mutation failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
