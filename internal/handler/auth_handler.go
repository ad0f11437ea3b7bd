package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/archprep/mockportal-backend/internal/config"
	"github.com/archprep/mockportal-backend/internal/middleware"
	"github.com/archprep/mockportal-backend/internal/model"
	"github.com/archprep/mockportal-backend/internal/response"
	"github.com/archprep/mockportal-backend/internal/service"
	"github.com/archprep/mockportal-backend/internal/validator"
)

// AuthHandler serves signup, login and session verification.
type AuthHandler struct {
	cfg         *config.Config
	authService *service.AuthService
	log         zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(cfg *config.Config, authService *service.AuthService, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		cfg:         cfg,
		authService: authService,
		log:         log.With().Str("component", "auth_handler").Logger(),
	}
}

// Signup godoc
// POST /api/v1/auth/signup
// Registers a student account pending admin approval.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req model.SignupRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	user, err := h.authService.Signup(c.Request.Context(), req)
	if errors.Is(err, service.ErrEmailTaken) {
		response.Fail(c, http.StatusConflict, response.ErrConflict)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("signup failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"email":    user.Email,
		"approved": user.Approved,
	})
}

// Login godoc
// POST /api/v1/auth/login
// Authenticates a user; the login device becomes the account's only active
// device.
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if req.UserAgent == "" {
		req.UserAgent = c.Request.UserAgent()
	}

	token, user, err := h.authService.Login(c.Request.Context(), req)
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
		return
	case errors.Is(err, service.ErrPendingApproval):
		response.Fail(c, http.StatusForbidden, response.ErrPendingApproval)
		return
	case err != nil:
		h.log.Error().Err(err).Msg("login failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"token": token,
		"user": gin.H{
			"id":    user.ID,
			"email": user.Email,
			"role":  user.Role,
		},
	})
}

// VerifySession godoc
// POST /api/v1/auth/verify-session
// Clients poll this to learn whether their device still holds the account's
// active session.
func (h *AuthHandler) VerifySession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.VerifySessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	deviceToken := req.DeviceToken
	if deviceToken == "" {
		deviceToken = claims.DeviceToken
	}

	active, err := h.authService.VerifySession(c.Request.Context(), claims.UserID, deviceToken)
	if err != nil {
		h.log.Error().Err(err).Int("user_id", claims.UserID).Msg("verify session failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"valid": active})
}

// Logout godoc
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	if err := h.authService.Logout(c.Request.Context(), claims.UserID, claims.DeviceToken); err != nil {
		h.log.Error().Err(err).Int("user_id", claims.UserID).Msg("logout failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"logged_out": true})
}

// Settings godoc
// GET /api/v1/settings
// Public client tunables, served before login.
func (h *AuthHandler) Settings(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{
		"session_poll_interval_ms":  h.cfg.SessionPollInterval.Milliseconds(),
		"fullscreen_retry_delay_ms": h.cfg.Proctor.FullscreenRetryDelay.Milliseconds(),
	})
}
