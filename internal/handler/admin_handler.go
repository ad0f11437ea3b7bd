package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/archprep/mockportal-backend/internal/model"
	"github.com/archprep/mockportal-backend/internal/repository"
	"github.com/archprep/mockportal-backend/internal/response"
	"github.com/archprep/mockportal-backend/internal/service"
	"github.com/archprep/mockportal-backend/internal/validator"
)

// AdminHandler serves account approval, test management and result review.
type AdminHandler struct {
	authService *service.AuthService
	testService *service.TestService
	users       *repository.UserRepository
	tests       *repository.TestRepository
	attempts    *repository.AttemptRepository
	devices     *repository.DeviceSessionRepository
	log         zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(authService *service.AuthService, testService *service.TestService, users *repository.UserRepository, tests *repository.TestRepository, attempts *repository.AttemptRepository, devices *repository.DeviceSessionRepository, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		authService: authService,
		testService: testService,
		users:       users,
		tests:       tests,
		attempts:    attempts,
		devices:     devices,
		log:         log.With().Str("component", "admin_handler").Logger(),
	}
}

// ListPendingUsers godoc
// GET /api/v1/admin/users/pending
func (h *AdminHandler) ListPendingUsers(c *gin.Context) {
	users, err := h.users.ListPending(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list pending users")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, users)
}

// ApproveUser godoc
// POST /api/v1/admin/users/:id/approve
func (h *AdminHandler) ApproveUser(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.users.SetApproved(c.Request.Context(), id, true); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		h.log.Error().Err(err).Int("user_id", id).Msg("failed to approve user")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"approved": true})
}

// AddUser godoc
// POST /api/v1/admin/users
// Creates an account directly, optionally pre-approved.
func (h *AdminHandler) AddUser(c *gin.Context) {
	var req model.AddUserRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	hash, err := h.authService.HashPassword(req.Password)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	u := &model.UserAccount{
		Email:        req.Email,
		PasswordHash: hash,
		Role:         model.RoleStudent,
		Approved:     req.AutoApprove,
	}
	if err := h.users.Create(c.Request.Context(), u); err != nil {
		h.log.Error().Err(err).Str("email", req.Email).Msg("failed to create user")
		response.Fail(c, http.StatusConflict, response.ErrConflict)
		return
	}
	response.Success(c, http.StatusCreated, u)
}

// DeleteUser godoc
// DELETE /api/v1/admin/users/:id
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.users.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// CreateTest godoc
// POST /api/v1/admin/tests
func (h *AdminHandler) CreateTest(c *gin.Context) {
	var def model.TestDefinition
	if fields := validator.Bind(c, &def); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.tests.Create(c.Request.Context(), &def); err != nil {
		h.log.Error().Err(err).Msg("failed to create test")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	h.testService.InvalidateCatalog(c.Request.Context())
	response.Success(c, http.StatusCreated, def)
}

// DeleteTest godoc
// DELETE /api/v1/admin/tests/:id
func (h *AdminHandler) DeleteTest(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.tests.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	h.testService.InvalidateCatalog(c.Request.Context())
	h.testService.InvalidateTest(c.Request.Context(), id)
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// ListAttempts godoc
// GET /api/v1/admin/attempts?page=1&per_page=50
func (h *AdminHandler) ListAttempts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "50"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 200 {
		perPage = 50
	}

	attempts, total, err := h.attempts.ListAll(c.Request.Context(), page, perPage)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list attempts")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	totalPages := int((total + int64(perPage) - 1) / int64(perPage))
	response.SuccessWithPagination(c, http.StatusOK, attempts, &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: int(total),
		TotalPages: totalPages,
	})
}

// ListSessionViolations godoc
// GET /api/v1/admin/session-violations
func (h *AdminHandler) ListSessionViolations(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit < 1 || limit > 500 {
		limit = 100
	}

	violations, err := h.devices.ListViolations(c.Request.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list session violations")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, violations)
}
