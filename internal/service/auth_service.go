package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/archprep/mockportal-backend/internal/config"
	"github.com/archprep/mockportal-backend/internal/model"
	"github.com/archprep/mockportal-backend/internal/repository"
)

// Common auth errors.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPendingApproval    = errors.New("account awaiting approval")
	ErrEmailTaken         = errors.New("email already registered")
)

// TokenType distinguishes student vs admin tokens.
type TokenType string

const (
	TokenTypeStudent TokenType = "student"
	TokenTypeAdmin   TokenType = "admin"
)

// Claims extends JWT standard claims with app-specific fields. DeviceToken
// binds the token to the device that logged in; the session middleware
// rejects it once another device takes over.
type Claims struct {
	jwt.RegisteredClaims
	TokenType   TokenType `json:"token_type"`
	UserID      int       `json:"user_id"`
	Email       string    `json:"email"`
	DeviceToken string    `json:"device_token,omitempty"`
}

// UserStore is the account lookup surface AuthService depends on.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*model.UserAccount, error)
	GetByID(ctx context.Context, id int) (*model.UserAccount, error)
	Create(ctx context.Context, u *model.UserAccount) error
}

// DeviceSessionStore is the device guard persistence surface.
type DeviceSessionStore interface {
	GetActive(ctx context.Context, userID int) (*model.DeviceSession, error)
	DeactivateAll(ctx context.Context, userID int) error
	Activate(ctx context.Context, s *model.DeviceSession) error
	IsActive(ctx context.Context, userID int, deviceToken string) (bool, error)
	Touch(ctx context.Context, userID int, deviceToken string) error
	Deactivate(ctx context.Context, userID int, deviceToken string) error
}

// ViolationQueue accepts session violations for asynchronous persistence.
type ViolationQueue interface {
	EnqueueSessionViolation(ctx context.Context, v model.SessionViolation) error
}

// AuthService handles signup, login, JWT issuing and the single-device
// session guard.
type AuthService struct {
	cfg        *config.Config
	users      UserStore
	devices    DeviceSessionStore
	violations ViolationQueue
	log        zerolog.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config, users UserStore, devices DeviceSessionStore, violations ViolationQueue, log zerolog.Logger) *AuthService {
	return &AuthService{
		cfg:        cfg,
		users:      users,
		devices:    devices,
		violations: violations,
		log:        log.With().Str("component", "auth_service").Logger(),
	}
}

// HashPassword hashes a password with the configured bcrypt cost.
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	return string(hash), err
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func (s *AuthService) CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Signup registers a student account pending admin approval.
func (s *AuthService) Signup(ctx context.Context, req model.SignupRequest) (*model.UserAccount, error) {
	if _, err := s.users.GetByEmail(ctx, req.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("check email: %w", err)
	}

	hash, err := s.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &model.UserAccount{
		Email:        req.Email,
		PasswordHash: hash,
		Role:         model.RoleStudent,
		Approved:     false,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.Info().Str("email", u.Email).Msg("student signup pending approval")
	return u, nil
}

// Login authenticates a user and activates the login device. When another
// device already holds the active session it is deactivated, one session
// violation is recorded, and the new device takes over.
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (string, *model.UserAccount, error) {
	user, err := s.users.GetByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, fmt.Errorf("lookup user: %w", err)
	}

	if err := s.CheckPassword(user.PasswordHash, req.Password); err != nil {
		return "", nil, ErrInvalidCredentials
	}
	if user.Role == model.RoleStudent && !user.Approved {
		return "", nil, ErrPendingApproval
	}

	deviceToken := req.DeviceToken
	if deviceToken == "" {
		deviceToken = uuid.New().String()
	}

	if err := s.takeOverDevice(ctx, user, deviceToken, req.UserAgent); err != nil {
		return "", nil, err
	}

	token, err := s.generateToken(user, deviceToken)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// takeOverDevice enforces the one-active-device rule. The most recent login
// always wins; the displaced session is deactivated before the new one is
// activated so the guard never sees two active rows.
func (s *AuthService) takeOverDevice(ctx context.Context, user *model.UserAccount, deviceToken, userAgent string) error {
	existing, err := s.devices.GetActive(ctx, user.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("check active session: %w", err)
	}

	if existing != nil && existing.DeviceToken != deviceToken {
		if err := s.devices.DeactivateAll(ctx, user.ID); err != nil {
			return fmt.Errorf("deactivate sessions: %w", err)
		}

		violation := model.SessionViolation{
			UserID:         user.ID,
			Email:          user.Email,
			ViolationType:  model.ViolationTypeMultipleDevice,
			OldDeviceToken: existing.DeviceToken,
			NewDeviceToken: deviceToken,
			UserAgent:      userAgent,
		}
		if err := s.violations.EnqueueSessionViolation(ctx, violation); err != nil {
			// Losing the audit entry is preferable to blocking the login.
			s.log.Error().Err(err).Int("user_id", user.ID).Msg("failed to enqueue session violation")
		}
		s.log.Warn().
			Int("user_id", user.ID).
			Str("email", user.Email).
			Msg("login from new device displaced active session")
	}

	session := &model.DeviceSession{
		UserID:      user.ID,
		DeviceToken: deviceToken,
		UserAgent:   userAgent,
	}
	if err := s.devices.Activate(ctx, session); err != nil {
		return fmt.Errorf("activate session: %w", err)
	}
	return nil
}

func (s *AuthService) generateToken(user *model.UserAccount, deviceToken string) (string, error) {
	tokenType := TokenTypeStudent
	if user.Role == model.RoleAdmin {
		tokenType = TokenTypeAdmin
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   strconv.Itoa(user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
		},
		TokenType:   tokenType,
		UserID:      user.ID,
		Email:       user.Email,
		DeviceToken: deviceToken,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// VerifySession reports whether the device token still holds the user's
// active session. Clients poll this on an interval; a false result means
// another device logged in and this one must log out.
func (s *AuthService) VerifySession(ctx context.Context, userID int, deviceToken string) (bool, error) {
	active, err := s.devices.IsActive(ctx, userID, deviceToken)
	if err != nil {
		return false, fmt.Errorf("check device session: %w", err)
	}
	if active {
		if err := s.devices.Touch(ctx, userID, deviceToken); err != nil {
			s.log.Warn().Err(err).Int("user_id", userID).Msg("failed to touch device session")
		}
	}
	return active, nil
}

// Logout deactivates the device's session.
func (s *AuthService) Logout(ctx context.Context, userID int, deviceToken string) error {
	return s.devices.Deactivate(ctx, userID, deviceToken)
}
