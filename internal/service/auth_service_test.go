package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/archprep/mockportal-backend/internal/config"
	"github.com/archprep/mockportal-backend/internal/model"
	"github.com/archprep/mockportal-backend/internal/repository"
)

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (*model.UserAccount, error) {
	args := m.Called(ctx, email)
	if u := args.Get(0); u != nil {
		return u.(*model.UserAccount), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserStore) GetByID(ctx context.Context, id int) (*model.UserAccount, error) {
	args := m.Called(ctx, id)
	if u := args.Get(0); u != nil {
		return u.(*model.UserAccount), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserStore) Create(ctx context.Context, u *model.UserAccount) error {
	return m.Called(ctx, u).Error(0)
}

type mockDeviceStore struct{ mock.Mock }

func (m *mockDeviceStore) GetActive(ctx context.Context, userID int) (*model.DeviceSession, error) {
	args := m.Called(ctx, userID)
	if s := args.Get(0); s != nil {
		return s.(*model.DeviceSession), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDeviceStore) DeactivateAll(ctx context.Context, userID int) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *mockDeviceStore) Activate(ctx context.Context, s *model.DeviceSession) error {
	return m.Called(ctx, s).Error(0)
}

func (m *mockDeviceStore) IsActive(ctx context.Context, userID int, deviceToken string) (bool, error) {
	args := m.Called(ctx, userID, deviceToken)
	return args.Bool(0), args.Error(1)
}

func (m *mockDeviceStore) Touch(ctx context.Context, userID int, deviceToken string) error {
	return m.Called(ctx, userID, deviceToken).Error(0)
}

func (m *mockDeviceStore) Deactivate(ctx context.Context, userID int, deviceToken string) error {
	return m.Called(ctx, userID, deviceToken).Error(0)
}

type mockViolationQueue struct{ mock.Mock }

func (m *mockViolationQueue) EnqueueSessionViolation(ctx context.Context, v model.SessionViolation) error {
	return m.Called(ctx, v).Error(0)
}

func testAuthConfig() *config.Config {
	return &config.Config{
		JWTSecret:  "test-secret",
		JWTExpiry:  time.Hour,
		BcryptCost: bcrypt.MinCost,
	}
}

func approvedStudent(t *testing.T, password string) *model.UserAccount {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &model.UserAccount{
		ID:           42,
		Email:        "student@example.com",
		PasswordHash: string(hash),
		Role:         model.RoleStudent,
		Approved:     true,
	}
}

func TestLoginFirstDeviceNoViolation(t *testing.T) {
	users := new(mockUserStore)
	devices := new(mockDeviceStore)
	queue := new(mockViolationQueue)
	svc := NewAuthService(testAuthConfig(), users, devices, queue, zerolog.Nop())

	user := approvedStudent(t, "secret123")
	users.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)
	devices.On("GetActive", mock.Anything, user.ID).Return(nil, repository.ErrNotFound)
	devices.On("Activate", mock.Anything, mock.Anything).Return(nil)

	token, got, err := svc.Login(context.Background(), model.LoginRequest{
		Email:       user.Email,
		Password:    "secret123",
		DeviceToken: "device-A",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, user.ID, got.ID)

	devices.AssertNotCalled(t, "DeactivateAll", mock.Anything, mock.Anything)
	queue.AssertNotCalled(t, "EnqueueSessionViolation", mock.Anything, mock.Anything)
}

func TestLoginSecondDeviceDisplacesFirst(t *testing.T) {
	users := new(mockUserStore)
	devices := new(mockDeviceStore)
	queue := new(mockViolationQueue)
	svc := NewAuthService(testAuthConfig(), users, devices, queue, zerolog.Nop())

	user := approvedStudent(t, "secret123")
	users.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)
	devices.On("GetActive", mock.Anything, user.ID).Return(&model.DeviceSession{
		UserID:      user.ID,
		DeviceToken: "device-A",
		IsActive:    true,
	}, nil)
	devices.On("DeactivateAll", mock.Anything, user.ID).Return(nil)
	devices.On("Activate", mock.Anything, mock.MatchedBy(func(s *model.DeviceSession) bool {
		return s.DeviceToken == "device-B"
	})).Return(nil)
	queue.On("EnqueueSessionViolation", mock.Anything, mock.MatchedBy(func(v model.SessionViolation) bool {
		return v.UserID == user.ID &&
			v.ViolationType == model.ViolationTypeMultipleDevice &&
			v.OldDeviceToken == "device-A" &&
			v.NewDeviceToken == "device-B"
	})).Return(nil)

	token, _, err := svc.Login(context.Background(), model.LoginRequest{
		Email:       user.Email,
		Password:    "secret123",
		DeviceToken: "device-B",
		UserAgent:   "Mozilla/5.0",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	devices.AssertNumberOfCalls(t, "DeactivateAll", 1)
	queue.AssertNumberOfCalls(t, "EnqueueSessionViolation", 1)
}

func TestLoginSameDeviceIsNotAViolation(t *testing.T) {
	users := new(mockUserStore)
	devices := new(mockDeviceStore)
	queue := new(mockViolationQueue)
	svc := NewAuthService(testAuthConfig(), users, devices, queue, zerolog.Nop())

	user := approvedStudent(t, "secret123")
	users.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)
	devices.On("GetActive", mock.Anything, user.ID).Return(&model.DeviceSession{
		UserID:      user.ID,
		DeviceToken: "device-A",
		IsActive:    true,
	}, nil)
	devices.On("Activate", mock.Anything, mock.Anything).Return(nil)

	_, _, err := svc.Login(context.Background(), model.LoginRequest{
		Email:       user.Email,
		Password:    "secret123",
		DeviceToken: "device-A",
	})
	require.NoError(t, err)

	devices.AssertNotCalled(t, "DeactivateAll", mock.Anything, mock.Anything)
	queue.AssertNotCalled(t, "EnqueueSessionViolation", mock.Anything, mock.Anything)
}

func TestLoginWrongPassword(t *testing.T) {
	users := new(mockUserStore)
	svc := NewAuthService(testAuthConfig(), users, new(mockDeviceStore), new(mockViolationQueue), zerolog.Nop())

	user := approvedStudent(t, "secret123")
	users.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)

	_, _, err := svc.Login(context.Background(), model.LoginRequest{
		Email:    user.Email,
		Password: "wrong",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUnknownEmail(t *testing.T) {
	users := new(mockUserStore)
	svc := NewAuthService(testAuthConfig(), users, new(mockDeviceStore), new(mockViolationQueue), zerolog.Nop())

	users.On("GetByEmail", mock.Anything, "nobody@example.com").Return(nil, repository.ErrNotFound)

	_, _, err := svc.Login(context.Background(), model.LoginRequest{
		Email:    "nobody@example.com",
		Password: "whatever1",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginPendingApprovalRejected(t *testing.T) {
	users := new(mockUserStore)
	svc := NewAuthService(testAuthConfig(), users, new(mockDeviceStore), new(mockViolationQueue), zerolog.Nop())

	user := approvedStudent(t, "secret123")
	user.Approved = false
	users.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)

	_, _, err := svc.Login(context.Background(), model.LoginRequest{
		Email:    user.Email,
		Password: "secret123",
	})
	assert.ErrorIs(t, err, ErrPendingApproval)
}

func TestVerifySessionAfterTakeover(t *testing.T) {
	devices := new(mockDeviceStore)
	svc := NewAuthService(testAuthConfig(), new(mockUserStore), devices, new(mockViolationQueue), zerolog.Nop())

	devices.On("IsActive", mock.Anything, 42, "device-A").Return(false, nil)

	active, err := svc.VerifySession(context.Background(), 42, "device-A")
	require.NoError(t, err)
	assert.False(t, active)
	devices.AssertNotCalled(t, "Touch", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifySessionActiveTouches(t *testing.T) {
	devices := new(mockDeviceStore)
	svc := NewAuthService(testAuthConfig(), new(mockUserStore), devices, new(mockViolationQueue), zerolog.Nop())

	devices.On("IsActive", mock.Anything, 42, "device-A").Return(true, nil)
	devices.On("Touch", mock.Anything, 42, "device-A").Return(nil)

	active, err := svc.VerifySession(context.Background(), 42, "device-A")
	require.NoError(t, err)
	assert.True(t, active)
	devices.AssertNumberOfCalls(t, "Touch", 1)
}

func TestLoginTokenCarriesDeviceBinding(t *testing.T) {
	users := new(mockUserStore)
	devices := new(mockDeviceStore)
	svc := NewAuthService(testAuthConfig(), users, devices, new(mockViolationQueue), zerolog.Nop())

	user := approvedStudent(t, "secret123")
	users.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)
	devices.On("GetActive", mock.Anything, user.ID).Return(nil, repository.ErrNotFound)
	devices.On("Activate", mock.Anything, mock.Anything).Return(nil)

	token, _, err := svc.Login(context.Background(), model.LoginRequest{
		Email:       user.Email,
		Password:    "secret123",
		DeviceToken: "device-A",
	})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeStudent, claims.TokenType)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "device-A", claims.DeviceToken)
}
