package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/archprep/mockportal-backend/internal/model"
)

// DeviceSessionRepository handles device session and session violation data
// access.
type DeviceSessionRepository struct {
	pool *pgxpool.Pool
}

// NewDeviceSessionRepository creates a new DeviceSessionRepository.
func NewDeviceSessionRepository(pool *pgxpool.Pool) *DeviceSessionRepository {
	return &DeviceSessionRepository{pool: pool}
}

// GetActive retrieves the user's currently active session, if any.
func (r *DeviceSessionRepository) GetActive(ctx context.Context, userID int) (*model.DeviceSession, error) {
	s := &model.DeviceSession{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, device_token, user_agent, is_active, last_activity, created_at
		 FROM device_sessions
		 WHERE user_id = $1 AND is_active = TRUE`, userID,
	).Scan(&s.ID, &s.UserID, &s.DeviceToken, &s.UserAgent, &s.IsActive, &s.LastActivity, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// DeactivateAll marks every session of the user inactive. Called before
// activating a new device so at most one session stays active.
func (r *DeviceSessionRepository) DeactivateAll(ctx context.Context, userID int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE device_sessions SET is_active = FALSE WHERE user_id = $1`, userID)
	return err
}

// Activate upserts the session row for a device token and marks it active.
func (r *DeviceSessionRepository) Activate(ctx context.Context, s *model.DeviceSession) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO device_sessions (user_id, device_token, user_agent, is_active, last_activity)
		 VALUES ($1, $2, $3, TRUE, NOW())
		 ON CONFLICT (user_id, device_token)
		 DO UPDATE SET is_active = TRUE, user_agent = $3, last_activity = NOW()
		 RETURNING id, last_activity, created_at`,
		s.UserID, s.DeviceToken, s.UserAgent,
	).Scan(&s.ID, &s.LastActivity, &s.CreatedAt)
}

// IsActive reports whether the given device token still holds the user's
// active session. The single source of truth for the device guard.
func (r *DeviceSessionRepository) IsActive(ctx context.Context, userID int, deviceToken string) (bool, error) {
	var active bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM device_sessions
		   WHERE user_id = $1 AND device_token = $2 AND is_active = TRUE
		 )`, userID, deviceToken,
	).Scan(&active)
	return active, err
}

// Touch refreshes the activity timestamp of an active session.
func (r *DeviceSessionRepository) Touch(ctx context.Context, userID int, deviceToken string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE device_sessions SET last_activity = NOW()
		 WHERE user_id = $1 AND device_token = $2 AND is_active = TRUE`,
		userID, deviceToken)
	return err
}

// Deactivate marks a single device session inactive (logout).
func (r *DeviceSessionRepository) Deactivate(ctx context.Context, userID int, deviceToken string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE device_sessions SET is_active = FALSE
		 WHERE user_id = $1 AND device_token = $2`,
		userID, deviceToken)
	return err
}

// RecordViolation persists one login-sharing violation.
func (r *DeviceSessionRepository) RecordViolation(ctx context.Context, v *model.SessionViolation) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO session_violations
		   (user_id, violation_type, old_device_token, new_device_token, user_agent)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		v.UserID, v.ViolationType, v.OldDeviceToken, v.NewDeviceToken, v.UserAgent,
	).Scan(&v.ID, &v.CreatedAt)
}

// ListViolations retrieves session violations joined with the account email,
// newest first.
func (r *DeviceSessionRepository) ListViolations(ctx context.Context, limit int) ([]model.SessionViolation, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT v.id, v.user_id, u.email, v.violation_type,
		        v.old_device_token, v.new_device_token, v.user_agent, v.created_at
		 FROM session_violations v
		 JOIN users u ON u.id = v.user_id
		 ORDER BY v.created_at DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var violations []model.SessionViolation
	for rows.Next() {
		var v model.SessionViolation
		if err := rows.Scan(&v.ID, &v.UserID, &v.Email, &v.ViolationType,
			&v.OldDeviceToken, &v.NewDeviceToken, &v.UserAgent, &v.CreatedAt); err != nil {
			return nil, err
		}
		violations = append(violations, v)
	}
	return violations, rows.Err()
}
