package model

import "time"

// DeviceSession tracks which device currently holds a user's login.
// A user may have at most one session with IsActive = true.
type DeviceSession struct {
	ID           int       `json:"id"`
	UserID       int       `json:"user_id"`
	DeviceToken  string    `json:"device_token"`
	UserAgent    string    `json:"user_agent"`
	IsActive     bool      `json:"is_active"`
	LastActivity time.Time `json:"last_activity"`
	CreatedAt    time.Time `json:"created_at"`
}

// ViolationTypeMultipleDevice is recorded when a login from a new device
// deactivates an existing active session.
const ViolationTypeMultipleDevice = "multiple_device_login"

// SessionViolation is an out-of-band login-sharing violation, persisted
// separately from in-test violations.
type SessionViolation struct {
	ID             int       `json:"id"`
	UserID         int       `json:"user_id"`
	Email          string    `json:"email,omitempty"`
	ViolationType  string    `json:"violation_type"`
	OldDeviceToken string    `json:"old_device_token"`
	NewDeviceToken string    `json:"new_device_token"`
	UserAgent      string    `json:"user_agent"`
	CreatedAt      time.Time `json:"created_at"`
}
