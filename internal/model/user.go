package model

import "time"

// Role distinguishes student and admin accounts.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// UserAccount represents a portal account. Students must be approved by an
// administrator before they can log in.
type UserAccount struct {
	ID           int       `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Approved     bool      `json:"approved"`
	CreatedAt    time.Time `json:"created_at"`
}

// LoginRequest is the payload for logging in. The device token is an opaque
// client identity used to detect concurrent logins from different devices.
type LoginRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=1,max=128"`
	DeviceToken string `json:"device_token" binding:"required,min=8,max=128"`
	UserAgent   string `json:"user_agent" binding:"max=512"`
}

// SignupRequest is the payload for creating a student account. New accounts
// start unapproved and cannot log in until an admin approves them.
type SignupRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

// AddUserRequest is the admin payload for directly creating a student.
type AddUserRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=6,max=128"`
	AutoApprove bool   `json:"auto_approve"`
}

// VerifySessionRequest is the payload for the periodic liveness check. The
// device token may be omitted; the one bound into the JWT is used instead.
type VerifySessionRequest struct {
	DeviceToken string `json:"device_token" binding:"omitempty,min=8,max=128"`
}
