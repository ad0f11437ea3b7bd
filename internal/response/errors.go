package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// Authentication
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrPendingApproval    ErrCode = "PENDING_APPROVAL"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"

	// Authorization
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrAdminAccessOnly   ErrCode = "ADMIN_ACCESS_ONLY"

	// Validation
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// Resources
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// Test session
	ErrTestNotAvailable  ErrCode = "TEST_NOT_AVAILABLE"
	ErrTestNotRunning    ErrCode = "TEST_NOT_RUNNING"
	ErrTestMalformed     ErrCode = "TEST_MALFORMED"
	ErrNoSavedState      ErrCode = "NO_SAVED_STATE"
	ErrSavedStateInvalid ErrCode = "SAVED_STATE_INVALID"
	ErrInteractionLocked ErrCode = "INTERACTION_LOCKED"

	// Rate limiting
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// Server
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrInvalidCredentials:
		return "Invalid email or password."
	case ErrPendingApproval:
		return "Your account is awaiting administrator approval."
	case ErrSessionInvalidated:
		return "Your session was ended because this account logged in on another device."
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid."
	case ErrTokenExpired:
		return "Authentication token has expired."

	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrStudentAccessOnly:
		return "This resource is restricted to students."
	case ErrAdminAccessOnly:
		return "This resource is restricted to administrators."

	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "Resource already exists."

	case ErrTestNotAvailable:
		return "This test is not available."
	case ErrTestNotRunning:
		return "No test is currently running."
	case ErrTestMalformed:
		return "This test contains a malformed question and cannot be started."
	case ErrNoSavedState:
		return "No saved test found to resume."
	case ErrSavedStateInvalid:
		return "The saved test state is invalid and has been discarded."
	case ErrInteractionLocked:
		return "Interaction is locked. Return to fullscreen to continue."

	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
