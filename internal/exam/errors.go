package exam

import "errors"

// Domain Errors
var (
	// ErrMalformedQuestion means a question's correct key does not match any
	// of its four option keys. Fatal to test start.
	ErrMalformedQuestion = errors.New("question correct key does not match any option")

	// ErrInvalidSnapshot means saved state failed structural validation.
	// Recovered by discarding the snapshot and starting fresh.
	ErrInvalidSnapshot = errors.New("saved test state is invalid")

	// ErrNotRunning is returned by mutating operations outside the running phase.
	ErrNotRunning = errors.New("attempt is not running")

	// ErrNoTestSelected is returned by StartTest before a test was selected.
	ErrNoTestSelected = errors.New("no test selected")

	// ErrIndexOutOfRange is returned by navigation to an invalid question index.
	ErrIndexOutOfRange = errors.New("question index out of range")

	// ErrUnknownQuestion is returned when an answer references a question id
	// that is not part of the attempt.
	ErrUnknownQuestion = errors.New("unknown question id")
)
