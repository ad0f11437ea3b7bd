package websocket

import "encoding/json"

// Actions (Client → Server)

type Action string

const (
	ActionPing Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// Events (Server → Client)

type Event string

const (
	EventError     Event = "error"
	EventViolation Event = "violation"
	EventPong      Event = "pong"
)

// ViolationMessage pushes one live proctoring event to the admin monitor.
// Payload carries the service.ProctorEvent JSON verbatim.
type ViolationMessage struct {
	Event   Event           `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
