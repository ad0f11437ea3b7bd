package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

// Deadlines for the admin monitor socket. Violation fanout is bursty, so
// writes fail fast rather than letting one stalled dashboard back up the
// Redis subscription. Reads only carry occasional pings from the dashboard
// and may idle for minutes between them.
const (
	// WriteTimeout bounds a single violation or pong write.
	WriteTimeout = 10 * time.Second
	// IdleTimeout is how long the monitor may stay silent before the
	// connection is treated as dead.
	IdleTimeout = 5 * time.Minute
)

// WriteTyped sends one typed event to the monitor, failing fast when the
// peer stalls.
func WriteTyped(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
	return conn.WriteJSON(v)
}

// WriteError reports a failure to the monitor before the caller closes the
// socket.
func WriteError(conn *websocket.Conn, errMsg string) error {
	return WriteTyped(conn, ErrorResponse{
		Event: EventError,
		Error: errMsg,
	})
}

// ReadJSON decodes the next client message, enforcing the idle timeout.
func ReadJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetReadDeadline(time.Now().Add(IdleTimeout))
	return conn.ReadJSON(v)
}
