package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/archprep/mockportal-backend/internal/config"
	ws "github.com/archprep/mockportal-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allow-list permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// MonitorHandler streams live proctoring events to admin dashboards over
// WebSocket, fanned out through Redis PubSub so every server instance sees
// every event.
type MonitorHandler struct {
	rdb      *redis.Client
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(rdb *redis.Client, log zerolog.Logger, allowedOrigins []string) *MonitorHandler {
	return &MonitorHandler{
		rdb:      rdb,
		log:      log.With().Str("component", "monitor_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// Stream godoc
// WS /ws/v1/admin/monitor?token=...
// Forwards every published proctor event to the connected admin until the
// socket closes.
func (h *MonitorHandler) Stream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	sub := h.rdb.Subscribe(c.Request.Context(), config.CacheKey.ProctorEventsChannel())
	defer sub.Close()

	h.log.Info().Msg("admin monitor connected")

	// Reader goroutine: handle pings and detect close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var msg ws.RequestEnvelope
			if err := ws.ReadJSON(conn, &msg); err != nil {
				return
			}
			if msg.Action == ws.ActionPing {
				if err := ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong}); err != nil {
					return
				}
			}
		}
	}()

	ch := sub.Channel()
	for {
		select {
		case <-done:
			h.log.Info().Msg("admin monitor disconnected")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			out := ws.ViolationMessage{
				Event:   ws.EventViolation,
				Payload: []byte(msg.Payload),
			}
			if err := ws.WriteTyped(conn, out); err != nil {
				h.log.Debug().Err(err).Msg("monitor write failed, closing")
				return
			}
		}
	}
}
