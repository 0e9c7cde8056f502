package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog/log"

	"github.com/codebuildervaibhav/convertanything/internal/apperr"
	"github.com/codebuildervaibhav/convertanything/internal/session"
)

// StreamHandler pushes session progress events over WebSocket
type StreamHandler struct {
	sessions *session.Manager
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(sessions *session.Manager) *StreamHandler {
	return &StreamHandler{sessions: sessions}
}

// RequireUpgrade rejects plain HTTP requests to WebSocket routes
func RequireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Handle streams every progress event of the session as a JSON text
// message until the client disconnects or the session is dropped.
func (h *StreamHandler) Handle(c *websocket.Conn) {
	defer c.Close()

	id := c.Params("id")
	s, err := h.sessions.Get(id)
	if err != nil {
		e := apperr.From(err)
		c.WriteJSON(fiber.Map{"error": e.Message, "code": e.Code})
		return
	}

	events, cancel := s.Subscribe()
	defer cancel()

	log.Debug().Str("session", id).Msg("progress stream opened")

	// the client never sends anything; reading detects the disconnect
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := c.WriteJSON(ev); err != nil {
				log.Debug().Err(err).Str("session", id).Msg("progress stream write failed")
				return
			}
		case <-gone:
			log.Debug().Str("session", id).Msg("progress stream closed by client")
			return
		}
	}
}
