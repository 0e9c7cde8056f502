package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/convertanything/internal/session"
	"github.com/codebuildervaibhav/convertanything/internal/views"
)

// SessionHandler creates, inspects and drops sessions
type SessionHandler struct {
	sessions *session.Manager
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions *session.Manager) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

type sessionResponse struct {
	session.Snapshot
	Stats *views.Stats `json:"stats,omitempty"`
}

func newSessionResponse(snap session.Snapshot) sessionResponse {
	resp := sessionResponse{Snapshot: snap}
	if snap.Transcript != nil {
		stats := views.Summarize(snap.Transcript)
		resp.Stats = &stats
	}
	return resp
}

// Create handles POST /sessions
func (h *SessionHandler) Create(c *fiber.Ctx) error {
	s := h.sessions.Create()
	return c.Status(fiber.StatusCreated).JSON(newSessionResponse(s.Snapshot()))
}

// Get handles GET /sessions/:id
func (h *SessionHandler) Get(c *fiber.Ctx) error {
	s, err := h.sessions.Get(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(newSessionResponse(s.Snapshot()))
}

// Reset handles POST /sessions/:id/reset
func (h *SessionHandler) Reset(c *fiber.Ctx) error {
	s, err := h.sessions.Get(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	if err := s.Reset(); err != nil {
		return respondError(c, err)
	}
	return c.JSON(newSessionResponse(s.Snapshot()))
}

// Delete handles DELETE /sessions/:id
func (h *SessionHandler) Delete(c *fiber.Ctx) error {
	if err := h.sessions.Remove(c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
