package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/codebuildervaibhav/convertanything/internal/export"
	"github.com/codebuildervaibhav/convertanything/internal/session"
	"github.com/codebuildervaibhav/convertanything/internal/storage"
	"github.com/codebuildervaibhav/convertanything/internal/views"
)

// ResultsHandler serves views and exports of a completed transcript
type ResultsHandler struct {
	sessions *session.Manager
	sinks    []storage.Sink
	history  *storage.MetadataDB
}

// NewResultsHandler creates a new results handler. sinks and history are
// optional.
func NewResultsHandler(sessions *session.Manager, sinks []storage.Sink, history *storage.MetadataDB) *ResultsHandler {
	return &ResultsHandler{
		sessions: sessions,
		sinks:    sinks,
		history:  history,
	}
}

// View handles GET /sessions/:id/views/:mode
func (h *ResultsHandler) View(c *fiber.Ctx) error {
	s, err := h.sessions.Get(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	mode, err := views.ParseMode(c.Params("mode"))
	if err != nil {
		return respondError(c, err)
	}
	t, err := s.Transcript()
	if err != nil {
		return respondError(c, err)
	}
	render, err := views.Project(t, mode)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"view":  render,
		"stats": views.Summarize(t),
	})
}

// Export handles GET /sessions/:id/exports/:format. With ?save=true the
// artifact is also written to every configured sink.
func (h *ResultsHandler) Export(c *fiber.Ctx) error {
	s, err := h.sessions.Get(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	format, err := export.ParseFormat(c.Params("format"))
	if err != nil {
		return respondError(c, err)
	}

	snap := s.Snapshot()
	var sourceName string
	if snap.File != nil {
		sourceName = snap.File.Name
	}
	artifact, err := export.Encode(format, snap.Transcript, export.Meta{SourceName: sourceName})
	if err != nil {
		return respondError(c, err)
	}

	var stored []storage.Stored
	if c.QueryBool("save") && len(h.sinks) > 0 {
		stored = storage.SaveAll(c.UserContext(), h.sinks, artifact)
	}
	h.record(c, snap, sourceName, artifact, stored)

	c.Attachment(artifact.Filename)
	c.Set(fiber.HeaderContentType, artifact.ContentType)
	return c.Send(artifact.Data)
}

func (h *ResultsHandler) record(c *fiber.Ctx, snap session.Snapshot, sourceName string, a *export.Artifact, stored []storage.Stored) {
	if h.history == nil {
		return
	}
	t := snap.Transcript
	rec := &storage.ExportRecord{
		SessionID:    snap.ID,
		SourceFile:   sourceName,
		Format:       string(a.Format),
		Filename:     a.Filename,
		Bytes:        len(a.Data),
		Duration:     t.Duration,
		WordCount:    t.WordCount(),
		SpeakerCount: t.SpeakerCount(),
		Locations:    stored,
	}
	if err := h.history.SaveExport(c.UserContext(), rec); err != nil {
		log.Warn().Err(err).Str("session", snap.ID).Msg("failed to record export")
	}
}
