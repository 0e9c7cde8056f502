package handlers

import (
	"os"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/codebuildervaibhav/convertanything/internal/apperr"
	"github.com/codebuildervaibhav/convertanything/internal/audio"
	"github.com/codebuildervaibhav/convertanything/internal/session"
	"github.com/codebuildervaibhav/convertanything/internal/types"
)

// UploadHandler handles file selection
type UploadHandler struct {
	sessions *session.Manager
	tempDir  string
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(sessions *session.Manager, tempDir string) *UploadHandler {
	return &UploadHandler{
		sessions: sessions,
		tempDir:  tempDir,
	}
}

// Select handles POST /sessions/:id/file. The multipart field "audio"
// carries the file.
func (h *UploadHandler) Select(c *fiber.Ctx) error {
	s, err := h.sessions.Get(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}

	fh, err := c.FormFile("audio")
	if err != nil {
		return respondError(c, apperr.Validation(apperr.CodeNoFile, "Please select an audio file first."))
	}

	file := types.SourceFile{
		Name:        fh.Filename,
		Size:        fh.Size,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		SelectedAt:  time.Now(),
	}

	// Rejected files never reach the disk; the session still records why.
	if err := audio.Validate(file); err != nil {
		return respondError(c, s.SelectFile(file))
	}

	file.Path = filepath.Join(h.tempDir, uuid.New().String()+filepath.Ext(fh.Filename))
	if err := c.SaveFile(fh, file.Path); err != nil {
		log.Error().Err(err).Str("session", s.ID()).Msg("failed to save uploaded file")
		return respondError(c, apperr.Internal(err))
	}

	if err := s.SelectFile(file); err != nil {
		os.Remove(file.Path)
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(newSessionResponse(s.Snapshot()))
}

// Remove handles DELETE /sessions/:id/file
func (h *UploadHandler) Remove(c *fiber.Ctx) error {
	s, err := h.sessions.Get(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	if err := s.RemoveFile(); err != nil {
		return respondError(c, err)
	}
	return c.JSON(newSessionResponse(s.Snapshot()))
}

// DiscardFile deletes the stored upload of a file a session let go of
func DiscardFile(f types.SourceFile) {
	if f.Path == "" {
		return
	}
	if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("path", f.Path).Msg("failed to delete upload")
	}
}
