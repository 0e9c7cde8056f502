package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/codebuildervaibhav/convertanything/internal/apperr"
	"github.com/codebuildervaibhav/convertanything/internal/queue"
	"github.com/codebuildervaibhav/convertanything/internal/session"
)

// TranscribeHandler starts submissions on the worker pool
type TranscribeHandler struct {
	sessions *session.Manager
	pool     *queue.WorkerPool
}

// NewTranscribeHandler creates a new transcribe handler
func NewTranscribeHandler(sessions *session.Manager, pool *queue.WorkerPool) *TranscribeHandler {
	return &TranscribeHandler{
		sessions: sessions,
		pool:     pool,
	}
}

// transcribeRequest overrides the session's current options. Absent
// fields keep their current value.
type transcribeRequest struct {
	Model             *string `json:"model" form:"model"`
	SpeakerSeparation *bool   `json:"speaker_separation" form:"speaker_separation"`
	SpeakerCount      *int    `json:"speaker_count" form:"speaker_count"`
}

// Handle handles POST /sessions/:id/transcribe
func (h *TranscribeHandler) Handle(c *fiber.Ctx) error {
	s, err := h.sessions.Get(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}

	var req transcribeRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return respondError(c, apperr.Validation(apperr.CodeInvalidOptions, "Invalid transcription options."))
		}
	}

	opts := s.Snapshot().Options
	if req.Model != nil {
		opts.Model = *req.Model
	}
	if req.SpeakerSeparation != nil {
		opts.SpeakerSeparation = *req.SpeakerSeparation
	}
	if req.SpeakerCount != nil {
		opts.SpeakerCount = *req.SpeakerCount
	}

	attempt, err := s.Begin(opts)
	if err != nil {
		return respondError(c, err)
	}

	snap := s.Snapshot()
	job := queue.NewJob(uuid.New().String(), s.ID(), snap.File.Name, attempt)
	if err := h.pool.Enqueue(job); err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"job_id":  job.ID,
		"status":  queue.StatusQueued,
		"message": "Transcription started",
		"session": newSessionResponse(s.Snapshot()),
	})
}
