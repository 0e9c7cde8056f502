package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/codebuildervaibhav/convertanything/internal/backend"
	"github.com/codebuildervaibhav/convertanything/internal/logging"
	"github.com/codebuildervaibhav/convertanything/internal/storage"
)

// Version is reported by /health
const Version = "1.0.0"

const (
	backendCheckTimeout = 5 * time.Second
	defaultHistoryLimit = 50
)

// BackendInfo is the part of the backend client used for health and model
// discovery
type BackendInfo interface {
	Health(ctx context.Context) error
	Models(ctx context.Context) (*backend.ModelList, error)
}

// SystemHandler serves health, models, logs and export history
type SystemHandler struct {
	backend BackendInfo
	history *storage.MetadataDB
	logs    *logging.LogBuffer
}

// NewSystemHandler creates a new system handler. history and logs may be
// nil.
func NewSystemHandler(b BackendInfo, history *storage.MetadataDB, logs *logging.LogBuffer) *SystemHandler {
	return &SystemHandler{
		backend: b,
		history: history,
		logs:    logs,
	}
}

// Health handles GET /health. Backend availability is advisory and never
// fails the check.
func (h *SystemHandler) Health(c *fiber.Ctx) error {
	resp := fiber.Map{
		"status":  "healthy",
		"version": Version,
	}
	if h.backend != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), backendCheckTimeout)
		defer cancel()
		if err := h.backend.Health(ctx); err != nil {
			resp["backend"] = "unavailable"
			resp["backend_error"] = err.Error()
		} else {
			resp["backend"] = "available"
		}
	}
	return c.JSON(resp)
}

// Models handles GET /models, falling back to the built-in list when the
// backend cannot be asked
func (h *SystemHandler) Models(c *fiber.Ctx) error {
	if h.backend != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), backendCheckTimeout)
		defer cancel()
		list, err := h.backend.Models(ctx)
		if err == nil {
			return c.JSON(list)
		}
		log.Warn().Err(err).Msg("model list unavailable, using built-in list")
	}
	return c.JSON(backend.DefaultModels())
}

// Exports handles GET /exports?limit=N&session=ID
func (h *SystemHandler) Exports(c *fiber.Ctx) error {
	if h.history == nil {
		return c.JSON([]storage.ExportRecord{})
	}

	var (
		records []storage.ExportRecord
		err     error
	)
	if sid := c.Query("session"); sid != "" {
		records, err = h.history.ListSessionExports(c.UserContext(), sid)
	} else {
		limit := c.QueryInt("limit", defaultHistoryLimit)
		if limit <= 0 {
			limit = defaultHistoryLimit
		}
		records, err = h.history.ListExports(c.UserContext(), limit)
	}
	if err != nil {
		return respondError(c, err)
	}
	if records == nil {
		records = []storage.ExportRecord{}
	}
	return c.JSON(records)
}

// Logs handles GET /logs
func (h *SystemHandler) Logs(c *fiber.Ctx) error {
	var lines []string
	if h.logs != nil {
		lines = h.logs.GetLogs()
	}
	if lines == nil {
		lines = []string{}
	}
	return c.JSON(fiber.Map{
		"logs": lines,
	})
}
