// Package handlers is the HTTP and WebSocket layer over the session
// manager.
package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/codebuildervaibhav/convertanything/internal/logging"
	"github.com/codebuildervaibhav/convertanything/internal/queue"
	"github.com/codebuildervaibhav/convertanything/internal/session"
	"github.com/codebuildervaibhav/convertanything/internal/storage"
)

// Deps are the components the routes are served from. Backend, Sinks,
// History and Logs are optional.
type Deps struct {
	Sessions *session.Manager
	Pool     *queue.WorkerPool
	Backend  BackendInfo
	Sinks    []storage.Sink
	History  *storage.MetadataDB
	Logs     *logging.LogBuffer
	TempDir  string
}

// Register mounts every route on app
func Register(app *fiber.App, d Deps) {
	sessionHandler := NewSessionHandler(d.Sessions)
	uploadHandler := NewUploadHandler(d.Sessions, d.TempDir)
	transcribeHandler := NewTranscribeHandler(d.Sessions, d.Pool)
	resultsHandler := NewResultsHandler(d.Sessions, d.Sinks, d.History)
	streamHandler := NewStreamHandler(d.Sessions)
	systemHandler := NewSystemHandler(d.Backend, d.History, d.Logs)

	app.Get("/health", systemHandler.Health)
	app.Get("/models", systemHandler.Models)
	app.Get("/exports", systemHandler.Exports)
	app.Get("/logs", systemHandler.Logs)

	sessions := app.Group("/sessions")
	sessions.Post("/", sessionHandler.Create)
	sessions.Get("/:id", sessionHandler.Get)
	sessions.Delete("/:id", sessionHandler.Delete)
	sessions.Post("/:id/reset", sessionHandler.Reset)
	sessions.Post("/:id/file", uploadHandler.Select)
	sessions.Delete("/:id/file", uploadHandler.Remove)
	sessions.Post("/:id/transcribe", transcribeHandler.Handle)
	sessions.Get("/:id/views/:mode", resultsHandler.View)
	sessions.Get("/:id/exports/:format", resultsHandler.Export)

	// WebSocket route
	app.Use("/ws", RequireUpgrade)
	app.Get("/ws/sessions/:id/progress", websocket.New(streamHandler.Handle))
}
