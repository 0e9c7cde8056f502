package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/codebuildervaibhav/convertanything/internal/backend"
	"github.com/codebuildervaibhav/convertanything/internal/cleanup"
	"github.com/codebuildervaibhav/convertanything/internal/config"
	"github.com/codebuildervaibhav/convertanything/internal/handlers"
	"github.com/codebuildervaibhav/convertanything/internal/logging"
	"github.com/codebuildervaibhav/convertanything/internal/queue"
	"github.com/codebuildervaibhav/convertanything/internal/session"
	"github.com/codebuildervaibhav/convertanything/internal/storage"
)

func main() {
	flags := pflag.NewFlagSet("server", pflag.ExitOnError)
	configFile := flags.String("config", "", "path to config.yaml")
	envFile := flags.String("env-file", "", "path to a .env file")
	flags.String("host", "", "listen host")
	flags.Int("port", 0, "listen port")
	flags.String("backend-url", "", "transcription service base URL")
	flags.Int("workers", 0, "concurrent submissions")
	flags.String("log-level", "", "trace, debug, info, warn or error")
	flags.Parse(os.Args[1:])

	// Load configuration
	cfg, err := config.Load(config.Options{
		ConfigFile: *configFile,
		EnvFile:    *envFile,
		Flags:      flags,
		FlagKeys: map[string]string{
			"host":        "server.host",
			"port":        "server.port",
			"backend-url": "backend.url",
			"workers":     "workers.count",
			"log-level":   "logging.level",
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logBuffer := logging.NewLogBuffer(logging.DefaultBufferLines)
	logging.Setup(cfg.Logging, os.Stdout, logBuffer)

	// Ensure directories exist
	if err := cleanup.EnsureTempDirExists(cfg.Storage.TempDir); err != nil {
		log.Fatal().Err(err).Msg("failed to create temp directory")
	}

	log.Info().Msg("initializing components")

	client := backend.NewClient(cfg.Backend)
	checkCtx, cancelCheck := context.WithTimeout(context.Background(), 5*time.Second)
	if err := client.Health(checkCtx); err != nil {
		log.Warn().Err(err).Str("url", client.URL()).Msg("transcription service not reachable, submissions will fail until it is up")
	} else {
		log.Info().Str("url", client.URL()).Msg("transcription service available")
	}
	cancelCheck()

	sinks := buildSinks(cfg)

	// Database
	var history *storage.MetadataDB
	if cfg.Storage.Database != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.Database), 0755); err != nil {
			log.Fatal().Err(err).Msg("failed to create database directory")
		}
		history, err = storage.NewMetadataDB(cfg.Storage.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize database")
		}
		defer history.Close()
	}

	sessions := session.NewManager(client,
		session.WithTimeout(client.Timeout()),
		session.WithDiscard(handlers.DiscardFile),
	)

	// Worker pool
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	workerPool := queue.NewWorkerPool(cfg.Workers.Count, func(job *queue.Job) {
		log.Debug().Str("job_id", job.ID).Str("status", job.Status).Msg("job finished")
	})
	workerPool.Start(ctx)
	defer workerPool.Stop()

	// Cleanup scheduler
	cleanupScheduler := cleanup.NewScheduler(cfg.Storage.TempDir, cfg.Cleanup, sessions)
	cleanupScheduler.Start()
	defer cleanupScheduler.Stop()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:             cfg.Server.BodyLimitMB * 1024 * 1024,
		ErrorHandler:          handlers.ErrorHandler,
		DisableStartupMessage: true,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{Output: io.MultiWriter(os.Stdout, logBuffer)}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	handlers.Register(app, handlers.Deps{
		Sessions: sessions,
		Pool:     workerPool,
		Backend:  client,
		Sinks:    sinks,
		History:  history,
		Logs:     logBuffer,
		TempDir:  cfg.Storage.TempDir,
	})

	addr := cfg.Server.Addr()
	log.Info().Str("addr", addr).Msg("server starting")
	log.Info().Msg("endpoints:")
	log.Info().Msg("   POST /sessions                      - Create a session")
	log.Info().Msg("   POST /sessions/:id/file             - Select an audio file")
	log.Info().Msg("   POST /sessions/:id/transcribe       - Start transcription")
	log.Info().Msg("   GET  /sessions/:id/views/:mode      - formatted, timeline or raw")
	log.Info().Msg("   GET  /sessions/:id/exports/:format  - txt, json, csv, srt or pdf")
	log.Info().Msg("   GET  /ws/sessions/:id/progress      - WebSocket progress stream")
	log.Info().Msg("   GET  /exports                       - Export history")
	log.Info().Msg("   GET  /logs                          - View server logs")
	log.Info().Msg("   GET  /health                        - Health check")

	// Graceful shutdown
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Info().Msg("shutting down gracefully")
		app.ShutdownWithTimeout(10 * time.Second)
	}()

	if err := app.Listen(addr); err != nil {
		log.Error().Err(err).Msg("server failed")
	}
}

// buildSinks returns the local sink plus every remote sink that is enabled
// and ready. A remote sink that cannot start is logged and skipped.
func buildSinks(cfg *config.Config) []storage.Sink {
	var sinks []storage.Sink
	if cfg.Storage.OutputDir != "" {
		sinks = append(sinks, storage.NewLocalStorage(cfg.Storage.OutputDir, cfg.Storage.Dated))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if cfg.Drive.Enabled {
		driveClient, err := storage.NewDriveClient(ctx, cfg.Drive)
		if err != nil {
			log.Warn().Err(err).Msg("Google Drive not available, run `transcribe --drive-auth` to authorize")
		} else {
			log.Info().Str("folder", cfg.Drive.FolderName).Msg("Google Drive integration enabled")
			sinks = append(sinks, driveClient)
		}
	}

	if cfg.S3.Enabled {
		s3Storage, err := storage.NewS3Storage(ctx, cfg.S3)
		if err != nil {
			log.Warn().Err(err).Msg("S3 not available")
		} else {
			log.Info().Str("bucket", cfg.S3.Bucket).Msg("S3 integration enabled")
			sinks = append(sinks, s3Storage)
		}
	}
	return sinks
}
