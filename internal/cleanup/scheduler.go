package cleanup

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// Sweeper evicts sessions that have been idle longer than maxAge
type Sweeper interface {
	Sweep(maxAge time.Duration) int
}

// Config controls how often cleanup runs and what counts as stale
type Config struct {
	Interval      time.Duration `mapstructure:"interval" yaml:"interval" validate:"gt=0"`
	MaxFileAge    time.Duration `mapstructure:"max_file_age" yaml:"max_file_age" validate:"gt=0"`
	MaxSessionAge time.Duration `mapstructure:"max_session_age" yaml:"max_session_age" validate:"gt=0"`
}

// Scheduler removes stale uploads from the temp directory and expires idle
// sessions
type Scheduler struct {
	tempDir  string
	cfg      Config
	sessions Sweeper
	stopChan chan struct{}
	stopOnce sync.Once
	started  atomic.Bool
	done     chan struct{}
}

// NewScheduler creates a new cleanup scheduler. sessions may be nil.
func NewScheduler(tempDir string, cfg Config, sessions Sweeper) *Scheduler {
	return &Scheduler{
		tempDir:  tempDir,
		cfg:      cfg,
		sessions: sessions,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs one cleanup pass immediately, then one per interval
func (s *Scheduler) Start() {
	log.Info().Msg("running initial temp file cleanup")
	s.RunOnce()

	s.started.Store(true)
	ticker := time.NewTicker(s.cfg.Interval)
	go func() {
		defer close(s.done)
		for {
			select {
			case <-ticker.C:
				s.RunOnce()
			case <-s.stopChan:
				ticker.Stop()
				return
			}
		}
	}()

	log.Info().
		Dur("interval", s.cfg.Interval).
		Dur("max_file_age", s.cfg.MaxFileAge).
		Dur("max_session_age", s.cfg.MaxSessionAge).
		Msg("cleanup scheduler started")
}

// Stop stops the cleanup scheduler
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		if s.started.Load() {
			<-s.done
		}
		log.Info().Msg("cleanup scheduler stopped")
	})
}

// RunOnce performs a single cleanup pass. Sessions go first so that files
// they release are removed in the same pass when old enough.
func (s *Scheduler) RunOnce() (sessions, files int) {
	if s.sessions != nil && s.cfg.MaxSessionAge > 0 {
		sessions = s.sessions.Sweep(s.cfg.MaxSessionAge)
	}
	files = s.cleanOldFiles()
	return sessions, files
}

// cleanOldFiles removes files older than MaxFileAge from the temp directory
func (s *Scheduler) cleanOldFiles() int {
	now := time.Now()

	var deletedCount int
	var deletedSize int64

	err := filepath.Walk(s.tempDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip files we can't access
		}
		if info.IsDir() {
			return nil
		}

		age := now.Sub(info.ModTime())
		if age > s.cfg.MaxFileAge {
			size := info.Size()
			if err := os.Remove(path); err != nil {
				log.Warn().Err(err).Str("path", path).Msg("failed to delete old file")
			} else {
				deletedCount++
				deletedSize += size
				log.Debug().
					Str("file", filepath.Base(path)).
					Dur("age", age.Round(time.Second)).
					Int64("size_kb", size/1024).
					Msg("deleted old temp file")
			}
		}
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("error during cleanup")
	}

	if deletedCount > 0 {
		log.Info().
			Int("files", deletedCount).
			Float64("freed_mb", float64(deletedSize)/(1024*1024)).
			Msg("cleanup complete")
	}
	return deletedCount
}

// EnsureTempDirExists creates the temp directory if it doesn't exist
func EnsureTempDirExists(tempDir string) error {
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return err
	}
	log.Debug().Str("dir", tempDir).Msg("temp directory ready")
	return nil
}
