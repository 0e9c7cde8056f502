// Package logging configures the global zerolog logger and keeps the most
// recent log lines in memory for the /logs endpoint.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultBufferLines is the number of lines kept by a LogBuffer
const DefaultBufferLines = 1000

// Config controls the log level and output format
type Config struct {
	Level   string `mapstructure:"level" yaml:"level" validate:"oneof=trace debug info warn error"`
	Format  string `mapstructure:"format" yaml:"format" validate:"oneof=console json"`
	NoColor bool   `mapstructure:"no_color" yaml:"no_color"`
}

// Setup installs the global logger. Output goes to out and, when buf is not
// nil, to buf as JSON lines.
func Setup(cfg Config, out io.Writer, buf *LogBuffer) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if out == nil {
		out = os.Stdout
	}
	if strings.ToLower(cfg.Format) != "json" {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "15:04:05",
			NoColor:    cfg.NoColor,
		}
	}

	var w io.Writer = out
	if buf != nil {
		w = zerolog.MultiLevelWriter(out, buf)
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
}

// LogBuffer captures logs in memory
type LogBuffer struct {
	lines []string
	max   int
	mu    sync.Mutex
}

// NewLogBuffer creates a buffer holding at most max lines
func NewLogBuffer(max int) *LogBuffer {
	if max <= 0 {
		max = DefaultBufferLines
	}
	return &LogBuffer{
		lines: make([]string, 0, max),
		max:   max,
	}
}

func (lb *LogBuffer) Write(p []byte) (n int, err error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.lines = append(lb.lines, strings.TrimRight(string(p), "\n"))
	if len(lb.lines) > lb.max {
		lb.lines = lb.lines[len(lb.lines)-lb.max:]
	}
	return len(p), nil
}

// GetLogs returns a copy of the buffered lines, oldest first
func (lb *LogBuffer) GetLogs() []string {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	logs := make([]string, len(lb.lines))
	copy(logs, lb.lines)
	return logs
}
