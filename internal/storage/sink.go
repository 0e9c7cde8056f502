// Package storage persists export artifacts and records them in the export
// history.
package storage

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/codebuildervaibhav/convertanything/internal/export"
)

// Sink stores an exported artifact somewhere durable and returns where it
// went (a path or URL)
type Sink interface {
	Name() string
	Save(ctx context.Context, a *export.Artifact) (string, error)
}

// Stored is the outcome of saving one artifact to one sink
type Stored struct {
	Sink     string `json:"sink"`
	Location string `json:"location,omitempty"`
	Error    string `json:"error,omitempty"`
}

// SaveAll writes a to every sink. A failing sink does not stop the others.
func SaveAll(ctx context.Context, sinks []Sink, a *export.Artifact) []Stored {
	out := make([]Stored, 0, len(sinks))
	for _, s := range sinks {
		loc, err := s.Save(ctx, a)
		st := Stored{Sink: s.Name(), Location: loc}
		if err != nil {
			st.Error = err.Error()
		}
		out = append(out, st)
	}
	return out
}

// objectName prefixes the artifact filename with a timestamp so repeated
// exports of the same source never collide
func objectName(t time.Time, filename string) string {
	return t.Format("20060102_150405") + "_" + sanitizeFilename(filename)
}

// datePath returns the year/month/day directory for t
func datePath(t time.Time) string {
	return filepath.Join(t.Format("2006"), t.Format("01"), t.Format("02"))
}

var filenameReplacer = strings.NewReplacer(
	"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
	"\"", "_", "<", "_", ">", "_", "|", "_",
)

// sanitizeFilename replaces characters that are invalid in file names and
// limits the length
func sanitizeFilename(name string) string {
	result := strings.TrimSpace(filenameReplacer.Replace(name))
	if result == "" || result == "." || result == ".." {
		result = "transcript"
	}
	if len(result) > 100 {
		ext := filepath.Ext(result)
		if len(ext) > 10 {
			ext = ""
		}
		result = result[:100-len(ext)] + ext
	}
	return result
}
