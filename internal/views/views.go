// Package views projects a transcript into the render models of the three
// result tabs. Projections are recomputed from the transcript on every call.
package views

import (
	"fmt"
	"io"
	"strings"

	"github.com/codebuildervaibhav/convertanything/internal/apperr"
	"github.com/codebuildervaibhav/convertanything/internal/export"
	"github.com/codebuildervaibhav/convertanything/internal/types"
)

// Mode selects a projection
type Mode string

// Available view modes
const (
	ModeFormatted Mode = "formatted"
	ModeTimeline  Mode = "timeline"
	ModeRaw       Mode = "raw"
)

// Modes returns every view mode in tab order
func Modes() []Mode {
	return []Mode{ModeFormatted, ModeTimeline, ModeRaw}
}

// ParseMode converts a user-supplied mode name. "grouped" and "speaker" are
// accepted for the formatted view.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "formatted", "grouped", "speaker", "speakers":
		return ModeFormatted, nil
	case "timeline":
		return ModeTimeline, nil
	case "raw":
		return ModeRaw, nil
	}
	return "", apperr.NotFound("view", s)
}

// GroupEntry is one speaker block of the formatted view
type GroupEntry struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// TimelineEntry is one row of the timeline view
type TimelineEntry struct {
	Timestamp string  `json:"timestamp"`
	Start     float64 `json:"start"`
	Speaker   string  `json:"speaker"`
	Text      string  `json:"text"`
}

// Render is the display-ready result of a projection
type Render struct {
	Mode    Mode            `json:"mode"`
	Groups  []GroupEntry    `json:"groups,omitempty"`
	Entries []TimelineEntry `json:"entries,omitempty"`
	Text    string          `json:"text,omitempty"`
}

// Stats is the summary shown above the results
type Stats struct {
	Duration string `json:"duration"`
	Speakers int    `json:"speakers"`
	Words    int    `json:"words"`
}

// Grouped merges segments by speaker in order of first appearance
func Grouped(t *types.Transcript) []GroupEntry {
	groups := t.SpeakerGroups()
	entries := make([]GroupEntry, len(groups))
	for i, g := range groups {
		entries[i] = GroupEntry{Speaker: g.Speaker, Text: g.Text}
	}
	return entries
}

// Timeline lists every segment in order with its start timestamp
func Timeline(t *types.Transcript) []TimelineEntry {
	entries := make([]TimelineEntry, len(t.Segments))
	for i, seg := range t.Segments {
		entries[i] = TimelineEntry{
			Timestamp: export.FormatTimestamp(seg.Start),
			Start:     seg.Start,
			Speaker:   seg.Speaker,
			Text:      strings.TrimSpace(seg.Text),
		}
	}
	return entries
}

// Raw returns the full transcription text unchanged
func Raw(t *types.Transcript) string {
	return t.Text
}

// Project builds the render model for mode
func Project(t *types.Transcript, mode Mode) (*Render, error) {
	if t == nil {
		return nil, apperr.State(apperr.CodeNoResult, "There is no transcript to display yet.")
	}
	switch mode {
	case ModeFormatted:
		return &Render{Mode: mode, Groups: Grouped(t)}, nil
	case ModeTimeline:
		return &Render{Mode: mode, Entries: Timeline(t)}, nil
	case ModeRaw:
		return &Render{Mode: mode, Text: Raw(t)}, nil
	}
	return nil, apperr.NotFound("view", string(mode))
}

// Summarize computes the results header
func Summarize(t *types.Transcript) Stats {
	return Stats{
		Duration: export.FormatDuration(t.Duration),
		Speakers: t.SpeakerCount(),
		Words:    t.WordCount(),
	}
}

// Write renders a projection as plain text
func Write(w io.Writer, r *Render) error {
	var err error
	switch r.Mode {
	case ModeFormatted:
		for _, g := range r.Groups {
			if _, err = fmt.Fprintf(w, "%s\n  %s\n\n", g.Speaker, g.Text); err != nil {
				return err
			}
		}
	case ModeTimeline:
		for _, e := range r.Entries {
			if _, err = fmt.Fprintf(w, "%s  %-12s %s\n", e.Timestamp, e.Speaker, e.Text); err != nil {
				return err
			}
		}
	case ModeRaw:
		_, err = io.WriteString(w, r.Text+"\n")
	}
	return err
}
