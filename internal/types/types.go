package types

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// DefaultLanguage is reported when the backend omits the language code
const DefaultLanguage = "en"

// Session state constants
const (
	StateIdle         = "idle"
	StateFileSelected = "file_selected"
	StateSubmitting   = "submitting"
	StateCompleted    = "completed"
)

// Segment represents a single speaker-attributed span of speech
type Segment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
	Text    string  `json:"text"`
}

// Transcript represents the full result of one transcription.
// Segments are kept in the order the backend returned them.
type Transcript struct {
	Text     string    `json:"text"`
	Duration float64   `json:"duration"`
	Language string    `json:"language,omitempty"`
	Segments []Segment `json:"segments"`
}

// SpeakerGroup is the merged text of every segment of one speaker
type SpeakerGroup struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// SpeakerCount returns the number of distinct speaker labels
func (t *Transcript) SpeakerCount() int {
	seen := make(map[string]struct{}, len(t.Segments))
	for _, seg := range t.Segments {
		seen[seg.Speaker] = struct{}{}
	}
	return len(seen)
}

// WordCount returns the number of whitespace-delimited tokens in Text
func (t *Transcript) WordCount() int {
	return len(strings.Fields(t.Text))
}

// LanguageOrDefault returns the language code, falling back to "en"
func (t *Transcript) LanguageOrDefault() string {
	if t.Language == "" {
		return DefaultLanguage
	}
	return t.Language
}

// SpeakerGroups merges segments by speaker label.
//
// Groups are ordered by the first appearance of each speaker. A speaker that
// reappears after someone else spoke is appended to its existing group, so
// A, B, A yields two groups. Texts are trimmed and joined with one space.
func (t *Transcript) SpeakerGroups() []SpeakerGroup {
	index := make(map[string]int)
	parts := make([][]string, 0)
	groups := make([]SpeakerGroup, 0)

	for _, seg := range t.Segments {
		i, ok := index[seg.Speaker]
		if !ok {
			i = len(groups)
			index[seg.Speaker] = i
			groups = append(groups, SpeakerGroup{Speaker: seg.Speaker})
			parts = append(parts, nil)
		}
		parts[i] = append(parts[i], strings.TrimSpace(seg.Text))
	}

	for i := range groups {
		groups[i].Text = strings.TrimSpace(strings.Join(parts[i], " "))
	}
	return groups
}

// Validate checks the time bounds and ordering of the segments
func (t *Transcript) Validate() error {
	if t.Duration < 0 {
		return fmt.Errorf("negative duration %v", t.Duration)
	}
	prev := 0.0
	for i, seg := range t.Segments {
		if seg.Start < 0 || seg.End < seg.Start {
			return fmt.Errorf("segment %d has invalid bounds [%v, %v]", i, seg.Start, seg.End)
		}
		if seg.Start < prev {
			return fmt.Errorf("segment %d starts at %v before previous segment at %v", i, seg.Start, prev)
		}
		prev = seg.Start
	}
	return nil
}

// SourceFile describes the audio file selected for transcription
type SourceFile struct {
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type,omitempty"`
	Path        string    `json:"-"`
	SelectedAt  time.Time `json:"selected_at"`
}

// BaseName returns the file name without its final extension
func (f *SourceFile) BaseName() string {
	name := filepath.Base(f.Name)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Options holds the transcription settings sent along with the file
type Options struct {
	Model             string `json:"model" validate:"required"`
	SpeakerSeparation bool   `json:"speaker_separation"`
	SpeakerCount      int    `json:"speaker_count" validate:"required_if=SpeakerSeparation true,gte=0,lte=10"`
}

// DefaultOptions mirrors the defaults of the upload form
func DefaultOptions() Options {
	return Options{
		Model:             "base",
		SpeakerSeparation: true,
		SpeakerCount:      2,
	}
}
