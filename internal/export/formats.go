package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/codebuildervaibhav/convertanything/internal/types"
)

// EncodeText renders the human-readable report: header, text merged by
// speaker, then the full timeline.
func EncodeText(t *types.Transcript, meta Meta) []byte {
	var b strings.Builder

	b.WriteString("AUDIO TRANSCRIPTION WITH SPEAKER SEPARATION\n")
	b.WriteString(strings.Repeat("=", 60) + "\n\n")
	fmt.Fprintf(&b, "Source File: %s\n", meta.Source())
	fmt.Fprintf(&b, "Transcribed: %s\n", meta.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Model Used: %s\n", ModelLabel)
	fmt.Fprintf(&b, "Language: %s\n\n", t.LanguageOrDefault())

	b.WriteString("TRANSCRIPT BY SPEAKER:\n")
	b.WriteString(strings.Repeat("-", 30) + "\n\n")
	for _, g := range t.SpeakerGroups() {
		fmt.Fprintf(&b, "[%s]:\n%s\n\n", g.Speaker, g.Text)
	}

	b.WriteString("\n" + strings.Repeat("=", 60) + "\n")
	b.WriteString("DETAILED TIMELINE:\n")
	b.WriteString(strings.Repeat("-", 20) + "\n\n")
	for _, seg := range t.Segments {
		fmt.Fprintf(&b, "[%s - %s] %s: %s\n",
			FormatTimestamp(seg.Start), FormatTimestamp(seg.End), seg.Speaker, strings.TrimSpace(seg.Text))
	}

	return []byte(b.String())
}

// Document is the structure of the JSON export
type Document struct {
	Metadata   DocumentMetadata   `json:"metadata"`
	Transcript DocumentTranscript `json:"transcript"`
}

// DocumentMetadata is the metadata block of the JSON export
type DocumentMetadata struct {
	SourceFile    string  `json:"sourceFile"`
	TranscribedAt string  `json:"transcribedAt"`
	Model         string  `json:"model"`
	Language      string  `json:"language"`
	Duration      float64 `json:"duration"`
	SpeakerCount  int     `json:"speakerCount"`
	WordCount     int     `json:"wordCount"`
}

// DocumentTranscript is the transcript block of the JSON export
type DocumentTranscript struct {
	FullText string          `json:"fullText"`
	Segments []types.Segment `json:"segments"`
}

// ToTranscript rebuilds the transcript carried by the document
func (d *Document) ToTranscript() *types.Transcript {
	return &types.Transcript{
		Text:     d.Transcript.FullText,
		Duration: d.Metadata.Duration,
		Language: d.Metadata.Language,
		Segments: d.Transcript.Segments,
	}
}

// isoMillis matches the machine-parseable timestamp of the JSON export
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// EncodeJSON renders the pretty-printed structured export
func EncodeJSON(t *types.Transcript, meta Meta) ([]byte, error) {
	segments := t.Segments
	if segments == nil {
		segments = []types.Segment{}
	}

	doc := Document{
		Metadata: DocumentMetadata{
			SourceFile:    meta.Source(),
			TranscribedAt: meta.GeneratedAt.UTC().Format(isoMillis),
			Model:         ModelLabel,
			Language:      t.LanguageOrDefault(),
			Duration:      t.Duration,
			SpeakerCount:  t.SpeakerCount(),
			WordCount:     t.WordCount(),
		},
		Transcript: DocumentTranscript{
			FullText: t.Text,
			Segments: segments,
		},
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeJSON parses a JSON export back into a document
func DecodeJSON(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse transcript export: %w", err)
	}
	return &doc, nil
}

// EncodeCSV renders one quoted row per segment
func EncodeCSV(t *types.Transcript) []byte {
	var b strings.Builder
	b.WriteString("Start Time,End Time,Speaker,Text\n")
	for _, seg := range t.Segments {
		writeCSVRow(&b,
			FormatTimestamp(seg.Start),
			FormatTimestamp(seg.End),
			seg.Speaker,
			strings.TrimSpace(seg.Text),
		)
	}
	return []byte(b.String())
}

// writeCSVRow quotes every field and doubles embedded quotes
func writeCSVRow(b *strings.Builder, fields ...string) {
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(f, `"`, `""`))
		b.WriteByte('"')
	}
	b.WriteByte('\n')
}

// EncodeSRT renders one numbered cue per segment
func EncodeSRT(t *types.Transcript) []byte {
	var b strings.Builder
	for i, seg := range t.Segments {
		fmt.Fprintf(&b, "%d\n", i+1)
		fmt.Fprintf(&b, "%s --> %s\n", FormatSRTTimestamp(seg.Start), FormatSRTTimestamp(seg.End))
		fmt.Fprintf(&b, "[%s] %s\n\n", seg.Speaker, strings.TrimSpace(seg.Text))
	}
	return []byte(b.String())
}
