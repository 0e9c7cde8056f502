// Package export serializes a transcript into downloadable artifacts.
//
// Every encoder is a pure function of the transcript and the export
// metadata: nothing here mutates segments or reads session state.
package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/codebuildervaibhav/convertanything/internal/apperr"
	"github.com/codebuildervaibhav/convertanything/internal/types"
)

// ModelLabel is the fixed model description written into exports
const ModelLabel = "Whisper AI + Speaker Diarization"

// DefaultSourceName is used when the source file is unknown
const DefaultSourceName = "demo-audio.mp3"

// Format identifies an export encoding
type Format string

// Supported export formats
const (
	FormatText Format = "txt"
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatSRT  Format = "srt"
	FormatPDF  Format = "pdf"
)

var contentTypes = map[Format]string{
	FormatText: "text/plain; charset=utf-8",
	FormatJSON: "application/json",
	FormatCSV:  "text/csv; charset=utf-8",
	FormatSRT:  "text/plain; charset=utf-8",
	FormatPDF:  "application/pdf",
}

// Formats returns every supported format in display order
func Formats() []Format {
	return []Format{FormatText, FormatJSON, FormatCSV, FormatSRT, FormatPDF}
}

// ParseFormat converts a user-supplied format name
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")))
	if _, ok := contentTypes[f]; !ok {
		return "", apperr.NotFound("export format", s)
	}
	return f, nil
}

// Ext returns the file extension of the format, without the dot
func (f Format) Ext() string { return string(f) }

// ContentType returns the MIME type of the format
func (f Format) ContentType() string { return contentTypes[f] }

// Meta holds the export header fields that do not come from the transcript
type Meta struct {
	SourceName  string
	GeneratedAt time.Time
}

// Source returns the source file name, falling back to the demo name
func (m Meta) Source() string {
	if m.SourceName == "" {
		return DefaultSourceName
	}
	return m.SourceName
}

// Artifact is a generated export ready to be downloaded or stored
type Artifact struct {
	Format      Format
	Filename    string
	ContentType string
	Data        []byte
}

// Filename builds "{base}_transcript.{ext}" for the given source file name
func Filename(sourceName string, f Format) string {
	base := "transcript"
	if sourceName != "" {
		src := types.SourceFile{Name: sourceName}
		if b := src.BaseName(); b != "" {
			base = b
		}
	}
	return fmt.Sprintf("%s_transcript.%s", base, f.Ext())
}

// Encode serializes t in the requested format
func Encode(f Format, t *types.Transcript, meta Meta) (*Artifact, error) {
	if t == nil {
		return nil, apperr.State(apperr.CodeNoResult, "There is no transcript to export yet.")
	}
	if meta.GeneratedAt.IsZero() {
		meta.GeneratedAt = time.Now()
	}

	var (
		data []byte
		err  error
	)
	switch f {
	case FormatText:
		data = EncodeText(t, meta)
	case FormatJSON:
		data, err = EncodeJSON(t, meta)
	case FormatCSV:
		data = EncodeCSV(t)
	case FormatSRT:
		data = EncodeSRT(t)
	case FormatPDF:
		data, err = EncodePDF(t, meta)
	default:
		return nil, apperr.NotFound("export format", string(f))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s export: %w", f, err)
	}

	return &Artifact{
		Format:      f,
		Filename:    Filename(meta.SourceName, f),
		ContentType: f.ContentType(),
		Data:        data,
	}, nil
}
