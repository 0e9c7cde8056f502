// Package audio checks that a selected file looks like something the
// transcription backend can decode.
package audio

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/codebuildervaibhav/convertanything/internal/apperr"
	"github.com/codebuildervaibhav/convertanything/internal/types"
)

// Size limits in bytes
const (
	MaxFileSize int64 = 100 * 1024 * 1024
	MinFileSize int64 = 1024
)

var supportedFormats = []string{".mp3", ".wav", ".m4a", ".flac", ".ogg", ".mp4"}

// SupportedFormats returns the accepted file extensions
func SupportedFormats() []string {
	out := make([]string, len(supportedFormats))
	copy(out, supportedFormats)
	return out
}

// ValidateAudioFormat reports whether the name or MIME type identifies an
// audio or video file
func ValidateAudioFormat(filename, contentType string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, format := range supportedFormats {
		if ext == format {
			return true
		}
	}
	contentType = strings.ToLower(contentType)
	return strings.HasPrefix(contentType, "audio/") || strings.HasPrefix(contentType, "video/")
}

// Validate checks type, then maximum size, then minimum size, and returns
// the first failure as a validation error.
func Validate(f types.SourceFile) error {
	if f.Name == "" && f.Size == 0 {
		return apperr.Validation(apperr.CodeNoFile, "Please select an audio file first.")
	}
	if !ValidateAudioFormat(f.Name, f.ContentType) {
		return apperr.Validation(apperr.CodeInvalidFormat,
			"Please select a valid audio file. Supported formats: MP3, WAV, M4A, FLAC, OGG")
	}
	if f.Size > MaxFileSize {
		return apperr.Validation(apperr.CodeFileTooLarge,
			fmt.Sprintf("File size must be less than 100MB. Your file is %s.", FormatFileSize(f.Size)))
	}
	if f.Size < MinFileSize {
		return apperr.Validation(apperr.CodeFileTooSmall,
			"File appears to be too small or empty. Please select a valid audio file.")
	}
	return nil
}

// FormatFileSize renders a byte count with up to two decimals, e.g. "1.5 MB"
func FormatFileSize(n int64) string {
	if n <= 0 {
		return "0 Bytes"
	}
	units := []string{"Bytes", "KB", "MB", "GB"}
	size := float64(n)
	i := 0
	for size >= 1024 && i < len(units)-1 {
		size /= 1024
		i++
	}
	s := strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", size), "0"), ".")
	return s + " " + units[i]
}
