package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/codebuildervaibhav/convertanything/internal/apperr"
	"github.com/codebuildervaibhav/convertanything/internal/export"
	"github.com/codebuildervaibhav/convertanything/internal/session"
)

const resultBody = `{
	"success": true,
	"result": {
		"text": "Hello there. Hi.",
		"duration": 4,
		"language": "en",
		"segments": [
			{"start": 0, "end": 2, "speaker": "Speaker 1", "text": "Hello there."},
			{"start": 2, "end": 4, "speaker": "Speaker 2", "text": "Hi."}
		]
	}
}`

func fakeService(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/health":
			io.WriteString(w, `{"status":"healthy"}`)
		case "/api/transcribe":
			if r.FormValue("model") != "small" {
				t.Errorf("model = %q, want small", r.FormValue("model"))
			}
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, resultBody)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRunTranscribesAndExports(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	srv := fakeService(t)

	audioPath := filepath.Join(dir, "interview.wav")
	if err := os.WriteFile(audioPath, bytes.Repeat([]byte{1}, 4096), 0644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	err := run([]string{
		"--file", audioPath,
		"--model", "small",
		"--view", "timeline",
		"--format", "txt", "--format", "srt,txt",
		"--out", "exports",
		"--backend-url", srv.URL + "/api",
	}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run() error: %v\nstderr: %s", err, stderr.String())
	}

	out := stdout.String()
	if !strings.Contains(out, "Duration: 0:04  Speakers: 2  Words: 3") {
		t.Errorf("stats header missing:\n%s", out)
	}
	if !strings.Contains(out, "00:02") || !strings.Contains(out, "Hi.") {
		t.Errorf("timeline missing:\n%s", out)
	}
	if !strings.Contains(stderr.String(), "100%") {
		t.Errorf("progress bar never reached 100%%:\n%s", stderr.String())
	}

	for _, name := range []string{"interview_transcript.txt", "interview_transcript.srt"} {
		if _, err := os.Stat(filepath.Join(dir, "exports", name)); err != nil {
			t.Errorf("export %s not written: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "data", "exports.db")); err != nil {
		t.Errorf("history database not created: %v", err)
	}
}

func TestRunRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	srv := fakeService(t)

	notes := filepath.Join(dir, "notes.txt")
	os.WriteFile(notes, bytes.Repeat([]byte{1}, 4096), 0644)

	var stdout, stderr bytes.Buffer
	err := run([]string{"--file", notes, "--backend-url", srv.URL + "/api"}, &stdout, &stderr)
	if e, ok := apperr.As(err); !ok || e.Code != apperr.CodeInvalidFormat {
		t.Errorf("run() error = %v, want invalid format", err)
	}

	err = run([]string{"--file", filepath.Join(dir, "missing.mp3"), "--backend-url", srv.URL + "/api"}, &stdout, &stderr)
	if e, ok := apperr.As(err); !ok || e.Code != apperr.CodeNoFile {
		t.Errorf("run() error = %v, want no file", err)
	}
}

func TestRunPrintConfig(t *testing.T) {
	chdir(t, t.TempDir())

	var stdout, stderr bytes.Buffer
	if err := run([]string{"--print-config", "--backend-url", "http://example.test/api"}, &stdout, &stderr); err != nil {
		t.Fatalf("run() error: %v", err)
	}
	if !strings.Contains(stdout.String(), "url: http://example.test/api") {
		t.Errorf("unexpected config dump:\n%s", stdout.String())
	}
}

func TestParseFormats(t *testing.T) {
	got, err := parseFormats([]string{"srt", "all", "TXT"})
	if err != nil {
		t.Fatalf("parseFormats() error: %v", err)
	}
	if got[0] != export.FormatSRT || len(got) != len(export.Formats()) {
		t.Errorf("parseFormats() = %v", got)
	}

	if _, err := parseFormats([]string{"docx"}); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestProgressLine(t *testing.T) {
	line := progressLine(session.ProgressEvent{Stage: session.StageUploading, Percent: 50, Message: "Uploading"})
	if !strings.HasPrefix(line, "[###############---------------]  50% Uploading") {
		t.Errorf("progressLine() = %q", line)
	}
	if line := progressLine(session.ProgressEvent{Percent: 140}); !strings.Contains(line, "100%") {
		t.Errorf("percent not clamped: %q", line)
	}
}
