package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/codebuildervaibhav/convertanything/internal/apperr"
	"github.com/codebuildervaibhav/convertanything/internal/backend"
	"github.com/codebuildervaibhav/convertanything/internal/export"
	"github.com/codebuildervaibhav/convertanything/internal/types"
	"github.com/codebuildervaibhav/convertanything/internal/views"
)

// fakeBackend simulates the transcription service
type fakeBackend struct {
	result *types.Transcript
	err    error
	block  chan struct{}
	calls  atomic.Int32
	got    backend.Request
}

func (f *fakeBackend) Transcribe(ctx context.Context, req backend.Request) (*types.Transcript, error) {
	f.calls.Add(1)
	f.got = req
	if req.Progress != nil {
		req.Progress(500, 1000)
		req.Progress(1000, 1000)
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, apperr.Timeout(ctx.Err())
		}
	}
	return f.result, f.err
}

func twoSpeakers() *types.Transcript {
	return &types.Transcript{
		Text:     "Hello there. Hi. How are you?",
		Duration: 9,
		Language: "en",
		Segments: []types.Segment{
			{Start: 0, End: 2, Speaker: "Speaker 1", Text: "Hello there."},
			{Start: 2, End: 4, Speaker: "Speaker 2", Text: "Hi."},
			{Start: 4, End: 9, Speaker: "Speaker 1", Text: "How are you?"},
		},
	}
}

func audioFile(t *testing.T) types.SourceFile {
	return types.SourceFile{Name: "meeting.mp3", Size: 2048, ContentType: "audio/mpeg", Path: filepath.Join(t.TempDir(), "meeting.mp3")}
}

func TestSubmitEndToEnd(t *testing.T) {
	fb := &fakeBackend{result: twoSpeakers()}
	s := New("s1", fb)

	if err := s.SelectFile(audioFile(t)); err != nil {
		t.Fatalf("SelectFile() error: %v", err)
	}
	if got := s.Snapshot().State; got != types.StateFileSelected {
		t.Fatalf("state = %s, want file_selected", got)
	}

	opts := types.Options{Model: "base", SpeakerSeparation: true, SpeakerCount: 2}
	tr, err := s.Submit(context.Background(), opts)
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	snap := s.Snapshot()
	if snap.State != types.StateCompleted || snap.IsProcessing || !snap.HasResult {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if fb.got.Options != opts {
		t.Errorf("backend received options %+v", fb.got.Options)
	}
	if tr.SpeakerCount() != 2 {
		t.Errorf("speaker count = %d, want 2", tr.SpeakerCount())
	}

	for _, mode := range views.Modes() {
		if _, err := views.Project(tr, mode); err != nil {
			t.Errorf("view %s failed: %v", mode, err)
		}
	}
	meta := export.Meta{SourceName: snap.File.Name, GeneratedAt: time.Now()}
	for _, f := range export.Formats() {
		a, err := export.Encode(f, tr, meta)
		if err != nil {
			t.Fatalf("export %s failed: %v", f, err)
		}
		if len(a.Data) == 0 || filepath.Ext(a.Filename) != "."+f.Ext() {
			t.Errorf("export %s produced %q with %d bytes", f, a.Filename, len(a.Data))
		}
	}
}

func TestSubmitTimeout(t *testing.T) {
	fb := &fakeBackend{block: make(chan struct{})}
	defer close(fb.block)

	s := New("s1", fb, WithTimeout(20*time.Millisecond))
	s.SelectFile(audioFile(t))

	_, err := s.Submit(context.Background(), types.DefaultOptions())
	if apperr.KindOf(err) != apperr.KindTimeout {
		t.Fatalf("expected timeout error, got %v", err)
	}

	snap := s.Snapshot()
	if snap.LastError != apperr.TimeoutMessage {
		t.Errorf("LastError = %q", snap.LastError)
	}
	if snap.State != types.StateFileSelected || snap.IsProcessing {
		t.Errorf("expected file_selected and not processing, got %s/%v", snap.State, snap.IsProcessing)
	}
	if snap.HasResult {
		t.Error("failed attempt must not leave a result")
	}
}

func TestSubmitBackendFailure(t *testing.T) {
	fb := &fakeBackend{err: apperr.Backend("No speech detected", nil)}
	s := New("s1", fb)
	s.SelectFile(audioFile(t))

	if _, err := s.Submit(context.Background(), types.DefaultOptions()); err == nil {
		t.Fatal("expected error")
	}
	snap := s.Snapshot()
	if snap.LastError != "No speech detected" || snap.State != types.StateFileSelected {
		t.Errorf("unexpected snapshot %+v", snap)
	}

	// resubmission is allowed after a failure
	fb.err = nil
	fb.result = twoSpeakers()
	if _, err := s.Submit(context.Background(), types.DefaultOptions()); err != nil {
		t.Fatalf("resubmit error: %v", err)
	}
	if s.Snapshot().LastError != "" {
		t.Error("successful attempt should clear the previous error")
	}
}

func TestSubmitRejectsConcurrentAttempt(t *testing.T) {
	fb := &fakeBackend{result: twoSpeakers(), block: make(chan struct{})}
	s := New("s1", fb)
	s.SelectFile(audioFile(t))

	attempt, err := s.Begin(types.DefaultOptions())
	if err != nil {
		t.Fatalf("Begin() error: %v", err)
	}
	done := make(chan error, 1)
	go func() {
		_, err := attempt.Run(context.Background())
		done <- err
	}()

	_, err = s.Begin(types.DefaultOptions())
	if e, ok := apperr.As(err); !ok || e.Code != apperr.CodeBusy {
		t.Fatalf("expected busy error, got %v", err)
	}
	if err := s.Reset(); apperr.KindOf(err) != apperr.KindState {
		t.Errorf("reset while submitting should fail, got %v", err)
	}

	close(fb.block)
	if err := <-done; err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if n := fb.calls.Load(); n != 1 {
		t.Errorf("backend called %d times, want 1", n)
	}
}

func TestSubmitWithoutFile(t *testing.T) {
	fb := &fakeBackend{result: twoSpeakers()}
	s := New("s1", fb)

	_, err := s.Submit(context.Background(), types.DefaultOptions())
	if e, ok := apperr.As(err); !ok || e.Code != apperr.CodeNoFile {
		t.Fatalf("expected no file error, got %v", err)
	}
	if fb.calls.Load() != 0 {
		t.Error("backend must not be called without a file")
	}
	if s.Snapshot().State != types.StateIdle {
		t.Error("state should stay idle")
	}
}

func TestSubmitInvalidOptions(t *testing.T) {
	fb := &fakeBackend{result: twoSpeakers()}
	s := New("s1", fb)
	s.SelectFile(audioFile(t))

	_, err := s.Submit(context.Background(), types.Options{Model: "base", SpeakerSeparation: true, SpeakerCount: 12})
	if e, ok := apperr.As(err); !ok || e.Code != apperr.CodeInvalidOptions {
		t.Fatalf("expected invalid options, got %v", err)
	}
	if s.Snapshot().State != types.StateFileSelected || fb.calls.Load() != 0 {
		t.Error("invalid options must not change state or reach the backend")
	}
}

func TestSelectFileRejectionKeepsState(t *testing.T) {
	s := New("s1", &fakeBackend{})
	good := audioFile(t)
	s.SelectFile(good)

	err := s.SelectFile(types.SourceFile{Name: "tiny.mp3", Size: 500})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	snap := s.Snapshot()
	if snap.State != types.StateFileSelected || snap.File.Name != good.Name {
		t.Errorf("rejected file replaced the current one: %+v", snap.File)
	}
	if snap.LastError == "" {
		t.Error("rejection should be visible in the snapshot")
	}
}

func TestResetDiscardsFileAndResult(t *testing.T) {
	var discarded []string
	fb := &fakeBackend{result: twoSpeakers()}
	s := New("s1", fb, WithDiscard(func(f types.SourceFile) {
		discarded = append(discarded, f.Path)
	}))
	file := audioFile(t)
	s.SelectFile(file)
	s.Submit(context.Background(), types.DefaultOptions())

	if err := s.SelectFile(audioFile(t)); apperr.KindOf(err) != apperr.KindState {
		t.Errorf("selecting a file after completion should require a reset, got %v", err)
	}
	if err := s.Reset(); err != nil {
		t.Fatalf("Reset() error: %v", err)
	}

	snap := s.Snapshot()
	if snap.State != types.StateIdle || snap.File != nil || snap.HasResult {
		t.Errorf("unexpected snapshot after reset %+v", snap)
	}
	if _, err := s.Transcript(); apperr.KindOf(err) != apperr.KindState {
		t.Errorf("expected no result after reset, got %v", err)
	}
	if len(discarded) != 1 || discarded[0] != file.Path {
		t.Errorf("discarded = %v", discarded)
	}
}

func TestProgressEvents(t *testing.T) {
	fb := &fakeBackend{result: twoSpeakers()}
	s := New("s1", fb)
	s.SelectFile(audioFile(t))

	events, cancel := s.Subscribe()
	defer cancel()

	if _, err := s.Submit(context.Background(), types.DefaultOptions()); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	var got []ProgressEvent
	for ev := range events {
		got = append(got, ev)
		if ev.Terminal() {
			break
		}
	}

	wantStages := []Stage{StageUploading, StageUploading, StageUploading, StageProcessing, StageCompleted}
	if len(got) != len(wantStages) {
		t.Fatalf("got %d events: %+v", len(got), got)
	}
	prev := 0
	for i, ev := range got {
		if ev.Stage != wantStages[i] {
			t.Errorf("event %d stage = %s, want %s", i, ev.Stage, wantStages[i])
		}
		if ev.Percent < prev {
			t.Errorf("progress went backwards at %d: %d < %d", i, ev.Percent, prev)
		}
		prev = ev.Percent
	}
	if got[len(got)-1].Percent != 100 {
		t.Errorf("final percent = %d", got[len(got)-1].Percent)
	}
}

func TestProgressFailedEvent(t *testing.T) {
	fb := &fakeBackend{err: errors.New("connection reset")}
	s := New("s1", fb)
	s.SelectFile(audioFile(t))
	s.Submit(context.Background(), types.DefaultOptions())

	events, cancel := s.Subscribe()
	defer cancel()
	ev := <-events
	if ev.Stage != StageFailed || ev.Message == "" {
		t.Errorf("expected replay of failed event, got %+v", ev)
	}
}

func TestAbort(t *testing.T) {
	fb := &fakeBackend{result: twoSpeakers()}
	s := New("s1", fb)
	s.SelectFile(audioFile(t))

	attempt, err := s.Begin(types.DefaultOptions())
	if err != nil {
		t.Fatalf("Begin() error: %v", err)
	}
	attempt.Abort(apperr.State(apperr.CodeBusy, "Server is busy"))

	snap := s.Snapshot()
	if snap.IsProcessing || snap.State != types.StateFileSelected || snap.LastError != "Server is busy" {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if _, err := attempt.Run(context.Background()); err == nil {
		t.Error("aborted attempt must not run")
	}
	if fb.calls.Load() != 0 {
		t.Error("aborted attempt reached the backend")
	}
}
