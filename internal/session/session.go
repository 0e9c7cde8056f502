// Package session implements the transcription session: the selected file,
// the submission lifecycle and the stored result.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codebuildervaibhav/convertanything/internal/apperr"
	"github.com/codebuildervaibhav/convertanything/internal/audio"
	"github.com/codebuildervaibhav/convertanything/internal/backend"
	"github.com/codebuildervaibhav/convertanything/internal/types"
	"github.com/codebuildervaibhav/convertanything/internal/validation"
)

// DefaultTimeout bounds one transcription attempt
const DefaultTimeout = 5 * time.Minute

// Transcriber is the backend collaborator
type Transcriber interface {
	Transcribe(ctx context.Context, req backend.Request) (*types.Transcript, error)
}

// Snapshot is a point-in-time copy of a session
type Snapshot struct {
	ID           string            `json:"id"`
	State        string            `json:"state"`
	File         *types.SourceFile `json:"file,omitempty"`
	Options      types.Options     `json:"options"`
	Transcript   *types.Transcript `json:"-"`
	HasResult    bool              `json:"has_result"`
	IsProcessing bool              `json:"is_processing"`
	LastError    string            `json:"last_error,omitempty"`
	ErrorCode    string            `json:"error_code,omitempty"`
	Progress     *ProgressEvent    `json:"progress,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Session holds the state of one transcription workflow. All methods are
// safe for concurrent use; at most one attempt is in flight at a time.
type Session struct {
	mu sync.Mutex

	id         string
	state      string
	file       *types.SourceFile
	options    types.Options
	transcript *types.Transcript
	lastErr    *apperr.Error
	processing bool
	progress   *ProgressEvent

	backend   Transcriber
	timeout   time.Duration
	onDiscard func(types.SourceFile)

	subs map[chan ProgressEvent]struct{}

	createdAt time.Time
	updatedAt time.Time
}

// Option configures a Session
type Option func(*Session)

// WithTimeout sets the deadline of each attempt
func WithTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithDiscard registers a hook called with a file the session stops
// referencing, so the owner can delete the stored upload
func WithDiscard(fn func(types.SourceFile)) Option {
	return func(s *Session) {
		s.onDiscard = fn
	}
}

// New creates an idle session
func New(id string, b Transcriber, opts ...Option) *Session {
	now := time.Now()
	s := &Session{
		id:        id,
		state:     types.StateIdle,
		options:   types.DefaultOptions(),
		backend:   b,
		timeout:   DefaultTimeout,
		subs:      make(map[chan ProgressEvent]struct{}),
		createdAt: now,
		updatedAt: now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// Snapshot returns a copy of the current state
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:           s.id,
		State:        s.state,
		Options:      s.options,
		Transcript:   s.transcript,
		HasResult:    s.transcript != nil,
		IsProcessing: s.processing,
		CreatedAt:    s.createdAt,
		UpdatedAt:    s.updatedAt,
	}
	if s.file != nil {
		f := *s.file
		snap.File = &f
	}
	if s.lastErr != nil {
		snap.LastError = s.lastErr.Message
		snap.ErrorCode = s.lastErr.Code
	}
	if s.progress != nil {
		p := *s.progress
		snap.Progress = &p
	}
	return snap
}

// Transcript returns the stored result or a state error when there is none
func (s *Session) Transcript() (*types.Transcript, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transcript == nil {
		return nil, apperr.State(apperr.CodeNoResult, "There is no transcript yet. Transcribe a file first.")
	}
	return s.transcript, nil
}

// SelectFile validates f and makes it the current file. A rejected file
// leaves the session unchanged.
func (s *Session) SelectFile(f types.SourceFile) error {
	if err := audio.Validate(f); err != nil {
		s.recordError(err)
		return err
	}

	s.mu.Lock()
	if s.state != types.StateIdle && s.state != types.StateFileSelected {
		s.mu.Unlock()
		return apperr.State(apperr.CodeInvalidState, "Start a new transcription before selecting another file.")
	}
	prev := s.file
	if f.SelectedAt.IsZero() {
		f.SelectedAt = time.Now()
	}
	s.file = &f
	s.state = types.StateFileSelected
	s.lastErr = nil
	s.progress = nil
	s.touch()
	s.mu.Unlock()

	if prev != nil && prev.Path != f.Path {
		s.discard(*prev)
	}
	log.Info().Str("session", s.id).Str("file", f.Name).Int64("size", f.Size).Msg("file selected")
	return nil
}

// RemoveFile drops the selected file and returns to idle
func (s *Session) RemoveFile() error {
	s.mu.Lock()
	if s.processing {
		s.mu.Unlock()
		return busyError()
	}
	if s.file == nil {
		s.mu.Unlock()
		return apperr.Validation(apperr.CodeNoFile, "No file is selected.")
	}
	s.mu.Unlock()
	return s.Reset()
}

// Reset returns to idle, discarding the file and the result
func (s *Session) Reset() error {
	s.mu.Lock()
	if s.processing {
		s.mu.Unlock()
		return busyError()
	}
	prev := s.file
	s.file = nil
	s.transcript = nil
	s.lastErr = nil
	s.progress = nil
	s.state = types.StateIdle
	s.touch()
	s.mu.Unlock()

	if prev != nil {
		s.discard(*prev)
	}
	log.Debug().Str("session", s.id).Msg("session reset")
	return nil
}

// Close discards the file and drops every subscriber
func (s *Session) Close() {
	s.mu.Lock()
	prev := s.file
	s.file = nil
	for ch := range s.subs {
		close(ch)
		delete(s.subs, ch)
	}
	s.mu.Unlock()

	if prev != nil {
		s.discard(*prev)
	}
}

// Attempt is one accepted submission. It must be finished with Run or
// Abort, exactly once.
type Attempt struct {
	s       *Session
	file    types.SourceFile
	options types.Options
	once    sync.Once
}

// Begin validates opts and claims the session for a submission. It fails
// when no file is selected or another submission is in flight.
func (s *Session) Begin(opts types.Options) (*Attempt, error) {
	if err := validation.Struct(opts); err != nil {
		s.recordError(err)
		return nil, err
	}

	s.mu.Lock()
	if s.processing {
		s.mu.Unlock()
		return nil, busyError()
	}
	if s.file == nil {
		s.mu.Unlock()
		err := apperr.Validation(apperr.CodeNoFile, "Please select an audio file first.")
		s.recordError(err)
		return nil, err
	}

	s.processing = true
	s.state = types.StateSubmitting
	s.options = opts
	s.transcript = nil
	s.lastErr = nil
	s.touch()
	file := *s.file
	s.mu.Unlock()

	s.emit(ProgressEvent{Stage: StageUploading, Percent: progressStart, Message: "Uploading file to server..."})
	return &Attempt{s: s, file: file, options: opts}, nil
}

// Run sends the request and stores the outcome. The attempt deadline is
// applied on top of ctx.
func (a *Attempt) Run(ctx context.Context) (*types.Transcript, error) {
	var (
		tr  *types.Transcript
		err error
	)
	ran := false
	a.once.Do(func() {
		ran = true
		tr, err = a.run(ctx)
	})
	if !ran {
		return nil, apperr.State(apperr.CodeInvalidState, "This submission has already finished.")
	}
	return tr, err
}

func (a *Attempt) run(ctx context.Context) (*types.Transcript, error) {
	s := a.s
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	log.Info().
		Str("session", s.id).
		Str("file", a.file.Name).
		Str("model", a.options.Model).
		Dur("timeout", s.timeout).
		Msg("transcription started")

	start := time.Now()
	tracker := newUploadTracker(s)
	tr, err := s.backend.Transcribe(ctx, backend.Request{
		File:     a.file,
		Options:  a.options,
		Progress: tracker.onProgress,
	})
	if err == nil && tr == nil {
		err = apperr.Backend("Transcription failed", nil)
	}
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded && apperr.KindOf(err) != apperr.KindTimeout {
			err = apperr.Timeout(err)
		}
		a.fail(err)
		return nil, apperr.From(err)
	}

	s.mu.Lock()
	s.processing = false
	s.transcript = tr
	s.state = types.StateCompleted
	s.touch()
	s.mu.Unlock()

	s.emit(ProgressEvent{Stage: StageCompleted, Percent: 100, Message: "Complete!"})
	log.Info().
		Str("session", s.id).
		Dur("elapsed", time.Since(start)).
		Int("segments", len(tr.Segments)).
		Int("speakers", tr.SpeakerCount()).
		Msg("transcription completed")
	return tr, nil
}

// Abort fails an attempt that will never run
func (a *Attempt) Abort(err error) {
	a.once.Do(func() {
		a.fail(err)
	})
}

func (a *Attempt) fail(err error) {
	s := a.s
	e := apperr.From(err)

	s.mu.Lock()
	s.processing = false
	s.lastErr = e
	if s.file != nil {
		s.state = types.StateFileSelected
	} else {
		s.state = types.StateIdle
	}
	s.touch()
	s.mu.Unlock()

	s.emit(ProgressEvent{Stage: StageFailed, Percent: 0, Message: e.Message, Code: e.Code})
	log.Warn().Err(err).Str("session", s.id).Str("code", e.Code).Msg("transcription failed")
}

// Submit begins and runs an attempt on the calling goroutine
func (s *Session) Submit(ctx context.Context, opts types.Options) (*types.Transcript, error) {
	attempt, err := s.Begin(opts)
	if err != nil {
		return nil, err
	}
	return attempt.Run(ctx)
}

// IdleSince returns the time of the last state change, or zero while a
// submission is in flight
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.processing {
		return time.Time{}
	}
	return s.updatedAt
}

// recordError surfaces a rejected operation without changing state
func (s *Session) recordError(err error) {
	s.mu.Lock()
	s.lastErr = apperr.From(err)
	s.touch()
	s.mu.Unlock()
}

func (s *Session) discard(f types.SourceFile) {
	if s.onDiscard != nil && f.Path != "" {
		s.onDiscard(f)
	}
}

// touch must be called with mu held
func (s *Session) touch() {
	s.updatedAt = time.Now()
}

func busyError() error {
	return apperr.State(apperr.CodeBusy, "A transcription is already in progress. Please wait for it to finish.")
}
