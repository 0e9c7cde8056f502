package session

import (
	"time"
)

// Stage names a phase of the request lifecycle
type Stage string

// Progress stages
const (
	StageUploading  Stage = "uploading"
	StageProcessing Stage = "processing"
	StageCompleted  Stage = "completed"
	StageFailed     Stage = "failed"
)

// Upload covers progressStart..progressUploaded percent; the remaining
// span up to 100 is the backend working, which reports nothing until done.
const (
	progressStart    = 5
	progressUploaded = 50
	progressWaiting  = 55

	subscriberBuffer = 32
)

// ProgressEvent is one update of the progress channel
type ProgressEvent struct {
	Stage   Stage     `json:"stage"`
	Percent int       `json:"percent"`
	Message string    `json:"message"`
	Code    string    `json:"code,omitempty"`
	Time    time.Time `json:"time"`
}

// Terminal reports whether no further events follow for this attempt
func (e ProgressEvent) Terminal() bool {
	return e.Stage == StageCompleted || e.Stage == StageFailed
}

// Subscribe returns a channel of progress events and a function that
// unsubscribes. The latest event, if any, is delivered first. Slow
// subscribers miss intermediate upload events but the channel never blocks
// the session.
func (s *Session) Subscribe() (<-chan ProgressEvent, func()) {
	ch := make(chan ProgressEvent, subscriberBuffer)

	s.mu.Lock()
	s.subs[ch] = struct{}{}
	if s.progress != nil {
		ch <- *s.progress
	}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subs[ch]; ok {
			delete(s.subs, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) emit(ev ProgressEvent) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = &ev
	for ch := range s.subs {
		select {
		case ch <- ev:
		default:
			if ev.Terminal() {
				// make room so the outcome is never lost
				select {
				case <-ch:
				default:
				}
				select {
				case ch <- ev:
				default:
				}
			}
		}
	}
}

// uploadTracker converts byte counts into percent and announces the
// switch to the processing stage once the body is fully sent
type uploadTracker struct {
	s           *Session
	lastPercent int
	uploaded    bool
}

func newUploadTracker(s *Session) *uploadTracker {
	return &uploadTracker{s: s, lastPercent: progressStart}
}

func (t *uploadTracker) onProgress(sent, total int64) {
	if total <= 0 || t.uploaded {
		return
	}
	percent := progressStart + int(sent*(progressUploaded-progressStart)/total)
	if percent > t.lastPercent {
		t.lastPercent = percent
		t.s.emit(ProgressEvent{Stage: StageUploading, Percent: percent, Message: "Uploading file to server..."})
	}
	if sent >= total {
		t.uploaded = true
		t.s.emit(ProgressEvent{Stage: StageProcessing, Percent: progressWaiting, Message: "Processing with AI models..."})
	}
}
