package queue

import (
	"context"
	"time"

	"github.com/codebuildervaibhav/convertanything/internal/types"
)

// Job status values
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Task is the unit of work a job executes. A session attempt satisfies it.
type Task interface {
	Run(ctx context.Context) (*types.Transcript, error)
	Abort(err error)
}

// Job represents one transcription submission handed to the pool
type Job struct {
	ID        string
	SessionID string
	FileName  string
	Task      Task
	Status    string
	Error     error
	Result    *types.Transcript
	CreatedAt time.Time
}

// NewJob creates a new job with default values
func NewJob(id, sessionID, fileName string, task Task) *Job {
	return &Job{
		ID:        id,
		SessionID: sessionID,
		FileName:  fileName,
		Task:      task,
		Status:    StatusQueued,
		CreatedAt: time.Now(),
	}
}
