package queue

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/codebuildervaibhav/convertanything/internal/apperr"
)

// CompletionFunc is called on the worker goroutine after a job finishes
type CompletionFunc func(job *Job)

// WorkerPool runs submitted jobs on a fixed number of workers. Jobs are
// never queued behind a busy pool: Enqueue rejects them instead.
type WorkerPool struct {
	jobQueue    chan *Job
	slots       chan struct{}
	workerCount int
	onComplete  CompletionFunc

	mu      sync.Mutex
	running bool
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(workerCount int, onComplete CompletionFunc) *WorkerPool {
	if workerCount < 1 {
		workerCount = 1
	}
	return &WorkerPool{
		jobQueue:    make(chan *Job, workerCount),
		slots:       make(chan struct{}, workerCount),
		workerCount: workerCount,
		onComplete:  onComplete,
	}
}

// Start initializes all workers. Jobs run with a context derived from ctx.
func (wp *WorkerPool) Start(ctx context.Context) {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.running || wp.stopped {
		return
	}
	ctx, wp.cancel = context.WithCancel(ctx)
	wp.running = true

	log.Info().Int("workers", wp.workerCount).Msg("starting worker pool")
	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

// Enqueue hands job to an idle worker. When every worker is busy the job's
// task is aborted and a busy error is returned.
func (wp *WorkerPool) Enqueue(job *Job) error {
	wp.mu.Lock()
	running := wp.running
	wp.mu.Unlock()

	if running {
		select {
		case wp.slots <- struct{}{}:
			// a held slot guarantees room in jobQueue
			wp.jobQueue <- job
			log.Debug().Str("job", job.ID).Str("session", job.SessionID).Str("file", job.FileName).Msg("job dispatched")
			return nil
		default:
		}
	}

	err := apperr.State(apperr.CodeBusy, "The server is busy with other transcriptions. Please try again shortly.")
	job.Status = StatusFailed
	job.Error = err
	job.Task.Abort(err)
	log.Warn().Str("job", job.ID).Str("session", job.SessionID).Msg("job rejected, all workers busy")
	return err
}

// Busy returns the number of jobs dispatched and not yet finished
func (wp *WorkerPool) Busy() int {
	return len(wp.slots)
}

// Stop cancels running jobs and waits for the workers to exit
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if !wp.running {
		wp.stopped = true
		wp.mu.Unlock()
		return
	}
	wp.running = false
	wp.stopped = true
	wp.cancel()
	wp.mu.Unlock()

	wp.wg.Wait()

	// jobs dispatched but never picked up
	for {
		select {
		case job := <-wp.jobQueue:
			job.Task.Abort(apperr.State(apperr.CodeBusy, "The server is shutting down."))
			<-wp.slots
		default:
			log.Info().Msg("worker pool stopped")
			return
		}
	}
}

// worker processes jobs until the pool is stopped
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()
	log.Debug().Int("worker", id).Msg("worker started")

	for {
		select {
		case <-ctx.Done():
			return
		case job := <-wp.jobQueue:
			wp.process(ctx, id, job)
		}
	}
}

// process runs one job with panic recovery
func (wp *WorkerPool) process(ctx context.Context, workerID int, job *Job) {
	defer func() { <-wp.slots }()
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Int("worker", workerID).
				Str("job", job.ID).
				Str("stack", string(debug.Stack())).
				Msgf("panic processing job: %v", r)
			job.Status = StatusFailed
			job.Error = apperr.Internal(fmt.Errorf("worker panic: %v", r))
			job.Task.Abort(job.Error)
		}
		if wp.onComplete != nil {
			wp.onComplete(job)
		}
	}()

	log.Info().Int("worker", workerID).Str("job", job.ID).Str("session", job.SessionID).Msg("processing job")
	job.Status = StatusProcessing

	result, err := job.Task.Run(ctx)
	if err != nil {
		job.Status = StatusFailed
		job.Error = err
		return
	}
	job.Result = result
	job.Status = StatusCompleted
}
