package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dfryer1193/goblog-images/blog/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	DefaultQueueSize  = 64
	DefaultJobTimeout = 30 * time.Second
)

// WorkerConfig bounds the resize queue.
type WorkerConfig struct {
	// QueueSize is how many jobs may wait behind the running one.
	QueueSize int

	// JobTimeout is measured from Enqueue and covers queueing and running.
	JobTimeout time.Duration
}

// ResizeJob is a queued resize and the future for its result.
type ResizeJob struct {
	ID         string
	SourcePath string
	Width      int

	enqueuedAt time.Time
	deadline   time.Time

	once sync.Once
	done chan struct{}
	data []byte
	err  error
}

func newResizeJob(sourcePath string, width int, timeout time.Duration) *ResizeJob {
	now := time.Now()
	return &ResizeJob{
		ID:         uuid.NewString(),
		SourcePath: sourcePath,
		Width:      width,
		enqueuedAt: now,
		deadline:   now.Add(timeout),
		done:       make(chan struct{}),
	}
}

// resolve settles the job. Only the first call has any effect.
func (j *ResizeJob) resolve(data []byte, err error) {
	j.once.Do(func() {
		j.data, j.err = data, err
		close(j.done)
	})
}

// Done is closed once the job has a result.
func (j *ResizeJob) Done() <-chan struct{} {
	return j.done
}

// Wait blocks until the job is settled or ctx is done. Giving up on the wait
// does not cancel the job.
func (j *ResizeJob) Wait(ctx context.Context) ([]byte, error) {
	select {
	case <-j.done:
		return j.data, j.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ResizeWorker runs every resize through a single goroutine, in FIFO order, so
// the Transcoder is never entered concurrently. Enqueue is safe for concurrent
// use and never waits for a running job.
type ResizeWorker struct {
	transcoder Transcoder
	timeout    time.Duration
	jobs       chan *ResizeJob

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewResizeWorker starts the worker goroutine. Call Close to stop it.
func NewResizeWorker(transcoder Transcoder, cfg WorkerConfig) *ResizeWorker {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = DefaultJobTimeout
	}

	w := &ResizeWorker{
		transcoder: transcoder,
		timeout:    cfg.JobTimeout,
		jobs:       make(chan *ResizeJob, cfg.QueueSize),
		done:       make(chan struct{}),
	}
	go w.run()
	return w
}

// Enqueue appends a resize of sourcePath to width at the tail of the queue.
// It fails fast with domain.ErrQueueFull when the queue has no room.
func (w *ResizeWorker) Enqueue(sourcePath string, width int) (*ResizeJob, error) {
	if width <= 0 {
		return nil, fmt.Errorf("%w: width must be positive, got %d", domain.ErrInvalidParameter, width)
	}

	job := newResizeJob(sourcePath, width, w.timeout)

	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return nil, domain.ErrWorkerClosed
	}

	select {
	case w.jobs <- job:
		return job, nil
	default:
		return nil, fmt.Errorf("%w: %d jobs pending", domain.ErrQueueFull, cap(w.jobs))
	}
}

// Pending reports how many jobs are waiting to run.
func (w *ResizeWorker) Pending() int {
	return len(w.jobs)
}

// Close stops accepting jobs, rejects the ones still queued with
// domain.ErrWorkerClosed, and waits for the running job to finish.
func (w *ResizeWorker) Close() error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.jobs)
	}
	w.mu.Unlock()

	<-w.done
	return nil
}

func (w *ResizeWorker) isClosed() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.closed
}

func (w *ResizeWorker) run() {
	defer close(w.done)
	for job := range w.jobs {
		if w.isClosed() {
			job.resolve(nil, domain.ErrWorkerClosed)
			continue
		}
		w.process(job)
	}
}

type transcodeResult struct {
	data []byte
	err  error
}

func (w *ResizeWorker) process(job *ResizeJob) {
	logger := log.With().
		Str("job", job.ID).
		Str("path", job.SourcePath).
		Int("width", job.Width).
		Logger()

	queued := time.Since(job.enqueuedAt)
	remaining := time.Until(job.deadline)
	if remaining <= 0 {
		logger.Warn().Dur("queued", queued).Msg("Resize job expired before it could run")
		job.resolve(nil, fmt.Errorf("%w: expired after %s in queue", domain.ErrJobTimeout, queued))
		return
	}

	start := time.Now()
	resultc := make(chan transcodeResult, 1)
	go func() {
		resultc <- w.transcode(job)
	}()

	timer := time.NewTimer(remaining)
	defer timer.Stop()

	select {
	case res := <-resultc:
		job.resolve(res.data, res.err)
		if res.err != nil {
			logger.Error().Err(res.err).Dur("took", time.Since(start)).Msg("Resize job failed")
			return
		}
		logger.Debug().Dur("queued", queued).Dur("took", time.Since(start)).Int("bytes", len(res.data)).Msg("Resize job done")
	case <-timer.C:
		job.resolve(nil, fmt.Errorf("%w: still running after %s", domain.ErrJobTimeout, w.timeout))
		logger.Warn().Dur("took", time.Since(start)).Msg("Resize job timed out, waiting for transcoder to return")
		// The transcoder is not reentrant; the slot stays taken until it returns.
		<-resultc
	}
}

func (w *ResizeWorker) transcode(job *ResizeJob) (res transcodeResult) {
	defer func() {
		if p := recover(); p != nil {
			res = transcodeResult{err: fmt.Errorf("%w: panic: %v", domain.ErrProcessingFailure, p)}
		}
	}()

	data, err := w.transcoder.Transcode(job.SourcePath, job.Width)
	return transcodeResult{data: data, err: err}
}
