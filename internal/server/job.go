package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/guiyumin/vbrief/internal/core/apperr"
	"github.com/guiyumin/vbrief/internal/core/extractor"
	"github.com/guiyumin/vbrief/internal/core/pipeline"
	"github.com/guiyumin/vbrief/internal/core/source"
)

// JobStatus represents the current state of a summarize job
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

func (s JobStatus) finished() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Job is an asynchronous summarization.
type Job struct {
	ID        string            `json:"id"`
	SessionID string            `json:"session_id"`
	Source    source.Descriptor `json:"source"`
	Length    string            `json:"length"`
	Status    JobStatus         `json:"status"`
	Stage     extractor.Stage   `json:"stage,omitempty"`
	Result    *summaryPayload   `json:"result,omitempty"`
	ErrorKind apperr.Kind       `json:"error_kind,omitempty"`
	Error     string            `json:"error,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`

	cancel context.CancelFunc
	ctx    context.Context
}

// SummarizeFunc runs one job, reporting stage transitions through onStage.
type SummarizeFunc func(ctx context.Context, job *Job, onStage extractor.StageFunc) (*pipeline.Response, error)

// JobQueue runs summarize jobs on a fixed worker pool
type JobQueue struct {
	jobs          map[string]*Job
	mu            sync.RWMutex
	queue         chan *Job
	maxConcurrent int
	summarizeFn   SummarizeFunc
	logger        *slog.Logger
	wg            sync.WaitGroup
	stopped       bool
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
}

// ErrQueueFull is returned by AddJob when no more jobs can be buffered.
var ErrQueueFull = errors.New("job queue is full")

// NewJobQueue creates a job queue. One worker is the default: summarizing
// is dominated by transcription, which saturates the machine on its own.
func NewJobQueue(maxConcurrent int, summarizeFn SummarizeFunc, logger *slog.Logger) *JobQueue {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &JobQueue{
		jobs:          make(map[string]*Job),
		queue:         make(chan *Job, 100),
		maxConcurrent: maxConcurrent,
		summarizeFn:   summarizeFn,
		logger:        logger,
		stopCleanup:   make(chan struct{}),
	}
}

// Start begins the worker pool and cleanup routine
func (jq *JobQueue) Start() {
	for i := 0; i < jq.maxConcurrent; i++ {
		jq.wg.Add(1)
		go jq.worker()
	}

	// every 10 minutes, drop finished jobs older than an hour
	jq.cleanupTicker = time.NewTicker(10 * time.Minute)
	go jq.cleanupLoop()
}

// Stop cancels outstanding jobs and waits for the workers to exit.
func (jq *JobQueue) Stop() {
	jq.mu.Lock()
	if jq.stopped {
		jq.mu.Unlock()
		return
	}
	jq.stopped = true
	for _, job := range jq.jobs {
		if !job.Status.finished() {
			job.cancel()
		}
	}
	close(jq.queue)
	jq.mu.Unlock()

	close(jq.stopCleanup)
	if jq.cleanupTicker != nil {
		jq.cleanupTicker.Stop()
	}
	jq.wg.Wait()
}

func (jq *JobQueue) worker() {
	defer jq.wg.Done()

	for job := range jq.queue {
		jq.processJob(job)
	}
}

func (jq *JobQueue) processJob(job *Job) {
	if !jq.markRunning(job.ID) {
		return
	}

	onStage := func(stage extractor.Stage) {
		jq.updateJob(job.ID, func(j *Job) { j.Stage = stage })
	}

	snapshot := jq.GetJob(job.ID)
	resp, err := jq.summarizeFn(job.ctx, snapshot, onStage)

	switch {
	case err != nil && errors.Is(job.ctx.Err(), context.Canceled):
		jq.updateJob(job.ID, func(j *Job) {
			j.Status = JobStatusCancelled
			j.Error = "cancelled by user"
		})
	case err != nil:
		jq.logger.Warn("job failed", "job", job.ID, "kind", apperr.KindOf(err), "error", err)
		jq.updateJob(job.ID, func(j *Job) {
			j.Status = JobStatusFailed
			j.ErrorKind = apperr.KindOf(err)
			j.Error = apperr.Message(err)
		})
	default:
		jq.updateJob(job.ID, func(j *Job) {
			j.Status = JobStatusCompleted
			j.Result = &summaryPayload{SessionID: j.SessionID, Response: resp}
		})
	}
}

func (jq *JobQueue) markRunning(id string) bool {
	jq.mu.Lock()
	defer jq.mu.Unlock()

	job, ok := jq.jobs[id]
	if !ok || job.Status != JobStatusQueued {
		return false
	}
	job.Status = JobStatusRunning
	job.UpdatedAt = time.Now()
	return true
}

func (jq *JobQueue) cleanupLoop() {
	for {
		select {
		case <-jq.cleanupTicker.C:
			jq.cleanupOldJobs(time.Hour)
		case <-jq.stopCleanup:
			return
		}
	}
}

func (jq *JobQueue) cleanupOldJobs(maxAge time.Duration) int {
	jq.mu.Lock()
	defer jq.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	n := 0
	for id, job := range jq.jobs {
		if job.Status.finished() && job.UpdatedAt.Before(cutoff) {
			delete(jq.jobs, id)
			n++
		}
	}
	return n
}

// ClearHistory removes all finished jobs
func (jq *JobQueue) ClearHistory() int {
	return jq.cleanupOldJobs(0)
}

// RemoveJob removes a single finished job by ID
func (jq *JobQueue) RemoveJob(id string) bool {
	jq.mu.Lock()
	defer jq.mu.Unlock()

	job, ok := jq.jobs[id]
	if !ok || !job.Status.finished() {
		return false
	}
	delete(jq.jobs, id)
	return true
}

// AddJob creates and queues a summarize job
func (jq *JobQueue) AddJob(sessionID string, src source.Descriptor, length string) (*Job, error) {
	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()

	job := &Job{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Source:    src,
		Length:    length,
		Status:    JobStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
		ctx:       ctx,
		cancel:    cancel,
	}

	jq.mu.Lock()
	defer jq.mu.Unlock()
	if jq.stopped {
		cancel()
		return nil, fmt.Errorf("job queue is stopped")
	}

	select {
	case jq.queue <- job:
		jq.jobs[job.ID] = job
		cp := *job
		return &cp, nil
	default:
		cancel()
		return nil, ErrQueueFull
	}
}

// GetJob returns a copy of a job, or nil.
func (jq *JobQueue) GetJob(id string) *Job {
	jq.mu.RLock()
	defer jq.mu.RUnlock()

	if job, ok := jq.jobs[id]; ok {
		cp := *job
		return &cp
	}
	return nil
}

// GetAllJobs returns copies of all jobs
func (jq *JobQueue) GetAllJobs() []*Job {
	jq.mu.RLock()
	defer jq.mu.RUnlock()

	jobs := make([]*Job, 0, len(jq.jobs))
	for _, job := range jq.jobs {
		cp := *job
		jobs = append(jobs, &cp)
	}
	return jobs
}

// CancelJob cancels a queued or running job. The job's temporary files are
// released by the summarization path as its context unwinds.
func (jq *JobQueue) CancelJob(id string) bool {
	jq.mu.Lock()
	defer jq.mu.Unlock()

	job, ok := jq.jobs[id]
	if !ok || job.Status.finished() {
		return false
	}

	job.cancel()
	if job.Status == JobStatusQueued {
		job.Status = JobStatusCancelled
		job.Error = "cancelled by user"
	}
	job.UpdatedAt = time.Now()
	return true
}

func (jq *JobQueue) updateJob(id string, fn func(*Job)) {
	jq.mu.Lock()
	defer jq.mu.Unlock()

	if job, ok := jq.jobs[id]; ok {
		fn(job)
		job.UpdatedAt = time.Now()
	}
}
