// Package queue runs processing jobs one at a time, in arrival order.
package queue

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/epub-counter/api/internal/discovery"
	"github.com/epub-counter/api/internal/model"
	"github.com/epub-counter/api/internal/pipeline"
	"github.com/epub-counter/api/internal/report"
	"github.com/epub-counter/api/internal/tokenizer"
)

var ErrJobNotFound = errors.New("job not found")

const cancelledMessage = "Job was cancelled"

type FileProcessor interface {
	ProcessFile(ctx context.Context, filePath string, opts pipeline.Options) (pipeline.Outcome, error)
}

type TokenizerFactory interface {
	Create(names []string) ([]tokenizer.Tokenizer, error)
}

type FileDiscoverer interface {
	Discover(path string, opts discovery.Options) ([]string, error)
}

// Publisher mirrors a finished results document somewhere else.
type Publisher interface {
	Publish(ctx context.Context, name string, data []byte) (string, error)
}

// ProgressFunc receives a snapshot before each file of a job is processed.
type ProgressFunc func(model.EpubProgress)

type Config struct {
	// OutputDir receives <jobId>/results.json for completed jobs. Empty disables it.
	OutputDir string
	Publisher Publisher
}

type job struct {
	id          string
	req         model.ProcessRequest
	status      model.JobStatus
	progress    *model.EpubProgress
	results     *model.ResultsOutput
	err         string
	createdAt   time.Time
	completedAt *time.Time

	ctx      context.Context
	cancel   context.CancelFunc
	callback ProgressFunc
	done     chan struct{}
}

type Queue struct {
	cfg        Config
	proc       FileProcessor
	factory    TokenizerFactory
	discoverer FileDiscoverer
	logger     *zap.Logger

	mu         sync.Mutex
	jobs       map[string]*job
	pending    []*job
	processing bool
	seq        int64

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup
	now        func() time.Time
}

func New(cfg Config, proc FileProcessor, factory TokenizerFactory, discoverer FileDiscoverer, logger *zap.Logger) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		cfg:        cfg,
		proc:       proc,
		factory:    factory,
		discoverer: discoverer,
		logger:     logger,
		jobs:       make(map[string]*job),
		baseCtx:    ctx,
		baseCancel: cancel,
		now:        time.Now,
	}
}

// Enqueue registers a job and starts the scheduler if it is idle.
func (q *Queue) Enqueue(req model.ProcessRequest) string {
	q.mu.Lock()
	q.seq++
	id := fmt.Sprintf("job-%d-%s", q.seq, uuid.NewString()[:8])
	ctx, cancel := context.WithCancel(q.baseCtx)
	j := &job{
		id:        id,
		req:       req,
		status:    model.JobStatusQueued,
		createdAt: q.now(),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	q.jobs[id] = j
	q.pending = append(q.pending, j)

	start := !q.processing
	if start {
		q.processing = true
		q.wg.Add(1)
	}
	q.mu.Unlock()

	q.logger.Info("Job queued", zap.String("job_id", id), zap.String("path", req.Path))

	if start {
		go q.run()
	}
	return id
}

func (q *Queue) run() {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.processing = false
			q.mu.Unlock()
			return
		}
		j := q.pending[0]
		q.pending = q.pending[1:]
		j.status = model.JobStatusProcessing
		q.mu.Unlock()

		q.runJob(j)
	}
}

func (q *Queue) runJob(j *job) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("Job panicked", zap.String("job_id", j.id), zap.Any("panic", r))
			q.finish(j, model.JobStatusFailed, nil, fmt.Sprintf("unexpected error: %v", r))
		}
	}()

	if j.ctx.Err() != nil {
		q.finish(j, model.JobStatusCancelled, nil, "")
		return
	}
	q.logger.Info("Job started", zap.String("job_id", j.id))

	toks, err := q.factory.Create(j.req.Tokenizers)
	if err != nil {
		q.finish(j, model.JobStatusFailed, nil, err.Error())
		return
	}
	defer tokenizer.DisposeAll(toks)

	files, err := q.discoverer.Discover(j.req.Path, discovery.Options{Recursive: j.req.Recursive})
	if err != nil {
		q.finish(j, model.JobStatusFailed, nil, err.Error())
		return
	}

	maxMB := j.req.MaxMB
	if maxMB <= 0 {
		maxMB = model.DefaultMaxMB
	}
	opts := pipeline.Options{Tokenizers: toks, MaxMB: maxMB}
	result := model.NewProcessingResult(len(files))

	// The pipeline never sees the job's cancellation; it is checked between files.
	fileCtx := context.WithoutCancel(j.ctx)

	for i, f := range files {
		if j.ctx.Err() != nil {
			q.logger.Info("Job cancelled", zap.String("job_id", j.id), zap.Int("processed", i))
			q.finish(j, model.JobStatusCancelled, nil, "")
			return
		}

		p := model.EpubProgress{
			FileName: filepath.Base(f),
			Current:  i + 1,
			Total:    len(files),
			Percent:  int(math.Round(float64(i+1) / float64(len(files)) * 100)),
		}
		if cb := q.setProgress(j, p); cb != nil {
			cb(p)
		}

		out, err := q.proc.ProcessFile(fileCtx, f, opts)
		if err != nil {
			q.finish(j, model.JobStatusFailed, nil, err.Error())
			return
		}
		if out.Failure != nil {
			q.noteFailure(j, out.Failure.Error)
		}
		out.AddTo(result)
	}

	now := q.now()
	if err := q.persist(j.id, result, now); err != nil {
		q.finish(j, model.JobStatusFailed, nil, err.Error())
		return
	}

	output := model.NewResultsOutput(result, model.ResultOptions{Tokenizers: j.req.Tokenizers, MaxMB: maxMB}, now)
	q.finish(j, model.JobStatusCompleted, output, "")
}

func (q *Queue) persist(jobID string, r *model.ProcessingResult, now time.Time) error {
	if q.cfg.OutputDir == "" && q.cfg.Publisher == nil {
		return nil
	}
	data, err := report.EncodeJSON(r, now)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	if q.cfg.OutputDir != "" {
		p, err := report.Save(filepath.Join(q.cfg.OutputDir, jobID), report.JSONFile, data)
		if err != nil {
			return fmt.Errorf("write results: %w", err)
		}
		q.logger.Info("Results written", zap.String("job_id", jobID), zap.String("path", p))
	}
	if q.cfg.Publisher != nil {
		url, err := q.cfg.Publisher.Publish(q.baseCtx, jobID+"/"+report.JSONFile, data)
		if err != nil {
			// the local copy is authoritative
			q.logger.Warn("Failed to publish results", zap.String("job_id", jobID), zap.Error(err))
			return nil
		}
		q.logger.Info("Results published", zap.String("job_id", jobID), zap.String("url", url))
	}
	return nil
}

func (q *Queue) setProgress(j *job, p model.EpubProgress) ProgressFunc {
	q.mu.Lock()
	defer q.mu.Unlock()
	j.progress = &p
	return j.callback
}

func (q *Queue) noteFailure(j *job, msg string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if j.progress != nil {
		j.progress.Error = msg
	}
}

func (q *Queue) finish(j *job, status model.JobStatus, results *model.ResultsOutput, errMsg string) {
	q.mu.Lock()
	q.finishLocked(j, status, results, errMsg)
	q.mu.Unlock()

	fields := []zap.Field{zap.String("job_id", j.id), zap.String("status", string(status))}
	if errMsg != "" {
		fields = append(fields, zap.String("error", errMsg))
		q.logger.Error("Job finished", fields...)
		return
	}
	q.logger.Info("Job finished", fields...)
}

func (q *Queue) finishLocked(j *job, status model.JobStatus, results *model.ResultsOutput, errMsg string) {
	if j.status.Terminal() {
		return
	}
	now := q.now()
	j.status = status
	j.results = results
	j.err = errMsg
	j.progress = nil
	j.completedAt = &now
	j.cancel()
	close(j.done)
}

// GetStatus returns a snapshot of the job.
func (q *Queue) GetStatus(jobID string) (model.JobState, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	j, ok := q.jobs[jobID]
	if !ok {
		return model.JobState{}, ErrJobNotFound
	}
	return j.snapshot(), nil
}

func (j *job) snapshot() model.JobState {
	s := model.JobState{
		JobID:     j.id,
		Status:    j.status,
		Results:   j.results,
		Error:     j.err,
		CreatedAt: j.createdAt,
	}
	if j.progress != nil {
		p := *j.progress
		s.Progress = &p
	}
	if j.completedAt != nil {
		t := *j.completedAt
		s.CompletedAt = &t
	}
	return s
}

// Cancel removes a queued job, or asks a processing job to stop after its
// current file. Terminal jobs are returned unchanged.
func (q *Queue) Cancel(jobID string) (model.JobState, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	j, ok := q.jobs[jobID]
	if !ok {
		return model.JobState{}, ErrJobNotFound
	}

	switch j.status {
	case model.JobStatusQueued:
		q.removePending(j)
		q.finishLocked(j, model.JobStatusCancelled, nil, "")
		q.logger.Info("Job cancelled", zap.String("job_id", j.id))
	case model.JobStatusProcessing:
		j.cancel()
		q.logger.Info("Job cancellation requested", zap.String("job_id", j.id))
	}
	return j.snapshot(), nil
}

func (q *Queue) removePending(j *job) {
	for i, p := range q.pending {
		if p == j {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return
		}
	}
}

// SetProgressCallback attaches fn to the job, replacing any previous one.
func (q *Queue) SetProgressCallback(jobID string, fn ProgressFunc) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	j, ok := q.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	j.callback = fn
	return nil
}

func (q *Queue) RemoveProgressCallback(jobID string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if j, ok := q.jobs[jobID]; ok {
		j.callback = nil
	}
}

// QueuePosition returns the 1-based backlog position, or 0 when the job is
// not waiting.
func (q *Queue) QueuePosition(jobID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, j := range q.pending {
		if j.id == jobID {
			return i + 1
		}
	}
	return 0
}

// Wait blocks until the job reaches a terminal state or ctx is done.
func (q *Queue) Wait(ctx context.Context, jobID string) (model.JobState, error) {
	q.mu.Lock()
	j, ok := q.jobs[jobID]
	q.mu.Unlock()
	if !ok {
		return model.JobState{}, ErrJobNotFound
	}

	select {
	case <-j.done:
		return q.GetStatus(jobID)
	case <-ctx.Done():
		return model.JobState{}, ctx.Err()
	}
}

// Stop cancels every pending job, signals the running one and waits for the
// scheduler to go idle.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	for _, j := range q.pending {
		q.finishLocked(j, model.JobStatusCancelled, nil, "")
	}
	q.pending = nil
	q.mu.Unlock()

	q.baseCancel()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
