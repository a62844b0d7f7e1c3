// Package stream fans job progress out to SSE and WebSocket subscribers.
package stream

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/epub-counter/api/internal/model"
	"github.com/epub-counter/api/internal/queue"
	"github.com/epub-counter/api/pkg/response"
)

const cancelledMessage = "Job was cancelled"

// JobSource is the part of the job queue the gateway observes.
type JobSource interface {
	GetStatus(jobID string) (model.JobState, error)
	QueuePosition(jobID string) int
	SetProgressCallback(jobID string, fn queue.ProgressFunc) error
	RemoveProgressCallback(jobID string)
	Wait(ctx context.Context, jobID string) (model.JobState, error)
}

// Event is one message on a job stream.
type Event struct {
	Type model.EventType
	Data interface{}
}

// Subscriber receives the events of one job until Done is closed.
type Subscriber struct {
	jobID     string
	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
	lastIndex int
}

func (s *Subscriber) JobID() string { return s.jobID }

func (s *Subscriber) Events() <-chan Event { return s.events }

// Done is closed when the gateway drops the subscriber or shuts down.
func (s *Subscriber) Done() <-chan struct{} { return s.done }

func (s *Subscriber) close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Gateway holds the single queue callback slot of each observed job and
// broadcasts to every subscriber of that job.
type Gateway struct {
	jobs   JobSource
	buffer int
	logger *zap.Logger

	mu       sync.Mutex
	live     map[string]map[*Subscriber]struct{}
	all      map[*Subscriber]struct{}
	watchers map[string]context.CancelFunc
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewGateway(jobs JobSource, buffer int, logger *zap.Logger) *Gateway {
	if buffer < 1 {
		buffer = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Gateway{
		jobs:     jobs,
		buffer:   buffer,
		logger:   logger,
		live:     make(map[string]map[*Subscriber]struct{}),
		all:      make(map[*Subscriber]struct{}),
		watchers: make(map[string]context.CancelFunc),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Subscribe attaches to a job and queues its catch-up event. Jobs already in
// a terminal state get exactly one terminal event and nothing after it.
func (g *Gateway) Subscribe(jobID string) (*Subscriber, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	state, err := g.jobs.GetStatus(jobID)
	if err != nil {
		return nil, err
	}

	sub := &Subscriber{
		jobID:  jobID,
		events: make(chan Event, g.buffer),
		done:   make(chan struct{}),
	}
	if g.closed {
		sub.close()
		return sub, nil
	}
	g.all[sub] = struct{}{}

	if state.Status.Terminal() {
		sub.events <- terminalEvent(state)
		return sub, nil
	}

	if g.live[jobID] == nil {
		g.live[jobID] = make(map[*Subscriber]struct{})
		if err := g.jobs.SetProgressCallback(jobID, func(p model.EpubProgress) { g.broadcastProgress(jobID, p) }); err != nil {
			delete(g.live, jobID)
			delete(g.all, sub)
			return nil, err
		}
		g.startWatcher(jobID)
	}
	g.live[jobID][sub] = struct{}{}

	// Read again now that the callback is attached so nothing falls in between.
	state, err = g.jobs.GetStatus(jobID)
	if err == nil {
		switch {
		case state.Status == model.JobStatusQueued:
			sub.events <- Event{Type: model.EventQueued, Data: model.QueuedEvent{
				Status:   model.JobStatusQueued,
				Position: g.jobs.QueuePosition(jobID),
			}}
		case state.Status == model.JobStatusProcessing && state.Progress != nil:
			sub.lastIndex = state.Progress.Current
			sub.events <- Event{Type: model.EventProgress, Data: *state.Progress}
		}
	}

	g.logger.Debug("Stream subscribed", zap.String("job_id", jobID))
	return sub, nil
}

// Unsubscribe detaches sub. The queue callback is released with the last
// subscriber of a job.
func (g *Gateway) Unsubscribe(sub *Subscriber) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.all, sub)
	g.detachLocked(sub)
	sub.close()
	g.logger.Debug("Stream unsubscribed", zap.String("job_id", sub.jobID))
}

func (g *Gateway) detachLocked(sub *Subscriber) {
	subs, ok := g.live[sub.jobID]
	if !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		g.releaseJobLocked(sub.jobID)
	}
}

func (g *Gateway) releaseJobLocked(jobID string) {
	delete(g.live, jobID)
	g.jobs.RemoveProgressCallback(jobID)
	if stop, ok := g.watchers[jobID]; ok {
		stop()
		delete(g.watchers, jobID)
	}
}

func (g *Gateway) startWatcher(jobID string) {
	ctx, stop := context.WithCancel(g.ctx)
	g.watchers[jobID] = stop
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		state, err := g.jobs.Wait(ctx, jobID)
		if err != nil {
			return
		}
		g.broadcastTerminal(jobID, state)
	}()
}

func (g *Gateway) broadcastProgress(jobID string, p model.EpubProgress) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for sub := range g.live[jobID] {
		if p.Current <= sub.lastIndex {
			continue
		}
		sub.lastIndex = p.Current
		g.sendLocked(sub, Event{Type: model.EventProgress, Data: p})
	}
}

func (g *Gateway) broadcastTerminal(jobID string, state model.JobState) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ev := terminalEvent(state)
	for sub := range g.live[jobID] {
		g.sendLocked(sub, ev)
	}
	if _, ok := g.live[jobID]; ok {
		g.releaseJobLocked(jobID)
	}
}

// sendLocked never blocks. A subscriber whose buffer is full is dropped.
func (g *Gateway) sendLocked(sub *Subscriber, ev Event) {
	select {
	case sub.events <- ev:
	default:
		g.logger.Warn("Dropping slow stream subscriber", zap.String("job_id", sub.jobID))
		delete(g.all, sub)
		g.detachLocked(sub)
		sub.close()
	}
}

func terminalEvent(state model.JobState) Event {
	switch state.Status {
	case model.JobStatusCompleted:
		return Event{Type: model.EventCompleted, Data: state.Results}
	case model.JobStatusCancelled:
		return Event{Type: model.EventError, Data: model.StreamError{Code: response.CodeJobCancelled, Message: cancelledMessage}}
	default:
		return Event{Type: model.EventError, Data: model.StreamError{Code: response.CodeJobFailed, Message: state.Error}}
	}
}

// Close ends every open stream and stops all watchers.
func (g *Gateway) Close() {
	g.mu.Lock()
	g.closed = true
	for jobID := range g.live {
		g.releaseJobLocked(jobID)
	}
	for sub := range g.all {
		sub.close()
	}
	g.all = make(map[*Subscriber]struct{})
	g.mu.Unlock()

	g.cancel()
	g.wg.Wait()
}
