package queue

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/epub-counter/api/internal/discovery"
	"github.com/epub-counter/api/internal/model"
	"github.com/epub-counter/api/internal/pipeline"
	"github.com/epub-counter/api/internal/report"
	"github.com/epub-counter/api/internal/tokenizer"
)

type fakeProcessor struct {
	fn    func(path string) (pipeline.Outcome, error)
	calls atomic.Int32
}

func (f *fakeProcessor) ProcessFile(_ context.Context, path string, _ pipeline.Options) (pipeline.Outcome, error) {
	f.calls.Add(1)
	if f.fn != nil {
		return f.fn(path)
	}
	return success(path), nil
}

func success(path string) pipeline.Outcome {
	return pipeline.Outcome{Result: &pipeline.FileResult{
		Record:      model.EpubRecord{Filename: filepath.Base(path), FilePath: path, WordCount: 10},
		TokenCounts: []model.TokenizerResult{{Name: "gpt4", Count: 12}},
	}}
}

type fakeFactory struct {
	err error
}

func (f fakeFactory) Create(names []string) ([]tokenizer.Tokenizer, error) {
	return nil, f.err
}

// fakeDiscoverer maps a request path to a file list.
type fakeDiscoverer map[string][]string

func (f fakeDiscoverer) Discover(path string, _ discovery.Options) ([]string, error) {
	return f[path], nil
}

type fakePublisher struct {
	mu    sync.Mutex
	names []string
}

func (f *fakePublisher) Publish(_ context.Context, name string, _ []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names = append(f.names, name)
	return "https://bucket.example/" + name, nil
}

func newQueue(t *testing.T, proc FileProcessor, files fakeDiscoverer) *Queue {
	t.Helper()
	q := New(Config{}, proc, fakeFactory{}, files, zap.NewNop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		q.Stop(ctx)
	})
	return q
}

func request(path string) model.ProcessRequest {
	return model.ProcessRequest{Path: path, Tokenizers: []string{"gpt4"}}
}

func wait(t *testing.T, q *Queue, id string) model.JobState {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	state, err := q.Wait(ctx, id)
	require.NoError(t, err)
	return state
}

func eventuallyStatus(t *testing.T, q *Queue, id string, status model.JobStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		s, err := q.GetStatus(id)
		return err == nil && s.Status == status
	}, 2*time.Second, 5*time.Millisecond)
}

// gate blocks the processor on files named "block.epub" until released.
type gate struct {
	release chan struct{}
	entered chan struct{}
}

func newGate() *gate {
	return &gate{release: make(chan struct{}), entered: make(chan struct{}, 16)}
}

func (g *gate) process(path string) (pipeline.Outcome, error) {
	if filepath.Base(path) == "block.epub" {
		g.entered <- struct{}{}
		<-g.release
	}
	return success(path), nil
}

func TestQueueCompletesJob(t *testing.T) {
	proc := &fakeProcessor{}
	q := newQueue(t, proc, fakeDiscoverer{"/books": {"/books/a.epub", "/books/b.epub"}})

	id := q.Enqueue(model.ProcessRequest{Path: "/books", Tokenizers: []string{"gpt4"}, MaxMB: 50})
	assert.Regexp(t, `^job-1-[0-9a-f]{8}$`, id)

	state := wait(t, q, id)
	assert.Equal(t, model.JobStatusCompleted, state.Status)
	assert.Nil(t, state.Progress)
	require.NotNil(t, state.CompletedAt)
	require.NotNil(t, state.Results)
	assert.Equal(t, model.SchemaVersion, state.Results.SchemaVersion)
	assert.Equal(t, model.ResultOptions{Tokenizers: []string{"gpt4"}, MaxMB: 50}, state.Results.Options)
	assert.Equal(t, model.ResultsSummary{Total: 2, Success: 2, Failed: 0}, state.Results.Summary)
	require.Len(t, state.Results.Results, 2)
	assert.Equal(t, "/books/a.epub", state.Results.Results[0].FilePath)

	again, err := q.GetStatus(id)
	require.NoError(t, err)
	assert.Equal(t, state, again)
}

func TestQueueRunsOneJobAtATime(t *testing.T) {
	g := newGate()
	var active, maxActive atomic.Int32
	proc := &fakeProcessor{fn: func(path string) (pipeline.Outcome, error) {
		n := active.Add(1)
		defer active.Add(-1)
		for {
			m := maxActive.Load()
			if n <= m || maxActive.CompareAndSwap(m, n) {
				break
			}
		}
		return g.process(path)
	}}
	q := newQueue(t, proc, fakeDiscoverer{
		"/first":  {"/first/block.epub"},
		"/second": {"/second/a.epub"},
		"/third":  {"/third/a.epub"},
	})

	first := q.Enqueue(request("/first"))
	second := q.Enqueue(request("/second"))
	third := q.Enqueue(request("/third"))

	<-g.entered
	s, _ := q.GetStatus(first)
	assert.Equal(t, model.JobStatusProcessing, s.Status)
	require.NotNil(t, s.Progress)
	assert.Equal(t, model.EpubProgress{FileName: "block.epub", Current: 1, Total: 1, Percent: 100}, *s.Progress)

	s, _ = q.GetStatus(second)
	assert.Equal(t, model.JobStatusQueued, s.Status)
	assert.Equal(t, 1, q.QueuePosition(second))
	assert.Equal(t, 2, q.QueuePosition(third))
	assert.Equal(t, 0, q.QueuePosition(first))

	close(g.release)
	for _, id := range []string{first, second, third} {
		assert.Equal(t, model.JobStatusCompleted, wait(t, q, id).Status)
	}
	assert.Equal(t, int32(1), maxActive.Load())
}

func TestCancelQueuedJob(t *testing.T) {
	g := newGate()
	q := newQueue(t, &fakeProcessor{fn: g.process}, fakeDiscoverer{
		"/first":  {"/first/block.epub"},
		"/second": {"/second/a.epub"},
		"/third":  {"/third/a.epub"},
	})

	first := q.Enqueue(request("/first"))
	second := q.Enqueue(request("/second"))
	third := q.Enqueue(request("/third"))
	<-g.entered

	s, err := q.Cancel(second)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCancelled, s.Status)
	assert.NotNil(t, s.CompletedAt)
	assert.Equal(t, 0, q.QueuePosition(second))
	assert.Equal(t, 1, q.QueuePosition(third))

	close(g.release)
	assert.Equal(t, model.JobStatusCompleted, wait(t, q, first).Status)
	assert.Equal(t, model.JobStatusCancelled, wait(t, q, second).Status)
	assert.Equal(t, model.JobStatusCompleted, wait(t, q, third).Status)
}

func TestCancelProcessingJobStopsAtFileBoundary(t *testing.T) {
	g := newGate()
	proc := &fakeProcessor{fn: g.process}
	q := newQueue(t, proc, fakeDiscoverer{
		"/books": {"/books/block.epub", "/books/b.epub", "/books/c.epub"},
	})

	id := q.Enqueue(request("/books"))
	<-g.entered

	s, err := q.Cancel(id)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusProcessing, s.Status)

	close(g.release)
	final := wait(t, q, id)
	assert.Equal(t, model.JobStatusCancelled, final.Status)
	assert.Nil(t, final.Results)
	assert.Equal(t, int32(1), proc.calls.Load())

	// terminal states never move
	s, err = q.Cancel(id)
	require.NoError(t, err)
	assert.Equal(t, final, s)
}

func TestCancelCompletedJobIsUnchanged(t *testing.T) {
	q := newQueue(t, &fakeProcessor{}, fakeDiscoverer{"/books": {"/books/a.epub"}})
	id := q.Enqueue(request("/books"))
	done := wait(t, q, id)

	s, err := q.Cancel(id)
	require.NoError(t, err)
	assert.Equal(t, done, s)
}

func TestProgressCallbackLastSubscriberWins(t *testing.T) {
	g := newGate()
	q := newQueue(t, &fakeProcessor{fn: g.process}, fakeDiscoverer{
		"/first":  {"/first/block.epub"},
		"/second": {"/second/a.epub", "/second/b.epub"},
	})

	q.Enqueue(request("/first"))
	id := q.Enqueue(request("/second"))
	<-g.entered

	var mu sync.Mutex
	var firstCalls int
	var got []model.EpubProgress
	require.NoError(t, q.SetProgressCallback(id, func(model.EpubProgress) {
		mu.Lock()
		firstCalls++
		mu.Unlock()
	}))
	require.NoError(t, q.SetProgressCallback(id, func(p model.EpubProgress) {
		mu.Lock()
		got = append(got, p)
		mu.Unlock()
	}))

	close(g.release)
	wait(t, q, id)

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, firstCalls)
	assert.Equal(t, []model.EpubProgress{
		{FileName: "a.epub", Current: 1, Total: 2, Percent: 50},
		{FileName: "b.epub", Current: 2, Total: 2, Percent: 100},
	}, got)
}

func TestRemoveProgressCallback(t *testing.T) {
	g := newGate()
	q := newQueue(t, &fakeProcessor{fn: g.process}, fakeDiscoverer{
		"/first":  {"/first/block.epub"},
		"/second": {"/second/a.epub"},
	})

	q.Enqueue(request("/first"))
	id := q.Enqueue(request("/second"))
	<-g.entered

	var calls atomic.Int32
	require.NoError(t, q.SetProgressCallback(id, func(model.EpubProgress) { calls.Add(1) }))
	q.RemoveProgressCallback(id)

	close(g.release)
	wait(t, q, id)
	assert.Zero(t, calls.Load())
}

func TestFatalErrorFailsJob(t *testing.T) {
	fatal := &pipeline.Error{Kind: pipeline.KindLimit, Path: "/books/b.epub", Err: errors.New("text too large")}
	proc := &fakeProcessor{fn: func(path string) (pipeline.Outcome, error) {
		if filepath.Base(path) == "b.epub" {
			return pipeline.Outcome{}, fatal
		}
		return success(path), nil
	}}
	q := newQueue(t, proc, fakeDiscoverer{"/books": {"/books/a.epub", "/books/b.epub", "/books/c.epub"}})

	state := wait(t, q, q.Enqueue(request("/books")))
	assert.Equal(t, model.JobStatusFailed, state.Status)
	assert.Equal(t, "text too large", state.Error)
	assert.Nil(t, state.Progress)
	assert.Nil(t, state.Results)
	assert.Equal(t, int32(2), proc.calls.Load())
}

func TestFileErrorsAreCounted(t *testing.T) {
	proc := &fakeProcessor{fn: func(path string) (pipeline.Outcome, error) {
		if filepath.Base(path) == "corrupt.epub" {
			return pipeline.Outcome{Failure: &model.FailedFile{File: path, Error: "zip: not a valid zip file"}}, nil
		}
		return success(path), nil
	}}
	q := newQueue(t, proc, fakeDiscoverer{"/books": {"/books/good.epub", "/books/corrupt.epub", "/books/good2.epub"}})

	state := wait(t, q, q.Enqueue(request("/books")))
	assert.Equal(t, model.JobStatusCompleted, state.Status)
	assert.Equal(t, model.ResultsSummary{Total: 3, Success: 2, Failed: 1}, state.Results.Summary)
	assert.Equal(t, "/books/good.epub", state.Results.Results[0].FilePath)
	assert.Equal(t, "/books/good2.epub", state.Results.Results[1].FilePath)
}

func TestTokenizerFactoryFailureFailsJob(t *testing.T) {
	q := New(Config{}, &fakeProcessor{}, fakeFactory{err: &tokenizer.UnknownTokenizerError{Name: "nope"}},
		fakeDiscoverer{"/books": {"/books/a.epub"}}, zap.NewNop())

	state := wait(t, q, q.Enqueue(request("/books")))
	assert.Equal(t, model.JobStatusFailed, state.Status)
	assert.Contains(t, state.Error, "Unknown tokenizer: nope")
}

func TestEmptyDiscoveryCompletes(t *testing.T) {
	proc := &fakeProcessor{}
	q := newQueue(t, proc, fakeDiscoverer{})

	state := wait(t, q, q.Enqueue(request("/empty")))
	assert.Equal(t, model.JobStatusCompleted, state.Status)
	assert.Equal(t, model.ResultsSummary{}, state.Results.Summary)
	assert.Empty(t, state.Results.Results)
	assert.Zero(t, proc.calls.Load())
}

func TestPanicFailsJob(t *testing.T) {
	proc := &fakeProcessor{fn: func(string) (pipeline.Outcome, error) { panic("kaboom") }}
	q := newQueue(t, proc, fakeDiscoverer{"/books": {"/books/a.epub"}})
	next := q.Enqueue(request("/books"))
	after := q.Enqueue(request("/none"))

	state := wait(t, q, next)
	assert.Equal(t, model.JobStatusFailed, state.Status)
	assert.Contains(t, state.Error, "kaboom")
	assert.Equal(t, model.JobStatusCompleted, wait(t, q, after).Status)
}

func TestUnknownJob(t *testing.T) {
	q := newQueue(t, &fakeProcessor{}, fakeDiscoverer{})

	_, err := q.GetStatus("job-9-deadbeef")
	assert.ErrorIs(t, err, ErrJobNotFound)
	_, err = q.Cancel("job-9-deadbeef")
	assert.ErrorIs(t, err, ErrJobNotFound)
	assert.ErrorIs(t, q.SetProgressCallback("job-9-deadbeef", nil), ErrJobNotFound)
	_, err = q.Wait(context.Background(), "job-9-deadbeef")
	assert.ErrorIs(t, err, ErrJobNotFound)
	assert.Zero(t, q.QueuePosition("job-9-deadbeef"))
}

func TestResultsArePersistedAndPublished(t *testing.T) {
	dir := t.TempDir()
	pub := &fakePublisher{}
	q := New(Config{OutputDir: dir, Publisher: pub}, &fakeProcessor{}, fakeFactory{},
		fakeDiscoverer{"/books": {"/books/a.epub"}}, zap.NewNop())

	id := q.Enqueue(request("/books"))
	require.Equal(t, model.JobStatusCompleted, wait(t, q, id).Status)

	data, err := os.ReadFile(filepath.Join(dir, id, report.JSONFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"schema_version": "1.0"`)
	assert.Equal(t, []string{id + "/results.json"}, pub.names)
}

func TestStopCancelsPendingJobs(t *testing.T) {
	g := newGate()
	q := New(Config{}, &fakeProcessor{fn: g.process}, fakeFactory{}, fakeDiscoverer{
		"/first":  {"/first/block.epub", "/first/b.epub"},
		"/second": {"/second/a.epub"},
	}, zap.NewNop())

	first := q.Enqueue(request("/first"))
	second := q.Enqueue(request("/second"))
	<-g.entered

	stopped := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		stopped <- q.Stop(ctx)
	}()

	eventuallyStatus(t, q, second, model.JobStatusCancelled)
	close(g.release)
	require.NoError(t, <-stopped)

	s, _ := q.GetStatus(first)
	assert.Equal(t, model.JobStatusCancelled, s.Status)
}
