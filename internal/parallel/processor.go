// Package parallel processes a list of files with bounded concurrency.
package parallel

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/epub-counter/api/internal/model"
	"github.com/epub-counter/api/internal/pipeline"
	"github.com/epub-counter/api/internal/tokenizer"
)

type FileProcessor interface {
	ProcessFile(ctx context.Context, filePath string, opts pipeline.Options) (pipeline.Outcome, error)
}

type TokenizerFactory interface {
	Create(names []string) ([]tokenizer.Tokenizer, error)
}

type Options struct {
	Jobs       int
	Tokenizers []string
	MaxMB      int
	// OnFile is called after each file. Calls are serialized.
	OnFile func(filePath string, out pipeline.Outcome)
}

type Runner struct {
	proc    FileProcessor
	factory TokenizerFactory
	logger  *zap.Logger
}

func New(proc FileProcessor, factory TokenizerFactory, logger *zap.Logger) *Runner {
	return &Runner{proc: proc, factory: factory, logger: logger}
}

// Process runs every file through the pipeline with at most opts.Jobs in
// flight. Outcomes are merged in input order. A fatal file error or ctx
// cancellation stops admission of further files; files already admitted
// finish first.
func (r *Runner) Process(ctx context.Context, files []string, opts Options) (*model.ProcessingResult, error) {
	result := model.NewProcessingResult(len(files))
	if len(files) == 0 {
		return result, nil
	}

	jobs := opts.Jobs
	if jobs < 1 {
		jobs = 1
	}
	if jobs > len(files) {
		jobs = len(files)
	}

	// one tokenizer set per slot so lazy encoders are never shared
	pool := make(chan []tokenizer.Tokenizer, jobs)
	var sets [][]tokenizer.Tokenizer
	defer func() {
		for _, s := range sets {
			tokenizer.DisposeAll(s)
		}
	}()
	for i := 0; i < jobs; i++ {
		toks, err := r.factory.Create(opts.Tokenizers)
		if err != nil {
			return nil, err
		}
		sets = append(sets, toks)
		pool <- toks
	}

	r.logger.Debug("Parallel processing", zap.Int("files", len(files)), zap.Int("jobs", jobs))

	outcomes := make([]*pipeline.Outcome, len(files))
	sem := semaphore.NewWeighted(int64(jobs))
	g, gctx := errgroup.WithContext(ctx)
	var cbMu sync.Mutex

	for i, f := range files {
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		if gctx.Err() != nil {
			sem.Release(1)
			break
		}
		i, f := i, f
		g.Go(func() error {
			toks := <-pool
			out, err := r.proc.ProcessFile(context.WithoutCancel(gctx), f, pipeline.Options{Tokenizers: toks, MaxMB: opts.MaxMB})
			pool <- toks
			if err != nil {
				// the slot stays taken so the admission loop blocks until gctx is cancelled
				return err
			}
			outcomes[i] = &out

			if opts.OnFile != nil {
				cbMu.Lock()
				opts.OnFile(f, out)
				cbMu.Unlock()
			}
			sem.Release(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, out := range outcomes {
		if out != nil {
			out.AddTo(result)
		}
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}
