package tokenizer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/epub-counter/api/internal/model"
)

// Failure records a tokenizer that could not count a text.
type Failure struct {
	Tokenizer string
	Err       error
}

// Orchestrator runs a set of tokenizers over one text.
type Orchestrator struct {
	logger *zap.Logger
}

func NewOrchestrator(logger *zap.Logger) *Orchestrator {
	return &Orchestrator{logger: logger}
}

// Tokenize runs toks one after another and returns a result per tokenizer in
// input order. A failing tokenizer yields model.FailedCount and never stops
// the others.
func (o *Orchestrator) Tokenize(ctx context.Context, text string, toks []Tokenizer) ([]model.TokenizerResult, []Failure) {
	results := make([]model.TokenizerResult, 0, len(toks))
	var failures []Failure

	for _, t := range toks {
		count, err := countSafely(ctx, t, text)
		if err != nil {
			o.logger.Warn(fmt.Sprintf("Tokenizer '%s' failed: %v", t.Name(), err),
				zap.String("tokenizer", t.Name()))
			failures = append(failures, Failure{Tokenizer: t.Name(), Err: err})
			results = append(results, model.TokenizerResult{Name: t.Name(), Count: model.FailedCount})
			continue
		}
		results = append(results, model.TokenizerResult{Name: t.Name(), Count: count})
	}

	return results, failures
}

func countSafely(ctx context.Context, t Tokenizer, text string) (count int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return t.CountTokens(ctx, text)
}
