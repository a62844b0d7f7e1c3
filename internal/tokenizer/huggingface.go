package tokenizer

import (
	"context"
	"fmt"
	"sync"

	hftokenizer "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// ModelSource resolves a Hugging Face model id to a local tokenizer.json.
type ModelSource interface {
	TokenizerFile(ctx context.Context, model string) (string, error)
}

// HFTokenizer loads a model's tokenizer.json on first use. A failed load is
// retried on the next call.
type HFTokenizer struct {
	model  string
	source ModelSource

	mu sync.Mutex
	tk *hftokenizer.Tokenizer
}

func NewHuggingFace(model string, source ModelSource) *HFTokenizer {
	return &HFTokenizer{model: model, source: source}
}

func (t *HFTokenizer) Name() string {
	return HFPrefix + t.model
}

// Model returns the Hugging Face model id.
func (t *HFTokenizer) Model() string {
	return t.model
}

func (t *HFTokenizer) load(ctx context.Context) (*hftokenizer.Tokenizer, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.tk != nil {
		return t.tk, nil
	}
	if t.source == nil {
		return nil, fmt.Errorf("no model source for %s", t.model)
	}
	file, err := t.source.TokenizerFile(ctx, t.model)
	if err != nil {
		return nil, err
	}
	tk, err := pretrained.FromFile(file)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer for %s: %w", t.model, err)
	}
	t.tk = tk
	return tk, nil
}

func (t *HFTokenizer) CountTokens(ctx context.Context, text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	tk, err := t.load(ctx)
	if err != nil {
		return 0, err
	}
	enc, err := tk.EncodeSingle(text, false)
	if err != nil {
		return 0, fmt.Errorf("encode with %s: %w", t.model, err)
	}
	return enc.Len(), nil
}

func (t *HFTokenizer) Dispose() {
	t.mu.Lock()
	t.tk = nil
	t.mu.Unlock()
}
