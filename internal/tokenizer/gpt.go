package tokenizer

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const cl100kBase = "cl100k_base"

// BPETokenizer wraps a tiktoken encoding that is loaded on first use.
type BPETokenizer struct {
	name     string
	encoding string

	mu  sync.Mutex
	enc *tiktoken.Tiktoken
}

// NewGPT4 returns the gpt4 preset (cl100k_base).
func NewGPT4() *BPETokenizer {
	return &BPETokenizer{name: PresetGPT4, encoding: cl100kBase}
}

func (t *BPETokenizer) Name() string {
	return t.name
}

func (t *BPETokenizer) encoder() (*tiktoken.Tiktoken, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.enc != nil {
		return t.enc, nil
	}
	enc, err := tiktoken.GetEncoding(t.encoding)
	if err != nil {
		return nil, fmt.Errorf("load %s encoding: %w", t.encoding, err)
	}
	t.enc = enc
	return enc, nil
}

func (t *BPETokenizer) CountTokens(ctx context.Context, text string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if text == "" {
		return 0, nil
	}
	enc, err := t.encoder()
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}

func (t *BPETokenizer) Dispose() {
	t.mu.Lock()
	t.enc = nil
	t.mu.Unlock()
}
