package tokenizer

import "context"

// RemoteCounter counts tokens through a hosted API.
type RemoteCounter interface {
	CountTokens(ctx context.Context, text string) (int, error)
	IsConfigured() bool
}

// ClaudeTokenizer asks the Anthropic count endpoint when a key is configured
// and otherwise approximates with cl100k_base.
type ClaudeTokenizer struct {
	remote   RemoteCounter
	fallback *BPETokenizer
}

func NewClaude(remote RemoteCounter) *ClaudeTokenizer {
	return &ClaudeTokenizer{
		remote:   remote,
		fallback: &BPETokenizer{name: PresetClaude, encoding: cl100kBase},
	}
}

func (t *ClaudeTokenizer) Name() string {
	return PresetClaude
}

func (t *ClaudeTokenizer) CountTokens(ctx context.Context, text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	if t.remote != nil && t.remote.IsConfigured() {
		return t.remote.CountTokens(ctx, text)
	}
	return t.fallback.CountTokens(ctx, text)
}

func (t *ClaudeTokenizer) Dispose() {
	t.fallback.Dispose()
}
