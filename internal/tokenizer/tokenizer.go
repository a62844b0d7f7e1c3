// Package tokenizer counts model-specific tokens behind one interface.
//
// Backends differ in cost: the claude approximation is cheap, gpt4 builds a
// BPE encoder on first use, hf:<model> downloads and parses a tokenizer.json.
// Callers never branch on that; every backend is used through CountTokens.
package tokenizer

import "context"

// Tokenizer counts tokens for one named backend.
type Tokenizer interface {
	Name() string
	CountTokens(ctx context.Context, text string) (int, error)
}

// Disposer is implemented by tokenizers that cache an encoder. After Dispose
// the next CountTokens call rebuilds it.
type Disposer interface {
	Dispose()
}

// DisposeAll releases every cached encoder in toks.
func DisposeAll(toks []Tokenizer) {
	for _, t := range toks {
		if d, ok := t.(Disposer); ok {
			d.Dispose()
		}
	}
}
