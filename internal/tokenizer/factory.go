package tokenizer

import (
	"errors"
	"fmt"
	"strings"
)

const (
	PresetGPT4   = "gpt4"
	PresetClaude = "claude"
	HFPrefix     = "hf:"
)

var ErrUnknownTokenizer = errors.New("unknown tokenizer")

// UnknownTokenizerError names an identifier that is neither a preset nor hf:<model>.
type UnknownTokenizerError struct {
	Name string
}

func (e *UnknownTokenizerError) Error() string {
	return fmt.Sprintf("Unknown tokenizer: %s. Valid presets: %s, %s. Or use hf:model-name for Hugging Face models.",
		e.Name, PresetGPT4, PresetClaude)
}

func (e *UnknownTokenizerError) Is(target error) bool {
	return target == ErrUnknownTokenizer
}

// Factory builds tokenizers from identifiers.
type Factory struct {
	claude RemoteCounter
	hub    ModelSource
}

func NewFactory(claude RemoteCounter, hub ModelSource) *Factory {
	return &Factory{claude: claude, hub: hub}
}

// Create returns one tokenizer per name, in order. Any unknown name fails the
// whole call.
func (f *Factory) Create(names []string) ([]Tokenizer, error) {
	toks := make([]Tokenizer, 0, len(names))
	for _, name := range names {
		t, err := f.New(name)
		if err != nil {
			return nil, err
		}
		toks = append(toks, t)
	}
	return toks, nil
}

func (f *Factory) New(name string) (Tokenizer, error) {
	switch {
	case name == PresetGPT4:
		return NewGPT4(), nil
	case name == PresetClaude:
		return NewClaude(f.claude), nil
	case strings.HasPrefix(name, HFPrefix):
		model, ok := hfModel(name)
		if !ok {
			return nil, &UnknownTokenizerError{Name: name}
		}
		return NewHuggingFace(model, f.hub), nil
	default:
		return nil, &UnknownTokenizerError{Name: name}
	}
}

// Validate checks identifiers without building anything.
func Validate(names []string) error {
	for _, name := range names {
		switch {
		case name == PresetGPT4, name == PresetClaude:
		case strings.HasPrefix(name, HFPrefix):
			if _, ok := hfModel(name); !ok {
				return &UnknownTokenizerError{Name: name}
			}
		default:
			return &UnknownTokenizerError{Name: name}
		}
	}
	return nil
}

// hfModel extracts the model id of an hf: identifier. Ids are "name" or
// "org/name"; empty, absolute and dot segments are rejected so the id can
// be used as a cache path.
func hfModel(name string) (string, bool) {
	model := strings.TrimSpace(strings.TrimPrefix(name, HFPrefix))
	if model == "" || strings.ContainsRune(model, '\\') {
		return "", false
	}
	for _, seg := range strings.Split(model, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", false
		}
	}
	return model, true
}

// ParseList splits a comma-separated flag value.
func ParseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
