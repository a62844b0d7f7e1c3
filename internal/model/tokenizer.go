package model

// TokenizerInfo describes a selectable tokenizer.
type TokenizerInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Async       bool   `json:"async"`
}

// HFModelInfo is a curated Hugging Face model entry.
type HFModelInfo struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	Architecture string `json:"architecture"`
	Tag          string `json:"tag,omitempty"`
}
