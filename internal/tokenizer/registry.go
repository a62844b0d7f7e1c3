package tokenizer

import (
	"strings"

	"github.com/epub-counter/api/internal/model"
)

// BrowseURL lists every model usable with the hf: prefix.
const BrowseURL = "https://huggingface.co/models?library=transformers.js"

var hfModels = []model.HFModelInfo{
	{Name: "bert-base-uncased", Description: "BERT base model (uncased)", Architecture: "BERT"},
	{Name: "Xenova/bert-base-uncased", Description: "BERT base (ONNX, faster loading)", Architecture: "BERT", Tag: "ONNX"},
	{Name: "bert-large-uncased", Description: "BERT large model (uncased)", Architecture: "BERT"},
	{Name: "distilbert-base-uncased", Description: "DistilBERT base (faster, lighter BERT)", Architecture: "DistilBERT"},
	{Name: "roberta-base", Description: "RoBERTa base model", Architecture: "RoBERTa"},
	{Name: "gpt2", Description: "GPT-2 small (117M params)", Architecture: "GPT-2"},
	{Name: "Xenova/gpt2", Description: "GPT-2 small (ONNX)", Architecture: "GPT-2", Tag: "ONNX"},
	{Name: "gpt2-medium", Description: "GPT-2 medium (345M params)", Architecture: "GPT-2"},
	{Name: "meta-llama/Llama-2-7b", Description: "Llama 2 7B", Architecture: "Llama"},
	{Name: "meta-llama/Llama-2-13b", Description: "Llama 2 13B", Architecture: "Llama"},
	{Name: "meta-llama/Meta-Llama-3-8B", Description: "Llama 3 8B", Architecture: "Llama"},
	{Name: "mistralai/Mistral-7B-v0.1", Description: "Mistral 7B", Architecture: "Mistral"},
	{Name: "microsoft/phi-3-mini-4k-instruct", Description: "Phi-3 mini (4K context)", Architecture: "Phi"},
	{Name: "Qwen/Qwen2-7B", Description: "Qwen2 7B (multilingual)", Architecture: "Qwen"},
	{Name: "t5-base", Description: "T5 base (text-to-text)", Architecture: "T5"},
	{Name: "facebook/bart-base", Description: "BART base (seq2seq)", Architecture: "BART"},
}

// Models returns a copy of the curated Hugging Face registry.
func Models() []model.HFModelInfo {
	out := make([]model.HFModelInfo, len(hfModels))
	copy(out, hfModels)
	return out
}

// ArchitectureGroup is a run of registry models sharing an architecture.
type ArchitectureGroup struct {
	Architecture string
	Models       []model.HFModelInfo
}

// ModelsByArchitecture groups the registry, keeping first-appearance order.
func ModelsByArchitecture() []ArchitectureGroup {
	var groups []ArchitectureGroup
	index := make(map[string]int)
	for _, m := range hfModels {
		i, ok := index[m.Architecture]
		if !ok {
			i = len(groups)
			index[m.Architecture] = i
			groups = append(groups, ArchitectureGroup{Architecture: m.Architecture})
		}
		groups[i].Models = append(groups[i].Models, m)
	}
	return groups
}

// SearchModels matches name, description or architecture, case-insensitively.
func SearchModels(query string) []model.HFModelInfo {
	q := strings.ToLower(query)
	var out []model.HFModelInfo
	for _, m := range hfModels {
		if strings.Contains(strings.ToLower(m.Name), q) ||
			strings.Contains(strings.ToLower(m.Description), q) ||
			strings.Contains(strings.ToLower(m.Architecture), q) {
			out = append(out, m)
		}
	}
	return out
}

// Available lists every selectable tokenizer: the presets, then the registry.
func Available() []model.TokenizerInfo {
	out := []model.TokenizerInfo{
		{ID: PresetGPT4, Name: "GPT-4", Description: "OpenAI GPT-4 tokenizer (cl100k_base)", Async: false},
		{ID: PresetClaude, Name: "Claude", Description: "Anthropic Claude tokenizer", Async: false},
	}
	for _, m := range hfModels {
		out = append(out, model.TokenizerInfo{
			ID:          HFPrefix + m.Name,
			Name:        m.Name,
			Description: m.Description,
			Async:       true,
		})
	}
	return out
}
