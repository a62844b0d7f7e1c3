package model

import "time"

// TokenizerResult is one tokenizer's count for one file. Count is -1 when
// the tokenizer failed.
type TokenizerResult struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// FailedCount marks a tokenizer failure.
const FailedCount = -1

// EpubRecord is a successfully processed file.
type EpubRecord struct {
	Filename  string `json:"filename"`
	FilePath  string `json:"filePath"`
	WordCount int    `json:"wordCount"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Language  string `json:"language,omitempty"`
	Publisher string `json:"publisher,omitempty"`
}

// FailedFile is a file that was skipped.
type FailedFile struct {
	File       string `json:"file"`
	Error      string `json:"error"`
	Suggestion string `json:"suggestion,omitempty"`
}

// ProcessingResult accumulates the outcome of a list of files.
type ProcessingResult struct {
	Successful  []EpubRecord
	Failed      []FailedFile
	Total       int
	TokenCounts map[string][]TokenizerResult
}

func NewProcessingResult(total int) *ProcessingResult {
	return &ProcessingResult{
		Total:       total,
		TokenCounts: make(map[string][]TokenizerResult),
	}
}

// EpubMetadata holds the descriptive fields of a book.
type EpubMetadata struct {
	Title     string `json:"title"`
	Author    string `json:"author"`
	Language  string `json:"language,omitempty"`
	Publisher string `json:"publisher,omitempty"`
}

// ResultOptions echoes the options a job ran with.
type ResultOptions struct {
	Tokenizers []string `json:"tokenizers"`
	MaxMB      int      `json:"maxMb"`
}

// EpubResult is one entry of ResultsOutput.
type EpubResult struct {
	FilePath    string            `json:"filePath"`
	Metadata    EpubMetadata      `json:"metadata"`
	WordCount   int               `json:"wordCount"`
	TokenCounts []TokenizerResult `json:"tokenCounts"`
}

type ResultsSummary struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// ResultsOutput is the payload of a completed job.
type ResultsOutput struct {
	SchemaVersion string         `json:"schemaVersion"`
	Timestamp     time.Time      `json:"timestamp"`
	Options       ResultOptions  `json:"options"`
	Results       []EpubResult   `json:"results"`
	Summary       ResultsSummary `json:"summary"`
}

// NewResultsOutput projects a processing result into the job payload shape.
func NewResultsOutput(r *ProcessingResult, opts ResultOptions, now time.Time) *ResultsOutput {
	out := &ResultsOutput{
		SchemaVersion: SchemaVersion,
		Timestamp:     now,
		Options:       opts,
		Results:       make([]EpubResult, 0, len(r.Successful)),
		Summary: ResultsSummary{
			Total:   r.Total,
			Success: len(r.Successful),
			Failed:  len(r.Failed),
		},
	}
	for _, rec := range r.Successful {
		counts := r.TokenCounts[rec.Filename]
		if counts == nil {
			counts = []TokenizerResult{}
		}
		out.Results = append(out.Results, EpubResult{
			FilePath: rec.FilePath,
			Metadata: EpubMetadata{
				Title:     rec.Title,
				Author:    rec.Author,
				Language:  rec.Language,
				Publisher: rec.Publisher,
			},
			WordCount:   rec.WordCount,
			TokenCounts: counts,
		})
	}
	return out
}
