// Package report renders processing results as files and console tables.
package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/epub-counter/api/internal/model"
)

const (
	JSONFile     = "results.json"
	MarkdownFile = "results.md"
)

const isoMillis = "2006-01-02T15:04:05.000Z07:00"

type jsonSummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

type jsonEpub struct {
	Filename    string                  `json:"filename"`
	FilePath    string                  `json:"file_path"`
	Title       string                  `json:"title"`
	Author      string                  `json:"author"`
	WordCount   int                     `json:"word_count"`
	Language    string                  `json:"language,omitempty"`
	Publisher   string                  `json:"publisher,omitempty"`
	TokenCounts []model.TokenizerResult `json:"token_counts,omitempty"`
}

type jsonFailure struct {
	File       string `json:"file"`
	Error      string `json:"error"`
	Suggestion string `json:"suggestion,omitempty"`
}

type jsonDocument struct {
	SchemaVersion string        `json:"schema_version"`
	GeneratedAt   string        `json:"generated_at"`
	Summary       jsonSummary   `json:"summary"`
	Epubs         []jsonEpub    `json:"epubs"`
	Failed        []jsonFailure `json:"failed"`
}

// EncodeJSON renders r in the results.json layout.
func EncodeJSON(r *model.ProcessingResult, now time.Time) ([]byte, error) {
	doc := jsonDocument{
		SchemaVersion: model.SchemaVersion,
		GeneratedAt:   now.UTC().Format(isoMillis),
		Summary: jsonSummary{
			Total:      r.Total,
			Successful: len(r.Successful),
			Failed:     len(r.Failed),
		},
		Epubs:  make([]jsonEpub, 0, len(r.Successful)),
		Failed: make([]jsonFailure, 0, len(r.Failed)),
	}

	for _, rec := range r.Successful {
		fp := rec.FilePath
		if fp == "" {
			fp = rec.Filename
		}
		doc.Epubs = append(doc.Epubs, jsonEpub{
			Filename:    rec.Filename,
			FilePath:    fp,
			Title:       rec.Title,
			Author:      rec.Author,
			WordCount:   rec.WordCount,
			Language:    rec.Language,
			Publisher:   rec.Publisher,
			TokenCounts: r.TokenCounts[rec.Filename],
		})
	}
	for _, f := range r.Failed {
		doc.Failed = append(doc.Failed, jsonFailure{File: f.File, Error: f.Error, Suggestion: f.Suggestion})
	}

	return json.MarshalIndent(doc, "", "  ")
}

// Save writes data to dir/name, creating dir, and returns the absolute path.
func Save(dir, name string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", err
	}
	return filepath.Abs(p)
}
