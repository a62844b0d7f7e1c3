package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epub-counter/api/internal/model"
)

var generated = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

func sampleResult() *model.ProcessingResult {
	r := model.NewProcessingResult(3)
	r.Successful = []model.EpubRecord{
		{Filename: "a.epub", FilePath: "/books/a.epub", WordCount: 1000, Title: "A | B", Author: "Ann", Language: "en"},
		{Filename: "b.epub", FilePath: "/books/b.epub", WordCount: 2001, Title: "Bee", Author: "Bob"},
	}
	r.Failed = []model.FailedFile{
		{File: "/books/bad.epub", Error: "zip: not a valid zip file", Suggestion: "File may be corrupted or not a valid EPUB."},
	}
	r.TokenCounts["a.epub"] = []model.TokenizerResult{{Name: "gpt4", Count: 1300}, {Name: "claude", Count: -1}}
	r.TokenCounts["b.epub"] = []model.TokenizerResult{{Name: "gpt4", Count: 2701}, {Name: "claude", Count: 0}}
	return r
}

func TestEncodeJSON(t *testing.T) {
	data, err := EncodeJSON(sampleResult(), generated)
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &doc))

	assert.Equal(t, "1.0", doc["schema_version"])
	assert.Equal(t, "2024-05-06T07:08:09.000Z", doc["generated_at"])
	assert.Equal(t, map[string]interface{}{"total": 3.0, "successful": 2.0, "failed": 1.0}, doc["summary"])

	epubs := doc["epubs"].([]interface{})
	require.Len(t, epubs, 2)
	first := epubs[0].(map[string]interface{})
	assert.Equal(t, "/books/a.epub", first["file_path"])
	assert.Equal(t, 1000.0, first["word_count"])
	assert.Equal(t, "en", first["language"])
	assert.NotContains(t, first, "publisher")
	assert.Len(t, first["token_counts"], 2)

	failed := doc["failed"].([]interface{})
	require.Len(t, failed, 1)
	assert.Equal(t, "File may be corrupted or not a valid EPUB.", failed[0].(map[string]interface{})["suggestion"])
}

func TestEncodeJSONEmpty(t *testing.T) {
	data, err := EncodeJSON(model.NewProcessingResult(0), generated)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"epubs": []`)
	assert.Contains(t, string(data), `"failed": []`)
}

func TestSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	p, err := Save(dir, JSONFile, []byte("{}"))
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(p))

	data, err := os.ReadFile(filepath.Join(dir, JSONFile))
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestMarkdown(t *testing.T) {
	md := Markdown(sampleResult(), generated)

	assert.True(t, strings.HasPrefix(md, "# EPUB Processing Results\n\nGenerated: 2024-05-06T07:08:09.000Z\n"))
	assert.Contains(t, md, "- Total: 3\n- Successful: 2\n- Failed: 1\n")
	assert.Contains(t, md, "| Filename | Words | Title | Author |\n|----------|-------|-------|--------|\n")
	assert.Contains(t, md, `| a.epub | 1000 | A \| B | Ann |`)
	assert.Contains(t, md, "### bad.epub\n\n**File:** `/books/bad.epub`\n\n**Error:** zip: not a valid zip file\n\n**Suggestion:** File may be corrupted or not a valid EPUB.")
}

func TestMarkdownOmitsEmptySections(t *testing.T) {
	md := Markdown(model.NewProcessingResult(0), generated)
	assert.NotContains(t, md, "## Successful EPUBs")
	assert.NotContains(t, md, "## Failed EPUBs")
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleResult(), 3*time.Second)

	assert.Equal(t, 3, s.TotalEpubs)
	assert.Equal(t, 2, s.SuccessfulEpubs)
	assert.Equal(t, 1, s.FailedEpubs)
	assert.Equal(t, 3001, s.TotalWords)
	assert.Equal(t, 1501, s.AvgWordsPerEpub)
	assert.Equal(t, []TokenStat{
		{Name: "gpt4", Total: 4001, Average: 2001},
		{Name: "claude", Total: 0, Average: 0},
	}, s.Tokens)
	assert.Equal(t, time.Second, s.AvgTimePerEpub)
	assert.Equal(t, []Failure{{File: "/books/bad.epub", Error: "zip: not a valid zip file"}}, s.Failures)
}

func TestFormatDuration(t *testing.T) {
	cases := map[time.Duration]string{
		500 * time.Millisecond:  "500ms",
		1500 * time.Millisecond: "1.5s",
		65 * time.Second:        "1m 5.0s",
		0:                       "0ms",
	}
	for d, want := range cases {
		assert.Equal(t, want, FormatDuration(d))
	}
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "0", FormatNumber(0))
	assert.Equal(t, "999", FormatNumber(999))
	assert.Equal(t, "1,000", FormatNumber(1000))
	assert.Equal(t, "1,234,567", FormatNumber(1234567))
	assert.Equal(t, "-12,345", FormatNumber(-12345))
}

func TestWriteTables(t *testing.T) {
	var buf bytes.Buffer
	WriteResults(&buf, nil)
	assert.Equal(t, "No EPUB files found.\n", buf.String())

	buf.Reset()
	WriteResults(&buf, sampleResult().Successful)
	assert.Contains(t, buf.String(), "Filename")
	assert.Contains(t, buf.String(), "a.epub")

	buf.Reset()
	WriteSummary(&buf, Summarize(sampleResult(), time.Second))
	out := buf.String()
	assert.Contains(t, out, "SUMMARY STATISTICS")
	assert.Contains(t, out, "Tokenizer Statistics")
	assert.Contains(t, out, "4,001")
	assert.Contains(t, out, "bad.epub")
}

func TestWriteModels(t *testing.T) {
	var buf bytes.Buffer
	WriteModels(&buf, "")
	out := buf.String()
	assert.Contains(t, out, "BERT Models:")
	assert.Contains(t, out, "hf:Xenova/gpt2 [ONNX]")
	assert.Contains(t, out, "[ONNX] = Faster loading via Xenova conversions")
	assert.Contains(t, out, "Browse all models: https://huggingface.co/models?library=transformers.js")

	buf.Reset()
	WriteModels(&buf, "LLAMA")
	assert.Contains(t, buf.String(), `Found 3 model(s) matching "LLAMA"`)

	buf.Reset()
	WriteModels(&buf, "zzz")
	assert.Contains(t, buf.String(), `No models found matching "zzz"`)
	assert.NotContains(t, buf.String(), "Found")
}

func TestValidateResultsOutput(t *testing.T) {
	valid := map[string]interface{}{
		"schemaVersion": "1.0",
		"timestamp":     "2024-05-06T07:08:09.000Z",
		"options":       map[string]interface{}{"tokenizers": []interface{}{"gpt4"}, "maxMb": 500.0},
		"results":       []interface{}{},
		"summary":       map[string]interface{}{"total": 0.0, "success": 0.0, "failed": 0.0},
	}
	assert.Empty(t, ValidateResultsOutput(valid))

	assert.Equal(t, []string{"Input must be an object"}, ValidateResultsOutput([]interface{}{}))
	assert.Equal(t, []string{"Input must be an object"}, ValidateResultsOutput(nil))

	assert.Equal(t, []string{
		"Missing or invalid schema_version (must be string)",
		"Missing or invalid timestamp (must be ISO string)",
		"Missing or invalid options (must be object)",
		"Missing or invalid results (must be array)",
		"Missing or invalid summary (must be object)",
	}, ValidateResultsOutput(map[string]interface{}{}))

	partial := map[string]interface{}{
		"schemaVersion": "1.0",
		"timestamp":     "now",
		"options":       map[string]interface{}{"tokenizers": "gpt4", "maxMb": "big"},
		"results":       []interface{}{},
		"summary":       map[string]interface{}{"total": 1.0, "success": "1"},
	}
	assert.Equal(t, []string{
		"options.tokenizers must be an array",
		"options.maxMb must be a number",
		"summary.success must be a number",
		"summary.failed must be a number",
	}, ValidateResultsOutput(partial))
}
