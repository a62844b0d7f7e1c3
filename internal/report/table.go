package report

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/epub-counter/api/internal/model"
	"github.com/epub-counter/api/internal/tokenizer"
)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetHeader(header)
	t.SetAutoWrapText(true)
	t.SetAutoFormatHeaders(false)
	return t
}

// WriteResults prints the per-file table.
func WriteResults(w io.Writer, records []model.EpubRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No EPUB files found.")
		return
	}
	t := newTable(w, "Filename", "Words", "Title", "Author")
	for _, r := range records {
		t.Append([]string{r.Filename, strconv.Itoa(r.WordCount), r.Title, r.Author})
	}
	t.Render()
}

// WriteSummary prints the overview, tokenizer and failure tables.
func WriteSummary(w io.Writer, s Stats) {
	rule := strings.Repeat("=", 60)
	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "SUMMARY STATISTICS")
	fmt.Fprintln(w, rule)

	fmt.Fprintln(w, "\nOverview")
	t := newTable(w, "Metric", "Value")
	t.AppendBulk([][]string{
		{"Total EPUBs processed", strconv.Itoa(s.TotalEpubs)},
		{"Successful", strconv.Itoa(s.SuccessfulEpubs)},
		{"Failed", strconv.Itoa(s.FailedEpubs)},
		{"Total words", FormatNumber(s.TotalWords)},
		{"Average words/EPUB", FormatNumber(s.AvgWordsPerEpub)},
		{"Total time", FormatDuration(s.TotalTime)},
		{"Average time/EPUB", FormatDuration(s.AvgTimePerEpub)},
	})
	t.Render()

	if len(s.Tokens) > 0 {
		fmt.Fprintln(w, "\nTokenizer Statistics")
		t = newTable(w, "Tokenizer", "Total Tokens", "Avg Tokens/EPUB")
		for _, tok := range s.Tokens {
			t.Append([]string{tok.Name, FormatNumber(tok.Total), FormatNumber(tok.Average)})
		}
		t.Render()
	}

	if len(s.Failures) > 0 {
		fmt.Fprintln(w, "\nFailures")
		t = newTable(w, "File", "Error")
		for _, f := range s.Failures {
			t.Append([]string{filepath.Base(f.File), f.Error})
		}
		t.Render()
	}
	fmt.Fprintln(w)
}

// WriteModels prints the Hugging Face registry, grouped by architecture or
// filtered by query when it is non-empty.
func WriteModels(w io.Writer, query string) {
	fmt.Fprintln(w, "Hugging Face Models (transformers.js compatible)")
	fmt.Fprintln(w)

	if query != "" {
		found := tokenizer.SearchModels(query)
		if len(found) == 0 {
			fmt.Fprintf(w, "No models found matching \"%s\"\n", query)
			fmt.Fprintf(w, "\nBrowse all models: %s\n", tokenizer.BrowseURL)
			return
		}
		t := newTable(w, "Model", "Description", "Arch")
		for _, m := range found {
			t.Append([]string{modelLabel(m), m.Description, m.Architecture})
		}
		t.Render()
		fmt.Fprintf(w, "\nFound %d model(s) matching \"%s\"\n", len(found), query)
	} else {
		for _, g := range tokenizer.ModelsByArchitecture() {
			fmt.Fprintf(w, "%s Models:\n", g.Architecture)
			t := newTable(w, "Model", "Description")
			for _, m := range g.Models {
				t.Append([]string{"  " + modelLabel(m), m.Description})
			}
			t.Render()
		}
		fmt.Fprintln(w, "[ONNX] = Faster loading via Xenova conversions")
	}

	fmt.Fprintf(w, "\nBrowse all models: %s\n", tokenizer.BrowseURL)
}

func modelLabel(m model.HFModelInfo) string {
	label := tokenizer.HFPrefix + m.Name
	if m.Tag != "" {
		label += " [" + m.Tag + "]"
	}
	return label
}
