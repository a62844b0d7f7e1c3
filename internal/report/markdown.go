package report

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/epub-counter/api/internal/model"
)

// Markdown renders r as the results.md report.
func Markdown(r *model.ProcessingResult, now time.Time) string {
	var b strings.Builder
	line := func(format string, args ...interface{}) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	line("# EPUB Processing Results")
	line("")
	line("Generated: %s", now.UTC().Format(isoMillis))
	line("")
	line("## Summary")
	line("")
	line("- Total: %d", r.Total)
	line("- Successful: %d", len(r.Successful))
	line("- Failed: %d", len(r.Failed))
	line("")

	if len(r.Successful) > 0 {
		line("## Successful EPUBs")
		line("")
		line("| Filename | Words | Title | Author |")
		line("|----------|-------|-------|--------|")
		for _, rec := range r.Successful {
			line("| %s | %d | %s | %s |", escapePipes(rec.Filename), rec.WordCount, escapePipes(rec.Title), escapePipes(rec.Author))
		}
		line("")
	}

	if len(r.Failed) > 0 {
		line("## Failed EPUBs")
		line("")
		for _, f := range r.Failed {
			line("### %s", filepath.Base(f.File))
			line("")
			line("**File:** `%s`", f.File)
			line("")
			line("**Error:** %s", f.Error)
			if f.Suggestion != "" {
				line("")
				line("**Suggestion:** %s", f.Suggestion)
			}
			line("")
		}
	}

	return strings.TrimSuffix(b.String(), "\n")
}

func escapePipes(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
