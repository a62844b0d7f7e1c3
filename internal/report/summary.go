package report

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/epub-counter/api/internal/model"
)

// TokenStat aggregates one tokenizer over a batch.
type TokenStat struct {
	Name    string
	Total   int
	Average int
}

type Failure struct {
	File  string
	Error string
}

// Stats is the end-of-run summary printed by the CLI.
type Stats struct {
	TotalEpubs      int
	SuccessfulEpubs int
	FailedEpubs     int
	TotalWords      int
	AvgWordsPerEpub int
	Tokens          []TokenStat
	TotalTime       time.Duration
	AvgTimePerEpub  time.Duration
	Failures        []Failure
}

// Summarize computes Stats. Token counts of -1 (failed) and 0 (empty) are
// left out of both totals and averages.
func Summarize(r *model.ProcessingResult, elapsed time.Duration) Stats {
	s := Stats{
		TotalEpubs:      len(r.Successful) + len(r.Failed),
		SuccessfulEpubs: len(r.Successful),
		FailedEpubs:     len(r.Failed),
		TotalTime:       elapsed,
	}

	for _, rec := range r.Successful {
		s.TotalWords += rec.WordCount
	}
	if s.SuccessfulEpubs > 0 {
		s.AvgWordsPerEpub = roundDiv(s.TotalWords, s.SuccessfulEpubs)
	}

	index := map[string]int{}
	counted := map[string]int{}
	for _, rec := range r.Successful {
		for _, tc := range r.TokenCounts[rec.Filename] {
			i, ok := index[tc.Name]
			if !ok {
				i = len(s.Tokens)
				index[tc.Name] = i
				s.Tokens = append(s.Tokens, TokenStat{Name: tc.Name})
			}
			if tc.Count > 0 {
				s.Tokens[i].Total += tc.Count
				counted[tc.Name]++
			}
		}
	}
	for i := range s.Tokens {
		if n := counted[s.Tokens[i].Name]; n > 0 {
			s.Tokens[i].Average = roundDiv(s.Tokens[i].Total, n)
		}
	}

	if s.TotalEpubs > 0 {
		s.AvgTimePerEpub = time.Duration(math.Round(float64(elapsed.Milliseconds())/float64(s.TotalEpubs))) * time.Millisecond
	}

	for _, f := range r.Failed {
		s.Failures = append(s.Failures, Failure{File: f.File, Error: f.Error})
	}
	return s
}

func roundDiv(a, b int) int {
	return int(math.Round(float64(a) / float64(b)))
}

// FormatDuration renders d as "500ms", "1.5s" or "1m 5.0s".
func FormatDuration(d time.Duration) string {
	ms := d.Milliseconds()
	switch {
	case ms < 1000:
		return fmt.Sprintf("%dms", ms)
	case ms < 60000:
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	default:
		return fmt.Sprintf("%dm %.1fs", ms/60000, float64(ms%60000)/1000)
	}
}

// FormatNumber inserts thousands separators.
func FormatNumber(n int) string {
	s := strconv.Itoa(n)
	neg := n < 0
	if neg {
		s = s[1:]
	}
	out := make([]byte, 0, len(s)+len(s)/3)
	for i := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}
