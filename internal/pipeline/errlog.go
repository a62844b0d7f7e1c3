package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/epub-counter/api/internal/model"
)

// ErrorLogFile is the name of the append-only failure log.
const ErrorLogFile = "errors.log"

const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// Entry is one line of errors.log.
type Entry struct {
	Time       time.Time
	Severity   model.Severity
	File       string
	Message    string
	Suggestion string
}

func (e Entry) String() string {
	line := fmt.Sprintf("[%s] [%s] %s: %s", e.Time.UTC().Format(isoMillis), e.Severity, e.File, e.Message)
	if e.Suggestion != "" {
		line += " Suggestion: " + e.Suggestion
	}
	return line
}

// ErrorLog appends entries to dir/errors.log. Safe for concurrent use.
type ErrorLog struct {
	mu   sync.Mutex
	path string
}

func NewErrorLog(dir string) *ErrorLog {
	return &ErrorLog{path: filepath.Join(dir, ErrorLogFile)}
}

func (l *ErrorLog) Path() string {
	return l.path
}

func (l *ErrorLog) Append(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.WriteString(e.String() + "\n")
	return err
}
