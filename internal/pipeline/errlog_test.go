package pipeline

import (
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epub-counter/api/internal/model"
)

func TestEntryString(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 30, 5, 123000000, time.UTC)

	e := Entry{Time: ts, Severity: model.SeverityError, File: "/b/x.epub", Message: "bad zip", Suggestion: "Check file permissions."}
	assert.Equal(t, "[2024-03-01T12:30:05.123Z] [ERROR] /b/x.epub: bad zip Suggestion: Check file permissions.", e.String())

	e.Suggestion = ""
	assert.Equal(t, "[2024-03-01T12:30:05.123Z] [ERROR] /b/x.epub: bad zip", e.String())
}

func TestErrorLogConcurrentAppend(t *testing.T) {
	l := NewErrorLog(t.TempDir() + "/nested")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, l.Append(Entry{Time: time.Now(), Severity: model.SeverityWarn, File: "f", Message: "m"}))
		}()
	}
	wg.Wait()

	data, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 20)
	for _, line := range lines {
		assert.True(t, strings.HasSuffix(line, "[WARN] f: m"))
	}
}
