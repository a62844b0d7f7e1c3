package epub

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epub-counter/api/internal/epub/epubtest"
)

func TestCountWords(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"Hello world", 2},
		{"<p>Hello world</p>", 2},
		{"你好世界", 1},
		{"Hello world 你好世界", 3},
		{"", 0},
		{"... --- !!!", 0},
		{"state-of-the-art technology", 2},
		{"<b>bold</b><i>italic</i>", 2},
		{"line one\nline\ttwo", 4},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CountWords(tc.in), "CountWords(%q)", tc.in)
	}
}

func TestExtractMetadataDefaults(t *testing.T) {
	md := ExtractMetadata(nil)
	assert.Equal(t, UnknownTitle, md.Title)
	assert.Equal(t, UnknownAuthor, md.Author)

	md = ExtractMetadata(&Info{Creator: "Jane Doe", Language: "en"})
	assert.Equal(t, UnknownTitle, md.Title)
	assert.Equal(t, "Jane Doe", md.Author)
	assert.Equal(t, "en", md.Language)

	md = ExtractMetadata(&Info{Title: "Book", Author: "A", Creator: "C"})
	assert.Equal(t, "Book", md.Title)
	assert.Equal(t, "A", md.Author)
}

func TestExtractText(t *testing.T) {
	sections := []Section{
		{HTML: "<html><head><title>skip me</title></head><body><p>Hello</p><p>world &amp; more</p></body></html>"},
		{HTML: "<html><body>   </body></html>"},
		{HTML: "<div>Second</div>"},
	}
	text := ExtractText(sections)

	lines := strings.Split(text, "\n")
	require.Len(t, lines, 2)
	assert.NotContains(t, text, "skip me")
	assert.Contains(t, lines[0], "world & more")
	assert.Equal(t, "Second", lines[1])
	assert.Equal(t, 4, CountWords(text))
	assert.Equal(t, "", ExtractText(nil))
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	p := epubtest.Write(t, dir, "book.epub", epubtest.Book{
		Title:     "The Book",
		Creator:   "Jane Doe",
		Language:  "en",
		Publisher: "Press",
		Chapters:  []string{"<p>One two three</p>", "<p>Four five</p>"},
	})

	book, err := Open(p)
	require.NoError(t, err)

	assert.Equal(t, "The Book", book.Info.Title)
	assert.Equal(t, "Jane Doe", book.Info.Author)
	assert.Equal(t, "Jane Doe", book.Info.Creator)
	assert.Equal(t, "en", book.Info.Language)
	assert.Equal(t, "Press", book.Info.Publisher)
	require.Len(t, book.Sections, 2)
	assert.Equal(t, 5, CountWords(ExtractText(book.Sections)))
}

func TestOpenErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Open(filepath.Join(dir, "missing.epub"))
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	bad := epubtest.WriteCorrupt(t, dir, "bad.epub")
	_, err = Open(bad)
	require.Error(t, err)
	assert.False(t, errors.Is(err, fs.ErrNotExist))
}
