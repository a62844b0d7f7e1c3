package pipeline

import (
	"errors"
	"io/fs"

	"github.com/epub-counter/api/internal/model"
	"github.com/epub-counter/api/internal/tokenizer"
)

// Kind tags where a failure came from.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindPermission
	KindParse
	KindLimit
	KindTokenizer
	KindConfig
)

var kindNames = map[Kind]string{
	KindUnknown:    "unknown",
	KindNotFound:   "not_found",
	KindPermission: "permission",
	KindParse:      "parse",
	KindLimit:      "limit",
	KindTokenizer:  "tokenizer",
	KindConfig:     "config",
}

func (k Kind) String() string {
	return kindNames[k]
}

// Severity decides whether the batch stops, the file is skipped, or the
// failure is only logged.
func (k Kind) Severity() model.Severity {
	switch k {
	case KindLimit, KindConfig:
		return model.SeverityFatal
	case KindTokenizer:
		return model.SeverityWarn
	default:
		return model.SeverityError
	}
}

func (k Kind) Suggestion() string {
	switch k {
	case KindNotFound:
		return "File not found. Check the file path."
	case KindPermission:
		return "Check file permissions."
	case KindParse:
		return "File may be corrupted or not a valid EPUB."
	}
	return ""
}

var ErrSizeLimit = errors.New("extracted text exceeds size limit")

// Error is a failure of one file, tagged with its kind.
type Error struct {
	Kind Kind
	Path string
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Severity() model.Severity {
	return e.Kind.Severity()
}

// Classify returns err as an *Error, inferring a kind for errors that were
// not tagged where they happened.
func Classify(path string, err error) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	return &Error{Kind: kindOf(err), Path: path, Err: err}
}

func kindOf(err error) Kind {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return KindNotFound
	case errors.Is(err, fs.ErrPermission):
		return KindPermission
	case errors.Is(err, ErrSizeLimit):
		return KindLimit
	case errors.Is(err, tokenizer.ErrUnknownTokenizer):
		return KindConfig
	}
	return KindUnknown
}

// IsFatal reports whether err must abort the whole batch.
func IsFatal(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Severity() == model.SeverityFatal
	}
	return kindOf(err).Severity() == model.SeverityFatal
}
