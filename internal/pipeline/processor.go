// Package pipeline turns one EPUB file into a word count, metadata and
// per-tokenizer counts, and decides what a failure means for the batch.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/epub-counter/api/internal/epub"
	"github.com/epub-counter/api/internal/model"
	"github.com/epub-counter/api/internal/tokenizer"
)

const bytesPerMB = 1024 * 1024

// Options apply to every file of a batch.
type Options struct {
	Tokenizers []tokenizer.Tokenizer
	MaxMB      int
}

// FileResult is a successfully processed file.
type FileResult struct {
	Record      model.EpubRecord
	TokenCounts []model.TokenizerResult
	Warnings    []tokenizer.Failure
}

// Outcome is what a batch keeps from one file: a result or a failure.
type Outcome struct {
	Result  *FileResult
	Failure *model.FailedFile
}

// AddTo appends the outcome to r.
func (o Outcome) AddTo(r *model.ProcessingResult) {
	if o.Failure != nil {
		r.Failed = append(r.Failed, *o.Failure)
		return
	}
	if o.Result != nil {
		r.Successful = append(r.Successful, o.Result.Record)
		r.TokenCounts[o.Result.Record.Filename] = o.Result.TokenCounts
	}
}

type Processor struct {
	orchestrator *tokenizer.Orchestrator
	errLog       *ErrorLog
	errorPause   time.Duration
	logger       *zap.Logger
}

// NewProcessor builds a processor. errLog may be nil to skip errors.log.
func NewProcessor(orchestrator *tokenizer.Orchestrator, errLog *ErrorLog, errorPause time.Duration, logger *zap.Logger) *Processor {
	return &Processor{
		orchestrator: orchestrator,
		errLog:       errLog,
		errorPause:   errorPause,
		logger:       logger,
	}
}

// Process runs the pipeline on one file. Every returned error is an *Error.
func (p *Processor) Process(ctx context.Context, filePath string, opts Options) (*FileResult, error) {
	book, err := epub.Open(filePath)
	if err != nil {
		return nil, &Error{Kind: openErrorKind(err), Path: filePath, Err: err}
	}

	md := epub.ExtractMetadata(&book.Info)
	text := epub.ExtractText(book.Sections)
	words := epub.CountWords(text)

	maxMB := opts.MaxMB
	if maxMB <= 0 {
		maxMB = model.DefaultMaxMB
	}
	if size := len(text); size > maxMB*bytesPerMB {
		return nil, &Error{
			Kind: KindLimit,
			Path: filePath,
			Err: fmt.Errorf("%w: %s has %.1f MB of text, maximum is %d MB",
				ErrSizeLimit, filepath.Base(filePath), float64(size)/bytesPerMB, maxMB),
		}
	}

	counts := []model.TokenizerResult{}
	var warnings []tokenizer.Failure
	if text != "" {
		counts, warnings = p.orchestrator.Tokenize(ctx, text, opts.Tokenizers)
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		absPath = filePath
	}

	return &FileResult{
		Record: model.EpubRecord{
			Filename:  filepath.Base(filePath),
			FilePath:  absPath,
			WordCount: words,
			Title:     md.Title,
			Author:    md.Author,
			Language:  md.Language,
			Publisher: md.Publisher,
		},
		TokenCounts: counts,
		Warnings:    warnings,
	}, nil
}

func openErrorKind(err error) Kind {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return KindNotFound
	case errors.Is(err, fs.ErrPermission):
		return KindPermission
	}
	return KindParse
}

// ProcessFile runs Process and absorbs file-level failures into the outcome.
// Only fatal failures are returned as errors.
func (p *Processor) ProcessFile(ctx context.Context, filePath string, opts Options) (Outcome, error) {
	p.logger.Debug("Processing", zap.String("file", filePath))

	res, err := p.Process(ctx, filePath, opts)
	if err != nil {
		perr := Classify(filePath, err)
		p.record(perr.Severity(), filePath, perr.Error(), perr.Kind.Suggestion())

		if perr.Severity() == model.SeverityFatal {
			return Outcome{}, perr
		}

		p.pause(ctx)
		return Outcome{Failure: &model.FailedFile{
			File:       filePath,
			Error:      perr.Error(),
			Suggestion: perr.Kind.Suggestion(),
		}}, nil
	}

	for _, w := range res.Warnings {
		p.record(model.SeverityWarn, filePath, fmt.Sprintf("Tokenizer '%s' failed: %v", w.Tokenizer, w.Err), "")
	}

	p.logger.Debug("Processed",
		zap.String("file", res.Record.Filename),
		zap.Int("words", res.Record.WordCount))

	return Outcome{Result: res}, nil
}

func (p *Processor) record(sev model.Severity, file, msg, suggestion string) {
	fields := []zap.Field{zap.String("file", file), zap.String("severity", string(sev))}
	if suggestion != "" {
		fields = append(fields, zap.String("suggestion", suggestion))
	}
	switch sev {
	case model.SeverityWarn:
		p.logger.Warn(msg, fields...)
	default:
		p.logger.Error(msg, fields...)
	}

	if p.errLog == nil {
		return
	}
	entry := Entry{Time: time.Now(), Severity: sev, File: file, Message: msg, Suggestion: suggestion}
	if err := p.errLog.Append(entry); err != nil {
		p.logger.Error("Failed to write to errors.log", zap.Error(err))
	}
}

func (p *Processor) pause(ctx context.Context) {
	if p.errorPause <= 0 {
		return
	}
	t := time.NewTimer(p.errorPause)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
