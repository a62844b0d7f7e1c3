package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/epub-counter/api/internal/model"
	"github.com/epub-counter/api/internal/tokenizer"
)

var (
	ErrPathTraversal = errors.New("path traversal detected")
	ErrPathNotFound  = errors.New("path does not exist")
	ErrPathType      = errors.New("path must be a file or directory")
)

type JobQueue interface {
	Enqueue(req model.ProcessRequest) string
	GetStatus(jobID string) (model.JobState, error)
	Cancel(jobID string) (model.JobState, error)
}

// ProcessService validates submissions and hands them to the job queue
type ProcessService struct {
	queue  JobQueue
	root   string
	logger *zap.Logger
}

// NewProcessService resolves relative request paths against root.
func NewProcessService(queue JobQueue, root string, logger *zap.Logger) *ProcessService {
	return &ProcessService{
		queue:  queue,
		root:   root,
		logger: logger,
	}
}

// Submit queues a processing job for a validated request
func (s *ProcessService) Submit(ctx context.Context, req *model.ProcessRequest) (*model.ProcessResponse, error) {
	if err := tokenizer.Validate(req.Tokenizers); err != nil {
		return nil, err
	}

	resolved, err := s.ResolvePath(req.Path)
	if err != nil {
		return nil, err
	}

	queued := *req
	queued.Path = resolved
	jobID := s.queue.Enqueue(queued)

	s.logger.Info("Processing job submitted",
		zap.String("job_id", jobID),
		zap.String("path", resolved),
		zap.Strings("tokenizers", req.Tokenizers))

	return &model.ProcessResponse{
		JobID:  jobID,
		Status: model.JobStatusQueued,
	}, nil
}

func (s *ProcessService) GetStatus(ctx context.Context, jobID string) (model.JobState, error) {
	return s.queue.GetStatus(jobID)
}

func (s *ProcessService) Cancel(ctx context.Context, jobID string) (model.JobState, error) {
	return s.queue.Cancel(jobID)
}

// IsPathTraversal rejects any ".." or "~" in the raw input, whatever the separator.
func IsPathTraversal(p string) bool {
	normalized := strings.ReplaceAll(p, `\`, "/")
	return strings.Contains(normalized, "..") || strings.Contains(normalized, "~")
}

// ResolvePath validates p and returns it as an absolute path. Absolute input
// is used as is; relative input is joined to the project root.
func (s *ProcessService) ResolvePath(p string) (string, error) {
	if IsPathTraversal(p) {
		return "", ErrPathTraversal
	}

	resolved := p
	if !filepath.IsAbs(p) {
		resolved = filepath.Join(s.root, p)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", ErrPathNotFound
	}
	if !info.IsDir() && !info.Mode().IsRegular() {
		return "", ErrPathType
	}
	return resolved, nil
}
