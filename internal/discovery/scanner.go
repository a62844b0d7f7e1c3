// Package discovery finds EPUB files under a path.
package discovery

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

type Options struct {
	Recursive     bool
	IncludeHidden bool
}

// Scanner walks files and directories looking for .epub files.
type Scanner struct {
	logger *zap.Logger
}

func NewScanner(logger *zap.Logger) *Scanner {
	return &Scanner{logger: logger}
}

// Discover returns the EPUB files at inputPath. A file is returned as is when
// its extension matches; a directory is listed (recursively if asked).
// Missing paths and permission errors are logged and yield no files.
func (s *Scanner) Discover(inputPath string, opts Options) ([]string, error) {
	info, err := os.Stat(inputPath)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrPermission):
			s.logger.Warn("Permission denied accessing path", zap.String("path", inputPath))
			return nil, nil
		case errors.Is(err, fs.ErrNotExist):
			s.logger.Warn("Path does not exist", zap.String("path", inputPath))
			return nil, nil
		}
		return nil, err
	}

	if info.Mode().IsRegular() {
		if IsEPUB(inputPath) {
			return []string{inputPath}, nil
		}
		return nil, nil
	}
	if !info.IsDir() {
		return nil, nil
	}

	return s.scanDirectory(inputPath, opts)
}

func (s *Scanner) scanDirectory(root string, opts Options) ([]string, error) {
	var files []string

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrPermission) {
				s.logger.Warn("Permission denied reading directory", zap.String("path", p))
				if d != nil && d.IsDir() && p != root {
					return filepath.SkipDir
				}
				return nil
			}
			return err
		}
		if p == root {
			return nil
		}
		if !opts.IncludeHidden && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if !opts.Recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && IsEPUB(d.Name()) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return files, err
	}
	return files, nil
}

// IsEPUB matches the .epub extension case-insensitively.
func IsEPUB(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".epub")
}
