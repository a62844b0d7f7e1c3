package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/epub-counter/api/internal/config"
)

var ErrInvalidModel = errors.New("invalid model id")

// HubClient fetches tokenizer.json files from the Hugging Face hub and keeps
// them in a local cache directory.
type HubClient struct {
	httpClient *http.Client
	endpoint   string
	token      string
	cacheDir   string

	mu sync.Mutex
}

// NewHubClient creates a new Hugging Face hub client
func NewHubClient(cfg *config.HuggingFaceConfig) *HubClient {
	return &HubClient{
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		token:    cfg.Token,
		cacheDir: cfg.CacheDir,
	}
}

// CachePath is where the tokenizer.json of model is stored.
func (c *HubClient) CachePath(model string) string {
	return filepath.Join(c.cacheDir, strings.ReplaceAll(model, "/", "--"), "tokenizer.json")
}

// cacheSafe reports whether model maps to a single directory directly under
// the cache dir.
func cacheSafe(model string) bool {
	dir := strings.ReplaceAll(model, "/", "--")
	return dir != "" && dir != "." && dir != ".." && !strings.ContainsRune(dir, '\\')
}

// TokenizerFile returns the cached tokenizer.json for model, downloading it
// on first use.
func (c *HubClient) TokenizerFile(ctx context.Context, model string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !cacheSafe(model) {
		return "", fmt.Errorf("%w: %q", ErrInvalidModel, model)
	}
	path := c.CachePath(model)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	url := fmt.Sprintf("%s/%s/resolve/main/tokenizer.json", c.endpoint, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download tokenizer for %s: %w", model, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("hugging face hub error for %s (status %d)", model, resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "tokenizer-*.json")
	if err != nil {
		return "", fmt.Errorf("failed to create cache file: %w", err)
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write tokenizer for %s: %w", model, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}

	return path, nil
}
