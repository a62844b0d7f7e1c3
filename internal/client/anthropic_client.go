package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/epub-counter/api/internal/config"
)

// AnthropicClient calls the Anthropic token counting endpoint.
type AnthropicClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	version    string
}

type countMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CountTokensRequest is the body of POST /v1/messages/count_tokens.
type CountTokensRequest struct {
	Model    string         `json:"model"`
	Messages []countMessage `json:"messages"`
}

// CountTokensResponse is the reply of the count endpoint.
type CountTokensResponse struct {
	InputTokens int `json:"input_tokens"`
}

// NewAnthropicClient creates a new Anthropic API client
func NewAnthropicClient(cfg *config.AnthropicConfig) *AnthropicClient {
	return &AnthropicClient{
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		version: cfg.Version,
	}
}

// CountTokens returns the input token count of text sent as one user message.
func (c *AnthropicClient) CountTokens(ctx context.Context, text string) (int, error) {
	reqBody := CountTokensRequest{
		Model:    c.model,
		Messages: []countMessage{{Role: "user", Content: text}},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages/count_tokens", bytes.NewReader(bodyBytes))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", c.version)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("anthropic API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var countResp CountTokensResponse
	if err := json.Unmarshal(respBody, &countResp); err != nil {
		return 0, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return countResp.InputTokens, nil
}

// IsConfigured returns true if the client has valid configuration
func (c *AnthropicClient) IsConfigured() bool {
	return c.apiKey != ""
}
