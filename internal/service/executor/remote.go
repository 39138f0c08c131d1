package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"codeshare/internal/models"
)

// HTTPBackend forwards runs to a remote code-runner service speaking
// the same JSON request/result shape. Whatever result the runner
// reports is passed through untouched.
type HTTPBackend struct {
	url    string
	client *http.Client
}

// NewHTTPBackend builds a backend posting to the given endpoint URL.
func NewHTTPBackend(url string) *HTTPBackend {
	return &HTTPBackend{
		url:    url,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Run posts the request and decodes the runner's result.
func (b *HTTPBackend) Run(ctx context.Context, req models.ExecutionRequest) (models.ExecutionResult, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return models.ExecutionResult{}, fmt.Errorf("marshal execution request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(payload))
	if err != nil {
		return models.ExecutionResult{}, fmt.Errorf("build runner request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return models.ExecutionResult{}, fmt.Errorf("call runner: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.ExecutionResult{}, fmt.Errorf("runner returned status %d", resp.StatusCode)
	}
	var result models.ExecutionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return models.ExecutionResult{}, fmt.Errorf("decode runner result: %w", err)
	}
	return result, nil
}
