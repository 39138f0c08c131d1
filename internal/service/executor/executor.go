// Package executor dispatches untrusted code to an execution backend
// and reports the outcome. A run that reached the backend but failed
// comes back as ExecutionResult{Success: false}; only failing to reach
// the backend at all is an error. Runs are never retried: execution is
// not assumed idempotent from the user's point of view.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"codeshare/internal/models"
)

const defaultTimeout = 10 * time.Second

// Backend runs one code payload to completion.
type Backend interface {
	Run(ctx context.Context, req models.ExecutionRequest) (models.ExecutionResult, error)
}

// Service is the execution gateway placed in front of a backend.
type Service struct {
	backend Backend
	timeout time.Duration
}

// NewService wraps a backend with request validation and a per-run
// timeout.
func NewService(backend Backend, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Service{backend: backend, timeout: timeout}
}

// Execute validates the request and runs it once against the backend.
func (s *Service) Execute(ctx context.Context, req models.ExecutionRequest) (models.ExecutionResult, error) {
	if s.backend == nil {
		return models.ExecutionResult{}, errors.New("no execution backend configured")
	}
	if !req.Language.Valid() {
		return models.ExecutionResult{}, fmt.Errorf("unsupported language: %s", req.Language)
	}

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.backend.Run(runCtx, req)
}
