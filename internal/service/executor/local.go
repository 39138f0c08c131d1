package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"codeshare/internal/models"
)

// LocalBackend runs code as a subprocess on this host. It supports the
// interpreted languages only; compiled languages need the remote
// runner. Sandboxing is the host's problem, not this package's.
type LocalBackend struct {
	// PythonPath and NodePath override the interpreter binaries,
	// mostly for tests.
	PythonPath string
	NodePath   string
}

// NewLocalBackend builds a subprocess backend with default
// interpreter paths.
func NewLocalBackend() *LocalBackend {
	return &LocalBackend{PythonPath: "python3", NodePath: "node"}
}

// Run executes the payload and reports combined output, exit code,
// and duration. A timeout or non-zero exit is a failed result, not an
// error.
func (b *LocalBackend) Run(ctx context.Context, req models.ExecutionRequest) (models.ExecutionResult, error) {
	var name string
	var args []string
	switch req.Language {
	case models.LanguagePython:
		name, args = b.PythonPath, []string{"-c", req.Code}
	case models.LanguageJavaScript:
		name, args = b.NodePath, []string{"-e", req.Code}
	default:
		msg := fmt.Sprintf("language %s is not supported by the local runner", req.Language)
		return models.ExecutionResult{Success: false, Output: msg, Error: msg, ExitCode: 1}, nil
	}

	cmd := exec.CommandContext(ctx, name, args...)
	if req.Input != "" {
		cmd.Stdin = strings.NewReader(req.Input)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	result := models.ExecutionResult{
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		Output:     stdout.String() + stderr.String(),
		DurationMS: duration.Milliseconds(),
	}

	if ctx.Err() == context.DeadlineExceeded {
		result.Success = false
		result.Error = "execution timed out"
		result.ExitCode = -1
		return result, nil
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			result.Success = false
			result.ExitCode = exitErr.ExitCode()
			result.Error = firstNonEmpty(result.Stderr, runErr.Error())
			return result, nil
		}
		// Interpreter missing or not startable: the backend itself is
		// broken, surface it as an error.
		return models.ExecutionResult{}, fmt.Errorf("run %s: %w", name, runErr)
	}

	result.Success = true
	return result, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
