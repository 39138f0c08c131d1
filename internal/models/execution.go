package models

// ExecutionRequest carries code to run. Code and Input are untrusted
// data and are handed to the execution backend as-is.
type ExecutionRequest struct {
	Code     string   `json:"code"`
	Language Language `json:"language"`
	Input    string   `json:"input,omitempty"`
}

// ExecutionResult is the outcome of one run. It is never persisted
// server-side; it exists only in the requesting view for the duration
// of one execution. A run that reached the backend but failed (bad
// code, timeout) is a result with Success=false, not a system error.
type ExecutionResult struct {
	Success    bool   `json:"success"`
	Output     string `json:"output"`
	Error      string `json:"error,omitempty"`
	Stdout     string `json:"stdout,omitempty"`
	Stderr     string `json:"stderr,omitempty"`
	ExitCode   int    `json:"exit_code"`
	DurationMS int64  `json:"duration_ms"`
}
