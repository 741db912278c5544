// Package agent drives the external AI coding assistant as a subprocess.
// The harness never talks to a model API directly; it hands the agent binary
// a prompt, captures the combined transcript and reads the outcome back from
// the state directory the agent mutates as a side effect.
package agent

import (
	"context"
	"time"
)

// DefaultTimeout is the wall-clock cap on a single agent invocation before
// the harness gives up on it.
const DefaultTimeout = time.Hour

// Result is the outcome of one agent invocation.
type Result struct {
	// Success is true iff the subprocess exited with code 0.
	Success bool

	// Output is the combined stdout+stderr transcript. On timeout or
	// invocation failure it carries a [TIMEOUT ...] or [ERROR: ...] tag.
	Output string

	// ExitCode is the subprocess exit code, or -1 when the process could
	// not run or was cut off.
	ExitCode int
}

// Options tunes a single invocation.
type Options struct {
	// AllowedTools restricts the agent's tool surface when non-empty.
	AllowedTools []string

	// WorkDir is the subprocess working directory. Empty means inherit.
	WorkDir string

	// Timeout overrides DefaultTimeout when positive.
	Timeout time.Duration
}

// Agent is the external coding assistant consumed by the work loop.
type Agent interface {
	Invoke(ctx context.Context, prompt string, opts Options) Result
}
