package agent

import (
	"context"
	"sync"
)

// Call records one MockAgent invocation for assertions.
type Call struct {
	Prompt string
	Opts   Options
}

// MockAgent is a scripted Agent for tests. With no script it reports every
// invocation as successful.
type MockAgent struct {
	mu    sync.Mutex
	calls []Call

	// InvokeFunc, when set, handles every invocation.
	InvokeFunc func(ctx context.Context, prompt string, opts Options) Result

	// Results is consumed one per call when InvokeFunc is nil. Past the
	// end of the script the zero-script default applies.
	Results []Result
}

var _ Agent = (*MockAgent)(nil)

func (m *MockAgent) Invoke(ctx context.Context, prompt string, opts Options) Result {
	m.mu.Lock()
	n := len(m.calls)
	m.calls = append(m.calls, Call{Prompt: prompt, Opts: opts})
	m.mu.Unlock()

	if m.InvokeFunc != nil {
		return m.InvokeFunc(ctx, prompt, opts)
	}
	if n < len(m.Results) {
		return m.Results[n]
	}
	return Result{Success: true, Output: "ok", ExitCode: 0}
}

// Calls returns a copy of the recorded invocations.
func (m *MockAgent) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount reports how many times Invoke ran.
func (m *MockAgent) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
