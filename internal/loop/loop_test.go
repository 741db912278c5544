package loop

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sebyx07/claude-task-master/internal/agent"
	"github.com/sebyx07/claude-task-master/internal/config"
	"github.com/sebyx07/claude-task-master/internal/github"
	"github.com/sebyx07/claude-task-master/internal/state"
)

type harness struct {
	dir   string
	store *state.Store
	agent *agent.MockAgent
	host  *github.MockHost
	cfg   config.Config
	out   *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.SleepSeconds = 0
	return &harness{
		dir:   dir,
		store: state.NewStore(dir),
		agent: &agent.MockAgent{},
		host:  &github.MockHost{},
		cfg:   cfg,
		out:   &bytes.Buffer{},
	}
}

func (h *harness) loop() *Loop {
	return New(h.store, h.agent, h.host, &h.cfg, h.dir, h.out)
}

// setState replaces the machine state wholesale for scenario setup.
func (h *harness) setState(t *testing.T, st state.State) {
	t.Helper()
	require.NoError(t, h.store.SaveState(st))
}

func TestRunFreshGoal(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	var statusDuringWork string
	h.agent.InvokeFunc = func(ctx context.Context, prompt string, opts agent.Options) agent.Result {
		switch h.agent.CallCount() {
		case 1:
			// planning: leave status alone so the loop has to force ready
			return agent.Result{Success: true, Output: "planned"}
		default:
			st, err := h.store.LoadState()
			require.NoError(t, err)
			statusDuringWork = st.Status()
			require.NoError(t, h.store.UpdateState(state.State{state.KeyStatus: state.StatusSuccess}))
			return agent.Result{Success: true, Output: "done"}
		}
	}

	reason, err := h.loop().Run(context.Background(), "Build X", "tests pass")
	require.NoError(t, err)
	assert.Equal(t, ExitSuccess, reason)

	assert.Equal(t, "ready", statusDuringWork)
	assert.Equal(t, 2, h.agent.CallCount())

	st, err := h.store.LoadState()
	require.NoError(t, err)
	assert.Equal(t, 1, st.SessionCount())

	entries, err := os.ReadDir(h.store.LogsDir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "session-001.md", entries[0].Name())

	assert.Equal(t, "Build X", h.store.Goal())
	assert.Equal(t, "tests pass", h.store.Criteria())
	assert.Contains(t, h.out.String(), "Goal achieved")
}

func TestRunPlanningPromptContents(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	require.NoError(t, os.WriteFile(filepath.Join(h.dir, "CLAUDE.md"), []byte("always run make lint"), 0o644))
	h.agent.Results = []agent.Result{
		{Success: true, Output: "planned"},
	}
	h.agent.InvokeFunc = nil
	h.cfg.MaxSessions = 1

	_, err := h.loop().Run(context.Background(), "Build the parser", "parse everything")
	require.NoError(t, err)

	calls := h.agent.Calls()
	require.NotEmpty(t, calls)
	assert.Contains(t, calls[0].Prompt, "Build the parser")
	assert.Contains(t, calls[0].Prompt, "always run make lint")
}

func TestResumeBlockedReportsReasonWithoutInvoking(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	require.NoError(t, h.store.Init("goal", "criteria"))
	h.setState(t, state.State{
		state.KeyStatus: state.StatusBlocked,
		state.KeyNotes:  "CI failing",
	})

	reason, err := h.loop().Resume(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ExitBlocked, reason)
	assert.Equal(t, 0, h.agent.CallCount())
	assert.Contains(t, h.out.String(), "CI failing")
}

func TestResumeWithoutStateFails(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	_, err := h.loop().Resume(context.Background())
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.Equal(t, 0, h.agent.CallCount())
}

func TestResumeFromPlanningPlansFirst(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	require.NoError(t, h.store.Init("finish the migration", "all green"))

	h.agent.InvokeFunc = func(ctx context.Context, prompt string, opts agent.Options) agent.Result {
		if h.agent.CallCount() == 1 {
			require.NoError(t, h.store.UpdateState(state.State{state.KeyStatus: state.StatusReady}))
			return agent.Result{Success: true, Output: "planned"}
		}
		require.NoError(t, h.store.UpdateState(state.State{state.KeyStatus: state.StatusSuccess}))
		return agent.Result{Success: true, Output: "done"}
	}

	reason, err := h.loop().Resume(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ExitSuccess, reason)
	assert.Equal(t, 2, h.agent.CallCount())
	assert.Contains(t, h.agent.Calls()[0].Prompt, "finish the migration")
}

func TestMaxSessionsStopsWithoutThirdInvocation(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	require.NoError(t, h.store.Init("goal", "criteria"))
	h.setState(t, state.State{state.KeyStatus: state.StatusReady, state.KeySessionCount: 0})
	h.cfg.MaxSessions = 2

	reason, err := h.loop().Resume(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ExitMaxSessions, reason)
	assert.Equal(t, 2, h.agent.CallCount())

	st, err := h.store.LoadState()
	require.NoError(t, err)
	assert.Equal(t, state.StatusReady, st.Status())
	assert.Contains(t, h.store.Progress(), "session limit")
}

func TestPauseOnPR(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	require.NoError(t, h.store.Init("goal", "criteria"))
	h.setState(t, state.State{state.KeyStatus: state.StatusReady})
	h.cfg.PauseOnPR = true

	h.agent.InvokeFunc = func(ctx context.Context, prompt string, opts agent.Options) agent.Result {
		require.NoError(t, h.store.UpdateState(state.State{state.KeyPRNumber: 42}))
		return agent.Result{Success: true, Output: "opened a PR"}
	}

	reason, err := h.loop().Resume(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ExitPausedForPR, reason)
	assert.Equal(t, 1, h.agent.CallCount())
	assert.Contains(t, h.store.Progress(), "PR #42")
}

func TestPlanningFailureBlocks(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.agent.Results = []agent.Result{
		{Success: false, Output: "fatal: cannot clone", ExitCode: 1},
	}

	reason, err := h.loop().Run(context.Background(), "goal", "criteria")
	assert.Equal(t, ExitBlocked, reason)

	var agentErr *AgentError
	require.ErrorAs(t, err, &agentErr)
	assert.Equal(t, "planning", agentErr.Phase)

	assert.True(t, h.store.Blocked())
	assert.Contains(t, h.store.Progress(), "cannot clone")
	assert.Equal(t, 1, h.agent.CallCount())
}

func TestWorkFailureKeepsLooping(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	require.NoError(t, h.store.Init("goal", "criteria"))
	h.setState(t, state.State{state.KeyStatus: state.StatusReady})
	h.cfg.MaxSessions = 2

	h.agent.Results = []agent.Result{
		{Success: false, Output: "transient crash", ExitCode: 1},
		{Success: false, Output: "still crashing", ExitCode: 1},
	}

	reason, err := h.loop().Resume(context.Background())
	require.NoError(t, err)
	// failures never escalate on their own; only the limit stops the loop
	assert.Equal(t, ExitMaxSessions, reason)
	assert.Equal(t, 2, h.agent.CallCount())

	st, err := h.store.LoadState()
	require.NoError(t, err)
	assert.Equal(t, state.StatusReady, st.Status())
	assert.Contains(t, h.store.Progress(), "transient crash")
}

func TestInterruptPausesCleanly(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	require.NoError(t, h.store.Init("goal", "criteria"))
	h.setState(t, state.State{state.KeyStatus: state.StatusReady})

	ctx, cancel := context.WithCancel(context.Background())
	h.agent.InvokeFunc = func(_ context.Context, prompt string, opts agent.Options) agent.Result {
		cancel()
		return agent.Result{Success: true, Output: "partial"}
	}

	reason, err := h.loop().Resume(ctx)
	require.NoError(t, err)
	assert.Equal(t, ExitInterrupted, reason)
	assert.Equal(t, 1, h.agent.CallCount())
	assert.Contains(t, h.store.Progress(), "Paused by user")
}

func TestPRStatusDisplayIsCosmetic(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	require.NoError(t, h.store.Init("goal", "criteria"))
	h.setState(t, state.State{state.KeyStatus: state.StatusReady, state.KeyPRNumber: 5})
	h.cfg.MaxSessions = 1
	h.host.Status = &github.PRStatus{Status: github.StatusFailing}
	h.host.Threads = []github.Thread{{ID: "T1"}}

	reason, err := h.loop().Resume(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ExitMaxSessions, reason)
	assert.Contains(t, h.out.String(), "PR #5: checks failing")
	assert.Contains(t, h.out.String(), "1 unresolved thread")
}

func TestPRStatusFetchErrorIsSwallowed(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	require.NoError(t, h.store.Init("goal", "criteria"))
	h.setState(t, state.State{state.KeyStatus: state.StatusReady, state.KeyPRNumber: 5})
	h.cfg.MaxSessions = 1
	h.host.StatusErr = errors.New("api down")

	reason, err := h.loop().Resume(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ExitMaxSessions, reason)
	assert.Contains(t, h.out.String(), "couldn't fetch status")
	assert.Equal(t, 1, h.agent.CallCount())
}

func TestSessionTranscriptsAreLogged(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	require.NoError(t, h.store.Init("goal", "criteria"))
	h.setState(t, state.State{state.KeyStatus: state.StatusReady, state.KeySessionCount: 3})
	h.cfg.MaxSessions = 1
	h.agent.Results = []agent.Result{{Success: true, Output: "session four output"}}

	_, err := h.loop().Resume(context.Background())
	require.NoError(t, err)

	content, err := h.store.ReadSession(4)
	require.NoError(t, err)
	assert.Contains(t, content, "session four output")
	assert.Contains(t, content, "# Session 4")
}

func TestEventsAreEmitted(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	require.NoError(t, h.store.Init("goal", "criteria"))
	h.setState(t, state.State{state.KeyStatus: state.StatusReady})
	h.cfg.MaxSessions = 1

	l := h.loop()
	var types []string
	l.OnEvent = func(ev Event) { types = append(types, ev.Type) }

	_, err := l.Resume(context.Background())
	require.NoError(t, err)
	assert.Contains(t, types, "session_started")
	assert.Contains(t, types, "session_complete")
	assert.Contains(t, types, "finished")
}
