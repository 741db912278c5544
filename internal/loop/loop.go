// Package loop implements the orchestration state machine: a one-time
// planning phase followed by repeated work iterations, each one a full agent
// session, until the agent reports success or blocked, a configured limit
// fires, or the user interrupts.
package loop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"

	"github.com/sebyx07/claude-task-master/internal/agent"
	"github.com/sebyx07/claude-task-master/internal/config"
	"github.com/sebyx07/claude-task-master/internal/github"
	"github.com/sebyx07/claude-task-master/internal/logging"
	"github.com/sebyx07/claude-task-master/internal/state"
	"github.com/sebyx07/claude-task-master/internal/textutil"
)

// conventionsFile is picked up from the project root, when present, as extra
// context for the planning prompt.
const conventionsFile = "CLAUDE.md"

// failureTailLen is how much of a failed session's output lands in
// progress.md.
const failureTailLen = 500

// ErrNotInitialized is returned by Resume when the state directory was never
// created.
var ErrNotInitialized = errors.New("no task state found, run 'task-master run' first")

// AgentError is a fatal planning-phase failure. Work-iteration failures never
// produce one; they are recorded and retried on the next pass.
type AgentError struct {
	Phase  string
	Output string
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("agent failed during %s", e.Phase)
}

// ExitReason says why the loop stopped.
type ExitReason int

const (
	ExitSuccess ExitReason = iota
	ExitBlocked
	ExitMaxSessions
	ExitPausedForPR
	ExitInterrupted
)

func (r ExitReason) String() string {
	switch r {
	case ExitSuccess:
		return "success"
	case ExitBlocked:
		return "blocked"
	case ExitMaxSessions:
		return "max sessions reached"
	case ExitPausedForPR:
		return "paused for PR review"
	case ExitInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// Event is a loop lifecycle notification, consumed by the status server.
type Event struct {
	Type    string `json:"type"`
	Session int    `json:"session,omitempty"`
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}

// Loop wires the store, the agent, and the host together.
type Loop struct {
	store  *state.Store
	agent  agent.Agent
	host   github.RepoHost
	cfg    *config.Config
	out    io.Writer
	logger *logging.Logger

	workDir string
	now     func() time.Time

	// OnEvent, when set, receives lifecycle notifications. Must not block.
	OnEvent func(Event)
}

// New builds a Loop rooted at workDir. host may be nil when no hosting
// integration is available; PR status display degrades gracefully.
func New(store *state.Store, ag agent.Agent, host github.RepoHost, cfg *config.Config, workDir string, out io.Writer) *Loop {
	if out == nil {
		out = os.Stdout
	}
	return &Loop{
		store:   store,
		agent:   ag,
		host:    host,
		cfg:     cfg,
		out:     out,
		logger:  logging.With("component", "loop"),
		workDir: workDir,
		now:     time.Now,
	}
}

// Run starts fresh: initializes the state directory, plans, then works.
func (l *Loop) Run(ctx context.Context, goal, criteria string) (ExitReason, error) {
	if err := l.store.Init(goal, criteria); err != nil {
		return ExitBlocked, fmt.Errorf("initialize state: %w", err)
	}
	l.logger.Info("starting run", "goal", textutil.Truncate(goal, 80))
	if err := l.planningPhase(ctx, goal); err != nil {
		return ExitBlocked, err
	}
	return l.workLoop(ctx)
}

// Resume picks up an interrupted run. It is the sole re-entry point: if the
// run never got past planning it plans again, otherwise it goes straight to
// the work loop.
func (l *Loop) Resume(ctx context.Context) (ExitReason, error) {
	if !l.store.Exists() {
		return ExitBlocked, ErrNotInitialized
	}
	st, err := l.store.LoadState()
	if err != nil {
		return ExitBlocked, fmt.Errorf("load state: %w", err)
	}
	l.logger.Info("resuming", "status", st.Status(), "sessions", st.SessionCount())
	if st.Status() == state.StatusPlanning {
		if err := l.planningPhase(ctx, l.store.Goal()); err != nil {
			return ExitBlocked, err
		}
	}
	return l.workLoop(ctx)
}

// planningPhase runs one agent session that produces the plan. Failure here
// is fatal: status goes to blocked and the caller gets an AgentError.
func (l *Loop) planningPhase(ctx context.Context, goal string) error {
	color.New(color.FgCyan, color.Bold).Fprintln(l.out, "\n=== Planning Phase ===")
	l.emit(Event{Type: "planning_started"})

	conventions := l.readConventions()
	prompt := agent.PlanningPrompt(goal, conventions)

	n := l.store.NextSessionNumber()
	start := l.now()
	res := l.agent.Invoke(ctx, prompt, agent.Options{
		AllowedTools: l.cfg.AllowedTools,
		WorkDir:      l.workDir,
	})
	elapsed := l.now().Sub(start)

	if err := l.store.LogSession(n, sessionRecord(n, start, elapsed, res.Output)); err != nil {
		l.logger.Warn("failed to write session log", "session", n, "error", err)
	}

	if !res.Success {
		if err := l.store.UpdateState(state.State{state.KeyStatus: state.StatusBlocked}); err != nil {
			l.logger.Warn("failed to mark blocked", "error", err)
		}
		l.appendProgress(fmt.Sprintf("Planning failed:\n%s", textutil.Tail(res.Output, failureTailLen)))
		color.New(color.FgRed).Fprintln(l.out, "Planning failed.")
		return &AgentError{Phase: "planning", Output: res.Output}
	}

	// The agent is instructed to set status=ready itself; correct it if
	// the session ended without doing so.
	st, err := l.store.LoadState()
	if err != nil || st.Status() != state.StatusReady {
		if uerr := l.store.UpdateState(state.State{state.KeyStatus: state.StatusReady}); uerr != nil {
			return fmt.Errorf("mark ready: %w", uerr)
		}
	}

	color.New(color.FgGreen).Fprintln(l.out, "Planning complete.")
	l.emit(Event{Type: "planning_complete", Session: n})
	return nil
}

// workLoop iterates until a terminal condition. The max-sessions counter is
// per process invocation, not cumulative across resumes.
func (l *Loop) workLoop(ctx context.Context) (ExitReason, error) {
	sessionsThisRun := 0
	for {
		if ctx.Err() != nil {
			return l.pause(), nil
		}

		st, err := l.store.LoadState()
		if err != nil {
			return ExitBlocked, fmt.Errorf("load state: %w", err)
		}

		switch st.Status() {
		case state.StatusSuccess:
			color.New(color.FgGreen, color.Bold).Fprintln(l.out, "\nGoal achieved.")
			l.emit(Event{Type: "finished", Status: state.StatusSuccess})
			return ExitSuccess, nil
		case state.StatusBlocked:
			reason, _ := l.store.BlockedReason()
			color.New(color.FgRed, color.Bold).Fprintf(l.out, "\nBlocked: %s\n", reason)
			l.emit(Event{Type: "finished", Status: state.StatusBlocked, Message: reason})
			return ExitBlocked, nil
		}

		if l.cfg.MaxSessions > 0 && sessionsThisRun >= l.cfg.MaxSessions {
			l.appendProgress(fmt.Sprintf("Paused: reached session limit (%d) at %s", l.cfg.MaxSessions, l.now().Format(time.RFC3339)))
			color.New(color.FgYellow).Fprintf(l.out, "\nSession limit (%d) reached. Resume to continue.\n", l.cfg.MaxSessions)
			l.emit(Event{Type: "finished", Status: "max_sessions"})
			return ExitMaxSessions, nil
		}

		_, hadPR := st.PRNumber()
		l.iterate(ctx, st)
		sessionsThisRun++

		if ctx.Err() != nil {
			return l.pause(), nil
		}

		after, err := l.store.LoadState()
		if err != nil {
			return ExitBlocked, fmt.Errorf("load state: %w", err)
		}
		if pr, ok := after.PRNumber(); l.cfg.PauseOnPR && !hadPR && ok {
			l.appendProgress(fmt.Sprintf("Paused: PR #%d opened, awaiting review", pr))
			color.New(color.FgYellow).Fprintf(l.out, "\nPR #%d opened. Pausing for review.\n", pr)
			l.emit(Event{Type: "finished", Status: "paused_for_pr", Session: after.SessionCount()})
			return ExitPausedForPR, nil
		}

		if !sleepCtx(ctx, l.cfg.Sleep()) {
			return l.pause(), nil
		}
	}
}

// iterate runs a single work session. Agent failures are recorded but never
// change status or stop the loop.
func (l *Loop) iterate(ctx context.Context, st state.State) {
	if pr, ok := st.PRNumber(); ok {
		l.showPRStatus(ctx, pr)
	}

	prompt := agent.WorkPrompt(l.store.BuildContext(), l.cfg.AutoMerge)

	// The work session is numbered by the persisted session count, so the
	// numbering survives resumes. The planning transcript occupies the
	// same slot on a fresh run and gets replaced by the first session.
	n := st.SessionCount() + 1
	if err := l.store.UpdateState(state.State{state.KeySessionCount: n}); err != nil {
		l.logger.Warn("failed to bump session count", "error", err)
	}

	color.New(color.FgCyan, color.Bold).Fprintf(l.out, "\n=== Session %d ===\n", n)
	l.emit(Event{Type: "session_started", Session: n})

	start := l.now()
	res := l.agent.Invoke(ctx, prompt, agent.Options{
		AllowedTools: l.cfg.AllowedTools,
		WorkDir:      l.workDir,
		Timeout:      l.cfg.SessionTimeout(),
	})
	elapsed := l.now().Sub(start)

	if err := l.store.LogSession(n, sessionRecord(n, start, elapsed, res.Output)); err != nil {
		l.logger.Warn("failed to write session log", "session", n, "error", err)
	}

	if !res.Success {
		l.appendProgress(fmt.Sprintf("Session %d failed (exit %d):\n%s", n, res.ExitCode, textutil.Tail(res.Output, failureTailLen)))
		color.New(color.FgRed).Fprintf(l.out, "Session %d failed (exit %d). Will retry next pass.\n", n, res.ExitCode)
		l.emit(Event{Type: "session_failed", Session: n})
		return
	}

	// purely observational: show what moved this session
	if after, err := l.store.LoadState(); err == nil {
		if task := after.CurrentTask(); task != "" && task != st.CurrentTask() {
			fmt.Fprintf(l.out, "Current task: %s\n", task)
		}
		prBefore, _ := st.PRNumber()
		if pr, ok := after.PRNumber(); ok && pr != prBefore {
			fmt.Fprintf(l.out, "Opened PR #%d\n", pr)
		}
	}
	color.New(color.FgGreen).Fprintf(l.out, "Session %d complete (%s).\n", n, elapsed.Round(time.Second))
	l.emit(Event{Type: "session_complete", Session: n})
}

// showPRStatus is display only. Any fetch failure is swallowed.
func (l *Loop) showPRStatus(ctx context.Context, pr int) {
	if l.host == nil {
		return
	}
	st, err := l.host.PRStatus(ctx, pr)
	if err != nil {
		fmt.Fprintf(l.out, "PR #%d: couldn't fetch status\n", pr)
		return
	}
	line := fmt.Sprintf("PR #%d: checks %s", pr, st.Status)
	if threads, err := l.host.UnresolvedThreads(ctx, pr); err == nil && len(threads) > 0 {
		line += fmt.Sprintf(", %d unresolved thread(s)", len(threads))
	}
	fmt.Fprintln(l.out, line)
}

// pause records a clean interrupt. Not an error; the run resumes later.
func (l *Loop) pause() ExitReason {
	l.appendProgress(fmt.Sprintf("Paused by user at %s", l.now().Format(time.RFC3339)))
	color.New(color.FgYellow).Fprintln(l.out, "\nPaused. Resume with 'task-master resume'.")
	l.emit(Event{Type: "finished", Status: "interrupted"})
	return ExitInterrupted
}

func (l *Loop) appendProgress(text string) {
	if err := l.store.AppendProgress(text); err != nil {
		l.logger.Warn("failed to append progress", "error", err)
	}
}

func (l *Loop) readConventions() string {
	data, err := os.ReadFile(filepath.Join(l.workDir, conventionsFile))
	if err != nil {
		return ""
	}
	return string(data)
}

func (l *Loop) emit(ev Event) {
	if l.OnEvent != nil {
		l.OnEvent(ev)
	}
}

func sessionRecord(n int, start time.Time, elapsed time.Duration, output string) string {
	return fmt.Sprintf("# Session %d\n\nStarted: %s\nDuration: %s\n\n## Output\n\n%s\n",
		n, start.Format(time.RFC3339), elapsed.Round(time.Second), output)
}

// sleepCtx waits d or until ctx is done. Returns false on cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
