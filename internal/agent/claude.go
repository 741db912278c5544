package agent

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os/exec"
	"strings"
	"time"

	"github.com/sebyx07/claude-task-master/internal/logging"
)

// toolUseMarker appears in the transcript when the agent invokes a tool.
// Purely cosmetic: it feeds the activity callback so a long-running session
// shows signs of life.
const toolUseMarker = "tool_use"

// reapGrace bounds how long Wait may keep collecting output after the
// deadline kills the agent. The agent routinely leaves tool subprocesses
// holding the output pipe; without this, Wait blocks until the last of them
// exits.
const reapGrace = 5 * time.Second

// ClaudeCLI runs the claude command-line binary in print mode.
type ClaudeCLI struct {
	// Binary is the executable name or path, normally "claude".
	Binary string

	// Model is passed through via --model.
	Model string

	// OnActivity, when set, is called once per transcript line that shows
	// tool usage.
	OnActivity func()

	logger *logging.Logger
}

// NewClaudeCLI returns a runner for the given binary and model.
func NewClaudeCLI(binary, model string) *ClaudeCLI {
	return &ClaudeCLI{
		Binary: binary,
		Model:  model,
		logger: logging.With("component", "agent"),
	}
}

// Invoke runs one agent session and blocks until it finishes, times out, or
// ctx is cancelled. The subprocess is killed when the deadline passes.
func (c *ClaudeCLI) Invoke(ctx context.Context, prompt string, opts Options) Result {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{"-p", "--dangerously-skip-permissions", "--model", c.Model}
	if len(opts.AllowedTools) > 0 {
		args = append(args, "--allowedTools", strings.Join(opts.AllowedTools, ","))
	}
	args = append(args, prompt)

	cmd := exec.CommandContext(runCtx, c.Binary, args...)
	cmd.Dir = opts.WorkDir
	cmd.WaitDelay = reapGrace

	// Interleave stdout and stderr into one transcript, scanning it
	// line-by-line so tool activity surfaces while the session runs.
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	var transcript strings.Builder
	scanDone := make(chan struct{})
	go func() {
		defer close(scanDone)
		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			transcript.WriteString(line)
			transcript.WriteByte('\n')
			if c.OnActivity != nil && strings.Contains(line, toolUseMarker) {
				c.OnActivity()
			}
		}
	}()

	start := time.Now()
	if err := cmd.Start(); err != nil {
		pw.Close()
		<-scanDone
		c.logger.Error("agent failed to start", "error", err)
		return Result{
			Success:  false,
			Output:   fmt.Sprintf("[ERROR: %v]", err),
			ExitCode: -1,
		}
	}

	waitErr := cmd.Wait()
	pw.Close()
	<-scanDone
	output := transcript.String()
	elapsed := time.Since(start)

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		c.logger.Warn("agent timed out", "timeout", timeout.String())
		return Result{
			Success:  false,
			Output:   output + fmt.Sprintf("[TIMEOUT after %ds]", int(math.Ceil(timeout.Seconds()))),
			ExitCode: -1,
		}
	}
	if ctx.Err() != nil {
		return Result{
			Success:  false,
			Output:   output + fmt.Sprintf("[ERROR: %v]", ctx.Err()),
			ExitCode: -1,
		}
	}

	// ErrWaitDelay means the agent exited 0 but a child it spawned still
	// held the output pipe when the grace ran out. The session succeeded;
	// only the trailing output is lost.
	if errors.Is(waitErr, exec.ErrWaitDelay) {
		c.logger.Debug("agent session complete, output pipe still held", "elapsed", elapsed.Round(time.Second).String())
		return Result{Success: true, Output: output, ExitCode: 0}
	}

	if waitErr != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			output += fmt.Sprintf("[ERROR: %v]", waitErr)
		}
		c.logger.Warn("agent exited with failure", "exit_code", exitCode, "elapsed", elapsed.Round(time.Second).String())
		return Result{Success: false, Output: output, ExitCode: exitCode}
	}

	c.logger.Debug("agent session complete", "elapsed", elapsed.Round(time.Second).String())
	return Result{Success: true, Output: output, ExitCode: 0}
}
