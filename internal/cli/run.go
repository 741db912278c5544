package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sebyx07/claude-task-master/internal/config"
	"github.com/sebyx07/claude-task-master/internal/loop"
	"github.com/sebyx07/claude-task-master/internal/server"
	"github.com/sebyx07/claude-task-master/internal/state"
)

// errBlocked maps a blocked run to a nonzero exit without re-printing the
// reason, which the loop already reported.
var errBlocked = errors.New("goal is blocked")

var runCmd = &cobra.Command{
	Use:   "run <goal> [criteria]",
	Short: "Start working on a new goal",
	Long: `Initializes the state directory, has the agent produce a plan, then
iterates work sessions until the goal is met or a stop condition fires.
Re-running replaces any prior state for this directory.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runRun,
}

func init() {
	addLoopFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	goal := args[0]
	criteria := "The goal is fully implemented and all tests pass."
	if len(args) == 2 {
		criteria = args[1]
	}
	return withLoop(cmd, func(ctx context.Context, l *loop.Loop) (loop.ExitReason, error) {
		return l.Run(ctx, goal, criteria)
	})
}

// withLoop builds the loop with its collaborators, installs signal handling,
// optionally starts the status server, and maps the exit reason to the
// process outcome.
func withLoop(cmd *cobra.Command, start func(context.Context, *loop.Loop) (loop.ExitReason, error)) error {
	dir, err := workDir()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd, dir)
	if err != nil {
		return err
	}

	store := state.NewStore(dir)
	l := loop.New(store, newAgent(cfg), newHost(), cfg, dir, cmd.OutOrStdout())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if srv := statusServer(cmd, cfg, store); srv != nil {
		go func() {
			if serr := srv.Start(ctx); serr != nil {
				cmd.PrintErrln("status server:", serr)
			}
		}()
		defer srv.Stop()
		l.OnEvent = srv.Broadcast
	}

	reason, err := start(ctx, l)
	if err != nil {
		return err
	}
	if reason == loop.ExitBlocked {
		return errBlocked
	}
	return nil
}

// statusServer decides whether to serve: the --serve flag wins, otherwise a
// server section in config.yaml enables it.
func statusServer(cmd *cobra.Command, cfg *config.Config, store *state.Store) *server.Server {
	if port, err := cmd.Flags().GetInt("serve"); err == nil && port >= 0 {
		return server.New(store, port)
	}
	if cfg.Server != nil {
		return server.New(store, cfg.Server.Port)
	}
	return nil
}
