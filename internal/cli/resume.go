package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/sebyx07/claude-task-master/internal/loop"
)

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Continue an interrupted run",
	Long: `Picks up from the existing state directory. If the run never got past
planning, it plans again first; otherwise it goes straight back to work
sessions.`,
	Args: cobra.NoArgs,
	RunE: runResume,
}

func init() {
	addLoopFlags(resumeCmd)
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, _ []string) error {
	return withLoop(cmd, func(ctx context.Context, l *loop.Loop) (loop.ExitReason, error) {
		return l.Resume(ctx)
	})
}
