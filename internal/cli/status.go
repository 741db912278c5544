package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sebyx07/claude-task-master/internal/state"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of the current run",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().Bool("full", false, "print the full context document instead of a summary")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	dir, err := workDir()
	if err != nil {
		return err
	}
	store := state.NewStore(dir)
	if !store.Exists() {
		return fmt.Errorf("no task state in %s, run 'task-master run' first", dir)
	}

	if full, _ := cmd.Flags().GetBool("full"); full {
		fmt.Fprint(cmd.OutOrStdout(), store.BuildContext())
		return nil
	}

	st, err := store.LoadState()
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Goal: %s\n", firstLine(store.Goal()))
	fmt.Fprintf(out, "Phase: %s\n", statusColor(st.Status()).Sprint(st.Status()))
	if task := st.CurrentTask(); task != "" {
		fmt.Fprintf(out, "Current task: %s\n", task)
	}
	if pr, ok := st.PRNumber(); ok {
		fmt.Fprintf(out, "PR: #%d\n", pr)
	}
	fmt.Fprintf(out, "Sessions: %d\n", st.SessionCount())
	if reason, ok := store.BlockedReason(); ok && st.Status() == state.StatusBlocked {
		fmt.Fprintf(out, "Blocked: %s\n", reason)
	}
	return nil
}

func statusColor(status string) *color.Color {
	switch status {
	case state.StatusSuccess:
		return color.New(color.FgGreen)
	case state.StatusBlocked:
		return color.New(color.FgRed)
	case state.StatusWorking, state.StatusReady:
		return color.New(color.FgCyan)
	default:
		return color.New(color.FgYellow)
	}
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
