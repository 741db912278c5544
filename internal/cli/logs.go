package cli

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sebyx07/claude-task-master/internal/state"
)

var logsCmd = &cobra.Command{
	Use:   "logs [session]",
	Short: "List session logs, or print one",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLogs,
}

func init() {
	rootCmd.AddCommand(logsCmd)
}

func runLogs(cmd *cobra.Command, args []string) error {
	dir, err := workDir()
	if err != nil {
		return err
	}
	store := state.NewStore(dir)
	if !store.Exists() {
		return fmt.Errorf("no task state in %s", dir)
	}

	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid session number %q", args[0])
		}
		content, err := store.ReadSession(n)
		if err != nil {
			return fmt.Errorf("session %d: %w", n, err)
		}
		fmt.Fprint(cmd.OutOrStdout(), content)
		return nil
	}

	entries, err := os.ReadDir(store.LogsDir())
	if err != nil {
		return fmt.Errorf("list logs: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintln(cmd.OutOrStdout(), name)
	}
	return nil
}
