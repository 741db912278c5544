package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sebyx07/claude-task-master/internal/state"
)

var initCmd = &cobra.Command{
	Use:   "init <goal>",
	Short: "Create the state directory without starting work",
	Long: `Writes the goal, criteria, and initial machine state so they can be
reviewed or edited before any agent session runs. Start the loop afterwards
with 'task-master resume'. Re-running replaces prior state.`,
	Args: cobra.ExactArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().String("criteria", "The goal is fully implemented and all tests pass.", "success criteria text")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	dir, err := workDir()
	if err != nil {
		return err
	}
	criteria, _ := cmd.Flags().GetString("criteria")
	store := state.NewStore(dir)
	if err := store.Init(args[0], criteria); err != nil {
		return fmt.Errorf("initialize state: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s\n", store.Dir())
	return nil
}
