package cli

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sebyx07/claude-task-master/internal/github"
	"github.com/sebyx07/claude-task-master/internal/state"
)

var prCmd = &cobra.Command{
	Use:   "pr",
	Short: "Inspect the run's pull request",
}

var prStatusCmd = &cobra.Command{
	Use:   "status [number]",
	Short: "Show CI checks for the pull request",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPRStatus,
}

var prCommentsCmd = &cobra.Command{
	Use:   "comments [number]",
	Short: "List review comments, classified by severity",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPRComments,
}

func init() {
	prCommentsCmd.Flags().Bool("actionable", false, "only critical, major, and warning comments")
	prCommentsCmd.Flags().Bool("include-resolved", false, "include resolved threads")
	prCmd.AddCommand(prStatusCmd)
	prCmd.AddCommand(prCommentsCmd)
	rootCmd.AddCommand(prCmd)
}

// resolvePR takes the explicit argument, else the PR recorded in state.
func resolvePR(args []string) (int, error) {
	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return 0, fmt.Errorf("invalid PR number %q", args[0])
		}
		return n, nil
	}
	dir, err := workDir()
	if err != nil {
		return 0, err
	}
	store := state.NewStore(dir)
	st, err := store.LoadState()
	if err != nil || st == nil {
		return 0, fmt.Errorf("no PR number given and no task state found")
	}
	pr, ok := st.PRNumber()
	if !ok {
		return 0, fmt.Errorf("no PR recorded in task state, pass a number")
	}
	return pr, nil
}

func runPRStatus(cmd *cobra.Command, args []string) error {
	number, err := resolvePR(args)
	if err != nil {
		return err
	}
	st, err := newHost().PRStatus(cmd.Context(), number)
	if err != nil {
		return fmt.Errorf("fetch PR status: %w", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "PR #%d: %s\n", number, st.Status)
	for _, check := range st.Checks {
		fmt.Fprintf(out, "  %-10s %s\n", check.Bucket, check.Name)
	}
	return nil
}

func runPRComments(cmd *cobra.Command, args []string) error {
	number, err := resolvePR(args)
	if err != nil {
		return err
	}
	comments, err := newHost().Comments(cmd.Context(), number)
	if err != nil {
		return fmt.Errorf("fetch comments: %w", err)
	}

	dir, _ := workDir()
	cfg, cfgErr := loadConfig(cmd, dir)
	var knownBots []string
	if cfgErr == nil {
		knownBots = cfg.KnownBots
	}

	actionableOnly, _ := cmd.Flags().GetBool("actionable")
	includeResolved, _ := cmd.Flags().GetBool("include-resolved")

	out := cmd.OutOrStdout()
	shown := 0
	for _, c := range comments {
		if c.Resolved && !includeResolved {
			continue
		}
		if actionableOnly && !c.Actionable() {
			continue
		}
		shown++
		author := c.Author
		if c.FromBot(knownBots) {
			author += " (bot)"
		}
		fmt.Fprintf(out, "%s %s:%s %s\n", severityColor(c.Severity()).Sprintf("[%s]", c.Severity()), c.Path, c.LineRange(), author)
		fmt.Fprintf(out, "    %s\n", c.Summary())
	}
	if shown == 0 {
		fmt.Fprintln(out, "No matching comments.")
	}
	return nil
}

func severityColor(s github.Severity) *color.Color {
	switch s {
	case github.SeverityCritical:
		return color.New(color.FgRed, color.Bold)
	case github.SeverityMajor, github.SeverityWarning:
		return color.New(color.FgYellow)
	case github.SeveritySuggestion, github.SeverityRefactor:
		return color.New(color.FgCyan)
	default:
		return color.New(color.Faint)
	}
}
