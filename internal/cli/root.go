// Package cli wires the command surface: run, resume, status, logs, and pr.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sebyx07/claude-task-master/internal/agent"
	"github.com/sebyx07/claude-task-master/internal/config"
	"github.com/sebyx07/claude-task-master/internal/github"
	"github.com/sebyx07/claude-task-master/internal/logging"
)

// Version is set at build time via ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "task-master",
	Short: "Autonomous goal runner driving an AI coding agent",
	Long: `Task-master drives the claude CLI in a loop until a goal is met.
State lives in a .task-master/ directory at the project root, so a run can
be interrupted at any point and resumed later.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("task-master version {{.Version}}\n")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, _ []string) {
		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			logging.SetLevel(logging.ParseLevel(lvl))
		}
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// Test seams: commands resolve their working directory and collaborators
// through these so tests can substitute fakes.
var (
	workDir = os.Getwd

	newAgent = func(cfg *config.Config) agent.Agent {
		return agent.NewClaudeCLI(cfg.AgentBinary, cfg.Model)
	}

	newHost = func() github.RepoHost {
		return github.NewClient()
	}
)

// loadConfig reads the project config and applies any flag overrides the
// user set on cmd.
func loadConfig(cmd *cobra.Command, dir string) (*config.Config, error) {
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("model") {
		cfg.Model, _ = flags.GetString("model")
	}
	if flags.Changed("max-sessions") {
		cfg.MaxSessions, _ = flags.GetInt("max-sessions")
	}
	if flags.Changed("timeout") {
		cfg.SessionTimeoutMins, _ = flags.GetInt("timeout")
	}
	if flags.Changed("pause-on-pr") {
		cfg.PauseOnPR, _ = flags.GetBool("pause-on-pr")
	}
	if flags.Changed("auto-merge") {
		cfg.AutoMerge, _ = flags.GetBool("auto-merge")
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// addLoopFlags registers the flags shared by run and resume.
func addLoopFlags(cmd *cobra.Command) {
	cmd.Flags().String("model", "", "model passed to the agent")
	cmd.Flags().Int("max-sessions", 0, "stop after this many sessions this invocation (0 = unlimited)")
	cmd.Flags().Int("timeout", 0, "per-session timeout in minutes")
	cmd.Flags().Bool("pause-on-pr", false, "pause when the agent opens a pull request")
	cmd.Flags().Bool("auto-merge", false, "let the agent merge PRs once checks pass")
	cmd.Flags().Int("serve", -1, "serve run status on this port (0 picks a free port)")
}
