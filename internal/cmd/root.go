package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for shellagent
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "shellagent",
		Short: "Turn natural-language requests into shell commands",
		Long: `shellagent turns a natural-language request into a shell command,
runs it, and remembers the outcome.

Each request retrieves similar past commands from semantic memory, asks the
configured model for a command, executes it with a timeout, explains any
failure, and stores the result so later requests can learn from it.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
		// main prints the error once
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Path to config file (default: <home>/config.yaml)")
	flags.StringVar(&opts.home, "home", "", "shellagent home directory (default: $SHELLAGENT_HOME or ~/.shellagent)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
	flags.StringVar(&opts.mode, "mode", "", "Orchestration mode: adaptive or deterministic")
	flags.StringVar(&opts.provider, "provider", "", "Model provider: claude-cli, anthropic, openai, echo")
	flags.StringVar(&opts.model, "model", "", "Model name passed to the provider")

	// Add subcommands
	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newReplCommand(opts))
	cmd.AddCommand(newBatchCommand(opts))
	cmd.AddCommand(newHistoryCommand(opts))
	cmd.AddCommand(newMemoryCommand(opts))
	cmd.AddCommand(newConfigCommand(opts))
	cmd.AddCommand(newDoctorCommand(opts))

	return cmd
}
