package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harrison/shellagent/internal/display"
	"github.com/harrison/shellagent/internal/models"
)

// ErrRequestFailed is returned when a handled request did not succeed. The
// result has already been printed, so callers only need the exit status.
var ErrRequestFailed = errors.New("request failed")

// newRunCommand creates the run command
func newRunCommand(opts *globalOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "run <request>...",
		Short: "Handle one natural-language request",
		Long: `Handle one natural-language request: find similar past commands,
generate a command, run it, and store the outcome.

Examples:
  shellagent run list files in the current directory
  shellagent run "show disk usage of /var" --json
  shellagent run --mode deterministic count lines in README.md`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(cmd, opts, strings.Join(args, " "), asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the structured result as JSON")

	return cmd
}

func runRequest(cmd *cobra.Command, opts *globalOptions, intent string, asJSON bool) (err error) {
	intent = strings.TrimSpace(intent)
	if intent == "" {
		return fmt.Errorf("request must not be empty")
	}

	ctx := cmd.Context()
	a, err := openApp(ctx, cmd, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	orch, err := a.orchestrator()
	if err != nil {
		return err
	}

	res := orch.Handle(ctx, intent)
	a.log.LogResult(res)

	if err := printResult(a, res, asJSON); err != nil {
		return err
	}
	if !res.Succeeded {
		return ErrRequestFailed
	}
	return nil
}

func printResult(a *app, res models.StructuredResult, asJSON bool) error {
	if asJSON {
		return display.JSON(a.out, res)
	}
	display.NewRenderer(a.out).Result(res)
	return nil
}
