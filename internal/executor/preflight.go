package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrCheckFailed indicates a preflight check command failed.
var ErrCheckFailed = errors.New("preflight check failed")

// CommandRunner abstracts shell command execution for testability.
type CommandRunner interface {
	Run(ctx context.Context, command string) (output string, err error)
}

// Run adapts Execute to CommandRunner. A failed execution is returned as an
// error wrapping ErrCheckFailed with the captured diagnostic.
func (e *Engine) Run(ctx context.Context, command string) (string, error) {
	res := e.Execute(ctx, command, 0)
	if !res.Succeeded {
		return res.Output, fmt.Errorf("%w: %s (%s)", ErrCheckFailed, command, res.Kind)
	}
	return res.Output, nil
}

// Check is a single environment probe, e.g. "is the shell usable".
type Check struct {
	Command     string
	Description string
}

// CheckResult holds the result of a single check.
type CheckResult struct {
	Command     string
	Description string
	Output      string
	Error       error
	Duration    time.Duration
}

// Passed reports whether the check succeeded.
func (r CheckResult) Passed() bool {
	return r.Error == nil
}

// HostChecks returns the default probes for the host shell.
func HostChecks(shell Shell) []Check {
	if shell.Path == "powershell" {
		return []Check{
			{Command: "$PSVersionTable.PSVersion.ToString()", Description: "PowerShell available"},
			{Command: "Get-Location", Description: "working directory readable"},
		}
	}
	return []Check{
		{Command: "echo ok", Description: "POSIX shell available"},
		{Command: "pwd", Description: "working directory readable"},
	}
}

// RunChecks executes checks in order and stops on the first failure.
// Returns ErrCheckFailed (wrapped) describing the failing check.
func RunChecks(ctx context.Context, runner CommandRunner, checks []Check) error {
	for _, check := range checks {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		start := time.Now()
		output, err := runner.Run(ctx, check.Command)
		duration := time.Since(start)

		if err != nil {
			errMsg := fmt.Sprintf(
				"command %q (%s) failed after %v: %v",
				check.Command,
				check.Description,
				duration.Round(time.Millisecond),
				err,
			)
			if output != "" {
				errMsg += fmt.Sprintf("\nOutput:\n%s", strings.TrimSpace(output))
			}
			return fmt.Errorf("%w: %s", ErrCheckFailed, errMsg)
		}
	}

	return nil
}

// RunChecksWithResults executes every check and returns all results.
// Unlike RunChecks, it continues past failures.
func RunChecksWithResults(ctx context.Context, runner CommandRunner, checks []Check) []CheckResult {
	results := make([]CheckResult, 0, len(checks))

	for _, check := range checks {
		if ctx.Err() != nil {
			results = append(results, CheckResult{
				Command:     check.Command,
				Description: check.Description,
				Error:       ctx.Err(),
			})
			break
		}

		start := time.Now()
		output, err := runner.Run(ctx, check.Command)
		results = append(results, CheckResult{
			Command:     check.Command,
			Description: check.Description,
			Output:      output,
			Error:       err,
			Duration:    time.Since(start),
		})
	}

	return results
}
