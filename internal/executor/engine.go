// Package executor runs shell commands for the orchestration loop.
//
// Every call spawns exactly one child through the host shell, bounds it with
// a timeout, kills the whole process tree when the bound is exceeded, and
// reports the outcome as a models.ExecutionResult. Nothing here returns an
// error: spawn failures, timeouts and nonzero exits are all data.
package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/harrison/shellagent/internal/models"
)

const (
	// DefaultTimeout bounds a command when the caller passes no timeout.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxOutputBytes caps each captured stream.
	DefaultMaxOutputBytes = 1 << 20
	// DefaultWaitDelay is how long Wait keeps draining pipes after a kill.
	DefaultWaitDelay = 2 * time.Second
)

// Logger receives execution diagnostics.
type Logger interface {
	LogDebug(message string)
	LogWarn(message string)
}

// Engine runs shell commands on the host.
type Engine struct {
	DefaultTimeout time.Duration
	MaxOutputBytes int
	WaitDelay      time.Duration
	WorkDir        string
	Logger         Logger

	shell Shell
}

// NewEngine returns an engine bound to the running OS's shell.
func NewEngine() *Engine {
	return NewEngineForOS(runtime.GOOS)
}

// NewEngineForOS returns an engine that uses the shell mapped to goos.
func NewEngineForOS(goos string) *Engine {
	return &Engine{
		DefaultTimeout: DefaultTimeout,
		MaxOutputBytes: DefaultMaxOutputBytes,
		WaitDelay:      DefaultWaitDelay,
		shell:          ShellFor(goos),
	}
}

// Shell returns the interpreter the engine spawns.
func (e *Engine) Shell() Shell {
	return e.shell
}

// Execute runs command through the host shell and waits at most timeout.
//
// On exit status zero the result carries standard output; otherwise it
// carries standard error. A timeout kills the process tree and yields
// "execution timed out after <timeout>".
func (e *Engine) Execute(ctx context.Context, command string, timeout time.Duration) models.ExecutionResult {
	if timeout <= 0 {
		timeout = e.DefaultTimeout
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	argv := e.shell.Command(command)
	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	if e.WorkDir != "" {
		cmd.Dir = e.WorkDir
	}
	setupProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = e.WaitDelay

	stdout := newCappedBuffer(e.MaxOutputBytes)
	stderr := newCappedBuffer(e.MaxOutputBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	e.debug(fmt.Sprintf("exec %q (timeout %v)", command, timeout))

	start := time.Now()
	if err := cmd.Start(); err != nil {
		result := models.ExecutionResult{
			Succeeded: false,
			Output:    fmt.Sprintf("failed to start command: %s: %v", classifyStartError(err), err),
			Kind:      models.FailureSpawn,
			ExitCode:  -1,
			Duration:  time.Since(start),
		}
		e.warn(result.Output)
		return result
	}

	err := cmd.Wait()
	duration := time.Since(start)

	if err == nil {
		return models.ExecutionResult{
			Succeeded: true,
			Output:    stdout.String(),
			Kind:      models.FailureNone,
			Duration:  duration,
		}
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		e.warn(fmt.Sprintf("command %q killed after %v", command, timeout))
		return models.ExecutionResult{
			Succeeded: false,
			Output:    fmt.Sprintf("execution timed out after %v", timeout),
			Kind:      models.FailureTimeout,
			ExitCode:  -1,
			Duration:  duration,
		}
	}

	if ctx.Err() != nil {
		return models.ExecutionResult{
			Succeeded: false,
			Output:    fmt.Sprintf("execution cancelled: %v", ctx.Err()),
			Kind:      models.FailureTimeout,
			ExitCode:  -1,
			Duration:  duration,
		}
	}

	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}

	e.debug(fmt.Sprintf("command %q exited %d after %v", command, exitCode, duration.Round(time.Millisecond)))
	return models.ExecutionResult{
		Succeeded: false,
		Output:    stderr.String(),
		Kind:      models.FailureNonZeroExit,
		ExitCode:  exitCode,
		Duration:  duration,
	}
}

// classifyStartError separates a missing interpreter from other start failures.
func classifyStartError(err error) string {
	var execErr *exec.Error
	if errors.As(err, &execErr) && errors.Is(execErr.Err, exec.ErrNotFound) {
		return "interpreter not found"
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		if errors.Is(pathErr.Err, exec.ErrNotFound) || errors.Is(pathErr.Err, os.ErrNotExist) {
			return "interpreter not found"
		}
		if errors.Is(pathErr.Err, os.ErrPermission) {
			return "permission denied"
		}
	}

	return "start failed"
}

func (e *Engine) debug(msg string) {
	if e.Logger != nil {
		e.Logger.LogDebug(msg)
	}
}

func (e *Engine) warn(msg string) {
	if e.Logger != nil {
		e.Logger.LogWarn(msg)
	}
}
