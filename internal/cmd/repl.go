package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/harrison/shellagent/internal/display"
	"github.com/harrison/shellagent/internal/orchestrator"
)

const (
	replPrompt       = "shellagent> "
	replHistoryFile  = "repl_history"
	replHistoryLimit = 500
)

func newReplCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Handle requests interactively",
		Long: `Start an interactive session. Each line is handled as one request.
Type "exit" or "quit" (or press Ctrl-D) to leave.

When stdin is not a terminal, lines are read until end of input.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
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

			s := &replSession{app: a, orch: orch}
			if f, ok := cmd.InOrStdin().(*os.File); ok && isatty.IsTerminal(f.Fd()) {
				return s.interactive(ctx, filepath.Join(a.home, replHistoryFile))
			}
			return s.scan(ctx, cmd.InOrStdin())
		},
	}
}

// replSession handles one line at a time against a shared orchestrator.
type replSession struct {
	app  *app
	orch *orchestrator.Orchestrator
}

func (s *replSession) interactive(ctx context.Context, historyFile string) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     historyFile,
		HistoryLimit:    replHistoryLimit,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdout:          s.app.out,
		Stderr:          s.app.errOut,
	})
	if err != nil {
		display.Warning{
			Title:      "Line editing unavailable",
			Message:    err.Error(),
			Suggestion: "Falling back to plain input",
		}.Display(s.app.errOut)
		return s.scan(ctx, os.Stdin)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		if s.handle(ctx, line) {
			return nil
		}
	}
}

func (s *replSession) scan(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if s.handle(ctx, scanner.Text()) {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}

// handle processes one line and reports whether the session should end.
func (s *replSession) handle(ctx context.Context, line string) bool {
	intent := strings.TrimSpace(line)
	switch strings.ToLower(intent) {
	case "":
		return false
	case "exit", "quit":
		return true
	}
	if ctx.Err() != nil {
		return true
	}

	res := s.orch.Handle(ctx, intent)
	s.app.log.LogResult(res)

	r := display.NewRenderer(s.app.out)
	r.Result(res)
	fmt.Fprintln(s.app.out)
	return false
}
