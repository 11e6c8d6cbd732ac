package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/harrison/shellagent/internal/display"
	"github.com/harrison/shellagent/internal/models"
	"github.com/harrison/shellagent/internal/orchestrator"
)

const defaultBatchParallel = 4

func newBatchCommand(opts *globalOptions) *cobra.Command {
	var (
		parallel int
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "batch <file>",
		Short: "Handle one request per line of a file",
		Long: `Handle every non-empty line of a file as an independent request.
Lines starting with # are comments. Use "-" to read from stdin.

Requests run concurrently up to --parallel; results are printed in input order.

Examples:
  shellagent batch requests.txt
  shellagent batch requests.txt --parallel 8 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			intents, err := readIntents(cmd, args[0])
			if err != nil {
				return err
			}
			if len(intents) == 0 {
				return fmt.Errorf("no requests found in %s", args[0])
			}
			if parallel < 1 {
				return fmt.Errorf("--parallel must be >= 1, got %d", parallel)
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

			start := time.Now()
			results, err := handleBatch(ctx, orch, a.log, intents, parallel)
			if err != nil {
				return err
			}
			a.log.LogBatchSummary(results, time.Since(start))

			if asJSON {
				if err := display.JSON(a.out, results); err != nil {
					return err
				}
			} else {
				r := display.NewRenderer(a.out)
				for i, res := range results {
					r.Section(fmt.Sprintf("[%d/%d] %s", i+1, len(results), intents[i]))
					r.Result(res)
					fmt.Fprintln(a.out)
				}
			}

			for _, res := range results {
				if !res.Succeeded {
					return ErrRequestFailed
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&parallel, "parallel", defaultBatchParallel, "Maximum number of requests handled at once")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the structured results as a JSON array")

	return cmd
}

// readIntents returns the non-empty, non-comment lines of path.
func readIntents(cmd *cobra.Command, path string) ([]string, error) {
	var in io.Reader
	if path == "-" {
		in = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open batch file: %w", err)
		}
		defer f.Close()
		in = f
	}

	var intents []string
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		intents = append(intents, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read batch file: %w", err)
	}
	return intents, nil
}

// batchLogger is the subset of the logger batch handling reports to.
type batchLogger interface {
	LogResult(result models.StructuredResult)
	LogBatchProgress(done, total int, elapsed time.Duration)
}

// requestHandler is satisfied by *orchestrator.Orchestrator.
type requestHandler interface {
	Handle(ctx context.Context, intent string) models.StructuredResult
}

var _ requestHandler = (*orchestrator.Orchestrator)(nil)

// handleBatch runs every intent with at most parallel in flight. Results
// keep input order. Handle never fails, so the only error is cancellation.
func handleBatch(ctx context.Context, h requestHandler, log batchLogger, intents []string, parallel int) ([]models.StructuredResult, error) {
	results := make([]models.StructuredResult, len(intents))

	var (
		mu    sync.Mutex
		done  int
		start = time.Now()
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)

	for i, intent := range intents {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := h.Handle(gctx, intent)
			results[i] = res

			mu.Lock()
			done++
			log.LogResult(res)
			log.LogBatchProgress(done, len(intents), time.Since(start))
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("batch interrupted: %w", err)
	}
	return results, nil
}
