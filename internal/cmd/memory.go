package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harrison/shellagent/internal/display"
)

// noteType tags free-form notes added from the command line.
const noteType = "note"

func newMemoryCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect and extend semantic memory",
		Long: `Commands for inspecting and extending the semantic memory that
requests learn from.`,
	}

	cmd.AddCommand(newMemoryStatsCommand(opts))
	cmd.AddCommand(newMemoryNoteCommand(opts))

	return cmd
}

func newMemoryStatsCommand(opts *globalOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show record and entry counts",
		Args:  cobra.NoArgs,
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

			st, err := a.store.Stats(ctx)
			if err != nil {
				return fmt.Errorf("read memory stats: %w", err)
			}

			if asJSON {
				return display.JSON(a.out, st)
			}

			r := display.NewRenderer(a.out)
			r.Section("Memory")
			r.KeyValue("Path", a.store.Path())
			r.KeyValue("Embedder", st.Embedder)
			r.KeyValue("Records", st.Records)
			if st.Records > 0 {
				r.KeyValue("Succeeded", fmt.Sprintf("%d (%.1f%%)", st.Successes, float64(st.Successes)*100/float64(st.Records)))
				r.KeyValue("Last", st.LastRecord.Local().Format("2006-01-02 15:04:05"))
			}
			r.KeyValue("Entries", st.Entries)
			r.KeyValue("Documents", st.Documents)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print stats as JSON")

	return cmd
}

func newMemoryNoteCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "note <text>...",
		Short: "Store a free-form note in memory",
		Long: `Store a free-form note in memory. Notes are indexed alongside command
history but never returned as similar commands.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return fmt.Errorf("note must not be empty")
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

			if err := a.store.AddDocument(ctx, noteType, text); err != nil {
				return fmt.Errorf("store note: %w", err)
			}
			fmt.Fprintln(a.out, "Note stored.")
			return nil
		},
	}
}
