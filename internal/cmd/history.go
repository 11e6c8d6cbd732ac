package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/shellagent/internal/display"
	"github.com/harrison/shellagent/internal/models"
)

const defaultHistoryLimit = 20

func newHistoryCommand(opts *globalOptions) *cobra.Command {
	var (
		search string
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show remembered commands, newest first",
		Long: `Show commands stored in memory, newest first.

--search filters by a substring of the request or the command.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if limit < 1 {
				return fmt.Errorf("--limit must be >= 1, got %d", limit)
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

			var records []models.CommandRecord
			if search != "" {
				records, err = a.store.Search(ctx, search, limit)
			} else {
				records, err = a.store.History(ctx, limit)
			}
			if err != nil {
				return fmt.Errorf("read history: %w", err)
			}

			if asJSON {
				if records == nil {
					records = []models.CommandRecord{}
				}
				return display.JSON(a.out, records)
			}
			display.NewRenderer(a.out).History(records)
			return nil
		},
	}

	cmd.Flags().StringVar(&search, "search", "", "Only show records containing this text")
	cmd.Flags().IntVar(&limit, "limit", defaultHistoryLimit, "Maximum number of records")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print records as JSON")

	return cmd
}
