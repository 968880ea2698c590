package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kirillkom/foia-search/internal/bootstrap"
)

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent searches recorded by the search-log worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := openBackend(cmd.Context(), bootstrap.Options{DisablePublisher: true})
			if err != nil {
				return err
			}
			defer b.close()
			if b.history == nil {
				return fmt.Errorf("search history needs the postgres backend, got %q", b.config.IndexBackend)
			}

			events, err := b.history.RecentSearches(cmd.Context(), limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "WHEN\tRESULTS\tDUPLICATES\tMS\tQUERY")
			for _, e := range events {
				fmt.Fprintf(w, "%s\t%d\t%d\t%.1f\t%s\n",
					e.OccurredAt.Local().Format(time.DateTime), len(e.ResultIDs), e.Duplicates, e.DurationMS, e.Query)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of searches to list")
	return cmd
}
