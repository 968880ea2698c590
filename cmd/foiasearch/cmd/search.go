package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/foia-search/internal/adapters/render"
	"github.com/kirillkom/foia-search/internal/bootstrap"
)

type searchOptions struct {
	limit  int
	format string
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the archive",
		Example: `  foiasearch search "lead service lines"
  foiasearch search "boil water advisory" -n 5 --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(opts.format); err != nil {
				return err
			}
			if opts.limit < 0 {
				return fmt.Errorf("--limit must not be negative")
			}
			query := strings.Join(args, " ")

			b, err := openBackend(cmd.Context(), bootstrap.Options{})
			if err != nil {
				return err
			}
			defer b.close()

			resp, err := b.search.Search(cmd.Context(), query, opts.limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.format == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			_, err = fmt.Fprint(out, render.Results(resp))
			return err
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (0 uses DEFAULT_RESULTS)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	return cmd
}
