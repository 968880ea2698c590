package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kirillkom/foia-search/internal/bootstrap"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate configuration and probe the index and embedder",
		Long: `check loads the configuration, connects to the index and the embedder,
and verifies that the embedder's vector dimension matches the index.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := openBackend(cmd.Context(), bootstrap.Options{DisablePublisher: true})
			if err != nil {
				return err
			}
			defer b.close()

			dim, err := b.index.Dimension(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "ok: backend=%s mode=%s embedder=%s dimension=%d\n",
				b.config.IndexBackend, b.index.Mode(), b.config.EmbedderProvider, dim)
			return err
		},
	}
}
