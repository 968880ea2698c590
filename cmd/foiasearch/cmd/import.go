package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kirillkom/foia-search/internal/bootstrap"
	"github.com/kirillkom/foia-search/internal/infrastructure/vector/local"
)

func newImportCmd() *cobra.Command {
	var batchSize int

	cmd := &cobra.Command{
		Use:   "import <corpus.jsonl>",
		Short: "Load a JSON Lines corpus with precomputed embeddings into the index",
		Long: `import upserts documents into the configured Postgres or Qdrant index.
Each line holds id, content, embedding, metadata and image_refs. The local
backend reads its corpus file directly and cannot be imported into.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if batchSize <= 0 {
				return fmt.Errorf("--batch must be positive")
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			docs, err := local.ReadCorpus(f)
			if err != nil {
				return err
			}

			b, err := openBackend(cmd.Context(), bootstrap.Options{SkipDimensionProbe: true, DisablePublisher: true})
			if err != nil {
				return err
			}
			defer b.close()
			if b.writer == nil {
				return fmt.Errorf("index backend %q is read-only", b.config.IndexBackend)
			}

			for start := 0; start < len(docs); start += batchSize {
				end := min(start+batchSize, len(docs))
				if err := b.writer.UpsertDocuments(cmd.Context(), docs[start:end]); err != nil {
					return fmt.Errorf("import documents %d-%d: %w", start+1, end, err)
				}
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "imported %d documents\n", len(docs))
			return err
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch", 100, "Documents per upsert batch")
	return cmd
}
