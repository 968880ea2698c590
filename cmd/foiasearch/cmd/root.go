// Package cmd provides the foiasearch CLI commands.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kirillkom/foia-search/internal/bootstrap"
	"github.com/kirillkom/foia-search/internal/config"
	"github.com/kirillkom/foia-search/internal/core/ports"
	"github.com/kirillkom/foia-search/internal/observability/logging"
)

// backend is the slice of a bootstrapped app that commands use.
type backend struct {
	config  config.Config
	search  ports.DocumentSearchService
	docs    ports.DocumentReader
	writer  ports.DocumentWriter
	history ports.SearchLogReader
	index   ports.DocumentIndex
	close   func()
}

// openBackend is swapped out by tests.
var openBackend = func(ctx context.Context, opts bootstrap.Options) (*backend, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logging.NewLogger(os.Stderr, "text", "foiasearch", cliLogLevel(cfg)))

	app, err := bootstrap.New(ctx, cfg, opts)
	if err != nil {
		return nil, err
	}
	return &backend{
		config:  cfg,
		search:  app.SearchUC,
		docs:    app.DocumentUC,
		writer:  app.Writer,
		history: app.SearchLog,
		index:   app.Index,
		close:   app.Close,
	}, nil
}

var verbose bool

func cliLogLevel(cfg config.Config) string {
	if verbose {
		return "debug"
	}
	if cfg.LogLevel == "info" {
		return "warn"
	}
	return cfg.LogLevel
}

func NewRootCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "foiasearch",
		Short: "Search the FOIA email archive",
		Long: `foiasearch runs hybrid vector and full-text search over the scanned
email archive, fuses both rankings and removes near-duplicate emails.

Configuration comes from the environment (INDEX_BACKEND, POSTGRES_DSN,
OLLAMA_URL, ...) or from a YAML file passed with --config.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if configFile != "" {
				return os.Setenv("CONFIG_FILE", configFile)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file (env vars still take precedence)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")

	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newCheckCmd())
	cmd.AddCommand(newImportCmd())
	cmd.AddCommand(newHistoryCmd())
	return cmd
}

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func validateFormat(format string) error {
	switch format {
	case "text", "json":
		return nil
	default:
		return fmt.Errorf("unknown format %q (want text or json)", format)
	}
}
