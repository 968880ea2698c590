package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpadapter "github.com/kirillkom/foia-search/internal/adapters/mcp"
	"github.com/kirillkom/foia-search/internal/bootstrap"
	"github.com/kirillkom/foia-search/internal/config"
	"github.com/kirillkom/foia-search/internal/observability/logging"
)

func main() {
	// stdout carries the protocol.
	slog.SetDefault(logging.NewLogger(os.Stderr, "json", "foia-mcp", "info"))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err.Error())
		os.Exit(1)
	}
	slog.SetDefault(logging.NewLogger(os.Stderr, cfg.LogFormat, "foia-mcp", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err.Error())
		os.Exit(1)
	}
	defer app.Close()

	server := mcpadapter.NewServer(app.SearchUC, app.DocumentUC)
	slog.Info("mcp_serving_stdio", "server", mcpadapter.ServerName, "version", mcpadapter.ServerVersion)
	if err := server.Serve(); err != nil {
		slog.Error("mcp_server_failed", "error", err.Error())
		os.Exit(1)
	}
}
