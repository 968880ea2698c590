package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/foia-search/internal/config"
	"github.com/kirillkom/foia-search/internal/core/domain"
	"github.com/kirillkom/foia-search/internal/core/ports"
	"github.com/kirillkom/foia-search/internal/core/usecase"
	"github.com/kirillkom/foia-search/internal/infrastructure/embedding/cache"
	"github.com/kirillkom/foia-search/internal/infrastructure/embedding/ollama"
	"github.com/kirillkom/foia-search/internal/infrastructure/embedding/openai"
	"github.com/kirillkom/foia-search/internal/infrastructure/queue/nats"
	"github.com/kirillkom/foia-search/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/foia-search/internal/infrastructure/resilience"
	"github.com/kirillkom/foia-search/internal/infrastructure/vector/local"
	"github.com/kirillkom/foia-search/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/foia-search/internal/observability/metrics"
)

const dimensionProbeText = "dimension probe"

type Options struct {
	// Metrics may be nil for surfaces that expose no /metrics endpoint.
	Metrics *metrics.HTTPServerMetrics
	// SkipDimensionProbe is set by the import command, which may target an empty index.
	SkipDimensionProbe bool
	// DisablePublisher keeps the process off NATS even when NATS_URL is set.
	DisablePublisher bool
}

// App owns every long-lived handle of one process. Build it once with New and
// release it with Close.
type App struct {
	Config config.Config

	Index    ports.DocumentIndex
	Embedder ports.Embedder
	// Writer is nil for the read-only local index.
	Writer ports.DocumentWriter
	// SearchLog is nil unless the index is Postgres.
	SearchLog ports.SearchLogReader

	SearchUC   *usecase.SearchUseCase
	DocumentUC *usecase.DocumentUseCase

	closers []func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &App{Config: cfg}
	executor := resilience.NewExecutor(resilienceConfig(cfg))
	if opts.Metrics != nil {
		executor.WithStateObserver(opts.Metrics.ObserveBreakerState)
	}

	if err := app.openIndex(ctx, cfg, executor); err != nil {
		app.Close()
		return nil, err
	}
	if err := app.openEmbedder(cfg, executor, opts.Metrics); err != nil {
		app.Close()
		return nil, err
	}

	if !opts.SkipDimensionProbe {
		if err := app.CheckDimension(ctx); err != nil {
			app.Close()
			return nil, err
		}
	}

	var publisher ports.SearchEventPublisher
	if cfg.NATSURL != "" && !opts.DisablePublisher {
		queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSearchSubject, nats.Options{ResilienceExecutor: executor})
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("init search event publisher: %w", err)
		}
		app.closers = append(app.closers, queue.Close)
		publisher = queue
	}

	assembler := usecase.NewAssembler(cfg.ImageBaseURL, cfg.ArchiveBaseURL)
	ranker := usecase.NewFusionRanker(app.Index, usecase.FusionOptions{
		VectorDepth:  cfg.VectorDepth,
		LexicalDepth: cfg.LexicalDepth,
		KVector:      cfg.RRFKVector,
		KLexical:     cfg.RRFKLexical,
		OutputCap:    cfg.FusionCap,
	})
	app.SearchUC = usecase.NewSearchUseCase(app.Embedder, app.Index, ranker, assembler, publisher, usecase.SearchOptions{
		QueryPrompt:    cfg.QueryPrompt,
		DefaultResults: cfg.DefaultResults,
		MaxResults:     cfg.MaxResults,
		DedupThreshold: cfg.DedupThreshold,
	})
	app.DocumentUC = usecase.NewDocumentUseCase(app.Index, assembler)

	slog.Info("bootstrap_ready",
		"index_backend", cfg.IndexBackend,
		"index_mode", string(app.Index.Mode()),
		"embedder", cfg.EmbedderProvider,
		"dedup_threshold", app.SearchUC.Options().DedupThreshold,
		"publisher", publisher != nil,
	)
	return app, nil
}

// CheckDimension embeds a fixed probe string and compares its length with the
// index dimension. A mismatch is a configuration error.
func (a *App) CheckDimension(ctx context.Context) error {
	want, err := a.Index.Dimension(ctx)
	if err != nil {
		return domain.WrapError(domain.ErrConfiguration, "probe index dimension", err)
	}
	vec, err := a.Embedder.EmbedQuery(ctx, dimensionProbeText)
	if err != nil {
		return domain.WrapError(domain.ErrConfiguration, "probe embedder dimension", err)
	}
	if len(vec) != want {
		return domain.WrapError(domain.ErrConfiguration, "probe embedding dimension",
			fmt.Errorf("embedder returns %d dimensions, index stores %d", len(vec), want))
	}
	return nil
}

func (a *App) openIndex(ctx context.Context, cfg config.Config, executor *resilience.Executor) error {
	switch cfg.IndexBackend {
	case config.IndexBackendPostgres:
		db, err := postgres.OpenDB(ctx, cfg.PostgresDSN)
		if err != nil {
			return domain.WrapError(domain.ErrConfiguration, "open postgres", err)
		}
		a.closers = append(a.closers, func() { closeDB(db) })
		if cfg.PostgresEnsureSchema {
			if err := postgres.EnsureSchema(ctx, db, cfg.EmbeddingDim); err != nil {
				return fmt.Errorf("ensure schema: %w", err)
			}
		}
		index := postgres.NewDocumentIndex(db, executor)
		a.Index = index
		a.Writer = index
		a.SearchLog = postgres.NewSearchLogRepository(db, executor)
	case config.IndexBackendQdrant:
		client := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, executor)
		a.Index = client
		a.Writer = client
	case config.IndexBackendLocal:
		docs, err := local.LoadCorpus(cfg.LocalCorpusPath)
		if err != nil {
			return err
		}
		index, err := local.New(docs, local.Options{Lexical: cfg.LocalLexical})
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() { _ = index.Close() })
		a.Index = index
		slog.Info("local_index_loaded", "path", cfg.LocalCorpusPath, "documents", index.Len(), "lexical", cfg.LocalLexical)
	default:
		return domain.WrapError(domain.ErrConfiguration, "open index", fmt.Errorf("unknown backend %q", cfg.IndexBackend))
	}
	return nil
}

func (a *App) openEmbedder(cfg config.Config, executor *resilience.Executor, m *metrics.HTTPServerMetrics) error {
	var (
		base  ports.Embedder
		model string
	)
	switch cfg.EmbedderProvider {
	case config.EmbedderOllama:
		base = ollama.NewEmbedder(ollama.New(cfg.OllamaURL, cfg.OllamaEmbedModel, executor))
		model = cfg.OllamaEmbedModel
	case config.EmbedderOpenAI:
		base = openai.NewEmbedder(openai.Config{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIEmbedModel,
		}, executor)
		model = cfg.OpenAIEmbedModel
	default:
		return domain.WrapError(domain.ErrConfiguration, "open embedder", fmt.Errorf("unknown provider %q", cfg.EmbedderProvider))
	}

	counter := cacheCounter(m)
	embedder := base
	if cfg.RedisAddr != "" {
		store, err := cache.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, time.Duration(cfg.RedisCacheTTLSeconds)*time.Second)
		if err != nil {
			return domain.WrapError(domain.ErrConfiguration, "open redis embedding cache", err)
		}
		a.closers = append(a.closers, store.Close)
		embedder = cache.New(embedder, store, "redis", model, counter)
	}
	if cfg.EmbedCacheSize > 0 {
		store, err := cache.NewLRUStore(cfg.EmbedCacheSize)
		if err != nil {
			return domain.WrapError(domain.ErrConfiguration, "open lru embedding cache", err)
		}
		embedder = cache.New(embedder, store, "lru", model, counter)
	}
	a.Embedder = embedder
	return nil
}

// Close releases handles in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// Worker is the search-log writer process: a NATS subscriber feeding Postgres.
type Worker struct {
	Config config.Config

	Queue       ports.SearchEventSubscriber
	SearchLogUC *usecase.SearchLogUseCase

	closeFn func()
}

func NewWorker(ctx context.Context, cfg config.Config) (*Worker, error) {
	if err := cfg.ValidateWorker(); err != nil {
		return nil, err
	}
	executor := resilience.NewExecutor(resilienceConfig(cfg))

	db, err := postgres.OpenDB(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "open postgres", err)
	}
	if cfg.PostgresEnsureSchema {
		if err := postgres.EnsureSchema(ctx, db, cfg.EmbeddingDim); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSearchSubject, nats.Options{ResilienceExecutor: executor})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	return &Worker{
		Config:      cfg,
		Queue:       queue,
		SearchLogUC: usecase.NewSearchLogUseCase(postgres.NewSearchLogRepository(db, executor)),
		closeFn: func() {
			queue.Close()
			closeDB(db)
		},
	}, nil
}

func (w *Worker) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

func resilienceConfig(cfg config.Config) resilience.Config {
	return resilience.Config{
		RetryMaxAttempts:        cfg.RetryMaxAttempts,
		RetryInitialBackoff:     time.Duration(cfg.RetryInitialBackoffMS) * time.Millisecond,
		RetryMaxBackoff:         time.Duration(cfg.RetryMaxBackoffMS) * time.Millisecond,
		BreakerEnabled:          cfg.BreakerEnabled,
		BreakerMinRequests:      uint32(max(cfg.BreakerMinRequests, 0)),
		BreakerFailureRatio:     cfg.BreakerFailureRatio,
		BreakerOpenTimeout:      time.Duration(cfg.BreakerOpenTimeoutSecs) * time.Second,
		BreakerHalfOpenMaxCalls: uint32(max(cfg.BreakerHalfOpenMaxCalls, 0)),
	}
}

func cacheCounter(m *metrics.HTTPServerMetrics) *prometheus.CounterVec {
	if m == nil {
		return nil
	}
	return m.EmbeddingCacheCounter()
}

func closeDB(db *sql.DB) {
	if err := db.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		slog.Warn("postgres_close_failed", "error", err.Error())
	}
}
