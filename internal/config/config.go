package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/foia-search/internal/core/domain"
)

const (
	IndexBackendPostgres = "postgres"
	IndexBackendQdrant   = "qdrant"
	IndexBackendLocal    = "local"

	EmbedderOllama = "ollama"
	EmbedderOpenAI = "openai"
)

type Config struct {
	APIPort   string
	LogLevel  string
	LogFormat string

	IndexBackend string

	PostgresDSN          string
	PostgresEnsureSchema bool
	EmbeddingDim         int

	QdrantURL        string
	QdrantCollection string

	LocalCorpusPath string
	LocalLexical    bool

	EmbedderProvider string
	OllamaURL        string
	OllamaEmbedModel string
	OpenAIBaseURL    string
	OpenAIAPIKey     string
	OpenAIEmbedModel string

	QueryPrompt    string
	VectorDepth    int
	LexicalDepth   int
	RRFKVector     int
	RRFKLexical    int
	FusionCap      int
	DedupThreshold int
	DefaultResults int
	MaxResults     int

	ImageBaseURL   string
	ArchiveBaseURL string

	EmbedCacheSize       int
	RedisAddr            string
	RedisPassword        string
	RedisCacheTTLSeconds int

	NATSURL           string
	NATSSearchSubject string

	APIRateLimitRPS   float64
	APIRateLimitBurst int
	APIMaxInFlight    int

	RetryMaxAttempts        int
	RetryInitialBackoffMS   int
	RetryMaxBackoffMS       int
	BreakerEnabled          bool
	BreakerFailureRatio     float64
	BreakerOpenTimeoutSecs  int
	BreakerMinRequests      int
	BreakerHalfOpenMaxCalls int

	WorkerMetricsPort string
}

// Load reads the environment. When CONFIG_FILE points at a YAML file of
// KEY: value pairs, those values replace the built-in fallbacks.
func Load() (Config, error) {
	file, err := loadFile(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return Config{}, err
	}
	e := env{file: file}

	return Config{
		APIPort:   e.mustEnv("API_PORT", "8080"),
		LogLevel:  e.mustEnv("LOG_LEVEL", "info"),
		LogFormat: e.mustEnv("LOG_FORMAT", "json"),

		IndexBackend: strings.ToLower(e.mustEnv("INDEX_BACKEND", IndexBackendPostgres)),

		PostgresDSN:          e.mustEnv("POSTGRES_DSN", ""),
		PostgresEnsureSchema: e.mustEnvBool("POSTGRES_ENSURE_SCHEMA", false),
		EmbeddingDim:         e.mustEnvInt("EMBEDDING_DIM", 768),

		QdrantURL:        e.mustEnv("QDRANT_URL", ""),
		QdrantCollection: e.mustEnv("QDRANT_COLLECTION", "flint_emails"),

		LocalCorpusPath: e.mustEnv("LOCAL_CORPUS_PATH", ""),
		LocalLexical:    e.mustEnvBool("LOCAL_LEXICAL", false),

		EmbedderProvider: strings.ToLower(e.mustEnv("EMBEDDER_PROVIDER", EmbedderOllama)),
		OllamaURL:        e.mustEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaEmbedModel: e.mustEnv("OLLAMA_EMBED_MODEL", "bge-base-en"),
		OpenAIBaseURL:    e.mustEnv("OPENAI_BASE_URL", ""),
		OpenAIAPIKey:     e.mustEnv("OPENAI_API_KEY", ""),
		OpenAIEmbedModel: e.mustEnv("OPENAI_EMBED_MODEL", "text-embedding-3-small"),

		QueryPrompt:    e.mustEnvRaw("QUERY_PROMPT", "Represent this sentence for searching relevant passages: "),
		VectorDepth:    e.mustEnvInt("VECTOR_DEPTH", 200),
		LexicalDepth:   e.mustEnvInt("LEXICAL_DEPTH", 150),
		RRFKVector:     e.mustEnvInt("RRF_K_VECTOR", 70),
		RRFKLexical:    e.mustEnvInt("RRF_K_LEXICAL", 30),
		FusionCap:      e.mustEnvInt("FUSION_CAP", 100),
		DedupThreshold: e.mustEnvInt("DEDUP_THRESHOLD", 0),
		DefaultResults: e.mustEnvInt("DEFAULT_RESULTS", 10),
		MaxResults:     e.mustEnvInt("MAX_RESULTS", 100),

		ImageBaseURL:   e.mustEnv("IMAGE_BASE_URL", ""),
		ArchiveBaseURL: e.mustEnv("ARCHIVE_BASE_URL", ""),

		EmbedCacheSize:       e.mustEnvInt("EMBED_CACHE_SIZE", 1000),
		RedisAddr:            e.mustEnv("REDIS_ADDR", ""),
		RedisPassword:        e.mustEnv("REDIS_PASSWORD", ""),
		RedisCacheTTLSeconds: e.mustEnvInt("REDIS_CACHE_TTL_SECONDS", 86400),

		NATSURL:           e.mustEnv("NATS_URL", ""),
		NATSSearchSubject: e.mustEnv("NATS_SEARCH_SUBJECT", "search.executed"),

		APIRateLimitRPS:   e.mustEnvFloat("API_RATE_LIMIT_RPS", 20),
		APIRateLimitBurst: e.mustEnvInt("API_RATE_LIMIT_BURST", 40),
		APIMaxInFlight:    e.mustEnvInt("API_MAX_IN_FLIGHT", 32),

		RetryMaxAttempts:        e.mustEnvInt("RETRY_MAX_ATTEMPTS", 3),
		RetryInitialBackoffMS:   e.mustEnvInt("RETRY_INITIAL_BACKOFF_MS", 100),
		RetryMaxBackoffMS:       e.mustEnvInt("RETRY_MAX_BACKOFF_MS", 400),
		BreakerEnabled:          e.mustEnvBool("BREAKER_ENABLED", true),
		BreakerFailureRatio:     e.mustEnvFloat("BREAKER_FAILURE_RATIO", 0.5),
		BreakerOpenTimeoutSecs:  e.mustEnvInt("BREAKER_OPEN_TIMEOUT_SECONDS", 30),
		BreakerMinRequests:      e.mustEnvInt("BREAKER_MIN_REQUESTS", 10),
		BreakerHalfOpenMaxCalls: e.mustEnvInt("BREAKER_HALF_OPEN_MAX_CALLS", 2),

		WorkerMetricsPort: e.mustEnv("WORKER_METRICS_PORT", "9090"),
	}, nil
}

// Validate reports settings that make startup impossible.
func (c Config) Validate() error {
	var problems []string

	switch c.IndexBackend {
	case IndexBackendPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			problems = append(problems, "POSTGRES_DSN is required for the postgres index")
		}
	case IndexBackendQdrant:
		if strings.TrimSpace(c.QdrantURL) == "" {
			problems = append(problems, "QDRANT_URL is required for the qdrant index")
		}
		if strings.TrimSpace(c.QdrantCollection) == "" {
			problems = append(problems, "QDRANT_COLLECTION is required for the qdrant index")
		}
	case IndexBackendLocal:
		if strings.TrimSpace(c.LocalCorpusPath) == "" {
			problems = append(problems, "LOCAL_CORPUS_PATH is required for the local index")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown INDEX_BACKEND %q", c.IndexBackend))
	}

	switch c.EmbedderProvider {
	case EmbedderOllama:
		if strings.TrimSpace(c.OllamaURL) == "" {
			problems = append(problems, "OLLAMA_URL is required for the ollama embedder")
		}
	case EmbedderOpenAI:
		if strings.TrimSpace(c.OpenAIEmbedModel) == "" {
			problems = append(problems, "OPENAI_EMBED_MODEL is required for the openai embedder")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown EMBEDDER_PROVIDER %q", c.EmbedderProvider))
	}

	if c.VectorDepth <= 0 || c.LexicalDepth <= 0 {
		problems = append(problems, "VECTOR_DEPTH and LEXICAL_DEPTH must be positive")
	}
	if c.RRFKVector <= 0 || c.RRFKLexical <= 0 {
		problems = append(problems, "RRF_K_VECTOR and RRF_K_LEXICAL must be positive")
	}
	if c.FusionCap <= 0 {
		problems = append(problems, "FUSION_CAP must be positive")
	}
	if c.DefaultResults <= 0 || c.MaxResults <= 0 {
		problems = append(problems, "DEFAULT_RESULTS and MAX_RESULTS must be positive")
	}
	if c.DedupThreshold < 0 || c.DedupThreshold > 100 {
		problems = append(problems, "DEDUP_THRESHOLD must be within 0..100")
	}
	if c.EmbeddingDim <= 0 {
		problems = append(problems, "EMBEDDING_DIM must be positive")
	}

	if len(problems) == 0 {
		return nil
	}
	return domain.WrapError(domain.ErrConfiguration, "validate config", fmt.Errorf("%s", strings.Join(problems, "; ")))
}

// ValidateWorker checks the settings the search-log worker depends on.
func (c Config) ValidateWorker() error {
	var problems []string
	if strings.TrimSpace(c.PostgresDSN) == "" {
		problems = append(problems, "POSTGRES_DSN is required for the search log")
	}
	if strings.TrimSpace(c.NATSURL) == "" {
		problems = append(problems, "NATS_URL is required for the search log worker")
	}
	if len(problems) == 0 {
		return nil
	}
	return domain.WrapError(domain.ErrConfiguration, "validate worker config", fmt.Errorf("%s", strings.Join(problems, "; ")))
}

func loadFile(path string) (map[string]string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "read config file", err)
	}
	var values map[string]any
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "parse config file", err)
	}
	out := make(map[string]string, len(values))
	for key, value := range values {
		if value == nil {
			continue
		}
		out[strings.ToUpper(strings.TrimSpace(key))] = fmt.Sprint(value)
	}
	return out, nil
}

type env struct {
	file map[string]string
}

func (e env) lookup(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return e.file[key]
}

func (e env) mustEnv(key, fallback string) string {
	v := strings.TrimSpace(e.lookup(key))
	if v == "" {
		return fallback
	}
	return v
}

// mustEnvRaw keeps surrounding whitespace, which matters for prompt prefixes.
func (e env) mustEnvRaw(key, fallback string) string {
	v := e.lookup(key)
	if v == "" {
		return fallback
	}
	return v
}

func (e env) mustEnvInt(key string, fallback int) int {
	v := e.mustEnv(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func (e env) mustEnvBool(key string, fallback bool) bool {
	v := e.mustEnv(key, "")
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func (e env) mustEnvFloat(key string, fallback float64) float64 {
	v := e.mustEnv(key, "")
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
