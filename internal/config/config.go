// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database connections, storage and model
// providers, the indexing pipeline, rate limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// StorageConfig selects and configures the document storage backend.
type StorageConfig struct {
	Backend string // STORAGE_BACKEND: minio|memory

	MinIOEndpoint  string // MINIO_ENDPOINT (host:port)
	MinIOAccessKey string // MINIO_ACCESS_KEY
	MinIOSecretKey string // MINIO_SECRET_KEY
	MinIOSecure    bool   // MINIO_SECURE
}

// AIConfig configures the embedding, rerank, and chat model endpoints.
type AIConfig struct {
	APIKey  string // AI_API_KEY
	BaseURL string // AI_BASE_URL ("" for the public OpenAI API)

	EmbedModel string // EMBED_MODEL
	ChatModel  string // CHAT_MODEL

	RerankEndpoint string        // RERANK_ENDPOINT (Cohere-compatible /rerank URL)
	RerankAPIKey   string        // RERANK_API_KEY
	RerankModel    string        // RERANK_MODEL
	RerankTimeout  time.Duration // RERANK_TIMEOUT
}

// IndexConfig tunes the background indexing pipeline.
type IndexConfig struct {
	Workers      int           // INDEX_WORKERS
	PollInterval time.Duration // INDEX_POLL_INTERVAL
	ClaimBatch   int           // INDEX_CLAIM_BATCH
	RetryMax     int           // INDEX_RETRY_MAX
	RetryBackoff time.Duration // INDEX_RETRY_BACKOFF (base; grows linearly per attempt)
	StaleAfter   time.Duration // INDEX_STALE_AFTER (crashed-run sweep threshold)

	ChunkSize    int // CHUNK_SIZE (target characters per chunk)
	ChunkOverlap int // CHUNK_OVERLAP (characters repeated between chunks)
}

// RetrievalConfig tunes the two-stage retrieval.
type RetrievalConfig struct {
	TopK         int // RETRIEVE_TOP_K (stage-1 vector recall)
	TopN         int // RERANK_TOP_N (stage-2 rerank keep)
	HistoryLimit int // CHAT_HISTORY_LIMIT (prior turns passed to the model)
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-chat-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// App
	DBDSN string // Postgres DSN or SQLite path

	// Providers & pipeline
	Storage   StorageConfig
	AI        AIConfig
	Index     IndexConfig
	Retrieval RetrievalConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DBDSN: getenv("DB_DSN", "app.db"),

		// Providers & pipeline
		Storage: StorageConfig{
			Backend:        strings.ToLower(getenv("STORAGE_BACKEND", "minio")),
			MinIOEndpoint:  getenv("MINIO_ENDPOINT", "localhost:9000"),
			MinIOAccessKey: getenv("MINIO_ACCESS_KEY", ""),
			MinIOSecretKey: getenv("MINIO_SECRET_KEY", ""),
			MinIOSecure:    getbool("MINIO_SECURE", false),
		},
		AI: AIConfig{
			APIKey:         getenv("AI_API_KEY", ""),
			BaseURL:        getenv("AI_BASE_URL", ""),
			EmbedModel:     getenv("EMBED_MODEL", "text-embedding-3-small"),
			ChatModel:      getenv("CHAT_MODEL", "gpt-4o-mini"),
			RerankEndpoint: getenv("RERANK_ENDPOINT", ""),
			RerankAPIKey:   getenv("RERANK_API_KEY", ""),
			RerankModel:    getenv("RERANK_MODEL", "rerank-v3.5"),
			RerankTimeout:  getdur("RERANK_TIMEOUT", 10*time.Second),
		},
		Index: IndexConfig{
			Workers:      getint("INDEX_WORKERS", 2),
			PollInterval: getdur("INDEX_POLL_INTERVAL", 500*time.Millisecond),
			ClaimBatch:   getint("INDEX_CLAIM_BATCH", 10),
			RetryMax:     getint("INDEX_RETRY_MAX", 3),
			RetryBackoff: getdur("INDEX_RETRY_BACKOFF", 30*time.Second),
			StaleAfter:   getdur("INDEX_STALE_AFTER", 30*time.Minute),
			ChunkSize:    getint("CHUNK_SIZE", 1200),
			ChunkOverlap: getint("CHUNK_OVERLAP", 150),
		},
		Retrieval: RetrievalConfig{
			TopK:         getint("RETRIEVE_TOP_K", 20),
			TopN:         getint("RERANK_TOP_N", 5),
			HistoryLimit: getint("CHAT_HISTORY_LIMIT", 20),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-chat-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBDSN) == "" {
		return cfg, errors.New("DB_DSN must not be empty")
	}
	switch cfg.Storage.Backend {
	case "minio", "memory":
	default:
		return cfg, errors.New("STORAGE_BACKEND must be one of: minio, memory")
	}
	if cfg.Storage.Backend == "minio" && strings.TrimSpace(cfg.Storage.MinIOEndpoint) == "" {
		return cfg, errors.New("MINIO_ENDPOINT must not be empty")
	}
	if strings.TrimSpace(cfg.AI.EmbedModel) == "" || strings.TrimSpace(cfg.AI.ChatModel) == "" {
		return cfg, errors.New("EMBED_MODEL and CHAT_MODEL must not be empty")
	}
	if cfg.AI.RerankTimeout <= 0 {
		return cfg, errors.New("RERANK_TIMEOUT must be > 0")
	}
	if cfg.Index.Workers < 1 {
		return cfg, errors.New("INDEX_WORKERS must be >= 1")
	}
	if cfg.Index.PollInterval <= 0 || cfg.Index.RetryBackoff <= 0 || cfg.Index.StaleAfter <= 0 {
		return cfg, errors.New("indexer intervals must be positive durations")
	}
	if cfg.Index.ClaimBatch < 1 || cfg.Index.RetryMax < 0 {
		return cfg, errors.New("INDEX_CLAIM_BATCH must be >= 1 and INDEX_RETRY_MAX >= 0")
	}
	if cfg.Index.ChunkSize < 1 || cfg.Index.ChunkOverlap < 0 {
		return cfg, errors.New("CHUNK_SIZE must be >= 1 and CHUNK_OVERLAP >= 0")
	}
	if cfg.Retrieval.TopK < 1 || cfg.Retrieval.TopN < 1 || cfg.Retrieval.TopN > cfg.Retrieval.TopK {
		return cfg, errors.New("RETRIEVE_TOP_K and RERANK_TOP_N must be >= 1 with TOP_N <= TOP_K")
	}
	if cfg.Retrieval.HistoryLimit < 0 {
		return cfg, errors.New("CHAT_HISTORY_LIMIT must be >= 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}
	// if cfg.APIBasePath == "" || cfg.APIBasePath[0] != '/' {
	// 	return cfg, errors.New("API_BASE_PATH must start with '/'")
	// }

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
