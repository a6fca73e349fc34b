// Command server runs the document chat backend: REST + SSE API, the
// background indexing workers, and the retrieval pipeline, all wired from
// environment configuration.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/docgrove/go-docchat-backend/docs"
	"github.com/docgrove/go-docchat-backend/internal/answer"
	"github.com/docgrove/go-docchat-backend/internal/chunker"
	"github.com/docgrove/go-docchat-backend/internal/config"
	httpapi "github.com/docgrove/go-docchat-backend/internal/http"
	"github.com/docgrove/go-docchat-backend/internal/indexer"
	"github.com/docgrove/go-docchat-backend/internal/observability"
	"github.com/docgrove/go-docchat-backend/internal/provider/ai"
	"github.com/docgrove/go-docchat-backend/internal/provider/storage"
	"github.com/docgrove/go-docchat-backend/internal/repo"
	"github.com/docgrove/go-docchat-backend/internal/retrieval"
	"github.com/docgrove/go-docchat-backend/internal/sysutil"
)

// @title           DocGrove Chat API
// @version         1.0
// @description     Chat over your documents: register storage folders, let the indexer chunk and embed them, then ask questions and stream grounded, citation-annotated answers.
// @BasePath        /api/v1
//
// @tag.name        Folders
// @tag.description Register and manage indexed document folders
// @tag.name        Chat
// @tag.description Streaming question answering over a folder
// @tag.name        Conversations
// @tag.description Conversation threads and message history
func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	version := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), "dev")
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownOTel(shutCtx)
	}()

	db, err := repo.Open(cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Str("dsn", cfg.DBDSN).Msg("database open failed")
	}
	if cfg.OTEL.Enabled {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			log.Fatal().Err(err).Msg("gorm tracing plugin failed")
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("schema migration failed")
	}

	var store storage.Provider
	switch cfg.Storage.Backend {
	case "memory":
		store = storage.NewMemory()
	default:
		store, err = storage.NewMinIO(ctx, storage.MinIOConfig{
			Endpoint:  cfg.Storage.MinIOEndpoint,
			AccessKey: cfg.Storage.MinIOAccessKey,
			SecretKey: cfg.Storage.MinIOSecretKey,
			Secure:    cfg.Storage.MinIOSecure,
		})
		if err != nil {
			log.Fatal().Err(err).Str("endpoint", cfg.Storage.MinIOEndpoint).Msg("object store connection failed")
		}
	}

	embedder := ai.NewOpenAIEmbedder(cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.EmbedModel)
	reranker := ai.NewCohereReranker(cfg.AI.RerankEndpoint, cfg.AI.RerankAPIKey, cfg.AI.RerankModel, cfg.AI.RerankTimeout)
	chatModel := ai.NewOpenAIChat(cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.ChatModel)

	split := chunker.New(cfg.Index.ChunkSize, cfg.Index.ChunkOverlap)
	ix := indexer.New(db, store, embedder, split, indexer.Config{
		Workers:      cfg.Index.Workers,
		PollInterval: cfg.Index.PollInterval,
		ClaimBatch:   cfg.Index.ClaimBatch,
		RetryMax:     cfg.Index.RetryMax,
		RetryBackoff: cfg.Index.RetryBackoff,
		StaleAfter:   cfg.Index.StaleAfter,
	}, log.Logger)
	go func() {
		if err := ix.Start(ctx); err != nil {
			log.Error().Err(err).Msg("indexer stopped")
		}
	}()

	retriever := retrieval.New(db, embedder, reranker, retrieval.Config{
		TopK: cfg.Retrieval.TopK,
		TopN: cfg.Retrieval.TopN,
	}, log.Logger)
	generator := answer.New(chatModel, log.Logger)

	r := gin.New()
	// Compress JSON responses; the SSE chat stream stays uncompressed so
	// tokens flush to the client as they arrive.
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{cfg.APIBasePath + "/chat"})))
	httpapi.RegisterRoutes(r, httpapi.NewDeps(db, retriever, generator, cfg), cfg)

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		docs.SwaggerInfo.Version = version
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		// Bounds a complete SSE stream, not just the first byte. Raise
		// WRITE_TIMEOUT for very long answers.
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
		_ = srv.Close()
	}
}
