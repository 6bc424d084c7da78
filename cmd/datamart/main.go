package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/meridian-data/datamart/internal/catalog"
	"github.com/meridian-data/datamart/internal/config"
	"github.com/meridian-data/datamart/internal/db"
	dbRedis "github.com/meridian-data/datamart/internal/db/redis"
	"github.com/meridian-data/datamart/internal/domain"
	logpkg "github.com/meridian-data/datamart/internal/logger"
	"github.com/meridian-data/datamart/internal/metrics"
	assetrepo "github.com/meridian-data/datamart/internal/repository/asset"
	"github.com/meridian-data/datamart/internal/repository/contentindex"
	datasourcerepo "github.com/meridian-data/datamart/internal/repository/datasource"
	"github.com/meridian-data/datamart/internal/repository/embcache"
	peoplerepo "github.com/meridian-data/datamart/internal/repository/people"
	chiTransport "github.com/meridian-data/datamart/internal/transport/chi"
	openaiTransport "github.com/meridian-data/datamart/internal/transport/openai"
	chatuc "github.com/meridian-data/datamart/internal/usecase/chat"
	embeddinguc "github.com/meridian-data/datamart/internal/usecase/embedding"
	healthuc "github.com/meridian-data/datamart/internal/usecase/health"
	indexeruc "github.com/meridian-data/datamart/internal/usecase/indexer"
	queryuc "github.com/meridian-data/datamart/internal/usecase/query"
	searchuc "github.com/meridian-data/datamart/internal/usecase/search"
	"github.com/meridian-data/datamart/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting datamart API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("catalog_driver", cfg.Catalog.Driver),
		zap.Strings("vector_addrs", cfg.Vector.Addrs),
	)

	ctx := context.Background()

	// Relational catalog store
	catalogStore, err := catalog.Open(catalog.Config{
		Driver: cfg.Catalog.Driver,
		DSN:    cfg.Catalog.DSN,
	})
	if err != nil {
		logger.Fatal("Failed to open catalog store", zap.Error(err))
	}
	defer catalogStore.Close()

	if err := catalogStore.WaitForReady(ctx, time.Duration(cfg.Catalog.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Catalog store not ready", zap.Error(err))
	}
	if err := catalogStore.Bootstrap(ctx); err != nil {
		logger.Fatal("Failed to bootstrap catalog schema", zap.Error(err))
	}
	logger.Info("Connected to catalog store", zap.String("driver", catalogStore.Driver()))

	// Vector store
	vectorStore, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Vector.Addrs,
		Password: cfg.Vector.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create vector store", zap.Error(err))
	}
	defer vectorStore.Close()

	if err := vectorStore.WaitForReady(ctx, time.Duration(cfg.Vector.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Vector store not ready", zap.Error(err))
	}
	logger.Info("Connected to vector store")

	// Register metrics explicitly (no init())
	metrics.Register()

	// Build embedder chain, taking the first vectorizer config
	var vecCfg config.VectorizerConfig
	var provName string
	for _, vc := range cfg.Embedding.Vectorizers {
		vecCfg = vc
		provName = vc.Provider
		break
	}
	provCfg := cfg.Embedding.Providers[provName]

	docEmbedder := buildEmbedder(provName, provCfg, vecCfg, vecCfg.DocumentInstruction, vectorStore, logger)
	queryEmbedder := buildEmbedder(provName, provCfg, vecCfg, vecCfg.QueryInstruction, vectorStore, logger)
	logger.Info("Embedders created",
		zap.String("provider", provName),
		zap.String("model", vecCfg.Model),
		zap.Int("dimensions", vecCfg.Dimensions),
	)

	batchEmbedder, ok := docEmbedder.(domain.BatchEmbedder)
	if !ok {
		logger.Fatal("Document embedder does not support batch embedding")
	}

	vectorDim := vecCfg.Dimensions
	if vectorDim == 0 {
		vectorDim = domain.DefaultVectorConfig().Dimensions
	}

	// Repositories
	contentRepo := contentindex.New(vectorStore, vectorDim).
		WithHNSW(cfg.Index.HNSWM, cfg.Index.HNSWEFConstruct)
	dsRepo := datasourcerepo.New(catalogStore)
	pplRepo := peoplerepo.New(catalogStore)
	astRepo := assetrepo.New(catalogStore)

	// Use case services
	searchSvc := searchuc.New(contentRepo, queryEmbedder, logger).
		WithDefaults(cfg.Search.Limit, cfg.Search.Threshold)
	querySvc := queryuc.New(dsRepo, pplRepo, astRepo, logger).
		WithFuzzyPolicy(queryuc.FuzzyPolicy{
			Threshold: cfg.Fuzzy.Threshold,
			TopN:      cfg.Fuzzy.TopN,
		})
	indexerSvc := indexeruc.New(dsRepo, pplRepo, astRepo, batchEmbedder, contentRepo, logger)

	// Chat orchestration is enabled only with a completion credential.
	var chatSvc *chatuc.Service
	if cfg.Completion.APIKey != "" {
		completionClient := openaiTransport.NewCompletionClient(&openaiTransport.CompletionConfig{
			APIKey:      cfg.Completion.APIKey,
			BaseURL:     cfg.Completion.BaseURL,
			Model:       cfg.Completion.Model,
			Temperature: cfg.Completion.Temperature,
			Logger:      logger,
		})
		chatSvc = chatuc.New(completionClient, searchSvc, querySvc, logger).
			WithMaxToolRounds(cfg.Completion.MaxToolRounds)
		logger.Info("Chat orchestrator enabled", zap.String("model", cfg.Completion.Model))
	} else {
		logger.Warn("No completion credential configured, chat endpoint disabled")
	}

	healthSvc := healthuc.New(catalogStore, vectorStore, newEmbeddingHealthChecker(docEmbedder))

	server := chiTransport.NewServer(chatSvc, searchSvc, querySvc, indexerSvc, healthSvc, logger).
		WithChatRateLimit(cfg.HTTP.ChatRPS, cfg.HTTP.ChatBurst)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	r.Mount("/", server.Router())

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction
func buildEmbedder(
	provName string,
	provCfg config.ProviderConfig,
	vecCfg config.VectorizerConfig,
	instruction string,
	store db.Store,
	logger *zap.Logger,
) domain.Embedder {
	// Base provider (with transport metrics built-in)
	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     provCfg.APIKey,
		BaseURL:    provCfg.BaseURL,
		Model:      vecCfg.Model,
		Dimensions: vecCfg.Dimensions,
		Provider:   provName,
		Logger:     logger,
	})

	// Cached
	var embedder domain.Embedder = base
	if store != nil {
		embedder = embcache.New(base, store, metrics.EmbeddingCacheTotal, logger)
	}

	// Instrumented (metrics + logging)
	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, provName, vecCfg.Model, logger)

	// Instruction prefix (outermost so the cache key includes the instruction)
	if instruction != "" {
		return domain.NewInstructionEmbedder(embedder, instruction)
	}

	return embedder
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
