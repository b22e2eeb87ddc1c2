// Command shardserver serves ranked hits for one index shard. It loads the
// shard's inverted index into memory, answers /api/v1/hits/ queries, and
// reloads the index when a new generation is announced on Kafka.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/justinsudev/wikisearch/internal/engine"
	"github.com/justinsudev/wikisearch/internal/shardapi"
	"github.com/justinsudev/wikisearch/pkg/config"
	"github.com/justinsudev/wikisearch/pkg/health"
	"github.com/justinsudev/wikisearch/pkg/kafka"
	"github.com/justinsudev/wikisearch/pkg/logger"
	"github.com/justinsudev/wikisearch/pkg/metrics"
	"github.com/justinsudev/wikisearch/pkg/middleware"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting shard server",
		"port", cfg.Server.Port,
		"shard_id", cfg.Index.ShardID,
		"shard_count", cfg.Index.ShardCount,
	)

	m := metrics.New()

	var embedder engine.Embedder
	if cfg.Index.EmbedderURL != "" {
		embedder = engine.NewHTTPEmbedder(cfg.Index.EmbedderURL)
		slog.Info("embedding service configured", "url", cfg.Index.EmbedderURL)
	}

	eng, err := engine.New(cfg.Index, embedder, m)
	if err != nil {
		slog.Error("failed to load shard index", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Reload on index.complete announcements from the offline indexer.
	reloadConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete,
		func(ctx context.Context, key, value []byte) error {
			slog.Info("index completion received, reloading shard")
			return eng.Reload()
		})
	go func() {
		if err := reloadConsumer.Start(ctx); err != nil && ctx.Err() == nil {
			slog.Error("reload consumer stopped", "error", err)
		}
	}()
	defer reloadConsumer.Close()

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		snap := eng.Snapshot()
		if snap == nil || snap.Index.Terms() == 0 {
			return health.ComponentHealth{Status: health.StatusDown, Message: "index not loaded"}
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d terms loaded", snap.Index.Terms()),
		}
	})
	checker.Register("semantic", func(ctx context.Context) health.ComponentHealth {
		if eng.SemanticAvailable() {
			return health.ComponentHealth{Status: health.StatusUp}
		}
		return health.ComponentHealth{Status: health.StatusDegraded, Message: "traditional scoring only"}
	})

	h := shardapi.New(eng, m)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/", h.Services)
	mux.HandleFunc("GET /api/v1/hits/", h.Hits)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	if cfg.Metrics.Enabled {
		mux.Handle("GET /metrics", metrics.Handler())
	}

	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("shard server listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("shard server stopped")
}
