// Command searchserver is the public search front end. It fans each query out
// to every shard server, merges the rankings, enriches hits with document
// metadata from PostgreSQL, and caches merged results in Redis.
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

	"github.com/justinsudev/wikisearch/internal/aggregator"
	"github.com/justinsudev/wikisearch/internal/analytics"
	"github.com/justinsudev/wikisearch/internal/metadata"
	"github.com/justinsudev/wikisearch/pkg/config"
	"github.com/justinsudev/wikisearch/pkg/health"
	"github.com/justinsudev/wikisearch/pkg/kafka"
	"github.com/justinsudev/wikisearch/pkg/logger"
	"github.com/justinsudev/wikisearch/pkg/metrics"
	"github.com/justinsudev/wikisearch/pkg/middleware"
	"github.com/justinsudev/wikisearch/pkg/postgres"
	pkgredis "github.com/justinsudev/wikisearch/pkg/redis"
	"github.com/justinsudev/wikisearch/pkg/resilience"
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
	slog.Info("starting search server", "port", cfg.Server.Port, "shards", len(cfg.Search.ShardURLs))

	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Document metadata store. The server still serves ranked docids when
	// PostgreSQL is down, just without titles and summaries.
	var docs metadata.Store
	var pgClient *postgres.Client
	err = resilience.Retry(ctx, "postgres-connect", resilience.RetryConfig{}, func() error {
		var connErr error
		pgClient, connErr = postgres.New(cfg.Postgres)
		return connErr
	})
	if err != nil {
		slog.Warn("postgres unavailable, serving results without metadata", "error", err)
	} else {
		defer pgClient.Close()
		docs = metadata.NewPostgresStore(pgClient)
		slog.Info("metadata store connected", "host", cfg.Postgres.Host, "db", cfg.Postgres.Database)
	}

	var queryCache *aggregator.QueryCache
	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, query caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		queryCache = aggregator.NewQueryCache(redisClient, cfg.Redis)
		slog.Info("query cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
	defer analyticsProducer.Close()
	collector := analytics.NewCollector(analyticsProducer, 10000)
	collector.Start(ctx)
	defer collector.Close()
	slog.Info("analytics collector started", "topic", cfg.Kafka.Topics.AnalyticsEvents)

	// Cached results go stale the moment shards load a new index generation.
	if queryCache != nil {
		invalidateConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete,
			func(ctx context.Context, key, value []byte) error {
				slog.Info("index completion received, invalidating query cache")
				return queryCache.Invalidate(ctx)
			})
		go func() {
			if err := invalidateConsumer.Start(ctx); err != nil && ctx.Err() == nil {
				slog.Error("cache invalidation consumer stopped", "error", err)
			}
		}()
		defer invalidateConsumer.Close()
	}

	clients := make([]*aggregator.ShardClient, 0, len(cfg.Search.ShardURLs))
	for _, shardURL := range cfg.Search.ShardURLs {
		clients = append(clients, aggregator.NewShardClient(shardURL, cfg.Search.ShardTimeout))
	}
	agg := aggregator.New(clients, docs, cfg.Search.TopK, m)
	h := aggregator.NewHandler(agg, queryCache, collector, m)

	checker := health.NewChecker()
	checker.Register("shards", func(ctx context.Context) health.ComponentHealth {
		open := 0
		for _, c := range clients {
			if c.State() == resilience.StateOpen {
				open++
			}
		}
		switch {
		case open == len(clients):
			return health.ComponentHealth{Status: health.StatusDown, Message: "all shard circuits open"}
		case open > 0:
			return health.ComponentHealth{
				Status:  health.StatusDegraded,
				Message: fmt.Sprintf("%d of %d shard circuits open", open, len(clients)),
			}
		default:
			return health.ComponentHealth{Status: health.StatusUp}
		}
	})
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if pgClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not connected"}
		}
		if err := pgClient.DB.PingContext(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/", h.Services)
	mux.HandleFunc("GET /api/v1/search/", h.Search)
	mux.HandleFunc("GET /api/v1/cache/stats/", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate/", h.CacheInvalidate)
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

	slog.Info("search server listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("search server stopped")
}
