package aggregator

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/justinsudev/wikisearch/internal/analytics"
	apperrors "github.com/justinsudev/wikisearch/pkg/errors"
	"github.com/justinsudev/wikisearch/pkg/logger"
	"github.com/justinsudev/wikisearch/pkg/metrics"
	"github.com/justinsudev/wikisearch/pkg/middleware"
)

const defaultWeight = 0.5

// Handler serves the aggregated search API.
type Handler struct {
	aggregator *Aggregator
	cache      *QueryCache
	collector  *analytics.Collector
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewHandler creates the search handler. cache and collector may be nil.
func NewHandler(agg *Aggregator, cache *QueryCache, collector *analytics.Collector, m *metrics.Metrics) *Handler {
	return &Handler{
		aggregator: agg,
		cache:      cache,
		collector:  collector,
		metrics:    m,
		logger:     slog.Default().With("component", "search-handler"),
	}
}

// Services handles GET /api/v1/ and lists the available endpoints.
func (h *Handler) Services(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"search": "/api/v1/search/",
		"url":    "/api/v1/",
	})
}

// Search handles GET /api/v1/search/?q=<query>&w=<weight>&semantic=<mode>.
//
// A missing query returns an empty result echoing the parameters; a malformed
// or out-of-range weight falls back to defaultWeight.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")

	weight := defaultWeight
	if ws := r.URL.Query().Get("w"); ws != "" {
		parsed, err := strconv.ParseFloat(ws, 64)
		if err != nil || parsed < 0 || parsed > 1 {
			parsed = defaultWeight
		}
		weight = parsed
	}
	mode := r.URL.Query().Get("semantic")
	if mode == "" {
		mode = "traditional"
	}

	if query == "" {
		h.writeJSON(w, http.StatusOK, &Result{
			Query:      query,
			Weight:     weight,
			SearchMode: mode,
			Hits:       []SearchHit{},
		})
		return
	}

	var result *Result
	var err error
	cacheHit := false

	if h.cache != nil {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, query, weight, mode, func() (*Result, error) {
			return h.aggregator.Search(ctx, query, weight, mode)
		})
	} else {
		result, err = h.aggregator.Search(ctx, query, weight, mode)
	}
	if err != nil {
		log.Error("search failed", "query", query, "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), "search failed")
		return
	}

	latency := time.Since(start)
	cacheStatus := "miss"
	if cacheHit {
		cacheStatus = "hit"
	}
	if h.metrics != nil {
		h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
		if cacheHit {
			h.metrics.CacheHitsTotal.Inc()
		} else {
			h.metrics.CacheMissesTotal.Inc()
		}
	}

	log.Info("search completed",
		"query", query,
		"weight", weight,
		"mode", result.SearchMode,
		"hits", len(result.Hits),
		"shard_failures", result.ShardFailures,
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)

	if h.collector != nil {
		eventType := analytics.EventSearch
		if len(result.Hits) == 0 {
			eventType = analytics.EventZeroResult
		}
		h.collector.Track(analytics.SearchEvent{
			Type:              eventType,
			Query:             query,
			Weight:            weight,
			SearchMode:        result.SearchMode,
			Returned:          len(result.Hits),
			ShardCount:        len(h.aggregator.clients),
			ShardFailures:     result.ShardFailures,
			SemanticAvailable: result.SemanticAvailable,
			CacheHit:          cacheHit,
			LatencyMs:         latency.Milliseconds(),
			Timestamp:         time.Now().UTC(),
			RequestID:         middleware.GetRequestID(ctx),
		})
	}

	h.writeJSON(w, http.StatusOK, result)
}

// CacheStats handles GET /api/v1/cache/stats/.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

// CacheInvalidate handles POST /api/v1/cache/invalidate/.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
