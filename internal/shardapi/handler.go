// Package shardapi exposes one shard's query engine over HTTP.
package shardapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/justinsudev/wikisearch/internal/engine"
	apperrors "github.com/justinsudev/wikisearch/pkg/errors"
	"github.com/justinsudev/wikisearch/pkg/logger"
	"github.com/justinsudev/wikisearch/pkg/metrics"
)

// defaultWeight is the PageRank weight used when w is missing or malformed.
const defaultWeight = 0.5

// HitsResponse is the shard's reply to a hits query.
type HitsResponse struct {
	Hits              []engine.Hit `json:"hits"`
	SearchMode        string       `json:"search_mode"`
	SemanticAvailable bool         `json:"semantic_available"`
}

type Handler struct {
	engine  *engine.Engine
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(eng *engine.Engine, m *metrics.Metrics) *Handler {
	return &Handler{
		engine:  eng,
		metrics: m,
		logger:  slog.Default().With("component", "shard-handler"),
	}
}

// Services handles GET /api/v1/ and lists the available endpoints.
func (h *Handler) Services(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"hits": "/api/v1/hits/",
		"url":  "/api/v1/",
	})
}

// Hits handles GET /api/v1/hits/?q=<query>&w=<weight>&semantic=<mode>.
//
// A missing query returns an empty hit list rather than an error; a malformed
// or out-of-range weight falls back to defaultWeight; an unrecognized mode
// falls back to traditional scoring.
func (h *Handler) Hits(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeJSON(w, http.StatusOK, HitsResponse{
			Hits:              []engine.Hit{},
			SearchMode:        string(engine.ModeTraditional),
			SemanticAvailable: h.engine.SemanticAvailable(),
		})
		return
	}

	weight := defaultWeight
	if ws := r.URL.Query().Get("w"); ws != "" {
		parsed, err := strconv.ParseFloat(ws, 64)
		if err != nil || parsed < 0 || parsed > 1 {
			parsed = defaultWeight
		}
		weight = parsed
	}

	mode := engine.ParseMode(r.URL.Query().Get("semantic"))

	hits, usedMode, err := h.engine.Search(ctx, query, weight, mode)
	if err != nil {
		log.Error("shard search failed", "query", query, "mode", string(mode), "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), "search failed")
		return
	}
	if hits == nil {
		hits = []engine.Hit{}
	}

	if h.metrics != nil {
		h.metrics.SearchQueriesTotal.WithLabelValues(string(usedMode)).Inc()
	}
	log.Info("shard search completed",
		"query", query,
		"mode", string(usedMode),
		"weight", weight,
		"hits", len(hits),
		"latency_ms", time.Since(start).Milliseconds(),
	)

	h.writeJSON(w, http.StatusOK, HitsResponse{
		Hits:              hits,
		SearchMode:        string(usedMode),
		SemanticAvailable: h.engine.SemanticAvailable(),
	})
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
