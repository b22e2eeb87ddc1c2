// Package engine implements the per-shard query engine: it holds the loaded
// index snapshot, ranks documents for incoming queries, and supports atomic
// reloads when a new index generation is published.
package engine

import (
	"context"
	"log/slog"
	"sort"
	"sync/atomic"

	"github.com/justinsudev/wikisearch/internal/index"
	"github.com/justinsudev/wikisearch/internal/tokenizer"
	"github.com/justinsudev/wikisearch/pkg/config"
	"github.com/justinsudev/wikisearch/pkg/metrics"
)

// maxHits caps the number of hits a single shard returns for one query.
const maxHits = 10

// Engine answers ranked queries against one shard's snapshot. The snapshot
// pointer is swapped atomically on reload, so queries never block behind a
// reload and never observe a half-loaded index.
type Engine struct {
	cfg      config.IndexConfig
	snap     atomic.Pointer[index.Snapshot]
	scorers  map[Mode]Scorer
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New loads the shard's initial snapshot and returns a ready Engine. embedder
// may be nil, in which case semantic and hybrid queries fall back to
// traditional scoring.
func New(cfg config.IndexConfig, embedder Embedder, m *metrics.Metrics) (*Engine, error) {
	snap, err := index.LoadSnapshot(cfg)
	if err != nil {
		return nil, err
	}

	sem := &semanticScorer{embedder: embedder}
	e := &Engine{
		cfg: cfg,
		scorers: map[Mode]Scorer{
			ModeTraditional: tfidfScorer{},
			ModeSemantic:    sem,
			ModeHybrid:      &hybridScorer{semantic: sem},
		},
		metrics: m,
		logger:  slog.Default().With("component", "engine", "shard_id", cfg.ShardID),
	}
	e.snap.Store(snap)
	if m != nil {
		m.IndexTermCount.Set(float64(snap.Index.Terms()))
	}
	return e, nil
}

// Snapshot returns the currently loaded snapshot.
func (e *Engine) Snapshot() *index.Snapshot {
	return e.snap.Load()
}

// SemanticAvailable reports whether semantic scoring can serve queries right
// now.
func (e *Engine) SemanticAvailable() bool {
	return e.scorers[ModeSemantic].Available(e.snap.Load())
}

// Reload builds a fresh snapshot from disk and swaps it in. On failure the
// previous snapshot stays live.
func (e *Engine) Reload() error {
	snap, err := index.LoadSnapshot(e.cfg)
	if err != nil {
		if e.metrics != nil {
			e.metrics.IndexReloadsTotal.WithLabelValues("error").Inc()
		}
		e.logger.Error("index reload failed, keeping previous snapshot", "error", err)
		return err
	}
	e.snap.Store(snap)
	if e.metrics != nil {
		e.metrics.IndexReloadsTotal.WithLabelValues("success").Inc()
		e.metrics.IndexTermCount.Set(float64(snap.Index.Terms()))
	}
	e.logger.Info("index reloaded", "terms", snap.Index.Terms())
	return nil
}

// Search tokenizes raw and ranks documents under the requested mode. When the
// requested scorer is unavailable it falls back to traditional scoring; the
// Mode actually used is returned alongside the hits. Results are sorted by
// descending score with ascending docid breaking ties, capped at maxHits.
func (e *Engine) Search(ctx context.Context, raw string, weight float64, mode Mode) ([]Hit, Mode, error) {
	snap := e.snap.Load()
	q := Query{
		Raw:    raw,
		Terms:  tokenizer.Tokenize(raw, snap.Stopwords),
		Weight: weight,
	}

	scorer := e.scorers[mode]
	if !scorer.Available(snap) {
		e.logger.Debug("scorer unavailable, falling back", "requested_mode", string(mode))
		mode = ModeTraditional
		scorer = e.scorers[mode]
	}

	hits, err := scorer.Score(ctx, snap, q)
	if err != nil {
		return nil, mode, err
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].DocID < hits[j].DocID
	})
	if len(hits) > maxHits {
		hits = hits[:maxHits]
	}
	return hits, mode, nil
}
