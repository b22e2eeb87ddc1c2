// Package aggregator fans a query out to every shard server, merges the
// per-shard rankings into a single top-K list, and enriches the winners with
// document metadata.
package aggregator

import (
	"container/heap"
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/justinsudev/wikisearch/internal/engine"
	"github.com/justinsudev/wikisearch/internal/metadata"
	"github.com/justinsudev/wikisearch/internal/shardapi"
	"github.com/justinsudev/wikisearch/pkg/metrics"
)

// SearchHit is one merged, metadata-enriched result.
type SearchHit struct {
	DocID   int     `json:"docid"`
	Score   float64 `json:"score"`
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Summary string  `json:"summary"`
}

// Result is the aggregator's reply to one search request.
type Result struct {
	Query             string      `json:"q"`
	Weight            float64     `json:"w"`
	SearchMode        string      `json:"search_mode"`
	SemanticAvailable bool        `json:"semantic_available"`
	Hits              []SearchHit `json:"hits"`
	ShardFailures     int         `json:"-"`
}

// Aggregator performs the scatter-gather search across shard servers.
type Aggregator struct {
	clients []*ShardClient
	docs    metadata.Store
	topK    int
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates an Aggregator over the given shard clients. docs may be nil, in
// which case hits carry empty metadata.
func New(clients []*ShardClient, docs metadata.Store, topK int, m *metrics.Metrics) *Aggregator {
	if topK <= 0 {
		topK = 10
	}
	return &Aggregator{
		clients: clients,
		docs:    docs,
		topK:    topK,
		metrics: m,
		logger:  slog.Default().With("component", "aggregator"),
	}
}

// Search broadcasts the query to every shard concurrently and blocks until
// all shards respond or time out. A shard that fails or times out contributes
// zero hits; the query itself never fails on shard errors.
func (a *Aggregator) Search(ctx context.Context, query string, weight float64, mode string) (*Result, error) {
	responses := make([]shardapi.HitsResponse, len(a.clients))
	failed := make([]bool, len(a.clients))

	var wg sync.WaitGroup
	for i, client := range a.clients {
		wg.Add(1)
		go func(i int, client *ShardClient) {
			defer wg.Done()
			resp, err := client.Hits(ctx, query, weight, mode)
			if err != nil {
				failed[i] = true
				a.recordShardError(client, err)
				return
			}
			responses[i] = resp
			if a.metrics != nil {
				a.metrics.ShardRequestsTotal.WithLabelValues(client.URL(), "ok").Inc()
			}
		}(i, client)
	}
	wg.Wait()

	result := &Result{
		Query:      query,
		Weight:     weight,
		SearchMode: mode,
		Hits:       []SearchHit{},
	}
	var shardHits [][]engine.Hit
	for i, resp := range responses {
		if failed[i] {
			result.ShardFailures++
			continue
		}
		shardHits = append(shardHits, resp.Hits)
		result.SemanticAvailable = result.SemanticAvailable || resp.SemanticAvailable
		if resp.SearchMode != "" {
			result.SearchMode = resp.SearchMode
		}
	}

	merged := mergeTopK(shardHits, a.topK)
	for _, hit := range merged {
		result.Hits = append(result.Hits, a.enrich(ctx, hit))
	}

	a.logger.Info("search aggregated",
		"query", query,
		"weight", weight,
		"mode", result.SearchMode,
		"shards", len(a.clients),
		"shard_failures", result.ShardFailures,
		"hits", len(result.Hits),
	)
	return result, nil
}

func (a *Aggregator) recordShardError(client *ShardClient, err error) {
	outcome := "error"
	if errors.Is(err, context.DeadlineExceeded) {
		outcome = "timeout"
		if a.metrics != nil {
			a.metrics.ShardTimeoutsTotal.Inc()
		}
	}
	if a.metrics != nil {
		a.metrics.ShardRequestsTotal.WithLabelValues(client.URL(), outcome).Inc()
	}
	a.logger.Warn("shard call failed", "shard", client.URL(), "outcome", outcome, "error", err)
}

// enrich attaches document metadata to a ranked hit. Lookup failures degrade
// to empty metadata so a metadata outage never hides a relevant result.
func (a *Aggregator) enrich(ctx context.Context, hit engine.Hit) SearchHit {
	enriched := SearchHit{DocID: hit.DocID, Score: hit.Score}
	if a.docs == nil {
		return enriched
	}
	meta, err := a.docs.GetDoc(ctx, hit.DocID)
	if err != nil {
		a.logger.Warn("metadata lookup failed", "docid", hit.DocID, "error", err)
		return enriched
	}
	enriched.Title = meta.Title
	enriched.URL = meta.URL
	enriched.Summary = meta.Summary
	return enriched
}

// mergeTopK keeps the k best hits across all shard rankings using a min-heap.
// Ties are broken by ascending docid, matching the per-shard ordering.
func mergeTopK(shardHits [][]engine.Hit, k int) []engine.Hit {
	h := &hitHeap{}
	heap.Init(h)
	for _, hits := range shardHits {
		for _, hit := range hits {
			heap.Push(h, hit)
			if h.Len() > k {
				heap.Pop(h)
			}
		}
	}

	merged := make([]engine.Hit, h.Len())
	for i := h.Len() - 1; i >= 0; i-- {
		merged[i] = heap.Pop(h).(engine.Hit)
	}
	return merged
}

// hitHeap is a min-heap: the weakest hit (lowest score, then highest docid)
// sits at the root so it is the one evicted when the heap overflows k.
type hitHeap []engine.Hit

func (h hitHeap) Len() int { return len(h) }
func (h hitHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	return h[i].DocID > h[j].DocID
}
func (h hitHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *hitHeap) Push(x any) {
	*h = append(*h, x.(engine.Hit))
}

func (h *hitHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
