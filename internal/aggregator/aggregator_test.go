package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/justinsudev/wikisearch/internal/engine"
	"github.com/justinsudev/wikisearch/internal/metadata"
	"github.com/justinsudev/wikisearch/internal/shardapi"
)

// fakeMetaStore serves canned metadata and records lookups.
type fakeMetaStore struct {
	docs    map[int]metadata.DocMeta
	failure error
}

func (f *fakeMetaStore) GetDoc(ctx context.Context, docID int) (metadata.DocMeta, error) {
	if f.failure != nil {
		return metadata.DocMeta{}, f.failure
	}
	return f.docs[docID], nil
}

func shardServer(t *testing.T, resp shardapi.HitsResponse) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func slowShardServer(t *testing.T, delay time.Duration) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(delay)
		json.NewEncoder(w).Encode(shardapi.HitsResponse{Hits: []engine.Hit{{DocID: 99, Score: 1.0}}})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func clientsFor(timeout time.Duration, servers ...*httptest.Server) []*ShardClient {
	clients := make([]*ShardClient, len(servers))
	for i, srv := range servers {
		clients[i] = NewShardClient(srv.URL+"/api/v1/hits/", timeout)
	}
	return clients
}

func TestSearchMergesShardRankings(t *testing.T) {
	s0 := shardServer(t, shardapi.HitsResponse{
		Hits:       []engine.Hit{{DocID: 3, Score: 0.9}, {DocID: 6, Score: 0.2}},
		SearchMode: "traditional",
	})
	s1 := shardServer(t, shardapi.HitsResponse{
		Hits:       []engine.Hit{{DocID: 4, Score: 0.5}},
		SearchMode: "traditional",
	})

	agg := New(clientsFor(time.Second, s0, s1), nil, 10, nil)
	result, err := agg.Search(context.Background(), "water", 0.5, "traditional")
	if err != nil {
		t.Fatal(err)
	}

	want := []int{3, 4, 6}
	if len(result.Hits) != len(want) {
		t.Fatalf("hits = %+v, want %d merged", result.Hits, len(want))
	}
	for i, docID := range want {
		if result.Hits[i].DocID != docID {
			t.Errorf("hit %d = doc %d, want %d", i, result.Hits[i].DocID, docID)
		}
	}
	if result.Query != "water" || result.Weight != 0.5 {
		t.Errorf("result echo = %q/%v", result.Query, result.Weight)
	}
}

func TestSearchCapsMergedResults(t *testing.T) {
	var hits0, hits1 []engine.Hit
	for i := 1; i <= 8; i++ {
		hits0 = append(hits0, engine.Hit{DocID: i * 2, Score: 1.0 / float64(i)})
		hits1 = append(hits1, engine.Hit{DocID: i*2 + 1, Score: 0.9 / float64(i)})
	}
	s0 := shardServer(t, shardapi.HitsResponse{Hits: hits0})
	s1 := shardServer(t, shardapi.HitsResponse{Hits: hits1})

	agg := New(clientsFor(time.Second, s0, s1), nil, 10, nil)
	result, err := agg.Search(context.Background(), "q", 0.5, "traditional")
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Hits) != 10 {
		t.Errorf("hits = %d, want capped at 10", len(result.Hits))
	}
	for i := 1; i < len(result.Hits); i++ {
		if result.Hits[i].Score > result.Hits[i-1].Score {
			t.Errorf("hits not in descending score order at %d", i)
		}
	}
}

func TestSearchTimedOutShardContributesNothing(t *testing.T) {
	fast := shardServer(t, shardapi.HitsResponse{Hits: []engine.Hit{{DocID: 1, Score: 0.4}}})
	slow := slowShardServer(t, 500*time.Millisecond)

	agg := New(clientsFor(50*time.Millisecond, fast, slow), nil, 10, nil)
	start := time.Now()
	result, err := agg.Search(context.Background(), "q", 0.5, "traditional")
	if err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > 400*time.Millisecond {
		t.Errorf("search blocked %v on a timed-out shard", elapsed)
	}
	if result.ShardFailures != 1 {
		t.Errorf("shard_failures = %d, want 1", result.ShardFailures)
	}
	if len(result.Hits) != 1 || result.Hits[0].DocID != 1 {
		t.Errorf("hits = %+v, want only the fast shard's doc", result.Hits)
	}
}

func TestSearchAllShardsDown(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(down.Close)

	agg := New(clientsFor(time.Second, down), nil, 10, nil)
	result, err := agg.Search(context.Background(), "q", 0.5, "traditional")
	if err != nil {
		t.Fatalf("shard failures must not fail the query: %v", err)
	}
	if len(result.Hits) != 0 || result.ShardFailures != 1 {
		t.Errorf("result = %+v", result)
	}
}

func TestSearchSemanticAvailableIsORAcrossShards(t *testing.T) {
	s0 := shardServer(t, shardapi.HitsResponse{SemanticAvailable: false})
	s1 := shardServer(t, shardapi.HitsResponse{SemanticAvailable: true})

	agg := New(clientsFor(time.Second, s0, s1), nil, 10, nil)
	result, err := agg.Search(context.Background(), "q", 0.5, "traditional")
	if err != nil {
		t.Fatal(err)
	}
	if !result.SemanticAvailable {
		t.Error("semantic_available = false, want true when any shard reports it")
	}
}

func TestSearchEnrichesWithMetadata(t *testing.T) {
	s0 := shardServer(t, shardapi.HitsResponse{Hits: []engine.Hit{{DocID: 7, Score: 0.8}}})
	store := &fakeMetaStore{docs: map[int]metadata.DocMeta{
		7: {Title: "Water bottle", URL: "/wiki/Water_bottle", Summary: "A container."},
	}}

	agg := New(clientsFor(time.Second, s0), store, 10, nil)
	result, err := agg.Search(context.Background(), "q", 0.5, "traditional")
	if err != nil {
		t.Fatal(err)
	}
	hit := result.Hits[0]
	if hit.Title != "Water bottle" || hit.URL != "/wiki/Water_bottle" || hit.Summary != "A container." {
		t.Errorf("hit = %+v", hit)
	}
}

func TestSearchMetadataFailureDegradesToEmpty(t *testing.T) {
	s0 := shardServer(t, shardapi.HitsResponse{Hits: []engine.Hit{{DocID: 7, Score: 0.8}}})
	store := &fakeMetaStore{failure: fmt.Errorf("connection refused")}

	agg := New(clientsFor(time.Second, s0), store, 10, nil)
	result, err := agg.Search(context.Background(), "q", 0.5, "traditional")
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Hits) != 1 {
		t.Fatalf("hits = %+v, want the hit kept", result.Hits)
	}
	hit := result.Hits[0]
	if hit.Title != "" || hit.URL != "" || hit.Summary != "" {
		t.Errorf("hit metadata = %+v, want empty on store failure", hit)
	}
}

func TestMergeTopK(t *testing.T) {
	shardHits := [][]engine.Hit{
		{{DocID: 1, Score: 0.9}, {DocID: 4, Score: 0.3}},
		{{DocID: 2, Score: 0.7}, {DocID: 5, Score: 0.3}},
		{{DocID: 3, Score: 0.5}},
	}
	merged := mergeTopK(shardHits, 4)
	if len(merged) != 4 {
		t.Fatalf("merged = %d hits, want 4", len(merged))
	}
	// Equal scores break ties by ascending docid: doc 4 beats doc 5.
	want := []int{1, 2, 3, 4}
	for i, docID := range want {
		if merged[i].DocID != docID {
			t.Errorf("merged[%d] = doc %d, want %d", i, merged[i].DocID, docID)
		}
	}
}

func TestMergeTopKEmpty(t *testing.T) {
	if merged := mergeTopK(nil, 10); len(merged) != 0 {
		t.Errorf("merged = %v, want empty", merged)
	}
}

func TestBuildKeyNormalizesQuery(t *testing.T) {
	c := &QueryCache{}
	base := c.buildKey("water bottle", 0.5, "traditional")
	if c.buildKey("  Water   BOTTLE ", 0.5, "traditional") != base {
		t.Error("case and whitespace variants should share a key")
	}
	if c.buildKey("water bottle", 0.3, "traditional") == base {
		t.Error("different weight must change the key")
	}
	if c.buildKey("water bottle", 0.5, "semantic") == base {
		t.Error("different mode must change the key")
	}
}
