package aggregator

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/justinsudev/wikisearch/internal/engine"
	"github.com/justinsudev/wikisearch/internal/shardapi"
)

func newTestSearchHandler(t *testing.T) *Handler {
	t.Helper()
	s0 := shardServer(t, shardapi.HitsResponse{
		Hits:       []engine.Hit{{DocID: 1, Score: 0.6}},
		SearchMode: "traditional",
	})
	agg := New(clientsFor(time.Second, s0), nil, 10, nil)
	return NewHandler(agg, nil, nil, nil)
}

func TestHandlerSearch(t *testing.T) {
	h := newTestSearchHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/search/?q=water&w=0.3", nil)
	rec := httptest.NewRecorder()
	h.Search(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var result Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.Query != "water" || result.Weight != 0.3 {
		t.Errorf("echo = %q/%v", result.Query, result.Weight)
	}
	if len(result.Hits) != 1 || result.Hits[0].DocID != 1 {
		t.Errorf("hits = %+v", result.Hits)
	}
}

func TestHandlerSearchMissingQuery(t *testing.T) {
	h := newTestSearchHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/search/?w=0.3", nil)
	rec := httptest.NewRecorder()
	h.Search(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for missing q", rec.Code)
	}
	var result Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.Query != "" || result.Weight != 0.3 {
		t.Errorf("echo = %q/%v", result.Query, result.Weight)
	}
	if result.Hits == nil || len(result.Hits) != 0 {
		t.Errorf("hits = %v, want empty list", result.Hits)
	}
}

func TestHandlerSearchSemanticParamForwarded(t *testing.T) {
	var gotMode string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMode = r.URL.Query().Get("semantic")
		resp := shardapi.HitsResponse{
			Hits:              []engine.Hit{{DocID: 1, Score: 0.6}},
			SearchMode:        gotMode,
			SemanticAvailable: true,
		}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)

	agg := New(clientsFor(time.Second, srv), nil, 10, nil)
	h := NewHandler(agg, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search/?q=water&semantic=hybrid", nil)
	rec := httptest.NewRecorder()
	h.Search(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if gotMode != "hybrid" {
		t.Errorf("shard received semantic = %q, want hybrid", gotMode)
	}
	var result Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.SearchMode != "hybrid" {
		t.Errorf("search_mode = %q, want hybrid", result.SearchMode)
	}
}

func TestHandlerSearchDefaultsInvalidWeight(t *testing.T) {
	h := newTestSearchHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/search/?q=water&w=nope", nil)
	rec := httptest.NewRecorder()
	h.Search(rec, req)

	var result Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.Weight != 0.5 {
		t.Errorf("weight = %v, want default 0.5", result.Weight)
	}
}

func TestHandlerCacheStatsDisabled(t *testing.T) {
	h := newTestSearchHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats/", nil)
	rec := httptest.NewRecorder()
	h.CacheStats(rec, req)

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "disabled" {
		t.Errorf("body = %v", body)
	}
}
