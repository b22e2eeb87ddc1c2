package shardapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/justinsudev/wikisearch/internal/engine"
	"github.com/justinsudev/wikisearch/pkg/config"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	dir := t.TempDir()
	index := "water 0.30103 1 2 1 2 1 0.5\n" +
		"bottle 0.60206 1 1 1\n"
	if err := os.WriteFile(filepath.Join(dir, "inverted_index_0.txt"), []byte(index), 0o644); err != nil {
		t.Fatal(err)
	}
	stopPath := filepath.Join(dir, "stopwords.txt")
	if err := os.WriteFile(stopPath, []byte("the\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	eng, err := engine.New(config.IndexConfig{
		ShardID:       0,
		ShardCount:    3,
		DataDir:       dir,
		StopwordsPath: stopPath,
	}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	return New(eng, nil)
}

func getHits(t *testing.T, h *Handler, target string) (int, HitsResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.Hits(rec, req)

	var resp HitsResponse
	if rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
	}
	return rec.Code, resp
}

func TestHits(t *testing.T) {
	h := newTestHandler(t)
	code, resp := getHits(t, h, "/api/v1/hits/?q=water+bottle&w=0.3")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(resp.Hits) != 1 || resp.Hits[0].DocID != 1 {
		t.Errorf("hits = %+v, want only doc 1", resp.Hits)
	}
	if resp.SearchMode != "traditional" {
		t.Errorf("search_mode = %q", resp.SearchMode)
	}
	if resp.SemanticAvailable {
		t.Error("semantic_available = true without embeddings")
	}
}

func TestHitsMissingQuery(t *testing.T) {
	h := newTestHandler(t)
	code, resp := getHits(t, h, "/api/v1/hits/")
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for missing q", code)
	}
	if resp.Hits == nil || len(resp.Hits) != 0 {
		t.Errorf("hits = %v, want empty list", resp.Hits)
	}
}

func TestHitsInvalidWeightDefaults(t *testing.T) {
	h := newTestHandler(t)

	_, invalid := getHits(t, h, "/api/v1/hits/?q=water&w=banana")
	_, outOfRange := getHits(t, h, "/api/v1/hits/?q=water&w=1.5")
	_, defaulted := getHits(t, h, "/api/v1/hits/?q=water&w=0.5")

	for i, hit := range defaulted.Hits {
		if invalid.Hits[i] != hit {
			t.Errorf("malformed w differs from default: %+v vs %+v", invalid.Hits[i], hit)
		}
		if outOfRange.Hits[i] != hit {
			t.Errorf("out-of-range w differs from default: %+v vs %+v", outOfRange.Hits[i], hit)
		}
	}
}

func TestHitsInvalidModeDefaults(t *testing.T) {
	h := newTestHandler(t)
	code, resp := getHits(t, h, "/api/v1/hits/?q=water&semantic=quantum")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if resp.SearchMode != "traditional" {
		t.Errorf("search_mode = %q, want traditional for unknown mode", resp.SearchMode)
	}
}

type fixedEmbedder struct{ vec []float32 }

func (e fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.vec, nil
}

// The scoring mode travels in the "semantic" query parameter; a semantic
// request against a semantic-capable engine must come back in semantic mode.
func TestHitsSemanticParam(t *testing.T) {
	dir := t.TempDir()
	index := "water 0.30103 1 2 1 2 1 0.5\n"
	if err := os.WriteFile(filepath.Join(dir, "inverted_index_0.txt"), []byte(index), 0o644); err != nil {
		t.Fatal(err)
	}
	stopPath := filepath.Join(dir, "stopwords.txt")
	if err := os.WriteFile(stopPath, []byte("the\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	embPath := filepath.Join(dir, "embeddings.txt")
	if err := os.WriteFile(embPath, []byte("1 1.0 0.0\n2 0.0 1.0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	eng, err := engine.New(config.IndexConfig{
		ShardID:        0,
		ShardCount:     3,
		DataDir:        dir,
		StopwordsPath:  stopPath,
		EmbeddingsPath: embPath,
	}, fixedEmbedder{vec: []float32{1, 0}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	h := New(eng, nil)

	code, resp := getHits(t, h, "/api/v1/hits/?q=water&semantic=semantic")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if !resp.SemanticAvailable {
		t.Fatal("semantic_available = false with embeddings and embedder")
	}
	if resp.SearchMode != "semantic" {
		t.Errorf("search_mode = %q, want semantic", resp.SearchMode)
	}
}

func TestServices(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/", nil)
	rec := httptest.NewRecorder()
	h.Services(rec, req)

	var services map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &services); err != nil {
		t.Fatal(err)
	}
	if services["hits"] != "/api/v1/hits/" {
		t.Errorf("services = %v", services)
	}
}
