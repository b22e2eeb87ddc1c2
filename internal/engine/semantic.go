package engine

import (
	"context"
	"fmt"
	"math"

	"github.com/justinsudev/wikisearch/internal/index"
)

// Embedder turns free text into a dense vector in the same space as the
// precomputed document embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// semanticScorer ranks by cosine similarity between the query embedding and
// each document embedding, blended with PageRank the same way tfidfScorer is.
type semanticScorer struct {
	embedder Embedder
}

func (s *semanticScorer) Available(snap *index.Snapshot) bool {
	return s.embedder != nil && len(snap.Embeddings) > 0
}

func (s *semanticScorer) Score(ctx context.Context, snap *index.Snapshot, q Query) ([]Hit, error) {
	cosines, err := s.cosines(ctx, snap, q.Raw)
	if err != nil {
		return nil, err
	}
	return blend(cosines, snap.PageRank, q.Weight), nil
}

func (s *semanticScorer) cosines(ctx context.Context, snap *index.Snapshot, raw string) (map[int]float64, error) {
	qvec, err := s.embedder.Embed(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	qnorm := vectorNorm(qvec)
	if qnorm == 0 {
		return nil, nil
	}

	cosines := make(map[int]float64, len(snap.Embeddings))
	for docID, dvec := range snap.Embeddings {
		if len(dvec) != len(qvec) {
			continue
		}
		dnorm := vectorNorm(dvec)
		if dnorm == 0 {
			continue
		}
		var dot float64
		for i := range qvec {
			dot += float64(qvec[i]) * float64(dvec[i])
		}
		cosines[docID] = dot / (qnorm * dnorm)
	}
	return cosines, nil
}

// hybridScorer averages the traditional and semantic relevance signals before
// blending in PageRank. Documents ranked by only one signal keep that signal's
// half of the relevance mass.
type hybridScorer struct {
	semantic *semanticScorer
}

func (h *hybridScorer) Available(snap *index.Snapshot) bool {
	return h.semantic.Available(snap)
}

func (h *hybridScorer) Score(ctx context.Context, snap *index.Snapshot, q Query) ([]Hit, error) {
	tfidf := tfidfCosines(snap.Index, q.Terms)
	sem, err := h.semantic.cosines(ctx, snap, q.Raw)
	if err != nil {
		return nil, err
	}

	docs := make(map[int]struct{}, len(tfidf)+len(sem))
	for d := range tfidf {
		docs[d] = struct{}{}
	}
	for d := range sem {
		docs[d] = struct{}{}
	}
	if len(docs) == 0 {
		return nil, nil
	}

	w := q.Weight
	hits := make([]Hit, 0, len(docs))
	for docID := range docs {
		relevance := 0.5*tfidf[docID] + 0.5*sem[docID]
		hits = append(hits, Hit{
			DocID: docID,
			Score: w*snap.PageRank.Score(docID) + (1-w)*relevance,
		})
	}
	return hits, nil
}

func vectorNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
