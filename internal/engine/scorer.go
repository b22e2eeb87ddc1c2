package engine

import (
	"context"
	"math"

	"github.com/justinsudev/wikisearch/internal/index"
)

// Hit is a single ranked document from one shard.
type Hit struct {
	DocID int     `json:"docid"`
	Score float64 `json:"score"`
}

// Query carries one parsed search request through the scoring layer. Terms is
// the tokenized query with stopwords removed; duplicate terms are preserved so
// the query vector reflects term frequency.
type Query struct {
	Raw    string
	Terms  []string
	Weight float64
}

// Scorer ranks documents for a query against one shard snapshot. Score returns
// unranked hits; the engine sorts and truncates them.
type Scorer interface {
	// Available reports whether the scorer can serve queries against snap.
	Available(snap *index.Snapshot) bool
	Score(ctx context.Context, snap *index.Snapshot, q Query) ([]Hit, error)
}

// tfidfScorer implements classic blended ranking: for every document that
// contains all known query terms, score = w*pagerank + (1-w)*cosine.
type tfidfScorer struct{}

func (tfidfScorer) Available(*index.Snapshot) bool { return true }

func (tfidfScorer) Score(_ context.Context, snap *index.Snapshot, q Query) ([]Hit, error) {
	cosines := tfidfCosines(snap.Index, q.Terms)
	return blend(cosines, snap.PageRank, q.Weight), nil
}

// tfidfCosines computes the cosine similarity between the query vector and
// every document that contains all query terms known to the index. Terms
// absent from the index are dropped before the intersection; a query whose
// terms are all unknown matches nothing. When either vector has zero magnitude
// the cosine degrades to 0 so PageRank alone can still rank the hit.
func tfidfCosines(idx index.Index, terms []string) map[int]float64 {
	valid := make([]string, 0, len(terms))
	for _, t := range terms {
		if _, ok := idx.Lookup(t); ok {
			valid = append(valid, t)
		}
	}
	if len(valid) == 0 {
		return nil
	}

	qtf := make(map[string]int, len(valid))
	for _, t := range valid {
		qtf[t]++
	}

	qvec := make(map[string]float64, len(qtf))
	var qsum float64
	for t, freq := range qtf {
		entry, _ := idx.Lookup(t)
		v := float64(freq) * entry.IDF
		qvec[t] = v
		qsum += v * v
	}
	qnorm := math.Sqrt(qsum)

	candidates := intersect(idx, qtf)
	if len(candidates) == 0 {
		return nil
	}

	cosines := make(map[int]float64, len(candidates))
	for docID := range candidates {
		var dot, docNorm float64
		for t := range qtf {
			entry, _ := idx.Lookup(t)
			for _, p := range entry.Postings {
				if p.DocID != docID {
					continue
				}
				dot += qvec[t] * float64(p.TF) * entry.IDF
				docNorm = p.Norm
				break
			}
		}
		if qnorm == 0 || docNorm == 0 {
			cosines[docID] = 0
			continue
		}
		cosines[docID] = dot / (qnorm * docNorm)
	}
	return cosines
}

// intersect returns the set of documents containing every term in qtf.
func intersect(idx index.Index, qtf map[string]int) map[int]struct{} {
	var result map[int]struct{}
	for t := range qtf {
		entry, _ := idx.Lookup(t)
		docs := make(map[int]struct{}, len(entry.Postings))
		for _, p := range entry.Postings {
			docs[p.DocID] = struct{}{}
		}
		if result == nil {
			result = docs
			continue
		}
		for d := range result {
			if _, ok := docs[d]; !ok {
				delete(result, d)
			}
		}
	}
	return result
}

// blend folds PageRank into relevance cosines.
func blend(cosines map[int]float64, pr index.PageRank, weight float64) []Hit {
	if len(cosines) == 0 {
		return nil
	}
	hits := make([]Hit, 0, len(cosines))
	for docID, cos := range cosines {
		hits = append(hits, Hit{
			DocID: docID,
			Score: weight*pr.Score(docID) + (1-weight)*cos,
		})
	}
	return hits
}
