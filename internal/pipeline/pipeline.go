// Package pipeline implements the offline indexing pipeline: it transforms a
// stream of raw HTML documents into sharded, scored inverted index files.
//
// The pipeline runs as a chain of grouped-reduction stages. Each stage sorts
// its record set by the grouping key and then performs a single linear scan,
// accumulating one group at a time, emitting it, and clearing the accumulator.
// That keeps per-stage memory bounded by the largest single group regardless
// of corpus size, and makes each stage independently testable.
//
// Stage order: count documents, parse HTML, tokenize, term frequency,
// document frequency / IDF, document norm, shard segmentation.
package pipeline

import (
	"math"
	"sort"

	"github.com/justinsudev/wikisearch/internal/tokenizer"
)

// Document is one parsed corpus document: a stable integer identifier and its
// visible text with whitespace collapsed to single spaces.
type Document struct {
	DocID int
	Text  string
}

// TermDoc is a single term occurrence within a document. The tokenize stage
// emits one TermDoc per occurrence, not per distinct term.
type TermDoc struct {
	Term  string
	DocID int
}

// TermCount is the raw occurrence count of a term within one document.
type TermCount struct {
	Term  string
	DocID int
	TF    int
}

// Posting is the index's atomic unit: a (term, docid, tf, idf, norm) record.
// IDF is identical across all postings of a term; Norm is identical across
// all postings of a document.
type Posting struct {
	Term  string
	DocID int
	TF    int
	IDF   float64
	Norm  float64
}

// TokenizeDocuments lowercases, filters, and splits every document's text,
// dropping stopwords, and emits one (term, docid) pair per occurrence.
func TokenizeDocuments(docs []Document, stop tokenizer.Stopwords) []TermDoc {
	pairs := make([]TermDoc, 0, len(docs)*16)
	for _, doc := range docs {
		for _, term := range tokenizer.Tokenize(doc.Text, stop) {
			pairs = append(pairs, TermDoc{Term: term, DocID: doc.DocID})
		}
	}
	return pairs
}

// TermFrequencies groups (term, docid) pairs by the composite key and emits
// the raw occurrence count for each pair. Counts are not log-scaled.
func TermFrequencies(pairs []TermDoc) []TermCount {
	if len(pairs) == 0 {
		return nil
	}
	sorted := make([]TermDoc, len(pairs))
	copy(sorted, pairs)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Term != sorted[j].Term {
			return sorted[i].Term < sorted[j].Term
		}
		return sorted[i].DocID < sorted[j].DocID
	})

	counts := make([]TermCount, 0, len(sorted))
	current := TermCount{Term: sorted[0].Term, DocID: sorted[0].DocID}
	for _, pair := range sorted {
		if pair.Term != current.Term || pair.DocID != current.DocID {
			counts = append(counts, current)
			current = TermCount{Term: pair.Term, DocID: pair.DocID}
		}
		current.TF++
	}
	counts = append(counts, current)
	return counts
}

// WithIDF groups term counts by term, derives the document frequency from the
// group size, and attaches idf = log10(totalDocs/df) to every posting of the
// term. A term with df == 0 cannot appear here at all, since DF is derived
// only from observed postings.
func WithIDF(counts []TermCount, totalDocs int) []Posting {
	if len(counts) == 0 {
		return nil
	}
	sorted := make([]TermCount, len(counts))
	copy(sorted, counts)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Term != sorted[j].Term {
			return sorted[i].Term < sorted[j].Term
		}
		return sorted[i].DocID < sorted[j].DocID
	})

	postings := make([]Posting, 0, len(sorted))
	flush := func(group []TermCount) {
		if len(group) == 0 {
			return
		}
		df := len(group)
		var idf float64
		if df > 0 {
			idf = math.Log10(float64(totalDocs) / float64(df))
		}
		for _, tc := range group {
			postings = append(postings, Posting{
				Term:  tc.Term,
				DocID: tc.DocID,
				TF:    tc.TF,
				IDF:   idf,
			})
		}
	}
	start := 0
	for i := 1; i <= len(sorted); i++ {
		if i == len(sorted) || sorted[i].Term != sorted[start].Term {
			flush(sorted[start:i])
			start = i
		}
	}
	return postings
}

// WithNorms groups postings by docid and attaches the document's L2 norm,
// sqrt of the sum of (tf*idf)^2 over all its terms, to every posting of that
// document.
func WithNorms(postings []Posting) []Posting {
	if len(postings) == 0 {
		return nil
	}
	sorted := make([]Posting, len(postings))
	copy(sorted, postings)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].DocID != sorted[j].DocID {
			return sorted[i].DocID < sorted[j].DocID
		}
		return sorted[i].Term < sorted[j].Term
	})

	out := make([]Posting, 0, len(sorted))
	start := 0
	for i := 1; i <= len(sorted); i++ {
		if i == len(sorted) || sorted[i].DocID != sorted[start].DocID {
			var sum float64
			for _, p := range sorted[start:i] {
				w := float64(p.TF) * p.IDF
				sum += w * w
			}
			norm := math.Sqrt(sum)
			for _, p := range sorted[start:i] {
				p.Norm = norm
				out = append(out, p)
			}
			start = i
		}
	}
	return out
}

// BuildPostings runs the tokenize, term-frequency, IDF, and norm stages over
// already-parsed documents. totalDocs is the corpus document count from the
// counting pass, which may exceed len(docs) when documents were dropped for
// missing identifiers.
func BuildPostings(docs []Document, totalDocs int, stop tokenizer.Stopwords) []Posting {
	pairs := TokenizeDocuments(docs, stop)
	counts := TermFrequencies(pairs)
	return WithNorms(WithIDF(counts, totalDocs))
}
