package pipeline

import (
	"math"
	"reflect"
	"sort"
	"testing"

	"github.com/justinsudev/wikisearch/internal/tokenizer"
)

const epsilon = 1e-12

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

func TestTermFrequencies(t *testing.T) {
	pairs := []TermDoc{
		{"water", 1}, {"bottle", 1}, {"water", 1},
		{"water", 2},
	}
	got := TermFrequencies(pairs)
	want := []TermCount{
		{Term: "bottle", DocID: 1, TF: 1},
		{Term: "water", DocID: 1, TF: 2},
		{Term: "water", DocID: 2, TF: 1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TermFrequencies = %v, want %v", got, want)
	}
}

func TestTermFrequenciesEmpty(t *testing.T) {
	if got := TermFrequencies(nil); got != nil {
		t.Errorf("TermFrequencies(nil) = %v, want nil", got)
	}
}

func TestWithIDF(t *testing.T) {
	counts := []TermCount{
		{Term: "common", DocID: 1, TF: 1},
		{Term: "common", DocID: 2, TF: 3},
		{Term: "rare", DocID: 1, TF: 2},
	}
	postings := WithIDF(counts, 10)

	byTerm := make(map[string]float64)
	for _, p := range postings {
		byTerm[p.Term] = p.IDF
	}
	if want := math.Log10(10.0 / 2.0); !almostEqual(byTerm["common"], want) {
		t.Errorf("idf(common) = %v, want %v", byTerm["common"], want)
	}
	if want := math.Log10(10.0 / 1.0); !almostEqual(byTerm["rare"], want) {
		t.Errorf("idf(rare) = %v, want %v", byTerm["rare"], want)
	}
}

// A term appearing in every document gets idf = log10(N/N) = 0, which drives
// the degenerate ranking case where PageRank alone orders results.
func TestWithIDFTermInEveryDocument(t *testing.T) {
	counts := []TermCount{
		{Term: "ubiquitous", DocID: 1, TF: 1},
		{Term: "ubiquitous", DocID: 2, TF: 1},
		{Term: "ubiquitous", DocID: 3, TF: 1},
	}
	postings := WithIDF(counts, 3)
	for _, p := range postings {
		if p.IDF != 0 {
			t.Errorf("idf = %v for df == N, want 0", p.IDF)
		}
	}
}

func TestWithNorms(t *testing.T) {
	idfA := math.Log10(4.0 / 2.0)
	idfB := math.Log10(4.0 / 1.0)
	postings := []Posting{
		{Term: "a", DocID: 7, TF: 2, IDF: idfA},
		{Term: "b", DocID: 7, TF: 1, IDF: idfB},
		{Term: "a", DocID: 8, TF: 1, IDF: idfA},
	}
	out := WithNorms(postings)

	wantNorm7 := math.Sqrt(math.Pow(2*idfA, 2) + math.Pow(1*idfB, 2))
	wantNorm8 := math.Sqrt(math.Pow(1*idfA, 2))
	for _, p := range out {
		var want float64
		switch p.DocID {
		case 7:
			want = wantNorm7
		case 8:
			want = wantNorm8
		}
		if !almostEqual(p.Norm, want) {
			t.Errorf("norm(doc %d, term %s) = %v, want %v", p.DocID, p.Term, p.Norm, want)
		}
	}
}

// The norm attached to a posting must be a property of the document alone:
// every posting of the same docid carries the identical value.
func TestWithNormsConsistentPerDocument(t *testing.T) {
	postings := []Posting{
		{Term: "x", DocID: 5, TF: 1, IDF: 0.3},
		{Term: "y", DocID: 5, TF: 4, IDF: 1.2},
		{Term: "z", DocID: 5, TF: 2, IDF: 0.0},
	}
	out := WithNorms(postings)
	for _, p := range out[1:] {
		if p.Norm != out[0].Norm {
			t.Errorf("norms differ within doc 5: %v vs %v", p.Norm, out[0].Norm)
		}
	}
}

func TestBuildPostings(t *testing.T) {
	stop := tokenizer.Stopwords{"the": {}}
	docs := []Document{
		{DocID: 1, Text: "the water bottle"},
		{DocID: 2, Text: "water supply"},
	}
	postings := BuildPostings(docs, 2, stop)

	for _, p := range postings {
		if p.Term == "the" {
			t.Fatal("stopword leaked into postings")
		}
	}

	var waterDocs []int
	for _, p := range postings {
		if p.Term == "water" {
			waterDocs = append(waterDocs, p.DocID)
			if p.IDF != 0 {
				t.Errorf("idf(water) = %v, want 0 (appears in all %d docs)", p.IDF, 2)
			}
		}
	}
	sort.Ints(waterDocs)
	if !reflect.DeepEqual(waterDocs, []int{1, 2}) {
		t.Errorf("water posting docs = %v, want [1 2]", waterDocs)
	}
}

// Rebuilding from the same input yields the same posting set. The shard files
// are rendered in sorted order, so determinism here means byte-identical
// output.
func TestBuildPostingsDeterministic(t *testing.T) {
	stop := tokenizer.Stopwords{}
	docs := []Document{
		{DocID: 3, Text: "apache hadoop cluster"},
		{DocID: 6, Text: "hadoop distributed file system"},
		{DocID: 9, Text: "cluster management"},
	}
	first := BuildPostings(docs, 3, stop)
	second := BuildPostings(docs, 3, stop)

	if !reflect.DeepEqual(Segment(first, 3), Segment(second, 3)) {
		t.Error("identical input produced different shard renderings")
	}
}
