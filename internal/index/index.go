// Package index loads a shard's on-disk tables (inverted index, stopwords,
// PageRank, optional document embeddings) into immutable in-memory structures.
// Everything here is read-only after load; concurrent queries share the
// tables without locking.
package index

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Posting is one document's entry in a term's posting list.
type Posting struct {
	DocID int
	TF    int
	Norm  float64
}

// TermEntry is a term's complete record within one shard: its corpus-wide IDF
// and the postings for documents in this shard.
type TermEntry struct {
	IDF      float64
	Postings []Posting
}

// Index maps each term in the shard to its entry. It is immutable after Load.
type Index map[string]TermEntry

// Load reads a flat shard index file, one line per term:
//
//	term idf docid1 tf1 norm1 docid2 tf2 norm2 ...
//
// Malformed lines (wrong field count, non-numeric fields) are skipped with a
// warning; a noisy corpus must never abort a load.
func Load(path string) (Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening index file: %w", err)
	}
	defer f.Close()

	logger := slog.Default().With("component", "index-loader", "path", path)
	idx := make(Index)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	lineNo := 0
	skipped := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		term, entry, ok := parseIndexLine(line)
		if !ok {
			skipped++
			logger.Warn("skipping malformed index line", "line", lineNo)
			continue
		}
		idx[term] = entry
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading index file: %w", err)
	}
	if skipped > 0 {
		logger.Warn("index loaded with skipped lines", "terms", len(idx), "skipped", skipped)
	}
	return idx, nil
}

// parseIndexLine decodes one "term idf (docid tf norm)+" line.
func parseIndexLine(line string) (string, TermEntry, bool) {
	fields := strings.Fields(line)
	// A term line needs the leading (term, idf) pair plus at least one
	// complete (docid, tf, norm) triplet.
	if len(fields) < 5 || (len(fields)-2)%3 != 0 {
		return "", TermEntry{}, false
	}
	idf, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return "", TermEntry{}, false
	}
	entry := TermEntry{
		IDF:      idf,
		Postings: make([]Posting, 0, (len(fields)-2)/3),
	}
	for i := 2; i < len(fields); i += 3 {
		docID, err := strconv.Atoi(fields[i])
		if err != nil {
			return "", TermEntry{}, false
		}
		tf, err := strconv.Atoi(fields[i+1])
		if err != nil {
			return "", TermEntry{}, false
		}
		norm, err := strconv.ParseFloat(fields[i+2], 64)
		if err != nil {
			return "", TermEntry{}, false
		}
		entry.Postings = append(entry.Postings, Posting{DocID: docID, TF: tf, Norm: norm})
	}
	return fields[0], entry, true
}

// Lookup returns the term's entry and whether the term exists in this shard.
func (idx Index) Lookup(term string) (TermEntry, bool) {
	entry, ok := idx[term]
	return entry, ok
}

// Terms returns the number of distinct terms in the shard.
func (idx Index) Terms() int {
	return len(idx)
}
