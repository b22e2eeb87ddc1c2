package index

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// PageRank maps docid to a query-independent authority score. Missing
// documents score 0.
type PageRank map[int]float64

// LoadPageRank reads a PageRank file with one "docid,score" pair per line.
// Malformed lines are skipped, not fatal.
func LoadPageRank(path string) (PageRank, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening pagerank file: %w", err)
	}
	defer f.Close()

	logger := slog.Default().With("component", "pagerank-loader", "path", path)
	pr := make(PageRank)
	scanner := bufio.NewScanner(f)
	skipped := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) != 2 {
			skipped++
			continue
		}
		docID, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			skipped++
			continue
		}
		score, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			skipped++
			continue
		}
		pr[docID] = score
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading pagerank file: %w", err)
	}
	if skipped > 0 {
		logger.Warn("pagerank loaded with skipped lines", "entries", len(pr), "skipped", skipped)
	}
	return pr, nil
}

// Score returns the document's PageRank, defaulting to 0 for unknown docids.
func (pr PageRank) Score(docID int) float64 {
	return pr[docID]
}
