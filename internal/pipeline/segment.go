package pipeline

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Segment partitions postings into shardCount buckets by docid mod shardCount
// and renders each shard's index lines in the flat on-disk format:
//
//	term idf docid1 tf1 norm1 docid2 tf2 norm2 ...
//
// Terms are sorted and postings within a term are sorted by docid, so
// rebuilding an unchanged corpus yields byte-identical shard files.
func Segment(postings []Posting, shardCount int) [][]string {
	buckets := make([][]Posting, shardCount)
	for _, p := range postings {
		shard := p.DocID % shardCount
		buckets[shard] = append(buckets[shard], p)
	}

	lines := make([][]string, shardCount)
	for shard, bucket := range buckets {
		lines[shard] = renderShard(bucket)
	}
	return lines
}

// renderShard groups one shard's postings by term and renders one index line
// per term.
func renderShard(postings []Posting) []string {
	if len(postings) == 0 {
		return nil
	}
	sort.Slice(postings, func(i, j int) bool {
		if postings[i].Term != postings[j].Term {
			return postings[i].Term < postings[j].Term
		}
		return postings[i].DocID < postings[j].DocID
	})

	lines := make([]string, 0, len(postings))
	var b strings.Builder
	start := 0
	for i := 1; i <= len(postings); i++ {
		if i == len(postings) || postings[i].Term != postings[start].Term {
			group := postings[start:i]
			b.Reset()
			b.WriteString(group[0].Term)
			b.WriteByte(' ')
			b.WriteString(formatFloat(group[0].IDF))
			for _, p := range group {
				b.WriteByte(' ')
				b.WriteString(strconv.Itoa(p.DocID))
				b.WriteByte(' ')
				b.WriteString(strconv.Itoa(p.TF))
				b.WriteByte(' ')
				b.WriteString(formatFloat(p.Norm))
			}
			lines = append(lines, b.String())
			start = i
		}
	}
	return lines
}

// WriteShards writes one inverted_index_<i>.txt file per shard into dir,
// creating the directory if needed. Files are written via a temp file and
// renamed so a crashed build never leaves a truncated index behind.
func WriteShards(postings []Posting, shardCount int, dir string) error {
	if shardCount <= 0 {
		return fmt.Errorf("shard count must be positive, got %d", shardCount)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}

	for shard, lines := range Segment(postings, shardCount) {
		finalPath := filepath.Join(dir, fmt.Sprintf("inverted_index_%d.txt", shard))
		tmpPath := finalPath + ".tmp"
		if err := writeLines(tmpPath, lines); err != nil {
			return fmt.Errorf("writing shard %d: %w", shard, err)
		}
		if err := os.Rename(tmpPath, finalPath); err != nil {
			return fmt.Errorf("renaming shard %d file: %w", shard, err)
		}
	}
	return nil
}

func writeLines(path string, lines []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, line := range lines {
		if _, err := w.WriteString(line); err != nil {
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Sync()
}

// formatFloat renders idf and norm values with the shortest representation
// that round-trips exactly.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
