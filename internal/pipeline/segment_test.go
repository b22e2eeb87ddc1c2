package pipeline

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func TestSegmentPartitionsByDocID(t *testing.T) {
	postings := []Posting{
		{Term: "a", DocID: 0, TF: 1, IDF: 0.5, Norm: 1.0},
		{Term: "a", DocID: 1, TF: 1, IDF: 0.5, Norm: 1.0},
		{Term: "a", DocID: 2, TF: 1, IDF: 0.5, Norm: 1.0},
		{Term: "b", DocID: 4, TF: 2, IDF: 0.25, Norm: 2.0},
	}
	lines := Segment(postings, 3)
	if len(lines) != 3 {
		t.Fatalf("got %d shards, want 3", len(lines))
	}

	// Every posting lands in exactly the shard docid mod 3 selects.
	for shard, shardLines := range lines {
		for _, line := range shardLines {
			fields := strings.Fields(line)
			for i := 2; i < len(fields); i += 3 {
				docID, err := strconv.Atoi(fields[i])
				if err != nil {
					t.Fatalf("bad docid field %q in %q", fields[i], line)
				}
				if docID%3 != shard {
					t.Errorf("docid %d in shard %d, want shard %d", docID, shard, docID%3)
				}
			}
		}
	}
}

func TestSegmentLineFormat(t *testing.T) {
	postings := []Posting{
		{Term: "water", DocID: 3, TF: 2, IDF: 0.5, Norm: 1.25},
		{Term: "water", DocID: 6, TF: 1, IDF: 0.5, Norm: 0.75},
	}
	lines := Segment(postings, 3)
	shard0 := lines[0]
	if len(shard0) != 1 {
		t.Fatalf("shard 0 lines = %v, want one line", shard0)
	}
	want := "water 0.5 3 2 1.25 6 1 0.75"
	if shard0[0] != want {
		t.Errorf("line = %q, want %q", shard0[0], want)
	}
	for shard, shardLines := range lines[1:] {
		if len(shardLines) != 0 {
			t.Errorf("shard %d unexpectedly has lines: %v", shard+1, shardLines)
		}
	}
}

func TestSegmentSortsTermsAndPostings(t *testing.T) {
	postings := []Posting{
		{Term: "zebra", DocID: 9, TF: 1, IDF: 1, Norm: 1},
		{Term: "apple", DocID: 6, TF: 1, IDF: 1, Norm: 1},
		{Term: "apple", DocID: 3, TF: 1, IDF: 1, Norm: 1},
	}
	shard0 := Segment(postings, 3)[0]
	if len(shard0) != 2 {
		t.Fatalf("got %d lines, want 2", len(shard0))
	}
	if !strings.HasPrefix(shard0[0], "apple ") || !strings.HasPrefix(shard0[1], "zebra ") {
		t.Errorf("terms not sorted: %v", shard0)
	}
	if shard0[0] != "apple 1 3 1 1 6 1 1" {
		t.Errorf("postings not sorted by docid: %q", shard0[0])
	}
}

func TestWriteShards(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "index")
	postings := []Posting{
		{Term: "a", DocID: 0, TF: 1, IDF: 0.5, Norm: 1},
		{Term: "b", DocID: 1, TF: 1, IDF: 0.5, Norm: 1},
	}
	if err := WriteShards(postings, 3, dir); err != nil {
		t.Fatalf("WriteShards: %v", err)
	}

	// All shard files exist, including the empty shard.
	for shard := 0; shard < 3; shard++ {
		path := filepath.Join(dir, "inverted_index_"+strconv.Itoa(shard)+".txt")
		if _, err := os.Stat(path); err != nil {
			t.Errorf("shard file %d missing: %v", shard, err)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, "inverted_index_1.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(string(data)); got != "b 0.5 1 1 1" {
		t.Errorf("shard 1 content = %q", got)
	}
}

func TestWriteShardsRejectsZeroShards(t *testing.T) {
	if err := WriteShards(nil, 0, t.TempDir()); err == nil {
		t.Fatal("expected error for zero shard count")
	}
}
