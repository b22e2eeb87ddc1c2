// Command indexer builds the sharded inverted index from a crawled HTML
// corpus. It runs the full pipeline in one process: parse, tokenize, weight,
// and segment, then writes one index file per shard and announces the new
// generation on Kafka so shard servers reload.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/justinsudev/wikisearch/internal/analytics"
	"github.com/justinsudev/wikisearch/internal/pipeline"
	"github.com/justinsudev/wikisearch/internal/tokenizer"
	"github.com/justinsudev/wikisearch/pkg/config"
	"github.com/justinsudev/wikisearch/pkg/kafka"
	"github.com/justinsudev/wikisearch/pkg/logger"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	inputPath := flag.String("input", "", "HTML corpus file or directory")
	publish := flag.Bool("publish", true, "announce the new index generation on Kafka")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if *inputPath == "" {
		slog.Error("missing required -input flag")
		os.Exit(1)
	}

	start := time.Now()
	if err := run(cfg, *inputPath, *publish, start); err != nil {
		slog.Error("index build failed", "error", err)
		os.Exit(1)
	}
	slog.Info("index build finished", "duration", time.Since(start))
}

func run(cfg *config.Config, inputPath string, publish bool, start time.Time) error {
	files, err := corpusFiles(inputPath)
	if err != nil {
		return err
	}
	slog.Info("building index",
		"input_files", len(files),
		"shard_count", cfg.Index.ShardCount,
		"output_dir", cfg.Index.DataDir,
	)

	// Two passes over the corpus: document count first, since IDF needs the
	// total before any term can be weighted.
	totalDocs, err := withCorpus(files, pipeline.CountDocuments)
	if err != nil {
		return fmt.Errorf("counting documents: %w", err)
	}
	if totalDocs == 0 {
		return fmt.Errorf("no documents found in %s", inputPath)
	}

	docs, err := withCorpus(files, func(r io.Reader) ([]pipeline.Document, error) {
		return pipeline.ParseDocuments(r, cfg.Index.DocIDAttribute)
	})
	if err != nil {
		return fmt.Errorf("parsing documents: %w", err)
	}
	slog.Info("corpus parsed", "total_docs", totalDocs, "parsed_docs", len(docs))

	stop, err := tokenizer.LoadStopwords(cfg.Index.StopwordsPath)
	if err != nil {
		return fmt.Errorf("loading stopwords: %w", err)
	}

	postings := pipeline.BuildPostings(docs, totalDocs, stop)
	terms := countTerms(postings)
	slog.Info("postings built", "postings", len(postings), "terms", terms)

	if err := pipeline.WriteShards(postings, cfg.Index.ShardCount, cfg.Index.DataDir); err != nil {
		return fmt.Errorf("writing shard files: %w", err)
	}

	if publish {
		announce(cfg, analytics.IndexEvent{
			Type:       analytics.EventIndexBuilt,
			Documents:  len(docs),
			Terms:      terms,
			ShardCount: cfg.Index.ShardCount,
			DurationMs: time.Since(start).Milliseconds(),
			Timestamp:  time.Now().UTC(),
		})
	}
	return nil
}

// corpusFiles expands the input path into a sorted list of corpus files.
func corpusFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading input path: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("listing input directory: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		files = append(files, filepath.Join(path, entry.Name()))
	}
	sort.Strings(files)
	if len(files) == 0 {
		return nil, fmt.Errorf("no corpus files in %s", path)
	}
	return files, nil
}

// withCorpus opens every corpus file and runs fn over their concatenation, so
// documents split across file boundaries still merge by docid.
func withCorpus[T any](files []string, fn func(io.Reader) (T, error)) (T, error) {
	var zero T
	readers := make([]io.Reader, 0, len(files))
	handles := make([]*os.File, 0, len(files))
	defer func() {
		for _, f := range handles {
			f.Close()
		}
	}()
	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			return zero, fmt.Errorf("opening corpus file: %w", err)
		}
		handles = append(handles, f)
		readers = append(readers, f)
	}
	return fn(io.MultiReader(readers...))
}

func countTerms(postings []pipeline.Posting) int {
	seen := make(map[string]struct{})
	for _, p := range postings {
		seen[p.Term] = struct{}{}
	}
	return len(seen)
}

// announce publishes the index-complete event. A broker outage does not fail
// the build; shard servers can still be reloaded by hand.
func announce(cfg *config.Config, event analytics.IndexEvent) {
	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
	defer producer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := producer.Publish(ctx, kafka.Event{Key: "index-complete", Value: event}); err != nil {
		slog.Warn("failed to announce index completion", "error", err)
		return
	}
	slog.Info("index completion announced", "topic", cfg.Kafka.Topics.IndexComplete)
}
