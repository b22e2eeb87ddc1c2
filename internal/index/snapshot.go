package index

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/justinsudev/wikisearch/internal/tokenizer"
	"github.com/justinsudev/wikisearch/pkg/config"
)

// Snapshot bundles every in-memory table a shard query engine needs. A
// Snapshot is built once and never mutated; reload replaces the whole
// Snapshot atomically, so the query path reads it without locks.
type Snapshot struct {
	Index      Index
	Stopwords  tokenizer.Stopwords
	PageRank   PageRank
	Embeddings Embeddings
}

// LoadSnapshot builds a Snapshot from the paths in cfg. The inverted index
// and stopword files are required; the PageRank and embeddings tables degrade
// to empty when their files are absent.
func LoadSnapshot(cfg config.IndexConfig) (*Snapshot, error) {
	logger := slog.Default().With("component", "snapshot-loader", "shard_id", cfg.ShardID)

	idx, err := Load(cfg.IndexPath())
	if err != nil {
		return nil, fmt.Errorf("loading shard %d index: %w", cfg.ShardID, err)
	}
	stop, err := tokenizer.LoadStopwords(cfg.StopwordsPath)
	if err != nil {
		return nil, fmt.Errorf("loading stopwords: %w", err)
	}

	pr := make(PageRank)
	if cfg.PageRankPath != "" {
		pr, err = LoadPageRank(cfg.PageRankPath)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
			logger.Warn("pagerank file missing, all documents score 0", "path", cfg.PageRankPath)
			pr = make(PageRank)
		}
	}

	emb := make(Embeddings)
	if cfg.EmbeddingsPath != "" {
		emb, err = LoadEmbeddings(cfg.EmbeddingsPath)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
			logger.Warn("embeddings file missing, semantic scoring unavailable", "path", cfg.EmbeddingsPath)
			emb = make(Embeddings)
		}
	}

	logger.Info("snapshot loaded",
		"terms", idx.Terms(),
		"stopwords", len(stop),
		"pagerank_entries", len(pr),
		"embeddings", len(emb),
	)
	return &Snapshot{
		Index:      idx,
		Stopwords:  stop,
		PageRank:   pr,
		Embeddings: emb,
	}, nil
}
