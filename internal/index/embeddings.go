package index

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Embeddings maps docid to a dense document vector produced by an external
// embedding pipeline. The file format is one document per line:
//
//	docid v1 v2 v3 ...
//
// All vectors in a file must share the same dimension; lines that disagree,
// or fail to parse, are skipped.
type Embeddings map[int][]float32

// LoadEmbeddings reads a document embedding file. A missing file is not an
// error to the caller's degraded-mode logic; callers decide whether an empty
// table disables semantic scoring.
func LoadEmbeddings(path string) (Embeddings, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening embeddings file: %w", err)
	}
	defer f.Close()

	logger := slog.Default().With("component", "embeddings-loader", "path", path)
	emb := make(Embeddings)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	dim := 0
	skipped := 0
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			if len(fields) > 0 {
				skipped++
			}
			continue
		}
		docID, err := strconv.Atoi(fields[0])
		if err != nil {
			skipped++
			continue
		}
		if dim == 0 {
			dim = len(fields) - 1
		}
		if len(fields)-1 != dim {
			skipped++
			continue
		}
		vec := make([]float32, 0, dim)
		ok := true
		for _, field := range fields[1:] {
			v, err := strconv.ParseFloat(field, 32)
			if err != nil {
				ok = false
				break
			}
			vec = append(vec, float32(v))
		}
		if !ok {
			skipped++
			continue
		}
		emb[docID] = vec
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading embeddings file: %w", err)
	}
	if skipped > 0 {
		logger.Warn("embeddings loaded with skipped lines", "vectors", len(emb), "skipped", skipped)
	}
	return emb, nil
}
