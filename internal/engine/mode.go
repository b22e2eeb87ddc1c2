package engine

// Mode selects the scoring strategy a shard uses to rank hits.
type Mode string

const (
	// ModeTraditional ranks by TF-IDF cosine similarity blended with PageRank.
	ModeTraditional Mode = "traditional"
	// ModeSemantic ranks by embedding cosine similarity blended with PageRank.
	ModeSemantic Mode = "semantic"
	// ModeHybrid averages the traditional and semantic relevance signals.
	ModeHybrid Mode = "hybrid"
)

// ParseMode maps a request parameter to a Mode. Unrecognized values fall back
// to ModeTraditional rather than failing the query.
func ParseMode(s string) Mode {
	switch Mode(s) {
	case ModeSemantic:
		return ModeSemantic
	case ModeHybrid:
		return ModeHybrid
	default:
		return ModeTraditional
	}
}
