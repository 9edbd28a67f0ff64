package domain

// ReferenceRecord is one catalog entry with its precomputed embedding.
type ReferenceRecord struct {
	Code      string    `json:"code"`
	Image     string    `json:"image,omitempty"`
	Embedding []float32 `json:"embedding"`
}

// MatchResult is a scored catalog code produced by a single search.
type MatchResult struct {
	Code  string  `json:"code"`
	Score float64 `json:"score"`
}

// Percent returns the score as a whole percentage for display.
func (m MatchResult) Percent() int {
	p := m.Score * 100
	if p < 0 {
		return int(p - 0.5)
	}
	return int(p + 0.5)
}

type ReferenceStats struct {
	Records    int
	Dimension  int
	Duplicates []string
}
