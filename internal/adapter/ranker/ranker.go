// Package ranker scores reference embeddings against a query by cosine
// similarity. It is an exact linear scan; no approximate index is used.
package ranker

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"visearch/internal/domain"
)

// ErrInvalidLimit is returned when fewer than one result is requested.
var ErrInvalidLimit = errors.New("limit must be at least 1")

// CosineSimilarity calculates the cosine similarity between two vectors.
// A zero vector on either side carries no signal and scores 0, as do
// vectors of different lengths and non-finite results.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(sim) || math.IsInf(sim, 0) {
		return 0
	}
	return sim
}

// Rank scores every record against query and returns at most k results in
// descending score order. Equal scores keep the order of records. When a code
// occurs more than once only its best-ranked occurrence is returned.
func Rank(query []float32, records []domain.ReferenceRecord, k int) ([]domain.MatchResult, error) {
	if k < 1 {
		return nil, ErrInvalidLimit
	}
	if len(records) == 0 {
		return nil, nil
	}
	if dim := len(records[0].Embedding); len(query) != dim {
		return nil, fmt.Errorf("%w: query has %d elements, references have %d", domain.ErrDimensionMismatch, len(query), dim)
	}

	scores := make([]domain.MatchResult, len(records))
	for i, r := range records {
		scores[i] = domain.MatchResult{
			Code:  r.Code,
			Score: CosineSimilarity(query, r.Embedding),
		}
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})

	results := make([]domain.MatchResult, 0, min(k, len(scores)))
	seen := make(map[string]struct{}, min(k, len(scores)))
	for _, s := range scores {
		if len(results) == k {
			break
		}
		if _, dup := seen[s.Code]; dup {
			continue
		}
		seen[s.Code] = struct{}{}
		results = append(results, s)
	}

	return results, nil
}
