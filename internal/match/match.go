// Package match resolves a detected face embedding to an enrolled identity.
package match

import (
	"github.com/andresmejia3/memento/internal/store"
	"github.com/andresmejia3/memento/internal/types"
	"github.com/andresmejia3/memento/internal/utils"
)

// DefaultThreshold is the minimum cosine similarity accepted as a match.
const DefaultThreshold = 0.3

// MatchOne scans the set linearly and returns the best-scoring identity when its
// score reaches threshold. Records are visited in ascending ID order and only a
// strictly greater score replaces the best, so the lowest ID wins ties.
// Embeddings with NaN or infinite components never match.
func MatchOne(embedding []float64, set *store.KnownFaceSet, threshold float64) types.MatchResult {
	unknown := types.MatchResult{Name: types.UnknownLabel, Relation: types.UnknownLabel}
	if set == nil || set.Len() == 0 || !utils.IsFinite(embedding) {
		return unknown
	}

	query := utils.Normalize(embedding)

	best := -1
	bestScore := 0.0
	for i, r := range set.Records() {
		score := utils.CosineSimilarity(query, r.Embedding)
		if best == -1 || score > bestScore {
			best, bestScore = i, score
		}
	}

	if !(bestScore >= threshold) {
		unknown.Score = bestScore
		return unknown
	}

	r := set.Records()[best]
	return types.MatchResult{
		Matched:  true,
		PersonID: r.ID,
		Name:     r.Name,
		Relation: r.Relation,
		Summary:  r.Summary,
		Score:    bestScore,
	}
}

// MatchAll matches every face against the same snapshot.
func MatchAll(faces []types.DetectedFace, set *store.KnownFaceSet, threshold float64) []types.MatchResult {
	results := make([]types.MatchResult, len(faces))
	for i, f := range faces {
		results[i] = MatchOne(f.Embedding, set, threshold)
	}
	return results
}
