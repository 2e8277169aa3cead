// Package search provides hybrid search combining BM25 and vector search.
// Results are fused via a fixed weighted sum of normalized per-list scores.
package search

import (
	"sort"

	"github.com/federails/corequery/internal/store"
)

// FusedResult represents a single result after weighted-sum fusion.
type FusedResult struct {
	DocID        string   // Document identifier
	Score        float64  // Combined score: weights.Vector*vecNorm + weights.Lexical*textNorm
	BM25Score    float64  // Original BM25 score (preserved)
	BM25Rank     int      // Position in BM25 list (1-indexed, 0 if absent)
	VecScore     float64  // Original vector similarity score (preserved)
	VecRank      int      // Position in vector list (1-indexed, 0 if absent)
	InBothLists  bool     // Document appeared in both result lists
	MatchedTerms []string // BM25 matched terms (for highlighting)
}

// WeightedFusion combines BM25 and vector search results via a fixed
// weighted sum of per-list max-normalized scores (each score divided by
// the top score of its own list; no minimum is subtracted):
//
//	score(d) = weights.Vector * cos_sim_normalized(d) + weights.Lexical * bm25_normalized(d)
//
// A document missing from one side contributes 0 for that side rather than
// being excluded, per spec.
type WeightedFusion struct{}

// NewWeightedFusion creates a new weighted-sum fusion instance.
func NewWeightedFusion() *WeightedFusion {
	return &WeightedFusion{}
}

// Fuse combines BM25 and vector results using the fixed weighted-sum
// formula. Results are sorted by: Score (desc) → InBothLists (true first) →
// BM25Score (desc) → DocID (asc). Final indexed_at/id tie-breaking happens
// in the engine, which has access to the hydrated Document.
func (f *WeightedFusion) Fuse(
	bm25 []*store.BM25Result,
	vec []*store.VectorResult,
	weights Weights,
) []*FusedResult {
	if len(bm25) == 0 && len(vec) == 0 {
		return []*FusedResult{}
	}

	capacity := len(bm25) + len(vec)
	byID := make(map[string]*FusedResult, capacity)

	maxBM25 := 0.0
	for _, r := range bm25 {
		if r.Score > maxBM25 {
			maxBM25 = r.Score
		}
	}
	maxVec := float32(0)
	for _, r := range vec {
		if r.Score > maxVec {
			maxVec = r.Score
		}
	}

	for rank, r := range bm25 {
		result := f.getOrCreate(byID, r.DocID)
		result.BM25Score = r.Score
		result.BM25Rank = rank + 1
		result.MatchedTerms = r.MatchedTerms
	}

	for rank, r := range vec {
		result := f.getOrCreate(byID, r.ID)
		result.VecScore = float64(r.Score)
		result.VecRank = rank + 1
		if result.BM25Rank > 0 {
			result.InBothLists = true
		}
	}

	for _, r := range byID {
		vecNorm := 0.0
		if r.VecRank > 0 && maxVec > 0 {
			vecNorm = r.VecScore / float64(maxVec)
		}
		textNorm := 0.0
		if r.BM25Rank > 0 && maxBM25 > 0 {
			textNorm = r.BM25Score / maxBM25
		}
		r.Score = weights.Vector*vecNorm + weights.Lexical*textNorm
	}

	results := f.toSortedSlice(byID)
	return results
}

// getOrCreate returns existing result or creates new one.
func (f *WeightedFusion) getOrCreate(m map[string]*FusedResult, id string) *FusedResult {
	if r, ok := m[id]; ok {
		return r
	}
	r := &FusedResult{DocID: id}
	m[id] = r
	return r
}

// toSortedSlice converts map to slice and sorts by fused score with tie-breaking.
func (f *WeightedFusion) toSortedSlice(m map[string]*FusedResult) []*FusedResult {
	results := make([]*FusedResult, 0, len(m))
	for _, r := range m {
		results = append(results, r)
	}

	sort.Slice(results, func(i, j int) bool {
		return f.compare(results[i], results[j])
	})

	return results
}

// compare implements deterministic comparison for sorting.
// Returns true if a should rank before b.
//
// Priority:
//  1. Higher fused score
//  2. In both lists (true before false)
//  3. Higher BM25 score (exact match indicator)
//  4. Lexicographically smaller DocID (deterministic)
func (f *WeightedFusion) compare(a, b *FusedResult) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.InBothLists != b.InBothLists {
		return a.InBothLists
	}
	if a.BM25Score != b.BM25Score {
		return a.BM25Score > b.BM25Score
	}
	return a.DocID < b.DocID
}
