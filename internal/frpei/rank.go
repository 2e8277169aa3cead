package frpei

import "sort"

// Weights is the linear combination spec.md §4.10's Rank stage applies
// over each candidate's signals.
type Weights struct {
	ProviderTrust float64
	Relevance     float64
	Freshness     float64
	Popularity    float64
	EntityMatch   float64
	UserAffinity  float64
}

// DefaultWeights favors relevance and provider trust, as a reasonable
// baseline before any feedback-driven tuning exists.
func DefaultWeights() Weights {
	return Weights{
		ProviderTrust: 0.25,
		Relevance:     0.35,
		Freshness:     0.1,
		Popularity:    0.1,
		EntityMatch:   0.15,
		UserAffinity:  0.05,
	}
}

// Rank scores every candidate via the configured weights, optionally
// recording a per-signal explanation (explain=true), and sorts
// descending by score.
func Rank(candidates []Candidate, w Weights, explain bool) []Candidate {
	for i := range candidates {
		c := &candidates[i]
		contributions := []SignalContribution{
			{Signal: "provider_trust", Weight: w.ProviderTrust, Value: c.ProviderTrust},
			{Signal: "relevance", Weight: w.Relevance, Value: c.Relevance},
			{Signal: "freshness", Weight: w.Freshness, Value: c.Freshness},
			{Signal: "popularity", Weight: w.Popularity, Value: c.Popularity},
			{Signal: "entity_match", Weight: w.EntityMatch, Value: c.EntityMatch},
			{Signal: "user_affinity", Weight: w.UserAffinity, Value: c.UserAffinity},
		}
		var total float64
		for j := range contributions {
			contributions[j].Contribution = contributions[j].Weight * contributions[j].Value
			total += contributions[j].Contribution
		}
		c.Score = total
		if explain {
			c.Why = contributions
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates
}
