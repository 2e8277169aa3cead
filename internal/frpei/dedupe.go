package frpei

// Deduplicate collapses candidates sharing a canonical_url, keeping the
// one from the higher trust-tier provider and unioning their signals
// (source providers, relevance/popularity taken as the max seen).
func Deduplicate(candidates []Candidate, trustTier map[string]int) []Candidate {
	byURL := make(map[string]int) // canonical URL -> index into out
	out := make([]Candidate, 0, len(candidates))

	for _, c := range candidates {
		idx, exists := byURL[c.CanonicalURL]
		if !exists {
			byURL[c.CanonicalURL] = len(out)
			out = append(out, c)
			continue
		}

		existing := &out[idx]
		existing.SourceProviders = unionStrings(existing.SourceProviders, c.SourceProviders)
		if c.Relevance > existing.Relevance {
			existing.Relevance = c.Relevance
		}
		if c.Popularity > existing.Popularity {
			existing.Popularity = c.Popularity
		}
		if trustTier[c.Provider] > trustTier[existing.Provider] {
			existing.Provider = c.Provider
			existing.Title = c.Title
			existing.Snippet = c.Snippet
			existing.ContentType = c.ContentType
		}
	}
	return out
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
