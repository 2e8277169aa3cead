package frpei

import "github.com/federails/corequery/internal/enrich"

// Enrich attaches entity and topic metadata to a candidate, using the
// same rule-based NER and topic classifier the index pipeline runs over
// indexed documents, applied here to provider-supplied snippets. This is
// a lightweight per-candidate pass, not the full tagging/relationship
// persistence internal/enrich.Pipeline performs for indexed documents.
func Enrich(c Candidate) Candidate {
	text := c.Title + " " + c.Snippet
	entities := enrich.ExtractEntities(text)
	values := make([]string, 0, len(entities))
	for _, e := range entities {
		values = append(values, e.Normalized)
	}
	c.Entities = values
	c.Topics = []string{enrich.ClassifyTopic(text)}
	return c
}

// EntityMatchScore scores how many of a candidate's entities intersect
// the query's own expanded terms, feeding the rank stage's entity_match
// signal.
func EntityMatchScore(c Candidate, queryTerms []string) float64 {
	if len(c.Entities) == 0 || len(queryTerms) == 0 {
		return 0
	}
	terms := make(map[string]struct{}, len(queryTerms))
	for _, t := range queryTerms {
		terms[t] = struct{}{}
	}
	matches := 0
	for _, e := range c.Entities {
		if _, ok := terms[e]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(c.Entities))
}
