package enrich

import "strings"

// topicKeywords is a static keyword-bucket classifier: each topic scores
// by how many of its keywords appear in the lowercased content, and the
// highest-scoring bucket wins. "general" is returned only when no bucket
// scores above zero; between buckets tied on score, the one visited first
// in map iteration order wins, so that choice is not defined.
var topicKeywords = map[string][]string{
	"technology": {"software", "code", "api", "server", "database", "algorithm", "programming", "computer", "internet", "app", "cloud", "network"},
	"finance":    {"money", "investment", "market", "stock", "bitcoin", "crypto", "bank", "economy", "price", "trading", "fund", "currency"},
	"health":     {"health", "medical", "doctor", "disease", "treatment", "patient", "hospital", "medicine", "symptom", "therapy"},
	"politics":   {"government", "election", "senator", "policy", "vote", "congress", "president", "legislation", "campaign"},
	"sports":     {"game", "team", "player", "score", "match", "championship", "league", "tournament", "coach"},
	"science":    {"research", "study", "experiment", "scientist", "theory", "hypothesis", "physics", "biology", "chemistry"},
}

// ClassifyTopic returns the highest-scoring static topic bucket, or
// "general" when no bucket scores above zero.
func ClassifyTopic(content string) string {
	lower := strings.ToLower(content)

	best := "general"
	bestScore := 0
	for topic, keywords := range topicKeywords {
		score := 0
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = topic
		}
	}
	return best
}
