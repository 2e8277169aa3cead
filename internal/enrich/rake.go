package enrich

import (
	"regexp"
	"sort"
	"strings"
)

var rakeSplitPattern = regexp.MustCompile(`[.!?,;:()\[\]{}"'\n]`)
var rakeWordPattern = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9_-]*`)

// RAKEExtractor pulls multi-word candidate phrases out of text using the
// Rapid Automatic Keyword Extraction heuristic: split on stopwords and
// punctuation, score surviving phrases by word degree / word frequency.
type RAKEExtractor struct {
	topN int
}

// NewRAKEExtractor creates an extractor returning up to topN phrases.
func NewRAKEExtractor(topN int) *RAKEExtractor {
	if topN <= 0 {
		topN = 5
	}
	return &RAKEExtractor{topN: topN}
}

// Phrases extracts candidate keyphrases from content, longest/most central
// phrases scored highest.
func (r *RAKEExtractor) Phrases(content string) []string {
	sentences := rakeSplitPattern.Split(content, -1)

	var candidates [][]string
	for _, sentence := range sentences {
		words := rakeWordPattern.FindAllString(strings.ToLower(sentence), -1)
		var phrase []string
		for _, w := range words {
			if stopWords[w] {
				if len(phrase) > 0 {
					candidates = append(candidates, phrase)
					phrase = nil
				}
				continue
			}
			phrase = append(phrase, w)
		}
		if len(phrase) > 0 {
			candidates = append(candidates, phrase)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	freq := make(map[string]int)
	degree := make(map[string]int)
	for _, phrase := range candidates {
		extra := len(phrase) - 1
		for _, w := range phrase {
			freq[w]++
			degree[w] += extra
		}
	}

	type scoredPhrase struct {
		text  string
		score float64
	}
	seen := make(map[string]bool)
	var scored []scoredPhrase
	for _, phrase := range candidates {
		text := strings.Join(phrase, " ")
		if seen[text] {
			continue
		}
		seen[text] = true

		var score float64
		for _, w := range phrase {
			score += float64(degree[w]+freq[w]) / float64(freq[w])
		}
		scored = append(scored, scoredPhrase{text, score})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].text < scored[j].text
	})

	n := r.topN
	if n > len(scored) {
		n = len(scored)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = scored[i].text
	}
	return out
}
