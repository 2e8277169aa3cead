package enrich

import "strings"

var positiveWords = buildWordSet(`good great excellent amazing wonderful fantastic love best happy
	positive success successful beneficial helpful brilliant outstanding superb perfect delightful
	impressive remarkable awesome fabulous terrific pleased glad excited grateful thankful`)

var negativeWords = buildWordSet(`bad terrible awful horrible worst hate negative fail failure
	disappointing poor sad angry frustrated annoyed broken useless worthless dreadful miserable
	unfortunate regret disaster painful upset disgusting`)

func buildWordSet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.Fields(s) {
		out[w] = true
	}
	return out
}

// ClassifySentiment scores content by positive/negative lexicon hits and
// returns the majority polarity (neutral when the net share is within
// ±0.15) with a confidence of hits/(hits+5), which grows with the number
// of lexicon hits. Content with no lexicon hits is neutral with
// confidence 1; empty content is neutral with confidence 0.
func ClassifySentiment(content string) (Sentiment, float64) {
	tokens := tokenize(content)
	if len(tokens) == 0 {
		return SentimentNeutral, 0
	}

	var pos, neg int
	for _, tok := range tokens {
		if positiveWords[tok] {
			pos++
		}
		if negativeWords[tok] {
			neg++
		}
	}

	total := pos + neg
	if total == 0 {
		return SentimentNeutral, 1
	}

	diff := float64(pos-neg) / float64(total)
	confidence := float64(total) / float64(total+5) // damp confidence on sparse hits

	switch {
	case diff > 0.15:
		return SentimentPositive, confidence
	case diff < -0.15:
		return SentimentNegative, confidence
	default:
		return SentimentNeutral, confidence
	}
}
