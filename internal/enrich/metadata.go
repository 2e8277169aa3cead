package enrich

import (
	"regexp"
	"strings"
)

const wordsPerMinute = 200

// hasCodePattern/hasTablePattern/hasListPattern detect fenced code blocks,
// GFM tables and bulleted or numbered lists, flagging content features.
var (
	hasCodePattern  = regexp.MustCompile("(?s)```[^`]*```")
	hasTablePattern = regexp.MustCompile(`(?m)^\|.+\|$(\n^\|[-:|]+\|$)?(\n^\|.+\|$)*`)
	hasListPattern  = regexp.MustCompile(`(?m)^\s*([-*+]|\d+\.)\s+\S`)
)

// BuildMetadata derives the document-level features spec.md §4.6 lists
// beyond tags and entities. author/language are taken from the caller's
// best-known values (typically document attributes) since content alone
// rarely identifies either reliably.
func BuildMetadata(content, author, language string) Metadata {
	words := strings.Fields(content)
	wordCount := len(words)

	readingSeconds := (wordCount * 60) / wordsPerMinute
	if wordCount > 0 && readingSeconds == 0 {
		readingSeconds = 1
	}

	sentiment, confidence := ClassifySentiment(content)

	if language == "" {
		language = "en"
	}

	return Metadata{
		ReadingTimeSeconds: readingSeconds,
		WordCount:          wordCount,
		Sentiment:          sentiment,
		SentimentScore:     confidence,
		HasCode:            hasCodePattern.MatchString(content),
		HasTable:           hasTablePattern.MatchString(content),
		HasList:            hasListPattern.MatchString(content),
		Author:             author,
		Language:           language,
	}
}
