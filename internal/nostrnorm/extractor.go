package nostrnorm

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/federails/corequery/internal/relay"
)

var (
	urlPattern     = regexp.MustCompile(`https?://\S+`)
	mentionPattern = regexp.MustCompile(`nostr:(npub1[a-z0-9]+|nprofile1[a-z0-9]+)`)
	hashtagPattern = regexp.MustCompile(`#(\w+)`)
)

// Extract produces the indexable fields for an event according to its
// category's strategy. Every strategy shares tag/mention/URL extraction
// and the quality score; only title/content selection differs.
func Extract(ev relay.Event, info KindInfo) Extracted {
	tags, mentions, dTag := scanTags(ev.Tags)
	urls := urlPattern.FindAllString(ev.Content, -1)
	for _, h := range hashtagPattern.FindAllStringSubmatch(ev.Content, -1) {
		tags = append(tags, h[1])
	}
	for _, m := range mentionPattern.FindAllStringSubmatch(ev.Content, -1) {
		mentions = append(mentions, m[1])
	}

	title, content := extractByCategory(info.Category, ev, tags)

	metadata := map[string]string{
		"kind": fmt.Sprintf("%d", ev.Kind),
	}

	extracted := Extracted{
		Title:    title,
		Content:  content,
		Tags:     dedupe(tags),
		Metadata: metadata,
		Mentions: dedupe(mentions),
		URLs:     dedupe(urls),
	}

	if dTag != "" {
		extracted.Addressable = fmt.Sprintf("%d:%s:%s", ev.Kind, ev.PubKey, dTag)
	}

	extracted.QualityScore = ScoreQuality(extracted, ev)

	return extracted
}

// extractByCategory applies a kind-specific title/content strategy. Short
// notes have no title; long-form/show/episode/classified/Q&A events carry
// one in a "title" tag.
func extractByCategory(cat Category, ev relay.Event, tags []string) (title, content string) {
	switch cat {
	case CategoryLongForm, CategoryDraft:
		return tagValue(ev.Tags, "title"), ev.Content
	case CategoryPodcast:
		t := tagValue(ev.Tags, "title")
		if t == "" {
			t = tagValue(ev.Tags, "subject")
		}
		return t, ev.Content
	case CategoryClassified:
		return tagValue(ev.Tags, "title"), ev.Content
	case CategoryQA:
		return tagValue(ev.Tags, "subject"), ev.Content
	case CategoryProfile:
		return tagValue(ev.Tags, "name"), ev.Content
	default:
		return "", ev.Content
	}
}

// scanTags walks an event's tag array once, collecting hashtags ("t"
// tags), pubkey mentions ("p" tags), and the addressable "d" tag.
func scanTags(rawTags [][]string) (tags, mentions []string, dTag string) {
	for _, tag := range rawTags {
		if len(tag) < 2 {
			continue
		}
		switch tag[0] {
		case "t":
			tags = append(tags, tag[1])
		case "p":
			mentions = append(mentions, tag[1])
		case "d":
			dTag = tag[1]
		}
	}
	return tags, mentions, dTag
}

func tagValue(rawTags [][]string, key string) string {
	for _, tag := range rawTags {
		if len(tag) >= 2 && tag[0] == key {
			return tag[1]
		}
	}
	return ""
}

func dedupe(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}

// ScoreQuality computes a 0..1 quality score from the extracted fields
// and the raw event content: a 0.5 base, +0.1 for each length tier
// reached (100, 500, 2000 chars), -0.15 under 40 chars, +0.05 each for
// 1-3 mentions and 1-5 tags, -0.2 when URLs exceed 15% of the words, and
// +0.1 for long-form (kind 30023) events.
func ScoreQuality(e Extracted, ev relay.Event) float64 {
	score := 0.5

	length := len(ev.Content)
	for _, tier := range []int{100, 500, 2000} {
		if length >= tier {
			score += 0.1
		}
	}
	if length < 40 {
		score -= 0.15
	}

	if n := len(e.Mentions); n > 0 && n <= 3 {
		score += 0.05
	}
	if n := len(e.Tags); n > 0 && n <= 5 {
		score += 0.05
	}

	if len(e.URLs) > 0 {
		words := strings.Fields(ev.Content)
		if len(words) > 0 {
			ratio := float64(len(e.URLs)) / float64(len(words))
			if ratio > 0.15 {
				score -= 0.2
			}
		}
	}

	if Classify(ev.Kind).Category == CategoryLongForm {
		score += 0.1
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}
