package nostrnorm

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/federails/corequery/internal/relay"
)

// SpamFilterConfig exposes the spam gate's thresholds as tunables; the
// zero value is not usable, use DefaultSpamFilterConfig.
type SpamFilterConfig struct {
	MaxFailedChecks  int     // spam if failed checks >= this
	MaxLinkRatio     float64 // URLs / words
	MaxMentions      int
	DuplicateWindow  time.Duration
	MaxDuplicatesSeen int // allowed repeats of the same content hash per pubkey within the window
}

// DefaultSpamFilterConfig matches the spec's stated defaults: 2 of 5
// checks failing is spam, 15% link ratio, 24h duplicate window, at most
// 3 repeats, at most 10 mentions.
func DefaultSpamFilterConfig() SpamFilterConfig {
	return SpamFilterConfig{
		MaxFailedChecks:   2,
		MaxLinkRatio:      0.15,
		MaxMentions:       10,
		DuplicateWindow:   24 * time.Hour,
		MaxDuplicatesSeen: 3,
	}
}

var (
	urgencyPattern   = regexp.MustCompile(`(?i)\b(act now|limited time|click here|urgent|don't miss|guaranteed)\b`)
	cryptoSpamPattern = regexp.MustCompile(`(?i)\b(airdrop|free crypto|1000x|pump|moon soon|dm me for)\b`)
	repeatedCharRun  = regexp.MustCompile(`(.)\1{4,}`) // same rune 5+ times in a row
	emojiRun         = regexp.MustCompile(`[\x{1F300}-\x{1FAFF}\x{2600}-\x{27BF}]{3,}`)
)

type dupKey struct {
	pubkey string
	hash   string
}

// SpamFilter runs the five independent quality checks against a rolling
// window of recently-seen content hashes. One filter instance should be
// shared across an ingestion run so the duplicate check has memory.
type SpamFilter struct {
	cfg SpamFilterConfig

	mu   sync.Mutex
	seen map[dupKey][]time.Time
}

// NewSpamFilter creates a filter with the given config.
func NewSpamFilter(cfg SpamFilterConfig) *SpamFilter {
	return &SpamFilter{cfg: cfg, seen: make(map[dupKey][]time.Time)}
}

// Check runs all five checks against ev/extracted and reports whether the
// event is spam (>= cfg.MaxFailedChecks checks failed) along with the
// names of the checks that failed.
func (f *SpamFilter) Check(ev relay.Event, e Extracted) (spam bool, failed []string) {
	if !f.duplicateOK(ev) {
		failed = append(failed, "duplicate_content")
	}
	if !linkRatioOK(ev.Content, f.cfg.MaxLinkRatio) {
		failed = append(failed, "link_ratio")
	}
	if !suspiciousPatternOK(ev.Content) {
		failed = append(failed, "suspicious_pattern")
	}
	if !contentQualityOK(ev.Content) {
		failed = append(failed, "content_quality")
	}
	if len(e.Mentions) > f.cfg.MaxMentions {
		failed = append(failed, "mention_count")
	}

	return len(failed) >= f.cfg.MaxFailedChecks, failed
}

// duplicateOK records ev's content hash for ev.PubKey and reports false
// once the same hash has been seen more than MaxDuplicatesSeen times
// within DuplicateWindow.
func (f *SpamFilter) duplicateOK(ev relay.Event) bool {
	hash := contentHash(ev.Content)
	key := dupKey{pubkey: ev.PubKey, hash: hash}
	now := time.Now()

	f.mu.Lock()
	defer f.mu.Unlock()

	cutoff := now.Add(-f.cfg.DuplicateWindow)
	times := f.seen[key]
	kept := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	f.seen[key] = append(kept, now)

	return len(f.seen[key]) <= f.cfg.MaxDuplicatesSeen
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func linkRatioOK(content string, maxRatio float64) bool {
	words := strings.Fields(content)
	if len(words) == 0 {
		return true
	}
	urls := urlPattern.FindAllString(content, -1)
	return float64(len(urls))/float64(len(words)) < maxRatio
}

func suspiciousPatternOK(content string) bool {
	count := 0
	if urgencyPattern.MatchString(content) {
		count++
	}
	if cryptoSpamPattern.MatchString(content) {
		count++
	}
	if repeatedCharRun.MatchString(content) {
		count++
	}
	if emojiRun.MatchString(content) {
		count++
	}
	return count < 2
}

func contentQualityOK(content string) bool {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return false
	}

	urls := urlPattern.FindAllString(content, -1)
	if len(trimmed) < 40 && len(urls) > 0 {
		return false
	}

	letters, upper := 0, 0
	for _, r := range trimmed {
		if r >= 'a' && r <= 'z' {
			letters++
		} else if r >= 'A' && r <= 'Z' {
			letters++
			upper++
		}
	}
	if letters > 10 && float64(upper)/float64(letters) > 0.5 {
		return false
	}

	return true
}
