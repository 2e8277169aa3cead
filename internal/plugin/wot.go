package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/federails/corequery/internal/search"
	"github.com/federails/corequery/internal/store"
)

const (
	wotCacheTTL         = time.Hour
	wotCacheCap         = 10_000
	wotExternalTimeout  = time.Second
	wotBatchSize        = 100
	wotMaxAmplification = 2.0
)

// FilterMode names one of the three WoT filtering presets spec.md §4.9
// lists; a document below its threshold is excluded from results.
type FilterMode string

const (
	FilterStrict   FilterMode = "strict"
	FilterModerate FilterMode = "moderate"
	FilterOpen     FilterMode = "open"
)

var filterThresholds = map[FilterMode]float64{
	FilterStrict:   0.7,
	FilterModerate: 0.3,
	FilterOpen:     0.0,
}

// Provider computes a trust score in [0,1] for a (viewer, target) pair.
type Provider interface {
	GetScore(ctx context.Context, viewer, target string) (float64, error)
	BatchGetScores(ctx context.Context, viewer string, targets []string) (map[string]float64, error)
}

// WoTConfig configures the WoT plugin: which provider to use, the
// amplification weight, and the filtering preset.
type WoTConfig struct {
	Provider   Provider
	Weight     float64 // default 1.0, clamped so max amplification is 2x
	FilterMode FilterMode
}

// WoTPlugin adjusts a document's score by the searching user's
// web-of-trust distance to the document's pubkey attribute, per
// spec.md §4.9: `adjusted = base × (1 + weight × wot)`.
type WoTPlugin struct {
	provider   Provider
	weight     float64
	filterMode FilterMode
}

// NewWoTPlugin builds the plugin from config, defaulting weight to 1.0
// and filter mode to open (no filtering) when unset.
func NewWoTPlugin(cfg WoTConfig) (*WoTPlugin, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("wot plugin: provider is required")
	}
	weight := cfg.Weight
	if weight == 0 {
		weight = 1.0
	}
	if weight > wotMaxAmplification-1 {
		weight = wotMaxAmplification - 1
	}
	mode := cfg.FilterMode
	if mode == "" {
		mode = FilterOpen
	}
	return &WoTPlugin{provider: cfg.Provider, weight: weight, filterMode: mode}, nil
}

func (p *WoTPlugin) Name() string { return "wot" }

// Apply fetches the viewer's trust score toward the document's pubkey
// attribute and amplifies baseScore by it. A missing user pubkey or
// provider error leaves the score unchanged (fail-open, as the plugin
// pipeline's non-fatal contract requires).
func (p *WoTPlugin) Apply(ctx context.Context, doc *store.Document, userCtx search.UserContext, baseScore float64) (float64, error) {
	if userCtx.UserPubkey == "" || doc == nil {
		return baseScore, nil
	}
	target := doc.Attributes["pubkey"]
	if target == "" {
		return baseScore, nil
	}

	wot, err := p.provider.GetScore(ctx, userCtx.UserPubkey, target)
	if err != nil {
		return baseScore, err
	}
	return baseScore * (1 + p.weight*wot), nil
}

// ShouldInclude reports whether a document passes the configured filter
// threshold for the viewer. Not part of ScoreModifier — candidate
// filtering happens one level up, before scoring, since spec.md's
// filtering mode drops candidates rather than merely rescoring them.
func (p *WoTPlugin) ShouldInclude(ctx context.Context, viewerPubkey, targetPubkey string) (bool, error) {
	threshold := filterThresholds[p.filterMode]
	if threshold == 0 {
		return true, nil
	}
	wot, err := p.provider.GetScore(ctx, viewerPubkey, targetPubkey)
	if err != nil {
		return true, err // fail-open
	}
	return wot >= threshold, nil
}

// ExternalWoTProvider calls a remote WoT scoring service, caching results
// and deduplicating concurrent identical requests.
type ExternalWoTProvider struct {
	client  *http.Client
	baseURL string
	cache   *expirable.LRU[string, float64]
	group   singleflight.Group
}

// NewExternalWoTProvider creates a provider against baseURL (expected to
// expose `GET /wot/score?viewer=&target=`; that is the only endpoint used).
func NewExternalWoTProvider(baseURL string) *ExternalWoTProvider {
	return &ExternalWoTProvider{
		client:  &http.Client{Timeout: wotExternalTimeout},
		baseURL: baseURL,
		cache:   expirable.NewLRU[string, float64](wotCacheCap, nil, wotCacheTTL),
	}
}

func wotCacheKey(viewer, target string) string { return viewer + "|" + target }

// GetScore checks the cache, then deduplicates concurrent identical
// in-flight requests via singleflight before calling the remote service.
func (p *ExternalWoTProvider) GetScore(ctx context.Context, viewer, target string) (float64, error) {
	key := wotCacheKey(viewer, target)
	if v, ok := p.cache.Get(key); ok {
		return v, nil
	}

	v, err, _ := p.group.Do(key, func() (any, error) {
		return p.fetchOne(ctx, viewer, target)
	})
	if err != nil {
		return 0, err
	}
	score := v.(float64)
	p.cache.Add(key, score)
	return score, nil
}

func (p *ExternalWoTProvider) fetchOne(ctx context.Context, viewer, target string) (float64, error) {
	url := fmt.Sprintf("%s/wot/score?viewer=%s&target=%s", p.baseURL, viewer, target)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("wot service returned status %d", resp.StatusCode)
	}

	var body struct {
		Score float64 `json:"score"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode wot response: %w", err)
	}
	return body.Score, nil
}

// BatchGetScores checks the cache first, then fetches each remaining
// target with its own GET request, walking them in groups of
// wotBatchSize; no batch endpoint is called. A target whose fetch fails
// is left out of the returned map and no error is returned.
func (p *ExternalWoTProvider) BatchGetScores(ctx context.Context, viewer string, targets []string) (map[string]float64, error) {
	out := make(map[string]float64, len(targets))
	var missing []string
	for _, t := range targets {
		if v, ok := p.cache.Get(wotCacheKey(viewer, t)); ok {
			out[t] = v
		} else {
			missing = append(missing, t)
		}
	}

	for start := 0; start < len(missing); start += wotBatchSize {
		end := start + wotBatchSize
		if end > len(missing) {
			end = len(missing)
		}
		for _, t := range missing[start:end] {
			score, err := p.fetchOne(ctx, viewer, t)
			if err != nil {
				continue // fall through for this target, leave it absent
			}
			p.cache.Add(wotCacheKey(viewer, t), score)
			out[t] = score
		}
	}
	return out, nil
}
