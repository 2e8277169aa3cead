package plugin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/federails/corequery/internal/relay"
	"github.com/federails/corequery/internal/search"
	"github.com/federails/corequery/internal/store"
)

func TestFollowGraph_HopDistance_DirectFollowIsOneHop(t *testing.T) {
	g := NewFollowGraph([]relay.Event{
		{PubKey: "alice", Kind: 3, Tags: [][]string{{"p", "bob"}}, CreatedAt: time.Unix(1, 0)},
	})
	assert.Equal(t, 1, g.hopDistance("alice", "bob"))
}

func TestFollowGraph_HopDistance_TransitiveFollowIsTwoHops(t *testing.T) {
	g := NewFollowGraph([]relay.Event{
		{PubKey: "alice", Kind: 3, Tags: [][]string{{"p", "bob"}}, CreatedAt: time.Unix(1, 0)},
		{PubKey: "bob", Kind: 3, Tags: [][]string{{"p", "carol"}}, CreatedAt: time.Unix(1, 0)},
	})
	assert.Equal(t, 2, g.hopDistance("alice", "carol"))
}

func TestFollowGraph_HopDistance_BeyondMaxHopsIsUnreached(t *testing.T) {
	g := NewFollowGraph([]relay.Event{
		{PubKey: "a", Kind: 3, Tags: [][]string{{"p", "b"}}, CreatedAt: time.Unix(1, 0)},
		{PubKey: "b", Kind: 3, Tags: [][]string{{"p", "c"}}, CreatedAt: time.Unix(1, 0)},
		{PubKey: "c", Kind: 3, Tags: [][]string{{"p", "d"}}, CreatedAt: time.Unix(1, 0)},
		{PubKey: "d", Kind: 3, Tags: [][]string{{"p", "e"}}, CreatedAt: time.Unix(1, 0)},
	})
	assert.Equal(t, -1, g.hopDistance("a", "e"))
}

func TestFollowGraph_NewerContactListReplacesOlder(t *testing.T) {
	g := NewFollowGraph([]relay.Event{
		{PubKey: "alice", Kind: 3, Tags: [][]string{{"p", "bob"}}, CreatedAt: time.Unix(1, 0)},
		{PubKey: "alice", Kind: 3, Tags: [][]string{{"p", "dave"}}, CreatedAt: time.Unix(2, 0)},
	})
	assert.Equal(t, -1, g.hopDistance("alice", "bob"))
	assert.Equal(t, 1, g.hopDistance("alice", "dave"))
}

func TestLocalWoTProvider_GetScore_AppliesHopDecay(t *testing.T) {
	g := NewFollowGraph([]relay.Event{
		{PubKey: "alice", Kind: 3, Tags: [][]string{{"p", "bob"}}, CreatedAt: time.Unix(1, 0)},
		{PubKey: "bob", Kind: 3, Tags: [][]string{{"p", "carol"}}, CreatedAt: time.Unix(1, 0)},
	})
	p := NewLocalWoTProvider(g)

	direct, err := p.GetScore(context.Background(), "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, hopScoreDirect, direct)

	second, err := p.GetScore(context.Background(), "alice", "carol")
	require.NoError(t, err)
	assert.Equal(t, hopScoreSecond, second)

	unreached, err := p.GetScore(context.Background(), "alice", "stranger")
	require.NoError(t, err)
	assert.Equal(t, hopScoreUnreached, unreached)
}

func TestLocalWoTProvider_BatchGetScores_ScoresEachTarget(t *testing.T) {
	g := NewFollowGraph([]relay.Event{
		{PubKey: "alice", Kind: 3, Tags: [][]string{{"p", "bob"}}, CreatedAt: time.Unix(1, 0)},
	})
	p := NewLocalWoTProvider(g)

	scores, err := p.BatchGetScores(context.Background(), "alice", []string{"bob", "stranger"})
	require.NoError(t, err)
	assert.Equal(t, hopScoreDirect, scores["bob"])
	assert.Equal(t, hopScoreUnreached, scores["stranger"])
}

func TestExternalWoTProvider_GetScore_FetchesAndCaches(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(map[string]float64{"score": 0.42})
	}))
	defer srv.Close()

	p := NewExternalWoTProvider(srv.URL)
	first, err := p.GetScore(context.Background(), "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, 0.42, first)

	second, err := p.GetScore(context.Background(), "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, 0.42, second)
	assert.Equal(t, 1, calls, "second call should be served from cache")
}

func TestExternalWoTProvider_GetScore_PropagatesUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewExternalWoTProvider(srv.URL)
	_, err := p.GetScore(context.Background(), "alice", "bob")
	assert.Error(t, err)
}

func TestExternalWoTProvider_BatchGetScores_SkipsCachedEntries(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(map[string]float64{"score": 0.9})
	}))
	defer srv.Close()

	p := NewExternalWoTProvider(srv.URL)
	_, err := p.GetScore(context.Background(), "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	scores, err := p.BatchGetScores(context.Background(), "alice", []string{"bob", "carol"})
	require.NoError(t, err)
	assert.Equal(t, 0.9, scores["bob"])
	assert.Equal(t, 0.9, scores["carol"])
	assert.Equal(t, 2, calls, "bob should be served from cache, only carol fetched")
}

type stubProvider struct {
	score float64
	err   error
}

func (s *stubProvider) GetScore(context.Context, string, string) (float64, error) { return s.score, s.err }
func (s *stubProvider) BatchGetScores(context.Context, string, []string) (map[string]float64, error) {
	return nil, s.err
}

func TestNewWoTPlugin_RequiresProvider(t *testing.T) {
	_, err := NewWoTPlugin(WoTConfig{})
	assert.Error(t, err)
}

func TestNewWoTPlugin_ClampsWeightToMaxAmplification(t *testing.T) {
	p, err := NewWoTPlugin(WoTConfig{Provider: &stubProvider{}, Weight: 10})
	require.NoError(t, err)
	assert.Equal(t, wotMaxAmplification-1, p.weight)
}

func TestWoTPlugin_Apply_AmplifiesScoreByTrust(t *testing.T) {
	p, err := NewWoTPlugin(WoTConfig{Provider: &stubProvider{score: 1.0}, Weight: 1.0})
	require.NoError(t, err)

	doc := &store.Document{Attributes: map[string]string{"pubkey": "bob"}}
	userCtx := search.UserContext{UserPubkey: "alice"}

	adjusted, err := p.Apply(context.Background(), doc, userCtx, 10.0)
	require.NoError(t, err)
	assert.Equal(t, 20.0, adjusted) // 10 * (1 + 1.0*1.0), the 2x ceiling
}

func TestWoTPlugin_Apply_NoUserPubkeyLeavesScoreUnchanged(t *testing.T) {
	p, err := NewWoTPlugin(WoTConfig{Provider: &stubProvider{score: 1.0}})
	require.NoError(t, err)

	doc := &store.Document{Attributes: map[string]string{"pubkey": "bob"}}
	adjusted, err := p.Apply(context.Background(), doc, search.UserContext{}, 10.0)
	require.NoError(t, err)
	assert.Equal(t, 10.0, adjusted)
}

func TestWoTPlugin_Apply_MissingDocPubkeyLeavesScoreUnchanged(t *testing.T) {
	p, err := NewWoTPlugin(WoTConfig{Provider: &stubProvider{score: 1.0}})
	require.NoError(t, err)

	doc := &store.Document{Attributes: map[string]string{}}
	adjusted, err := p.Apply(context.Background(), doc, search.UserContext{UserPubkey: "alice"}, 10.0)
	require.NoError(t, err)
	assert.Equal(t, 10.0, adjusted)
}

func TestWoTPlugin_ShouldInclude_StrictModeFiltersLowTrust(t *testing.T) {
	p, err := NewWoTPlugin(WoTConfig{Provider: &stubProvider{score: 0.5}, FilterMode: FilterStrict})
	require.NoError(t, err)

	ok, err := p.ShouldInclude(context.Background(), "alice", "bob")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWoTPlugin_ShouldInclude_OpenModeNeverFilters(t *testing.T) {
	p, err := NewWoTPlugin(WoTConfig{Provider: &stubProvider{score: 0.0}, FilterMode: FilterOpen})
	require.NoError(t, err)

	ok, err := p.ShouldInclude(context.Background(), "alice", "bob")
	require.NoError(t, err)
	assert.True(t, ok)
}
