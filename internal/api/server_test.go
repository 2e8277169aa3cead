package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/federails/corequery/internal/connector"
	"github.com/federails/corequery/internal/ontology"
	"github.com/federails/corequery/internal/search"
	"github.com/federails/corequery/internal/store"
	"github.com/federails/corequery/internal/webhook"
)

// mockEngine is a configurable test double for search.SearchEngine.
type mockEngine struct {
	searchFn func(ctx context.Context, req search.SearchRequest) (*search.SearchResponse, error)
	lastReq  search.SearchRequest
}

func (m *mockEngine) Search(ctx context.Context, req search.SearchRequest) (*search.SearchResponse, error) {
	m.lastReq = req
	if m.searchFn != nil {
		return m.searchFn(ctx, req)
	}
	return &search.SearchResponse{Results: []*search.SearchResult{}}, nil
}

func (m *mockEngine) Index(ctx context.Context, docs []*store.Document) error { return nil }
func (m *mockEngine) Delete(ctx context.Context, docIDs []string) error       { return nil }
func (m *mockEngine) Stats() *search.EngineStats                              { return &search.EngineStats{} }
func (m *mockEngine) Close() error                                            { return nil }

var _ search.SearchEngine = (*mockEngine)(nil)

// memWebhookStore is an in-memory webhook.Store.
type memWebhookStore struct {
	subs map[string]webhook.Subscription
}

func newMemWebhookStore() *memWebhookStore {
	return &memWebhookStore{subs: make(map[string]webhook.Subscription)}
}

func (m *memWebhookStore) ListSubscriptions(ctx context.Context) ([]webhook.Subscription, error) {
	out := make([]webhook.Subscription, 0, len(m.subs))
	for _, s := range m.subs {
		out = append(out, s)
	}
	return out, nil
}

func (m *memWebhookStore) SaveSubscription(ctx context.Context, sub webhook.Subscription) error {
	m.subs[sub.ID] = sub
	return nil
}

func (m *memWebhookStore) DeleteSubscription(ctx context.Context, id string) error {
	delete(m.subs, id)
	return nil
}

// memConnectorStore is an in-memory store.ConnectorStore.
type memConnectorStore struct {
	recs map[string]store.ConnectorRecord
}

func newMemConnectorStore() *memConnectorStore {
	return &memConnectorStore{recs: make(map[string]store.ConnectorRecord)}
}

func (m *memConnectorStore) ListConnectors(ctx context.Context) ([]store.ConnectorRecord, error) {
	out := make([]store.ConnectorRecord, 0, len(m.recs))
	for _, r := range m.recs {
		out = append(out, r)
	}
	return out, nil
}

func (m *memConnectorStore) GetConnector(ctx context.Context, id string) (*store.ConnectorRecord, error) {
	if r, ok := m.recs[id]; ok {
		return &r, nil
	}
	return nil, nil
}

func (m *memConnectorStore) SaveConnector(ctx context.Context, rec store.ConnectorRecord) error {
	m.recs[rec.ID] = rec
	return nil
}

func (m *memConnectorStore) DeleteConnector(ctx context.Context, id string) error {
	delete(m.recs, id)
	return nil
}

func doRequest(s *Server, method, target, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var envelope errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Error
}

func TestHandleHealth_NoPreflightReportsOK(t *testing.T) {
	s := New(Deps{})
	rec := doRequest(s, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	var body healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
}

func TestHandleSearch_ReturnsResultEnvelope(t *testing.T) {
	engine := &mockEngine{searchFn: func(_ context.Context, _ search.SearchRequest) (*search.SearchResponse, error) {
		doc := &store.Document{
			ID: "d1", Title: "Lightning privacy", Content: "Lightning privacy matters",
			DocumentType: "nostr:note", QualityScore: 0.8,
			Attributes: map[string]string{"pubkey": "P1"},
			IndexedAt:  time.Now(),
		}
		return &search.SearchResponse{
			Results: []*search.SearchResult{{Document: doc, Score: 0.91}},
			Total:   1,
		}, nil
	}}
	s := New(Deps{Engine: engine})

	rec := doRequest(s, http.MethodGet, "/api/search?q=privacy&mode=hybrid&limit=3", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body searchResponseDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "privacy", body.Query)
	assert.Equal(t, "hybrid", body.Mode)
	assert.Equal(t, 1, body.Count)
	require.Len(t, body.Results, 1)
	assert.Equal(t, "d1", body.Results[0].ID)
	assert.Equal(t, 0.91, body.Results[0].Score)
	assert.Equal(t, "nostr:note", body.Results[0].DocumentType)

	assert.Equal(t, 3, engine.lastReq.Limit)
	assert.True(t, engine.lastReq.Expand)
}

func TestHandleSearch_QueryParamsReachTheEngine(t *testing.T) {
	engine := &mockEngine{}
	s := New(Deps{Engine: engine})

	rec := doRequest(s, http.MethodGet,
		"/api/search?q=bitcoin&mode=text&type=nostr:article&minQuality=0.5&tags=a,b&user_pubkey=Pv&expand=false", "")
	require.Equal(t, http.StatusOK, rec.Code)

	req := engine.lastReq
	assert.Equal(t, search.ModeText, req.Mode)
	assert.Equal(t, []string{"nostr:article"}, req.Filters.DocumentTypes)
	assert.Equal(t, 0.5, req.Filters.MinQuality)
	assert.Equal(t, []string{"a", "b"}, req.Filters.TagsAny)
	assert.Equal(t, "Pv", req.UserContext.UserPubkey)
	assert.False(t, req.Expand)
}

func TestHandleSearch_InvalidModeIsValidationError(t *testing.T) {
	s := New(Deps{Engine: &mockEngine{}})
	rec := doRequest(s, http.MethodGet, "/api/search?q=x&mode=psychic", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "search.invalid_request", body.Code)
	assert.Equal(t, "VALIDATION", body.Kind)
}

func TestHandleAsk_EmptyQueryIsValidationError(t *testing.T) {
	s := New(Deps{Engine: &mockEngine{}})
	rec := doRequest(s, http.MethodPost, "/api/ask", `{"query":"  "}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ask.empty_query", decodeError(t, rec).Code)
}

func TestMissingDependencyAnswersDegraded(t *testing.T) {
	s := New(Deps{})

	for _, target := range []string{"/api/connectors", "/api/webhooks", "/api/ontology"} {
		rec := doRequest(s, http.MethodGet, target, "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, target)
		assert.Equal(t, "DEGRADED", decodeError(t, rec).Kind, target)
	}
}

func TestWebhookLifecycle(t *testing.T) {
	hooks := newMemWebhookStore()
	s := New(Deps{Webhooks: hooks})

	rec := doRequest(s, http.MethodPost, "/api/webhooks", `{"url":"https://example.com/hook","secret":"s3cret","events":["connector.run.completed"]}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created webhook.Subscription
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	rec = doRequest(s, http.MethodGet, "/api/webhooks", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []webhook.Subscription
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Len(t, listed, 1)

	rec = doRequest(s, http.MethodDelete, "/api/webhooks/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, hooks.subs)
}

func TestHandleCreateWebhook_MissingSecretIsValidationError(t *testing.T) {
	s := New(Deps{Webhooks: newMemWebhookStore()})
	rec := doRequest(s, http.MethodPost, "/api/webhooks", `{"url":"https://example.com/hook"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "webhook.missing_fields", decodeError(t, rec).Code)
}

func TestHandleCreateConnector_UnknownKindIsValidationError(t *testing.T) {
	s := New(Deps{Connectors: newMemConnectorStore(), Registry: connector.NewRegistry()})
	rec := doRequest(s, http.MethodPost, "/api/connectors", `{"name":"kb","connector_type":"carrier_pigeon","config":{}}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "connector.unknown_kind", decodeError(t, rec).Code)
}

func TestHandleGetConnector_UnknownIDIs404(t *testing.T) {
	s := New(Deps{Connectors: newMemConnectorStore(), Registry: connector.NewRegistry()})
	rec := doRequest(s, http.MethodGet, "/api/connectors/nope", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "connector.not_found", decodeError(t, rec).Code)
}

func TestHandlePutTrigger_OmittedEnabledDefaultsTrue(t *testing.T) {
	exp := ontology.NewExpander(nil)
	s := New(Deps{Ontology: exp})

	rec := doRequest(s, http.MethodPut, "/api/triggers/t1", `{"keywords":["breaking"],"doc_type_boost":{"news:article":2.0}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	triggers := exp.Snapshot().Triggers
	require.Len(t, triggers, 1)
	assert.True(t, triggers[0].Enabled)
}

func TestHandlePutTrigger_InvalidPatternIsValidationError(t *testing.T) {
	s := New(Deps{Ontology: ontology.NewExpander(nil)})
	rec := doRequest(s, http.MethodPut, "/api/triggers/t1", `{"pattern":"(["}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "trigger.invalid_pattern", decodeError(t, rec).Code)
}

func TestHandlePutTrigger_NoConditionIsValidationError(t *testing.T) {
	s := New(Deps{Ontology: ontology.NewExpander(nil)})
	rec := doRequest(s, http.MethodPut, "/api/triggers/t1", `{"priority":5}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "trigger.missing_condition", decodeError(t, rec).Code)
}

func TestHandlePutConcept_UpdatesExpansionImmediately(t *testing.T) {
	exp := ontology.NewExpander(nil)
	s := New(Deps{Ontology: exp})

	rec := doRequest(s, http.MethodPut, "/api/ontology/c-btc", `{"term":"bitcoin","aliases":["btc"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	terms := exp.ExpandTerms(context.Background(), "btc news")
	assert.Contains(t, terms, "bitcoin")
}
