package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu   sync.Mutex
	subs map[string]Subscription
}

func newMemStore(subs ...Subscription) *memStore {
	m := &memStore{subs: map[string]Subscription{}}
	for _, s := range subs {
		m.subs[s.ID] = s
	}
	return m
}

func (m *memStore) ListSubscriptions(context.Context) ([]Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Subscription
	for _, s := range m.subs {
		out = append(out, s)
	}
	return out, nil
}

func (m *memStore) SaveSubscription(_ context.Context, sub Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[sub.ID] = sub
	return nil
}

func (m *memStore) DeleteSubscription(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subs, id)
	return nil
}

func TestSignAndVerify_RoundTrip(t *testing.T) {
	body := []byte(`{"event":"connector.run.completed"}`)
	sig := Sign("s3cr3t", body)
	assert.True(t, Verify("s3cr3t", body, sig))
	assert.False(t, Verify("wrong-secret", body, sig))
}

func TestSink_Emit_DeliversSignedPayloadToMatchingSubscription(t *testing.T) {
	received := make(chan *http.Request, 1)
	var bodyBytes []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bodyBytes, _ = io.ReadAll(r.Body)
		received <- r
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := newMemStore(Subscription{ID: "sub1", URL: srv.URL, Secret: "topsecret", Events: []string{"connector.run.completed"}})
	sink := NewSink(store, nil)

	sink.Emit(context.Background(), "connector.run.completed", "c1", map[string]string{"run_id": "r1"})

	req := <-received
	require.NotNil(t, req)
	assert.NotEmpty(t, req.Header.Get(signatureHeader))
	assert.True(t, Verify("topsecret", bodyBytes, req.Header.Get(signatureHeader)))

	var decoded Event
	require.NoError(t, json.Unmarshal(bodyBytes, &decoded))
	assert.Equal(t, "c1", decoded.ConnectorID)
}

func TestSink_Emit_SkipsSubscriptionNotSubscribedToEvent(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	store := newMemStore(Subscription{ID: "sub1", URL: srv.URL, Secret: "x", Events: []string{"connector.run.failed"}})
	sink := NewSink(store, nil)
	sink.Emit(context.Background(), "connector.run.completed", "c1", nil)

	assert.False(t, called)
}

func TestSink_Emit_EmptyEventsMeansAllEvents(t *testing.T) {
	received := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- struct{}{}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := newMemStore(Subscription{ID: "sub1", URL: srv.URL, Secret: "x"})
	sink := NewSink(store, nil)
	sink.Emit(context.Background(), "connector.run.started", "c1", nil)

	<-received
}
