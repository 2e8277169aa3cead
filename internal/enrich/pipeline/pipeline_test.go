package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/federails/corequery/internal/enrich"
	"github.com/federails/corequery/internal/store"
)

type fakeEnrichmentStore struct {
	relationships map[string]*store.EntityRelationship
	statuses      map[string]*store.EnrichmentStatus
}

func newFakeEnrichmentStore() *fakeEnrichmentStore {
	return &fakeEnrichmentStore{
		relationships: make(map[string]*store.EntityRelationship),
		statuses:      make(map[string]*store.EnrichmentStatus),
	}
}

func relKey(entityType, normalizedValue string) string { return entityType + "|" + normalizedValue }

func (s *fakeEnrichmentStore) UpsertEntityRelationship(ctx context.Context, entityType, normalizedValue, documentID string) error {
	key := relKey(entityType, normalizedValue)
	rel, ok := s.relationships[key]
	if !ok {
		rel = &store.EntityRelationship{EntityType: entityType, NormalizedValue: normalizedValue}
		s.relationships[key] = rel
	}
	for _, id := range rel.DocumentIDs {
		if id == documentID {
			return nil
		}
	}
	rel.DocumentIDs = append(rel.DocumentIDs, documentID)
	rel.DocumentCount = len(rel.DocumentIDs)
	return nil
}

func (s *fakeEnrichmentStore) GetEntityRelationship(ctx context.Context, entityType, normalizedValue string) (*store.EntityRelationship, error) {
	return s.relationships[relKey(entityType, normalizedValue)], nil
}

func (s *fakeEnrichmentStore) SetEnrichmentStatus(ctx context.Context, documentID, status string, version int) error {
	s.statuses[documentID] = &store.EnrichmentStatus{DocumentID: documentID, Status: status, Version: version}
	return nil
}

func (s *fakeEnrichmentStore) GetEnrichmentStatus(ctx context.Context, documentID string) (*store.EnrichmentStatus, error) {
	return s.statuses[documentID], nil
}

func TestPipeline_Process_ProducesTagsEntitiesAndMetadata(t *testing.T) {
	statusStore := newFakeEnrichmentStore()
	p := NewPipeline(enrich.NewIDFIndex(), statusStore)

	doc := &store.Document{
		ID:      "doc-1",
		Content: "Jane Smith, CEO of Acme Corp, announced a $10 million deal. Contact jane@acme.com for details.",
	}

	result, err := p.Process(context.Background(), doc, 1)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Tags)
	assert.NotEmpty(t, result.Entities)
	assert.Equal(t, 1, result.Version)
}

func TestPipeline_Process_PersistsEntityRelationships(t *testing.T) {
	statusStore := newFakeEnrichmentStore()
	p := NewPipeline(enrich.NewIDFIndex(), statusStore)

	doc := &store.Document{ID: "doc-1", Content: "Contact support@example.com for help."}
	_, err := p.Process(context.Background(), doc, 1)
	require.NoError(t, err)

	rel, err := statusStore.GetEntityRelationship(context.Background(), string(enrich.EntityEmail), "support@example.com")
	require.NoError(t, err)
	require.NotNil(t, rel)
	assert.Contains(t, rel.DocumentIDs, "doc-1")
}

func TestPipeline_Process_SetsEnrichmentStatusDone(t *testing.T) {
	statusStore := newFakeEnrichmentStore()
	p := NewPipeline(enrich.NewIDFIndex(), statusStore)

	doc := &store.Document{ID: "doc-1", Content: "some content here"}
	_, err := p.Process(context.Background(), doc, 2)
	require.NoError(t, err)

	status, err := statusStore.GetEnrichmentStatus(context.Background(), "doc-1")
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, "done", status.Status)
	assert.Equal(t, 2, status.Version)
}

func TestPipeline_AlreadyProcessed_TrueWhenVersionCurrent(t *testing.T) {
	statusStore := newFakeEnrichmentStore()
	p := NewPipeline(enrich.NewIDFIndex(), statusStore)

	doc := &store.Document{ID: "doc-1", Content: "content"}
	_, err := p.Process(context.Background(), doc, 3)
	require.NoError(t, err)

	done, err := p.AlreadyProcessed(context.Background(), "doc-1", 3)
	require.NoError(t, err)
	assert.True(t, done)

	stale, err := p.AlreadyProcessed(context.Background(), "doc-1", 1)
	require.NoError(t, err)
	assert.True(t, stale)

	notYet, err := p.AlreadyProcessed(context.Background(), "doc-1", 4)
	require.NoError(t, err)
	assert.False(t, notYet)
}

func TestPipeline_Process_NilDocumentErrors(t *testing.T) {
	p := NewPipeline(enrich.NewIDFIndex(), nil)
	_, err := p.Process(context.Background(), nil, 1)
	assert.Error(t, err)
}
