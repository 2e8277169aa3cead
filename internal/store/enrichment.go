package store

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// EntityRelationship is the set-union row NLP enrichment maintains per
// (entity_type, normalized_value) pair, per spec.md §4.6 — never an
// in-memory bidirectional graph, to avoid cyclic references.
type EntityRelationship struct {
	EntityType      string
	NormalizedValue string
	DocumentIDs     []string
	DocumentCount   int
}

// EnrichmentStatus tracks whether a document's NLP enrichment has run,
// and at which content version, so a content change can trigger a
// (re)process without re-running unaffected documents.
type EnrichmentStatus struct {
	DocumentID string
	Status     string // "pending", "processing", "done", "failed"
	Version    int
	UpdatedAt  time.Time
}

// EnrichmentStore persists entity-relationship set unions and per-document
// enrichment status, sharing the metadata store's SQLite database.
type EnrichmentStore interface {
	UpsertEntityRelationship(ctx context.Context, entityType, normalizedValue, documentID string) error
	GetEntityRelationship(ctx context.Context, entityType, normalizedValue string) (*EntityRelationship, error)
	SetEnrichmentStatus(ctx context.Context, documentID, status string, version int) error
	GetEnrichmentStatus(ctx context.Context, documentID string) (*EnrichmentStatus, error)
}

var _ EnrichmentStore = (*SQLiteStore)(nil)

// UpsertEntityRelationship adds documentID to the set for (entityType,
// normalizedValue), creating the row if absent.
func (s *SQLiteStore) UpsertEntityRelationship(ctx context.Context, entityType, normalizedValue, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT document_ids FROM entity_relationships WHERE entity_type = ? AND normalized_value = ?`,
		entityType, normalizedValue,
	).Scan(&raw)

	ids := map[string]bool{}
	if err == nil {
		for _, id := range unmarshalStrings(raw) {
			ids[id] = true
		}
	}
	ids[documentID] = true

	ordered := make([]string, 0, len(ids))
	for id := range ids {
		ordered = append(ordered, id)
	}
	sort.Strings(ordered)

	_, execErr := s.db.ExecContext(ctx, `
		INSERT INTO entity_relationships (entity_type, normalized_value, document_ids, document_count)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(entity_type, normalized_value) DO UPDATE SET
			document_ids = excluded.document_ids,
			document_count = excluded.document_count
	`, entityType, normalizedValue, marshalStrings(ordered), len(ordered))
	return execErr
}

// GetEntityRelationship fetches the current set union for a pair, or nil
// if no document has yet contributed the entity.
func (s *SQLiteStore) GetEntityRelationship(ctx context.Context, entityType, normalizedValue string) (*EntityRelationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var raw string
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT document_ids, document_count FROM entity_relationships WHERE entity_type = ? AND normalized_value = ?`,
		entityType, normalizedValue,
	).Scan(&raw, &count)
	if err != nil {
		return nil, nil
	}

	return &EntityRelationship{
		EntityType:      entityType,
		NormalizedValue: normalizedValue,
		DocumentIDs:     unmarshalStrings(raw),
		DocumentCount:   count,
	}, nil
}

// SetEnrichmentStatus records the outcome of an enrichment pass for a
// document at a content version, enabling idempotent reprocessing.
func (s *SQLiteStore) SetEnrichmentStatus(ctx context.Context, documentID, status string, version int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO enrichment_status (document_id, status, version, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(document_id) DO UPDATE SET
			status = excluded.status,
			version = excluded.version,
			updated_at = excluded.updated_at
	`, documentID, status, version, time.Now())
	return err
}

// GetEnrichmentStatus fetches a document's enrichment status, or nil if
// it has never been enriched.
func (s *SQLiteStore) GetEnrichmentStatus(ctx context.Context, documentID string) (*EnrichmentStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var status string
	var version int
	var updatedAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT status, version, updated_at FROM enrichment_status WHERE document_id = ?`,
		documentID,
	).Scan(&status, &version, &updatedAt)
	if err != nil {
		return nil, nil
	}

	return &EnrichmentStatus{DocumentID: documentID, Status: status, Version: version, UpdatedAt: updatedAt}, nil
}
