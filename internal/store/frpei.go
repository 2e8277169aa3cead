package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/federails/corequery/internal/frpei"
)

// FRPEIStore persists the FRPEI request/candidate/rank-log rows spec.md
// §6's Persisted state layout calls out "for observability", plus
// relevance feedback labels (spec.md §4.10's Feedback endpoint). Shares
// the metadata store's SQLite database the same way webhook.SQLiteStore
// and ConnectorStore/RunStore do.
type FRPEIStore interface {
	frpei.FeedbackStore

	// RecordRetrieval persists one completed Orchestrator.Retrieve call:
	// the request envelope, its merged candidates, and — when req.Explain
	// was set — each candidate's signal-contribution rank log, so a
	// ranking decision can be reconstructed after the fact.
	RecordRetrieval(ctx context.Context, req frpei.Request, resp *frpei.Response) error

	// ListRecentRequests returns the most recent retrievals, newest
	// first, for the admin-facing observability surface.
	ListRecentRequests(ctx context.Context, limit int) ([]FRPEIRequestRecord, error)

	// RankLog returns the persisted signal breakdown for one candidate of
	// one past request, backing a "why did this rank here" lookup.
	RankLog(ctx context.Context, requestID, candidateID string) ([]frpei.SignalContribution, error)
}

var _ FRPEIStore = (*SQLiteStore)(nil)

// FRPEIRequestRecord is one persisted /api/frpei/retrieve call.
type FRPEIRequestRecord struct {
	ID        string
	Query     string
	Providers []string
	Cached    bool
	CreatedAt time.Time
}

// frpei_requests/frpei_candidates/frpei_rank_log/frpei_feedback tables are
// created by SQLiteStore.initSchema alongside the rest of the database's
// tables (sqlite_metadata.go); this file only adds the Go-level accessors.

// RecordFeedback implements frpei.FeedbackStore.
func (s *SQLiteStore) RecordFeedback(ctx context.Context, fb frpei.FeedbackRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO frpei_feedback (query, candidate_id, label, user_pubkey, recorded_at)
		VALUES (?, ?, ?, ?, ?)
	`, fb.Query, fb.CandidateID, fb.Label, fb.UserPubkey, fb.RecordedAt)
	return err
}

// RecordRetrieval writes the request envelope, every merged candidate,
// and (when present) each candidate's Why breakdown. Best-effort from the
// caller's perspective — a write failure here must never fail the
// /retrieve response itself, matching spec.md §7's rule that
// observability writes are non-fatal side effects.
func (s *SQLiteStore) RecordRetrieval(ctx context.Context, req frpei.Request, resp *frpei.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	requestID := fmt.Sprintf("freq_%d", time.Now().UnixNano())

	providersJSON, err := json.Marshal(req.Providers)
	if err != nil {
		return fmt.Errorf("marshal providers: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO frpei_requests (id, query, providers, cached, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, requestID, req.Query, string(providersJSON), boolToInt(resp.Cached), time.Now()); err != nil {
		return fmt.Errorf("insert request: %w", err)
	}

	for i, c := range resp.Results {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO frpei_candidates (request_id, candidate_id, provider, canonical_url, rank, score)
			VALUES (?, ?, ?, ?, ?, ?)
		`, requestID, c.ID, c.Provider, c.CanonicalURL, i, c.Score); err != nil {
			return fmt.Errorf("insert candidate: %w", err)
		}
		for _, sig := range c.Why {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO frpei_rank_log (request_id, candidate_id, signal, weight, value, contribution)
				VALUES (?, ?, ?, ?, ?, ?)
			`, requestID, c.ID, sig.Signal, sig.Weight, sig.Value, sig.Contribution); err != nil {
				return fmt.Errorf("insert rank log: %w", err)
			}
		}
	}

	return tx.Commit()
}

// ListRecentRequests returns the most recently recorded retrievals.
func (s *SQLiteStore) ListRecentRequests(ctx context.Context, limit int) ([]FRPEIRequestRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, query, providers, cached, created_at
		FROM frpei_requests ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FRPEIRequestRecord
	for rows.Next() {
		var rec FRPEIRequestRecord
		var providersJSON string
		var cached int
		if err := rows.Scan(&rec.ID, &rec.Query, &providersJSON, &cached, &rec.CreatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(providersJSON), &rec.Providers)
		rec.Cached = cached != 0
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RankLog returns the persisted signal breakdown for one candidate.
func (s *SQLiteStore) RankLog(ctx context.Context, requestID, candidateID string) ([]frpei.SignalContribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT signal, weight, value, contribution FROM frpei_rank_log
		WHERE request_id = ? AND candidate_id = ?
	`, requestID, candidateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []frpei.SignalContribution
	for rows.Next() {
		var sig frpei.SignalContribution
		if err := rows.Scan(&sig.Signal, &sig.Weight, &sig.Value, &sig.Contribution); err != nil {
			return nil, err
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}
