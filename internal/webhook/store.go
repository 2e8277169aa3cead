package webhook

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// SQLiteStore persists webhook subscriptions in their own table on the
// same database file the rest of the metadata store uses.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore wraps an already-opened *sql.DB (the same one
// store.SQLiteStore opened) and ensures its table exists.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS webhook_subscriptions (
			id TEXT PRIMARY KEY,
			url TEXT NOT NULL,
			secret TEXT NOT NULL,
			events TEXT NOT NULL DEFAULT '[]'
		)
	`); err != nil {
		return nil, fmt.Errorf("webhook: init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) ListSubscriptions(ctx context.Context) ([]Subscription, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, url, secret, events FROM webhook_subscriptions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Subscription
	for rows.Next() {
		var sub Subscription
		var eventsJSON string
		if err := rows.Scan(&sub.ID, &sub.URL, &sub.Secret, &eventsJSON); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(eventsJSON), &sub.Events)
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveSubscription(ctx context.Context, sub Subscription) error {
	eventsJSON, err := json.Marshal(sub.Events)
	if err != nil {
		return fmt.Errorf("marshal events: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO webhook_subscriptions (id, url, secret, events)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET url = excluded.url, secret = excluded.secret, events = excluded.events
	`, sub.ID, sub.URL, sub.Secret, string(eventsJSON))
	return err
}

func (s *SQLiteStore) DeleteSubscription(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM webhook_subscriptions WHERE id = ?`, id)
	return err
}
