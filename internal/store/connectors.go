package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// ConnectorRecord is a configured source, independent of whatever
// in-memory connector.Connector instance it's currently bound to —
// the durable half of a Connector per spec.md §3, the half the HTTP
// API CRUDs and the scheduler/registry reads at startup.
type ConnectorRecord struct {
	ID              string
	Name            string
	Kind            string // connector.Kind as a string, to keep this package independent of internal/connector
	Config          map[string]string
	PortalURL       string
	ItemURLTemplate string
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ConnectorStore persists Connector records, shared with the metadata
// store's SQLite database.
type ConnectorStore interface {
	ListConnectors(ctx context.Context) ([]ConnectorRecord, error)
	GetConnector(ctx context.Context, id string) (*ConnectorRecord, error)
	SaveConnector(ctx context.Context, rec ConnectorRecord) error
	DeleteConnector(ctx context.Context, id string) error
}

var _ ConnectorStore = (*SQLiteStore)(nil)

const connectorColumns = `SELECT id, name, kind, config, portal_url, item_url_template, is_active, created_at, updated_at`

// ListConnectors returns every configured connector, active or not.
func (s *SQLiteStore) ListConnectors(ctx context.Context) ([]ConnectorRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, connectorColumns+` FROM connectors ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ConnectorRecord
	for rows.Next() {
		rec, err := scanConnectorRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetConnector fetches a single connector by id, or nil if unset.
func (s *SQLiteStore) GetConnector(ctx context.Context, id string) (*ConnectorRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, connectorColumns+` FROM connectors WHERE id = ?`, id)
	rec, err := scanConnectorRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// SaveConnector creates or updates a connector record.
func (s *SQLiteStore) SaveConnector(ctx context.Context, rec ConnectorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	configJSON, err := json.Marshal(rec.Config)
	if err != nil {
		return fmt.Errorf("marshal connector config: %w", err)
	}
	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO connectors (id, name, kind, config, portal_url, item_url_template, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			kind = excluded.kind,
			config = excluded.config,
			portal_url = excluded.portal_url,
			item_url_template = excluded.item_url_template,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`, rec.ID, rec.Name, rec.Kind, string(configJSON), rec.PortalURL, rec.ItemURLTemplate,
		boolToInt(rec.IsActive), rec.CreatedAt, rec.UpdatedAt)
	return err
}

// DeleteConnector removes a connector record. Its schedule and run
// history are left intact for audit purposes.
func (s *SQLiteStore) DeleteConnector(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM connectors WHERE id = ?`, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConnectorRow(row rowScanner) (ConnectorRecord, error) {
	var rec ConnectorRecord
	var configJSON string
	var isActive int
	err := row.Scan(&rec.ID, &rec.Name, &rec.Kind, &configJSON, &rec.PortalURL, &rec.ItemURLTemplate,
		&isActive, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return ConnectorRecord{}, err
	}
	rec.IsActive = isActive != 0
	rec.Config = map[string]string{}
	_ = json.Unmarshal([]byte(configJSON), &rec.Config)
	return rec, nil
}
