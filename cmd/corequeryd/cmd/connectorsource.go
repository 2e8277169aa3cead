package cmd

import (
	"context"
	"fmt"

	"github.com/federails/corequery/internal/connector"
	"github.com/federails/corequery/internal/store"
)

// registryConnectorSource adapts a connector.Registry + store.ConnectorStore
// into a scheduler.ConnectorSource: look up the persisted record, then
// build a fresh Connector instance for its kind.
type registryConnectorSource struct {
	registry *connector.Registry
	records  store.ConnectorStore
}

func (s *registryConnectorSource) Connector(connectorID string) (connector.Connector, map[string]string, error) {
	rec, err := s.records.GetConnector(context.Background(), connectorID)
	if err != nil {
		return nil, nil, fmt.Errorf("connector source: %w", err)
	}
	if rec == nil {
		return nil, nil, fmt.Errorf("connector source: unknown connector %q", connectorID)
	}
	conn, err := s.registry.New(connector.Kind(rec.Kind))
	if err != nil {
		return nil, nil, err
	}
	return conn, connectorRunConfig(rec), nil
}

// connectorRunConfig flattens a connector record into the single config
// map Run receives, folding the record-level URL template fields and the
// source id in alongside the kind-specific entries.
func connectorRunConfig(rec *store.ConnectorRecord) map[string]string {
	cfg := make(map[string]string, len(rec.Config)+3)
	for k, v := range rec.Config {
		cfg[k] = v
	}
	cfg["source_id"] = rec.ID
	if rec.PortalURL != "" {
		cfg["portal_url"] = rec.PortalURL
	}
	if rec.ItemURLTemplate != "" {
		cfg["item_url_template"] = rec.ItemURLTemplate
	}
	return cfg
}

// sinkFactory builds a connector.Sink backed by the shared metadata
// store's incremental-sync algorithm (internal/connector/sync.go).
func sinkFactory(metadata *store.SQLiteStore) func(ctx context.Context, connectorID string) (connector.Sink, error) {
	return func(ctx context.Context, connectorID string) (connector.Sink, error) {
		return connector.NewSyncSink(ctx, metadata, metadata, connectorID)
	}
}
