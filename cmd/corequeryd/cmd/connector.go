package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/federails/corequery/internal/connector"
	"github.com/federails/corequery/internal/relay"
	"github.com/federails/corequery/internal/store"
)

func newConnectorCmd() *cobra.Command {
	var dataDir string

	cmd := &cobra.Command{
		Use:   "connector",
		Short: "Manage and run ingestion connectors against the local store",
	}
	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", ".corequery", "Directory holding the database")

	cmd.AddCommand(newConnectorListCmd(&dataDir))
	cmd.AddCommand(newConnectorAddCmd(&dataDir))
	cmd.AddCommand(newConnectorRunCmd(&dataDir))
	return cmd
}

func openConnectorStore(dataDir string) (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(filepath.Join(dataDir, "corequery.db"))
}

func newConnectorListCmd(dataDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured connectors",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openConnectorStore(*dataDir)
			if err != nil {
				return err
			}
			defer db.Close()

			recs, err := db.ListConnectors(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(recs)
		},
	}
}

func newConnectorAddCmd(dataDir *string) *cobra.Command {
	var (
		name   string
		kind   string
		config []string
	)

	cmd := &cobra.Command{
		Use:   "add <id>",
		Short: "Register a connector",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openConnectorStore(*dataDir)
			if err != nil {
				return err
			}
			defer db.Close()

			cfg := make(map[string]string, len(config))
			for _, kv := range config {
				k, v, ok := strings.Cut(kv, "=")
				if !ok {
					return fmt.Errorf("invalid --config %q, expected key=value", kv)
				}
				cfg[k] = v
			}

			rec := store.ConnectorRecord{
				ID:        args[0],
				Name:      name,
				Kind:      kind,
				Config:    cfg,
				IsActive:  true,
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			}
			return db.SaveConnector(cmd.Context(), rec)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Human-readable connector name")
	cmd.Flags().StringVar(&kind, "kind", "", "Connector kind: folder, web, sql, nostr, podcast")
	cmd.Flags().StringArrayVar(&config, "config", nil, "Connector config entries as key=value (repeatable)")
	return cmd
}

func newConnectorRunCmd(dataDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run <id>",
		Short: "Run one connector once and print its stats",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConnectorOnce(cmd.Context(), *dataDir, args[0])
		},
	}
}

func runConnectorOnce(ctx context.Context, dataDir, connectorID string) error {
	db, err := openConnectorStore(dataDir)
	if err != nil {
		return err
	}
	defer db.Close()

	rec, err := db.GetConnector(ctx, connectorID)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("unknown connector %q", connectorID)
	}

	registry := connector.NewRegistry()
	pool := relay.NewPool(nil)
	defer pool.Close()
	registry.Register(connector.KindNostr, func() connector.Connector { return connector.NewNostrConnector(pool) })

	conn, err := registry.New(connector.Kind(rec.Kind))
	if err != nil {
		return err
	}

	sink, err := connector.NewSyncSink(ctx, db, db, connectorID)
	if err != nil {
		return err
	}

	stats, err := conn.Run(ctx, connectorRunConfig(rec), sink)
	if err != nil {
		return err
	}

	// The sink's stats are the authoritative counters; the connector's
	// own tallies only contribute fetch-side failures.
	finishStats, finishErr := sink.Finish(ctx)
	if finishErr != nil {
		return fmt.Errorf("delete sweep: %w", finishErr)
	}
	if stats != nil {
		finishStats.Failed += stats.Failed
		finishStats.Errors = append(finishStats.Errors, stats.Errors...)
	}
	stats = finishStats

	fmt.Printf("seen=%d upserted=%d created=%d deleted=%d failed=%d\n",
		stats.Seen, stats.Upserted, stats.Created, stats.Deleted, stats.Failed)
	if len(stats.Errors) > 0 {
		fmt.Fprintln(os.Stderr, "errors:")
		for _, e := range stats.Errors {
			fmt.Fprintln(os.Stderr, " -", e)
		}
	}
	return nil
}
