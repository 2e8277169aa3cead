// Package cmd provides the CLI commands for corequeryd.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/federails/corequery/pkg/version"
)

// NewRootCmd creates the root command for the corequeryd CLI.
func NewRootCmd() *cobra.Command {
	var debugMode bool

	cmd := &cobra.Command{
		Use:     "corequeryd",
		Short:   "Federated semantic search ingestion-and-retrieval core",
		Version: version.Version,
		Long: `corequeryd ingests documents from connectors (folder, web, SQL,
Nostr, podcast/RSS), indexes them for hybrid BM25+vector search, expands
queries against an ontology, reranks with web-of-trust signals, and
federates retrieval across local and external providers.

Run 'corequeryd serve' to start the HTTP API.`,
	}
	cmd.SetVersionTemplate("corequeryd version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to a YAML config file")

	cmd.PersistentPreRunE = func(c *cobra.Command, _ []string) error {
		return setupLogging(debugMode)
	}
	cmd.PersistentPostRunE = func(*cobra.Command, []string) error {
		teardownLogging()
		return nil
	}

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newConnectorCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
