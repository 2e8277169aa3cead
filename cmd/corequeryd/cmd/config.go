package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/federails/corequery/configs"
	"github.com/federails/corequery/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or scaffold corequeryd configuration",
	}
	cmd.AddCommand(newConfigInitCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var dataDir string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config.yaml template",
		Long: `init writes the embedded configuration template to --config's path
(or <data-dir>/config.yaml if --config was not given), documenting every
field 'serve' will read and the environment variable that overrides it.
It refuses to overwrite an existing file unless --force is given.`,
		RunE: func(*cobra.Command, []string) error {
			path := cfgFile
			if path == "" {
				path = filepath.Join(dataDir, "config.yaml")
			}
			if _, err := os.Stat(path); err == nil {
				if !force {
					return fmt.Errorf("%s already exists, use --force to overwrite", path)
				}
				if backupPath, err := config.BackupFile(path); err != nil {
					return fmt.Errorf("backup %s: %w", path, err)
				} else if backupPath != "" {
					fmt.Printf("backed up existing config to %s\n", backupPath)
				}
			} else if !os.IsNotExist(err) {
				return fmt.Errorf("stat %s: %w", path, err)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Errorf("create config dir: %w", err)
			}
			if err := os.WriteFile(path, []byte(configs.ServerConfigTemplate), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&dataDir, "data-dir", ".corequery", "Directory for the database, indices, and ontology snapshot")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")

	return cmd
}
