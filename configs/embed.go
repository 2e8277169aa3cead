// Package configs provides the embedded default configuration template for
// corequeryd.
//
// The template is embedded at build time with go:embed so it ships inside
// the binary itself (source builds and releases alike) and is available
// even when the working directory has no config.yaml yet.
//
// Used by: cmd/corequeryd/cmd/config.go's `corequeryd config init`, which
// writes ServerConfigTemplate to <data-dir>/config.yaml (or --config's
// path) unless a file already exists there; with --force it backs up the
// existing file and overwrites it.
package configs

import _ "embed"

// ServerConfigTemplate documents every internal/config.Config field, with
// its default value and the environment variable that overrides it.
//
//go:embed config.example.yaml
var ServerConfigTemplate string
