// Package main provides the entry point for the corequery CLI.
package main

import (
	"os"

	"github.com/federails/corequery/cmd/corequeryd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
