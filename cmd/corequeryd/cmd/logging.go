package cmd

import (
	"log/slog"

	"github.com/federails/corequery/internal/logging"
)

var (
	cfgFile        string
	loggingCleanup func()
)

// setupLogging wires slog.Default to a rotating file logger, DebugConfig
// when --debug is set and DefaultConfig otherwise, the way the teacher's
// root command's PersistentPreRunE does.
func setupLogging(debug bool) error {
	cfg := logging.DefaultConfig()
	if debug {
		cfg = logging.DebugConfig()
	}
	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		return err
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	return nil
}

func teardownLogging() {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
}
