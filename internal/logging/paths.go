package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultLogDir returns the default log directory (~/.corequery/logs/).
// Falls back to temp directory if home directory is unavailable.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".corequery", "logs")
	}
	return filepath.Join(home, ".corequery", "logs")
}

// DefaultLogPath returns the default server log path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "server.log")
}

// ProcessorLogPath returns the log path an external processor sidecar
// (the Text-Extractor/OCR/transcription service §4.5's Folder and Podcast
// connectors delegate to) is expected to write to, if it chooses to log
// there. The core never starts this process; it only knows where to look.
func ProcessorLogPath() string {
	return filepath.Join(DefaultLogDir(), "processor.log")
}

// LogSource represents the source of logs to view.
type LogSource string

const (
	// LogSourceGo is the corequeryd server logs (default).
	LogSourceGo LogSource = "go"
	// LogSourceProcessor is the external processor sidecar's logs.
	LogSourceProcessor LogSource = "processor"
	// LogSourceAll combines all log sources.
	LogSourceAll LogSource = "all"
)

// FindLogFile attempts to find the log file for viewing.
// Priority:
// 1. Explicit path (if provided)
// 2. ~/.corequery/logs/server.log (global)
//
// Returns an error if no log file is found.
func FindLogFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit, nil
		}
		return "", fmt.Errorf("log file not found: %s", explicit)
	}

	// Try global path
	globalPath := DefaultLogPath()
	if _, err := os.Stat(globalPath); err == nil {
		return globalPath, nil
	}

	return "", fmt.Errorf("no log file found. Server may not have run with --debug yet.\nExpected at: %s", globalPath)
}

// FindLogFileBySource finds log files based on the source type.
// Returns a list of log file paths that exist.
func FindLogFileBySource(source LogSource, explicit string) ([]string, error) {
	// Explicit path takes precedence
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return []string{explicit}, nil
		}
		return nil, fmt.Errorf("log file not found: %s", explicit)
	}

	var paths []string
	var checked []string

	switch source {
	case LogSourceGo:
		goPath := DefaultLogPath()
		checked = append(checked, goPath)
		if _, err := os.Stat(goPath); err == nil {
			paths = append(paths, goPath)
		}

	case LogSourceProcessor:
		procPath := ProcessorLogPath()
		checked = append(checked, procPath)
		if _, err := os.Stat(procPath); err == nil {
			paths = append(paths, procPath)
		}

	case LogSourceAll:
		goPath := DefaultLogPath()
		procPath := ProcessorLogPath()
		checked = append(checked, goPath, procPath)

		if _, err := os.Stat(goPath); err == nil {
			paths = append(paths, goPath)
		}
		if _, err := os.Stat(procPath); err == nil {
			paths = append(paths, procPath)
		}

	default:
		return nil, fmt.Errorf("unknown log source: %s (use: go, processor, all)", source)
	}

	if len(paths) == 0 {
		hint := getLogHint(source)
		return nil, fmt.Errorf("no log files found for source '%s'.\nChecked: %v\n\n%s", source, checked, hint)
	}

	return paths, nil
}

// ParseLogSource parses a string into a LogSource.
func ParseLogSource(s string) LogSource {
	switch s {
	case "processor":
		return LogSourceProcessor
	case "all":
		return LogSourceAll
	default:
		return LogSourceGo
	}
}

// EnsureLogDir creates the log directory if it doesn't exist.
func EnsureLogDir() error {
	dir := DefaultLogDir()
	return os.MkdirAll(dir, 0o755)
}

// getLogHint returns a helpful message on how to generate logs for the given source.
func getLogHint(source LogSource) string {
	switch source {
	case LogSourceGo:
		return "To generate corequeryd logs:\n  corequeryd serve --debug"
	case LogSourceProcessor:
		return "processor.log is written by the external extraction/transcription\nsidecar (§4.5), not by corequeryd itself; point it at this path or pass\n--file to read its own log location."
	case LogSourceAll:
		return "To generate logs:\n  corequeryd: corequeryd serve --debug\n  processor:  point the sidecar's log output at ~/.corequery/logs/processor.log"
	default:
		return ""
	}
}
