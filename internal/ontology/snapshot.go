package ontology

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/federails/corequery/internal/config"
)

// SaveSnapshot writes snap as JSON to path, first backing up any
// existing file at path through the shared timestamped-backup helper
// (config.BackupFile, which also prunes to its retention limit).
func SaveSnapshot(path string, snap *Snapshot) error {
	if _, err := config.BackupFile(path); err != nil {
		return fmt.Errorf("backup existing snapshot: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads and parses a JSON snapshot from path, then builds
// its derived term index.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	buildTermIndex(&snap)
	return &snap, nil
}

// RestoreSnapshot rolls the snapshot at path back to its most recent
// backup, for an operator recovering from a bad ontology edit.
func RestoreSnapshot(path string) (*Snapshot, error) {
	backups, err := config.ListFileBackups(path)
	if err != nil {
		return nil, fmt.Errorf("list snapshot backups: %w", err)
	}
	if len(backups) == 0 {
		return nil, fmt.Errorf("no snapshot backups exist for %s", path)
	}
	if err := config.RestoreFileBackup(path, backups[0]); err != nil {
		return nil, fmt.Errorf("restore snapshot: %w", err)
	}
	return LoadSnapshot(path)
}

// buildTermIndex (re)derives TermIndex from Concepts, case-folding every
// term/alias/acronym, and compiles every trigger's pattern.
func buildTermIndex(snap *Snapshot) {
	for _, t := range snap.Triggers {
		t.compile()
	}
	snap.TermIndex = make(map[string]string)
	for id, c := range snap.Concepts {
		snap.TermIndex[strings.ToLower(c.Term)] = id
		for _, a := range c.Aliases {
			snap.TermIndex[strings.ToLower(a)] = id
		}
		for _, a := range c.Acronyms {
			snap.TermIndex[strings.ToLower(a)] = id
		}
	}
}
