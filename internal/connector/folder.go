package connector

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/federails/corequery/internal/gitignore"
	"github.com/federails/corequery/internal/store"
)

// TextExtractor pulls plain text out of a binary document (PDF/DOCX/XLSX),
// an external black-box call per spec.md §4.5. The default FolderConnector
// skips binary files when none is configured.
type TextExtractor interface {
	Extract(ctx context.Context, path string, content []byte) (string, error)
}

// FolderConnector recursively scans a directory tree, restricted to an
// allow-listed set of extensions, optionally watching for changes.
// Grounded on internal/scanner's walk/exclude shape, generalized from a
// source-code extension allowlist to an arbitrary document one.
type FolderConnector struct {
	extractor TextExtractor

	mu      sync.Mutex
	stopped bool
}

// NewFolderConnector creates a connector; extractor may be nil, in which
// case binary documents are skipped rather than extracted.
func NewFolderConnector(extractor TextExtractor) *FolderConnector {
	return &FolderConnector{extractor: extractor}
}

var binaryExtensions = map[string]bool{".pdf": true, ".docx": true, ".xlsx": true}

// ValidateConfig requires root_dir to exist and be a directory, and
// extensions (comma-separated, leading dot optional) to be non-empty.
func (c *FolderConnector) ValidateConfig(cfg map[string]string) error {
	root := cfg["root_dir"]
	if root == "" {
		return fmt.Errorf("folder connector: root_dir is required")
	}
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("folder connector: stat root_dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("folder connector: root_dir %q is not a directory", root)
	}
	if strings.TrimSpace(cfg["extensions"]) == "" {
		return fmt.Errorf("folder connector: extensions is required")
	}
	return nil
}

func parseExtensions(raw string) map[string]bool {
	out := make(map[string]bool)
	for _, ext := range strings.Split(raw, ",") {
		ext = strings.TrimSpace(ext)
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out[strings.ToLower(ext)] = true
	}
	return out
}

// Run walks root_dir once, emitting a Document per allow-listed file,
// then — if watch=true — keeps running, re-emitting changed files until
// ctx is cancelled or Stop is called.
func (c *FolderConnector) Run(ctx context.Context, cfg map[string]string, sink Sink) (*RunStats, error) {
	root := cfg["root_dir"]
	extensions := parseExtensions(cfg["extensions"])
	watch := cfg["watch"] == "true"

	stats := &RunStats{SourceID: cfg["source_id"], StartedAt: time.Now()}

	excludes := gitignore.New()
	for _, pattern := range strings.Split(cfg["exclude"], ",") {
		if p := strings.TrimSpace(pattern); p != "" {
			excludes.AddPattern(p)
		}
	}

	if err := c.walk(ctx, root, extensions, excludes, sink, stats); err != nil {
		return stats, err
	}

	if watch {
		if err := c.watchLoop(ctx, root, extensions, excludes, sink, stats); err != nil {
			return stats, err
		}
	}

	stats.FinishedAt = time.Now()
	return stats, nil
}

func (c *FolderConnector) walk(ctx context.Context, root string, extensions map[string]bool, excludes *gitignore.Matcher, sink Sink, stats *RunStats) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}

		if d.IsDir() {
			if excludes.Match(rel, true) {
				return fs.SkipDir
			}
			return nil
		}
		if excludes.Match(rel, false) {
			return nil
		}

		if !extensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		doc, err := c.readDocument(ctx, path, rel)
		if err != nil {
			stats.record(err)
			return nil
		}
		if doc == nil {
			return nil // binary file, no extractor configured
		}

		if err := sink.Put(ctx, doc); err != nil {
			stats.record(err)
			return nil
		}
		stats.Seen++
		stats.Upserted++
		return nil
	})
}

func (c *FolderConnector) readDocument(ctx context.Context, absPath, relPath string) (*store.Document, error) {
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", relPath, err)
	}

	raw, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", relPath, err)
	}

	content := string(raw)
	if binaryExtensions[strings.ToLower(filepath.Ext(absPath))] {
		if c.extractor == nil {
			return nil, nil
		}
		content, err = c.extractor.Extract(ctx, absPath, raw)
		if err != nil {
			return nil, fmt.Errorf("extract text from %s: %w", relPath, err)
		}
	}

	return &store.Document{
		ExternalID:   relPath,
		Title:        filepath.Base(relPath),
		Content:      content,
		URL:          "file://" + absPath,
		DocumentType: "folder:file",
		LastModified: info.ModTime(),
		Attributes:   map[string]string{"path": relPath},
	}, nil
}

// watchLoop watches root_dir for changes via fsnotify, re-indexing the
// document of a file that is written or created. Remove and rename events
// are ignored, so a deleted file's document stays in the index. Runs until
// ctx is cancelled or Stop() is called.
func (c *FolderConnector) watchLoop(ctx context.Context, root string, extensions map[string]bool, excludes *gitignore.Matcher, sink Sink, stats *RunStats) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fs watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		return watcher.Add(path)
	}); err != nil {
		return fmt.Errorf("watch %s: %w", root, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			c.handleWatchEvent(ctx, root, event, extensions, excludes, sink, stats)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("folder connector watch error", "error", err)
		}

		c.mu.Lock()
		stopped := c.stopped
		c.mu.Unlock()
		if stopped {
			return nil
		}
	}
}

func (c *FolderConnector) handleWatchEvent(ctx context.Context, root string, event fsnotify.Event, extensions map[string]bool, excludes *gitignore.Matcher, sink Sink, stats *RunStats) {
	rel, err := filepath.Rel(root, event.Name)
	if err != nil || excludes.Match(rel, false) || !extensions[strings.ToLower(filepath.Ext(event.Name))] {
		return
	}

	if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
		doc, err := c.readDocument(ctx, event.Name, rel)
		if err != nil {
			stats.record(err)
			return
		}
		if doc == nil {
			return
		}
		if err := sink.Put(ctx, doc); err != nil {
			stats.record(err)
			return
		}
		stats.Seen++
		stats.Upserted++
	}
}

// Stop halts an in-flight watch loop.
func (c *FolderConnector) Stop() error {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
	return nil
}
