package connector

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/federails/corequery/internal/store"
)

const (
	transcriptChunkChars   = 1200
	transcriptOverlapChars = 200
)

// PodcastConnector ingests an RSS/Atom podcast feed, indexing one document
// per episode plus, when a transcript is present, a run of overlapping
// transcript chunks (1200 chars, 200 char overlap) per spec.md §4.5.
type PodcastConnector struct {
	parser *gofeed.Parser

	mu      sync.Mutex
	stopped bool
}

// NewPodcastConnector creates a connector backed by gofeed's universal
// RSS/Atom/JSON feed parser.
func NewPodcastConnector() *PodcastConnector {
	return &PodcastConnector{parser: gofeed.NewParser()}
}

// ValidateConfig requires a feed_url.
func (c *PodcastConnector) ValidateConfig(cfg map[string]string) error {
	if strings.TrimSpace(cfg["feed_url"]) == "" {
		return fmt.Errorf("podcast connector: feed_url is required")
	}
	return nil
}

// Run fetches the feed once and indexes every episode as a document,
// plus a chunked document per transcript segment when one is attached.
func (c *PodcastConnector) Run(ctx context.Context, cfg map[string]string, sink Sink) (*RunStats, error) {
	stats := &RunStats{SourceID: cfg["source_id"], StartedAt: time.Now()}

	feed, err := c.parser.ParseURLWithContext(cfg["feed_url"], ctx)
	if err != nil {
		return stats, fmt.Errorf("fetch feed %s: %w", cfg["feed_url"], err)
	}

	for _, item := range feed.Items {
		c.mu.Lock()
		stopped := c.stopped
		c.mu.Unlock()
		if stopped {
			break
		}

		stats.Seen++

		episodeID := item.GUID
		if episodeID == "" {
			episodeID = item.Link
		}

		modified := time.Now()
		if item.PublishedParsed != nil {
			modified = *item.PublishedParsed
		}

		episodeDoc := &store.Document{
			SourceID:     stats.SourceID,
			ExternalID:   episodeID,
			Title:        item.Title,
			Content:      episodeSummary(item),
			URL:          item.Link,
			DocumentType: "podcast:episode",
			LastModified: modified,
			Attributes:   map[string]string{"feed_title": feed.Title},
		}
		if err := sink.Put(ctx, episodeDoc); err != nil {
			stats.record(err)
			continue
		}
		stats.Upserted++

		transcript := transcriptText(item)
		if transcript == "" {
			continue
		}
		for i, chunk := range chunkTranscript(transcript, transcriptChunkChars, transcriptOverlapChars) {
			chunkDoc := &store.Document{
				SourceID:     stats.SourceID,
				ExternalID:   fmt.Sprintf("%s#chunk-%d", episodeID, i),
				Title:        fmt.Sprintf("%s (part %d)", item.Title, i+1),
				Content:      chunk,
				URL:          item.Link,
				DocumentType: "podcast:transcript_chunk",
				LastModified: modified,
				Attributes:   map[string]string{"episode_id": episodeID, "chunk_index": fmt.Sprintf("%d", i)},
			}
			if err := sink.Put(ctx, chunkDoc); err != nil {
				stats.record(err)
				continue
			}
			stats.Upserted++
		}
	}

	stats.FinishedAt = time.Now()
	return stats, nil
}

func episodeSummary(item *gofeed.Item) string {
	if item.Content != "" {
		return item.Content
	}
	return item.Description
}

// transcriptText looks for a transcript in the episode's podcast:transcript
// extension (when gofeed surfaces it as a custom extension) or falls back
// to an empty string when the feed carries no transcript.
func transcriptText(item *gofeed.Item) string {
	if item.Extensions == nil {
		return ""
	}
	podcastExt, ok := item.Extensions["podcast"]
	if !ok {
		return ""
	}
	for _, ext := range podcastExt["transcript"] {
		if text, ok := ext.Attrs["text"]; ok && text != "" {
			return text
		}
	}
	return ""
}

// chunkTranscript splits text into overlapping windows of size chars with
// the given overlap, matching spec.md §4.5's 1200/200 transcript chunking.
func chunkTranscript(text string, size, overlap int) []string {
	if len(text) <= size {
		return []string{text}
	}
	var chunks []string
	step := size - overlap
	for start := 0; start < len(text); start += step {
		end := start + size
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, text[start:end])
		if end == len(text) {
			break
		}
	}
	return chunks
}

// Stop halts an in-flight Run once the current episode completes.
func (c *PodcastConnector) Stop() error {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
	return nil
}
