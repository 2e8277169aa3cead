package connector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFeedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Test Cast</title>
    <item>
      <title>Episode One</title>
      <guid>ep-1</guid>
      <link>https://example.com/ep1</link>
      <description>A short episode about Go.</description>
    </item>
    <item>
      <title>Episode Two</title>
      <guid>ep-2</guid>
      <link>https://example.com/ep2</link>
      <description>Another episode.</description>
    </item>
  </channel>
</rss>`

func TestPodcastConnector_ValidateConfig_RequiresFeedURL(t *testing.T) {
	c := NewPodcastConnector()
	err := c.ValidateConfig(map[string]string{})
	assert.Error(t, err)
}

func TestPodcastConnector_Run_IndexesEachEpisode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(testFeedXML))
	}))
	defer srv.Close()

	c := NewPodcastConnector()
	sink := &collectingSink{}

	stats, err := c.Run(context.Background(), map[string]string{"feed_url": srv.URL, "source_id": "cast-1"}, sink)

	require.NoError(t, err)
	assert.Equal(t, 2, stats.Seen)
	assert.Equal(t, 2, stats.Upserted)
	require.Len(t, sink.docs, 2)
	assert.Equal(t, "Episode One", sink.docs[0].Title)
	assert.Equal(t, "podcast:episode", sink.docs[0].DocumentType)
	assert.Equal(t, "cast-1", sink.docs[0].SourceID)
}

func TestPodcastConnector_Stop_HaltsRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(testFeedXML))
	}))
	defer srv.Close()

	c := NewPodcastConnector()
	require.NoError(t, c.Stop())
	sink := &collectingSink{}

	stats, err := c.Run(context.Background(), map[string]string{"feed_url": srv.URL}, sink)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Seen)
}

func TestChunkTranscript_SplitsWithOverlap(t *testing.T) {
	text := strings.Repeat("a", 3000)
	chunks := chunkTranscript(text, 1200, 200)

	require.True(t, len(chunks) > 1)
	assert.Equal(t, 1200, len(chunks[0]))
	last := chunks[len(chunks)-1]
	assert.True(t, len(last) <= 1200)
}

func TestChunkTranscript_ShortTextReturnsSingleChunk(t *testing.T) {
	chunks := chunkTranscript("short transcript", 1200, 200)
	require.Len(t, chunks, 1)
	assert.Equal(t, "short transcript", chunks[0])
}
