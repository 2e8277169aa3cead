package connector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebConnector_ValidateConfig_RequiresSeedURLs(t *testing.T) {
	c := NewWebConnector(0)
	err := c.ValidateConfig(map[string]string{})
	assert.Error(t, err)
}

func TestWebConnector_ValidateConfig_RejectsMalformedURL(t *testing.T) {
	c := NewWebConnector(0)
	err := c.ValidateConfig(map[string]string{"seed_urls": "not a url"})
	assert.Error(t, err)
}

func TestWebConnector_ValidateConfig_Valid(t *testing.T) {
	c := NewWebConnector(0)
	err := c.ValidateConfig(map[string]string{"seed_urls": "https://example.com/"})
	assert.NoError(t, err)
}

func newTestSite(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /private\n"))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title>Home</title></head><body><p>Welcome text</p><a href="/about">About</a></body></html>`))
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title>About</title></head><body><p>About text</p></body></html>`))
	})
	mux.HandleFunc("/private", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title>Secret</title></head><body>nope</body></html>`))
	})
	return httptest.NewServer(mux)
}

func TestWebConnector_Run_CrawlsSameDomainLinks(t *testing.T) {
	srv := newTestSite(t)
	defer srv.Close()

	c := NewWebConnector(0)
	sink := &collectingSink{}

	stats, err := c.Run(context.Background(), map[string]string{
		"seed_urls":           srv.URL + "/",
		"max_pages":           "10",
		"requests_per_second": "1000",
	}, sink)

	require.NoError(t, err)
	assert.Equal(t, 2, stats.Seen)

	titles := map[string]bool{}
	for _, d := range sink.docs {
		titles[d.Title] = true
	}
	assert.True(t, titles["Home"])
	assert.True(t, titles["About"])
}

func TestWebConnector_Run_HonorsRobotsDisallow(t *testing.T) {
	srv := newTestSite(t)
	defer srv.Close()

	c := NewWebConnector(0)
	sink := &collectingSink{}

	_, err := c.Run(context.Background(), map[string]string{
		"seed_urls":           srv.URL + "/private",
		"max_pages":           "10",
		"requests_per_second": "1000",
	}, sink)

	require.NoError(t, err)
	assert.Empty(t, sink.docs)
}

func TestWebConnector_Run_StopsAtMaxPages(t *testing.T) {
	srv := newTestSite(t)
	defer srv.Close()

	c := NewWebConnector(0)
	sink := &collectingSink{}

	stats, err := c.Run(context.Background(), map[string]string{
		"seed_urls":           srv.URL + "/",
		"max_pages":           "1",
		"requests_per_second": "1000",
	}, sink)

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Seen)
}

func TestWebConnector_Stop_HaltsCrawl(t *testing.T) {
	srv := newTestSite(t)
	defer srv.Close()

	c := NewWebConnector(0)
	require.NoError(t, c.Stop())
	sink := &collectingSink{}

	stats, err := c.Run(context.Background(), map[string]string{
		"seed_urls": srv.URL + "/",
	}, sink)

	require.NoError(t, err)
	assert.Equal(t, 0, stats.Seen)
}
