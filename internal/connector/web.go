package connector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/temoto/robotstxt"
	"golang.org/x/time/rate"

	"github.com/federails/corequery/internal/store"
)

const webUserAgent = "corequeryd/1.0 (+https://github.com/federails/corequery)"

// WebConnector is a polite same-domain crawler: it honors robots.txt and
// a configurable request rate, extracting each page's title and main
// text via goquery.
type WebConnector struct {
	client *http.Client

	mu      sync.Mutex
	stopped bool
}

// NewWebConnector creates a crawler with the given HTTP client timeout.
func NewWebConnector(timeout time.Duration) *WebConnector {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &WebConnector{client: &http.Client{Timeout: timeout}}
}

// ValidateConfig requires at least one well-formed seed URL.
func (c *WebConnector) ValidateConfig(cfg map[string]string) error {
	seeds := splitCSV(cfg["seed_urls"])
	if len(seeds) == 0 {
		return fmt.Errorf("web connector: seed_urls is required")
	}
	for _, s := range seeds {
		if _, err := url.ParseRequestURI(s); err != nil {
			return fmt.Errorf("web connector: invalid seed url %q: %w", s, err)
		}
	}
	return nil
}

// Run crawls breadth-first from the seed URLs, staying within each
// seed's domain, up to max_pages, honoring robots.txt and a rate limit
// (requests_per_second, default 1) shared by every host of the run.
func (c *WebConnector) Run(ctx context.Context, cfg map[string]string, sink Sink) (*RunStats, error) {
	stats := &RunStats{SourceID: cfg["source_id"], StartedAt: time.Now()}

	maxPages := 100
	if v, err := strconv.Atoi(cfg["max_pages"]); err == nil && v > 0 {
		maxPages = v
	}
	rps := 1.0
	if v, err := strconv.ParseFloat(cfg["requests_per_second"], 64); err == nil && v > 0 {
		rps = v
	}
	limiter := rate.NewLimiter(rate.Limit(rps), 1)

	robotsCache := make(map[string]*robotstxt.RobotsData)
	visited := make(map[string]bool)
	queue := splitCSV(cfg["seed_urls"])
	allowedHosts := make(map[string]bool)
	for _, s := range queue {
		if u, err := url.Parse(s); err == nil {
			allowedHosts[u.Host] = true
		}
	}

	for len(queue) > 0 && stats.Seen < maxPages {
		c.mu.Lock()
		stopped := c.stopped
		c.mu.Unlock()
		if stopped {
			break
		}

		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		next := queue[0]
		queue = queue[1:]
		if visited[next] {
			continue
		}
		visited[next] = true

		u, err := url.Parse(next)
		if err != nil || !allowedHosts[u.Host] {
			continue
		}

		if !c.robotsAllow(ctx, robotsCache, u) {
			continue
		}

		if err := limiter.Wait(ctx); err != nil {
			return stats, err
		}

		doc, links, err := c.fetchPage(ctx, next)
		if err != nil {
			stats.record(fmt.Errorf("fetch %s: %w", next, err))
			continue
		}
		stats.Seen++

		doc.SourceID = stats.SourceID
		if err := sink.Put(ctx, doc); err != nil {
			stats.record(err)
			continue
		}
		stats.Upserted++

		for _, link := range links {
			if lu, err := url.Parse(link); err == nil && allowedHosts[lu.Host] && !visited[link] {
				queue = append(queue, link)
			}
		}
	}

	stats.FinishedAt = time.Now()
	return stats, nil
}

func (c *WebConnector) robotsAllow(ctx context.Context, cache map[string]*robotstxt.RobotsData, u *url.URL) bool {
	root := u.Scheme + "://" + u.Host
	data, ok := cache[root]
	if !ok {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, root+"/robots.txt", nil)
		if err != nil {
			cache[root] = nil
			return true
		}
		req.Header.Set("User-Agent", webUserAgent)
		resp, err := c.client.Do(req)
		if err != nil {
			cache[root] = nil
			return true
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode == http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			data, _ = robotstxt.FromBytes(body)
		}
		cache[root] = data
	}
	if data == nil {
		return true
	}
	return data.FindGroup(webUserAgent).Test(u.Path)
}

// fetchPage downloads and parses one page, returning a Document and the
// absolute URLs of every same-page link found.
func (c *WebConnector) fetchPage(ctx context.Context, pageURL string) (*store.Document, []string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("User-Agent", webUserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	gq, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("parse html: %w", err)
	}

	title := strings.TrimSpace(gq.Find("title").First().Text())
	gq.Find("script, style, nav, footer").Remove()
	content := strings.TrimSpace(gq.Find("body").Text())

	var links []string
	base, _ := url.Parse(pageURL)
	gq.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		resolved, err := base.Parse(href)
		if err != nil {
			return
		}
		resolved.Fragment = ""
		links = append(links, resolved.String())
	})

	return &store.Document{
		ExternalID:   pageURL,
		Title:        title,
		Content:      content,
		URL:          pageURL,
		DocumentType: "web:page",
		LastModified: time.Now(),
	}, links, nil
}

// Stop halts an in-flight crawl once its current page completes.
func (c *WebConnector) Stop() error {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
	return nil
}
