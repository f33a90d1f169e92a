package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	// FetchTimeout bounds each page fetch.
	FetchTimeout = 30 * time.Second

	// MaxContentLength caps extracted page text so a fetched article
	// cannot blow up a council prompt.
	MaxContentLength = 8000
)

// FetchURLContent fetches a web page and extracts its readable text so
// it can be pasted into a council question as context. Script, style
// and navigation chrome are dropped; whitespace is collapsed; the
// result is capped at MaxContentLength.
func FetchURLContent(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "LLM-Council/1.0")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	client := &http.Client{
		Timeout: FetchTimeout,
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script, style, noscript, nav, header, footer, aside").Remove()

	var parts []string
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		parts = append(parts, title)
	}
	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		if desc = strings.TrimSpace(desc); desc != "" {
			parts = append(parts, desc)
		}
	}

	// Prefer the main content element when the page marks one up.
	body := doc.Find("main, article").First()
	if body.Length() == 0 {
		body = doc.Find("body").First()
	}
	if text := collapseWhitespace(body.Text()); text != "" {
		parts = append(parts, text)
	}

	content := strings.Join(parts, "\n\n")
	if content == "" {
		return "", fmt.Errorf("no readable content found")
	}
	if len(content) > MaxContentLength {
		content = content[:MaxContentLength]
	}

	return content, nil
}

// collapseWhitespace reduces runs of whitespace to single spaces.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// pageEntry is one cached extraction.
type pageEntry struct {
	content   string
	fetchedAt time.Time
}

// PageCache provides thread-safe TTL caching of extracted page content,
// keyed by URL.
type PageCache struct {
	mu      sync.RWMutex
	entries map[string]pageEntry
	ttl     time.Duration
}

// NewPageCache creates a page cache with the specified TTL.
func NewPageCache(ttl time.Duration) *PageCache {
	return &PageCache{
		entries: make(map[string]pageEntry),
		ttl:     ttl,
	}
}

// Get retrieves the cached content for url if not expired.
func (c *PageCache) Get(url string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[url]
	if !ok || time.Since(entry.fetchedAt) > c.ttl {
		return "", false
	}

	return entry.content, true
}

// Set stores extracted content for url.
func (c *PageCache) Set(url, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[url] = pageEntry{content: content, fetchedAt: time.Now()}
}

// Clear drops all cached pages.
func (c *PageCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]pageEntry)
}
