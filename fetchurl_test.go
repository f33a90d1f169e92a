package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
<title>Go Concurrency Patterns</title>
<meta name="description" content="Pipelines and cancellation in Go.">
<script>console.log("tracking");</script>
<style>body { margin: 0 }</style>
</head>
<body>
<nav>Home | About | Contact</nav>
<article>
<h1>Go Concurrency Patterns</h1>
<p>Goroutines   and channels make   concurrent code readable.</p>
</article>
<footer>Copyright 2024</footer>
</body>
</html>`

// TestFetchURLContent tests text extraction: chrome stripped, title and
// description kept, whitespace collapsed.
func TestFetchURLContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(samplePage))
	}))
	defer server.Close()

	content, err := FetchURLContent(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("FetchURLContent failed: %v", err)
	}

	for _, want := range []string{
		"Go Concurrency Patterns",
		"Pipelines and cancellation in Go.",
		"Goroutines and channels make concurrent code readable.",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("Content missing %q:\n%s", want, content)
		}
	}
	for _, reject := range []string{"console.log", "margin: 0", "Home | About", "Copyright 2024"} {
		if strings.Contains(content, reject) {
			t.Errorf("Content should not contain %q:\n%s", reject, content)
		}
	}
}

// TestFetchURLContentCapped tests the extraction length cap.
func TestFetchURLContentCapped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body><p>" + strings.Repeat("word ", 5000) + "</p></body></html>"))
	}))
	defer server.Close()

	content, err := FetchURLContent(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("FetchURLContent failed: %v", err)
	}
	if len(content) > MaxContentLength {
		t.Errorf("Content length = %d, want at most %d", len(content), MaxContentLength)
	}
}

// TestFetchURLContentErrors tests the failure modes.
func TestFetchURLContentErrors(t *testing.T) {
	t.Run("non-200 status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		if _, err := FetchURLContent(context.Background(), server.URL); err == nil {
			t.Error("Expected error for 404 response")
		}
	})

	t.Run("unreachable server", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := server.URL
		server.Close()

		if _, err := FetchURLContent(context.Background(), url); err == nil {
			t.Error("Expected error for closed server")
		}
	})

	t.Run("empty page", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html><head></head><body><script>x()</script></body></html>"))
		}))
		defer server.Close()

		if _, err := FetchURLContent(context.Background(), server.URL); err == nil {
			t.Error("Expected error for page with no readable content")
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(time.Second)
		}))
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := FetchURLContent(ctx, server.URL); err == nil {
			t.Error("Expected error for cancelled context")
		}
	})
}

// TestPageCache tests TTL caching behavior.
func TestPageCache(t *testing.T) {
	cache := NewPageCache(50 * time.Millisecond)

	if _, ok := cache.Get("https://example.com"); ok {
		t.Error("Empty cache should miss")
	}

	cache.Set("https://example.com", "cached content")

	content, ok := cache.Get("https://example.com")
	if !ok || content != "cached content" {
		t.Errorf("Get = (%q, %v), want cached hit", content, ok)
	}

	time.Sleep(80 * time.Millisecond)
	if _, ok := cache.Get("https://example.com"); ok {
		t.Error("Expired entry should miss")
	}

	cache.Set("https://example.com", "fresh")
	cache.Clear()
	if _, ok := cache.Get("https://example.com"); ok {
		t.Error("Cleared cache should miss")
	}
}
