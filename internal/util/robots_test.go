package util

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestRobotsChecker_DisallowedPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /private/\nCrawl-delay: 2\n"))
	}))
	defer server.Close()

	checker := NewRobotsChecker("claimwarden-test", 5*time.Second)

	allowed, delay, err := checker.CanFetch(context.Background(), server.URL+"/search")
	if err != nil {
		t.Fatalf("CanFetch: %v", err)
	}
	if !allowed {
		t.Error("expected /search to be allowed")
	}
	if delay != 2*time.Second {
		t.Errorf("expected 2s crawl delay, got %v", delay)
	}

	allowed, _, err = checker.CanFetch(context.Background(), server.URL+"/private/data")
	if err != nil {
		t.Fatalf("CanFetch: %v", err)
	}
	if allowed {
		t.Error("expected /private/data to be disallowed")
	}
}

func TestRobotsChecker_CachesPerHost(t *testing.T) {
	var fetches int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&fetches, 1)
		_, _ = w.Write([]byte("User-agent: *\nAllow: /\n"))
	}))
	defer server.Close()

	checker := NewRobotsChecker("claimwarden-test", 5*time.Second)
	for i := 0; i < 3; i++ {
		if _, _, err := checker.CanFetch(context.Background(), server.URL+"/page"); err != nil {
			t.Fatalf("CanFetch: %v", err)
		}
	}

	if got := atomic.LoadInt32(&fetches); got != 1 {
		t.Errorf("expected 1 robots.txt fetch, got %d", got)
	}
}

func TestRobotsChecker_UnreachableAllowsByDefault(t *testing.T) {
	checker := NewRobotsChecker("claimwarden-test", 200*time.Millisecond)

	allowed, _, err := checker.CanFetch(context.Background(), "http://127.0.0.1:1/page")
	if err != nil {
		t.Fatalf("CanFetch: %v", err)
	}
	if !allowed {
		t.Error("expected allow-by-default when robots.txt is unreachable")
	}
}
