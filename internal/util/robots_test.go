package util

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestRobotsChecker(t *testing.T) {
	var robotsHits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			robotsHits.Add(1)
			_, _ = fmt.Fprint(w, "User-agent: herbia\nDisallow: /w/\nCrawl-delay: 2\n\nUser-agent: *\nDisallow: /\n")
			return
		}
	}))
	defer server.Close()

	checker := NewRobotsChecker("herbia/0.3", 5*time.Second, time.Hour)
	ctx := context.Background()

	allowed, delay, err := checker.CanFetch(ctx, server.URL+"/api/rest_v1/page/html/Bellis_perennis")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !allowed {
		t.Error("Expected REST path to be allowed")
	}
	if delay != 2*time.Second {
		t.Errorf("Expected crawl delay 2s, got %v", delay)
	}

	if checker.IsAllowed(ctx, server.URL+"/w/index.php") {
		t.Error("Expected /w/ to be disallowed")
	}

	if robotsHits.Load() != 1 {
		t.Errorf("Expected robots.txt to be fetched once, got %d", robotsHits.Load())
	}
}

func TestRobotsChecker_MissingRobotsAllows(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	checker := NewRobotsChecker("herbia/0.3", 5*time.Second, time.Hour)
	if !checker.IsAllowed(context.Background(), server.URL+"/anything") {
		t.Error("Expected missing robots.txt to allow everything")
	}
}
