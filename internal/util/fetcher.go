package util

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RateWaiter blocks until a request to rawURL may proceed
type RateWaiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// StatusError is returned for non-2xx upstream responses
type StatusError struct {
	StatusCode int
	Status     string
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %s (%s)", e.Status, e.URL)
}

// Fetcher performs bounded GET requests against public data sources
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	limiter    RateWaiter
}

// NewFetcher creates a new Fetcher with the given configuration
func NewFetcher(timeout time.Duration, userAgent string, maxBytes int64, httpProxy, httpsProxy, noProxy string) *Fetcher {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = NewProxyFunc(httpProxy, httpsProxy, noProxy)

	return &Fetcher{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		userAgent: userAgent,
		maxBytes:  maxBytes,
	}
}

// WithLimiter makes every request wait on l first
func (f *Fetcher) WithLimiter(l RateWaiter) *Fetcher {
	f.limiter = l
	return f
}

// UserAgent returns the configured User-Agent
func (f *Fetcher) UserAgent() string {
	return f.userAgent
}

// HTTPClient exposes the underlying client for callers that need non-GET requests
func (f *Fetcher) HTTPClient() *http.Client {
	return f.httpClient
}

// GetJSON fetches rawURL and decodes a 2xx JSON body into out.
// The status code is returned whenever a response was received.
func (f *Fetcher) GetJSON(ctx context.Context, rawURL string, out interface{}) (int, error) {
	body, status, err := f.get(ctx, rawURL, "application/json")
	if err != nil {
		return status, err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return status, fmt.Errorf("decode %s: %w", rawURL, err)
	}
	return status, nil
}

// GetHTML fetches rawURL and returns the body as a string
func (f *Fetcher) GetHTML(ctx context.Context, rawURL string) (string, error) {
	body, _, err := f.get(ctx, rawURL, "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (f *Fetcher) get(ctx context.Context, rawURL, accept string) ([]byte, int, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, rawURL); err != nil {
			return nil, 0, fmt.Errorf("rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", accept)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, resp.StatusCode, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status, URL: rawURL}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}

	return body, resp.StatusCode, nil
}
