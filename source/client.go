package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/tarkah/mirror-caddy/config"
	"github.com/tarkah/mirror-caddy/model"
)

// StatusError reports a response status outside the set a caller can act on.
// It exists for diagnostics; callers treat it like any other failed attempt.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %s", e.Status)
}

// Client wraps HTTP access to the remote file server. A single optional rate
// limiter covers both directory listings and file downloads.
type Client struct {
	hc        *http.Client
	limiter   *rate.Limiter
	userAgent string
}

// NewClient creates a client tuned for many concurrent requests against one
// host: the idle pool is sized to the worker count so connections are reused
// across the crawl and download phases.
func NewClient(cfg *config.SourceConfig) *Client {
	common := &cfg.Common
	common.ApplyDefaults()

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: time.Duration(common.ConnectTimeoutSeconds) * time.Second,
		}).DialContext,
		MaxIdleConnsPerHost: common.WorkerCount,
		MaxIdleConns:        common.WorkerCount * 2,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	hc := &http.Client{
		Transport: transport,
		Timeout:   time.Duration(common.TimeoutSeconds) * time.Second,
	}

	return NewClientWithHTTP(hc, cfg)
}

// NewClientWithHTTP creates a client around an existing http.Client (useful
// for testing).
func NewClientWithHTTP(hc *http.Client, cfg *config.SourceConfig) *Client {
	common := &cfg.Common
	common.ApplyDefaults()

	var limiter *rate.Limiter
	if common.MaxRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(common.MaxRPS), common.MaxRPS)
	}

	return &Client{
		hc:        hc,
		limiter:   limiter,
		userAgent: common.UserAgent,
	}
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}
	}
	req.Header.Set("User-Agent", c.userAgent)
	return c.hc.Do(req)
}

// ListDirectory fetches the JSON listing of one remote directory. Any field
// of an entry may be missing; is_dir defaults to false.
func (c *Client) ListDirectory(ctx context.Context, dirURL string) ([]model.ListingEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, dirURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	var entries []model.ListingEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("malformed listing: %w", err)
	}
	return entries, nil
}

// FileResponse is the result of one file GET.
type FileResponse struct {
	// NotModified is true for a 304 response; Body and Validator are unset.
	NotModified bool
	Body        []byte
	// Validator carries the response's ETag and Last-Modified headers, empty
	// strings when absent.
	Validator model.Validator
}

// FetchFile issues one GET for a file, conditional when a cached validator
// is supplied. The server may honor either validator independently. The full
// body is read before returning.
func (c *Client) FetchFile(ctx context.Context, fileURL string, cond model.Validator) (*FileResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if cond.ETag != "" {
		req.Header.Set("If-None-Match", cond.ETag)
	}
	if cond.LastModified != "" {
		req.Header.Set("If-Modified-Since", cond.LastModified)
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return &FileResponse{NotModified: true}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	return &FileResponse{
		Body: body,
		Validator: model.Validator{
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		},
	}, nil
}
