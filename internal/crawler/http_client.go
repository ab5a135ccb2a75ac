package crawler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"time"
)

const (
	maxFetchAttempts  = 3
	maxRetryAfterWait = 60 * time.Second
	maxBodySize       = 20 << 20 // 20MB
)

// HTTPClient fetches pages over plain HTTP with bounded retries.
// Server errors and 429 responses are retried with exponential backoff;
// other client errors are terminal.
type HTTPClient struct {
	client    *http.Client
	userAgent string

	// Backoff knobs, shrunk in tests.
	retryBaseDelay time.Duration
	jitterMin      time.Duration
	jitterMax      time.Duration
}

// NewHTTPClient creates an HTTP client.
func NewHTTPClient(userAgent string, timeout time.Duration) *HTTPClient {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	return &HTTPClient{
		client:         client,
		userAgent:      userAgent,
		retryBaseDelay: 1 * time.Second,
		jitterMin:      100 * time.Millisecond,
		jitterMax:      500 * time.Millisecond,
	}
}

// Fetch retrieves url, retrying transient failures up to maxFetchAttempts
// times. Non-retryable client errors return the response as-is with an
// empty body consumed, so the caller can record the status.
func (h *HTTPClient) Fetch(ctx context.Context, url string) (*FetchResult, error) {
	var lastErr error

	for attempt := 0; attempt < maxFetchAttempts; attempt++ {
		if attempt > 0 {
			if err := h.sleep(ctx, h.backoff(attempt)); err != nil {
				return nil, err
			}
		}

		result, retryAfter, err := h.do(ctx, http.MethodGet, url)
		if err != nil {
			lastErr = err
			slog.Debug("Fetch attempt failed", "url", url, "attempt", attempt+1, "error", err)
			continue
		}

		switch {
		case result.StatusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("rate limited by server: %s", url)
			if retryAfter > 0 {
				if err := h.sleep(ctx, retryAfter); err != nil {
					return nil, err
				}
			}
		case result.StatusCode >= 500:
			lastErr = fmt.Errorf("server error %d: %s", result.StatusCode, url)
		default:
			// Success and non-retryable client errors both end the loop.
			return result, nil
		}
	}

	return nil, fmt.Errorf("fetch failed after %d attempts: %w", maxFetchAttempts, lastErr)
}

// Head probes url for freshness validators without transferring the body.
func (h *HTTPClient) Head(ctx context.Context, url string) (*Validators, error) {
	result, _, err := h.do(ctx, http.MethodHead, url)
	if err != nil {
		return nil, err
	}
	if result.StatusCode >= 400 {
		return nil, fmt.Errorf("head request returned %d: %s", result.StatusCode, url)
	}

	return &Validators{
		ETag:         result.ETag(),
		LastModified: result.LastModified(),
	}, nil
}

func (h *HTTPClient) do(ctx context.Context, method, url string) (*FetchResult, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", h.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var body []byte
	if method != http.MethodHead {
		body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read response body: %w", err)
		}
	}

	return &FetchResult{
		StatusCode:  resp.StatusCode,
		Body:        body,
		Headers:     resp.Header,
		ContentType: resp.Header.Get("Content-Type"),
		FinalURL:    resp.Request.URL.String(),
	}, parseRetryAfter(resp.Header.Get("Retry-After")), nil
}

// backoff returns the delay before the given retry attempt: exponential
// with a little jitter so concurrent workers spread out.
func (h *HTTPClient) backoff(attempt int) time.Duration {
	delay := h.retryBaseDelay * time.Duration(1<<(attempt-1))
	jitterRange := h.jitterMax - h.jitterMin
	if jitterRange > 0 {
		delay += h.jitterMin + time.Duration(rand.Int63n(int64(jitterRange)))
	}
	return delay
}

func (h *HTTPClient) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// parseRetryAfter reads a Retry-After header in seconds form, capped at
// maxRetryAfterWait.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	secs, err := strconv.Atoi(value)
	if err != nil || secs <= 0 {
		return 0
	}
	d := time.Duration(secs) * time.Second
	if d > maxRetryAfterWait {
		d = maxRetryAfterWait
	}
	return d
}

// Close releases idle connections.
func (h *HTTPClient) Close() {
	h.client.CloseIdleConnections()
}
