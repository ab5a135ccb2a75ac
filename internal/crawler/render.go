package crawler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/chromedp/chromedp"
)

// RenderFetcher retrieves pages through a headless browser so
// script-driven sites yield their final DOM. Any render failure falls
// back to the plain HTTP fetcher.
type RenderFetcher struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	fallback    Fetcher
	waitFor     string
	timeout     time.Duration
	gate        chan struct{}
}

// NewRenderFetcher starts a browser allocator. waitFor, when non-empty,
// is a CSS selector the renderer waits on before capturing the DOM.
// concurrency bounds simultaneous open tabs.
func NewRenderFetcher(userAgent, waitFor string, timeout time.Duration, concurrency int, fallback Fetcher) *RenderFetcher {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(userAgent),
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	if concurrency < 1 {
		concurrency = 1
	}

	return &RenderFetcher{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		fallback:    fallback,
		waitFor:     waitFor,
		timeout:     timeout,
		gate:        make(chan struct{}, concurrency),
	}
}

// Fetch renders url in a fresh browser tab and returns the serialized
// DOM. On any render error the plain HTTP fallback result is returned
// instead.
func (r *RenderFetcher) Fetch(ctx context.Context, url string) (*FetchResult, error) {
	select {
	case r.gate <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-r.gate }()

	html, finalURL, err := r.render(ctx, url)
	if err != nil {
		slog.Warn("Render failed, falling back to HTTP fetch", "url", url, "error", err)
		return r.fallback.Fetch(ctx, url)
	}

	return &FetchResult{
		StatusCode:  http.StatusOK,
		Body:        []byte(html),
		Headers:     http.Header{},
		ContentType: "text/html",
		FinalURL:    finalURL,
		Rendered:    true,
	}, nil
}

func (r *RenderFetcher) render(ctx context.Context, url string) (html, finalURL string, err error) {
	tabCtx, tabCancel := chromedp.NewContext(r.allocCtx)
	defer tabCancel()

	timeoutCtx, timeoutCancel := context.WithTimeout(tabCtx, r.timeout)
	defer timeoutCancel()

	// Propagate caller cancellation into the tab.
	go func() {
		select {
		case <-ctx.Done():
			timeoutCancel()
		case <-timeoutCtx.Done():
		}
	}()

	actions := []chromedp.Action{
		chromedp.Navigate(url),
	}
	if r.waitFor != "" {
		actions = append(actions, chromedp.WaitVisible(r.waitFor, chromedp.ByQuery))
	} else {
		actions = append(actions, chromedp.WaitReady("body", chromedp.ByQuery))
	}
	actions = append(actions,
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)

	if err := chromedp.Run(timeoutCtx, actions...); err != nil {
		return "", "", err
	}
	return html, finalURL, nil
}

// Close shuts the browser allocator down.
func (r *RenderFetcher) Close() {
	r.allocCancel()
}
