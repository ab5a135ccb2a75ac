package crawler

import (
	"context"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter spaces requests per host. The default interval comes from
// configuration; robots.txt crawl delays override it per host when they
// are longer.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	delay    time.Duration
}

// NewRateLimiter creates a rate limiter with the given default interval
// between requests to the same host. A zero delay means no limiting.
func NewRateLimiter(defaultDelay time.Duration) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		delay:    defaultDelay,
	}
}

// Wait blocks until a request to rawURL's host is permitted, or until
// the context is canceled.
func (rl *RateLimiter) Wait(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}

	limiter := rl.limiterFor(u.Host)
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}

// SetHostDelay overrides the interval for one host, typically from a
// robots.txt crawl delay. Shorter overrides than the default are ignored.
// An existing limiter is adjusted in place so its pacing state survives
// repeated calls for the same host.
func (rl *RateLimiter) SetHostDelay(host string, delay time.Duration) {
	if delay <= rl.delay {
		return
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if limiter, ok := rl.limiters[host]; ok {
		limit := rate.Every(delay)
		if limiter.Limit() != limit {
			limiter.SetLimit(limit)
		}
		return
	}
	rl.limiters[host] = rate.NewLimiter(rate.Every(delay), 1)
}

func (rl *RateLimiter) limiterFor(host string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if limiter, ok := rl.limiters[host]; ok {
		return limiter
	}
	if rl.delay <= 0 {
		return nil
	}

	limiter := rate.NewLimiter(rate.Every(rl.delay), 1)
	rl.limiters[host] = limiter
	return limiter
}
