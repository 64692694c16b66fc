// Package ratelimit keeps keyed token buckets: per crawler for preview lookups and per host for image fetches.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/pet-preview/internal/metrics"
)

// Limiter manages keyed rate limits.
type Limiter struct {
	mu           sync.Mutex
	limiters     map[string]*rate.Limiter
	defaultRate  rate.Limit
	defaultBurst int
}

// Config holds rate limiter configuration. A non-positive RPS disables limiting.
type Config struct {
	RPS   float64
	Burst int
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	r := rate.Limit(cfg.RPS)
	if cfg.RPS <= 0 {
		r = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  r,
		defaultBurst: burst,
	}
}

func (l *Limiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, exists := l.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
		l.limiters[key] = limiter
	}
	return limiter
}

// Allow reports whether key may proceed now. It never blocks.
func (l *Limiter) Allow(key string) bool {
	if key == "" {
		key = "unknown"
	}
	if l.bucket(key).Allow() {
		return true
	}
	metrics.ObserveRateLimited(key)
	return false
}

// Wait blocks until a token is available for the host of rawURL, respecting the context.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	host := "unknown"
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Hostname()
	}

	start := time.Now()
	if err := l.bucket(host).Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if d := time.Since(start); d > time.Millisecond {
		metrics.ObserveRateLimitDelay(host, d)
	}
	return nil
}
