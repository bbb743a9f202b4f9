// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ScriptRaccoon/portfolio-website/internal/metrics"
	"github.com/ScriptRaccoon/portfolio-website/internal/util"
)

// maxLimiters caps the per-IP limiter map before it is reset.
const maxLimiters = 10000

// limiterCache is a generic rate limiter cache with double-check locking.
type limiterCache[K comparable] struct {
	limiters map[K]*rate.Limiter
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
}

// newLimiterCache creates a new limiter cache.
func newLimiterCache[K comparable](rps float64, burst int) *limiterCache[K] {
	return &limiterCache[K]{
		limiters: make(map[K]*rate.Limiter),
		rate:     rate.Limit(rps),
		burst:    burst,
	}
}

// get returns the rate limiter for a specific key, creating one if needed.
func (lc *limiterCache[K]) get(key K) *rate.Limiter {
	lc.mu.RLock()
	limiter, exists := lc.limiters[key]
	lc.mu.RUnlock()

	if exists {
		return limiter
	}

	lc.mu.Lock()
	defer lc.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists = lc.limiters[key]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(lc.rate, lc.burst)
	lc.limiters[key] = limiter
	return limiter
}

// clearIfExceeds clears all entries if the cache exceeds maxSize.
// Returns true if the cache was cleared.
func (lc *limiterCache[K]) clearIfExceeds(maxSize int) bool {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	if len(lc.limiters) > maxSize {
		lc.limiters = make(map[K]*rate.Limiter)
		return true
	}
	return false
}

func (lc *limiterCache[K]) size() int {
	lc.mu.RLock()
	defer lc.mu.RUnlock()
	return len(lc.limiters)
}

// IPRateLimiter is a per-IP token bucket flood guard.
type IPRateLimiter struct {
	name    string
	cache   *limiterCache[string]
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewIPRateLimiter creates a limiter allowing rps requests per second per IP
// with the given burst. name labels the limiter in logs and metrics.
func NewIPRateLimiter(name string, rps float64, burst int, logger *slog.Logger, m *metrics.Metrics) *IPRateLimiter {
	return &IPRateLimiter{
		name:    name,
		cache:   newLimiterCache[string](rps, burst),
		logger:  logger,
		metrics: m,
	}
}

// Middleware rejects requests over the limit with 429 and a JSON body.
func (rl *IPRateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := util.ClientIP(r)
			if !rl.cache.get(ip).Allow() {
				rl.logger.Debug("rate limit exceeded", "limiter", rl.name, "ip", ip, "path", r.URL.Path)
				rl.metrics.RateLimited(rl.name)
				writeJSONError(w, http.StatusTooManyRequests, "Too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Cleanup resets the limiter map every interval once it grows past its cap.
// It returns when ctx is done.
func (rl *IPRateLimiter) Cleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if rl.cache.clearIfExceeds(maxLimiters) {
				rl.logger.Info("cleared IP rate limiters due to size", "limiter", rl.name)
			}
		}
	}
}
