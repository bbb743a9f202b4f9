// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package limiter locks a client IP for a short window after an action.
package limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/ScriptRaccoon/portfolio-website/internal/cache"
)

// DefaultWindow is how long an IP stays locked after Lock.
const DefaultWindow = 2 * time.Second

const keyPrefix = "limiter:"

// Limiter keeps per-IP locks in an expiring key-value store.
type Limiter struct {
	store  cache.Cache
	window time.Duration
}

// New creates a limiter. A non-positive window falls back to DefaultWindow.
func New(store cache.Cache, window time.Duration) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{store: store, window: window}
}

// Window returns the lock duration.
func (l *Limiter) Window() time.Duration {
	return l.window
}

// IsLocked reports whether ip currently holds a lock.
func (l *Limiter) IsLocked(ctx context.Context, ip string) (bool, error) {
	locked, err := l.store.Has(ctx, key(ip))
	if err != nil {
		return false, fmt.Errorf("checking lock for %s: %w", ip, err)
	}
	return locked, nil
}

// Lock locks ip for the configured window, restarting it if already locked.
func (l *Limiter) Lock(ctx context.Context, ip string) error {
	if err := l.store.Set(ctx, key(ip), []byte("1"), l.window); err != nil {
		return fmt.Errorf("locking %s: %w", ip, err)
	}
	return nil
}

func key(ip string) string {
	return keyPrefix + ip
}
