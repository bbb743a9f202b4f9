// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ScriptRaccoon/portfolio-website/internal/logging"
	"github.com/ScriptRaccoon/portfolio-website/internal/testutil"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"ok":true}`))
})

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(DefaultSecurityHeadersConfig(false))(okHandler)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/like", nil))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "max-age=31536000; includeSubDomains", w.Header().Get("Strict-Transport-Security"))
	assert.Equal(t, "default-src 'none'; frame-ancestors 'none'; base-uri 'none'; form-action 'none'",
		w.Header().Get("Content-Security-Policy"))
	assert.Contains(t, w.Header().Get("Permissions-Policy"), "camera=()")
}

func TestSecurityHeadersDevelopment(t *testing.T) {
	cfg := DefaultSecurityHeadersConfig(true)
	cfg.ExcludePaths = []string{"/metrics"}
	h := SecurityHeaders(cfg)(okHandler)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Empty(t, w.Header().Get("X-Content-Type-Options"))
}

func TestIPRateLimiter(t *testing.T) {
	rl := NewIPRateLimiter("api", 0.001, 2, testutil.DiscardLogger(), nil)
	h := rl.Middleware()(okHandler)

	request := func(ip string) int {
		r := httptest.NewRequest(http.MethodPost, "/api/track-visit", nil)
		r.RemoteAddr = ip + ":40000"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, request("203.0.113.1"))
	assert.Equal(t, http.StatusOK, request("203.0.113.1"))
	assert.Equal(t, http.StatusTooManyRequests, request("203.0.113.1"))
	assert.Equal(t, http.StatusOK, request("203.0.113.2"), "limits are per IP")
	assert.Equal(t, 2, rl.cache.size())
}

func TestIPRateLimiterIgnoresForwardedHeaders(t *testing.T) {
	rl := NewIPRateLimiter("api", 0.001, 1, testutil.DiscardLogger(), nil)
	h := rl.Middleware()(okHandler)

	codes := make([]int, 0, 3)
	for i := 1; i <= 3; i++ {
		r := httptest.NewRequest(http.MethodPost, "/api/track-visit", nil)
		r.RemoteAddr = "198.51.100.9:40000"
		r.Header.Set("X-Forwarded-For", "203.0.113."+strconv.Itoa(i))
		r.Header.Set("X-Real-IP", "203.0.113."+strconv.Itoa(i))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
}

func TestIPRateLimiterKeepsEventLogQuiet(t *testing.T) {
	db := testutil.TestDB(t)
	logger := slog.New(logging.NewEventLogHandler(slog.NewTextHandler(io.Discard, nil), db))

	rl := NewIPRateLimiter("api", 0.001, 1, logger, nil)
	h := rl.Middleware()(okHandler)

	throttled := 0
	for range 20 {
		r := httptest.NewRequest(http.MethodGet, "/api/like", nil)
		r.RemoteAddr = "203.0.113.1:40000"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		if w.Code == http.StatusTooManyRequests {
			throttled++
		}
	}

	assert.Equal(t, 19, throttled)
	assert.Zero(t, testutil.CountRows(t, db, `SELECT COUNT(*) FROM event_log`))
}

func TestIPRateLimiterCleanup(t *testing.T) {
	rl := NewIPRateLimiter("api", 1, 1, testutil.DiscardLogger(), nil)
	for i := 0; i <= maxLimiters; i++ {
		rl.cache.get(strconv.Itoa(i))
	}
	require.Greater(t, rl.cache.size(), maxLimiters)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rl.Cleanup(ctx, time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return rl.cache.size() == 0 }, time.Second, time.Millisecond)
	cancel()
	<-done
}

func TestBasicAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	h := BasicAuth(BasicAuthConfig{
		Username:     "admin",
		PasswordHash: string(hash),
		Logger:       testutil.DiscardLogger(),
	})(okHandler)

	tests := []struct {
		name     string
		user     string
		pass     string
		noAuth   bool
		wantCode int
	}{
		{"valid", "admin", "s3cret", false, http.StatusOK},
		{"wrong password", "admin", "nope", false, http.StatusUnauthorized},
		{"wrong user", "root", "s3cret", false, http.StatusUnauthorized},
		{"no credentials", "", "", true, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/analytics", nil)
			if !tt.noAuth {
				r.SetBasicAuth(tt.user, tt.pass)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode == http.StatusUnauthorized {
				assert.Equal(t, `Basic realm="analytics", charset="UTF-8"`, w.Header().Get("WWW-Authenticate"))
				assert.JSONEq(t, `{"error":"Unauthorized"}`, w.Body.String())
			}
		})
	}
}

func TestCSRF(t *testing.T) {
	h := CSRF(DefaultCSRFConfig(make([]byte, 32), false))(okHandler)

	// Same-origin browser request.
	r := httptest.NewRequest(http.MethodPost, "https://example.com/analytics/jobs/cleanup/run", nil)
	r.Header.Set("Sec-Fetch-Site", "same-origin")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)

	// Cross-site browser request.
	r = httptest.NewRequest(http.MethodPost, "https://example.com/analytics/jobs/cleanup/run", nil)
	r.Header.Set("Sec-Fetch-Site", "cross-site")
	r.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error":"Forbidden"}`, w.Body.String())

	// Safe methods always pass.
	r = httptest.NewRequest(http.MethodGet, "https://example.com/analytics", nil)
	r.Header.Set("Sec-Fetch-Site", "cross-site")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTimeout(t *testing.T) {
	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
			_, _ = w.Write([]byte("late"))
		}
	})

	w := httptest.NewRecorder()
	Timeout(10*time.Millisecond)(slow).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"error":"Request timeout"}`, w.Body.String())

	w = httptest.NewRecorder()
	Timeout(time.Second)(okHandler).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
}
