// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package tracking

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ScriptRaccoon/portfolio-website/internal/geoip"
	"github.com/ScriptRaccoon/portfolio-website/internal/session"
	"github.com/ScriptRaccoon/portfolio-website/internal/store"
	"github.com/ScriptRaccoon/portfolio-website/internal/testutil"
)

const testOrigin = "https://example.com"

type fakeGeo map[string]string

func (f fakeGeo) LookupCountry(ip string) string {
	return f[ip]
}

func newTestHandler(t *testing.T, geo CountryLookup) (*Handler, *sql.DB) {
	t.Helper()

	db := testutil.TestDB(t)
	h := NewHandler(Config{
		Queries:       store.New(db),
		Guard:         NewGuard(testOrigin, NewPathMatcher(defaultTrackedPaths)),
		Geo:           geo,
		CountryHeader: "X-Country",
		Logger:        testutil.DiscardLogger(),
	})
	h.now = func() time.Time { return time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC) }
	return h, db
}

func trackingRequest(path, body, sessionID string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, testOrigin+"/api"+path, strings.NewReader(body))
	r.Header.Set("Origin", testOrigin)
	r.Header.Set("User-Agent", uaChromeWindows)
	r.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		r = r.WithContext(session.WithID(r.Context(), sessionID))
	}
	return r
}

func serve(h *Handler, r *http.Request) *httptest.ResponseRecorder {
	router := chi.NewRouter()
	router.Route("/api", h.RegisterRoutes)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var out map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestTrackSession(t *testing.T) {
	h, db := newTestHandler(t, nil)

	body := `{"theme":"dark","referrer":"https://github.com","viewport_width":800}`
	w := serve(h, trackingRequest("/track-session", body, "sess-1"))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "Session has been tracked", decodeBody(t, w)["message"])

	var referrer, browser, osName, theme, device, createdAt string
	var aggregatedAt sql.NullString
	err := db.QueryRow(`SELECT referrer, browser, os, theme, device_type, created_at, aggregated_at
		FROM sessions_live WHERE id = ?`, "sess-1").
		Scan(&referrer, &browser, &osName, &theme, &device, &createdAt, &aggregatedAt)
	require.NoError(t, err)

	assert.Equal(t, "https://github.com", referrer)
	assert.Equal(t, "Chrome", browser)
	assert.Equal(t, "Windows", osName)
	assert.Equal(t, "dark", theme)
	assert.Equal(t, DeviceTablet, device)
	assert.Equal(t, "2025-03-14 09:26:53", createdAt)
	assert.False(t, aggregatedAt.Valid)
}

func TestTrackSessionFirstWriteWins(t *testing.T) {
	h, db := newTestHandler(t, nil)

	w := serve(h, trackingRequest("/track-session", `{"theme":"dark","referrer":"first"}`, "sess-1"))
	require.Equal(t, http.StatusOK, w.Code)
	w = serve(h, trackingRequest("/track-session", `{"theme":"light","referrer":"second"}`, "sess-1"))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, 1, testutil.CountRows(t, db, `SELECT COUNT(*) FROM sessions_live`))
	var referrer string
	require.NoError(t, db.QueryRow(`SELECT referrer FROM sessions_live WHERE id = 'sess-1'`).Scan(&referrer))
	assert.Equal(t, "first", referrer)
}

func TestTrackSessionRejections(t *testing.T) {
	tests := []struct {
		name       string
		modify     func(r *http.Request)
		body       string
		wantStatus int
		wantError  string
	}{
		{
			name:       "foreign origin",
			modify:     func(r *http.Request) { r.Header.Set("Origin", "https://evil.example") },
			body:       `{"theme":"dark","referrer":"x"}`,
			wantStatus: http.StatusForbidden,
			wantError:  "Forbidden",
		},
		{
			name:       "bot",
			modify:     func(r *http.Request) { r.Header.Set("User-Agent", uaGooglebot) },
			body:       `{"theme":"dark","referrer":"x"}`,
			wantStatus: http.StatusForbidden,
			wantError:  "Forbidden",
		},
		{
			name:       "wrong content type",
			modify:     func(r *http.Request) { r.Header.Set("Content-Type", "text/plain") },
			body:       `{"theme":"dark","referrer":"x"}`,
			wantStatus: http.StatusForbidden,
			wantError:  "Forbidden",
		},
		{
			name:       "invalid body",
			modify:     func(*http.Request) {},
			body:       `{"theme":"dark"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid request body",
		},
		{
			name:       "forbidden beats invalid body",
			modify:     func(r *http.Request) { r.Header.Del("Origin") },
			body:       `not json`,
			wantStatus: http.StatusForbidden,
			wantError:  "Forbidden",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, db := newTestHandler(t, nil)

			r := trackingRequest("/track-session", tt.body, "sess-1")
			tt.modify(r)
			w := serve(h, r)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantError, decodeBody(t, w)["error"])
			assert.Equal(t, 0, testutil.CountRows(t, db, `SELECT COUNT(*) FROM sessions_live`))
		})
	}
}

func TestTrackSessionWithoutSessionID(t *testing.T) {
	h, db := newTestHandler(t, nil)

	w := serve(h, trackingRequest("/track-session", `{"theme":"dark","referrer":"x"}`, ""))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error", decodeBody(t, w)["error"])
	assert.Equal(t, 0, testutil.CountRows(t, db, `SELECT COUNT(*) FROM sessions_live`))
}

func TestTrackSessionDatabaseError(t *testing.T) {
	h, db := newTestHandler(t, nil)
	require.NoError(t, db.Close())

	w := serve(h, trackingRequest("/track-session", `{"theme":"dark","referrer":"x"}`, "sess-1"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Database error", decodeBody(t, w)["error"])
}

func TestTrackSessionCountry(t *testing.T) {
	tests := []struct {
		name   string
		geo    CountryLookup
		header string
		want   string
	}{
		{"geoip answer", fakeGeo{"192.0.2.1": "DE"}, "FR", "DE"},
		{"geoip local falls back to header", fakeGeo{"192.0.2.1": geoip.Local}, "fr", "FR"},
		{"geoip local without header", fakeGeo{"192.0.2.1": geoip.Local}, "", geoip.Local},
		{"no geoip uses header", nil, "NL", "NL"},
		{"oversized header ignored", nil, "NOT-A-COUNTRY", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, db := newTestHandler(t, tt.geo)

			r := trackingRequest("/track-session", `{"theme":"light","referrer":"x"}`, "sess-1")
			if tt.header != "" {
				r.Header.Set("X-Country", tt.header)
			}
			w := serve(h, r)
			require.Equal(t, http.StatusOK, w.Code)

			var country sql.NullString
			require.NoError(t, db.QueryRow(`SELECT country FROM sessions_live WHERE id = 'sess-1'`).Scan(&country))
			assert.Equal(t, tt.want, country.String)
		})
	}
}

func TestTrackVisit(t *testing.T) {
	h, db := newTestHandler(t, nil)

	w := serve(h, trackingRequest("/track-visit", `{"path":"/blog/hello"}`, "sess-1"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Page visit has been tracked", decodeBody(t, w)["message"])

	w = serve(h, trackingRequest("/track-visit", `{"path":"/blog/hello"}`, "sess-1"))
	require.Equal(t, http.StatusOK, w.Code, "repeat visit is accepted")

	w = serve(h, trackingRequest("/track-visit", `{"path":"/blog/hello"}`, "sess-2"))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, 2, testutil.CountRows(t, db, `SELECT COUNT(*) FROM visits_live WHERE path = '/blog/hello'`))
}

func TestTrackVisitRejections(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"untracked path", `{"path":"/admin"}`, http.StatusForbidden},
		{"relative path", `{"path":"blog"}`, http.StatusBadRequest},
		{"missing path", `{}`, http.StatusBadRequest},
		{"extra field", `{"path":"/","session":"x"}`, http.StatusBadRequest},
		{"stray closing brace", `{"path":"/"}}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, db := newTestHandler(t, nil)

			w := serve(h, trackingRequest("/track-visit", tt.body, "sess-1"))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, 0, testutil.CountRows(t, db, `SELECT COUNT(*) FROM visits_live`))
		})
	}
}

func TestTrackTheme(t *testing.T) {
	h, db := newTestHandler(t, nil)

	w := serve(h, trackingRequest("/track-theme", `{"theme":"dark"}`, ""))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Theme has been tracked successfully", decodeBody(t, w)["message"])

	w = serve(h, trackingRequest("/track-theme", `{"theme":"sepia"}`, ""))
	require.Equal(t, http.StatusOK, w.Code)

	w = serve(h, trackingRequest("/track-theme", `{"colour":"dark"}`, ""))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var dark int
	require.NoError(t, db.QueryRow(`SELECT count FROM theme_stats WHERE theme = 'dark'`).Scan(&dark))
	assert.Equal(t, 1, dark)
	assert.Equal(t, 2, testutil.CountRows(t, db, `SELECT COUNT(*) FROM theme_stats`))
}
