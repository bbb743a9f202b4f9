// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package session keeps a random visitor session id in a cookie-backed
// session and exposes it to handlers through the request context.
package session

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/google/uuid"
)

const idKey = "session_id"

type contextKey struct{}

// New creates a new session manager configured with the SQLite store.
// Expired sessions are swept every cleanup interval; zero disables the sweeper.
func New(db *sql.DB, isDev bool, lifetime, cleanup time.Duration) *scs.SessionManager {
	sm := scs.New()

	sm.Store = sqlite3store.NewWithCleanupInterval(db, cleanup)

	sm.Lifetime = lifetime
	sm.Cookie.Name = "portfolio_session"
	sm.Cookie.HttpOnly = true
	sm.Cookie.SameSite = http.SameSiteStrictMode
	sm.Cookie.Secure = !isDev // Secure cookies in production only

	return sm
}

// Middleware loads the session, assigns a session id on first contact and
// puts the id into the request context.
func Middleware(sm *scs.SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return sm.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			id := sm.GetString(ctx, idKey)
			if id == "" {
				id = uuid.NewString()
				sm.Put(ctx, idKey, id)
			}
			next.ServeHTTP(w, r.WithContext(WithID(ctx, id)))
		}))
	}
}

// WithID returns a copy of ctx carrying the session id.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// IDFromContext returns the session id stored by Middleware, or "".
func IDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}
