// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/ScriptRaccoon/portfolio-website/internal/auth"
	"github.com/ScriptRaccoon/portfolio-website/internal/util"
)

// BasicAuthConfig configures operator authentication.
type BasicAuthConfig struct {
	Realm        string
	Username     string
	PasswordHash string // argon2id or bcrypt
	Logger       *slog.Logger
}

// BasicAuth protects a route group with HTTP basic authentication. The
// password is checked with auth.Verify.
func BasicAuth(cfg BasicAuthConfig) func(http.Handler) http.Handler {
	realm := cfg.Realm
	if realm == "" {
		realm = "analytics"
	}
	challenge := `Basic realm="` + realm + `", charset="UTF-8"`

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || !checkCredentials(cfg, user, pass) {
				if ok {
					cfg.Logger.Warn("operator login failed", "ip", util.ClientIP(r), "user", user)
				}
				w.Header().Set("WWW-Authenticate", challenge)
				writeJSONError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// checkCredentials compares both parts even when the username is wrong so
// the response time does not reveal which one failed.
func checkCredentials(cfg BasicAuthConfig, user, pass string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(cfg.Username)) == 1
	passOK, err := auth.Verify(pass, cfg.PasswordHash)
	if err != nil {
		cfg.Logger.Error("operator password hash unusable", "error", err)
	}
	return userOK && passOK
}
