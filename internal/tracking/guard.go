// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package tracking

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
)

// Sentinel errors carried by *Rejection.
var (
	ErrOriginMismatch = errors.New("request origin not allowed")
	ErrBot            = errors.New("bot user agent")
	ErrContentType    = errors.New("content type must be application/json")
	ErrInvalidBody    = errors.New("invalid request body")
	ErrPathNotTracked = errors.New("path is not tracked")
)

// Reason labels a rejection in logs and metrics.
type Reason string

// Rejection reasons, in the order the guard checks them.
const (
	ReasonOrigin      Reason = "origin"
	ReasonBot         Reason = "bot"
	ReasonContentType Reason = "content_type"
	ReasonInvalidBody Reason = "invalid_body"
	ReasonPath        Reason = "path_not_tracked"
)

// Rejection is returned when a tracking request must not be recorded.
type Rejection struct {
	Reason Reason
	Status int
	Err    error
	Detail string
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return r.Err.Error()
	}
	return r.Err.Error() + ": " + r.Detail
}

func (r *Rejection) Unwrap() error {
	return r.Err
}

func forbidden(reason Reason, err error, detail string) *Rejection {
	return &Rejection{Reason: reason, Status: http.StatusForbidden, Err: err, Detail: detail}
}

func invalidBody(format string, args ...any) *Rejection {
	return &Rejection{
		Reason: ReasonInvalidBody,
		Status: http.StatusBadRequest,
		Err:    ErrInvalidBody,
		Detail: fmt.Sprintf(format, args...),
	}
}

// Guard screens tracking requests before anything is written.
type Guard struct {
	origin string
	paths  *PathMatcher
}

// NewGuard creates a guard. siteOrigin is a normalized scheme://host[:port];
// when empty the origin of each request is used.
func NewGuard(siteOrigin string, paths *PathMatcher) *Guard {
	return &Guard{
		origin: strings.ToLower(strings.TrimSuffix(siteOrigin, "/")),
		paths:  paths,
	}
}

// CheckRequest runs the origin, bot and content type checks, in that order.
func (g *Guard) CheckRequest(r *http.Request) error {
	if err := g.checkOrigin(r); err != nil {
		return err
	}
	if IsBot(r.UserAgent()) {
		return forbidden(ReasonBot, ErrBot, "")
	}
	return checkContentType(r)
}

// CheckPath rejects paths outside the allow-list.
func (g *Guard) CheckPath(path string) error {
	if !g.paths.Match(path) {
		return forbidden(ReasonPath, ErrPathNotTracked, path)
	}
	return nil
}

// checkOrigin accepts a matching Origin header, or, without one, a Referer
// on the site origin. Requests carrying neither are refused.
func (g *Guard) checkOrigin(r *http.Request) error {
	expected := g.expectedOrigin(r)

	if origin := r.Header.Get("Origin"); origin != "" {
		if strings.ToLower(strings.TrimSuffix(origin, "/")) != expected {
			return forbidden(ReasonOrigin, ErrOriginMismatch, origin)
		}
		return nil
	}

	if referer := r.Header.Get("Referer"); referer != "" {
		if !sameOriginURL(referer, expected) {
			return forbidden(ReasonOrigin, ErrOriginMismatch, referer)
		}
		return nil
	}

	return forbidden(ReasonOrigin, ErrOriginMismatch, "no origin or referer")
}

func (g *Guard) expectedOrigin(r *http.Request) string {
	if g.origin != "" {
		return g.origin
	}
	return requestOrigin(r)
}

// sameOriginURL reports whether rawURL lives on origin. The origin must be
// followed by a path, query or nothing, so https://site.evil does not pass
// for https://site.
func sameOriginURL(rawURL, origin string) bool {
	lower := strings.ToLower(rawURL)
	if !strings.HasPrefix(lower, origin) {
		return false
	}
	rest := lower[len(origin):]
	return rest == "" || rest[0] == '/' || rest[0] == '?' || rest[0] == '#'
}

// requestOrigin rebuilds the origin the request was addressed to.
func requestOrigin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		first, _, _ := strings.Cut(proto, ",")
		scheme = strings.ToLower(strings.TrimSpace(first))
	}
	return scheme + "://" + strings.ToLower(r.Host)
}

func checkContentType(r *http.Request) error {
	ct := r.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil || mediaType != "application/json" {
		return forbidden(ReasonContentType, ErrContentType, ct)
	}
	return nil
}
