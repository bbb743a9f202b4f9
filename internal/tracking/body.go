// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package tracking

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

const (
	maxBodyBytes  = 4 << 10
	maxPathLength = 512
)

// Themes accepted by the session endpoint.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

type validator interface {
	Validate() error
}

// SessionBody is the payload of POST /api/track-session.
type SessionBody struct {
	Theme         string `json:"theme"`
	Referrer      string `json:"referrer"`
	ViewportWidth *int   `json:"viewport_width"`
}

// Validate implements validator.
func (b *SessionBody) Validate() error {
	if b.Theme != ThemeLight && b.Theme != ThemeDark {
		return invalidBody("theme must be %q or %q", ThemeLight, ThemeDark)
	}
	if strings.TrimSpace(b.Referrer) == "" {
		return invalidBody("referrer is required")
	}
	if b.ViewportWidth != nil && *b.ViewportWidth < 0 {
		return invalidBody("viewport_width must not be negative")
	}
	return nil
}

// VisitBody is the payload of POST /api/track-visit.
type VisitBody struct {
	Path string `json:"path"`
}

// Validate implements validator.
func (b *VisitBody) Validate() error {
	if !strings.HasPrefix(b.Path, "/") {
		return invalidBody("path must start with /")
	}
	if len(b.Path) > maxPathLength {
		return invalidBody("path longer than %d bytes", maxPathLength)
	}
	return nil
}

// ThemeBody is the payload of POST /api/track-theme.
type ThemeBody struct {
	Theme string `json:"theme"`
}

// Validate implements validator.
func (b *ThemeBody) Validate() error {
	if strings.TrimSpace(b.Theme) == "" {
		return invalidBody("theme is required")
	}
	return nil
}

// decodeJSON strictly decodes the request body into dst and validates it.
// Unknown fields, wrong types and trailing data are all rejected.
func decodeJSON(r *http.Request, dst validator) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return invalidBody("%v", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return invalidBody("unexpected data after JSON object")
	}
	return dst.Validate()
}
