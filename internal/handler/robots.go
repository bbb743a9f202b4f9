// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"
	"strings"
)

// RobotsConfig holds configuration for robots.txt generation.
type RobotsConfig struct {
	DisallowAll   bool     // development and staging deployments
	DisallowPaths []string // added to the default /api/ and /analytics
}

// RobotsHandler serves a static robots.txt keeping well-behaved crawlers
// away from the tracking and operator endpoints.
type RobotsHandler struct {
	body string
}

// NewRobotsHandler renders the robots.txt body once.
func NewRobotsHandler(cfg RobotsConfig) *RobotsHandler {
	return &RobotsHandler{body: BuildRobots(cfg)}
}

// BuildRobots generates the robots.txt content.
func BuildRobots(cfg RobotsConfig) string {
	var sb strings.Builder
	sb.WriteString("User-agent: *\n")

	if cfg.DisallowAll {
		sb.WriteString("Disallow: /\n")
		return sb.String()
	}

	paths := append([]string{"/api/", "/analytics"}, cfg.DisallowPaths...)
	for _, p := range paths {
		sb.WriteString("Disallow: ")
		sb.WriteString(p)
		sb.WriteString("\n")
	}
	return sb.String()
}

// Serve handles GET /robots.txt.
func (h *RobotsHandler) Serve(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write([]byte(h.body))
}
