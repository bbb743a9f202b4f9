// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"log/slog"
	"net/http"

	"github.com/ScriptRaccoon/portfolio-website/internal/analytics"
)

// AnalyticsHandler serves the operator report.
type AnalyticsHandler struct {
	reporter *analytics.Reporter
	logger   *slog.Logger
}

// NewAnalyticsHandler creates a new AnalyticsHandler.
func NewAnalyticsHandler(reporter *analytics.Reporter, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{reporter: reporter, logger: logger}
}

// Report handles GET /analytics.
func (h *AnalyticsHandler) Report(w http.ResponseWriter, r *http.Request) {
	rep, err := h.reporter.Build(r.Context())
	if err != nil {
		h.logger.Error("building analytics report", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "Database error")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// PageVisits handles GET /analytics/page-visits.
func (h *AnalyticsHandler) PageVisits(w http.ResponseWriter, r *http.Request) {
	pv, err := h.reporter.PageVisits(r.Context())
	if err != nil {
		h.logger.Error("building page visits", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "Database error")
		return
	}
	writeJSON(w, http.StatusOK, pv)
}
