// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ScriptRaccoon/portfolio-website/internal/scheduler"
)

// SchedulerHandler lets the operator inspect and trigger maintenance jobs.
type SchedulerHandler struct {
	scheduler *scheduler.Scheduler
	logger    *slog.Logger
}

// NewSchedulerHandler creates a new SchedulerHandler.
func NewSchedulerHandler(s *scheduler.Scheduler, logger *slog.Logger) *SchedulerHandler {
	return &SchedulerHandler{scheduler: s, logger: logger}
}

// List handles GET /analytics/jobs.
func (h *SchedulerHandler) List(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"jobs": h.scheduler.List()})
}

// Run handles POST /analytics/jobs/{name}/run. The job runs to completion
// before the response is written.
func (h *SchedulerHandler) Run(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	err := h.scheduler.Trigger(r.Context(), name)
	switch {
	case errors.Is(err, scheduler.ErrJobNotFound):
		writeJSONError(w, http.StatusNotFound, "Job not found")
	case errors.Is(err, scheduler.ErrJobRunning):
		writeJSONError(w, http.StatusConflict, "Job is already running")
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":  "Job failed",
			"detail": err.Error(),
		})
	default:
		h.logger.Info("job triggered by operator", "job", name)
		writeJSON(w, http.StatusOK, map[string]string{"message": "Job " + name + " finished"})
	}
}
