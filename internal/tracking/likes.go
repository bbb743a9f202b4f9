// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package tracking

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-chi/chi/v5"

	"github.com/ScriptRaccoon/portfolio-website/internal/cache"
	"github.com/ScriptRaccoon/portfolio-website/internal/limiter"
	"github.com/ScriptRaccoon/portfolio-website/internal/metrics"
	"github.com/ScriptRaccoon/portfolio-website/internal/util"
)

// LikeHandler serves the per-page like counter.
type LikeHandler struct {
	store   cache.Cache
	limiter *limiter.Limiter
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewLikeHandler creates a like handler. Counters live in store under
// "like" + the pathname with every "/" replaced by ":".
func NewLikeHandler(store cache.Cache, lim *limiter.Limiter, logger *slog.Logger, m *metrics.Metrics) *LikeHandler {
	return &LikeHandler{store: store, limiter: lim, logger: logger, metrics: m}
}

// RegisterRoutes mounts the like endpoints on r.
func (h *LikeHandler) RegisterRoutes(r chi.Router) {
	r.Get("/like", h.Get)
	r.Post("/like", h.Like)
}

type likesResponse struct {
	Likes int64 `json:"likes"`
}

// Get handles GET /api/like?pathname=...
func (h *LikeHandler) Get(w http.ResponseWriter, r *http.Request) {
	pathname := r.URL.Query().Get("pathname")
	if !validPathname(pathname) {
		writeJSONError(w, http.StatusBadRequest, "Invalid pathname")
		return
	}

	likes, err := h.count(r, pathname)
	if err != nil {
		h.logger.Error("reading like counter", "pathname", pathname, "error", err)
		writeJSONError(w, http.StatusInternalServerError, msgDatabaseError)
		return
	}

	writeJSON(w, http.StatusOK, likesResponse{Likes: likes})
}

// Like handles POST /api/like. The body is the plain-text pathname.
// A client that likes again within the limiter window gets 405 and its
// lock is restarted.
func (h *LikeHandler) Like(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxPathLength+1))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid pathname")
		return
	}
	pathname := strings.TrimSpace(string(raw))
	if !validPathname(pathname) {
		writeJSONError(w, http.StatusBadRequest, "Invalid pathname")
		return
	}

	ctx := r.Context()
	ip := util.ClientIP(r)

	locked, err := h.limiter.IsLocked(ctx, ip)
	if err != nil {
		h.logger.Error("checking like rate limit", "ip", ip, "error", err)
		writeJSONError(w, http.StatusInternalServerError, msgDatabaseError)
		return
	}
	if locked {
		if err := h.limiter.Lock(ctx, ip); err != nil {
			h.logger.Warn("refreshing like rate limit", "ip", ip, "error", err)
		}
		h.metrics.RateLimited("like")
		writeJSONError(w, http.StatusMethodNotAllowed, "Too many likes, slow down")
		return
	}

	likes, err := h.store.Incr(ctx, likeKey(pathname))
	if err != nil {
		h.logger.Error("incrementing like counter", "pathname", pathname, "error", err)
		writeJSONError(w, http.StatusInternalServerError, msgDatabaseError)
		return
	}

	if err := h.limiter.Lock(ctx, ip); err != nil {
		h.logger.Warn("setting like rate limit", "ip", ip, "error", err)
	}
	h.metrics.Liked()

	writeJSON(w, http.StatusOK, likesResponse{Likes: likes})
}

func (h *LikeHandler) count(r *http.Request, pathname string) (int64, error) {
	val, err := h.store.Get(r.Context(), likeKey(pathname))
	if errors.Is(err, cache.ErrCacheMiss) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(string(val), 10, 64)
}

func likeKey(pathname string) string {
	return "like" + strings.ReplaceAll(pathname, "/", ":")
}

func validPathname(p string) bool {
	if !strings.HasPrefix(p, "/") || len(p) > maxPathLength {
		return false
	}
	return strings.IndexFunc(p, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	}) < 0
}
