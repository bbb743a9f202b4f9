// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package tracking implements the public tracking endpoints: session and
// page visit recording behind the ingestion guard, the theme counter and
// the rate-limited like counter.
package tracking

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ScriptRaccoon/portfolio-website/internal/geoip"
	"github.com/ScriptRaccoon/portfolio-website/internal/metrics"
	"github.com/ScriptRaccoon/portfolio-website/internal/session"
	"github.com/ScriptRaccoon/portfolio-website/internal/store"
	"github.com/ScriptRaccoon/portfolio-website/internal/util"
)

const (
	kindSession = "session"
	kindVisit   = "visit"
	kindTheme   = "theme"

	maxCountryLength = 8
)

// CountryLookup resolves a client IP to an ISO country code.
type CountryLookup interface {
	LookupCountry(ip string) string
}

// Config holds the dependencies of Handler.
type Config struct {
	Queries *store.Queries
	Guard   *Guard
	// Geo may be nil. CountryHeader names a request header with a country
	// code set by the edge proxy, used when Geo has no answer.
	Geo           CountryLookup
	CountryHeader string
	Logger        *slog.Logger
	Metrics       *metrics.Metrics
}

// Handler serves the tracking endpoints.
type Handler struct {
	queries       *store.Queries
	guard         *Guard
	geo           CountryLookup
	countryHeader string
	logger        *slog.Logger
	metrics       *metrics.Metrics
	now           func() time.Time
}

// NewHandler creates a tracking handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		queries:       cfg.Queries,
		guard:         cfg.Guard,
		geo:           cfg.Geo,
		countryHeader: cfg.CountryHeader,
		logger:        cfg.Logger,
		metrics:       cfg.Metrics,
		now:           time.Now,
	}
}

// RegisterRoutes mounts the tracking endpoints on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/track-session", h.TrackSession)
	r.Post("/track-visit", h.TrackVisit)
	r.Post("/track-theme", h.TrackTheme)
}

// TrackSession handles POST /api/track-session.
func (h *Handler) TrackSession(w http.ResponseWriter, r *http.Request) {
	if err := h.guard.CheckRequest(r); err != nil {
		h.reject(w, r, kindSession, err)
		return
	}

	var body SessionBody
	if err := decodeJSON(r, &body); err != nil {
		h.reject(w, r, kindSession, err)
		return
	}

	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	userAgent := r.UserAgent()
	client := ParseUserAgent(userAgent)

	inserted, err := h.queries.InsertSession(r.Context(), store.CreateSessionParams{
		ID:         sessionID,
		Referrer:   body.Referrer,
		UserAgent:  userAgent,
		Browser:    client.Browser,
		OS:         client.OS,
		Country:    h.country(r),
		Theme:      body.Theme,
		DeviceType: DeviceType(body.ViewportWidth, client),
		CreatedAt:  h.now(),
	})
	if err != nil {
		h.logger.Error("database error when inserting session", "session_id", sessionID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, msgDatabaseError)
		return
	}

	h.metrics.Tracked(kindSession, inserted)
	if inserted {
		h.logger.Debug("session tracked", "session_id", sessionID, "browser", client.Browser, "os", client.OS)
	}
	writeJSONMessage(w, "Session has been tracked")
}

// TrackVisit handles POST /api/track-visit.
func (h *Handler) TrackVisit(w http.ResponseWriter, r *http.Request) {
	if err := h.guard.CheckRequest(r); err != nil {
		h.reject(w, r, kindVisit, err)
		return
	}

	var body VisitBody
	if err := decodeJSON(r, &body); err != nil {
		h.reject(w, r, kindVisit, err)
		return
	}

	if err := h.guard.CheckPath(body.Path); err != nil {
		h.reject(w, r, kindVisit, err)
		return
	}

	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	inserted, err := h.queries.InsertVisit(r.Context(), store.CreateVisitParams{
		SessionID: sessionID,
		Path:      body.Path,
		CreatedAt: h.now(),
	})
	if err != nil {
		h.logger.Error("database error when inserting visit", "session_id", sessionID, "path", body.Path, "error", err)
		writeJSONError(w, http.StatusInternalServerError, msgDatabaseError)
		return
	}

	h.metrics.Tracked(kindVisit, inserted)
	writeJSONMessage(w, "Page visit has been tracked")
}

// TrackTheme handles POST /api/track-theme.
func (h *Handler) TrackTheme(w http.ResponseWriter, r *http.Request) {
	var body ThemeBody
	if err := decodeJSON(r, &body); err != nil {
		h.reject(w, r, kindTheme, err)
		return
	}

	moved, err := h.queries.IncrementThemeCount(r.Context(), body.Theme)
	if err != nil {
		h.logger.Error("database error when tracking theme", "theme", body.Theme, "error", err)
		writeJSONError(w, http.StatusInternalServerError, msgDatabaseError)
		return
	}
	if !moved {
		h.logger.Debug("theme toggle for unknown theme ignored", "theme", body.Theme)
	}

	h.metrics.Tracked(kindTheme, moved)
	writeJSONMessage(w, "Theme has been tracked successfully")
}

// sessionID returns the id set by the session middleware. A missing id is
// a wiring error, not a client error.
func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := session.IDFromContext(r.Context())
	if id == "" {
		h.logger.Error("session id missing from request context", "path", r.URL.Path)
		writeJSONError(w, http.StatusInternalServerError, msgInternalError)
		return "", false
	}
	return id, true
}

// country prefers a GeoIP answer, then the edge header, then "LOCAL".
func (h *Handler) country(r *http.Request) string {
	var fromGeo string
	if h.geo != nil {
		fromGeo = h.geo.LookupCountry(util.ClientIP(r))
		if fromGeo != "" && fromGeo != geoip.Local {
			return fromGeo
		}
	}

	if h.countryHeader != "" {
		code := strings.ToUpper(strings.TrimSpace(r.Header.Get(h.countryHeader)))
		if code != "" && len(code) <= maxCountryLength {
			return code
		}
	}

	return fromGeo
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request, kind string, err error) {
	var rej *Rejection
	if !errors.As(err, &rej) {
		h.logger.Error("unexpected tracking error", "kind", kind, "error", err)
		writeJSONError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	h.metrics.Rejected(kind, string(rej.Reason))
	h.logger.Info("tracking request blocked",
		"kind", kind,
		"reason", rej.Reason,
		"detail", rej.Detail,
		"path", r.URL.Path,
	)

	message := msgForbidden
	if rej.Status == http.StatusBadRequest {
		message = msgInvalidBody
	}
	writeJSONError(w, rej.Status, message)
}
