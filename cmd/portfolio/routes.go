// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ScriptRaccoon/portfolio-website/internal/handler"
	"github.com/ScriptRaccoon/portfolio-website/internal/middleware"
	"github.com/ScriptRaccoon/portfolio-website/internal/session"
	"github.com/ScriptRaccoon/portfolio-website/internal/store"
	"github.com/ScriptRaccoon/portfolio-website/internal/tracking"
	"github.com/ScriptRaccoon/portfolio-website/internal/util"
)

const (
	requestTimeout = 30 * time.Second

	// Flood guard in front of /api, on top of the like limiter.
	apiRateLimit = 5
	apiBurst     = 20

	operatorRateLimit = 1
	operatorBurst     = 10

	limiterCleanupInterval = 10 * time.Minute
)

// routes builds the HTTP router. ctx bounds the background limiter cleanup.
func (a *app) routes(ctx context.Context, sm *scs.SessionManager) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(util.RealIP(a.proxies))
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	secCfg := middleware.DefaultSecurityHeadersConfig(a.cfg.IsDevelopment())
	secCfg.ExcludePaths = []string{"/metrics"}
	r.Use(middleware.SecurityHeaders(secCfg))

	health := handler.NewHealthHandler(a.db, a.cache, a.info)
	r.Get("/health", health.Health)
	r.Get("/health/live", health.Liveness)
	r.Handle("/metrics", a.metrics.Handler())
	r.Get("/robots.txt", handler.NewRobotsHandler(handler.RobotsConfig{
		DisallowAll:   a.cfg.IsDevelopment(),
		DisallowPaths: []string{"/metrics"},
	}).Serve)

	apiLimiter := middleware.NewIPRateLimiter("api", apiRateLimit, apiBurst, a.logger, a.metrics)
	go apiLimiter.Cleanup(ctx, limiterCleanupInterval)

	tracker := tracking.NewHandler(tracking.Config{
		Queries:       store.New(a.db),
		Guard:         tracking.NewGuard(a.cfg.SiteOrigin, tracking.NewPathMatcher(a.cfg.TrackedPaths)),
		Geo:           a.geo,
		CountryHeader: a.cfg.CountryHeader,
		Logger:        a.logger,
		Metrics:       a.metrics,
	})
	likes := tracking.NewLikeHandler(a.cache, a.limiter, a.logger, a.metrics)

	r.Route("/api", func(r chi.Router) {
		r.Use(apiLimiter.Middleware())

		r.Group(func(r chi.Router) {
			r.Use(session.Middleware(sm))
			tracker.RegisterRoutes(r)
		})
		likes.RegisterRoutes(r)
	})

	if !a.cfg.AdminEnabled() {
		a.logger.Warn("operator routes disabled, no admin password hash configured")
		return r
	}

	operatorLimiter := middleware.NewIPRateLimiter("operator", operatorRateLimit, operatorBurst, a.logger, a.metrics)
	go operatorLimiter.Cleanup(ctx, limiterCleanupInterval)

	report := handler.NewAnalyticsHandler(a.reporter, a.logger)
	jobs := handler.NewSchedulerHandler(a.scheduler, a.logger)

	r.Route("/analytics", func(r chi.Router) {
		r.Use(operatorLimiter.Middleware())
		r.Use(middleware.BasicAuth(middleware.BasicAuthConfig{
			Realm:        "analytics",
			Username:     a.cfg.AdminUser,
			PasswordHash: a.cfg.AdminPasswordHash,
			Logger:       a.logger,
		}))
		r.Use(middleware.CSRF(middleware.DefaultCSRFConfig(a.csrfKey, a.cfg.IsDevelopment())))

		r.Get("/", report.Report)
		r.Get("/page-visits", report.PageVisits)
		r.Get("/jobs", jobs.List)
		r.Post("/jobs/{name}/run", jobs.Run)
	})

	return r
}
