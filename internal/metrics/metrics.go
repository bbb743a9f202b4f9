// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package metrics exposes Prometheus collectors for the tracking pipeline.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "portfolio"

// Metrics holds every collector the service updates.
type Metrics struct {
	registry *prometheus.Registry

	trackedEvents  *prometheus.CounterVec
	rejections     *prometheus.CounterVec
	aggregatedRows *prometheus.CounterVec
	prunedRows     *prometheus.CounterVec
	jobRuns        *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	likes          prometheus.Counter
	rateLimited    *prometheus.CounterVec
}

// New creates the collectors on a dedicated registry that also carries the
// Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		trackedEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tracked_events_total",
				Help:      "Accepted tracking requests by kind and whether a new row was written",
			},
			[]string{"kind", "outcome"},
		),
		rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tracking_rejections_total",
				Help:      "Tracking requests refused by the ingestion guard",
			},
			[]string{"kind", "reason"},
		),
		aggregatedRows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "aggregated_rows_total",
				Help:      "Live rows folded into monthly counters",
			},
			[]string{"kind"},
		),
		prunedRows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pruned_rows_total",
				Help:      "Aggregated live rows deleted after the retention window",
			},
			[]string{"kind"},
		),
		jobRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "job_runs_total",
				Help:      "Scheduled job runs by job and status",
			},
			[]string{"job", "status"},
		),
		jobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_duration_seconds",
				Help:      "Scheduled job run time",
				Buckets:   prometheus.ExponentialBuckets(0.005, 4, 8),
			},
			[]string{"job"},
		),
		likes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "likes_total",
				Help:      "Likes recorded",
			},
		),
		rateLimited: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limited_total",
				Help:      "Requests refused by a rate limiter",
			},
			[]string{"limiter"},
		),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.trackedEvents,
		m.rejections,
		m.aggregatedRows,
		m.prunedRows,
		m.jobRuns,
		m.jobDuration,
		m.likes,
		m.rateLimited,
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Tracked counts an accepted tracking request.
func (m *Metrics) Tracked(kind string, inserted bool) {
	if m == nil {
		return
	}
	outcome := "duplicate"
	if inserted {
		outcome = "inserted"
	}
	m.trackedEvents.WithLabelValues(kind, outcome).Inc()
}

// Rejected counts a guard rejection.
func (m *Metrics) Rejected(kind, reason string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(kind, reason).Inc()
}

// Aggregated counts rows claimed by a successful rollup.
func (m *Metrics) Aggregated(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.aggregatedRows.WithLabelValues(kind).Add(float64(n))
}

// Pruned counts rows removed by the retention job.
func (m *Metrics) Pruned(kind string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.prunedRows.WithLabelValues(kind).Add(float64(n))
}

// JobFinished records one job run.
func (m *Metrics) JobFinished(job string, seconds float64, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.jobRuns.WithLabelValues(job, status).Inc()
	m.jobDuration.WithLabelValues(job).Observe(seconds)
}

// Liked counts a recorded like.
func (m *Metrics) Liked() {
	if m == nil {
		return
	}
	m.likes.Inc()
}

// RateLimited counts a request refused by the named limiter.
func (m *Metrics) RateLimited(limiter string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(limiter).Inc()
}
