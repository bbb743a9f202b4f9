// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.Tracked("visit", true)
	m.Tracked("visit", false)
	m.Tracked("visit", true)
	m.Rejected("session", "bot")
	m.Aggregated("sessions", 4)
	m.Aggregated("sessions", 0)
	m.Pruned("visits", 2)
	m.Liked()
	m.RateLimited("like")
	m.JobFinished("aggregation", 0.01, nil)
	m.JobFinished("aggregation", 0.02, errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.trackedEvents.WithLabelValues("visit", "inserted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.trackedEvents.WithLabelValues("visit", "duplicate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejections.WithLabelValues("session", "bot")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.aggregatedRows.WithLabelValues("sessions")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.prunedRows.WithLabelValues("visits")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.likes))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rateLimited.WithLabelValues("like")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobRuns.WithLabelValues("aggregation", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobRuns.WithLabelValues("aggregation", "error")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Tracked("visit", true)
		m.Rejected("visit", "origin")
		m.Aggregated("visits", 1)
		m.Pruned("visits", 1)
		m.JobFinished("cleanup", 1, nil)
		m.Liked()
		m.RateLimited("api")
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.Liked()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "portfolio_likes_total 1"))
	assert.True(t, strings.Contains(string(body), "go_goroutines"))
}
