// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ScriptRaccoon/portfolio-website/internal/analytics"
	"github.com/ScriptRaccoon/portfolio-website/internal/cache"
	"github.com/ScriptRaccoon/portfolio-website/internal/scheduler"
	"github.com/ScriptRaccoon/portfolio-website/internal/store"
	"github.com/ScriptRaccoon/portfolio-website/internal/testutil"
	"github.com/ScriptRaccoon/portfolio-website/internal/version"
)

func TestAnalyticsHandler_Report(t *testing.T) {
	db := testutil.TestDB(t)
	_, err := store.New(db).InsertSession(context.Background(), store.CreateSessionParams{
		ID:        "s1",
		Referrer:  "direct",
		Theme:     "light",
		CreatedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	require.NoError(t, err)

	h := NewAnalyticsHandler(analytics.NewReporter(db), testutil.DiscardLogger())

	w := httptest.NewRecorder()
	h.Report(w, httptest.NewRequest(http.MethodGet, "/analytics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var rep analytics.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rep))
	require.Len(t, rep.LiveSessions, 1)
	assert.Equal(t, "s1", rep.LiveSessions[0].ID)
	assert.Len(t, rep.Totals, len(store.Dimensions))
}

func TestAnalyticsHandler_PageVisits(t *testing.T) {
	db := testutil.TestDB(t)
	q := store.New(db)
	require.NoError(t, q.AddVisitsMonthly(context.Background(), "2025-01", "/", 3))
	require.NoError(t, q.AddVisitsMonthly(context.Background(), "2025-03", "/", 1))

	h := NewAnalyticsHandler(analytics.NewReporter(db), testutil.DiscardLogger())

	w := httptest.NewRecorder()
	h.PageVisits(w, httptest.NewRequest(http.MethodGet, "/analytics/page-visits", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var pv analytics.PageVisits
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pv))
	assert.Equal(t, []string{"2025-01", "2025-02", "2025-03"}, pv.Months)
	require.Len(t, pv.Paths, 1)
	assert.Equal(t, []int64{3, 0, 1}, pv.Paths[0].Counts)
}

func TestAnalyticsHandler_DatabaseError(t *testing.T) {
	db := testutil.TestDB(t)
	h := NewAnalyticsHandler(analytics.NewReporter(db), testutil.DiscardLogger())
	require.NoError(t, db.Close())

	w := httptest.NewRecorder()
	h.Report(w, httptest.NewRequest(http.MethodGet, "/analytics", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Database error"}`, w.Body.String())
}

func newJobsRouter(t *testing.T, jobs ...scheduler.Job) http.Handler {
	t.Helper()

	s := scheduler.New(testutil.DiscardLogger(), nil)
	for _, j := range jobs {
		require.NoError(t, s.Register(j))
	}

	h := NewSchedulerHandler(s, testutil.DiscardLogger())
	r := chi.NewRouter()
	r.Get("/analytics/jobs", h.List)
	r.Post("/analytics/jobs/{name}/run", h.Run)
	return r
}

func TestSchedulerHandler_Run(t *testing.T) {
	runs := 0
	router := newJobsRouter(t,
		scheduler.Job{Name: "aggregation", Schedule: "@daily", Run: func(context.Context) error {
			runs++
			return nil
		}},
		scheduler.Job{Name: "cleanup", Schedule: "@monthly", Run: func(context.Context) error {
			return errors.New("disk full")
		}},
	)

	tests := []struct {
		name     string
		job      string
		wantCode int
		wantBody string
	}{
		{"success", "aggregation", http.StatusOK, `{"message":"Job aggregation finished"}`},
		{"failure", "cleanup", http.StatusInternalServerError, `{"error":"Job failed","detail":"disk full"}`},
		{"unknown", "reindex", http.StatusNotFound, `{"error":"Job not found"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/analytics/jobs/"+tt.job+"/run", nil))
			assert.Equal(t, tt.wantCode, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
		})
	}
	assert.Equal(t, 1, runs)
}

func TestSchedulerHandler_RunWhileRunning(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	router := newJobsRouter(t, scheduler.Job{Name: "aggregation", Schedule: "@daily", Run: func(context.Context) error {
		close(started)
		<-release
		return nil
	}})

	done := make(chan int)
	go func() {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/analytics/jobs/aggregation/run", nil))
		done <- w.Code
	}()
	<-started

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/analytics/jobs/aggregation/run", nil))
	assert.Equal(t, http.StatusConflict, w.Code)

	close(release)
	assert.Equal(t, http.StatusOK, <-done)
}

func TestSchedulerHandler_List(t *testing.T) {
	router := newJobsRouter(t,
		scheduler.Job{Name: "cleanup", Schedule: "@monthly", Run: func(context.Context) error { return nil }},
		scheduler.Job{Name: "aggregation", Schedule: "@daily", Run: func(context.Context) error { return nil }},
	)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/analytics/jobs", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Jobs []scheduler.JobInfo `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Jobs, 2)
	assert.Equal(t, "aggregation", body.Jobs[0].Name)
	assert.Equal(t, "cleanup", body.Jobs[1].Name)
}

func TestHealthHandler_Health(t *testing.T) {
	db := testutil.TestDB(t)
	c := cache.NewMemoryCache(cache.MemoryCacheOptions{})
	h := NewHealthHandler(db, c, version.Info{Version: "v1.2.3"})

	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var status HealthStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "v1.2.3", status.Version)
	assert.Equal(t, "healthy", status.Checks["database"].Status)
	assert.Equal(t, "memory", status.Checks["cache"].Backend)

	require.NoError(t, c.Close())

	w = httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "degraded", status.Status)
	assert.Equal(t, "unhealthy", status.Checks["cache"].Status)
}

func TestHealthHandler_Liveness(t *testing.T) {
	h := NewHealthHandler(nil, nil, version.Info{})

	w := httptest.NewRecorder()
	h.Liveness(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"alive"}`, w.Body.String())
}
