// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ScriptRaccoon/portfolio-website/internal/store"
)

var testNow = time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func seedSession(t *testing.T, db *sql.DB, id string, at time.Time) {
	t.Helper()
	_, err := store.New(db).InsertSession(context.Background(), store.CreateSessionParams{
		ID:         id,
		Referrer:   "direct",
		UserAgent:  "test",
		Browser:    "Firefox",
		OS:         "Linux",
		Country:    "DE",
		Theme:      "dark",
		DeviceType: "desktop",
		CreatedAt:  at,
	})
	require.NoError(t, err)
}

func seedVisit(t *testing.T, db *sql.DB, sessionID, path string, at time.Time) {
	t.Helper()
	_, err := store.New(db).InsertVisit(context.Background(), store.CreateVisitParams{
		SessionID: sessionID,
		Path:      path,
		CreatedAt: at,
	})
	require.NoError(t, err)
}

func monthlySessions(t *testing.T, db *sql.DB) map[string]int64 {
	t.Helper()
	rows, err := store.New(db).ListSessionsMonthly(context.Background())
	require.NoError(t, err)
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Month] = r.Counter
	}
	return out
}

func monthlyVisits(t *testing.T, db *sql.DB) map[string]int64 {
	t.Helper()
	rows, err := store.New(db).ListVisitsMonthly(context.Background())
	require.NoError(t, err)
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[fmt.Sprintf("%s %s", r.Month, r.Path)] = r.Counter
	}
	return out
}

func day(month time.Month, d int) time.Time {
	return time.Date(2025, month, d, 12, 0, 0, 0, time.UTC)
}
