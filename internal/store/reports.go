// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"fmt"
)

// LiveSession is a row of sessions_live as shown in reports.
type LiveSession struct {
	ID           string `json:"id"`
	CreatedAt    string `json:"created_at"`
	Referrer     string `json:"referrer"`
	Browser      string `json:"browser"`
	OS           string `json:"os"`
	Country      string `json:"country"`
	Theme        string `json:"theme"`
	DeviceType   string `json:"device_type"`
	AggregatedAt string `json:"aggregated_at,omitempty"`
}

// LiveVisit is a row of visits_live as shown in reports.
type LiveVisit struct {
	ID           int64  `json:"id"`
	SessionID    string `json:"session_id"`
	Path         string `json:"path"`
	CreatedAt    string `json:"created_at"`
	AggregatedAt string `json:"aggregated_at,omitempty"`
}

// MonthlyCount is one row of sessions_monthly.
type MonthlyCount struct {
	Month   string `json:"month"`
	Counter int64  `json:"counter"`
}

// MonthlyVisit is one row of visits_monthly.
type MonthlyVisit struct {
	Month   string `json:"month"`
	Path    string `json:"path"`
	Counter int64  `json:"counter"`
}

// Total is a label with its count, as produced by the *_total views.
type Total struct {
	Label   string `json:"label"`
	Counter int64  `json:"counter"`
}

// Dimension names a session attribute that has a totals view.
type Dimension string

// Session attribute dimensions.
const (
	DimensionReferrer Dimension = "referrers"
	DimensionBrowser  Dimension = "browsers"
	DimensionOS       Dimension = "os"
	DimensionCountry  Dimension = "countries"
	DimensionTheme    Dimension = "themes"
	DimensionDevice   Dimension = "devices"
)

// Dimensions lists every dimension in report order.
var Dimensions = []Dimension{
	DimensionReferrer,
	DimensionBrowser,
	DimensionOS,
	DimensionCountry,
	DimensionTheme,
	DimensionDevice,
}

var totalsQueries = map[Dimension]string{
	DimensionReferrer: `SELECT label, counter FROM referrers_total ORDER BY counter DESC, label`,
	DimensionBrowser:  `SELECT label, counter FROM browsers_total ORDER BY counter DESC, label`,
	DimensionOS:       `SELECT label, counter FROM os_total ORDER BY counter DESC, label`,
	DimensionCountry:  `SELECT label, counter FROM countries_total ORDER BY counter DESC, label`,
	DimensionTheme:    `SELECT label, counter FROM themes_total ORDER BY counter DESC, label`,
	DimensionDevice:   `SELECT label, counter FROM devices_total ORDER BY counter DESC, label`,
}

const listLiveSessions = `
SELECT id, created_at, referrer, COALESCE(browser, ''), COALESCE(os, ''),
       COALESCE(country, ''), theme, COALESCE(device_type, ''), COALESCE(aggregated_at, '')
FROM sessions_live
ORDER BY created_at DESC, id
`

// ListLiveSessions returns every retained live session, newest first.
func (q *Queries) ListLiveSessions(ctx context.Context) ([]LiveSession, error) {
	rows, err := q.db.QueryContext(ctx, listLiveSessions)
	if err != nil {
		return nil, fmt.Errorf("listing live sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := []LiveSession{}
	for rows.Next() {
		var i LiveSession
		if err := rows.Scan(&i.ID, &i.CreatedAt, &i.Referrer, &i.Browser, &i.OS,
			&i.Country, &i.Theme, &i.DeviceType, &i.AggregatedAt); err != nil {
			return nil, fmt.Errorf("scanning live session: %w", err)
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const listLiveVisits = `
SELECT id, session_id, path, created_at, COALESCE(aggregated_at, '')
FROM visits_live
ORDER BY created_at DESC, id DESC
`

// ListLiveVisits returns every retained live visit, newest first.
func (q *Queries) ListLiveVisits(ctx context.Context) ([]LiveVisit, error) {
	rows, err := q.db.QueryContext(ctx, listLiveVisits)
	if err != nil {
		return nil, fmt.Errorf("listing live visits: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := []LiveVisit{}
	for rows.Next() {
		var i LiveVisit
		if err := rows.Scan(&i.ID, &i.SessionID, &i.Path, &i.CreatedAt, &i.AggregatedAt); err != nil {
			return nil, fmt.Errorf("scanning live visit: %w", err)
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const listSessionsMonthly = `SELECT month, counter FROM sessions_monthly ORDER BY month DESC`

// ListSessionsMonthly returns the monthly session counters, newest month first.
func (q *Queries) ListSessionsMonthly(ctx context.Context) ([]MonthlyCount, error) {
	rows, err := q.db.QueryContext(ctx, listSessionsMonthly)
	if err != nil {
		return nil, fmt.Errorf("listing monthly sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := []MonthlyCount{}
	for rows.Next() {
		var i MonthlyCount
		if err := rows.Scan(&i.Month, &i.Counter); err != nil {
			return nil, fmt.Errorf("scanning monthly sessions: %w", err)
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const listVisitsMonthly = `SELECT month, path, counter FROM visits_monthly ORDER BY path, month`

// ListVisitsMonthly returns the monthly visit counters ordered by path and month.
func (q *Queries) ListVisitsMonthly(ctx context.Context) ([]MonthlyVisit, error) {
	rows, err := q.db.QueryContext(ctx, listVisitsMonthly)
	if err != nil {
		return nil, fmt.Errorf("listing monthly visits: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := []MonthlyVisit{}
	for rows.Next() {
		var i MonthlyVisit
		if err := rows.Scan(&i.Month, &i.Path, &i.Counter); err != nil {
			return nil, fmt.Errorf("scanning monthly visits: %w", err)
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const visitMonthRange = `SELECT MIN(month), MAX(month) FROM visits_monthly`

// VisitMonthRange returns the first and last month with visit counters.
// Both are empty when no visits were aggregated yet.
func (q *Queries) VisitMonthRange(ctx context.Context) (string, string, error) {
	var lo, hi sql.NullString
	if err := q.db.QueryRowContext(ctx, visitMonthRange).Scan(&lo, &hi); err != nil {
		return "", "", fmt.Errorf("reading visit month range: %w", err)
	}
	return lo.String, hi.String, nil
}

// ListTotals returns the session counts per value of dim.
func (q *Queries) ListTotals(ctx context.Context, dim Dimension) ([]Total, error) {
	query, ok := totalsQueries[dim]
	if !ok {
		return nil, fmt.Errorf("unknown dimension %q", dim)
	}
	return q.listTotals(ctx, query, string(dim))
}

const listThemeStats = `SELECT theme, count FROM theme_stats ORDER BY count DESC, theme`

// ListThemeStats returns the theme toggle counters.
func (q *Queries) ListThemeStats(ctx context.Context) ([]Total, error) {
	return q.listTotals(ctx, listThemeStats, "theme stats")
}

func (q *Queries) listTotals(ctx context.Context, query, name string) ([]Total, error) {
	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", name, err)
	}
	defer func() { _ = rows.Close() }()

	items := []Total{}
	for rows.Next() {
		var i Total
		if err := rows.Scan(&i.Label, &i.Counter); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", name, err)
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
