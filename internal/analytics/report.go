// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ScriptRaccoon/portfolio-website/internal/geoip"
	"github.com/ScriptRaccoon/portfolio-website/internal/store"
)

// maxMonths bounds MonthRange so a corrupt bucket key cannot produce an
// unbounded series.
const maxMonths = 1200

// DefaultEventLimit is how many event log records the report includes.
const DefaultEventLimit = 50

// ErrInvalidMonthRange is returned by MonthRange for malformed or reversed bounds.
var ErrInvalidMonthRange = errors.New("invalid month range")

// Share is one label of a totals table with its share of all sessions.
type Share struct {
	Label   string  `json:"label"`
	Name    string  `json:"name"`
	Counter int64   `json:"counter"`
	Percent float64 `json:"percent"`
}

// DimensionTotals is the totals table of one session attribute.
type DimensionTotals struct {
	Dimension store.Dimension `json:"dimension"`
	Total     int64           `json:"total"`
	Items     []Share         `json:"items"`
}

// PathMonths is the monthly visit history of one path.
type PathMonths struct {
	Path   string               `json:"path"`
	Total  int64                `json:"total"`
	Months []store.MonthlyCount `json:"months"`
}

// Report is the operator view of the collected data.
type Report struct {
	GeneratedAt     string               `json:"generated_at"`
	LiveSessions    []store.LiveSession  `json:"live_sessions"`
	MonthlySessions []store.MonthlyCount `json:"monthly_sessions"`
	Totals          []DimensionTotals    `json:"totals"`
	LiveVisits      []store.LiveVisit    `json:"live_visits"`
	MonthlyVisits   []PathMonths         `json:"monthly_visits"`
	ThemeToggles    []store.Total        `json:"theme_toggles"`
	RecentEvents    []store.Event        `json:"recent_events"`
}

// PathSeries holds one path's visit count for every month of PageVisits.Months.
type PathSeries struct {
	Path   string  `json:"path"`
	Total  int64   `json:"total"`
	Counts []int64 `json:"counts"`
}

// PageVisits is the path by month visit matrix.
type PageVisits struct {
	Months []string     `json:"months"`
	Paths  []PathSeries `json:"paths"`
}

// Reporter reads the event store for the operator endpoints.
type Reporter struct {
	queries    *store.Queries
	eventLimit int
	now        func() time.Time
}

// NewReporter creates a reporter on db.
func NewReporter(db *sql.DB) *Reporter {
	return &Reporter{
		queries:    store.New(db),
		eventLimit: DefaultEventLimit,
		now:        time.Now,
	}
}

// Build assembles the full report.
func (r *Reporter) Build(ctx context.Context) (*Report, error) {
	rep := &Report{GeneratedAt: store.FormatTime(r.now())}
	var err error

	if rep.LiveSessions, err = r.queries.ListLiveSessions(ctx); err != nil {
		return nil, err
	}
	if rep.MonthlySessions, err = r.queries.ListSessionsMonthly(ctx); err != nil {
		return nil, err
	}

	for _, dim := range store.Dimensions {
		totals, err := r.queries.ListTotals(ctx, dim)
		if err != nil {
			return nil, err
		}
		rep.Totals = append(rep.Totals, Shares(dim, totals))
	}

	if rep.LiveVisits, err = r.queries.ListLiveVisits(ctx); err != nil {
		return nil, err
	}

	monthly, err := r.queries.ListVisitsMonthly(ctx)
	if err != nil {
		return nil, err
	}
	rep.MonthlyVisits = GroupByPath(monthly)

	if rep.ThemeToggles, err = r.queries.ListThemeStats(ctx); err != nil {
		return nil, err
	}
	if rep.RecentEvents, err = r.queries.ListRecentEvents(ctx, r.eventLimit); err != nil {
		return nil, err
	}

	return rep, nil
}

// PageVisits builds the visit matrix over every month from the first to the
// last aggregated one, months without visits included.
func (r *Reporter) PageVisits(ctx context.Context) (*PageVisits, error) {
	lo, hi, err := r.queries.VisitMonthRange(ctx)
	if err != nil {
		return nil, err
	}
	if lo == "" {
		return &PageVisits{Months: []string{}, Paths: []PathSeries{}}, nil
	}

	months, err := MonthRange(lo, hi)
	if err != nil {
		return nil, err
	}

	rows, err := r.queries.ListVisitsMonthly(ctx)
	if err != nil {
		return nil, err
	}
	return BuildPageVisits(months, rows), nil
}

// Shares turns raw totals into a table with percentages rounded to one
// decimal. Country codes get their English names.
func Shares(dim store.Dimension, totals []store.Total) DimensionTotals {
	out := DimensionTotals{Dimension: dim, Items: make([]Share, 0, len(totals))}
	for _, t := range totals {
		out.Total += t.Counter
	}

	for _, t := range totals {
		name := t.Label
		if dim == store.DimensionCountry {
			name = geoip.CountryName(t.Label)
		}
		out.Items = append(out.Items, Share{
			Label:   t.Label,
			Name:    name,
			Counter: t.Counter,
			Percent: percent(t.Counter, out.Total),
		})
	}
	return out
}

func percent(n, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(n)*1000/float64(total)) / 10
}

// GroupByPath groups monthly visit rows, ordered by path and month, into one
// entry per path.
func GroupByPath(rows []store.MonthlyVisit) []PathMonths {
	out := []PathMonths{}
	for _, row := range rows {
		if len(out) == 0 || out[len(out)-1].Path != row.Path {
			out = append(out, PathMonths{Path: row.Path})
		}
		last := &out[len(out)-1]
		last.Total += row.Counter
		last.Months = append(last.Months, store.MonthlyCount{Month: row.Month, Counter: row.Counter})
	}
	return out
}

// BuildPageVisits lays rows out over months. Paths are sorted by total
// visits, most visited first, ties by path.
func BuildPageVisits(months []string, rows []store.MonthlyVisit) *PageVisits {
	index := make(map[string]int, len(months))
	for i, m := range months {
		index[m] = i
	}

	byPath := make(map[string]*PathSeries)
	for _, row := range rows {
		i, ok := index[row.Month]
		if !ok {
			continue
		}
		s, ok := byPath[row.Path]
		if !ok {
			s = &PathSeries{Path: row.Path, Counts: make([]int64, len(months))}
			byPath[row.Path] = s
		}
		s.Counts[i] += row.Counter
		s.Total += row.Counter
	}

	paths := make([]PathSeries, 0, len(byPath))
	for _, s := range byPath {
		paths = append(paths, *s)
	}
	sort.Slice(paths, func(i, j int) bool {
		if paths[i].Total != paths[j].Total {
			return paths[i].Total > paths[j].Total
		}
		return paths[i].Path < paths[j].Path
	})

	return &PageVisits{Months: months, Paths: paths}
}

// AddMonth shifts a YYYY-MM month by n months.
func AddMonth(month string, n int) (string, error) {
	t, err := time.Parse(store.MonthLayout, month)
	if err != nil {
		return "", fmt.Errorf("parsing month %q: %w", month, err)
	}
	return t.AddDate(0, n, 0).Format(store.MonthLayout), nil
}

// MonthRange lists every month from lo to hi inclusive.
func MonthRange(lo, hi string) ([]string, error) {
	start, err := time.Parse(store.MonthLayout, lo)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMonthRange, err)
	}
	end, err := time.Parse(store.MonthLayout, hi)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMonthRange, err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: %s is after %s", ErrInvalidMonthRange, lo, hi)
	}

	var months []string
	for t := start; !t.After(end); t = t.AddDate(0, 1, 0) {
		if len(months) == maxMonths {
			return nil, fmt.Errorf("%w: more than %d months", ErrInvalidMonthRange, maxMonths)
		}
		months = append(months, t.Format(store.MonthLayout))
	}
	return months, nil
}
