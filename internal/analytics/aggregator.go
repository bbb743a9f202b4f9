// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package analytics rolls live tracking rows into monthly counters, prunes
// aggregated rows past the retention window and builds the operator report.
package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/ScriptRaccoon/portfolio-website/internal/logging"
	"github.com/ScriptRaccoon/portfolio-website/internal/metrics"
	"github.com/ScriptRaccoon/portfolio-website/internal/store"
)

// Event kinds handled by the jobs.
const (
	KindSessions = "sessions"
	KindVisits   = "visits"
)

// KindResult reports what one aggregation pass did for an event kind.
type KindResult struct {
	Claimed int `json:"claimed"`
	Buckets int `json:"buckets"`
}

// AggregationResult is the outcome of Aggregator.Run.
type AggregationResult struct {
	Sessions KindResult `json:"sessions"`
	Visits   KindResult `json:"visits"`
}

// Aggregator moves unaggregated live rows into the monthly counters.
type Aggregator struct {
	db      *sql.DB
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewAggregator creates an aggregator. m may be nil.
func NewAggregator(db *sql.DB, logger *slog.Logger, m *metrics.Metrics) *Aggregator {
	return &Aggregator{db: db, logger: logger, metrics: m, now: time.Now}
}

// Run aggregates sessions and visits. Each kind commits or rolls back on its
// own, so a failure in one leaves the other's result in place. The returned
// error joins the failures of both kinds.
func (a *Aggregator) Run(ctx context.Context) (AggregationResult, error) {
	var result AggregationResult
	var errs []error

	sessions, err := a.AggregateSessions(ctx)
	if err != nil {
		a.logger.Error("session aggregation failed", "category", logging.EventCategoryJobs, "error", err)
		errs = append(errs, err)
	} else {
		result.Sessions = sessions
	}

	visits, err := a.AggregateVisits(ctx)
	if err != nil {
		a.logger.Error("visit aggregation failed", "category", logging.EventCategoryJobs, "error", err)
		errs = append(errs, err)
	} else {
		result.Visits = visits
	}

	a.logger.Info("aggregation finished",
		"sessions_claimed", result.Sessions.Claimed,
		"session_months", result.Sessions.Buckets,
		"visits_claimed", result.Visits.Claimed,
		"visit_buckets", result.Visits.Buckets,
	)

	return result, errors.Join(errs...)
}

// AggregateSessions claims every unaggregated session and adds it to the
// counter of the month it was created in.
func (a *Aggregator) AggregateSessions(ctx context.Context) (KindResult, error) {
	var res KindResult

	err := a.inTx(ctx, func(q *store.Queries) error {
		claimed, err := q.ClaimSessions(ctx, a.now())
		if err != nil {
			return err
		}
		res.Claimed = len(claimed)

		counts := make(map[string]int64)
		for _, s := range claimed {
			counts[store.MonthOf(s.CreatedAt)]++
		}

		for _, month := range sortedKeys(counts) {
			if err := q.AddSessionsMonthly(ctx, month, counts[month]); err != nil {
				return err
			}
		}
		res.Buckets = len(counts)
		return nil
	})
	if err != nil {
		return KindResult{}, fmt.Errorf("aggregating sessions: %w", err)
	}

	a.metrics.Aggregated(KindSessions, res.Claimed)
	return res, nil
}

type visitBucket struct {
	month string
	path  string
}

// AggregateVisits claims every unaggregated visit and adds it to the counter
// of its month and path.
func (a *Aggregator) AggregateVisits(ctx context.Context) (KindResult, error) {
	var res KindResult

	err := a.inTx(ctx, func(q *store.Queries) error {
		claimed, err := q.ClaimVisits(ctx, a.now())
		if err != nil {
			return err
		}
		res.Claimed = len(claimed)

		counts := make(map[visitBucket]int64)
		for _, v := range claimed {
			counts[visitBucket{month: store.MonthOf(v.CreatedAt), path: v.Path}]++
		}

		buckets := make([]visitBucket, 0, len(counts))
		for b := range counts {
			buckets = append(buckets, b)
		}
		sort.Slice(buckets, func(i, j int) bool {
			if buckets[i].month != buckets[j].month {
				return buckets[i].month < buckets[j].month
			}
			return buckets[i].path < buckets[j].path
		})

		for _, b := range buckets {
			if err := q.AddVisitsMonthly(ctx, b.month, b.path, counts[b]); err != nil {
				return err
			}
		}
		res.Buckets = len(buckets)
		return nil
	})
	if err != nil {
		return KindResult{}, fmt.Errorf("aggregating visits: %w", err)
	}

	a.metrics.Aggregated(KindVisits, res.Claimed)
	return res, nil
}

// inTx runs fn in a write transaction and commits when it returns nil.
func (a *Aggregator) inTx(ctx context.Context, fn func(q *store.Queries) error) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(store.New(tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
