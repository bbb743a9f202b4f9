// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ScriptRaccoon/portfolio-website/internal/logging"
	"github.com/ScriptRaccoon/portfolio-website/internal/metrics"
	"github.com/ScriptRaccoon/portfolio-website/internal/store"
)

// DefaultRetention is how long aggregated live rows are kept.
const DefaultRetention = 7 * 24 * time.Hour

// PruneResult reports how many rows each kind lost.
type PruneResult struct {
	Sessions int64 `json:"sessions"`
	Visits   int64 `json:"visits"`
	Events   int64 `json:"events"`
}

// Pruner deletes aggregated live rows older than the retention window.
// Rows that were never aggregated are never deleted.
type Pruner struct {
	queries        *store.Queries
	retention      time.Duration
	eventRetention time.Duration
	logger         *slog.Logger
	metrics        *metrics.Metrics
	now            func() time.Time
}

// NewPruner creates a pruner. A non-positive retention uses DefaultRetention.
func NewPruner(db *sql.DB, retention time.Duration, logger *slog.Logger, m *metrics.Metrics) *Pruner {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Pruner{
		queries:   store.New(db),
		retention: retention,
		logger:    logger,
		metrics:   m,
		now:       time.Now,
	}
}

// WithEventRetention makes Run also drop event_log records older than d.
func (p *Pruner) WithEventRetention(d time.Duration) *Pruner {
	p.eventRetention = d
	return p
}

// Retention returns the retention window.
func (p *Pruner) Retention() time.Duration {
	return p.retention
}

// Run prunes sessions and visits independently and joins their failures.
func (p *Pruner) Run(ctx context.Context) (PruneResult, error) {
	var result PruneResult
	var errs []error

	n, err := p.PruneSessions(ctx)
	if err != nil {
		p.logger.Error("session cleanup failed", "category", logging.EventCategoryJobs, "error", err)
		errs = append(errs, err)
	}
	result.Sessions = n

	n, err = p.PruneVisits(ctx)
	if err != nil {
		p.logger.Error("visit cleanup failed", "category", logging.EventCategoryJobs, "error", err)
		errs = append(errs, err)
	}
	result.Visits = n

	if p.eventRetention > 0 {
		n, err = p.queries.DeleteEventsBefore(ctx, p.now().Add(-p.eventRetention))
		if err != nil {
			p.logger.Error("event log cleanup failed", "category", logging.EventCategoryJobs, "error", err)
			errs = append(errs, err)
		}
		result.Events = n
	}

	p.logger.Info("cleanup finished",
		"sessions_deleted", result.Sessions,
		"visits_deleted", result.Visits,
		"events_deleted", result.Events,
	)

	return result, errors.Join(errs...)
}

// PruneSessions deletes sessions aggregated before the retention cutoff.
func (p *Pruner) PruneSessions(ctx context.Context) (int64, error) {
	n, err := p.queries.DeleteAggregatedSessions(ctx, p.cutoff())
	if err != nil {
		return 0, fmt.Errorf("pruning sessions: %w", err)
	}
	p.metrics.Pruned(KindSessions, n)
	return n, nil
}

// PruneVisits deletes visits aggregated before the retention cutoff.
func (p *Pruner) PruneVisits(ctx context.Context) (int64, error) {
	n, err := p.queries.DeleteAggregatedVisits(ctx, p.cutoff())
	if err != nil {
		return 0, fmt.Errorf("pruning visits: %w", err)
	}
	p.metrics.Pruned(KindVisits, n)
	return n, nil
}

func (p *Pruner) cutoff() time.Time {
	return p.now().Add(-p.retention)
}
