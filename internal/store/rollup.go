// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"fmt"
	"time"
)

// ClaimedSession is a live session row stamped by ClaimSessions.
type ClaimedSession struct {
	ID        string
	CreatedAt string
}

// ClaimedVisit is a live visit row stamped by ClaimVisits.
type ClaimedVisit struct {
	ID        int64
	Path      string
	CreatedAt string
}

const claimSessions = `
UPDATE sessions_live SET aggregated_at = ?
WHERE aggregated_at IS NULL
RETURNING id, created_at
`

// ClaimSessions stamps every unaggregated session with at and returns the
// stamped rows. Run it inside the transaction that adds them to the monthly
// counters, so a rollback releases the claim.
func (q *Queries) ClaimSessions(ctx context.Context, at time.Time) ([]ClaimedSession, error) {
	rows, err := q.db.QueryContext(ctx, claimSessions, FormatTime(at))
	if err != nil {
		return nil, fmt.Errorf("claiming sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []ClaimedSession
	for rows.Next() {
		var i ClaimedSession
		if err := rows.Scan(&i.ID, &i.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning claimed session: %w", err)
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("claiming sessions: %w", err)
	}
	return items, nil
}

const claimVisits = `
UPDATE visits_live SET aggregated_at = ?
WHERE aggregated_at IS NULL
RETURNING id, path, created_at
`

// ClaimVisits is the visit counterpart of ClaimSessions.
func (q *Queries) ClaimVisits(ctx context.Context, at time.Time) ([]ClaimedVisit, error) {
	rows, err := q.db.QueryContext(ctx, claimVisits, FormatTime(at))
	if err != nil {
		return nil, fmt.Errorf("claiming visits: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []ClaimedVisit
	for rows.Next() {
		var i ClaimedVisit
		if err := rows.Scan(&i.ID, &i.Path, &i.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning claimed visit: %w", err)
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("claiming visits: %w", err)
	}
	return items, nil
}

const addSessionsMonthly = `
INSERT INTO sessions_monthly (month, counter) VALUES (?, ?)
ON CONFLICT (month) DO UPDATE SET counter = counter + excluded.counter
`

// AddSessionsMonthly adds n to the session counter of month.
func (q *Queries) AddSessionsMonthly(ctx context.Context, month string, n int64) error {
	if _, err := q.db.ExecContext(ctx, addSessionsMonthly, month, n); err != nil {
		return fmt.Errorf("adding %d sessions to %s: %w", n, month, err)
	}
	return nil
}

const addVisitsMonthly = `
INSERT INTO visits_monthly (month, path, counter) VALUES (?, ?, ?)
ON CONFLICT (month, path) DO UPDATE SET counter = counter + excluded.counter
`

// AddVisitsMonthly adds n to the visit counter of (month, path).
func (q *Queries) AddVisitsMonthly(ctx context.Context, month, path string, n int64) error {
	if _, err := q.db.ExecContext(ctx, addVisitsMonthly, month, path, n); err != nil {
		return fmt.Errorf("adding %d visits to %s %s: %w", n, month, path, err)
	}
	return nil
}

const deleteAggregatedSessions = `
DELETE FROM sessions_live
WHERE aggregated_at IS NOT NULL AND aggregated_at < ?
`

// DeleteAggregatedSessions removes sessions aggregated before cutoff.
func (q *Queries) DeleteAggregatedSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteAggregatedSessions, FormatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("deleting aggregated sessions: %w", err)
	}
	return result.RowsAffected()
}

const deleteAggregatedVisits = `
DELETE FROM visits_live
WHERE aggregated_at IS NOT NULL AND aggregated_at < ?
`

// DeleteAggregatedVisits removes visits aggregated before cutoff.
func (q *Queries) DeleteAggregatedVisits(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteAggregatedVisits, FormatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("deleting aggregated visits: %w", err)
	}
	return result.RowsAffected()
}
