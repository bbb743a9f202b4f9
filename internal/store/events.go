// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const insertSession = `
INSERT INTO sessions_live (id, created_at, referrer, user_agent, browser, os, country, theme, device_type)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO NOTHING
`

// CreateSessionParams holds the attributes of a new live session row.
type CreateSessionParams struct {
	ID         string
	Referrer   string
	UserAgent  string
	Browser    string
	OS         string
	Country    string
	Theme      string
	DeviceType string
	CreatedAt  time.Time
}

// InsertSession records a session. A session id that already exists is left
// untouched; the returned bool reports whether a row was written.
func (q *Queries) InsertSession(ctx context.Context, arg CreateSessionParams) (bool, error) {
	result, err := q.db.ExecContext(ctx, insertSession,
		arg.ID,
		FormatTime(arg.CreatedAt),
		arg.Referrer,
		nullString(arg.UserAgent),
		nullString(arg.Browser),
		nullString(arg.OS),
		nullString(arg.Country),
		arg.Theme,
		nullString(arg.DeviceType),
	)
	if err != nil {
		return false, fmt.Errorf("inserting session: %w", err)
	}
	return inserted(result)
}

const insertVisit = `
INSERT INTO visits_live (session_id, path, created_at)
VALUES (?, ?, ?)
ON CONFLICT (session_id, path) DO NOTHING
`

// CreateVisitParams holds the attributes of a new live visit row.
type CreateVisitParams struct {
	SessionID string
	Path      string
	CreatedAt time.Time
}

// InsertVisit records a page visit. A second visit to the same path within
// one session is ignored; the returned bool reports whether a row was written.
func (q *Queries) InsertVisit(ctx context.Context, arg CreateVisitParams) (bool, error) {
	result, err := q.db.ExecContext(ctx, insertVisit, arg.SessionID, arg.Path, FormatTime(arg.CreatedAt))
	if err != nil {
		return false, fmt.Errorf("inserting visit: %w", err)
	}
	return inserted(result)
}

const incrementThemeCount = `UPDATE theme_stats SET count = count + 1 WHERE theme = ?`

// IncrementThemeCount bumps the counter of a known theme. Unknown themes
// are not an error; the bool reports whether a counter moved.
func (q *Queries) IncrementThemeCount(ctx context.Context, theme string) (bool, error) {
	result, err := q.db.ExecContext(ctx, incrementThemeCount, theme)
	if err != nil {
		return false, fmt.Errorf("incrementing theme %q: %w", theme, err)
	}
	return inserted(result)
}

func inserted(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading rows affected: %w", err)
	}
	return n > 0, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
