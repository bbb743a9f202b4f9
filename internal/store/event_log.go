// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"fmt"
	"time"
)

// Event is a persisted log record.
type Event struct {
	ID        int64  `json:"id"`
	Level     string `json:"level"`
	Category  string `json:"category"`
	Message   string `json:"message"`
	Metadata  string `json:"metadata"`
	CreatedAt string `json:"created_at"`
}

// CreateEventParams holds the fields of a new event_log row.
type CreateEventParams struct {
	Level     string
	Category  string
	Message   string
	Metadata  string
	CreatedAt time.Time
}

const createEvent = `
INSERT INTO event_log (level, category, message, metadata, created_at)
VALUES (?, ?, ?, ?, ?)
`

// CreateEvent stores a log record.
func (q *Queries) CreateEvent(ctx context.Context, arg CreateEventParams) error {
	metadata := arg.Metadata
	if metadata == "" {
		metadata = "{}"
	}
	if _, err := q.db.ExecContext(ctx, createEvent, arg.Level, arg.Category, arg.Message, metadata, FormatTime(arg.CreatedAt)); err != nil {
		return fmt.Errorf("creating event: %w", err)
	}
	return nil
}

const listRecentEvents = `
SELECT id, level, category, message, metadata, created_at
FROM event_log
ORDER BY created_at DESC, id DESC
LIMIT ?
`

// ListRecentEvents returns the newest limit events.
func (q *Queries) ListRecentEvents(ctx context.Context, limit int) ([]Event, error) {
	rows, err := q.db.QueryContext(ctx, listRecentEvents, limit)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := []Event{}
	for rows.Next() {
		var i Event
		if err := rows.Scan(&i.ID, &i.Level, &i.Category, &i.Message, &i.Metadata, &i.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const deleteEventsBefore = `DELETE FROM event_log WHERE created_at < ?`

// DeleteEventsBefore removes events older than cutoff.
func (q *Queries) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteEventsBefore, FormatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("deleting events: %w", err)
	}
	return result.RowsAffected()
}
