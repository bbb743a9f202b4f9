// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"fmt"
	"time"
)

// TimeLayout matches SQLite's CURRENT_TIMESTAMP so stored timestamps compare
// lexically in time order.
const TimeLayout = "2006-01-02 15:04:05"

// MonthLayout is the layout of monthly bucket keys.
const MonthLayout = "2006-01"

// FormatTime renders t in UTC using TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a stored timestamp.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		if t2, err2 := time.Parse(time.RFC3339, s); err2 == nil {
			return t2.UTC(), nil
		}
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

// MonthOf returns the YYYY-MM bucket of a stored timestamp.
func MonthOf(ts string) string {
	if len(ts) < len(MonthLayout) {
		return ts
	}
	return ts[:len(MonthLayout)]
}
