// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package analytics

import (
	"context"
	"time"

	"github.com/ScriptRaccoon/portfolio-website/internal/scheduler"
)

// Job names, also used in the trigger endpoint.
const (
	JobAggregation = "aggregation"
	JobCleanup     = "cleanup"
)

// AggregationJob wraps a.Run as a scheduler job.
func AggregationJob(a *Aggregator, schedule string, timeout time.Duration) scheduler.Job {
	return scheduler.Job{
		Name:        JobAggregation,
		Description: "Roll live sessions and visits into monthly counters",
		Schedule:    schedule,
		Timeout:     timeout,
		Run: func(ctx context.Context) error {
			_, err := a.Run(ctx)
			return err
		},
	}
}

// CleanupJob wraps p.Run as a scheduler job.
func CleanupJob(p *Pruner, schedule string, timeout time.Duration) scheduler.Job {
	return scheduler.Job{
		Name:        JobCleanup,
		Description: "Delete aggregated live rows past the retention window",
		Schedule:    schedule,
		Timeout:     timeout,
		Run: func(ctx context.Context) error {
			_, err := p.Run(ctx)
			return err
		},
	}
}
