// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ScriptRaccoon/portfolio-website/internal/metrics"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegisterValidation(t *testing.T) {
	s := New(testLogger(), nil)
	noop := func(context.Context) error { return nil }

	tests := []struct {
		name    string
		job     Job
		wantErr bool
	}{
		{"valid descriptor", Job{Name: "a", Schedule: "@daily", Run: noop}, false},
		{"valid expression", Job{Name: "b", Schedule: "0 3 * * *", Run: noop}, false},
		{"duplicate", Job{Name: "a", Schedule: "@daily", Run: noop}, true},
		{"missing name", Job{Schedule: "@daily", Run: noop}, true},
		{"missing run", Job{Name: "c", Schedule: "@daily"}, true},
		{"bad schedule", Job{Name: "d", Schedule: "every day", Run: noop}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Register(tt.job)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTrigger(t *testing.T) {
	m := metrics.New()
	s := New(testLogger(), m)
	var runs atomic.Int32
	boom := errors.New("boom")

	require.NoError(t, s.Register(Job{
		Name:     "aggregation",
		Schedule: "@daily",
		Run: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	}))
	require.NoError(t, s.Register(Job{
		Name:     "cleanup",
		Schedule: "@monthly",
		Run:      func(context.Context) error { return boom },
	}))

	require.NoError(t, s.Trigger(context.Background(), "aggregation"))
	assert.Equal(t, int32(1), runs.Load())

	assert.ErrorIs(t, s.Trigger(context.Background(), "cleanup"), boom)
	assert.ErrorIs(t, s.Trigger(context.Background(), "missing"), ErrJobNotFound)

	jobs := s.List()
	require.Len(t, jobs, 2)
	assert.Equal(t, "aggregation", jobs[0].Name)
	assert.False(t, jobs[0].LastRun.IsZero())
	assert.Empty(t, jobs[0].LastError)
	assert.Equal(t, "cleanup", jobs[1].Name)
	assert.Equal(t, "boom", jobs[1].LastError)
}

func TestTriggerAppliesTimeout(t *testing.T) {
	s := New(testLogger(), nil)

	require.NoError(t, s.Register(Job{
		Name:     "slow",
		Schedule: "@hourly",
		Timeout:  20 * time.Millisecond,
		Run: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}))

	err := s.Trigger(context.Background(), "slow")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTriggerIgnoresCallerCancellation(t *testing.T) {
	s := New(testLogger(), nil)
	require.NoError(t, s.Register(Job{
		Name:     "job",
		Schedule: "@hourly",
		Run:      func(ctx context.Context) error { return ctx.Err() },
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, s.Trigger(ctx, "job"))
}

func TestTriggerWhileRunning(t *testing.T) {
	s := New(testLogger(), nil)
	started := make(chan struct{})
	release := make(chan struct{})

	require.NoError(t, s.Register(Job{
		Name:     "long",
		Schedule: "@hourly",
		Run: func(context.Context) error {
			close(started)
			<-release
			return nil
		},
	}))

	done := make(chan error, 1)
	go func() { done <- s.Trigger(context.Background(), "long") }()
	<-started

	assert.ErrorIs(t, s.Trigger(context.Background(), "long"), ErrJobRunning)
	close(release)
	assert.NoError(t, <-done)
}

func TestStartStopAndNextRun(t *testing.T) {
	s := New(testLogger(), nil)
	require.NoError(t, s.Register(Job{
		Name:     "job",
		Schedule: "@daily",
		Run:      func(context.Context) error { return nil },
	}))

	s.Start()
	jobs := s.List()
	require.Len(t, jobs, 1)
	assert.True(t, jobs[0].NextRun.After(time.Now()))
	s.Stop()
}

func TestValidateSchedule(t *testing.T) {
	assert.NoError(t, ValidateSchedule("@monthly"))
	assert.NoError(t, ValidateSchedule("*/5 * * * *"))
	assert.Error(t, ValidateSchedule(""))
	assert.Error(t, ValidateSchedule("61 * * * *"))
}
