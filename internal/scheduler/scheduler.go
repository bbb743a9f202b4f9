// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler runs the periodic maintenance jobs on a cron schedule
// and lets operators trigger them by name.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ScriptRaccoon/portfolio-website/internal/metrics"
)

var (
	// ErrJobNotFound is returned when no job has the requested name.
	ErrJobNotFound = errors.New("job not found")
	// ErrJobRunning is returned when a job is triggered while a run is in progress.
	ErrJobRunning = errors.New("job already running")
)

// Job describes a unit of periodic work.
type Job struct {
	Name        string
	Description string
	// Schedule is a standard 5-field cron expression or a descriptor such as @daily.
	Schedule string
	// Timeout bounds a single run. Zero means no limit.
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

type registeredJob struct {
	job     Job
	entryID cron.EntryID
	running sync.Mutex

	lastRun      time.Time
	lastDuration time.Duration
	lastErr      error
}

// JobInfo is the public view of a registered job.
type JobInfo struct {
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Schedule     string    `json:"schedule"`
	NextRun      time.Time `json:"next_run"`
	LastRun      time.Time `json:"last_run"`
	LastDuration string    `json:"last_duration,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
}

// Scheduler wraps a cron instance with named jobs.
type Scheduler struct {
	cron    *cron.Cron
	logger  *slog.Logger
	metrics *metrics.Metrics
	ctx     context.Context
	cancel  context.CancelFunc

	mu   sync.RWMutex
	jobs map[string]*registeredJob
}

// New creates a scheduler. Schedules are evaluated in UTC so that monthly
// buckets and cron descriptors agree. m may be nil.
func New(logger *slog.Logger, m *metrics.Metrics) *Scheduler {
	cl := cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		logger:  logger,
		metrics: m,
		ctx:     ctx,
		cancel:  cancel,
		jobs:    make(map[string]*registeredJob),
	}
}

// ValidateSchedule checks a cron expression without registering anything.
func ValidateSchedule(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	return nil
}

// Register adds a job to the schedule.
func (s *Scheduler) Register(job Job) error {
	if job.Name == "" {
		return errors.New("job name is required")
	}
	if job.Run == nil {
		return fmt.Errorf("job %s has no run function", job.Name)
	}
	if err := ValidateSchedule(job.Schedule); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("job %s already registered", job.Name)
	}

	rj := &registeredJob{job: job}
	entryID, err := s.cron.AddFunc(job.Schedule, func() {
		if err := s.execute(s.ctx, rj, "schedule"); errors.Is(err, ErrJobRunning) {
			s.logger.Warn("skipping scheduled job, previous run still active", "job", job.Name)
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling job %s: %w", job.Name, err)
	}
	rj.entryID = entryID
	s.jobs[job.Name] = rj

	s.logger.Debug("registered scheduled job", "job", job.Name, "schedule", job.Schedule)
	return nil
}

// Start begins running jobs on their schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop waits for running jobs to finish and stops the scheduler.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.cancel()
	s.logger.Info("scheduler stopped")
}

// Trigger runs the named job now and returns its error.
// The run is detached from ctx cancellation but keeps its values.
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	s.mu.RLock()
	rj, ok := s.jobs[name]
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}

	s.logger.Info("manually triggering job", "job", name)
	return s.execute(context.WithoutCancel(ctx), rj, "manual")
}

// List returns all registered jobs sorted by name.
func (s *Scheduler) List() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]JobInfo, 0, len(s.jobs))
	for _, rj := range s.jobs {
		entry := s.cron.Entry(rj.entryID)
		info := JobInfo{
			Name:        rj.job.Name,
			Description: rj.job.Description,
			Schedule:    rj.job.Schedule,
			NextRun:     entry.Next,
			LastRun:     rj.lastRun,
		}
		if !rj.lastRun.IsZero() {
			info.LastDuration = rj.lastDuration.String()
		}
		if rj.lastErr != nil {
			info.LastError = rj.lastErr.Error()
		}
		result = append(result, info)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// execute runs one job with its timeout, records the outcome and logs it.
func (s *Scheduler) execute(ctx context.Context, rj *registeredJob, trigger string) error {
	if !rj.running.TryLock() {
		return ErrJobRunning
	}
	defer rj.running.Unlock()

	if rj.job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rj.job.Timeout)
		defer cancel()
	}

	start := time.Now()
	err := rj.job.Run(ctx)
	elapsed := time.Since(start)

	s.mu.Lock()
	rj.lastRun = start
	rj.lastDuration = elapsed
	rj.lastErr = err
	s.mu.Unlock()

	s.metrics.JobFinished(rj.job.Name, elapsed.Seconds(), err)

	if err != nil {
		s.logger.Error("scheduled job failed",
			"category", "jobs",
			"job", rj.job.Name,
			"trigger", trigger,
			"duration", elapsed,
			"error", err,
		)
		return err
	}

	s.logger.Info("scheduled job finished",
		"job", rj.job.Name,
		"trigger", trigger,
		"duration", elapsed,
	)
	return nil
}

// cronLogger routes robfig/cron's own logging into slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
