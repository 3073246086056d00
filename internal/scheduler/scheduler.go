// Package scheduler fires the daily fetch and monthly aggregation jobs at
// fixed UTC times and retries failed runs with exponential backoff.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/navid-fn/ethmetrics/configs"
	"github.com/navid-fn/ethmetrics/internal/metrics"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
)

const defaultRetryBase = 30 * time.Second

// Job is one scheduled unit of work.
type Job struct {
	Name string

	// Next returns the first fire time strictly after now.
	Next func(now time.Time) time.Time

	// Run does the work. A returned error triggers the retry policy.
	Run func(ctx context.Context) error
}

// RetryPolicy bounds the retries of one failed run.
type RetryPolicy struct {
	// Count is the number of retries after the first attempt.
	Count int

	// MaxDuration caps the total time spent retrying.
	MaxDuration time.Duration

	// Base is the first backoff delay; it doubles on every retry.
	Base time.Duration
}

// PolicyFromConfig builds the retry policy of scheduled runs.
func PolicyFromConfig(cfg configs.ScheduleConfig) RetryPolicy {
	return RetryPolicy{
		Count:       cfg.RetryCount,
		MaxDuration: cfg.MaxRetryDuration,
		Base:        defaultRetryBase,
	}
}

func (p RetryPolicy) backoff() retry.Backoff {
	base := p.Base
	if base <= 0 {
		base = defaultRetryBase
	}
	b := retry.NewExponential(base)
	if p.MaxDuration > 0 {
		b = retry.WithMaxDuration(p.MaxDuration, b)
	}
	return retry.WithMaxRetries(uint64(max(p.Count, 0)), b)
}

type Scheduler struct {
	jobs    []Job
	policy  RetryPolicy
	logger  *slog.Logger
	metrics *metrics.Metrics

	now func() time.Time
}

// New creates a scheduler. m may be nil.
func New(policy RetryPolicy, logger *slog.Logger, m *metrics.Metrics) *Scheduler {
	return &Scheduler{
		policy:  policy,
		logger:  logger.With("component", "scheduler"),
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Scheduler) Add(job Job) {
	s.jobs = append(s.jobs, job)
}

// Run blocks until ctx is cancelled, firing every job at its next time.
func (s *Scheduler) Run(ctx context.Context) error {
	if len(s.jobs) == 0 {
		return fmt.Errorf("no jobs scheduled")
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, job := range s.jobs {
		job := job
		g.Go(func() error {
			s.loop(ctx, job)
			return nil
		})
	}
	return g.Wait()
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	for {
		next := job.Next(s.now())
		wait := next.Sub(s.now())
		s.logger.Info("Next run scheduled", "job", job.Name, "at", next.Format(time.RFC3339), "in", wait.Round(time.Minute))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if err := s.RunOnce(ctx, job); err != nil && ctx.Err() == nil {
				s.logger.Error("Scheduled run failed", "job", job.Name, "error", err)
			}
		}
	}
}

// RunOnce runs job under the retry policy.
func (s *Scheduler) RunOnce(ctx context.Context, job Job) error {
	s.logger.Info("Starting scheduled run", "job", job.Name)

	attempt := 0
	err := retry.Do(ctx, s.policy.backoff(), func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			s.logger.Warn("Retrying scheduled run", "job", job.Name, "attempt", attempt)
		}
		if err := job.Run(ctx); err != nil {
			s.logger.Warn("Scheduled run attempt failed", "job", job.Name, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})

	if err != nil {
		s.metrics.ScheduledRun(job.Name, "error")
		return fmt.Errorf("%s: %w", job.Name, err)
	}
	s.metrics.ScheduledRun(job.Name, "ok")
	s.logger.Info("Scheduled run completed", "job", job.Name, "attempts", attempt)
	return nil
}

// DailyAt fires every day at hour:minute UTC.
func DailyAt(hour, minute int) func(time.Time) time.Time {
	return func(now time.Time) time.Time {
		now = now.UTC()
		next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC)
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}
		return next
	}
}

// MonthlyAt fires on the given day of every month at hour:00 UTC.
// day must be 1..28 so it exists in every month.
func MonthlyAt(day, hour int) func(time.Time) time.Time {
	return func(now time.Time) time.Time {
		now = now.UTC()
		next := time.Date(now.Year(), now.Month(), day, hour, 0, 0, 0, time.UTC)
		if !next.After(now) {
			next = next.AddDate(0, 1, 0)
		}
		return next
	}
}
