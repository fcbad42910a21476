package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"NewsSum/internal/domain"
	"NewsSum/internal/ports"
	"NewsSum/pkg/logger"
)

// CronScheduler drives jobs from standard five-field cron expressions, each in
// its own timezone. Jobs receive the time they were planned for so they can
// apply their misfire grace.
type CronScheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	firings []*firing
	runCtx  context.Context
	cancel  context.CancelFunc
	started bool
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a stopped scheduler.
func NewCronScheduler(log *slog.Logger) *CronScheduler {
	if log == nil {
		log = slog.Default()
	}
	cronLog := logger.NewCron(log, "cron")
	ctx, cancel := context.WithCancel(context.Background())
	return &CronScheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog)),
		),
		logger: log,
		now:    time.Now,
		runCtx: ctx,
		cancel: cancel,
	}
}

// Add registers job under spec. An unknown timezone falls back to UTC.
func (c *CronScheduler) Add(spec domain.JobSpec, job ports.JobRunner) error {
	expr, err := scheduleExpr(spec)
	if err != nil {
		c.logger.Warn("invalid job timezone, using UTC", "job", spec.Name, "timezone", spec.Timezone, "error", err)
	}

	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return fmt.Errorf("parse cron %q for job %s: %w", spec.Cron, spec.Name, err)
	}

	f := &firing{schedule: schedule, job: job, now: c.now}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		f.arm(c.now())
	}
	c.firings = append(c.firings, f)
	c.cron.Schedule(schedule, cron.FuncJob(func() { f.run(c.runCtx) }))
	return nil
}

// Start begins dispatching. Runs see a context that is cancelled by Stop or by ctx.
func (c *CronScheduler) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}

	now := c.now()
	for _, f := range c.firings {
		f.arm(now)
	}

	go func() {
		select {
		case <-ctx.Done():
			c.cancel()
		case <-c.runCtx.Done():
		}
	}()

	c.started = true
	c.cron.Start()
	return nil
}

// Stop stops new firings and waits for running jobs until ctx expires, then cancels them.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	started := c.started
	c.started = false
	c.mu.Unlock()

	if !started {
		c.cancel()
		return nil
	}

	done := c.cron.Stop()
	defer c.cancel()

	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		c.logger.Warn("scheduler stopped before running jobs finished")
		return ctx.Err()
	}
}

// NextRuns reports the next planned firing for every job.
func (c *CronScheduler) NextRuns() map[string]time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]time.Time, len(c.firings))
	for _, f := range c.firings {
		out[f.job.Name()] = f.schedule.Next(c.now())
	}
	return out
}

func scheduleExpr(spec domain.JobSpec) (string, error) {
	tz := spec.Timezone
	if tz == "" {
		tz = "UTC"
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return "CRON_TZ=UTC " + spec.Cron, err
	}
	return "CRON_TZ=" + tz + " " + spec.Cron, nil
}

// firing remembers when the next run was planned so a late dispatch can be
// told apart from an on-time one.
type firing struct {
	schedule cron.Schedule
	job      ports.JobRunner
	now      func() time.Time

	mu       sync.Mutex
	expected time.Time
}

func (f *firing) arm(now time.Time) {
	f.mu.Lock()
	f.expected = f.schedule.Next(now)
	f.mu.Unlock()
}

func (f *firing) run(ctx context.Context) {
	now := f.now()

	f.mu.Lock()
	scheduled := f.expected
	if scheduled.IsZero() || scheduled.After(now) {
		scheduled = now
	}
	f.expected = f.schedule.Next(now)
	f.mu.Unlock()

	f.job.Fire(ctx, scheduled)
}
