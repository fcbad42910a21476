package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"NewsSum/internal/domain"
	"NewsSum/internal/ports"
)

// Scheduler wires the cron driver with the ingestion jobs and serves manual triggers.
type Scheduler struct {
	driver ports.Scheduler
	jobs   map[string]*IngestJob
	order  []string
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// mu orders inflight.Add against Stop's Wait.
	mu       sync.Mutex
	stopped  bool
	inflight sync.WaitGroup
}

// NewScheduler registers jobs by name; later duplicates replace earlier ones.
func NewScheduler(driver ports.Scheduler, jobs []*IngestJob, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		driver: driver,
		jobs:   make(map[string]*IngestJob, len(jobs)),
		logger: log,
		ctx:    ctx,
		cancel: cancel,
	}
	for _, job := range jobs {
		if _, dup := s.jobs[job.Name()]; !dup {
			s.order = append(s.order, job.Name())
		}
		s.jobs[job.Name()] = job
	}
	return s
}

// Start registers every job with the driver and starts it.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	for _, name := range s.order {
		job := s.jobs[name]
		if err := s.driver.Add(job.Spec(), job); err != nil {
			return fmt.Errorf("schedule job %s: %w", name, err)
		}
		spec := job.Spec()
		s.logger.Info("job scheduled", "job", name, "cron", spec.Cron, "timezone", spec.Timezone, "source", spec.Source)
	}

	return s.driver.Start(ctx)
}

// Stop tears down the driver, cancels triggered runs and waits for them.
// Triggers after Stop return domain.ErrSchedulerStopped.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	var err error
	if s.driver != nil {
		err = s.driver.Stop(ctx)
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("stopped before triggered runs finished")
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

// Trigger starts the named job in the background. It returns
// domain.ErrUnknownJob, domain.ErrJobRunning or domain.ErrSchedulerStopped
// without starting anything.
func (s *Scheduler) Trigger(name string) error {
	job, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownJob, name)
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return domain.ErrSchedulerStopped
	}
	s.inflight.Add(1)
	s.mu.Unlock()

	if err := job.Start(s.ctx, s.inflight.Done); err != nil {
		s.inflight.Done()
		return err
	}
	s.logger.Info("job triggered manually", "job", name)
	return nil
}

// RunNow executes the named job synchronously.
func (s *Scheduler) RunNow(ctx context.Context, name string) (domain.RunReport, error) {
	job, ok := s.jobs[name]
	if !ok {
		return domain.RunReport{Job: name}, fmt.Errorf("%w: %s", domain.ErrUnknownJob, name)
	}
	return job.Run(ctx)
}

// Jobs lists job schedules in registration order.
func (s *Scheduler) Jobs() []domain.JobSpec {
	specs := make([]domain.JobSpec, 0, len(s.order))
	for _, name := range s.order {
		specs = append(specs, s.jobs[name].Spec())
	}
	return specs
}
