package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"NewsSum/internal/domain"
	"NewsSum/internal/metrics"
	"NewsSum/internal/ports"
)

// IngestJobDeps wires one scheduled ingestion job.
type IngestJobDeps struct {
	Spec      domain.JobSpec
	Source    ports.HeadlineSource
	Pipeline  *Pipeline
	Persister *Persister
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	Now       func() time.Time
}

// IngestJob fetches, enriches and persists one batch per run. At most one run
// per job is in flight; scheduled firings and manual triggers share the guard.
type IngestJob struct {
	spec      domain.JobSpec
	source    ports.HeadlineSource
	pipeline  *Pipeline
	persister *Persister
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time

	running sync.Mutex
}

var _ ports.JobRunner = (*IngestJob)(nil)

// NewIngestJob builds a job.
func NewIngestJob(deps IngestJobDeps) *IngestJob {
	j := &IngestJob{
		spec:      deps.Spec,
		source:    deps.Source,
		pipeline:  deps.Pipeline,
		persister: deps.Persister,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		now:       deps.Now,
	}
	if j.logger == nil {
		j.logger = slog.Default()
	}
	j.logger = j.logger.With("job", deps.Spec.Name)
	if j.now == nil {
		j.now = time.Now
	}
	return j
}

// Name returns the job id.
func (j *IngestJob) Name() string { return j.spec.Name }

// Spec returns the job schedule.
func (j *IngestJob) Spec() domain.JobSpec { return j.spec }

// Run executes the job once and returns domain.ErrJobRunning if a run is in flight.
func (j *IngestJob) Run(ctx context.Context) (domain.RunReport, error) {
	if !j.running.TryLock() {
		return domain.RunReport{Job: j.spec.Name}, domain.ErrJobRunning
	}
	defer j.running.Unlock()

	return j.run(ctx)
}

// Start acquires the guard and runs the job in the background.
// done, when non-nil, is called after the run finishes.
func (j *IngestJob) Start(ctx context.Context, done func()) error {
	if !j.running.TryLock() {
		return domain.ErrJobRunning
	}

	go func() {
		defer func() {
			if done != nil {
				done()
			}
		}()
		defer j.running.Unlock()
		defer j.recoverRun(j.now())

		if _, err := j.run(ctx); err != nil {
			j.logger.Error("triggered run failed", "error", err)
		}
	}()
	return nil
}

// Fire is invoked by the cron driver for the firing planned at scheduled.
// Firings later than the misfire grace are dropped; errors and panics are
// logged and never escape.
func (j *IngestJob) Fire(ctx context.Context, scheduled time.Time) {
	started := j.now()

	if late := started.Sub(scheduled); j.spec.MisfireGrace > 0 && late > j.spec.MisfireGrace {
		j.logger.Warn("misfire beyond grace window, dropping run",
			"scheduled", scheduled, "late", late, "grace", j.spec.MisfireGrace)
		j.metrics.RecordRun(j.spec.Name, metrics.OutcomeMisfire, started)
		return
	}

	if !j.running.TryLock() {
		j.logger.Warn("previous run still in flight, skipping firing", "scheduled", scheduled)
		j.metrics.RecordRun(j.spec.Name, metrics.OutcomeSkipped, started)
		return
	}
	defer j.running.Unlock()
	defer j.recoverRun(started)

	if _, err := j.run(ctx); err != nil {
		j.logger.Error("scheduled run failed", "error", err)
	}
}

func (j *IngestJob) recoverRun(started time.Time) {
	if r := recover(); r != nil {
		j.logger.Error("run panicked", "panic", r)
		j.metrics.RecordRun(j.spec.Name, metrics.OutcomePanic, started)
	}
}

func (j *IngestJob) run(ctx context.Context) (domain.RunReport, error) {
	report := domain.RunReport{Job: j.spec.Name, Started: j.now()}
	if j.source == nil || j.pipeline == nil || j.persister == nil {
		return report, fmt.Errorf("job %s is not fully wired", j.spec.Name)
	}

	j.logger.Info("run started", "source", j.source.Name(), "window", j.spec.Window)

	processed := j.pipeline.Run(ctx, j.source, j.spec.Window)
	report.Processed = len(processed)

	outcome := metrics.OutcomeEmpty
	if len(processed) > 0 {
		result := j.persister.Persist(ctx, processed)
		report.Added = result.Added
		report.Skipped = result.Skipped
		outcome = metrics.OutcomeCompleted
	}

	report.Finished = j.now()
	j.metrics.RecordRun(j.spec.Name, outcome, report.Started)
	j.logger.Info("run finished",
		"processed", report.Processed,
		"added", report.Added,
		"skipped", report.Skipped,
		"took", report.Finished.Sub(report.Started))
	return report, nil
}
