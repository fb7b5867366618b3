package jobs

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/veostudio/studio-agent/internal/logging"
)

// ReportFunc records progress of a running job.
type ReportFunc func(progress int, label string)

// Executor performs the work behind a job. Errors returned are stored on
// the job as its user-facing failure message.
type Executor interface {
	Execute(ctx context.Context, job *ExportJob, report ReportFunc) (Result, error)
}

// Notifier is told about every persisted job change.
type Notifier interface {
	JobUpdated(job *ExportJob)
}

type Runner struct {
	repo         Repository
	executor     Executor
	notifier     Notifier
	logger       *slog.Logger
	pollInterval time.Duration
	wake         chan struct{}
	running      atomic.Bool
	paused       atomic.Bool
}

func NewRunner(repo Repository, executor Executor, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Runner{
		repo:         repo,
		executor:     executor,
		logger:       logging.WithComponent(logger, "runner"),
		pollInterval: 2 * time.Second,
		wake:         make(chan struct{}, 1),
	}
}

// SetNotifier installs n. Call before Start.
func (r *Runner) SetNotifier(n Notifier) {
	r.notifier = n
}

func (r *Runner) Start(ctx context.Context) {
	if r.running.Swap(true) {
		return
	}

	r.logger.Info("export runner started")

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("export runner stopping")
			r.running.Store(false)
			return
		case <-ticker.C:
		case <-r.wake:
		}
		if !r.paused.Load() {
			r.drain(ctx)
		}
	}
}

// Wake asks the runner to look for pending jobs now instead of at the next
// tick.
func (r *Runner) Wake() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Runner) Pause() {
	r.paused.Store(true)
	r.logger.Info("export runner paused")
}

func (r *Runner) Resume() {
	r.paused.Store(false)
	r.logger.Info("export runner resumed")
	r.Wake()
}

func (r *Runner) IsPaused() bool {
	return r.paused.Load()
}

func (r *Runner) IsRunning() bool {
	return r.running.Load()
}

func (r *Runner) drain(ctx context.Context) {
	for ctx.Err() == nil && !r.paused.Load() {
		if !r.processNextJob(ctx) {
			return
		}
	}
}

// processNextJob runs the oldest pending job. It reports whether one ran.
func (r *Runner) processNextJob(ctx context.Context) bool {
	pending, err := r.repo.ListPendingJobs(ctx)
	if err != nil {
		r.logger.Error("failed to list pending jobs", "error", err)
		return false
	}
	if len(pending) == 0 {
		return false
	}

	job := pending[0]
	log := logging.WithJobID(r.logger, job.ID)
	log.Info("processing export job", "bundles", job.BundleCount)

	if err := r.repo.UpdateJobStatus(ctx, job.ID, StatusRunning, ""); err != nil {
		log.Error("failed to mark job running", "error", err)
		return false
	}
	r.notify(ctx, job.ID)

	report := func(progress int, label string) {
		if err := r.repo.UpdateJobProgress(ctx, job.ID, progress, label); err != nil {
			log.Warn("failed to record progress", "error", err)
			return
		}
		r.notify(ctx, job.ID)
	}

	start := time.Now()
	res, err := r.executor.Execute(ctx, job, report)
	if err != nil {
		log.Error("export job failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		r.repo.UpdateJobStatus(context.WithoutCancel(ctx), job.ID, StatusFailed, err.Error())
		r.notify(context.WithoutCancel(ctx), job.ID)
		return true
	}

	if err := r.repo.CompleteJob(ctx, job.ID, res); err != nil {
		log.Error("failed to record completed job", "error", err)
		r.repo.UpdateJobStatus(context.WithoutCancel(ctx), job.ID, StatusFailed, "failed to record result")
	} else {
		log.Info("export job completed",
			"filename", res.Filename,
			"bytes", res.Size,
			"placeholders", res.Placeholders,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	r.notify(context.WithoutCancel(ctx), job.ID)
	return true
}

func (r *Runner) notify(ctx context.Context, id string) {
	if r.notifier == nil {
		return
	}
	job, err := r.repo.GetJob(ctx, id)
	if err != nil || job == nil {
		return
	}
	r.notifier.JobUpdated(job)
}

// ActiveJob returns the running job, or the oldest pending one, or nil.
func (r *Runner) ActiveJob(ctx context.Context) *ExportJob {
	jobs, err := r.repo.ListJobs(ctx, 100)
	if err != nil {
		return nil
	}
	var pending *ExportJob
	for _, j := range jobs {
		switch j.Status {
		case StatusRunning:
			return j
		case StatusPending:
			pending = j
		}
	}
	return pending
}
