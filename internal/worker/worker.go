package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/IntakeDeskAI/Shrubb-sub001/internal/models"
	"github.com/IntakeDeskAI/Shrubb-sub001/internal/store"
)

// Opts holds configuration for a Worker.
type Opts struct {
	ID           string
	PollInterval time.Duration
	LockTimeout  time.Duration
	MaxAttempts  int

	nudges *NudgeScheduler
}

// Option configures Opts.
type Option func(*Opts)

// WithID sets the worker's lock identity.
func WithID(id string) Option {
	return func(o *Opts) { o.ID = id }
}

// WithPollInterval sets the queue polling cadence.
func WithPollInterval(d time.Duration) Option {
	return func(o *Opts) { o.PollInterval = d }
}

// WithLockTimeout sets how long a running job's lock holds before the job is
// presumed abandoned and becomes claimable again.
func WithLockTimeout(d time.Duration) Option {
	return func(o *Opts) { o.LockTimeout = d }
}

// WithMaxAttempts sets the total attempt budget per job.
func WithMaxAttempts(n int) Option {
	return func(o *Opts) { o.MaxAttempts = n }
}

// WithNudgeScheduler attaches a nudge scheduler that runs opportunistically
// on the worker's poll ticks.
func WithNudgeScheduler(s *NudgeScheduler) Option {
	return func(o *Opts) { o.nudges = s }
}

// Worker polls the job queue, claims one job per tick, and runs it to a
// terminal or requeued state. Multiple workers may poll the same queue; the
// claim protocol in the store guarantees each job lands on exactly one of
// them.
type Worker struct {
	store        store.Store
	registry     *Registry
	nudges       *NudgeScheduler
	id           string
	pollInterval time.Duration
	lockTimeout  time.Duration
	maxAttempts  int
}

// NewWorker builds a worker over the given store and handler registry.
func NewWorker(st store.Store, registry *Registry, options ...Option) *Worker {
	opts := Opts{
		PollInterval: 2 * time.Second,
		LockTimeout:  5 * time.Minute,
		MaxAttempts:  3,
	}
	for _, opt := range options {
		opt(&opts)
	}
	return &Worker{
		store:        st,
		registry:     registry,
		nudges:       opts.nudges,
		id:           opts.ID,
		pollInterval: opts.PollInterval,
		lockTimeout:  opts.LockTimeout,
		maxAttempts:  opts.MaxAttempts,
	}
}

// Run polls until the context is cancelled. Each tick first gives the nudge
// scheduler a chance to promote due nudges, then claims and executes at most
// one job.
func (w *Worker) Run(ctx context.Context) error {
	slog.Info("Worker.Run: starting", "workerID", w.id, "pollInterval", w.pollInterval, "maxAttempts", w.maxAttempts)
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("Worker.Run: stopping", "workerID", w.id)
			return ctx.Err()
		case <-ticker.C:
			if w.nudges != nil {
				w.nudges.MaybeScan(ctx, time.Now())
			}
			w.Tick(ctx, time.Now())
		}
	}
}

// Tick claims and executes at most one job. Exposed for tests and for callers
// that drive the loop themselves.
func (w *Worker) Tick(ctx context.Context, now time.Time) {
	cutoff := now.Add(-w.lockTimeout)
	job, err := w.store.ClaimNextJob(w.id, cutoff)
	if err != nil {
		slog.Error("Worker.Tick: claim failed", "workerID", w.id, "error", err)
		return
	}
	if job == nil {
		return
	}
	w.execute(ctx, job)
}

// execute runs one claimed job through handler resolution, tenant resolution,
// payload validation, and dispatch, then records the outcome.
func (w *Worker) execute(ctx context.Context, job *models.Job) {
	slog.Info("Worker.execute: claimed job", "workerID", w.id, "jobID", job.ID, "type", job.Type, "attempt", job.Attempts)

	// An unregistered type can never succeed on retry, so it fails
	// terminally regardless of the remaining attempt budget.
	handler, err := w.registry.Resolve(job.Type)
	if err != nil {
		slog.Error("Worker.execute: no handler for job", "jobID", job.ID, "type", job.Type)
		if ferr := w.store.MarkJobFailed(job.ID, err.Error()); ferr != nil {
			slog.Error("Worker.execute: failed to mark job failed", "jobID", job.ID, "error", ferr)
		}
		return
	}

	if err := w.resolveTenant(job); err != nil {
		w.finishWithError(job, fmt.Errorf("tenant resolution: %w", err))
		return
	}

	if err := models.ValidatePayload(job.Type, job.Payload); err != nil {
		w.finishWithError(job, fmt.Errorf("invalid payload: %w", err))
		return
	}

	result, err := handler(ctx, job)
	if err != nil {
		w.finishWithError(job, err)
		return
	}

	if err := w.store.MarkJobSucceeded(job.ID, result); err != nil {
		slog.Error("Worker.execute: failed to mark job succeeded", "jobID", job.ID, "error", err)
		return
	}
	slog.Info("Worker.execute: job succeeded", "workerID", w.id, "jobID", job.ID, "type", job.Type)
}

// resolveTenant fills in job.TenantID when the enqueuer left it empty. The
// project referenced by the payload wins; otherwise the owner's oldest
// membership decides. The result is persisted so billing and retries see it.
func (w *Worker) resolveTenant(job *models.Job) error {
	if job.TenantID != "" {
		return nil
	}
	tenantID := ""
	if projectID := models.ProjectRef(job.Payload); projectID != "" {
		id, err := w.store.TenantForProject(projectID)
		if err != nil {
			return fmt.Errorf("lookup tenant for project %s: %w", projectID, err)
		}
		tenantID = id
	}
	if tenantID == "" && job.OwnerID != "" {
		id, err := w.store.FirstTenantForUser(job.OwnerID)
		if err != nil {
			return fmt.Errorf("lookup tenant for user %s: %w", job.OwnerID, err)
		}
		tenantID = id
	}
	if tenantID == "" {
		return fmt.Errorf("no tenant resolvable for job %s", job.ID)
	}
	if err := w.store.SetJobTenant(job.ID, tenantID); err != nil {
		return fmt.Errorf("persist tenant %s: %w", tenantID, err)
	}
	job.TenantID = tenantID
	return nil
}

// finishWithError applies the retry policy: requeue while the attempt budget
// lasts, fail terminally once it is spent. Attempts were already incremented
// at claim time.
func (w *Worker) finishWithError(job *models.Job, cause error) {
	if job.Attempts >= w.maxAttempts {
		slog.Error("Worker.finishWithError: job failed terminally", "jobID", job.ID, "type", job.Type, "attempts", job.Attempts, "error", cause)
		if err := w.store.MarkJobFailed(job.ID, cause.Error()); err != nil {
			slog.Error("Worker.finishWithError: failed to mark job failed", "jobID", job.ID, "error", err)
		}
		return
	}
	slog.Warn("Worker.finishWithError: job requeued", "jobID", job.ID, "type", job.Type, "attempts", job.Attempts, "maxAttempts", w.maxAttempts, "error", cause)
	if err := w.store.RequeueJob(job.ID, cause.Error()); err != nil {
		slog.Error("Worker.finishWithError: failed to requeue job", "jobID", job.ID, "error", err)
	}
}
