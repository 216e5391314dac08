package updateuser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"gitstar-worker/internal/metrics"
	"gitstar-worker/internal/stories/jobs"
)

type Options struct {
	Workers      int
	PollInterval time.Duration
	// LeaseTimeout is how long a claimed job stays ours before any worker
	// may take it again.
	LeaseTimeout time.Duration
}

// Worker drains update_user_jobs. Each goroutine claims jobs under its own
// token; a job is deleted once its user is refreshed, otherwise its lease
// runs out and it is claimed again.
type Worker struct {
	storage   Storage
	refresher Refresher
	waker     Waker
	opts      Options
	tracer    trace.Tracer
	logger    *slog.Logger
	now       func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker creates a new update user worker
func NewWorker(storage Storage, refresher Refresher, waker Waker, opts Options, logger *slog.Logger) *Worker {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Worker{
		storage:   storage,
		refresher: refresher,
		waker:     waker,
		opts:      opts,
		tracer:    otel.Tracer("gitstar-worker/updateuser"),
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Name returns the worker name
func (w *Worker) Name() string {
	return "update_user"
}

func (w *Worker) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	w.logger.Info("Starting update user worker",
		"workers", w.opts.Workers,
		"lease_timeout", w.opts.LeaseTimeout)

	for i := 0; i < w.opts.Workers; i++ {
		owner := uuid.NewString()
		logger := w.logger.With("owner", owner)

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					logger.Error("Panic in update user worker goroutine", "panic", r)
				}
			}()
			w.run(ctx, owner, logger)
		}()
	}
	return nil
}

func (w *Worker) Stop() {
	w.logger.Info("Stopping update user worker")
	if w.cancel == nil {
		return
	}
	w.cancel()
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, owner string, logger *slog.Logger) {
	for {
		if _, err := w.Drain(ctx, owner); err != nil && ctx.Err() == nil {
			logger.Error("Update user jobs failed", "error", err)
		}

		w.waker.Wait(ctx, w.opts.PollInterval)
		if ctx.Err() != nil {
			return
		}
	}
}

// Drain claims and processes jobs as owner until none is claimable. It stops
// at the first store error; job level failures are logged and skipped.
func (w *Worker) Drain(ctx context.Context, owner string) (int, error) {
	processed := 0
	for ctx.Err() == nil {
		claimed, err := w.processNext(ctx, owner)
		if err != nil {
			return processed, err
		}
		if !claimed {
			return processed, nil
		}
		processed++
	}
	return processed, ctx.Err()
}

// processNext claims one job. claimed is false when no lease has expired.
func (w *Worker) processNext(ctx context.Context, owner string) (claimed bool, err error) {
	until := w.now().Add(w.opts.LeaseTimeout)

	id, err := w.storage.AcquireUpdateUserJob(ctx, owner, until)
	if err != nil {
		return false, fmt.Errorf("acquire job: %w", err)
	}
	if id == jobs.NoJob {
		return false, nil
	}
	metrics.JobsClaimed.Inc()

	job, err := w.storage.FindOwnedUpdateUserJob(ctx, id, owner, until)
	if errors.Is(err, jobs.ErrMalformedPayload) {
		w.logger.Error("Malformed update user job, leaving it to expire", "job_id", id, "error", err)
		metrics.JobsFailed.WithLabelValues("malformed").Inc()
		return true, nil
	}
	if err != nil {
		return true, fmt.Errorf("find job %d: %w", id, err)
	}
	if job == nil {
		w.logger.Info("Update user job was reclaimed by another worker", "job_id", id)
		metrics.JobsLostRace.Inc()
		return true, nil
	}

	if err := w.perform(ctx, job); err != nil {
		if ctx.Err() != nil {
			return true, ctx.Err()
		}
		w.logger.Error("Failed to update user, leaving job to expire",
			"job_id", job.ID,
			"kind", job.Payload.Kind(),
			"retry_after", job.TimeoutAt,
			"error", err)
		metrics.JobsFailed.WithLabelValues("refresh").Inc()
		return true, nil
	}

	if err := w.storage.ReleaseUpdateUserJob(ctx, job.ID); err != nil {
		return true, fmt.Errorf("release job %d: %w", job.ID, err)
	}
	metrics.JobsReleased.Inc()

	return true, nil
}

func (w *Worker) perform(ctx context.Context, job *jobs.Job) (err error) {
	ctx, span := w.tracer.Start(ctx, "update_user.job", trace.WithAttributes(
		attribute.Int64("job_id", job.ID),
		attribute.String("kind", string(job.Payload.Kind())),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	p := job.Payload
	switch p.Kind() {
	case jobs.KindByID:
		w.logger.Info("Updating user", "job_id", job.ID, "user_id", *p.UserID, "token_user_id", p.TokenUserID)
		return w.refresher.RefreshByID(ctx, *p.UserID, p.TokenUserID)
	default:
		w.logger.Info("Updating user", "job_id", job.ID, "login", *p.UserName, "token_user_id", p.TokenUserID)
		return w.refresher.RefreshByLogin(ctx, *p.UserName, p.TokenUserID)
	}
}
