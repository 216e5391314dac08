package starscan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"gitstar-worker/internal/metrics"
	"gitstar-worker/internal/stories/cursors"
	"gitstar-worker/internal/stories/users"
)

// Options bound a single scan invocation.
type Options struct {
	// TokenUserID is whose GitHub token the scan spends.
	TokenUserID  int64
	PollInterval time.Duration
	BatchSize    int
	// MaxUpdates and MaxChecks cap refreshes and visited users per invocation.
	MaxUpdates int
	MaxChecks  int
	// MinRemaining is the rate limit left untouched for other workers.
	MinRemaining int64
	// FreshFor skips users refreshed more recently than this.
	FreshFor     time.Duration
	RequestDelay time.Duration
	Denylist     []string
}

// Worker sweeps all users with stars, most starred first, refreshing the
// stale ones. Progress is checkpointed after every batch so a restart
// resumes where the last committed batch ended.
type Worker struct {
	storage   Storage
	refresher Refresher
	waker     Waker
	opts      Options
	denylist  map[string]struct{}
	limiter   *rate.Limiter
	tracer    trace.Tracer
	logger    *slog.Logger
	now       func() time.Time

	cancel context.CancelFunc
	doneCh chan struct{}
}

// NewWorker creates a new star scan worker
func NewWorker(storage Storage, refresher Refresher, waker Waker, opts Options, logger *slog.Logger) *Worker {
	return &Worker{
		storage:   storage,
		refresher: refresher,
		waker:     waker,
		opts:      opts,
		denylist:  lo.SliceToMap(opts.Denylist, func(login string) (string, struct{}) { return login, struct{}{} }),
		limiter:   rate.NewLimiter(rate.Every(opts.RequestDelay), 1),
		tracer:    otel.Tracer("gitstar-worker/starscan"),
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		doneCh:    make(chan struct{}),
	}
}

// Name returns the worker name
func (w *Worker) Name() string {
	return "star_scan"
}

// Start runs the scan loop in the background until Stop.
func (w *Worker) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	w.logger.Info("Starting star scan worker",
		"token_user_id", w.opts.TokenUserID,
		"batch_size", w.opts.BatchSize,
		"denylist_size", len(w.denylist))

	go func() {
		defer close(w.doneCh)
		defer func() {
			if r := recover(); r != nil {
				w.logger.Error("Panic in star scan worker goroutine", "panic", r)
			}
		}()
		w.Run(ctx)
	}()
	return nil
}

// Stop cancels the running scan and waits for it to return.
func (w *Worker) Stop() {
	w.logger.Info("Stopping star scan worker")
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.doneCh
}

// Run waits for wake-ups and performs one scan per wake-up. A failed scan is
// logged; the next wake-up tries again from the last checkpoint.
func (w *Worker) Run(ctx context.Context) {
	for {
		if !w.waker.Wait(ctx, w.opts.PollInterval) {
			if ctx.Err() != nil {
				return
			}
			continue
		}

		if err := w.Perform(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("Star scan failed", "error", err)
		}
	}
}

type scanState struct {
	lastID    int64
	stars     int64
	numUsers  int
	numChecks int
}

// Perform runs one bounded scan invocation: batches are fetched, refreshed
// and checkpointed until the update or check budget runs out, the rate limit
// margin is reached, or the sweep is finished and its cursors reset.
func (w *Worker) Perform(ctx context.Context) error {
	budget, err := w.refresher.Budget(ctx, w.opts.TokenUserID)
	if err != nil {
		return fmt.Errorf("rate budget: %w", err)
	}

	w.logger.Info("Star scan started", "api_remaining", budget.Remaining())

	st := scanState{
		numUsers:  w.opts.MaxUpdates,
		numChecks: w.opts.MaxChecks,
	}
	staleBefore := w.now().Add(-w.opts.FreshFor)

	for st.numUsers > 0 && st.numChecks > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		finished, err := w.scanBatch(ctx, &st, budget, staleBefore)
		if err != nil {
			return err
		}
		if finished {
			w.logger.Info("Star scan sweep completed and reset", "api_remaining", budget.Remaining())
			return nil
		}
	}

	w.logger.Info("Star scan finished",
		"api_remaining", budget.Remaining(),
		"stars", st.stars,
		"last_id", st.lastID)
	return nil
}

// scanBatch resumes from the checkpoint, processes one batch and commits the
// new checkpoint. finished reports that the sweep ran out of users.
func (w *Worker) scanBatch(ctx context.Context, st *scanState, budget users.Budget, staleBefore time.Time) (finished bool, err error) {
	ctx, span := w.tracer.Start(ctx, "star_scan.batch")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := w.resume(ctx, st); err != nil {
		return false, err
	}

	batch, err := w.nextBatch(ctx, st, min(st.numUsers, w.opts.BatchSize))
	if err != nil {
		return false, err
	}
	if batch == nil {
		if err := w.storage.DeleteCursors(ctx, cursors.StarScanKeys); err != nil {
			return false, fmt.Errorf("reset cursors: %w", err)
		}
		metrics.StarScanSweeps.Inc()
		return true, nil
	}

	span.SetAttributes(
		attribute.Int64("stars", st.stars),
		attribute.Int64("after_id", st.lastID),
		attribute.Int("batch_size", len(batch)))
	w.logger.Info("Star scan batch", "size", len(batch), "stars", st.stars)

	if err := w.processBatch(ctx, st, batch, budget, staleBefore); err != nil {
		return false, err
	}

	if err := w.checkpoint(ctx, st); err != nil {
		return false, err
	}
	return false, nil
}

// resume loads the checkpoint. A zero star cursor starts a new sweep at the
// most starred user.
func (w *Worker) resume(ctx context.Context, st *scanState) error {
	lastID, err := w.storage.FindCursor(ctx, cursors.StarScanUserID)
	if err != nil {
		return fmt.Errorf("find user id cursor: %w", err)
	}
	stars, err := w.storage.FindCursor(ctx, cursors.StarScanStars)
	if err != nil {
		return fmt.Errorf("find stars cursor: %w", err)
	}

	if stars == 0 {
		stars, err = w.storage.MaxStargazersCount(ctx)
		if err != nil {
			return fmt.Errorf("max stargazers count: %w", err)
		}
		lastID = 0
	}

	st.lastID, st.stars = lastID, stars
	return nil
}

// nextBatch returns the next non-empty batch, stepping the star threshold
// down as each one runs dry. nil means the sweep is over.
func (w *Worker) nextBatch(ctx context.Context, st *scanState, limit int) ([]*users.User, error) {
	for st.stars > 0 {
		batch, err := w.storage.ListUsersForStarScan(ctx, users.StarScanCriteria{
			StargazersCount: st.stars,
			AfterID:         st.lastID,
			Limit:           limit,
		})
		if err != nil {
			return nil, fmt.Errorf("list users for star scan: %w", err)
		}
		if len(batch) > 0 {
			return batch, nil
		}

		next, err := w.storage.NextStargazersCountBelow(ctx, st.stars)
		if err != nil {
			return nil, fmt.Errorf("next stargazers count below %d: %w", st.stars, err)
		}
		st.stars, st.lastID = next, 0
	}
	return nil, nil
}

func (w *Worker) processBatch(ctx context.Context, st *scanState, batch []*users.User, budget users.Budget, staleBefore time.Time) error {
	for _, user := range batch {
		if err := ctx.Err(); err != nil {
			return err
		}

		if _, denied := w.denylist[user.Login]; denied {
			w.logger.Info("Skipping denylisted user", "login", user.Login, "user_id", user.ID)
			metrics.StarScanChecked.WithLabelValues("denylisted").Inc()
			st.lastID = max(st.lastID, user.ID)
			continue
		}

		current, err := w.storage.GetUser(ctx, users.GetCriteria{ID: &user.ID})
		if err != nil {
			return fmt.Errorf("get user %d: %w", user.ID, err)
		}

		if current != nil && !current.UpdatedAt.Before(staleBefore) {
			w.logger.Debug("Skipping up-to-date user",
				"login", user.Login,
				"user_id", user.ID,
				"updated_at", current.UpdatedAt)
			metrics.StarScanChecked.WithLabelValues("fresh").Inc()
		} else {
			remaining := budget.Remaining()
			if remaining < w.opts.MinRemaining {
				w.logger.Info("API rate limit margin reached, stopping",
					"api_remaining", remaining,
					"min_remaining", w.opts.MinRemaining)
				st.numChecks = 0
				return nil
			}

			if err := w.limiter.Wait(ctx); err != nil {
				return err
			}

			w.logger.Info("Refreshing user",
				"login", user.Login,
				"user_id", user.ID,
				"stars", st.stars,
				"num_users", st.numUsers,
				"num_checks", st.numChecks,
				"api_remaining", remaining)

			if err := w.refresher.RefreshByID(ctx, user.ID, w.opts.TokenUserID); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				w.logger.Error("Failed to refresh user", "user_id", user.ID, "error", err)
				metrics.StarScanChecked.WithLabelValues("failed").Inc()
			} else {
				metrics.StarScanChecked.WithLabelValues("refreshed").Inc()
			}
			st.numUsers--
		}

		st.numChecks--
		st.lastID = max(st.lastID, user.ID)
	}
	return nil
}

// checkpoint commits both cursors in one transaction.
func (w *Worker) checkpoint(ctx context.Context, st *scanState) error {
	err := w.storage.WithCursorTx(ctx, func(cw cursors.Writer) error {
		if err := cw.WriteCursor(ctx, cursors.StarScanUserID, st.lastID); err != nil {
			return err
		}
		return cw.WriteCursor(ctx, cursors.StarScanStars, st.stars)
	})
	if err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}

	metrics.StarScanStars.Set(float64(st.stars))
	return nil
}
