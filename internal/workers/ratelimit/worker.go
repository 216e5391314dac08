package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type tokenStatus struct {
	throttled      bool
	throttledCount int
	since          time.Time

	// consecutive checks that got no answer from GitHub
	failedChecks int
}

// Worker polls the rate limit of the acting tokens so the remaining budget
// stays current while no scan is running, and logs when a token drops below
// the safety margin and when it recovers.
type Worker struct {
	checker      Checker
	tokenUserIDs []int64
	minRemaining int64
	interval     time.Duration
	logger       *slog.Logger
	now          func() time.Time

	statusMu sync.Mutex
	statuses map[int64]*tokenStatus

	stopCh chan struct{}
	doneCh chan struct{}
}

func NewWorker(
	checker Checker,
	tokenUserIDs []int64,
	minRemaining int64,
	interval time.Duration,
	logger *slog.Logger,
) *Worker {
	return &Worker{
		checker:      checker,
		tokenUserIDs: tokenUserIDs,
		minRemaining: minRemaining,
		interval:     interval,
		logger:       logger,
		now:          time.Now,
		statuses:     make(map[int64]*tokenStatus),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

func (w *Worker) Name() string {
	return "rate_limit"
}

func (w *Worker) Start() error {
	w.logger.Info("Starting rate limit worker",
		"interval", w.interval,
		"token_count", len(w.tokenUserIDs))

	go func() {
		defer func() {
			if r := recover(); r != nil {
				w.logger.Error("Panic in rate limit worker goroutine", "panic", r)
			}
		}()
		w.run()
	}()
	return nil
}

func (w *Worker) Stop() {
	w.logger.Info("Stopping rate limit worker")
	close(w.stopCh)
	<-w.doneCh
}

func (w *Worker) run() {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-w.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	w.CheckAll(ctx)

	for {
		select {
		case <-ticker.C:
			w.CheckAll(ctx)
		case <-w.stopCh:
			return
		}
	}
}

// CheckAll reads the budget of every watched token once.
func (w *Worker) CheckAll(ctx context.Context) {
	for _, id := range w.tokenUserIDs {
		if ctx.Err() != nil {
			return
		}

		remaining, err := w.checker.RefreshBudget(ctx, id)
		if err != nil {
			w.recordFailure(id, err)
			continue
		}

		w.logger.Debug("Rate limit checked", "token_user_id", id, "api_remaining", remaining)
		w.updateStatus(id, remaining)
	}
}

// status returns the tracked state of tokenUserID, creating it on first use.
// Callers hold statusMu.
func (w *Worker) status(tokenUserID int64) *tokenStatus {
	st, ok := w.statuses[tokenUserID]
	if !ok {
		st = &tokenStatus{since: w.now()}
		w.statuses[tokenUserID] = st
	}
	return st
}

// recordFailure counts a check that failed before GitHub reported a budget.
// The last known throttling state is left as it is.
func (w *Worker) recordFailure(tokenUserID int64, err error) {
	w.statusMu.Lock()
	defer w.statusMu.Unlock()

	st := w.status(tokenUserID)
	st.failedChecks++
	w.logger.Warn("Rate limit check failed",
		"token_user_id", tokenUserID,
		"failed_checks", st.failedChecks,
		"error", err)
}

func (w *Worker) updateStatus(tokenUserID int64, remaining int64) {
	w.statusMu.Lock()
	defer w.statusMu.Unlock()

	now := w.now()
	st := w.status(tokenUserID)
	throttled := remaining < w.minRemaining

	if st.failedChecks > 0 {
		w.logger.Info("Rate limit check recovered",
			"token_user_id", tokenUserID,
			"failed_checks", st.failedChecks)
		st.failedChecks = 0
	}

	switch {
	case !st.throttled && throttled:
		st.throttled = true
		st.throttledCount = 1
		st.since = now
		w.logger.Warn("Token below rate limit margin",
			"token_user_id", tokenUserID,
			"api_remaining", remaining,
			"min_remaining", w.minRemaining)
	case st.throttled && throttled:
		st.throttledCount++
	case st.throttled && !throttled:
		w.logger.Info("Token rate limit recovered",
			"token_user_id", tokenUserID,
			"throttled_for", now.Sub(st.since),
			"checks", st.throttledCount)
		st.throttled = false
		st.throttledCount = 0
		st.since = now
	}
}
