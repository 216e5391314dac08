package environment

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"gitstar-worker/internal/config"
	"gitstar-worker/internal/infra/github"
	"gitstar-worker/internal/storage"
	"gitstar-worker/internal/stories/jobs"
	"gitstar-worker/internal/stories/users"
	"gitstar-worker/internal/workers"
	"gitstar-worker/internal/workers/ratelimit"
	"gitstar-worker/internal/workers/scheduler"
	"gitstar-worker/internal/workers/starscan"
	"gitstar-worker/internal/workers/updateuser"
	"gitstar-worker/internal/workers/wakeup"
)

type Services struct {
	Jobs           *jobs.Service
	Users          *users.Service
	StarScanWake   *wakeup.Signal
	UpdateUserWake *wakeup.Signal
	WorkerManager  *workers.Manager
}

func newServices(_ context.Context, clients *Clients, cfg *config.Config, logger *slog.Logger) (*Services, error) {
	var s Services

	storageImpl := storage.New(clients.SQLiteDB.DB)
	githubClients := github.NewFactory(storageImpl, clients.HTTPClient, cfg.GitHub.BaseURL)

	s.StarScanWake = wakeup.New()
	s.UpdateUserWake = wakeup.New()

	s.Users = users.NewService(storageImpl, githubClients, logger.With("service", "users"))
	s.Jobs = jobs.NewService(storageImpl, s.UpdateUserWake)

	updateUserWorker := updateuser.NewWorker(storageImpl, s.Users, s.UpdateUserWake, updateuser.Options{
		Workers:      cfg.UpdateUser.Workers,
		PollInterval: cfg.UpdateUser.PollInterval,
		LeaseTimeout: cfg.UpdateUser.LeaseTimeout,
	}, logger.With("worker", "update_user"))

	all := []workers.Worker{updateUserWorker}

	if cfg.StarScan.Enabled {
		denylist, err := cfg.StarScan.ScanDenylist()
		if err != nil {
			return nil, errors.Wrap(err, "star scan denylist")
		}

		starScanWorker := starscan.NewWorker(storageImpl, s.Users, s.StarScanWake, starscan.Options{
			TokenUserID:  cfg.StarScan.TokenUserID,
			PollInterval: cfg.StarScan.PollInterval,
			BatchSize:    cfg.StarScan.BatchSize,
			MaxUpdates:   cfg.StarScan.MaxUpdates,
			MaxChecks:    cfg.StarScan.MaxChecks,
			MinRemaining: cfg.StarScan.MinRemaining,
			FreshFor:     cfg.StarScan.FreshFor,
			RequestDelay: cfg.StarScan.RequestDelay,
			Denylist:     denylist,
		}, logger.With("worker", "star_scan"))

		starScanScheduler := scheduler.NewWorker("star_scan_scheduler", cfg.StarScan.Schedule, s.StarScanWake,
			logger.With("worker", "star_scan_scheduler"))

		rateLimitWorker := ratelimit.NewWorker(s.Users, []int64{cfg.StarScan.TokenUserID},
			cfg.StarScan.MinRemaining, cfg.GitHub.RateLimitCheckInterval, logger.With("worker", "rate_limit"))

		all = append(all, starScanWorker, starScanScheduler, rateLimitWorker)
	}

	s.WorkerManager = workers.NewManager(logger, all...)

	return &s, nil
}
