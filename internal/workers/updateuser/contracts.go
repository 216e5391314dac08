package updateuser

import (
	"context"
	"time"

	"gitstar-worker/internal/stories/jobs"
)

type (
	// Storage is the lease store over update_user_jobs
	Storage interface {
		AcquireUpdateUserJob(ctx context.Context, owner string, until time.Time) (int64, error)
		FindOwnedUpdateUserJob(ctx context.Context, id int64, owner string, timeoutAt time.Time) (*jobs.Job, error)
		ReleaseUpdateUserJob(ctx context.Context, id int64) error
	}

	// Refresher fetches one user from GitHub and stores it
	Refresher interface {
		RefreshByID(ctx context.Context, userID, tokenUserID int64) error
		RefreshByLogin(ctx context.Context, login string, tokenUserID int64) error
	}

	// Waker is nudged when a job is enqueued in this process
	Waker interface {
		Wait(ctx context.Context, timeout time.Duration) bool
	}
)
