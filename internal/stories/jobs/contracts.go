package jobs

import "context"

type (
	// Storage inserts into the update_user_jobs lease table.
	Storage interface {
		EnqueueUpdateUserJob(ctx context.Context, payload Payload) (int64, error)
	}

	// Waker nudges the update user workers after an enqueue.
	Waker interface {
		Notify()
	}
)
