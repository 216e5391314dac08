package ratelimit

import "context"

type (
	// Checker reads the remaining requests of a token from GitHub.
	Checker interface {
		RefreshBudget(ctx context.Context, tokenUserID int64) (int64, error)
	}
)
