package starscan

import (
	"context"
	"time"

	"gitstar-worker/internal/stories/cursors"
	"gitstar-worker/internal/stories/users"
)

type (
	// Storage provides the cursors and the users the scan walks over
	Storage interface {
		FindCursor(ctx context.Context, key cursors.Key) (int64, error)
		WithCursorTx(ctx context.Context, fn func(w cursors.Writer) error) error
		DeleteCursors(ctx context.Context, keys []cursors.Key) error

		MaxStargazersCount(ctx context.Context) (int64, error)
		NextStargazersCountBelow(ctx context.Context, stars int64) (int64, error)
		ListUsersForStarScan(ctx context.Context, criteria users.StarScanCriteria) ([]*users.User, error)
		GetUser(ctx context.Context, criteria users.GetCriteria) (*users.User, error)
	}

	// Refresher fetches users from GitHub and exposes the token's budget
	Refresher interface {
		RefreshByID(ctx context.Context, userID, tokenUserID int64) error
		Budget(ctx context.Context, tokenUserID int64) (users.Budget, error)
	}

	// Waker blocks until someone asks for a scan
	Waker interface {
		Wait(ctx context.Context, timeout time.Duration) bool
	}
)
