package cursors

import "context"

type (
	// Storage persists named integer checkpoints. A key that was never
	// written reads as 0.
	Storage interface {
		FindCursor(ctx context.Context, key Key) (int64, error)
		WithCursorTx(ctx context.Context, fn func(w Writer) error) error
		DeleteCursors(ctx context.Context, keys []Key) error
	}
)
