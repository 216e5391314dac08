package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"

	"gitstar-worker/internal/stories/cursors"
)

const scanCursorsTable = "scan_cursors"

// FindCursor returns the stored checkpoint, or 0 if key was never written.
func (s *storageImpl) FindCursor(ctx context.Context, key cursors.Key) (int64, error) {
	if !key.Valid() {
		return 0, fmt.Errorf("unknown cursor key %q", key)
	}

	q, args, err := s.stmpBuilder().
		Select("cursor").
		From(scanCursorsTable).
		Where(sq.Eq{"name": string(key)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build sql query: %w", err)
	}

	var value int64
	err = s.db.QueryRowContext(ctx, q, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("row.Scan: %w", err)
	}

	return value, nil
}

// WithCursorTx runs fn with a writer bound to one transaction. Every cursor
// fn writes commits together, or none does.
func (s *storageImpl) WithCursorTx(ctx context.Context, fn func(w cursors.Writer) error) error {
	return s.tx(ctx, func(tx *sqlx.Tx) error {
		return fn(&cursorTx{tx: tx, s: s})
	})
}

// DeleteCursors drops the checkpoints of keys so the next scan starts over.
func (s *storageImpl) DeleteCursors(ctx context.Context, keys []cursors.Key) error {
	if len(keys) == 0 {
		return nil
	}

	q, args, err := s.stmpBuilder().
		Delete(scanCursorsTable).
		Where(sq.Eq{"name": lo.Map(keys, func(k cursors.Key, _ int) string { return string(k) })}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build sql query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("db.ExecContext: %w", err)
	}

	return nil
}

type cursorTx struct {
	tx *sqlx.Tx
	s  *storageImpl
}

func (c *cursorTx) WriteCursor(ctx context.Context, key cursors.Key, value int64) error {
	if !key.Valid() {
		return fmt.Errorf("unknown cursor key %q", key)
	}

	q, args, err := c.s.stmpBuilder().
		Insert(scanCursorsTable).
		Columns("name", "cursor", "updated_at").
		Values(string(key), value, c.s.now()).
		Suffix("ON CONFLICT(name) DO UPDATE SET cursor = excluded.cursor, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build sql query: %w", err)
	}

	if _, err := c.tx.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("tx.ExecContext: %w", err)
	}

	return nil
}
