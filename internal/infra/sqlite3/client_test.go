package sqlite3

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(context.Background(),
		WithDSN("file:"+filepath.Join(t.TempDir(), "test.db")+"?_busy_timeout=5000&_txlock=immediate"),
		WithMaxOpenConns(4),
		WithMaxIdleConns(2),
		WithConnMaxLifetime(time.Minute),
		WithConnTimeout(time.Second),
		WithMigrate(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestNewAppliesOptionsAndSchema(t *testing.T) {
	cfg := newConfig(WithConnTimeout(3*time.Second), WithMaxOpenConns(7))
	assert.Equal(t, 3*time.Second, cfg.ConnTimeout)
	assert.Equal(t, 7, cfg.MaxOpenConns)
	assert.Equal(t, defaultMaxIdleConns, cfg.MaxIdleConns)

	db := newTestDB(t)

	var tables []string
	err := db.SelectContext(context.Background(), &tables,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	require.NoError(t, err)
	assert.Equal(t, []string{"access_tokens", "scan_cursors", "update_user_jobs", "users"}, tables)

	// the schema is safe to apply again
	require.NoError(t, db.Migrate(context.Background()))
}

func TestWithTx(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	tx := WithTx(func() (*sqlx.DB, error) { return db.DB, nil }, nil)

	insert := func(name string) TxFunc {
		return func(tx *sqlx.Tx) error {
			_, err := tx.ExecContext(ctx,
				"INSERT INTO scan_cursors (name, cursor, updated_at) VALUES (?, 1, ?)", name, time.Now().UTC())
			return err
		}
	}
	count := func() int {
		var n int
		require.NoError(t, db.GetContext(ctx, &n, "SELECT COUNT(*) FROM scan_cursors"))
		return n
	}

	require.NoError(t, tx(ctx, insert("committed")))
	assert.Equal(t, 1, count())

	boom := errors.New("boom")
	err := tx(ctx, func(sqlTx *sqlx.Tx) error {
		if err := insert("rolled_back")(sqlTx); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, count())

	assert.Panics(t, func() {
		_ = tx(ctx, func(sqlTx *sqlx.Tx) error {
			_ = insert("panicked")(sqlTx)
			panic("boom")
		})
	})
	assert.Equal(t, 1, count())

	err = WithTx(func() (*sqlx.DB, error) { return nil, boom }, nil)(ctx, insert("never"))
	require.ErrorIs(t, err, boom)
}
