package environment

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"gitstar-worker/internal/config"
	"gitstar-worker/internal/infra/sqlite3"
)

type Clients struct {
	SQLiteDB   *sqlite3.DB
	HTTPClient *http.Client
}

func newClients(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Clients, error) {
	sqliteDB, err := provideSQLiteDB(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "provideSQLiteDB")
	}
	logger.Info("Database ready", "path", cfg.DB.Path)

	return &Clients{
		SQLiteDB:   sqliteDB,
		HTTPClient: &http.Client{Timeout: cfg.GitHub.Timeout},
	}, nil
}

func provideSQLiteDB(ctx context.Context, cfg config.Config) (*sqlite3.DB, error) {
	maxLifetimeStr := cfg.DB.MaxLifetime
	if maxLifetimeStr == "" {
		maxLifetimeStr = "5m"
	}
	maxLifetime, err := time.ParseDuration(maxLifetimeStr)
	if err != nil {
		return nil, errors.Wrap(err, "parse DB_MAX_LIFETIME")
	}

	return sqlite3.New(ctx,
		sqlite3.WithDSN(cfg.DB.DSN()),
		sqlite3.WithMaxOpenConns(cfg.DB.MaxOpenConns),
		sqlite3.WithMaxIdleConns(cfg.DB.MaxIdleConns),
		sqlite3.WithConnMaxLifetime(maxLifetime),
		sqlite3.WithConnTimeout(cfg.DB.ConnTimeout),
		sqlite3.WithMigrate(),
	)
}
