package environment

import (
	"context"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sethvargo/go-envconfig"

	"gitstar-worker/internal/config"
)

type closer func()

type Env struct {
	Config   *config.Config
	Logger   *slog.Logger
	Servers  *Servers
	Clients  *Clients
	Services *Services

	Closers []closer
}

func Setup(ctx context.Context) (*Env, error) {
	// .env is optional
	_ = godotenv.Load()

	var cfg config.Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, errors.Wrap(err, "env processing")
	}

	logger, err := initLogger(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "initLogger")
	}

	clients, err := newClients(ctx, cfg, logger)
	if err != nil {
		return nil, errors.Wrap(err, "newClients")
	}

	services, err := newServices(ctx, clients, &cfg, logger)
	if err != nil {
		_ = clients.SQLiteDB.Close()
		return nil, errors.Wrap(err, "newServices")
	}

	servers := newServers(ctx, cfg, logger, clients, services)

	return &Env{
		Config:   &cfg,
		Logger:   logger,
		Servers:  servers,
		Clients:  clients,
		Services: services,
		Closers: []closer{
			func() {
				if err := clients.SQLiteDB.Close(); err != nil {
					logger.Error("Failed to close database", "error", err)
				}
			},
		},
	}, nil
}
