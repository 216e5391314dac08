package environment

import (
	"context"
	"log/slog"
	"net/http"

	"gitstar-worker/internal/config"
)

type Servers struct {
	HTTP struct {
		Observability *http.Server
		// API is nil unless API_ENABLED is set.
		API *http.Server
	}
}

func newServers(ctx context.Context, cfg config.Config, logger *slog.Logger, clients *Clients, services *Services) *Servers {
	var servers Servers

	if cfg.API.Enabled {
		api := newAPIHandler(services.Jobs, services.StarScanWake, cfg.StarScan.TokenUserID, logger.With("http", "api"))
		servers.HTTP.API = &http.Server{
			Addr:              cfg.API.ADDR(),
			Handler:           api.routes(),
			ReadTimeout:       cfg.API.ReadTimeout,
			ReadHeaderTimeout: cfg.API.ReadTimeout,
		}
	}

	servers.HTTP.Observability = initObservability(ctx, logger.WithGroup("http"), clients, cfg)

	return &servers
}
