package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	environment "gitstar-worker/internal/env"
)

func main() {
	ctx := context.Background()

	env, err := environment.Setup(ctx)
	if err != nil {
		log.Fatalf("Failed to setup environment: %v", err)
	}

	logger := env.Logger
	logger.Info("Starting gitstar-worker")

	serve(logger, "observability", env.Servers.HTTP.Observability)
	serve(logger, "api", env.Servers.HTTP.API)

	if err := env.Services.WorkerManager.Start(); err != nil {
		logger.Error("Failed to start workers", slog.Any("error", err))
		closeAll(env)
		os.Exit(1)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Workers started. Press Ctrl+C to stop.")
	<-quit

	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), env.Config.ShutdownDuration)
	defer cancel()

	// stop accepting enqueues before the consumers go away
	shutdown(shutdownCtx, logger, "api", env.Servers.HTTP.API)

	env.Services.WorkerManager.Stop()

	shutdown(shutdownCtx, logger, "observability", env.Servers.HTTP.Observability)

	closeAll(env)

	logger.Info("Application stopped")
}

func serve(logger *slog.Logger, name string, srv *http.Server) {
	if srv == nil {
		return
	}
	go func() {
		logger.Info("Starting server", slog.String("server", name), slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", slog.String("server", name), slog.Any("error", err))
		}
	}()
}

func shutdown(ctx context.Context, logger *slog.Logger, name string, srv *http.Server) {
	if srv == nil {
		return
	}
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server shutdown error", slog.String("server", name), slog.Any("error", err))
	}
}

func closeAll(env *environment.Env) {
	for _, closer := range env.Closers {
		closer()
	}
}
