package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/vyrodovalexey/avaroute/internal/config"
	"github.com/vyrodovalexey/avaroute/internal/health"
	"github.com/vyrodovalexey/avaroute/internal/observability"
	"github.com/vyrodovalexey/avaroute/internal/server"
)

// runServe serves HTTP until SIGINT or SIGTERM.
func runServe(flags cliFlags, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := initApplication(ctx, flags, true)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}
	logger := app.logger
	defer func() { _ = logger.Sync() }()
	defer func() { _ = app.holder.Close() }()

	checks := health.NewHandler(version, logger)
	checks.AddCheck(health.CheckFunc("router", func(context.Context) error {
		if app.holder.Router().Len() == 0 {
			return health.ErrNoRoutes
		}
		return nil
	}))
	checks.AddCheck(health.CheckFunc("link_cache", func(ctx context.Context) error {
		_, err := app.holder.Snapshot().Cache.Exists(ctx, "health")
		if err != nil && !isCacheDisabled(err) {
			return err
		}
		return nil
	}))

	srv := server.New(app.config, app.holder,
		server.WithLogger(logger),
		server.WithMetrics(observability.NewMetrics("avaroute")),
		server.WithHealth(checks),
	)

	watcher := startConfigWatcher(ctx, app)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	code := exitOK
	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", observability.Error(err))
			code = exitError
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout.Duration())
	defer cancel()

	if watcher != nil {
		_ = watcher.Stop()
	}
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("failed to stop server gracefully", observability.Error(err))
	}
	if err := app.tracer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown tracer", observability.Error(err))
	}

	logger.Info("avaroute stopped")
	return code
}

// startConfigWatcher reloads the router when the configuration file
// changes. Configurations that fail to build are rejected.
func startConfigWatcher(ctx context.Context, app *application) *config.Watcher {
	if _, err := os.Stat(app.configPath); err != nil {
		return nil
	}

	watcher, err := config.NewWatcher(app.configPath, func(cfg *config.Config) {
		if err := app.holder.Reload(cfg); err != nil {
			app.logger.Error("failed to reload router", observability.Error(err))
		}
	},
		config.WithLogger(app.logger),
		config.WithCheck(app.holder.Check),
	)
	if err != nil {
		app.logger.Warn("failed to create config watcher", observability.Error(err))
		return nil
	}

	if err := watcher.Start(ctx); err != nil {
		app.logger.Warn("failed to start config watcher", observability.Error(err))
		return nil
	}
	return watcher
}
