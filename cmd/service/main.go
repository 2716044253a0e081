// Package main runs the faultctx demo service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jsamuelsen/faultctx/internal/adapters/clients"
	"github.com/jsamuelsen/faultctx/internal/adapters/collector"
	"github.com/jsamuelsen/faultctx/internal/adapters/http"
	"github.com/jsamuelsen/faultctx/internal/adapters/http/handlers"
	"github.com/jsamuelsen/faultctx/internal/app/reqctx"
	"github.com/jsamuelsen/faultctx/internal/platform/config"
	"github.com/jsamuelsen/faultctx/internal/platform/logging"
	"github.com/jsamuelsen/faultctx/internal/platform/telemetry"
	"github.com/jsamuelsen/faultctx/internal/ports"
)

// Set with -ldflags "-X main.Version=... -X main.Commit=... -X main.BuildTime=...".
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	profile := os.Getenv("APP_ENVIRONMENT")
	if profile == "" {
		profile = "local"
	}

	cfg, err := config.Load(profile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.New(&logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: cfg.App.Name,
		Version: cfg.App.Version,
		File: logging.FileConfig{
			Enabled:    cfg.Log.File.Enabled,
			Path:       cfg.Log.File.Path,
			MaxSizeMB:  cfg.Log.File.MaxSizeMB,
			MaxBackups: cfg.Log.File.MaxBackups,
			MaxAgeDays: cfg.Log.File.MaxAgeDays,
			Compress:   cfg.Log.File.Compress,
		},
	})
	logging.SetDefault(logger)

	logger.Info("starting service",
		slog.String("version", Version),
		slog.String("commit", Commit),
		slog.String("environment", cfg.App.Environment),
	)

	tel, err := telemetry.New(ctx, &telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		Endpoint:     cfg.Telemetry.Endpoint,
		ServiceName:  cfg.Telemetry.ServiceName,
		Version:      cfg.App.Version,
		Environment:  cfg.App.Environment,
		SamplingRate: cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}

	contextOpts, err := reqctx.ParseOptions(cfg.Context.DuplicateHeaders, cfg.Context.InvalidBytes)
	if err != nil {
		return fmt.Errorf("context options: %w", err)
	}

	notifier, err := newNotifier(cfg, logger)
	if err != nil {
		return err
	}
	notifier.Start(ctx)

	healthRegistry := ports.NewHealthRegistry()
	if err := healthRegistry.Register(notifier); err != nil {
		return fmt.Errorf("registering collector health check: %w", err)
	}

	server := http.NewServer(&cfg.Server, logger)
	http.SetupRouter(server.Engine(), http.RouterConfig{
		ServiceName:    cfg.App.Name,
		Reporter:       notifier,
		ContextOptions: contextOpts,
		HealthHandler:  handlers.NewHealthHandler(healthRegistry, handlers.NewBuildInfo(Version, Commit, BuildTime)),
		Timeout:        cfg.Server.RequestTimeout,
	})

	serverErr := server.Start()

	return waitForShutdown(ctx, logger, cfg.Server.ShutdownTimeout, serverErr,
		server.Shutdown,
		notifier.Shutdown,
		tel.Shutdown,
	)
}

// newNotifier builds the fault notifier. Without a collector endpoint
// notices are written to the log.
func newNotifier(cfg *config.Config, logger *slog.Logger) (*collector.Notifier, error) {
	var sender collector.Sender = collector.NewLogSender(logger)

	if cfg.Collector.Enabled {
		client, err := clients.New(&clients.Config{
			BaseURL:     cfg.Collector.Endpoint,
			ServiceName: "collector",
			Timeout:     cfg.Collector.Timeout,
			Circuit:     cfg.Collector.CircuitBreaker,
			Transport:   cfg.Collector.Transport,
			Logger:      logger,
		})
		if err != nil {
			return nil, fmt.Errorf("creating collector client: %w", err)
		}
		sender = collector.NewHTTPSender(client, "")
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	notifier, err := collector.New(sender, collector.Config{
		Environment: collector.Environment{
			Version:   Version,
			Name:      cfg.App.Environment,
			Hostname:  hostname,
			Revision:  cfg.App.Revision,
			Component: cfg.Collector.Component,
		},
		QueueSize:   cfg.Collector.QueueSize,
		Workers:     cfg.Collector.Workers,
		SendTimeout: cfg.Collector.Timeout,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating notifier: %w", err)
	}

	return notifier, nil
}

// waitForShutdown blocks until a signal arrives or the server fails, then
// runs the shutdown steps in order under one deadline.
func waitForShutdown(
	ctx context.Context,
	logger *slog.Logger,
	timeout time.Duration,
	serverErr <-chan error,
	steps ...func(context.Context) error,
) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runErr error
	select {
	case err := <-serverErr:
		runErr = fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logger.Info("initiating graceful shutdown", slog.Duration("timeout", timeout))

	errs := []error{runErr}
	for _, step := range steps {
		errs = append(errs, step(shutdownCtx))
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}

	logger.Info("shutdown complete")

	return nil
}
