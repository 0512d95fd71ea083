package main

import (
	"context"
	"fmt"

	"github.com/vyrodovalexey/avaroute/internal/bootstrap"
	"github.com/vyrodovalexey/avaroute/internal/config"
	"github.com/vyrodovalexey/avaroute/internal/observability"
	"github.com/vyrodovalexey/avaroute/internal/registry"
	"github.com/vyrodovalexey/avaroute/internal/router"
)

// application holds the components shared by the commands.
type application struct {
	configPath string
	config     *config.Config
	logger     observability.Logger
	tracer     *observability.Tracer
	holder     *bootstrap.Holder
}

// initApplication loads the configuration and builds the router. With
// tracing the tracer configured in the file is installed first so the
// router spans are exported.
func initApplication(ctx context.Context, flags cliFlags, tracing bool) (*application, error) {
	configPath := config.ResolveConfigPath(flags.configPath)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	logger, err := initLogger(cfg, flags)
	if err != nil {
		return nil, err
	}

	logger.Info("configuration loaded",
		observability.String("version", version),
		observability.String("config", configPath),
		observability.Int("routes", len(cfg.Routes)),
		observability.Int("hooks", len(cfg.Hooks)),
	)

	opts := []bootstrap.Option{bootstrap.WithClassLoader(echoLoader)}

	var tracer *observability.Tracer
	if tracing {
		tracer, err = initTracer(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}
		opts = append(opts, bootstrap.WithRouterOptions(router.WithTracerProvider(tracer.Provider())))
	}

	holder, err := bootstrap.NewHolder(cfg, logger, opts...)
	if err != nil {
		_ = tracer.Shutdown(ctx)
		return nil, fmt.Errorf("failed to build router: %w", err)
	}

	return &application{
		configPath: configPath,
		config:     cfg,
		logger:     logger,
		tracer:     tracer,
		holder:     holder,
	}, nil
}

// initLogger creates the logger, letting flags override the configuration.
func initLogger(cfg *config.Config, flags cliFlags) (observability.Logger, error) {
	logCfg := observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if flags.logLevel != "" {
		logCfg.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		logCfg.Format = flags.logFormat
	}
	// stdout carries the output of the inspection commands.
	if logCfg.Output == "stdout" && (len(flags.args) == 0 || flags.args[0] != "serve") {
		logCfg.Output = "stderr"
	}

	logger, err := observability.NewLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// initTracer creates the tracer configured in cfg.
func initTracer(ctx context.Context, cfg *config.Config) (*observability.Tracer, error) {
	return observability.NewTracer(ctx, observability.TracerConfig{
		ServiceName:  cfg.Tracing.ServiceName,
		OTLPEndpoint: cfg.Tracing.Endpoint,
		SamplingRate: cfg.Tracing.SamplingRate,
		Insecure:     cfg.Tracing.Insecure,
		Enabled:      cfg.Tracing.Enabled,
	})
}

// echoLoader serves every class on demand with a handler that reports
// the dispatched identity. The authorize list of the configuration still
// decides which classes are dispatched.
func echoLoader(string) (*registry.Class, bool) {
	return &registry.Class{
		Fallback: func(_ context.Context, _ any, call *router.Call) error {
			call.Data["identity"] = call.Identity
			call.Data["method"] = call.Method()
			call.Data["params"] = call.Params
			return nil
		},
	}, true
}
