// Package observability provides logging, metrics, and tracing for the
// router and its hosts.
//
// # Logging
//
// The Logger interface wraps zap:
//
//	logger, err := observability.NewLogger(observability.DefaultLogConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	logger.Info("route resolved",
//	    observability.String("identity", "Widgets::show"),
//	)
//
// # Metrics
//
// Metrics collects the HTTP host counters in its own registry; its
// Handler also exposes collectors registered on the default registry by
// the router and cache packages:
//
//	metrics := observability.NewMetrics("avaroute")
//	mux.Handle("/metrics", metrics.Handler())
//
// # Tracing
//
// NewTracer installs a global OpenTelemetry tracer provider exporting over
// OTLP/gRPC. The router takes Tracer.Provider through
// router.WithTracerProvider; other packages use otel.Tracer, so their spans
// are no-ops until a tracer is enabled. Logger.WithContext adds the trace
// and span IDs of the active span to every entry.
package observability
