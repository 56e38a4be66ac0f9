// Package observability holds the Prometheus metrics and OpenTelemetry
// tracing shared by the store, the full-text provider and the CLI.
//
// # Metrics
//
// Create the metrics once per registry and hand them to the components
// that record:
//
//	reg := prometheus.NewRegistry()
//	m := observability.NewMetrics(reg)
//	st, err := store.Open(path, store.WithMetrics(m))
//
// Every recording method is a no-op on a nil *Metrics, so components
// never check whether metrics were configured.
//
// # Tracing
//
// Components start spans through the global otel tracer provider. The CLI
// installs NewTracerProvider, which writes finished spans to a slog
// logger; without it the global no-op provider drops them.
package observability
