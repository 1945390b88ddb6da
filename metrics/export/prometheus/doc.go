// Package prometheus publishes donorAuth controller metrics to Prometheus.
//
// [PrometheusExporter] is a client_golang Collector: register it with a
// registry, or mount [PrometheusExporter.Handler] which uses a private one.
// Counter names are donorauth_*_total; the single histogram is
// donorauth_backend_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry.
//   - Mutate controller state.
package prometheus
