// Package otel exposes controller metrics through an OpenTelemetry meter.
//
// [NewOTelExporter] creates one Int64ObservableCounter per controller counter.
// Backend latency is published as a cumulative bucket gauge keyed by the "le"
// attribute plus a sample count. Three gauges follow the live session:
// donorauth_session_state (1 for the current state, by "state" attribute),
// donorauth_session_loading and donorauth_session_stale.
//
// One callback reads the controller on every collection cycle, so nothing is
// pushed from the auth path. The caller owns the MeterProvider.
package otel
