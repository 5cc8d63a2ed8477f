// Package instrumentation provides OpenTelemetry metrics for the service.
//
// The Provider wires an OTel meter provider to a Prometheus exporter and owns
// the Metrics recorder used across the sync, refresh, and serving paths.
// Instrumentation can be disabled entirely via configuration; the recorder is
// then a no-op and callers do not change.
package instrumentation
