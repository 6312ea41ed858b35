// Package telemetry wires OpenTelemetry tracing for climdiff binaries.
//
// Tracing is opt-in. When telemetry.otlp_endpoint (or
// CLIMDIFF_OTLP_ENDPOINT) is empty, Setup registers nothing and the global
// no-op tracer provider stays in place, so spans started by the pipeline
// cost nothing.
package telemetry
