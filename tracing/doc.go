// Package tracing wraps OpenTelemetry span creation behind a small helper
// API used by the engine for run and node spans.
package tracing
