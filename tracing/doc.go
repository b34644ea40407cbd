// Package tracing is a thin OpenTelemetry wrapper used to instrument decode,
// fetch and verification.  Until Init is called spans are no-op.
package tracing
