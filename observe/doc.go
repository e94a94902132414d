// Package observe provides observability primitives for the API client.
//
// It is a pure instrumentation library: no execution, no transport, no I/O
// beyond exporter setup. The dexcom package wires the observer into every
// outbound request for correlated logs, spans, and metrics.
//
// All log output passes through Redact, so tokens, client secrets, and
// authorization codes never appear in log lines regardless of which
// component emitted them.
package observe
