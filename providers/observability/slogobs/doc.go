// Package slogobs provides an observability.Provider backed by log/slog.
//
// Spans are logged at start and end with their duration and attributes,
// counters keep a running total that can be read back with
// [Observer.CounterValue], and histogram observations are logged at DEBUG.
// Output format and level come from FINAGENT_LOG_FORMAT and
// FINAGENT_LOG_LEVEL unless overridden with [WithFormat] and [WithLevel].
package slogobs
