// Package observability defines the interfaces and semantic conventions used
// for tracing, metrics and structured logging throughout finagent.
//
// The central entry point is [Provider], which composes [Tracer], [Metrics],
// and [Logger] into a single injectable dependency. Callers propagate an active
// [Provider] and [Span] through a [context.Context] using [ContextWithObserver]
// and [ContextWithSpan]; they can be retrieved with [ObserverFromContext] and
// [SpanFromContext].
//
// semconv.go holds the attribute keys, span names and metric names shared by
// the graph executor, the LLM gateway and the workflow nodes.
package observability
