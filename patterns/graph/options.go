package graph

import "github.com/leofalp/finagent/providers/observability"

// Option is a functional option for configuring Graph behavior.
// Options are applied during Builder construction via NewBuilder.
type Option func(*graphConfig)

// WithName labels the graph in logs, spans and events. Subgraphs should be
// named so their events can be told apart from the parent's.
func WithName(name string) Option {
	return func(config *graphConfig) {
		config.name = name
	}
}

// WithMaxSteps bounds the number of steps of one run. A run that would
// exceed it fails with ErrStepLimit. Values below one keep the default.
//
// Example:
//
//	graph.NewBuilder(schema,
//	    graph.WithMaxSteps(32),
//	)
func WithMaxSteps(maxSteps int) Option {
	return func(config *graphConfig) {
		if maxSteps > 0 {
			config.maxSteps = maxSteps
		}
	}
}

// WithMaxConcurrency limits the number of nodes of one step that run in
// parallel. A value of 0 (default) means unlimited concurrency.
//
// Example:
//
//	graph.NewBuilder(schema,
//	    graph.WithMaxConcurrency(3), // at most 3 nodes running at once
//	)
func WithMaxConcurrency(maxConcurrency int) Option {
	return func(config *graphConfig) {
		config.maxConcurrency = maxConcurrency
	}
}

// WithEventHandler registers a callback that receives every execution event
// of this graph. For a subgraph the callback runs on the parent's node
// goroutine, so a handler shared between graphs must be safe for concurrent
// use.
func WithEventHandler(handler func(Event)) Option {
	return func(config *graphConfig) {
		config.eventHandler = handler
	}
}

// WithObserver enables spans, metrics and logs for every run of the graph.
// Without it, the observer found in the run's context (if any) is used.
func WithObserver(provider observability.Provider) Option {
	return func(config *graphConfig) {
		config.observer = provider
	}
}
