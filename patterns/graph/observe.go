package graph

import (
	"context"
	"time"

	"github.com/leofalp/finagent/providers/observability"
)

// Semantic conventions for graph observability attributes.
const (
	// spanGraphRun is the span name for one run of a graph.
	spanGraphRun = "graph.run"

	// spanGraphNodeRun is the span name for one node execution.
	spanGraphNodeRun = "graph.node.run"

	// attrGraphName is the name set with WithName.
	attrGraphName = "graph.name"

	// attrGraphNodeID identifies the node within the graph.
	attrGraphNodeID = "graph.node.id"

	// attrGraphStep is the 1-based step number.
	attrGraphStep = "graph.step"

	// attrGraphNodeStatus is the execution status of a node.
	attrGraphNodeStatus = "graph.node.status"

	// attrGraphNodeWritten lists the fields a node wrote.
	attrGraphNodeWritten = "graph.node.written"

	// attrGraphTotalNodes is the number of registered nodes.
	attrGraphTotalNodes = "graph.total_nodes"

	// attrGraphTotalSteps is the number of steps a run took.
	attrGraphTotalSteps = "graph.total_steps"

	// metricGraphNodeDuration is the histogram for node execution duration.
	metricGraphNodeDuration = "finagent.graph.node.duration"

	// metricGraphNodeCount is the counter for node executions by status.
	metricGraphNodeCount = "finagent.graph.node.count"

	// metricGraphRunDuration is the histogram for total run duration.
	metricGraphRunDuration = "finagent.graph.run.duration"

	// metricGraphStepCount counts executed steps.
	metricGraphStepCount = "finagent.graph.step.count"

	statusCompleted = "completed"
	statusFailed    = "failed"
)

// resolveObserver returns the configured observer, falling back to the one
// carried by ctx. Nil disables observability.
func (graph *Graph) resolveObserver(ctx context.Context) observability.Provider {
	if graph.config.observer != nil {
		return graph.config.observer
	}
	return observability.ObserverFromContext(ctx)
}

// observeRunStart opens the run span and attaches span and observer to the
// returned context so nested graphs and nodes inherit them.
func (graph *Graph) observeRunStart(ctx context.Context, observer observability.Provider) (context.Context, observability.Span) {
	if observer == nil {
		return ctx, nil
	}

	var runSpan observability.Span
	ctx, runSpan = observer.StartSpan(ctx, spanGraphRun,
		observability.String(attrGraphName, graph.config.name),
		observability.Int(attrGraphTotalNodes, len(graph.nodes)),
	)
	ctx = observability.ContextWithSpan(ctx, runSpan)
	ctx = observability.ContextWithObserver(ctx, observer)

	observer.Info(ctx, "graph run started",
		observability.String(attrGraphName, graph.config.name),
		observability.Int(attrGraphTotalNodes, len(graph.nodes)),
	)
	return ctx, runSpan
}

// observeRunCompleted records the successful completion of a run.
func (graph *Graph) observeRunCompleted(ctx context.Context, observer observability.Provider, runSpan observability.Span, steps int, totalDuration time.Duration) {
	if observer == nil {
		return
	}

	observer.Histogram(metricGraphRunDuration).Record(ctx, totalDuration.Seconds(),
		observability.String(attrGraphName, graph.config.name),
	)

	observer.Info(ctx, "graph run completed",
		observability.String(attrGraphName, graph.config.name),
		observability.Int(attrGraphTotalSteps, steps),
		observability.Duration(observability.AttrDuration, totalDuration),
	)

	if runSpan != nil {
		runSpan.SetAttributes(observability.Int(attrGraphTotalSteps, steps))
		runSpan.SetStatus(observability.StatusOK, "graph run completed")
		runSpan.End()
	}
}

// observeRunFailed records the failure of a run.
func (graph *Graph) observeRunFailed(ctx context.Context, observer observability.Provider, runSpan observability.Span, runError error, totalDuration time.Duration) {
	if observer == nil {
		return
	}

	observer.Error(ctx, "graph run failed",
		observability.String(attrGraphName, graph.config.name),
		observability.Error(runError),
		observability.Duration(observability.AttrDuration, totalDuration),
	)

	if runSpan != nil {
		runSpan.RecordError(runError)
		runSpan.SetStatus(observability.StatusError, "graph run failed")
		runSpan.End()
	}
}

// observeStepStart logs the active set of a step.
func (graph *Graph) observeStepStart(ctx context.Context, observer observability.Provider, step int, active []string) {
	if observer == nil {
		return
	}

	observer.Counter(metricGraphStepCount).Add(ctx, 1,
		observability.String(attrGraphName, graph.config.name),
	)
	observer.Debug(ctx, "graph step started",
		observability.String(attrGraphName, graph.config.name),
		observability.Int(attrGraphStep, step),
		observability.StringSlice("graph.step.nodes", active),
	)
}

// observeNodeStart creates a child span for a node execution and returns the
// context carrying it.
func (graph *Graph) observeNodeStart(ctx context.Context, observer observability.Provider, step int, nodeID string) context.Context {
	if observer == nil {
		return ctx
	}

	nodeContext, nodeSpan := observer.StartSpan(ctx, spanGraphNodeRun,
		observability.String(attrGraphName, graph.config.name),
		observability.String(attrGraphNodeID, nodeID),
		observability.Int(attrGraphStep, step),
	)
	nodeContext = observability.ContextWithSpan(nodeContext, nodeSpan)

	observer.Debug(nodeContext, "node started",
		observability.String(attrGraphNodeID, nodeID),
		observability.Int(attrGraphStep, step),
	)
	return nodeContext
}

// observeNodeCompleted records the completion of a node and closes its span.
func (graph *Graph) observeNodeCompleted(ctx context.Context, observer observability.Provider, nodeID string, written []string, duration time.Duration) {
	if observer == nil {
		return
	}

	observer.Histogram(metricGraphNodeDuration).Record(ctx, duration.Seconds(),
		observability.String(attrGraphNodeID, nodeID),
	)
	observer.Counter(metricGraphNodeCount).Add(ctx, 1,
		observability.String(attrGraphNodeStatus, statusCompleted),
		observability.String(attrGraphNodeID, nodeID),
	)

	observer.Info(ctx, "node completed",
		observability.String(attrGraphNodeID, nodeID),
		observability.StringSlice(attrGraphNodeWritten, written),
		observability.Duration(observability.AttrDuration, duration),
	)

	if nodeSpan := observability.SpanFromContext(ctx); nodeSpan != nil {
		nodeSpan.SetAttributes(
			observability.String(attrGraphNodeStatus, statusCompleted),
			observability.Duration(observability.AttrDuration, duration),
		)
		nodeSpan.SetStatus(observability.StatusOK, "node completed")
		nodeSpan.End()
	}
}

// observeNodeFailed records the failure of a node and closes its span.
func (graph *Graph) observeNodeFailed(ctx context.Context, observer observability.Provider, nodeID string, nodeError error, duration time.Duration) {
	if observer == nil {
		return
	}

	observer.Histogram(metricGraphNodeDuration).Record(ctx, duration.Seconds(),
		observability.String(attrGraphNodeID, nodeID),
	)
	observer.Counter(metricGraphNodeCount).Add(ctx, 1,
		observability.String(attrGraphNodeStatus, statusFailed),
		observability.String(attrGraphNodeID, nodeID),
	)

	observer.Error(ctx, "node failed",
		observability.String(attrGraphNodeID, nodeID),
		observability.Error(nodeError),
		observability.Duration(observability.AttrDuration, duration),
	)

	if nodeSpan := observability.SpanFromContext(ctx); nodeSpan != nil {
		nodeSpan.RecordError(nodeError)
		nodeSpan.SetAttributes(
			observability.String(attrGraphNodeStatus, statusFailed),
			observability.Duration(observability.AttrDuration, duration),
		)
		nodeSpan.SetStatus(observability.StatusError, "node failed")
		nodeSpan.End()
	}
}
