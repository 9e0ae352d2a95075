package graph

import (
	"context"
	"time"

	"github.com/leofalp/finagent/providers/observability"
)

const (
	// Start is the virtual entry point of a graph. Edges leaving Start select
	// the nodes active in the first step.
	Start = "__start__"

	// End is the virtual terminal marker. Routing a branch to End finishes
	// that branch; the run completes once no branch is left active.
	End = "__end__"
)

// Node is one processing step. Run receives a snapshot of the state and
// returns that snapshot with its writes applied through State.Set. Returning
// an error aborts the whole run.
type Node interface {
	Run(ctx context.Context, state State) (State, error)
}

// NodeFunc is an adapter that allows using an ordinary function as a Node.
type NodeFunc func(ctx context.Context, state State) (State, error)

// Run calls the underlying function, satisfying the Node interface.
func (nodeFunc NodeFunc) Run(ctx context.Context, state State) (State, error) {
	return nodeFunc(ctx, state)
}

// Router inspects the state after its source node ran and returns an outcome
// label. The label must be a key of the outcome map the router was
// registered with.
type Router func(ctx context.Context, state State) string

// branch is a conditional edge: a router and the targets its labels map to.
type branch struct {
	router   Router
	outcomes map[string]string
}

// graphConfig holds the configuration for a Graph, populated by Options.
type graphConfig struct {
	// name labels the graph in logs, spans and events.
	name string

	// maxSteps bounds the number of steps of one run.
	maxSteps int

	// maxConcurrency limits how many nodes of one step run at once.
	// Zero means unlimited.
	maxConcurrency int

	// eventHandler receives every execution event when set. It is called
	// from the goroutine driving the run.
	eventHandler func(Event)

	// observer receives spans, metrics and logs. Nil falls back to the
	// observer carried by the run's context.
	observer observability.Provider
}

// defaultMaxSteps bounds a run when WithMaxSteps is not used.
const defaultMaxSteps = 64

// Graph is a validated, executable state graph. Cycles are allowed: retry
// loops and self-looping barriers are expressed as ordinary edges and the run
// is bounded by the step limit.
//
// A Graph is immutable after Build and safe for concurrent runs. A Graph also
// implements Node, so it can be registered inside a parent graph as an opaque
// subgraph.
type Graph struct {
	schema   *Schema
	nodes    map[string]Node
	order    []string
	position map[string]int
	edges    map[string][]string
	branches map[string][]branch
	config   *graphConfig
}

var _ Node = (*Graph)(nil)

// Result describes a completed run.
type Result struct {
	// State is the final state. Its written set holds every field any node
	// wrote during the run. Merged into another state, it contributes the
	// run's net writes folded from the empty state.
	State State

	// Steps is the number of steps executed.
	Steps int

	// Visits counts how many times each node ran.
	Visits map[string]int

	// Duration is the wall-clock time of the run.
	Duration time.Duration
}

// Name returns the graph's name as set with WithName.
func (graph *Graph) Name() string {
	return graph.config.name
}

// Schema returns the schema the graph merges state with.
func (graph *Graph) Schema() *Schema {
	return graph.schema
}

// Nodes returns the node IDs in registration order.
func (graph *Graph) Nodes() []string {
	nodeIDs := make([]string, len(graph.order))
	copy(nodeIDs, graph.order)
	return nodeIDs
}
