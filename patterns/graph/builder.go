package graph

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// Builder constructs a validated Graph using a fluent API.
// Nodes and edges are added incrementally; problems are accumulated and
// reported together by Build.
//
// The builder enforces the following constraints:
//   - Node IDs must be unique, non-empty and not reserved (Start, End)
//   - Edge endpoints must reference registered nodes (or Start/End)
//   - Every outcome of a conditional edge must target a registered node or End
//   - Every node must have at least one outgoing edge
//   - Start must have at least one outgoing edge
//
// Cycles are allowed.
//
// Example:
//
//	g, err := graph.NewBuilder(schema).
//	    AddNode("draft", draftNode).
//	    AddNode("review", reviewNode).
//	    AddEdge(graph.Start, "draft").
//	    AddEdge("draft", "review").
//	    AddConditionalEdges("review", routeReview, map[string]string{
//	        "retry": "draft",
//	        "done":  graph.End,
//	    }).
//	    Build()
type Builder struct {
	// schema declares the state fields and their merge rules.
	schema *Schema

	// config holds the graph-level configuration populated from Options.
	config *graphConfig

	// nodes stores all registered nodes keyed by their ID.
	nodes map[string]Node

	// nodeOrder preserves registration order. Outputs of a step are merged
	// in this order.
	nodeOrder []string

	// edges stores the unconditional successors of each source.
	edges map[string][]string

	// branches stores the conditional edges of each source.
	branches map[string][]branch

	// buildErrors accumulates validation errors encountered while building
	// and is reported when Build() is called.
	buildErrors []error
}

// NewBuilder creates a new Builder for a graph over the given schema.
// Graph-level options (WithName, WithMaxSteps, WithMaxConcurrency,
// WithObserver, WithEventHandler) are applied here.
func NewBuilder(schema *Schema, opts ...Option) *Builder {
	config := &graphConfig{
		maxSteps: defaultMaxSteps,
	}

	for _, opt := range opts {
		opt(config)
	}

	builder := &Builder{
		schema:      schema,
		config:      config,
		nodes:       make(map[string]Node),
		nodeOrder:   make([]string, 0),
		edges:       make(map[string][]string),
		branches:    make(map[string][]branch),
		buildErrors: make([]error, 0),
	}

	if schema == nil {
		builder.buildErrors = append(builder.buildErrors, errors.New("schema must not be nil"))
	}

	return builder
}

// AddNode registers a processing node in the graph with the given unique ID.
// Returns the builder for method chaining.
func (builder *Builder) AddNode(nodeID string, node Node) *Builder {
	switch {
	case nodeID == "":
		builder.buildErrors = append(builder.buildErrors, errors.New("node ID must not be empty"))
		return builder
	case nodeID == Start || nodeID == End:
		builder.buildErrors = append(builder.buildErrors, fmt.Errorf("node ID %q is reserved", nodeID))
		return builder
	case node == nil:
		builder.buildErrors = append(builder.buildErrors, fmt.Errorf("node must not be nil for %q", nodeID))
		return builder
	}

	if _, exists := builder.nodes[nodeID]; exists {
		builder.buildErrors = append(builder.buildErrors, fmt.Errorf("duplicate node ID %q", nodeID))
		return builder
	}

	builder.nodes[nodeID] = node
	builder.nodeOrder = append(builder.nodeOrder, nodeID)

	return builder
}

// AddSubgraph registers a built graph as an opaque node of this graph.
// The subgraph's Start and End are hidden; its writes are merged into the
// parent like those of any other node.
func (builder *Builder) AddSubgraph(nodeID string, subgraph *Graph) *Builder {
	if subgraph == nil {
		builder.buildErrors = append(builder.buildErrors, fmt.Errorf("subgraph must not be nil for %q", nodeID))
		return builder
	}
	return builder.AddNode(nodeID, subgraph)
}

// AddEdge creates a directed edge: whenever from runs, to is active in the
// next step. Self-loops are allowed.
func (builder *Builder) AddEdge(from, to string) *Builder {
	if from == "" || to == "" {
		builder.buildErrors = append(builder.buildErrors, fmt.Errorf("edge endpoints must not be empty (from=%q, to=%q)", from, to))
		return builder
	}

	if slices.Contains(builder.edges[from], to) {
		builder.buildErrors = append(builder.buildErrors, fmt.Errorf("duplicate edge from %q to %q", from, to))
		return builder
	}

	builder.edges[from] = append(builder.edges[from], to)
	return builder
}

// AddConditionalEdges attaches a router to from. After from runs, the router
// picks one label of outcomes and the mapped target becomes active. A source
// may carry several routers; each contributes one target per step.
//
// A label returned at run time that is missing from outcomes aborts the run
// with ErrUnknownOutcome.
func (builder *Builder) AddConditionalEdges(from string, router Router, outcomes map[string]string) *Builder {
	if from == "" {
		builder.buildErrors = append(builder.buildErrors, errors.New("conditional edge source must not be empty"))
		return builder
	}
	if router == nil {
		builder.buildErrors = append(builder.buildErrors, fmt.Errorf("router must not be nil for %q", from))
		return builder
	}
	if len(outcomes) == 0 {
		builder.buildErrors = append(builder.buildErrors, fmt.Errorf("conditional edge from %q declares no outcomes", from))
		return builder
	}

	builder.branches[from] = append(builder.branches[from], branch{
		router:   router,
		outcomes: maps.Clone(outcomes),
	})
	return builder
}

// Build validates the graph structure and produces an executable Graph.
func (builder *Builder) Build() (*Graph, error) {
	if len(builder.buildErrors) > 0 {
		return nil, fmt.Errorf("graph build errors: %w", errors.Join(builder.buildErrors...))
	}

	if len(builder.nodes) == 0 {
		return nil, errors.New("graph must contain at least one node")
	}

	if err := builder.validateEdges(); err != nil {
		return nil, err
	}

	position := make(map[string]int, len(builder.nodeOrder))
	for index, nodeID := range builder.nodeOrder {
		position[nodeID] = index
	}

	return &Graph{
		schema:   builder.schema,
		nodes:    builder.nodes,
		order:    builder.nodeOrder,
		position: position,
		edges:    builder.edges,
		branches: builder.branches,
		config:   builder.config,
	}, nil
}

// validateEdges checks every edge and outcome against the registered nodes
// and makes sure no node is a dead end.
func (builder *Builder) validateEdges() error {
	var edgeErrors []error

	isSource := func(nodeID string) bool {
		_, exists := builder.nodes[nodeID]
		return exists || nodeID == Start
	}
	isTarget := func(nodeID string) bool {
		_, exists := builder.nodes[nodeID]
		return exists || nodeID == End
	}

	for _, from := range slices.Sorted(maps.Keys(builder.edges)) {
		if !isSource(from) {
			edgeErrors = append(edgeErrors, fmt.Errorf("edge references non-existent source node %q", from))
		}
		for _, to := range builder.edges[from] {
			if !isTarget(to) {
				edgeErrors = append(edgeErrors, fmt.Errorf("edge from %q references non-existent target node %q", from, to))
			}
		}
	}

	for _, from := range slices.Sorted(maps.Keys(builder.branches)) {
		if !isSource(from) {
			edgeErrors = append(edgeErrors, fmt.Errorf("conditional edge references non-existent source node %q", from))
		}
		for _, conditional := range builder.branches[from] {
			for _, label := range slices.Sorted(maps.Keys(conditional.outcomes)) {
				if to := conditional.outcomes[label]; !isTarget(to) {
					edgeErrors = append(edgeErrors, fmt.Errorf("outcome %q of %q references non-existent target node %q", label, from, to))
				}
			}
		}
	}

	if len(builder.edges[Start]) == 0 && len(builder.branches[Start]) == 0 {
		edgeErrors = append(edgeErrors, errors.New("graph has no edge leaving Start"))
	}

	for _, nodeID := range builder.nodeOrder {
		if len(builder.edges[nodeID]) == 0 && len(builder.branches[nodeID]) == 0 {
			edgeErrors = append(edgeErrors, fmt.Errorf("node %q has no outgoing edge", nodeID))
		}
	}

	if len(edgeErrors) > 0 {
		return fmt.Errorf("invalid graph: %w", errors.Join(edgeErrors...))
	}
	return nil
}
