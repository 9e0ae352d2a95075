package graph

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leofalp/finagent/providers/observability"
)

// errConsumerStopped signals that a Stream consumer broke out of its range
// loop. It never reaches the caller.
var errConsumerStopped = errors.New("graph: stream consumer stopped iteration")

// Run executes the graph on state and returns the final state. It is the
// Node implementation that lets a Graph be used as a subgraph: the returned
// State marks every field written by any internal node, and a parent merge
// folds in only the net writes of the run, not the values it started from.
func (graph *Graph) Run(ctx context.Context, state State) (State, error) {
	result, err := graph.Execute(ctx, state)
	if err != nil {
		return State{}, err
	}
	return result.State, nil
}

// Execute runs the graph from Start until no branch is left active.
//
// The execution proceeds in steps:
//  1. The active set starts as the targets of the edges leaving Start
//  2. Every active node runs concurrently on the same snapshot
//  3. Written fields are merged into the snapshot, in node registration order,
//     with each field's reducer
//  4. Edges and routers of every node that ran select the next active set;
//     routers see the snapshot plus that node's own writes
//  5. Duplicate targets collapse into one activation, End targets are dropped
//
// A node error or panic, an undeclared outcome label, a merge error or
// exceeding the step limit aborts the run.
func (graph *Graph) Execute(ctx context.Context, state State) (*Result, error) {
	return graph.execute(ctx, state, nil)
}

// execute is the shared driver behind Execute and Stream. emit, when not
// nil, receives every event; returning false stops the run.
func (graph *Graph) execute(ctx context.Context, initial State, emit func(Event) bool) (*Result, error) {
	runStart := time.Now()

	observer := graph.resolveObserver(ctx)
	ctx, runSpan := graph.observeRunStart(ctx, observer)

	publish := func(event Event) bool {
		event.Graph = graph.config.name
		if graph.config.eventHandler != nil {
			graph.config.eventHandler(event)
		}
		if emit != nil {
			return emit(event)
		}
		return true
	}

	fail := func(err error) (*Result, error) {
		graph.observeRunFailed(ctx, observer, runSpan, err, time.Since(runStart))
		return nil, err
	}

	current := initial.snapshot()
	everWritten := make(map[string]struct{})
	net := State{}
	visits := make(map[string]int, len(graph.order))

	active, err := graph.successors(ctx, Start, current, 0, publish)
	if err != nil {
		return fail(err)
	}

	step := 0
	for len(active) > 0 {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fail(fmt.Errorf("run canceled before step %d: %w", step+1, ctxErr))
		}
		if step >= graph.config.maxSteps {
			return fail(fmt.Errorf("%w: %d steps, still active: %v", ErrStepLimit, graph.config.maxSteps, active))
		}
		step++

		graph.observeStepStart(ctx, observer, step, active)
		if !publish(Event{Type: EventStepStart, Step: step, Nodes: slices.Clone(active)}) {
			return fail(errConsumerStopped)
		}

		outputs, durations, stepErr := graph.runStep(ctx, observer, step, active, current)
		if stepErr != nil {
			return fail(stepErr)
		}

		merged, mergeErr := graph.schema.merge(current, outputs, active)
		if mergeErr != nil {
			return fail(fmt.Errorf("step %d: %w", step, mergeErr))
		}
		for key := range merged.written {
			everWritten[key] = struct{}{}
		}
		if net, mergeErr = graph.schema.merge(net, outputs, active); mergeErr != nil {
			return fail(fmt.Errorf("step %d: %w", step, mergeErr))
		}

		next := make([]string, 0, len(active))
		for index, nodeID := range active {
			visits[nodeID]++

			if !publish(Event{
				Type:     EventNodeComplete,
				Step:     step,
				NodeID:   nodeID,
				Written:  outputs[index].Written(),
				Duration: durations[index],
			}) {
				return fail(errConsumerStopped)
			}

			targets, routeErr := graph.successors(ctx, nodeID, outputs[index], step, publish)
			if routeErr != nil {
				return fail(routeErr)
			}
			next = append(next, targets...)
		}

		current = merged.snapshot()
		active = graph.activation(next)
	}

	finalState := current.withUpdates(everWritten, net.values)
	totalDuration := time.Since(runStart)
	graph.observeRunCompleted(ctx, observer, runSpan, step, totalDuration)

	publish(Event{Type: EventDone, Step: step, Duration: totalDuration, State: &finalState})

	return &Result{
		State:    finalState,
		Steps:    step,
		Visits:   visits,
		Duration: totalDuration,
	}, nil
}

// runStep runs every active node concurrently on the same snapshot and
// returns their outputs indexed like active. The first failure cancels the
// remaining nodes.
func (graph *Graph) runStep(ctx context.Context, observer observability.Provider, step int, active []string, snapshot State) ([]State, []time.Duration, error) {
	outputs := make([]State, len(active))
	durations := make([]time.Duration, len(active))

	group, groupContext := errgroup.WithContext(ctx)
	if graph.config.maxConcurrency > 0 {
		group.SetLimit(graph.config.maxConcurrency)
	}

	for index, nodeID := range active {
		group.Go(func() error {
			output, duration, err := graph.runNode(groupContext, observer, step, nodeID, snapshot)
			if err != nil {
				return err
			}
			outputs[index] = output
			durations[index] = duration
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, nil, err
	}
	return outputs, durations, nil
}

// runNode executes a single node, converting panics into ErrNodeFailed.
func (graph *Graph) runNode(ctx context.Context, observer observability.Provider, step int, nodeID string, snapshot State) (output State, duration time.Duration, err error) {
	nodeContext := graph.observeNodeStart(ctx, observer, step, nodeID)
	nodeStart := time.Now()

	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("%w: %q panicked: %v", ErrNodeFailed, nodeID, recovered)
		}
		duration = time.Since(nodeStart)

		if err != nil {
			graph.observeNodeFailed(nodeContext, observer, nodeID, err, duration)
			return
		}
		graph.observeNodeCompleted(nodeContext, observer, nodeID, output.Written(), duration)
	}()

	output, err = graph.nodes[nodeID].Run(nodeContext, snapshot)
	if err != nil {
		return State{}, 0, fmt.Errorf("%w: %q: %w", ErrNodeFailed, nodeID, err)
	}

	// A node that returns the zero State wrote nothing.
	if output.values == nil && output.written == nil {
		output = snapshot
	}
	return output, 0, nil
}

// successors returns the targets selected by the plain edges and routers
// leaving from. Routers are evaluated on view.
func (graph *Graph) successors(ctx context.Context, from string, view State, step int, publish func(Event) bool) ([]string, error) {
	targets := slices.Clone(graph.edges[from])

	for _, conditional := range graph.branches[from] {
		label := conditional.router(ctx, view)

		target, declared := conditional.outcomes[label]
		if !declared {
			return nil, fmt.Errorf("%w: %q from %q (declared: %v)", ErrUnknownOutcome, label, from, declaredLabels(conditional.outcomes))
		}

		if !publish(Event{Type: EventRoute, Step: step, NodeID: from, Outcome: label, Target: target}) {
			return nil, errConsumerStopped
		}
		targets = append(targets, target)
	}

	return targets, nil
}

// activation deduplicates targets, drops End and orders the result by node
// registration order.
func (graph *Graph) activation(targets []string) []string {
	seen := make(map[string]struct{}, len(targets))
	active := make([]string, 0, len(targets))

	for _, target := range targets {
		if target == End {
			continue
		}
		if _, duplicate := seen[target]; duplicate {
			continue
		}
		seen[target] = struct{}{}
		active = append(active, target)
	}

	slices.SortFunc(active, func(left, right string) int {
		return graph.position[left] - graph.position[right]
	})
	return active
}

// declaredLabels lists the outcome labels of a router, sorted.
func declaredLabels(outcomes map[string]string) []string {
	labels := make([]string, 0, len(outcomes))
	for label := range outcomes {
		labels = append(labels, label)
	}
	slices.Sort(labels)
	return labels
}
