package graph

import (
	"context"
	"errors"
	"iter"
	"time"
)

// EventType identifies what happened during graph execution.
// Each event in the stream carries exactly one type.
type EventType string

const (
	// EventStepStart signals that a new step has begun. Nodes lists the
	// node IDs about to run.
	EventStepStart EventType = "step_start"

	// EventNodeComplete signals that a node finished. Written lists the
	// fields it wrote and Duration its wall-clock time.
	EventNodeComplete EventType = "node_complete"

	// EventRoute signals that a router of NodeID picked Outcome, which
	// activates Target.
	EventRoute EventType = "route"

	// EventDone signals that the run completed. State holds the final state.
	EventDone EventType = "done"
)

// Event represents a single event from a graph run.
type Event struct {
	// Type identifies what kind of event this is.
	Type EventType `json:"type"`

	// Graph is the name of the graph that produced the event.
	Graph string `json:"graph,omitempty"`

	// Step is the 1-based step number. Routes taken from Start carry 0.
	Step int `json:"step"`

	// NodeID identifies the node the event is about.
	NodeID string `json:"node_id,omitempty"`

	// Nodes lists the active nodes of a step. EventStepStart only.
	Nodes []string `json:"nodes,omitempty"`

	// Written lists the fields a node wrote. EventNodeComplete only.
	Written []string `json:"written,omitempty"`

	// Outcome is the label a router returned. EventRoute only.
	Outcome string `json:"outcome,omitempty"`

	// Target is the node activated by Outcome. EventRoute only.
	Target string `json:"target,omitempty"`

	// Duration is the node time for EventNodeComplete and the run time for
	// EventDone.
	Duration time.Duration `json:"duration,omitempty"`

	// State is the final state. EventDone only.
	State *State `json:"-"`
}

// Stream runs the graph and yields its events as they happen. A run error
// is yielded once as the last element. Breaking out of the range loop stops
// the run before its next step.
//
// Example:
//
//	for event, err := range g.Stream(ctx, initial) {
//	    if err != nil {
//	        return err
//	    }
//	    if event.Type == graph.EventRoute {
//	        fmt.Printf("%s -> %s (%s)\n", event.NodeID, event.Target, event.Outcome)
//	    }
//	}
func (graph *Graph) Stream(ctx context.Context, state State) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		stopped := false
		emit := func(event Event) bool {
			if stopped {
				return false
			}
			if !yield(event, nil) {
				stopped = true
				return false
			}
			return true
		}

		_, err := graph.execute(ctx, state, emit)
		if err == nil || stopped || errors.Is(err, errConsumerStopped) {
			return
		}
		yield(Event{}, err)
	}
}

// Collect drains a Stream and returns the final state.
func Collect(events iter.Seq2[Event, error]) (State, error) {
	var final State
	for event, err := range events {
		if err != nil {
			return State{}, err
		}
		if event.Type == EventDone && event.State != nil {
			final = *event.State
		}
	}
	return final, nil
}
