package graph

import (
	"maps"
	"slices"
)

// State is an immutable snapshot of named fields threaded through the graph.
//
// Nodes never mutate the State they receive. Set returns a copy with the
// field replaced and remembers the field as written, so the executor merges
// only what a node actually produced. Reading a State from several goroutines
// is safe.
//
// Example:
//
//	func(ctx context.Context, state graph.State) (graph.State, error) {
//	    count := graph.Value[int](state, "count")
//	    return state.Set("count", count+1), nil
//	}
type State struct {
	values  map[string]any
	written map[string]struct{}

	// updates holds, for written fields, the value to reduce into a parent
	// state when it differs from values. Only subgraph results set it.
	updates map[string]any
}

// NewState creates a State from the given values. None of the fields is
// marked as written.
func NewState(values map[string]any) State {
	return State{
		values:  maps.Clone(values),
		written: nil,
	}
}

// Get returns the value stored under key and whether it exists.
func (state State) Get(key string) (any, bool) {
	value, exists := state.values[key]
	return value, exists
}

// Set returns a new State with key set to value and key marked as written.
func (state State) Set(key string, value any) State {
	values := make(map[string]any, len(state.values)+1)
	maps.Copy(values, state.values)
	values[key] = value

	written := make(map[string]struct{}, len(state.written)+1)
	maps.Copy(written, state.written)
	written[key] = struct{}{}

	var updates map[string]any
	if len(state.updates) > 0 {
		updates = maps.Clone(state.updates)
		delete(updates, key)
	}

	return State{values: values, written: written, updates: updates}
}

// Written returns the fields set since this State was handed to a node,
// sorted by name.
func (state State) Written() []string {
	keys := slices.Collect(maps.Keys(state.written))
	slices.Sort(keys)
	return keys
}

// WasWritten reports whether key was set on this State.
func (state State) WasWritten(key string) bool {
	_, exists := state.written[key]
	return exists
}

// Keys returns every field name present in the State, sorted.
func (state State) Keys() []string {
	keys := slices.Collect(maps.Keys(state.values))
	slices.Sort(keys)
	return keys
}

// Values returns a copy of the underlying field map.
func (state State) Values() map[string]any {
	return maps.Clone(state.values)
}

// snapshot returns the same values with the written set cleared. It is what
// every node of a step receives.
func (state State) snapshot() State {
	return State{values: state.values}
}

// withUpdates returns the State with the written set replaced by keys and
// the values to merge into a parent taken from net.
func (state State) withUpdates(keys map[string]struct{}, net map[string]any) State {
	updates := make(map[string]any, len(keys))
	for key := range keys {
		updates[key] = net[key]
	}
	return State{values: state.values, written: maps.Clone(keys), updates: updates}
}

// update returns the value a merge folds in for the written field key.
func (state State) update(key string) any {
	if value, exists := state.updates[key]; exists {
		return value
	}
	return state.values[key]
}

// Value returns the field stored under key as V. The zero value of V is
// returned when the field is missing or holds a different type.
func Value[V any](state State, key string) V {
	raw, exists := state.values[key]
	if !exists {
		var zero V
		return zero
	}

	typed, ok := raw.(V)
	if !ok {
		var zero V
		return zero
	}
	return typed
}

// Lookup is like Value but reports whether a value of type V was found.
func Lookup[V any](state State, key string) (V, bool) {
	raw, exists := state.values[key]
	if !exists {
		var zero V
		return zero, false
	}

	typed, ok := raw.(V)
	return typed, ok
}
