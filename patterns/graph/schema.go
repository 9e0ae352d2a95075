package graph

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// Reducer folds an update into the current value of a field. current is nil
// when the field has no value yet. Reducers must not mutate either argument.
type Reducer func(current, update any) (any, error)

// Field declares one state field and the rule used to merge concurrent writes.
type Field struct {
	// Name is the state key of the field.
	Name string

	// Reduce merges a node's write into the field. Required.
	Reduce Reducer

	// Exclusive marks a single-writer field: two nodes writing it in the same
	// step abort the run with ErrConcurrentWrite.
	Exclusive bool

	// Default is the initial value used by Schema.NewState when the caller
	// does not provide one. Nil leaves the field unset.
	Default any
}

// Schema is the registry of state fields. Every field has exactly one merge
// rule, checked when the schema is built.
type Schema struct {
	fields map[string]Field
	order  []string
}

// NewSchema validates the field declarations and builds a Schema. Empty
// names, nil reducers and duplicate names are rejected.
//
// Example:
//
//	schema, err := graph.NewSchema(
//	    graph.Field{Name: "notes", Reduce: graph.OrderedUnion[string]()},
//	    graph.Field{Name: "answer", Reduce: graph.Replace(), Exclusive: true},
//	)
func NewSchema(fields ...Field) (*Schema, error) {
	schema := &Schema{
		fields: make(map[string]Field, len(fields)),
		order:  make([]string, 0, len(fields)),
	}

	var declarationErrors []error
	for index, field := range fields {
		if field.Name == "" {
			declarationErrors = append(declarationErrors, fmt.Errorf("field %d: name must not be empty", index))
			continue
		}
		if field.Reduce == nil {
			declarationErrors = append(declarationErrors, fmt.Errorf("field %q: reducer must not be nil", field.Name))
			continue
		}
		if _, exists := schema.fields[field.Name]; exists {
			declarationErrors = append(declarationErrors, fmt.Errorf("field %q: declared more than once", field.Name))
			continue
		}
		schema.fields[field.Name] = field
		schema.order = append(schema.order, field.Name)
	}

	if len(declarationErrors) > 0 {
		return nil, fmt.Errorf("invalid schema: %w", errors.Join(declarationErrors...))
	}
	return schema, nil
}

// Fields returns the declared field names in declaration order.
func (schema *Schema) Fields() []string {
	return slices.Clone(schema.order)
}

// Has reports whether name is a declared field.
func (schema *Schema) Has(name string) bool {
	_, exists := schema.fields[name]
	return exists
}

// NewState builds the initial State of a run. Missing fields receive their
// declared Default; unknown keys are rejected with ErrUndeclaredField.
func (schema *Schema) NewState(values map[string]any) (State, error) {
	initial := make(map[string]any, len(schema.order))
	for _, name := range schema.order {
		if defaultValue := schema.fields[name].Default; defaultValue != nil {
			initial[name] = defaultValue
		}
	}

	for _, key := range slices.Sorted(maps.Keys(values)) {
		if !schema.Has(key) {
			return State{}, fmt.Errorf("%w: %q", ErrUndeclaredField, key)
		}
		initial[key] = values[key]
	}

	return State{values: initial}, nil
}

// Merge folds the written fields of each update into base, in argument
// order, using each field's reducer. Only fields an update actually wrote
// are merged. The returned State marks every merged field as written.
func (schema *Schema) Merge(base State, updates ...State) (State, error) {
	labels := make([]string, len(updates))
	for index := range updates {
		labels[index] = fmt.Sprintf("update[%d]", index)
	}
	return schema.merge(base, updates, labels)
}

// merge is Merge with caller-provided labels used in error messages.
func (schema *Schema) merge(base State, updates []State, labels []string) (State, error) {
	merged := maps.Clone(base.values)
	if merged == nil {
		merged = make(map[string]any)
	}
	written := make(map[string]struct{})
	writers := make(map[string]string)

	for index, update := range updates {
		for _, key := range update.Written() {
			field, declared := schema.fields[key]
			if !declared {
				return State{}, fmt.Errorf("%w: %q written by %s", ErrUndeclaredField, key, labels[index])
			}

			if previousWriter, seen := writers[key]; seen && field.Exclusive {
				return State{}, fmt.Errorf("%w: %q written by %s and %s", ErrConcurrentWrite, key, previousWriter, labels[index])
			}
			writers[key] = labels[index]

			reduced, err := field.Reduce(merged[key], update.update(key))
			if err != nil {
				return State{}, fmt.Errorf("merge field %q from %s: %w", key, labels[index], err)
			}
			merged[key] = reduced
			written[key] = struct{}{}
		}
	}

	return State{values: merged, written: written}, nil
}

// --- Reducers ---

// Replace keeps the latest write. Combine it with Field.Exclusive for
// single-writer fields.
func Replace() Reducer {
	return func(_, update any) (any, error) {
		return update, nil
	}
}

// MapUnion merges map[K]V values as a shallow union. Keys from both sides
// survive; for a key present in both, the update wins. Concurrent writes to
// distinct keys commute. When two nodes of a step write the same key, the
// node registered last wins.
func MapUnion[K comparable, V any]() Reducer {
	return func(current, update any) (any, error) {
		base, err := typedOrZero[map[K]V](current)
		if err != nil {
			return nil, err
		}
		addition, err := typedOrZero[map[K]V](update)
		if err != nil {
			return nil, err
		}

		merged := make(map[K]V, len(base)+len(addition))
		maps.Copy(merged, base)
		maps.Copy(merged, addition)
		return merged, nil
	}
}

// OrderedUnion merges []V values as a set that keeps first-seen order and
// drops duplicates.
func OrderedUnion[V comparable]() Reducer {
	return func(current, update any) (any, error) {
		base, err := typedOrZero[[]V](current)
		if err != nil {
			return nil, err
		}
		addition, err := typedOrZero[[]V](update)
		if err != nil {
			return nil, err
		}

		seen := make(map[V]struct{}, len(base)+len(addition))
		merged := make([]V, 0, len(base)+len(addition))
		for _, item := range slices.Concat(base, addition) {
			if _, duplicate := seen[item]; duplicate {
				continue
			}
			seen[item] = struct{}{}
			merged = append(merged, item)
		}
		return merged, nil
	}
}

// Versioned is implemented by values merged with HighestVersion.
type Versioned interface {
	StateVersion() int
}

// HighestVersion keeps whichever value carries the higher StateVersion.
// Values are never combined. On a tie the value whose %#v rendering sorts
// last is kept, so the result does not depend on merge order; values
// holding pointers or maps should not tie.
func HighestVersion[V Versioned]() Reducer {
	return func(current, update any) (any, error) {
		next, err := typedOrZero[V](update)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return next, nil
		}

		existing, err := typedOrZero[V](current)
		if err != nil {
			return nil, err
		}
		switch {
		case next.StateVersion() > existing.StateVersion():
			return next, nil
		case next.StateVersion() < existing.StateVersion():
			return existing, nil
		case fmt.Sprintf("%#v", next) > fmt.Sprintf("%#v", existing):
			return next, nil
		default:
			return existing, nil
		}
	}
}

// typedOrZero asserts value to V, treating nil as the zero value.
func typedOrZero[V any](value any) (V, error) {
	var zero V
	if value == nil {
		return zero, nil
	}
	typed, ok := value.(V)
	if !ok {
		return zero, fmt.Errorf("%w: want %T, got %T", ErrFieldType, zero, value)
	}
	return typed, nil
}
