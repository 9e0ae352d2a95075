package graph

import "errors"

var (
	// ErrNodeFailed wraps any error returned (or panic raised) by a node.
	// A failed node aborts the whole run.
	ErrNodeFailed = errors.New("graph: node failed")

	// ErrUnknownOutcome is returned when a router yields a label that is not
	// part of its declared outcome map.
	ErrUnknownOutcome = errors.New("graph: router returned undeclared outcome")

	// ErrStepLimit is returned when a run exceeds the configured maximum
	// number of steps.
	ErrStepLimit = errors.New("graph: step limit exceeded")

	// ErrUndeclaredField is returned when a node writes a field the schema
	// does not declare.
	ErrUndeclaredField = errors.New("graph: field not declared in schema")

	// ErrConcurrentWrite is returned when two nodes of the same step write an
	// exclusive field.
	ErrConcurrentWrite = errors.New("graph: concurrent write to exclusive field")

	// ErrFieldType is returned by reducers when a value has an unexpected type.
	ErrFieldType = errors.New("graph: unexpected field type")
)
