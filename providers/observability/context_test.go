package observability

import (
	"context"
	"reflect"
	"testing"
)

func TestSpanFromContext_Empty(t *testing.T) {
	if span := SpanFromContext(context.Background()); span != nil {
		t.Errorf("Expected nil span from empty context, got %v", span)
	}
}

func TestSpanFromContext_WithSpan(t *testing.T) {
	mockSpan := &mockSpan{name: "test-span"}
	ctx := ContextWithSpan(context.Background(), mockSpan)

	if span := SpanFromContext(ctx); span != mockSpan {
		t.Errorf("Expected same span instance, got %v", span)
	}
}

func TestContextWithSpan_Overwrite(t *testing.T) {
	first := &mockSpan{name: "span-1"}
	second := &mockSpan{name: "span-2"}

	ctx := ContextWithSpan(context.Background(), first)
	ctx = ContextWithSpan(ctx, second)

	if span := SpanFromContext(ctx); span != second {
		t.Errorf("Expected the innermost span, got %v", span)
	}
}

func TestSpanFromContext_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), spanContextKey, "not a span")

	if span := SpanFromContext(ctx); span != nil {
		t.Errorf("Expected nil when value is not a Span, got %v", span)
	}
}

func TestContextWithObserver_RoundTrip(t *testing.T) {
	observer := &mockProvider{label: "round-trip-observer"}
	ctx := ContextWithObserver(context.Background(), observer)

	retrieved := ObserverFromContext(ctx)
	if retrieved != observer {
		t.Fatalf("ObserverFromContext returned %v, want the stored observer", retrieved)
	}
}

func TestContextWithObserver_KeepsSpan(t *testing.T) {
	span := &mockSpan{name: "run"}
	observer := &mockProvider{label: "observer"}

	ctx := ContextWithSpan(context.Background(), span)
	ctx = ContextWithObserver(ctx, observer)

	if SpanFromContext(ctx) != span {
		t.Error("span lost after storing an observer")
	}
	if ObserverFromContext(ctx) != observer {
		t.Error("observer not retrievable")
	}
}

func TestObserverFromContext_MissingKey(t *testing.T) {
	if observer := ObserverFromContext(context.Background()); observer != nil {
		t.Errorf("Expected nil from context without observer, got %v", observer)
	}
}

func TestStringSlice(t *testing.T) {
	input := []string{"balance_sheet", "cash_flows"}
	attr := StringSlice("tasks", input)

	if attr.Key != "tasks" {
		t.Errorf("Expected key 'tasks', got %q", attr.Key)
	}
	value, ok := attr.Value.([]string)
	if !ok {
		t.Fatalf("Expected Value to be []string, got %T", attr.Value)
	}
	if !reflect.DeepEqual(value, input) {
		t.Errorf("Expected value %v, got %v", input, value)
	}
}

type mockSpan struct {
	name string
}

func (m *mockSpan) End()                              {}
func (m *mockSpan) SetAttributes(_ ...Attribute)      {}
func (m *mockSpan) SetStatus(_ StatusCode, _ string)  {}
func (m *mockSpan) RecordError(_ error)               {}
func (m *mockSpan) AddEvent(_ string, _ ...Attribute) {}

// mockProvider carries a label so tests can tell instances apart.
type mockProvider struct {
	label string
}

func (m *mockProvider) StartSpan(ctx context.Context, _ string, _ ...Attribute) (context.Context, Span) {
	return ctx, nil
}
func (m *mockProvider) Counter(_ string) Counter                          { return nil }
func (m *mockProvider) Histogram(_ string) Histogram                      { return nil }
func (m *mockProvider) Trace(_ context.Context, _ string, _ ...Attribute) {}
func (m *mockProvider) Debug(_ context.Context, _ string, _ ...Attribute) {}
func (m *mockProvider) Info(_ context.Context, _ string, _ ...Attribute)  {}
func (m *mockProvider) Warn(_ context.Context, _ string, _ ...Attribute)  {}
func (m *mockProvider) Error(_ context.Context, _ string, _ ...Attribute) {}
