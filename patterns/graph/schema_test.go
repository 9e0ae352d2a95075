package graph

import (
	"errors"
	"reflect"
	"testing"
)

type versionedRecord struct {
	Version int
	Label   string
}

func (record versionedRecord) StateVersion() int { return record.Version }

func TestNewSchema_RejectsInvalidFields(t *testing.T) {
	tests := []struct {
		name   string
		fields []Field
	}{
		{name: "empty name", fields: []Field{{Name: "", Reduce: Replace()}}},
		{name: "nil reducer", fields: []Field{{Name: "a"}}},
		{name: "duplicate", fields: []Field{{Name: "a", Reduce: Replace()}, {Name: "a", Reduce: Replace()}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSchema(tt.fields...); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestSchema_NewState(t *testing.T) {
	schema, err := NewSchema(
		Field{Name: "tasks", Reduce: OrderedUnion[string](), Default: []string{}},
		Field{Name: "input", Reduce: Replace()},
	)
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}

	state, err := schema.NewState(map[string]any{"input": "report"})
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	if got := Value[[]string](state, "tasks"); got == nil || len(got) != 0 {
		t.Errorf("default not applied, tasks = %#v", got)
	}
	if got := Value[string](state, "input"); got != "report" {
		t.Errorf("input = %q", got)
	}
	if want := []string{"tasks", "input"}; !reflect.DeepEqual(schema.Fields(), want) {
		t.Errorf("Fields() = %v, want %v", schema.Fields(), want)
	}

	if _, err := schema.NewState(map[string]any{"unknown": 1}); !errors.Is(err, ErrUndeclaredField) {
		t.Errorf("expected ErrUndeclaredField, got %v", err)
	}
}

func TestSchema_MergeOnlyWrittenFields(t *testing.T) {
	schema, err := NewSchema(
		Field{Name: "a", Reduce: Replace()},
		Field{Name: "b", Reduce: Replace()},
	)
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}

	base := NewState(map[string]any{"a": 1, "b": 1})
	// The update carries a stale "b" that it did not write.
	update := NewState(map[string]any{"a": 1, "b": 0}).Set("a", 2)

	merged, err := schema.Merge(base, update)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if got := Value[int](merged, "a"); got != 2 {
		t.Errorf("a = %d, want 2", got)
	}
	if got := Value[int](merged, "b"); got != 1 {
		t.Errorf("unwritten b overwritten, got %d", got)
	}
	if want := []string{"a"}; !reflect.DeepEqual(merged.Written(), want) {
		t.Errorf("Written() = %v, want %v", merged.Written(), want)
	}
}

func TestSchema_MergeErrors(t *testing.T) {
	schema, err := NewSchema(
		Field{Name: "answer", Reduce: Replace(), Exclusive: true},
		Field{Name: "notes", Reduce: OrderedUnion[string]()},
	)
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}
	base := NewState(nil)

	_, err = schema.Merge(base, base.Set("answer", "x"), base.Set("answer", "y"))
	if !errors.Is(err, ErrConcurrentWrite) {
		t.Errorf("expected ErrConcurrentWrite, got %v", err)
	}

	_, err = schema.Merge(base, base.Set("other", 1))
	if !errors.Is(err, ErrUndeclaredField) {
		t.Errorf("expected ErrUndeclaredField, got %v", err)
	}

	_, err = schema.Merge(base, base.Set("notes", 42))
	if !errors.Is(err, ErrFieldType) {
		t.Errorf("expected ErrFieldType, got %v", err)
	}
}

func TestMapUnion_DisjointWritesCommute(t *testing.T) {
	reduce := MapUnion[string, string]()
	base := map[string]string{"seed": "0"}
	left := map[string]string{"balance_sheet": "assets"}
	right := map[string]string{"cash_flows": "capex"}

	apply := func(updates ...map[string]string) map[string]string {
		var current any = base
		for _, update := range updates {
			next, err := reduce(current, update)
			if err != nil {
				t.Fatalf("reduce: %v", err)
			}
			current = next
		}
		return current.(map[string]string)
	}

	forward := apply(left, right)
	backward := apply(right, left)
	if !reflect.DeepEqual(forward, backward) {
		t.Errorf("merge order changed the result: %v vs %v", forward, backward)
	}
	if len(forward) != 3 {
		t.Errorf("expected 3 keys, got %v", forward)
	}
	if len(base) != 1 {
		t.Error("reducer mutated its input")
	}
}

func TestMapUnion_UpdateWinsOnConflict(t *testing.T) {
	merged, err := MapUnion[string, int]()(map[string]int{"k": 1}, map[string]int{"k": 2})
	if err != nil {
		t.Fatalf("reduce: %v", err)
	}
	if got := merged.(map[string]int)["k"]; got != 2 {
		t.Errorf("k = %d, want 2", got)
	}
}

func TestOrderedUnion(t *testing.T) {
	merged, err := OrderedUnion[string]()([]string{"b", "a"}, []string{"a", "c", "c"})
	if err != nil {
		t.Fatalf("reduce: %v", err)
	}
	if want := []string{"b", "a", "c"}; !reflect.DeepEqual(merged, want) {
		t.Errorf("merged = %v, want %v", merged, want)
	}

	fromNil, err := OrderedUnion[string]()(nil, []string{"x"})
	if err != nil || !reflect.DeepEqual(fromNil, []string{"x"}) {
		t.Errorf("merge into nil = %v, %v", fromNil, err)
	}
}

func TestHighestVersion(t *testing.T) {
	reduce := HighestVersion[versionedRecord]()
	current := versionedRecord{Version: 2, Label: "current"}

	tests := []struct {
		name   string
		update versionedRecord
		want   string
	}{
		{name: "newer wins", update: versionedRecord{Version: 3, Label: "newer"}, want: "newer"},
		{name: "older ignored", update: versionedRecord{Version: 1, Label: "older"}, want: "current"},
		{name: "tie goes to the later rendering", update: versionedRecord{Version: 2, Label: "tie"}, want: "tie"},
		{name: "tie loses to the earlier rendering", update: versionedRecord{Version: 2, Label: "another"}, want: "current"},
		{name: "identical tie", update: versionedRecord{Version: 2, Label: "current"}, want: "current"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merged, err := reduce(current, tt.update)
			if err != nil {
				t.Fatalf("reduce: %v", err)
			}
			if got := merged.(versionedRecord).Label; got != tt.want {
				t.Errorf("kept %q, want %q", got, tt.want)
			}
		})
	}

	for _, pair := range [][2]versionedRecord{
		{{Version: 4, Label: "left"}, {Version: 4, Label: "right"}},
		{{Version: 4, Label: "b"}, {Version: 5, Label: "a"}},
	} {
		forward, err := reduce(pair[0], pair[1])
		if err != nil {
			t.Fatal(err)
		}
		backward, err := reduce(pair[1], pair[0])
		if err != nil {
			t.Fatal(err)
		}
		if forward != backward {
			t.Errorf("merge order changed the result: %v vs %v", forward, backward)
		}
	}

	first, err := reduce(nil, versionedRecord{Version: 0, Label: "first"})
	if err != nil || first.(versionedRecord).Label != "first" {
		t.Errorf("merge into nil = %v, %v", first, err)
	}
}
