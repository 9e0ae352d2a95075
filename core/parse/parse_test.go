package parse

import (
	"errors"
	"reflect"
	"testing"
)

type feedbackItem struct {
	Issue      string `json:"issue"`
	RuleID     string `json:"rule_id"`
	Suggestion string `json:"suggestion"`
}

type verdict struct {
	Passed   *bool          `json:"passed"`
	Feedback []feedbackItem `json:"feedback"`
}

type plan struct {
	Tasks []string `json:"tasks"`
}

func TestParseStringAs_Primitives(t *testing.T) {
	if got, err := ParseStringAs[string]("hello\nworld"); err != nil || got != "hello\nworld" {
		t.Errorf("string: got %q, %v", got, err)
	}
	if got, err := ParseStringAs[string](`{"type":"string","value":"wrapped"}`); err != nil || got != "wrapped" {
		t.Errorf("wrapped string: got %q, %v", got, err)
	}

	boolTests := []struct {
		input   string
		want    bool
		wantErr bool
	}{
		{"true", true, false},
		{"0", false, false},
		{" true ", true, false},
		{`{"type":"boolean","value":true}`, true, false},
		{"maybe", false, true},
	}
	for _, tt := range boolTests {
		got, err := ParseStringAs[bool](tt.input)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("bool %q: got %v, %v", tt.input, got, err)
		}
	}

	if got, err := ParseStringAs[int]("42"); err != nil || got != 42 {
		t.Errorf("int: got %d, %v", got, err)
	}
	if got, err := ParseStringAs[int](`{"type":"integer","value":7}`); err != nil || got != 7 {
		t.Errorf("wrapped int: got %d, %v", got, err)
	}
	if _, err := ParseStringAs[int]("4.2"); err == nil {
		t.Error("int from 4.2 should fail")
	}
	if got, err := ParseStringAs[uint8]("200"); err != nil || got != 200 {
		t.Errorf("uint8: got %d, %v", got, err)
	}
	if got, err := ParseStringAs[float64]("0.0375"); err != nil || got != 0.0375 {
		t.Errorf("float: got %v, %v", got, err)
	}
}

func TestParseStringAs_Structs(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    plan
		wantErr bool
	}{
		{name: "valid", input: `{"tasks":["balance_sheet"]}`, want: plan{Tasks: []string{"balance_sheet"}}},
		{name: "single quotes and bare keys", input: `{tasks: ['cash_flows']}`, want: plan{Tasks: []string{"cash_flows"}}},
		{name: "trailing comma", input: `{"tasks":["income_statement",]}`, want: plan{Tasks: []string{"income_statement"}}},
		{name: "schema envelope", input: `{"tasks":{"type":"array","value":["balance_sheet","cash_flows"]}}`, want: plan{Tasks: []string{"balance_sheet", "cash_flows"}}},
		{name: "wrong shape", input: `{"tasks":"balance_sheet"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStringAs[plan](tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "bare object", input: `{"a":1}`, want: `{"a":1}`},
		{name: "prose around", input: "Here is the plan: {\"tasks\":[]} hope it helps", want: `{"tasks":[]}`},
		{name: "json fence", input: "```json\n{\"passed\": true}\n```", want: `{"passed": true}`},
		{name: "plain fence", input: "Result:\n```\n{\"passed\": false}\n```\nDone.", want: `{"passed": false}`},
		{name: "nested braces", input: `x {"a":{"b":1}} y`, want: `{"a":{"b":1}}`},
		{name: "no object", input: "the model refused", wantErr: ErrNoJSON},
		{name: "reversed braces", input: "} nothing {", wantErr: ErrNoJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecode_Verdict(t *testing.T) {
	text := "Review complete.\n```json\n{\"passed\": false, \"feedback\": [{\"issue\": \"missing units\", \"rule_id\": \"R1\", \"suggestion\": \"state USD\"}]}\n```"

	result := Decode[verdict](text)
	if !result.Ok() {
		t.Fatalf("Decode failed: %v", result.Err)
	}
	if result.Value.Passed == nil || *result.Value.Passed {
		t.Errorf("passed = %v, want false", result.Value.Passed)
	}
	if len(result.Value.Feedback) != 1 || result.Value.Feedback[0].RuleID != "R1" {
		t.Errorf("feedback = %+v", result.Value.Feedback)
	}
}

func TestDecode_MissingFieldStaysNil(t *testing.T) {
	result := Decode[verdict](`{"feedback": []}`)
	if !result.Ok() {
		t.Fatalf("Decode failed: %v", result.Err)
	}
	if result.Value.Passed != nil {
		t.Error("absent passed should decode to nil so callers can apply their default")
	}
}

func TestResult_OrElse(t *testing.T) {
	fallback := plan{Tasks: []string{"balance_sheet", "income_statement", "cash_flows"}}

	failed := Decode[plan]("I cannot help with that")
	if failed.Ok() || !errors.Is(failed.Err, ErrNoJSON) {
		t.Fatalf("expected ErrNoJSON, got %v", failed.Err)
	}
	if got := failed.OrElse(fallback); !reflect.DeepEqual(got, fallback) {
		t.Errorf("OrElse on failure = %+v", got)
	}

	decoded := Decode[plan](`{"tasks": ["cash_flows"]}`)
	if got := decoded.OrElse(fallback); !reflect.DeepEqual(got.Tasks, []string{"cash_flows"}) {
		t.Errorf("OrElse on success = %+v", got)
	}
}
