package parse

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ParseStringAs converts content into T.
//
// Primitive kinds (string, bool, int, uint, float) are converted directly.
// Everything else is decoded as JSON; when that fails the text is repaired
// with jsonrepair and decoded again, and as a last resort schema-style
// {"type": ..., "value": ...} envelopes are unwrapped.
//
// Example:
//
//	type verdict struct {
//	    Passed bool `json:"passed"`
//	}
//
//	v, err := parse.ParseStringAs[verdict](`{passed: true}`) // repaired
//	n, err := parse.ParseStringAs[int]("42")
func ParseStringAs[T any](content string) (T, error) {
	var result T
	target := reflect.ValueOf(&result).Elem()
	trimmed := strings.TrimSpace(content)

	switch target.Kind() {
	case reflect.String:
		if strings.HasPrefix(trimmed, "{") {
			if unwrapped, err := tryUnwrapPrimitive(trimmed); err == nil {
				target.SetString(unwrapped)
				return result, nil
			}
		}
		target.SetString(content)
		return result, nil

	case reflect.Bool:
		value, err := parsePrimitive(trimmed, strconv.ParseBool)
		if err != nil {
			return result, fmt.Errorf("failed to parse content as bool: %w", err)
		}
		target.SetBool(value)
		return result, nil

	case reflect.Float32, reflect.Float64:
		value, err := parsePrimitive(trimmed, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
		if err != nil {
			return result, fmt.Errorf("failed to parse content as float: %w", err)
		}
		target.SetFloat(value)
		return result, nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		value, err := parsePrimitive(trimmed, func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) })
		if err != nil {
			return result, fmt.Errorf("failed to parse content as int: %w", err)
		}
		target.SetInt(value)
		return result, nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		value, err := parsePrimitive(trimmed, func(s string) (uint64, error) { return strconv.ParseUint(s, 10, 64) })
		if err != nil {
			return result, fmt.Errorf("failed to parse content as uint: %w", err)
		}
		target.SetUint(value)
		return result, nil
	}

	err := json.Unmarshal([]byte(content), &result)
	if err == nil {
		return result, nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(content)
	if repairErr != nil {
		return result, fmt.Errorf("failed to unmarshal content as %T and failed to repair JSON: unmarshal error: %w, repair error: %v", result, err, repairErr)
	}

	// Repair may have produced a valid document of the wrong shape, so start
	// from a clean zero value on each attempt.
	var repairedResult T
	if err = json.Unmarshal([]byte(repaired), &repairedResult); err == nil {
		return repairedResult, nil
	}

	if unwrapped, unwrapErr := unwrapSchemaValues(repaired); unwrapErr == nil {
		var unwrappedResult T
		if unwrapErr = json.Unmarshal([]byte(unwrapped), &unwrappedResult); unwrapErr == nil {
			return unwrappedResult, nil
		}
	}

	return result, fmt.Errorf("failed to unmarshal repaired JSON as %T: %w", result, err)
}

// parsePrimitive runs convert on content, retrying on the inner value when
// content is a schema-wrapped primitive.
func parsePrimitive[V any](content string, convert func(string) (V, error)) (V, error) {
	value, err := convert(content)
	if err == nil {
		return value, nil
	}
	if unwrapped, unwrapErr := tryUnwrapPrimitive(content); unwrapErr == nil {
		if value, unwrappedErr := convert(unwrapped); unwrappedErr == nil {
			return value, nil
		}
	}
	return value, err
}

var errNotWrapped = errors.New("not a schema-wrapped value")

// tryUnwrapPrimitive returns the value of a {"type": ..., "value": ...}
// envelope as a string.
func tryUnwrapPrimitive(content string) (string, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(content), &data); err != nil {
		return "", err
	}

	value, ok := schemaEnvelope(data)
	if !ok {
		return "", errNotWrapped
	}

	switch typed := value.(type) {
	case string:
		return typed, nil
	case float64, bool:
		return fmt.Sprintf("%v", typed), nil
	default:
		encoded, err := json.Marshal(typed)
		if err != nil {
			return "", err
		}
		return string(encoded), nil
	}
}

// unwrapSchemaValues replaces every {"type": ..., "value": ...} envelope in
// a JSON document by its value. Models sometimes answer with the schema
// shape instead of the data.
//
//	{"passed": {"type": "boolean", "value": true}}  ->  {"passed": true}
func unwrapSchemaValues(document string) (string, error) {
	var data any
	if err := json.Unmarshal([]byte(document), &data); err != nil {
		return "", err
	}

	encoded, err := json.Marshal(recursiveUnwrap(data))
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func recursiveUnwrap(data any) any {
	switch typed := data.(type) {
	case map[string]any:
		if value, ok := schemaEnvelope(typed); ok {
			return recursiveUnwrap(value)
		}
		result := make(map[string]any, len(typed))
		for key, value := range typed {
			result[key] = recursiveUnwrap(value)
		}
		return result

	case []any:
		result := make([]any, len(typed))
		for index, value := range typed {
			result[index] = recursiveUnwrap(value)
		}
		return result

	default:
		return data
	}
}

func schemaEnvelope(data map[string]any) (any, bool) {
	if len(data) != 2 {
		return nil, false
	}
	if _, hasType := data["type"]; !hasType {
		return nil, false
	}
	value, hasValue := data["value"]
	return value, hasValue
}
