package parse

import (
	"errors"
	"strings"
)

// ErrNoJSON is returned by Decode when the text contains no JSON object.
var ErrNoJSON = errors.New("parse: no JSON object found")

// Result carries either a decoded value or the error that prevented it.
// Callers that have a documented fallback use OrElse instead of branching on
// the error.
type Result[T any] struct {
	Value T
	Err   error
}

// Ok reports whether decoding succeeded.
func (result Result[T]) Ok() bool {
	return result.Err == nil
}

// OrElse returns the decoded value, or fallback when decoding failed.
func (result Result[T]) OrElse(fallback T) T {
	if result.Err != nil {
		return fallback
	}
	return result.Value
}

// Decode extracts the JSON object embedded in text (inside a markdown code
// fence, or between the first '{' and the last '}') and decodes it into T
// with ParseStringAs.
//
// Example:
//
//	verdict := parse.Decode[Verdict](completion.Text)
//	if !verdict.Ok() {
//	    // fall back
//	}
func Decode[T any](text string) Result[T] {
	candidate, err := ExtractJSON(text)
	if err != nil {
		return Result[T]{Err: err}
	}

	value, err := ParseStringAs[T](candidate)
	if err != nil {
		return Result[T]{Err: err}
	}
	return Result[T]{Value: value}
}

// ExtractJSON returns the JSON object candidate contained in text.
func ExtractJSON(text string) (string, error) {
	candidate := strings.TrimSpace(text)

	if fenced, ok := fencedBlock(candidate); ok {
		candidate = fenced
	}

	start := strings.Index(candidate, "{")
	end := strings.LastIndex(candidate, "}")
	if start < 0 || end <= start {
		return "", ErrNoJSON
	}
	return candidate[start : end+1], nil
}

// fencedBlock returns the body of the first ``` fence in text.
func fencedBlock(text string) (string, bool) {
	open := strings.Index(text, "```")
	if open < 0 {
		return "", false
	}
	body := text[open+3:]

	// Drop the info string ("json") on the opening line.
	if newline := strings.IndexByte(body, '\n'); newline >= 0 {
		body = body[newline+1:]
	}

	closing := strings.Index(body, "```")
	if closing < 0 {
		return "", false
	}
	return body[:closing], true
}
