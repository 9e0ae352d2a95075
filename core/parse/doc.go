// Package parse turns model output into typed values.
//
// Models wrap JSON in prose or markdown fences, emit slightly invalid JSON,
// or answer with a schema-shaped envelope instead of the data. [Decode]
// extracts the JSON candidate and hands it to [ParseStringAs], which repairs
// it with jsonrepair and unwraps envelopes before giving up. Decode returns a
// [Result] so that callers with a documented fallback can use
// [Result.OrElse].
package parse
