// Package utils provides low-level helpers shared by the finagent internals:
// [DoPostSync] for JSON round-trips to provider APIs, [EstimateTokens] for
// usage estimates when a provider reports none, [Ptr] for optional wire
// fields, [Timer] for latency measurement and string helpers for logs.
package utils
