// Package ai defines the provider-agnostic chat types used by the LLM
// gateway. A [Provider] turns a [ChatRequest] into a [ChatResponse];
// provider packages such as openai map these types to their wire format.
package ai
