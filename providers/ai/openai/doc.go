// Package openai implements [ai.Provider] for OpenAI-compatible
// /chat/completions endpoints (OpenAI, Azure, Ollama, OpenRouter, vLLM).
//
// [NewOpenAIProvider] reads OPENAI_API_KEY and OPENAI_API_BASE_URL from the environment;
// [Provider.WithAPIKey] and [Provider.WithBaseURL] override them.
package openai
