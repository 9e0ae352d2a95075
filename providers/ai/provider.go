package ai

import (
	"context"
	"net/http"
)

// Provider is the interface every LLM backend implements.
type Provider interface {
	// SendMessage sends a chat request and returns the completed response.
	// It returns an error if the call fails, the context is canceled, or
	// the response cannot be decoded.
	SendMessage(ctx context.Context, request ChatRequest) (*ChatResponse, error)

	// Name identifies the backend in logs and span attributes.
	Name() string

	// WithAPIKey sets the API key used for authenticating requests.
	WithAPIKey(apiKey string) Provider

	// WithBaseURL overrides the default base URL for API requests.
	WithBaseURL(baseURL string) Provider

	// WithHttpClient sets the HTTP client used for outbound requests.
	WithHttpClient(httpClient *http.Client) Provider
}
