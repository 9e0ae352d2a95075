package client

import (
	"context"
	"fmt"

	"github.com/leofalp/finagent/internal/utils"
	"github.com/leofalp/finagent/providers/ai"
	"github.com/leofalp/finagent/providers/observability"
)

// StubPrefix starts every completion text produced without a model response.
const StubPrefix = "[stub] model output unavailable"

// Completion is the outcome of one Invoke call. Token counts come from the
// provider usage when reported, otherwise from text length estimates.
type Completion struct {
	Text         string
	InputTokens  int
	OutputTokens int
	Stub         bool
}

// Client is the single entry point the workflow uses to reach a language
// model. It is safe for concurrent use once constructed.
type Client struct {
	provider    ai.Provider
	send        SendFunc
	observer    observability.Provider
	middlewares []Middleware
	maxTokens   int
	temperature float32
}

// Option configures a Client.
type Option func(*Client)

// WithMiddleware appends middlewares to the send chain. The first one is the
// outermost wrapper.
func WithMiddleware(middlewares ...Middleware) Option {
	return func(c *Client) {
		c.middlewares = append(c.middlewares, middlewares...)
	}
}

// WithObserver enables tracing, metrics and logging for every provider call.
// The observability middleware is prepended to the chain so it measures the
// final outcome after retries and timeouts.
func WithObserver(observer observability.Provider) Option {
	return func(c *Client) {
		c.observer = observer
	}
}

// WithGenerationConfig sets the completion token limit and temperature sent
// with every request. Zero values leave the provider defaults.
func WithGenerationConfig(maxTokens int, temperature float32) Option {
	return func(c *Client) {
		c.maxTokens = maxTokens
		c.temperature = temperature
	}
}

// New creates a Client. A nil provider is accepted: every Invoke then returns
// a stub completion, which keeps offline runs working end to end.
func New(provider ai.Provider, opts ...Option) (*Client, error) {
	c := &Client{provider: provider}
	for _, opt := range opts {
		opt(c)
	}

	for i, middleware := range c.middlewares {
		if middleware == nil {
			return nil, fmt.Errorf("middleware[%d] is nil", i)
		}
	}

	chain := c.middlewares
	if c.observer != nil {
		chain = append([]Middleware{NewObservabilityMiddleware(c.observer, providerName(provider))}, chain...)
	}
	if provider != nil {
		c.send = buildSendChain(provider, chain)
	}

	return c, nil
}

// PromptText is the text the input token estimate is computed from.
func PromptText(system, user string) string {
	return "[SYSTEM]\n" + system + "\n[USER]\n" + user
}

// Invoke sends one system+user exchange to model. It never fails: a missing
// provider or a provider error yields a stub completion whose text starts
// with StubPrefix.
func (c *Client) Invoke(ctx context.Context, model, system, user string) Completion {
	prompt := PromptText(system, user)

	if c == nil || c.send == nil {
		return c.stub(ctx, model, prompt, "no provider configured")
	}

	request := ai.ChatRequest{
		Model:        model,
		SystemPrompt: system,
		Messages:     []ai.Message{{Role: ai.RoleUser, Content: user}},
	}
	if c.maxTokens > 0 || c.temperature > 0 {
		request.GenerationConfig = &ai.GenerationConfig{
			MaxTokens:   c.maxTokens,
			Temperature: c.temperature,
		}
	}

	response, err := c.send(ctx, request)
	if err != nil {
		return c.stub(ctx, model, prompt, err.Error())
	}
	if response == nil {
		return c.stub(ctx, model, prompt, "empty response")
	}

	completion := Completion{
		Text:         response.Content,
		InputTokens:  utils.EstimateTokens(prompt),
		OutputTokens: utils.EstimateTokens(response.Content),
	}
	if usage := response.Usage; usage != nil {
		if usage.PromptTokens > 0 {
			completion.InputTokens = usage.PromptTokens
		}
		if usage.CompletionTokens > 0 {
			completion.OutputTokens = usage.CompletionTokens
		}
	}

	return completion
}

func (c *Client) stub(ctx context.Context, model, prompt, reason string) Completion {
	text := fmt.Sprintf("%s (%s)", StubPrefix, reason)

	if c != nil && c.observer != nil {
		c.observer.Warn(ctx, "llm call replaced by stub",
			observability.String(observability.AttrLLMModel, model),
			observability.String("reason", reason),
		)
		c.observer.Counter(observability.MetricLLMStubCount).Add(ctx, 1,
			observability.String(observability.AttrLLMModel, model),
		)
	}

	return Completion{
		Text:         text,
		InputTokens:  utils.EstimateTokens(prompt),
		OutputTokens: utils.EstimateTokens(text),
		Stub:         true,
	}
}

func providerName(provider ai.Provider) string {
	if provider == nil {
		return ""
	}
	return provider.Name()
}
