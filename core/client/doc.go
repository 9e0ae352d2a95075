// Package client is the LLM gateway of finagent. A [Client] wraps an
// [ai.Provider] in a middleware chain (retry, timeout, logging,
// observability) and exposes a single call, [Client.Invoke], that never
// fails: when the provider is missing or errors the caller receives a stub
// completion and the run keeps going.
//
//	c, err := client.New(openai.NewOpenAIProvider(),
//	    client.WithObserver(observer),
//	    client.WithMiddleware(
//	        middleware.NewTimeoutMiddleware(60*time.Second),
//	        middleware.NewRetryMiddleware(middleware.RetryConfig{MaxRetries: 3}),
//	    ),
//	)
//	completion := c.Invoke(ctx, "gpt-5-mini", systemPrompt, userPrompt)
package client
