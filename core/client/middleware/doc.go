// Package middleware provides built-in middleware for the finagent LLM
// client. Each constructor returns a [client.Middleware] ready to be passed to
// [client.WithMiddleware].
//
//   - [NewRetryMiddleware]: retries transient failures (HTTP 429 / 5xx,
//     per-attempt deadlines) with exponential backoff and jitter.
//   - [NewTimeoutMiddleware]: adds a per-request deadline via context.WithTimeout.
//   - [NewLoggingMiddleware]: emits slog entries before and after every call.
//
// Middlewares execute outermost-first:
//
//	c, err := client.New(provider,
//	    client.WithMiddleware(
//	        middleware.NewRetryMiddleware(middleware.RetryConfig{MaxRetries: 3}),
//	        middleware.NewTimeoutMiddleware(60*time.Second),
//	        middleware.NewLoggingMiddleware(logger, middleware.LogLevelStandard),
//	    ),
//	)
//
// With this order a request travels Retry → Timeout → Logging → Provider, so
// the timeout bounds each attempt.
package middleware
