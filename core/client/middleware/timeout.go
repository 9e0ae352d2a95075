package middleware

import (
	"context"
	"time"

	"github.com/leofalp/finagent/core/client"
	"github.com/leofalp/finagent/providers/ai"
)

// NewTimeoutMiddleware creates a Middleware that enforces a per-request
// deadline. Placed inside the retry middleware it bounds each attempt;
// placed outside it bounds the whole call including retries.
//
// A shorter deadline already on the caller's context wins.
func NewTimeoutMiddleware(timeout time.Duration) client.Middleware {
	return func(next client.SendFunc) client.SendFunc {
		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			return next(ctx, request)
		}
	}
}
