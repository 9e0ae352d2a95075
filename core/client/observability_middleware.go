package client

import (
	"context"
	"time"

	"github.com/leofalp/finagent/internal/utils"
	"github.com/leofalp/finagent/providers/ai"
	"github.com/leofalp/finagent/providers/observability"
)

// NewObservabilityMiddleware creates a Middleware that records a span, request
// metrics and log events for every LLM request.
//
// The span and the observer are injected into the context before calling
// next, so providers can retrieve them via [observability.SpanFromContext]
// and [observability.ObserverFromContext].
//
// [New] prepends it automatically when [WithObserver] is set, making it the
// outermost wrapper.
func NewObservabilityMiddleware(observer observability.Provider, provider string) Middleware {
	return func(next SendFunc) SendFunc {
		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
			ctx, span := observer.StartSpan(ctx, observability.SpanLLMInvoke,
				observability.String(observability.AttrLLMModel, request.Model),
				observability.String(observability.AttrLLMProvider, provider),
			)
			ctx = observability.ContextWithSpan(ctx, span)
			ctx = observability.ContextWithObserver(ctx, observer)

			observer.Debug(ctx, "llm send",
				observability.String(observability.AttrLLMModel, request.Model),
				observability.Int("system_prompt_chars", len(request.SystemPrompt)),
			)

			timer := utils.NewTimer()
			response, err := next(ctx, request)
			elapsed := timer.Stop()

			if err != nil {
				span.RecordError(err)
				span.SetStatus(observability.StatusError, "llm send failed")
				span.End()

				observer.Error(ctx, "llm send failed",
					observability.Error(err),
					observability.Duration(observability.AttrDuration, elapsed),
					observability.String(observability.AttrLLMModel, request.Model),
				)

				observer.Counter(observability.MetricLLMRequestCount).Add(ctx, 1,
					observability.String(observability.AttrStatus, "error"),
					observability.String(observability.AttrLLMModel, request.Model),
				)

				return nil, err
			}

			recordObsSuccess(ctx, span, observer, response, elapsed, request.Model)

			return response, nil
		}
	}
}

// recordObsSuccess writes the success-path data: duration histogram, request
// and token counters, span attributes and an INFO log, then ends the span.
func recordObsSuccess(
	ctx context.Context,
	span observability.Span,
	observer observability.Provider,
	response *ai.ChatResponse,
	elapsed time.Duration,
	model string,
) {
	observer.Histogram(observability.MetricLLMRequestDuration).Record(ctx, elapsed.Seconds(),
		observability.String(observability.AttrLLMModel, model),
	)

	observer.Counter(observability.MetricLLMRequestCount).Add(ctx, 1,
		observability.String(observability.AttrStatus, "success"),
		observability.String(observability.AttrLLMModel, model),
	)

	var logAttrs []observability.Attribute
	if response != nil {
		logAttrs = append(logAttrs,
			observability.String(observability.AttrLLMModel, model),
			observability.String(observability.AttrLLMFinishReason, response.FinishReason),
			observability.Duration(observability.AttrDuration, elapsed),
		)

		if usage := response.Usage; usage != nil {
			observer.Counter(observability.MetricLLMTokensPrompt).Add(ctx, int64(usage.PromptTokens),
				observability.String(observability.AttrLLMModel, model),
			)
			observer.Counter(observability.MetricLLMTokensCompletion).Add(ctx, int64(usage.CompletionTokens),
				observability.String(observability.AttrLLMModel, model),
			)

			span.SetAttributes(
				observability.Int(observability.AttrLLMTokensPrompt, usage.PromptTokens),
				observability.Int(observability.AttrLLMTokensCompletion, usage.CompletionTokens),
			)

			logAttrs = append(logAttrs,
				observability.Int(observability.AttrLLMTokensPrompt, usage.PromptTokens),
				observability.Int(observability.AttrLLMTokensCompletion, usage.CompletionTokens),
			)
		}

		if response.Content != "" {
			logAttrs = append(logAttrs,
				observability.String("response", utils.TruncateString(response.Content, 100)),
			)
		}
	}

	observer.Info(ctx, "llm send completed", logAttrs...)

	span.SetStatus(observability.StatusOK, "success")
	span.End()
}
