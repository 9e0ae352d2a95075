package observability

// LLM attributes.
const (
	AttrLLMProvider = "llm.provider"
	AttrLLMModel    = "llm.model"
	AttrLLMEndpoint = "llm.endpoint"
	AttrLLMStub     = "llm.stub"

	AttrLLMFinishReason = "llm.finish_reason"

	AttrLLMTokensPrompt     = "llm.tokens.prompt"     // #nosec G101 -- token refers to LLM tokens
	AttrLLMTokensCompletion = "llm.tokens.completion" // #nosec G101 -- token refers to LLM tokens
)

// Workflow attributes.
const (
	AttrWorkflowNode      = "workflow.node"
	AttrWorkflowRole      = "workflow.role"
	AttrWorkflowSection   = "workflow.section"
	AttrWorkflowVersion   = "workflow.section.version"
	AttrWorkflowRetry     = "workflow.section.retry_count"
	AttrWorkflowPassed    = "workflow.section.passed"
	AttrWorkflowStatus    = "workflow.section.status"
	AttrWorkflowFallback  = "workflow.fallback"
	AttrWorkflowRunID     = "workflow.run_id"
	AttrWorkflowTaskCount = "workflow.task_count"
)

// HTTP attributes.
const (
	AttrHTTPMethod           = "http.method"
	AttrHTTPStatusCode       = "http.status_code"
	AttrHTTPURL              = "http.url"
	AttrHTTPRequestBodySize  = "http.request.body.size"
	AttrHTTPResponseBodySize = "http.response.body.size"
)

// General attributes.
const (
	AttrError             = "error"
	AttrDuration          = "duration"
	AttrStatus            = "status"
	AttrStatusDescription = "status_description"
)

// Span names.
const (
	SpanLLMInvoke  = "llm.invoke"
	SpanLLMRequest = "llm.request"
)

// Metric names.
const (
	MetricLLMRequestCount       = "finagent.llm.request.count"
	MetricLLMRequestDuration    = "finagent.llm.request.duration"
	MetricLLMTokensPrompt       = "finagent.llm.tokens.prompt"
	MetricLLMTokensCompletion   = "finagent.llm.tokens.completion"
	MetricLLMStubCount          = "finagent.llm.stub.count"
	MetricWorkflowRetryCount    = "finagent.workflow.retry.count"
	MetricWorkflowFallbackCount = "finagent.workflow.fallback.count"
)
