package promobs

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/leofalp/finagent/providers/observability"
	"github.com/leofalp/finagent/providers/observability/slogobs"
)

func newObserver() *Observer {
	return New(slogobs.New(slogobs.WithOutput(&bytes.Buffer{})))
}

func TestMetricName(t *testing.T) {
	tests := map[string]string{
		"finagent.graph.node.duration": "finagent_graph_node_duration",
		"finagent.llm-stub/count":      "finagent_llm_stub_count",
		"plain":                        "plain",
	}
	for in, want := range tests {
		if got := metricName(in); got != want {
			t.Errorf("metricName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCounter_AccumulatesAndIgnoresNegative(t *testing.T) {
	observer := newObserver()
	ctx := context.Background()

	c := observer.Counter(observability.MetricLLMRequestCount)
	c.Add(ctx, 2)
	c.Add(ctx, -5)
	observer.Counter(observability.MetricLLMRequestCount).Add(ctx, 1)

	inner := c.(*counter).inner
	if got := testutil.ToFloat64(inner); got != 3 {
		t.Errorf("counter = %v, want 3", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	observer := newObserver()
	ctx := context.Background()

	observer.Counter(observability.MetricWorkflowRetryCount).Add(ctx, 1)
	observer.Histogram(observability.MetricLLMRequestDuration).Record(ctx, 0.2)

	path := filepath.Join(t.TempDir(), "finagent.prom")
	if err := observer.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	text := string(data)
	for _, want := range []string{
		"finagent_workflow_retry_count_total 1",
		"finagent_llm_request_duration_count 1",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("textfile missing %q:\n%s", want, text)
		}
	}
}

func TestDelegatesLogging(t *testing.T) {
	buf := &bytes.Buffer{}
	observer := New(slogobs.New(slogobs.WithOutput(buf)))

	observer.Info(context.Background(), "run finished")
	if !strings.Contains(buf.String(), "run finished") {
		t.Errorf("log not delegated: %q", buf.String())
	}

	ctx, span := observer.StartSpan(context.Background(), "graph.run")
	if observability.SpanFromContext(ctx) != span {
		t.Error("tracer not delegated")
	}
	span.End()
}
