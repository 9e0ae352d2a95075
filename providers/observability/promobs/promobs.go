// Package promobs wraps an observability.Provider so that its counters and
// histograms are recorded in a Prometheus registry. Tracing and logging are
// delegated to the wrapped provider.
//
// Attributes passed to Add and Record are not turned into labels: every
// instrument is a single unlabelled series named after the metric with dots
// replaced by underscores. Counters get the conventional _total suffix.
package promobs

import (
	"context"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/leofalp/finagent/providers/observability"
)

// Observer is an observability.Provider whose metrics live in a
// prometheus.Registry.
type Observer struct {
	observability.Tracer
	observability.Logger

	registry *prometheus.Registry

	mu         sync.Mutex
	counters   map[string]*counter
	histograms map[string]*histogram
}

var _ observability.Provider = (*Observer)(nil)

// New wraps base. Spans and logs go to base; metrics go to a fresh registry.
func New(base observability.Provider) *Observer {
	return &Observer{
		Tracer:     base,
		Logger:     base,
		registry:   prometheus.NewRegistry(),
		counters:   make(map[string]*counter),
		histograms: make(map[string]*histogram),
	}
}

// Registry exposes the underlying registry, e.g. for an HTTP handler.
func (o *Observer) Registry() *prometheus.Registry {
	return o.registry
}

// WriteTextfile writes every collected metric to path in the text
// exposition format, suitable for the node_exporter textfile collector.
func (o *Observer) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, o.registry)
}

func (o *Observer) Counter(name string) observability.Counter {
	o.mu.Lock()
	defer o.mu.Unlock()

	if existing, ok := o.counters[name]; ok {
		return existing
	}
	created := &counter{inner: prometheus.NewCounter(prometheus.CounterOpts{
		Name: metricName(name) + "_total",
		Help: "finagent counter " + name,
	})}
	o.registry.MustRegister(created.inner)
	o.counters[name] = created
	return created
}

func (o *Observer) Histogram(name string) observability.Histogram {
	o.mu.Lock()
	defer o.mu.Unlock()

	if existing, ok := o.histograms[name]; ok {
		return existing
	}
	created := &histogram{inner: prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    metricName(name),
		Help:    "finagent histogram " + name,
		Buckets: prometheus.DefBuckets,
	})}
	o.registry.MustRegister(created.inner)
	o.histograms[name] = created
	return created
}

type counter struct {
	inner prometheus.Counter
}

// Add ignores negative deltas, which Prometheus counters reject.
func (c *counter) Add(_ context.Context, value int64, _ ...observability.Attribute) {
	if value < 0 {
		return
	}
	c.inner.Add(float64(value))
}

type histogram struct {
	inner prometheus.Histogram
}

func (h *histogram) Record(_ context.Context, value float64, _ ...observability.Attribute) {
	h.inner.Observe(value)
}

var nameReplacer = strings.NewReplacer(".", "_", "-", "_", "/", "_", " ", "_")

func metricName(name string) string {
	return nameReplacer.Replace(name)
}
