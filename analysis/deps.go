package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/leofalp/finagent/core/client"
	"github.com/leofalp/finagent/core/cost"
	"github.com/leofalp/finagent/patterns/graph"
	"github.com/leofalp/finagent/providers/document"
	"github.com/leofalp/finagent/providers/observability"
)

const (
	DefaultModel           = "gpt-5-mini"
	DefaultMaxRetries      = 2
	DefaultMaxContextChars = 4000
)

// ErrInvalidDeps is returned by NewWorkflow for out-of-range settings.
var ErrInvalidDeps = errors.New("analysis: invalid workflow dependencies")

// Gateway is the language model collaborator. Invoke must not fail; errors
// are reported as stub completions. *client.Client implements it.
type Gateway interface {
	Invoke(ctx context.Context, model, system, user string) client.Completion
}

var _ Gateway = (*client.Client)(nil)

// Deps carries every collaborator of the workflow. The caller owns their
// lifecycle; the workflow keeps no package-level state.
type Deps struct {
	// Gateway answers model calls. Nil uses a client without provider, so
	// every call returns a stub completion.
	Gateway Gateway

	// Source provides the document text. Nil reads the document_text key of
	// the initial context instead.
	Source document.Source

	// Retriever supplies citation excerpts to the generators. When nil and
	// Retrieval is set, a document.KeywordIndex is built from the ingested
	// text on every run.
	Retriever document.Retriever
	Retrieval bool

	// Ledger receives one entry per model call, tagged with the run id. A
	// ledger shared by several runs keeps all of them, while each report
	// lists and sums only its own run's entries. Runs reusing a run id share
	// their entries. Nil creates a fresh ledger priced with
	// cost.DefaultPricing for every run.
	Ledger *cost.Ledger

	// Observer receives graph spans, node logs and workflow metrics.
	Observer observability.Provider

	Model string

	// MaxRetries bounds the failed checks per section. Zero means
	// DefaultMaxRetries.
	MaxRetries int

	// TopK bounds the excerpts retrieved per generator call. Zero means
	// document.DefaultTopK.
	TopK int

	// MaxContextChars bounds the document text placed in a generator prompt.
	// Zero means DefaultMaxContextChars.
	MaxContextChars int

	// MaxConcurrency bounds the nodes running at once in one step. Zero is
	// unlimited.
	MaxConcurrency int

	// OnEvent receives the events of the workflow graph and the sections
	// subgraph.
	OnEvent func(graph.Event)
}

// withDefaults validates deps and fills in the zero values.
func (deps Deps) withDefaults() (Deps, error) {
	var invalid []error
	if deps.MaxRetries < 0 {
		invalid = append(invalid, fmt.Errorf("max retries must not be negative, got %d", deps.MaxRetries))
	}
	if deps.TopK < 0 {
		invalid = append(invalid, fmt.Errorf("top k must not be negative, got %d", deps.TopK))
	}
	if deps.MaxContextChars < 0 {
		invalid = append(invalid, fmt.Errorf("max context chars must not be negative, got %d", deps.MaxContextChars))
	}
	if deps.MaxConcurrency < 0 {
		invalid = append(invalid, fmt.Errorf("max concurrency must not be negative, got %d", deps.MaxConcurrency))
	}
	if len(invalid) > 0 {
		return Deps{}, fmt.Errorf("%w: %w", ErrInvalidDeps, errors.Join(invalid...))
	}

	if deps.Gateway == nil {
		gateway, err := client.New(nil)
		if err != nil {
			return Deps{}, err
		}
		deps.Gateway = gateway
	}
	if deps.Model == "" {
		deps.Model = DefaultModel
	}
	if deps.MaxRetries == 0 {
		deps.MaxRetries = DefaultMaxRetries
	}
	if deps.TopK == 0 {
		deps.TopK = document.DefaultTopK
	}
	if deps.MaxContextChars == 0 {
		deps.MaxContextChars = DefaultMaxContextChars
	}
	return deps, nil
}
