package cost

import (
	"slices"
	"sync"
	"time"
)

// PreviewLength is the maximum number of characters kept from a prompt or a
// response in a ledger entry.
const PreviewLength = 200

// Call describes one model invocation to be recorded.
type Call struct {
	// RunID tags the call with the run that made it, for ledgers shared by
	// several runs.
	RunID        string
	Node         string
	Role         string
	Model        string
	InputTokens  int
	OutputTokens int
	Prompt       string
	Response     string

	// Stub is true when the gateway answered with placeholder text.
	Stub bool
}

// Entry is one immutable line of the ledger.
type Entry struct {
	RunID           string    `json:"run_id,omitempty"`
	Node            string    `json:"node"`
	Role            string    `json:"role"`
	Model           string    `json:"model,omitempty"`
	InputTokens     int       `json:"input_tokens"`
	OutputTokens    int       `json:"output_tokens"`
	InputCost       float64   `json:"input_cost"`
	OutputCost      float64   `json:"output_cost"`
	TotalCost       float64   `json:"total_cost"`
	PromptPreview   string    `json:"prompt_preview"`
	ResponsePreview string    `json:"output_preview"`
	Stub            bool      `json:"stub,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// Summary aggregates the ledger. EstimatedCost is computed from the token
// totals, not by summing per-entry costs.
type Summary struct {
	Calls         int     `json:"calls"`
	InputTokens   int     `json:"input_tokens"`
	OutputTokens  int     `json:"output_tokens"`
	EstimatedCost float64 `json:"estimated_cost"`
}

// Ledger is an append-only record of model calls. It is safe for concurrent
// use by parallel branches; entries keep the order in which Record was
// called.
type Ledger struct {
	pricing Pricing
	now     func() time.Time

	mu      sync.Mutex
	entries []Entry
}

// NewLedger creates an empty ledger priced with pricing.
func NewLedger(pricing Pricing) *Ledger {
	return &Ledger{
		pricing: pricing,
		now:     time.Now,
	}
}

// Pricing returns the rates the ledger applies.
func (ledger *Ledger) Pricing() Pricing {
	return ledger.pricing
}

// Record prices call, appends it and returns the stored entry.
func (ledger *Ledger) Record(call Call) Entry {
	inputTokens := max(call.InputTokens, 0)
	outputTokens := max(call.OutputTokens, 0)

	entry := Entry{
		RunID:           call.RunID,
		Node:            call.Node,
		Role:            call.Role,
		Model:           call.Model,
		InputTokens:     inputTokens,
		OutputTokens:    outputTokens,
		InputCost:       ledger.pricing.InputCost(inputTokens),
		OutputCost:      ledger.pricing.OutputCost(outputTokens),
		TotalCost:       ledger.pricing.Estimate(inputTokens, outputTokens),
		PromptPreview:   Preview(call.Prompt),
		ResponsePreview: Preview(call.Response),
		Stub:            call.Stub,
		Timestamp:       ledger.now(),
	}

	ledger.mu.Lock()
	ledger.entries = append(ledger.entries, entry)
	ledger.mu.Unlock()

	return entry
}

// Entries returns a copy of all entries in recording order.
func (ledger *Ledger) Entries() []Entry {
	ledger.mu.Lock()
	defer ledger.mu.Unlock()
	return slices.Clone(ledger.entries)
}

// Len returns the number of recorded calls.
func (ledger *Ledger) Len() int {
	ledger.mu.Lock()
	defer ledger.mu.Unlock()
	return len(ledger.entries)
}

// RunEntries returns a copy of the entries recorded for runID, in recording
// order.
func (ledger *Ledger) RunEntries(runID string) []Entry {
	ledger.mu.Lock()
	defer ledger.mu.Unlock()

	var entries []Entry
	for _, entry := range ledger.entries {
		if entry.RunID == runID {
			entries = append(entries, entry)
		}
	}
	return entries
}

// Summarize totals the ledger.
func (ledger *Ledger) Summarize() Summary {
	ledger.mu.Lock()
	defer ledger.mu.Unlock()
	return Summarize(ledger.pricing, ledger.entries)
}

// Summarize totals entries priced with pricing.
func Summarize(pricing Pricing, entries []Entry) Summary {
	summary := Summary{Calls: len(entries)}
	for _, entry := range entries {
		summary.InputTokens += entry.InputTokens
		summary.OutputTokens += entry.OutputTokens
	}
	summary.EstimatedCost = pricing.Estimate(summary.InputTokens, summary.OutputTokens)
	return summary
}

// Preview truncates text to PreviewLength characters.
func Preview(text string) string {
	runes := []rune(text)
	if len(runes) <= PreviewLength {
		return text
	}
	return string(runes[:PreviewLength])
}
