package analysis

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/leofalp/finagent/core/client"
	"github.com/leofalp/finagent/core/cost"
	"github.com/leofalp/finagent/core/overview"
	"github.com/leofalp/finagent/patterns/graph"
	"github.com/leofalp/finagent/providers/document"
	"github.com/leofalp/finagent/providers/observability"
)

// session holds what belongs to a single run: its id, its ledger, the
// retriever built from the ingested document and node visit counts.
type session struct {
	deps   Deps
	runID  string
	ledger *cost.Ledger

	// retriever is set by the ingest node and only read by later steps.
	retriever document.Retriever

	mu     sync.Mutex
	visits map[string]int
}

func newSession(deps Deps, runID string) *session {
	ledger := deps.Ledger
	if ledger == nil {
		ledger = cost.NewLedger(cost.DefaultPricing())
	}
	return &session{
		deps:   deps,
		runID:  runID,
		ledger: ledger,
		visits: make(map[string]int),
	}
}

// graphOptions are shared by the workflow graph and the sections subgraph.
func (session *session) graphOptions(name string) []graph.Option {
	options := []graph.Option{
		graph.WithName(name),
		graph.WithEventHandler(session.onEvent),
	}
	if session.deps.Observer != nil {
		options = append(options, graph.WithObserver(session.deps.Observer))
	}
	if session.deps.MaxConcurrency > 0 {
		options = append(options, graph.WithMaxConcurrency(session.deps.MaxConcurrency))
	}
	return options
}

func (session *session) onEvent(event graph.Event) {
	if event.Type == graph.EventNodeComplete {
		session.mu.Lock()
		session.visits[event.NodeID]++
		session.mu.Unlock()
	}
	if session.deps.OnEvent != nil {
		session.deps.OnEvent(event)
	}
}

func (session *session) nodeVisits() map[string]int {
	session.mu.Lock()
	defer session.mu.Unlock()
	return maps.Clone(session.visits)
}

// invoke calls the gateway and records the call in the ledger.
func (session *session) invoke(ctx context.Context, node, role, system, user string) client.Completion {
	completion := session.deps.Gateway.Invoke(ctx, session.deps.Model, system, user)

	entry := session.ledger.Record(cost.Call{
		RunID:        session.runID,
		Node:         node,
		Role:         role,
		Model:        session.deps.Model,
		InputTokens:  completion.InputTokens,
		OutputTokens: completion.OutputTokens,
		Prompt:       client.PromptText(system, user),
		Response:     completion.Text,
		Stub:         completion.Stub,
	})

	session.debug(ctx, "model call recorded",
		observability.String(observability.AttrWorkflowNode, node),
		observability.String(observability.AttrWorkflowRole, role),
		observability.Int(observability.AttrLLMTokensPrompt, entry.InputTokens),
		observability.Int(observability.AttrLLMTokensCompletion, entry.OutputTokens),
		observability.Float64("cost", entry.TotalCost),
		observability.Bool(observability.AttrLLMStub, completion.Stub),
	)
	return completion
}

func (session *session) debug(ctx context.Context, msg string, attrs ...observability.Attribute) {
	if observer := session.deps.Observer; observer != nil {
		observer.Debug(ctx, msg, session.withRunID(attrs)...)
	}
}

func (session *session) info(ctx context.Context, msg string, attrs ...observability.Attribute) {
	if observer := session.deps.Observer; observer != nil {
		observer.Info(ctx, msg, session.withRunID(attrs)...)
	}
}

func (session *session) warn(ctx context.Context, msg string, attrs ...observability.Attribute) {
	if observer := session.deps.Observer; observer != nil {
		observer.Warn(ctx, msg, session.withRunID(attrs)...)
	}
}

func (session *session) count(ctx context.Context, metric string, attrs ...observability.Attribute) {
	if observer := session.deps.Observer; observer != nil {
		observer.Counter(metric).Add(ctx, 1, attrs...)
	}
}

func (session *session) withRunID(attrs []observability.Attribute) []observability.Attribute {
	return append(attrs, observability.String(observability.AttrWorkflowRunID, session.runID))
}

// fill copies the final state and this run's ledger entries into report.
func (session *session) fill(report *overview.Overview, result *graph.Result) {
	view := View(result.State)

	report.FinalReport = view.FinalReport()
	for _, statementType := range view.Tasks() {
		report.Tasks = append(report.Tasks, string(statementType))
	}

	for _, statement := range statementTable {
		report.Sections = append(report.Sections, sectionView(statement, view.Section(statement.Type)))
	}

	findings := view.GlobalFindings()
	report.Suggestions = make([]overview.Suggestion, 0, len(findings.Suggestions))
	for _, suggestion := range findings.Suggestions {
		report.Suggestions = append(report.Suggestions, overview.Suggestion{Area: suggestion.Area, Action: suggestion.Action})
	}
	report.FallbackUsed = findings.FallbackUsed

	report.Ledger = session.ledger.RunEntries(session.runID)
	report.Summary = cost.Summarize(session.ledger.Pricing(), report.Ledger)
	report.Steps = result.Steps
	report.NodeVisits = session.nodeVisits()
}

func sectionView(statement Statement, record SectionRecord) overview.Section {
	section := overview.Section{
		Name:       string(statement.Type),
		Title:      statement.Title,
		Status:     string(record.Status),
		Passed:     record.Passed,
		Version:    record.Version,
		RetryCount: record.RetryCount,
		Draft:      record.Draft,
	}
	for _, item := range record.Feedback {
		section.Feedback = append(section.Feedback, overview.Feedback{
			Issue:      item.Issue,
			RuleID:     item.RuleID,
			Suggestion: item.Suggestion,
		})
	}
	for _, excerpt := range record.Citations {
		if citation := excerpt.Citation(); !slices.Contains(section.Citations, citation) {
			section.Citations = append(section.Citations, citation)
		}
	}
	return section
}
