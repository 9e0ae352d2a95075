package analysis

import (
	"context"
	"slices"
	"strings"

	"github.com/leofalp/finagent/core/parse"
	"github.com/leofalp/finagent/patterns/graph"
	"github.com/leofalp/finagent/providers/document"
	"github.com/leofalp/finagent/providers/observability"
)

// Node ids of the workflow graph.
const (
	NodeIngest        = "ingest"
	NodePlanner       = "planner"
	NodeSections      = "sections"
	NodeJoin          = "join"
	NodeGlobalChecker = "global_checker"
	NodeAggregator    = "aggregator"
)

// ingest reads the document and records it in the context field. A missing
// or unreadable document degrades to document.Placeholder.
func (session *session) ingest(ctx context.Context, state graph.State) (graph.State, error) {
	location := "initial context"
	text := View(state).DocumentText()

	if source := session.deps.Source; source != nil {
		location = source.Location()
		read, err := source.Text(ctx)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return graph.State{}, ctxErr
		}
		if err != nil {
			session.warn(ctx, "document unavailable, using placeholder text",
				observability.String("source", location),
				observability.Error(err),
			)
		}
		text = read
	}

	if strings.TrimSpace(text) == "" {
		text = document.Placeholder
		session.count(ctx, observability.MetricWorkflowFallbackCount,
			observability.String(observability.AttrWorkflowNode, NodeIngest))
	}

	switch {
	case session.deps.Retriever != nil:
		session.retriever = session.deps.Retriever
	case session.deps.Retrieval:
		if index := document.NewKeywordIndex(text); index.Len() > 0 {
			session.retriever = index
		}
	}

	session.info(ctx, "document ingested",
		observability.String("source", location),
		observability.Int("chars", len(text)),
		observability.Bool(ContextRetrievalEnabled, session.retriever != nil),
	)

	return state.Set(FieldContext, map[string]any{
		ContextDocumentText:     text,
		ContextSourcePath:       location,
		ContextRetrievalEnabled: session.retriever != nil,
		ContextRunID:            session.runID,
	}), nil
}

// planner asks the model which statements to analyze. Statements left out
// are marked skipped and passed so the join barrier does not wait for them.
func (session *session) planner(ctx context.Context, state graph.State) (graph.State, error) {
	completion := session.invoke(ctx, NodePlanner, RolePlanner, plannerSystem, plannerUser)

	tasks, fallback := plannedTasks(completion.Text)
	if fallback {
		session.warn(ctx, "planner output unusable, scheduling every statement",
			observability.String(observability.AttrWorkflowNode, NodePlanner))
		session.count(ctx, observability.MetricWorkflowFallbackCount,
			observability.String(observability.AttrWorkflowNode, NodePlanner))
	}

	names := make([]string, 0, len(tasks))
	for _, statementType := range tasks {
		names = append(names, string(statementType))
	}
	session.info(ctx, "tasks planned",
		observability.StringSlice("tasks", names),
		observability.Int(observability.AttrWorkflowTaskCount, len(tasks)),
		observability.Bool(observability.AttrWorkflowFallback, fallback),
	)

	next := state.Set(FieldTasks, tasks)
	view := View(state)
	for _, statementType := range AllStatements() {
		if slices.Contains(tasks, statementType) {
			continue
		}
		record := view.Section(statementType)
		record.Passed = true
		record.Status = StatusSkipped
		record.Version++
		next = next.Set(statementType.FieldKey(), record)
	}
	return next, nil
}

// plannedTasks validates the planner output. Unknown and duplicate names are
// dropped; unparseable output or an empty result schedules every statement
// and reports the fallback.
func plannedTasks(text string) ([]StatementType, bool) {
	proposal := parse.Decode[plan](text)
	if !proposal.Ok() {
		return AllStatements(), true
	}

	var tasks []StatementType
	for _, name := range proposal.Value.Tasks {
		statementType, err := ParseStatementType(name)
		if err != nil || slices.Contains(tasks, statementType) {
			continue
		}
		tasks = append(tasks, statementType)
	}
	if len(tasks) == 0 {
		return AllStatements(), true
	}
	return tasks, false
}

// globalChecker reviews all drafts together.
func (session *session) globalChecker(ctx context.Context, state graph.State) (graph.State, error) {
	completion := session.invoke(ctx, NodeGlobalChecker, RoleGlobalChecker, globalCheckerSystem, globalReviewPrompt(View(state)))

	findings := reviewFindings(completion.Text)
	if findings.FallbackUsed {
		session.warn(ctx, "global review unparseable, using default suggestion",
			observability.String(observability.AttrWorkflowNode, NodeGlobalChecker))
		session.count(ctx, observability.MetricWorkflowFallbackCount,
			observability.String(observability.AttrWorkflowNode, NodeGlobalChecker))
	}
	session.info(ctx, "global review completed",
		observability.Int("suggestions", len(findings.Suggestions)),
		observability.Bool(observability.AttrWorkflowFallback, findings.FallbackUsed),
	)

	return state.Set(FieldGlobalFindings, findings), nil
}

// reviewFindings parses the global review. Valid JSON without suggestions
// yields none; anything unparseable yields the fallback suggestion.
func reviewFindings(text string) GlobalFindings {
	decoded := parse.Decode[review](text)
	if !decoded.Ok() {
		return GlobalFindings{
			Raw:          text,
			Suggestions:  []Suggestion{fallbackSuggestion},
			FallbackUsed: true,
		}
	}
	return GlobalFindings{Raw: text, Suggestions: decoded.Value.Suggestions}
}

// aggregator writes the final report verbatim from the model output.
func (session *session) aggregator(ctx context.Context, state graph.State) (graph.State, error) {
	completion := session.invoke(ctx, NodeAggregator, RoleSynthesizer, aggregatorSystem, aggregatorPrompt(View(state)))

	session.info(ctx, "report synthesized",
		observability.Int("chars", len(completion.Text)),
		observability.Bool(observability.AttrLLMStub, completion.Stub),
	)
	return state.Set(FieldFinalReport, completion.Text), nil
}
