package analysis

import (
	"context"
	"strings"

	"github.com/leofalp/finagent/core/parse"
	"github.com/leofalp/finagent/internal/utils"
	"github.com/leofalp/finagent/patterns/graph"
	"github.com/leofalp/finagent/providers/document"
	"github.com/leofalp/finagent/providers/observability"
)

// generator drafts the section of statement. It writes a revision when the
// last check left feedback on an existing draft, otherwise a fresh draft.
func (session *session) generator(statement Statement) graph.Node {
	return graph.NodeFunc(func(ctx context.Context, state graph.State) (graph.State, error) {
		view := View(state)
		record := view.Section(statement.Type)
		revising := len(record.Feedback) > 0 && record.Draft != ""

		role := RoleWorker
		var excerpts []document.Excerpt
		if view.RetrievalEnabled() && session.retriever != nil {
			role = RoleCitationWorker
			excerpts = session.retrieve(ctx, statement, record.Feedback)
		}

		documentText := utils.TruncateString(view.DocumentText(), session.deps.MaxContextChars)
		system, user := generatorPrompt(statement, record, documentText, excerpts, revising)
		completion := session.invoke(ctx, statement.GeneratorNode(), role, system, user)

		record.Draft = completion.Text
		record.Version++
		record.Feedback = nil
		record.Citations = excerpts

		session.info(ctx, "section drafted",
			observability.String(observability.AttrWorkflowSection, string(statement.Type)),
			observability.Int(observability.AttrWorkflowVersion, record.Version),
			observability.Int(observability.AttrWorkflowRetry, record.RetryCount),
			observability.Bool("revision", revising),
			observability.Int("citations", len(excerpts)),
		)
		return state.Set(statement.Type.FieldKey(), record), nil
	})
}

// retrieve looks up evidence for statement, steered by the checker feedback.
// Retrieval failures leave the draft without citations.
func (session *session) retrieve(ctx context.Context, statement Statement, feedback []Feedback) []document.Excerpt {
	terms := []string{statement.Type.Phrase()}
	for _, item := range feedback {
		if item.Issue != "" {
			terms = append(terms, item.Issue)
		}
		if item.Suggestion != "" {
			terms = append(terms, item.Suggestion)
		}
	}

	excerpts, err := session.retriever.Retrieve(ctx, document.Query{
		Text:          strings.Join(terms, " "),
		StatementType: string(statement.Type),
		Concepts:      statement.Concepts,
		TopK:          session.deps.TopK,
	})
	if err != nil {
		session.warn(ctx, "citation retrieval failed",
			observability.String(observability.AttrWorkflowSection, string(statement.Type)),
			observability.Error(err),
		)
		return nil
	}
	return excerpts
}

// checker validates the current draft of statement.
func (session *session) checker(statement Statement) graph.Node {
	return graph.NodeFunc(func(ctx context.Context, state graph.State) (graph.State, error) {
		record := View(state).Section(statement.Type)
		completion := session.invoke(ctx, statement.CheckerNode(), RoleLocalChecker, statement.CheckerSystem, record.Draft)

		record, parsed := applyVerdict(record, completion.Text, session.deps.MaxRetries)

		sectionAttr := observability.String(observability.AttrWorkflowSection, string(statement.Type))
		if !parsed {
			session.warn(ctx, "checker output unparseable, passing section", sectionAttr)
			session.count(ctx, observability.MetricWorkflowFallbackCount,
				observability.String(observability.AttrWorkflowNode, statement.CheckerNode()))
		}
		switch record.Status {
		case StatusOverridden:
			session.warn(ctx, "retries exhausted, section forced to pass", sectionAttr,
				observability.Int(observability.AttrWorkflowRetry, record.RetryCount))
		case StatusPending:
			session.count(ctx, observability.MetricWorkflowRetryCount, sectionAttr)
		}

		session.info(ctx, "section checked", sectionAttr,
			observability.Bool(observability.AttrWorkflowPassed, record.Passed),
			observability.String(observability.AttrWorkflowStatus, string(record.Status)),
			observability.Int(observability.AttrWorkflowRetry, record.RetryCount),
			observability.Int("feedback", len(record.Feedback)),
		)
		return state.Set(statement.Type.FieldKey(), record), nil
	})
}

// applyVerdict folds a checker reply into record and reports whether the
// reply parsed. Unparseable replies pass the section without feedback; a
// reply without a readable "passed" counts as a failure, and malformed
// feedback items never change the result. The failure that brings
// RetryCount to maxRetries forces the section to pass. Version always
// increases.
func applyVerdict(record SectionRecord, text string, maxRetries int) (SectionRecord, bool) {
	decoded := parse.Decode[verdict](text)

	passed := true
	var feedback []Feedback
	if decoded.Ok() {
		passed = decoded.Value.passed()
		feedback = decoded.Value.feedback()
	}

	record.Feedback = feedback
	record.Version++
	switch {
	case passed:
		record.Passed = true
		record.Status = StatusPassed
	case record.RetryCount+1 >= maxRetries:
		record.Passed = true
		record.Status = StatusOverridden
		record.RetryCount++
	default:
		record.Passed = false
		record.Status = StatusPending
		record.RetryCount++
	}
	return record, decoded.Ok()
}

// plannedRouter starts the pipeline of statementType when the planner
// scheduled it and sends it straight to the barrier otherwise.
func plannedRouter(statementType StatementType) graph.Router {
	return func(_ context.Context, state graph.State) string {
		if View(state).Planned(statementType) {
			return OutcomeRun
		}
		return OutcomeSkip
	}
}

// sectionRouter ends the loop of statementType once the section settled.
func sectionRouter(statementType StatementType, maxRetries int) graph.Router {
	return func(_ context.Context, state graph.State) string {
		if View(state).Section(statementType).Settled(maxRetries) {
			return OutcomeDone
		}
		return OutcomeRetry
	}
}

// joinBarrier performs no work; joinRouter loops it until every section has
// passed.
func joinBarrier(_ context.Context, state graph.State) (graph.State, error) {
	return state, nil
}

func joinRouter(_ context.Context, state graph.State) string {
	if View(state).AllPassed() {
		return OutcomeGo
	}
	return OutcomeWait
}
