package analysis

import (
	"maps"
	"slices"

	"github.com/leofalp/finagent/patterns/graph"
)

// State fields.
const (
	FieldContext        = "context"
	FieldTasks          = "tasks"
	FieldGlobalFindings = "global_findings"
	FieldFinalReport    = "final_report"

	sectionFieldPrefix = "section."
)

// Keys of the context field written by the ingest node.
const (
	ContextDocumentText     = "document_text"
	ContextSourcePath       = "source_path"
	ContextRetrievalEnabled = "retrieval_enabled"
	ContextRunID            = "run_id"
)

// NewSchema declares the workflow state and the merge rule of each field:
//   - context: shallow map union, keys from concurrent branches are kept
//   - tasks: ordered set union
//   - section.<type>: highest version wins
//   - global_findings, final_report: single writer
func NewSchema() (*graph.Schema, error) {
	fields := []graph.Field{
		{Name: FieldContext, Reduce: graph.MapUnion[string, any]()},
		{Name: FieldTasks, Reduce: graph.OrderedUnion[StatementType]()},
	}
	for _, statementType := range AllStatements() {
		fields = append(fields, graph.Field{
			Name:    statementType.FieldKey(),
			Reduce:  graph.HighestVersion[SectionRecord](),
			Default: SectionRecord{Status: StatusPending},
		})
	}
	fields = append(fields,
		graph.Field{Name: FieldGlobalFindings, Reduce: graph.Replace(), Exclusive: true},
		graph.Field{Name: FieldFinalReport, Reduce: graph.Replace(), Exclusive: true},
	)
	return graph.NewSchema(fields...)
}

// WorkflowState is a typed read view over a graph.State of this workflow.
type WorkflowState struct {
	state graph.State
}

// View wraps state for typed reads.
func View(state graph.State) WorkflowState {
	return WorkflowState{state: state}
}

// Context returns a copy of the context field.
func (view WorkflowState) Context() map[string]any {
	return maps.Clone(graph.Value[map[string]any](view.state, FieldContext))
}

// DocumentText is the ingested document, empty before ingest ran.
func (view WorkflowState) DocumentText() string {
	text, _ := graph.Value[map[string]any](view.state, FieldContext)[ContextDocumentText].(string)
	return text
}

// RetrievalEnabled reports whether generators should retrieve citations.
func (view WorkflowState) RetrievalEnabled() bool {
	enabled, _ := graph.Value[map[string]any](view.state, FieldContext)[ContextRetrievalEnabled].(bool)
	return enabled
}

// Tasks returns the planned statements in planner order.
func (view WorkflowState) Tasks() []StatementType {
	return slices.Clone(graph.Value[[]StatementType](view.state, FieldTasks))
}

// Planned reports whether the planner scheduled statementType.
func (view WorkflowState) Planned(statementType StatementType) bool {
	return slices.Contains(graph.Value[[]StatementType](view.state, FieldTasks), statementType)
}

// Section returns the record of statementType, the zero record when unset.
func (view WorkflowState) Section(statementType StatementType) SectionRecord {
	return graph.Value[SectionRecord](view.state, statementType.FieldKey())
}

// AllPassed reports whether every section has passed. This is the join
// barrier condition.
func (view WorkflowState) AllPassed() bool {
	for _, statementType := range AllStatements() {
		if !view.Section(statementType).Passed {
			return false
		}
	}
	return true
}

// GlobalFindings returns the result of the global review.
func (view WorkflowState) GlobalFindings() GlobalFindings {
	return graph.Value[GlobalFindings](view.state, FieldGlobalFindings)
}

// FinalReport returns the synthesized report.
func (view WorkflowState) FinalReport() string {
	return graph.Value[string](view.state, FieldFinalReport)
}
