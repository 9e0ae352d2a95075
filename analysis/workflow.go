package analysis

import (
	"context"
	"fmt"
	"maps"

	"github.com/google/uuid"

	"github.com/leofalp/finagent/core/overview"
	"github.com/leofalp/finagent/patterns/graph"
)

// minSectionSteps is the step budget of the sections subgraph for small
// retry bounds.
const minSectionSteps = 64

// Workflow runs the financial report analysis. It is safe for concurrent
// use; every Run gets its own session, graph and, unless Deps.Ledger is
// set, its own ledger.
type Workflow struct {
	deps   Deps
	schema *graph.Schema
}

// NewWorkflow validates deps and the graph wiring.
func NewWorkflow(deps Deps) (*Workflow, error) {
	deps, err := deps.withDefaults()
	if err != nil {
		return nil, err
	}

	schema, err := NewSchema()
	if err != nil {
		return nil, fmt.Errorf("build workflow schema: %w", err)
	}

	workflow := &Workflow{deps: deps, schema: schema}
	if _, err := workflow.compile(newSession(deps, "")); err != nil {
		return nil, err
	}
	return workflow, nil
}

// Run executes one analysis. initialContext seeds the context field; its
// run_id key, when set, is used as the run id. A node error, an unknown
// routing outcome or a canceled ctx aborts the run; unreliable model output
// never does.
func (workflow *Workflow) Run(ctx context.Context, initialContext map[string]any) (*overview.Overview, error) {
	runID, _ := initialContext[ContextRunID].(string)
	if runID == "" {
		runID = uuid.NewString()
	}

	session := newSession(workflow.deps, runID)
	parent, err := workflow.compile(session)
	if err != nil {
		return nil, err
	}

	seed := maps.Clone(initialContext)
	if seed == nil {
		seed = make(map[string]any)
	}
	seed[ContextRunID] = runID

	initial, err := workflow.schema.NewState(map[string]any{FieldContext: seed})
	if err != nil {
		return nil, fmt.Errorf("initial state: %w", err)
	}

	report := &overview.Overview{
		RunID:   runID,
		Model:   workflow.deps.Model,
		Source:  workflow.sourceLocation(),
		Pricing: session.ledger.Pricing(),
	}

	report.StartExecution()
	result, err := parent.Execute(ctx, initial)
	report.EndExecution()
	if err != nil {
		return nil, fmt.Errorf("workflow run %s: %w", runID, err)
	}

	session.fill(report, result)
	return report, nil
}

func (workflow *Workflow) sourceLocation() string {
	if workflow.deps.Source == nil {
		return ""
	}
	return workflow.deps.Source.Location()
}

// compile wires the graphs of one run around session.
func (workflow *Workflow) compile(session *session) (*graph.Graph, error) {
	sections, err := workflow.sectionsGraph(session)
	if err != nil {
		return nil, fmt.Errorf("build sections graph: %w", err)
	}

	parent, err := graph.NewBuilder(workflow.schema, session.graphOptions("finagent")...).
		AddNode(NodeIngest, graph.NodeFunc(session.ingest)).
		AddNode(NodePlanner, graph.NodeFunc(session.planner)).
		AddSubgraph(NodeSections, sections).
		AddNode(NodeGlobalChecker, graph.NodeFunc(session.globalChecker)).
		AddNode(NodeAggregator, graph.NodeFunc(session.aggregator)).
		AddEdge(graph.Start, NodeIngest).
		AddEdge(NodeIngest, NodePlanner).
		AddEdge(NodePlanner, NodeSections).
		AddEdge(NodeSections, NodeGlobalChecker).
		AddEdge(NodeGlobalChecker, NodeAggregator).
		AddEdge(NodeAggregator, graph.End).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build workflow graph: %w", err)
	}
	return parent, nil
}

// sectionsGraph fans out one generate/check loop per statement and joins
// them at the barrier. Every section settles after at most MaxRetries
// generate/check rounds, which bounds the steps of the subgraph.
func (workflow *Workflow) sectionsGraph(session *session) (*graph.Graph, error) {
	maxRetries := workflow.deps.MaxRetries
	options := append(session.graphOptions(NodeSections), graph.WithMaxSteps(max(minSectionSteps, 2*maxRetries+4)))

	builder := graph.NewBuilder(workflow.schema, options...)
	for _, statement := range statementTable {
		generatorNode, checkerNode := statement.GeneratorNode(), statement.CheckerNode()
		builder.
			AddNode(generatorNode, session.generator(statement)).
			AddNode(checkerNode, session.checker(statement)).
			AddConditionalEdges(graph.Start, plannedRouter(statement.Type), map[string]string{
				OutcomeRun:  generatorNode,
				OutcomeSkip: NodeJoin,
			}).
			AddEdge(generatorNode, checkerNode).
			AddConditionalEdges(checkerNode, sectionRouter(statement.Type, maxRetries), map[string]string{
				OutcomeRetry: generatorNode,
				OutcomeDone:  NodeJoin,
			})
	}

	return builder.
		AddNode(NodeJoin, graph.NodeFunc(joinBarrier)).
		AddConditionalEdges(NodeJoin, joinRouter, map[string]string{
			OutcomeWait: NodeJoin,
			OutcomeGo:   graph.End,
		}).
		Build()
}
