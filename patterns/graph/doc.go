// Package graph implements a step-based state graph for orchestrating
// multi-node LLM workflows with parallel branches, retry loops and barriers.
//
// A graph is a set of named [Node] values joined by plain edges and
// conditional edges. Nodes receive an immutable [State] snapshot and return
// it with their writes applied; they never share mutable data. The executor
// runs every active node of a step concurrently, merges the fields they wrote
// through the reducers declared in a [Schema], then follows edges and
// [Router] outcomes to find the next active set. A run ends when no branch is
// left active.
//
// Merge rules are declared once per field:
//   - [Replace] for single-writer fields (combine with Field.Exclusive)
//   - [MapUnion] for shallow key-value unions
//   - [OrderedUnion] for first-seen-order sets
//   - [HighestVersion] for records resolved by a version counter
//
// Writing an undeclared field, returning an undeclared router outcome, a node
// error or panic, and exceeding the step limit all abort the run. Cycles are
// allowed, so retry loops and self-looping barriers are ordinary edges.
//
// A built [Graph] is itself a [Node]: register it with [Builder.AddSubgraph]
// to nest it inside a parent graph as an opaque step.
//
// The main entry points are [NewSchema], [NewBuilder], [Graph.Execute] and
// [Graph.Stream].
//
// Example:
//
//	schema, _ := graph.NewSchema(
//	    graph.Field{Name: "draft", Reduce: graph.Replace(), Exclusive: true},
//	    graph.Field{Name: "attempts", Reduce: graph.Replace(), Exclusive: true},
//	)
//
//	g, err := graph.NewBuilder(schema, graph.WithName("writer")).
//	    AddNode("write", writeNode).
//	    AddEdge(graph.Start, "write").
//	    AddConditionalEdges("write", func(ctx context.Context, state graph.State) string {
//	        if graph.Value[int](state, "attempts") < 3 {
//	            return "again"
//	        }
//	        return "stop"
//	    }, map[string]string{"again": "write", "stop": graph.End}).
//	    Build()
//
//	initial, _ := schema.NewState(nil)
//	result, err := g.Execute(ctx, initial)
package graph
