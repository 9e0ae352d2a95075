// Package analysis implements the financial report workflow on top of the
// graph executor.
//
// A run reads a filing, lets a planner choose which statements to analyze,
// drafts the balance sheet, income statement and cash flow sections in
// parallel with a bounded generate/check loop each, waits at a join barrier
// until every section has passed, runs one cross-section consistency review
// and finally synthesizes an investor brief.
//
//	Start → ingest → planner → sections → global_checker → aggregator → End
//
//	sections:
//	  Start ─run─→ <type>_generator ⇄ <type>_checker ─done─→ join ⇄ join ─go─→ End
//	        └skip──────────────────────────────────────────→ join
//
// Model output that fails to parse never stops a run. Checkers pass the
// section, the planner schedules every statement and the global review falls
// back to one generic suggestion. After MaxRetries failed checks a section is
// forced to pass so the barrier always opens.
//
// Example:
//
//	gateway, _ := client.New(openai.NewOpenAIProvider())
//	workflow, err := analysis.NewWorkflow(analysis.Deps{
//	    Gateway: gateway,
//	    Source:  document.NewFileSource("10-K.txt"),
//	    Model:   "gpt-5-mini",
//	})
//	if err != nil {
//	    return err
//	}
//	report, err := workflow.Run(ctx, nil)
package analysis
