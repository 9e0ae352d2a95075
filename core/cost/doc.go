// Package cost prices model calls and keeps the run's cost ledger.
//
// [Pricing] holds per-1K-token rates. A [Ledger] is shared by every node of a
// run: each model call is recorded once with its token counts, its input,
// output and total cost, and 200-character previews of prompt and response.
// [Ledger.Summarize] returns the totals written to cost_summary.json.
package cost
