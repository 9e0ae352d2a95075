// Package overview holds the read-only result of a finagent run: final
// report, section records, global suggestions, the cost ledger and its
// summary. [Overview.WriteArtifacts] exports report.md, cost_ledger.json and
// cost_summary.json.
package overview
