package analysis

import (
	"fmt"
	"strings"

	"github.com/leofalp/finagent/internal/utils"
	"github.com/leofalp/finagent/providers/document"
)

const plannerSystem = `You plan the analysis of a company financial report.
Split the work into statement sections, taking any supplied rules into account.
Reply with compact JSON only, with a single key: tasks.`

const plannerUser = `Context:
- The document text of the company is available (it may be partial or noisy).
- A rulebase may be supplied by the user.

Goal:
List the sections to work on, chosen from ["balance_sheet","income_statement","cash_flows"].
Example:
{"tasks": ["balance_sheet","income_statement","cash_flows"]}

Rules: (none supplied)
Propose the tasks.`

const balanceSheetSystem = `You are a balance sheet analyst. Extract and analyze the balance sheet.

Responsibilities:
- Report the key balance sheet items with exact figures
- Verify that assets equal liabilities plus equity
- Point out off-balance obligations and working capital movements
- Comment on liquidity ratios and the strength of the financial position

Output:
- Short markdown with the key tables and bullet insights
- State units once and keep them consistent (millions, billions)
- Compare periods when the document allows it

When revising, fix the issues raised in the feedback and keep the rest of the analysis intact.`

const incomeStatementSystem = `You are an income statement analyst. Analyze earnings and profitability.

Responsibilities:
- Assess revenue quality, growth and margins
- Check the gross margin logic and operating efficiency
- Relate revenue to receivables and cash conversion
- Separate one-time items from normalized earnings

Output:
- Short markdown with the key KPIs and commentary
- Break revenue down by segment when available
- Explain margin trends and profitability drivers

When revising, correct the calculations or gaps raised in the feedback and keep the narrative.`

const cashFlowsSystem = `You are a cash flow analyst. Analyze cash generation and capital allocation.

Responsibilities:
- Reconcile net income with cash flow from operations
- Report capital expenditure trends and free cash flow
- Explain non-cash adjustments and working capital effects
- Judge cash conversion and liquidity

Output:
- Short markdown with bullet points for the key insights
- Include a cash flow bridge when possible
- Keep operating and non-operating flows apart

When revising, fix the reconciliation errors or missing items raised in the feedback.`

const checkerReply = `Reply with JSON: {"passed": bool, "feedback": [{"issue": str, "rule_id": str, "suggestion": str}]}`

const balanceSheetCheckerSystem = `You review balance sheet drafts against the rules and accounting identities.
` + checkerReply + `
Keep the feedback short and actionable.`

const incomeStatementCheckerSystem = `You review income statement drafts against the rules.
` + checkerReply

const cashFlowsCheckerSystem = `You review cash flow drafts against the rules and the net income reconciliation.
` + checkerReply

const globalCheckerSystem = `You check a financial report across statements.
Verify that balance sheet, income statement and cash flows agree with each other,
that terminology and units are normalized, and flag document-wide concerns.
Reply with JSON: {"suggestions": [{"area": str, "action": str}]}`

const aggregatorSystem = `You write the final investor brief from validated sections.
Include a short executive summary, a compact KPI table, a list of risk flags
and the global suggestions. Reply in markdown only.`

const citationInstructions = `

Citations:
Every figure taken from the document must be cited as 【Page X: "exact quote"】.
Only cite the retrieved excerpts supplied with the request.`

// documentPreviewChars bounds the document text appended to citation prompts
// next to the retrieved excerpts.
const documentPreviewChars = 1000

// generatorPrompt returns the system and user prompts of a section
// generator. revising selects the revision prompt.
func generatorPrompt(statement Statement, record SectionRecord, documentText string, excerpts []document.Excerpt, revising bool) (string, string) {
	if len(excerpts) > 0 {
		system := statement.GeneratorSystem + citationInstructions
		if revising {
			return system, citationRevisionPrompt(statement, record, excerpts)
		}
		return system, citationInitialPrompt(statement, documentText, excerpts)
	}

	if revising {
		return statement.GeneratorSystem, revisionPrompt(statement, record, documentText)
	}
	return statement.GeneratorSystem, "Document text sample: " + documentText
}

func revisionPrompt(statement Statement, record SectionRecord, documentText string) string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "Revise the %s analysis using the feedback below.\n\n", statement.Type.Phrase())
	builder.WriteString("Feedback:\n")
	builder.WriteString(feedbackLines(record.Feedback))
	builder.WriteString("\n\nCurrent draft:\n")
	builder.WriteString(record.Draft)
	builder.WriteString("\n\nDocument text sample: ")
	builder.WriteString(documentText)
	return builder.String()
}

func citationInitialPrompt(statement Statement, documentText string, excerpts []document.Excerpt) string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "Analyze the %s of the financial document.\n\n", statement.Type.Phrase())
	builder.WriteString("Requirements:\n")
	builder.WriteString("1. Cite every specific figure as 【Page X: \"exact quote\"】\n")
	builder.WriteString("2. Prefer the retrieved excerpts below for citations\n")
	builder.WriteString("3. Explain how derived metrics are calculated\n\n")
	builder.WriteString("Retrieved excerpts:\n")
	builder.WriteString(excerptBlock(excerpts))
	builder.WriteString("\n\nDocument context:\n")
	builder.WriteString(utils.TruncateString(documentText, documentPreviewChars))
	return builder.String()
}

func citationRevisionPrompt(statement Statement, record SectionRecord, excerpts []document.Excerpt) string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "Revise the %s analysis using the feedback below.\n\n", statement.Type.Phrase())
	builder.WriteString("Feedback:\n")
	builder.WriteString(feedbackLines(record.Feedback))
	builder.WriteString("\n\nRequirements:\n")
	builder.WriteString("1. Cite every specific figure as 【Page X: \"exact quote\"】\n")
	builder.WriteString("2. Support each feedback point with the retrieved excerpts\n\n")
	builder.WriteString("Retrieved excerpts:\n")
	builder.WriteString(excerptBlock(excerpts))
	builder.WriteString("\n\nCurrent draft:\n")
	builder.WriteString(record.Draft)
	return builder.String()
}

func feedbackLines(feedback []Feedback) string {
	if len(feedback) == 0 {
		return "- general improvements needed"
	}
	lines := make([]string, 0, len(feedback))
	for _, item := range feedback {
		line := "- " + item.Issue
		if item.Suggestion != "" {
			line += ": " + item.Suggestion
		}
		if item.RuleID != "" {
			line += " [" + item.RuleID + "]"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func excerptBlock(excerpts []document.Excerpt) string {
	blocks := make([]string, 0, len(excerpts))
	for index, excerpt := range excerpts {
		blocks = append(blocks, fmt.Sprintf("[%d] %s (%s):\n%s", index+1, excerpt.Citation(), excerpt.Type, excerpt.Text))
	}
	return strings.Join(blocks, "\n\n")
}

// globalReviewPrompt lists every section draft under its short label.
func globalReviewPrompt(view WorkflowState) string {
	var builder strings.Builder
	builder.WriteString("Section drafts:")
	for _, statement := range statementTable {
		fmt.Fprintf(&builder, "\n%s:%s", statement.Short, view.Section(statement.Type).Draft)
	}
	return builder.String()
}

func aggregatorPrompt(view WorkflowState) string {
	var builder strings.Builder
	builder.WriteString("Validated inputs:")
	for _, statement := range statementTable {
		draft := view.Section(statement.Type).Draft
		if draft == "" {
			draft = "<none>"
		}
		fmt.Fprintf(&builder, "\n- %s:\n%s\n", statement.Title, draft)
	}

	builder.WriteString("\n- Global suggestions:")
	suggestions := view.GlobalFindings().Suggestions
	if len(suggestions) == 0 {
		builder.WriteString(" none")
	}
	for _, suggestion := range suggestions {
		fmt.Fprintf(&builder, "\n  - %s: %s", suggestion.Area, suggestion.Action)
	}
	builder.WriteString("\n")
	return builder.String()
}
