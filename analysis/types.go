package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/leofalp/finagent/providers/document"
)

// ErrUnknownStatement is returned by ParseStatementType for names outside the
// fixed statement set.
var ErrUnknownStatement = errors.New("analysis: unknown statement type")

// StatementType names one financial statement section.
type StatementType string

const (
	BalanceSheet    StatementType = "balance_sheet"
	IncomeStatement StatementType = "income_statement"
	CashFlows       StatementType = "cash_flows"
)

// AllStatements returns every statement type in report order.
func AllStatements() []StatementType {
	return []StatementType{BalanceSheet, IncomeStatement, CashFlows}
}

// ParseStatementType accepts the canonical names, ignoring case and
// surrounding spaces.
func ParseStatementType(name string) (StatementType, error) {
	candidate := StatementType(strings.ToLower(strings.TrimSpace(name)))
	if !candidate.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatement, name)
	}
	return candidate, nil
}

// Valid reports whether statementType is one of AllStatements.
func (statementType StatementType) Valid() bool {
	switch statementType {
	case BalanceSheet, IncomeStatement, CashFlows:
		return true
	}
	return false
}

// FieldKey is the state field holding the section of this statement.
func (statementType StatementType) FieldKey() string {
	return sectionFieldPrefix + string(statementType)
}

// Phrase is the statement name as words, e.g. "cash flows".
func (statementType StatementType) Phrase() string {
	return strings.ReplaceAll(string(statementType), "_", " ")
}

// Status is the lifecycle stage of a section.
type Status string

const (
	// StatusPending is a planned section that has not passed its check yet.
	StatusPending Status = "pending"
	// StatusPassed is a section accepted by its checker.
	StatusPassed Status = "passed"
	// StatusOverridden is a section forced to pass after MaxRetries failed
	// checks.
	StatusOverridden Status = "overridden"
	// StatusSkipped is a section the planner did not schedule.
	StatusSkipped Status = "skipped"
)

// Feedback is one actionable remark from a section checker.
type Feedback struct {
	Issue      string `json:"issue"`
	RuleID     string `json:"rule_id"`
	Suggestion string `json:"suggestion"`
}

// UnmarshalJSON accepts a bare string as the issue, and numbers or booleans
// wherever a string field is expected.
func (feedback *Feedback) UnmarshalJSON(data []byte) error {
	var issue string
	if err := json.Unmarshal(data, &issue); err == nil {
		*feedback = Feedback{Issue: issue}
		return nil
	}

	var fields struct {
		Issue      scalarText `json:"issue"`
		RuleID     scalarText `json:"rule_id"`
		Suggestion scalarText `json:"suggestion"`
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*feedback = Feedback{
		Issue:      string(fields.Issue),
		RuleID:     string(fields.RuleID),
		Suggestion: string(fields.Suggestion),
	}
	return nil
}

// scalarText decodes any JSON scalar into its text form. null leaves it
// empty.
type scalarText string

func (text *scalarText) UnmarshalJSON(data []byte) error {
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	switch typed := value.(type) {
	case nil:
		*text = ""
	case string:
		*text = scalarText(typed)
	case float64:
		*text = scalarText(strconv.FormatFloat(typed, 'f', -1, 64))
	case bool:
		*text = scalarText(strconv.FormatBool(typed))
	default:
		return fmt.Errorf("analysis: expected a scalar, got %s", data)
	}
	return nil
}

// SectionRecord is the state of one statement section. Only the section's
// own generator and checker write it; every write bumps Version so the
// highest version wins when branches merge.
type SectionRecord struct {
	Draft      string
	Version    int
	RetryCount int
	Passed     bool
	Status     Status
	Feedback   []Feedback
	Citations  []document.Excerpt
}

// StateVersion implements graph.Versioned.
func (record SectionRecord) StateVersion() int {
	return record.Version
}

// Settled reports whether the section loop is over: the section passed or
// exhausted its retries.
func (record SectionRecord) Settled(maxRetries int) bool {
	return record.Passed || record.RetryCount >= maxRetries
}

// Suggestion is one cross-section action item from the global review.
type Suggestion struct {
	Area   string `json:"area"`
	Action string `json:"action"`
}

// GlobalFindings is the outcome of the global consistency review.
type GlobalFindings struct {
	// Raw is the unparsed model output.
	Raw         string
	Suggestions []Suggestion
	// FallbackUsed is true when Raw could not be parsed and the default
	// suggestion was substituted.
	FallbackUsed bool
}

// fallbackSuggestion replaces an unparseable global review.
var fallbackSuggestion = Suggestion{
	Area:   "normalization",
	Action: "ensure units and terminology are consistent",
}

// Ledger roles.
const (
	RolePlanner        = "planner"
	RoleWorker         = "worker"
	RoleCitationWorker = "citation_worker"
	RoleLocalChecker   = "local_checker"
	RoleGlobalChecker  = "global_checker"
	RoleSynthesizer    = "synthesizer"
)

// Router outcomes.
const (
	OutcomeRun   = "run"
	OutcomeSkip  = "skip"
	OutcomeRetry = "retry"
	OutcomeDone  = "done"
	OutcomeWait  = "wait"
	OutcomeGo    = "go"
)

// verdict is the structured output expected from a section checker. Both
// fields are kept raw so a malformed feedback item cannot hide the result.
type verdict struct {
	Passed   json.RawMessage `json:"passed"`
	Feedback json.RawMessage `json:"feedback"`
}

// passed reports the checker's result. A JSON bool or a boolean string is
// accepted; anything else, including an absent key, is a failure.
func (reply verdict) passed() bool {
	var flag bool
	if json.Unmarshal(reply.Passed, &flag) == nil {
		return flag
	}
	var text string
	if json.Unmarshal(reply.Passed, &text) == nil {
		flag, _ = strconv.ParseBool(strings.TrimSpace(text))
	}
	return flag
}

// feedback decodes the feedback items one by one, dropping those that are
// empty or unreadable. It returns nil when the key is absent or null. A
// single item given without the surrounding array is accepted.
func (reply verdict) feedback() []Feedback {
	if len(reply.Feedback) == 0 || string(reply.Feedback) == "null" {
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(reply.Feedback, &items); err != nil {
		items = []json.RawMessage{reply.Feedback}
	}

	feedback := make([]Feedback, 0, len(items))
	for _, item := range items {
		var entry Feedback
		if err := json.Unmarshal(item, &entry); err != nil || entry == (Feedback{}) {
			continue
		}
		feedback = append(feedback, entry)
	}
	return feedback
}

type plan struct {
	Tasks []string `json:"tasks"`
}

type review struct {
	Suggestions []Suggestion `json:"suggestions"`
}
