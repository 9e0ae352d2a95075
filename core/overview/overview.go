package overview

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/leofalp/finagent/core/cost"
)

// Artifact file names written by WriteArtifacts.
const (
	ReportFile      = "report.md"
	LedgerFile      = "cost_ledger.json"
	SummaryFile     = "cost_summary.json"
	artifactPerms   = 0o644
	artifactDirPerm = 0o755
)

// Section is the end-of-run view of one statement section.
type Section struct {
	Name       string     `json:"name"`
	Title      string     `json:"title"`
	Status     string     `json:"status"`
	Passed     bool       `json:"passed"`
	Version    int        `json:"version"`
	RetryCount int        `json:"retry_count"`
	Draft      string     `json:"draft"`
	Feedback   []Feedback `json:"feedback,omitempty"`
	Citations  []string   `json:"citations,omitempty"`
}

// Feedback is one checker remark kept on a section for audit.
type Feedback struct {
	Issue      string `json:"issue"`
	RuleID     string `json:"rule_id,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// Suggestion is one cross-section remark from the global review.
type Suggestion struct {
	Area   string `json:"area"`
	Action string `json:"action"`
}

// Overview aggregates the outcome of a single workflow run: the report, the
// per-section state, the cost ledger and execution statistics. It is built
// once after the run completes and is read-only afterwards.
type Overview struct {
	RunID       string   `json:"run_id"`
	Model       string   `json:"model"`
	Source      string   `json:"source"`
	FinalReport string   `json:"final_report"`
	Tasks       []string `json:"tasks"`

	Sections     []Section    `json:"sections"`
	Suggestions  []Suggestion `json:"suggestions"`
	FallbackUsed bool         `json:"fallback_used"`

	Pricing cost.Pricing `json:"pricing"`
	Ledger  []cost.Entry `json:"ledger"`
	Summary cost.Summary `json:"summary"`

	// Steps is the number of parent graph supersteps.
	Steps      int            `json:"steps"`
	NodeVisits map[string]int `json:"node_visits,omitempty"`

	ExecutionStartTime time.Time `json:"execution_start_time,omitempty"`
	ExecutionEndTime   time.Time `json:"execution_end_time,omitempty"`
}

// StartExecution marks the start of the run.
func (overview *Overview) StartExecution() {
	overview.ExecutionStartTime = time.Now()
}

// EndExecution marks the end of the run.
func (overview *Overview) EndExecution() {
	overview.ExecutionEndTime = time.Now()
}

// ExecutionDuration returns the total execution duration.
// Returns 0 if execution hasn't started or ended.
func (overview *Overview) ExecutionDuration() time.Duration {
	if overview.ExecutionStartTime.IsZero() || overview.ExecutionEndTime.IsZero() {
		return 0
	}
	return overview.ExecutionEndTime.Sub(overview.ExecutionStartTime)
}

// Section returns the section named name.
func (overview *Overview) Section(name string) (Section, bool) {
	for _, section := range overview.Sections {
		if section.Name == name {
			return section, true
		}
	}
	return Section{}, false
}

// StubCalls counts ledger entries answered with placeholder text.
func (overview *Overview) StubCalls() int {
	stubs := 0
	for _, entry := range overview.Ledger {
		if entry.Stub {
			stubs++
		}
	}
	return stubs
}

// TotalCost returns the estimated cost of the run.
func (overview *Overview) TotalCost() float64 {
	return overview.Summary.EstimatedCost
}

// WriteArtifacts writes the final report, the full ledger and the cost
// summary into dir, creating it if needed.
func (overview *Overview) WriteArtifacts(dir string) error {
	if err := os.MkdirAll(dir, artifactDirPerm); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, ReportFile), []byte(overview.FinalReport), artifactPerms); err != nil {
		return fmt.Errorf("write %s: %w", ReportFile, err)
	}

	ledger := overview.Ledger
	if ledger == nil {
		ledger = []cost.Entry{}
	}
	if err := writeJSON(filepath.Join(dir, LedgerFile), ledger); err != nil {
		return err
	}

	return writeJSON(filepath.Join(dir, SummaryFile), overview.Summary)
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), artifactPerms); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
