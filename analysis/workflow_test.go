package analysis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/leofalp/finagent/core/client"
	"github.com/leofalp/finagent/core/cost"
	"github.com/leofalp/finagent/core/overview"
	"github.com/leofalp/finagent/patterns/graph"
	"github.com/leofalp/finagent/providers/document"
	"github.com/leofalp/finagent/providers/observability"
	"github.com/leofalp/finagent/providers/observability/slogobs"
)

const filing = `CONSOLIDATED BALANCE SHEETS

Total assets were $52,148 million at year end. Total liabilities were $30,000 million and stockholders equity reached $22,148 million.` + "\f" + `Consolidated Statements Of Operations

Revenue grew to $96,773 million. Net income was $14,997 million and gross profit improved.` + "\f" + `Statement of Cash Flows

Net cash provided by operating activities was $13,256 million. Capital expenditures were $8,898 million.`

type invocation struct {
	system string
	user   string
}

// scriptedGateway answers every call with respond and records the prompts.
type scriptedGateway struct {
	respond func(system, user string) string

	mu    sync.Mutex
	calls []invocation
}

func (gateway *scriptedGateway) Invoke(_ context.Context, _, system, user string) client.Completion {
	gateway.mu.Lock()
	gateway.calls = append(gateway.calls, invocation{system: system, user: user})
	gateway.mu.Unlock()

	return client.Completion{Text: gateway.respond(system, user), InputTokens: 100, OutputTokens: 20}
}

// callsTo returns the calls whose system prompt starts with system.
func (gateway *scriptedGateway) callsTo(system string) []invocation {
	gateway.mu.Lock()
	defer gateway.mu.Unlock()

	var matched []invocation
	for _, call := range gateway.calls {
		if strings.HasPrefix(call.system, system) {
			matched = append(matched, call)
		}
	}
	return matched
}

func mustStatement(t *testing.T, statementType StatementType) Statement {
	t.Helper()
	statement, err := LookupStatement(statementType)
	if err != nil {
		t.Fatal(err)
	}
	return statement
}

func generatorFor(system string) (Statement, bool) {
	for _, statement := range statementTable {
		if strings.HasPrefix(system, statement.GeneratorSystem) {
			return statement, true
		}
	}
	return Statement{}, false
}

func checkerFor(system string) (Statement, bool) {
	for _, statement := range statementTable {
		if system == statement.CheckerSystem {
			return statement, true
		}
	}
	return Statement{}, false
}

// responder passes every check and plans every statement. override, when it
// returns true, replaces the default answer.
func responder(override func(system, user string) (string, bool)) func(system, user string) string {
	return func(system, user string) string {
		if override != nil {
			if text, ok := override(system, user); ok {
				return text
			}
		}
		if statement, ok := generatorFor(system); ok {
			return "draft " + string(statement.Type)
		}
		if _, ok := checkerFor(system); ok {
			return `{"passed": true, "feedback": []}`
		}
		switch system {
		case plannerSystem:
			return `{"tasks": ["balance_sheet", "income_statement", "cash_flows"]}`
		case globalCheckerSystem:
			return `{"suggestions": [{"area": "units", "action": "report every figure in USD millions"}]}`
		case aggregatorSystem:
			return "# Investor brief\nAll sections validated."
		}
		return "unexpected prompt"
	}
}

func newTestWorkflow(t *testing.T, gateway Gateway, deps Deps) *Workflow {
	t.Helper()
	deps.Gateway = gateway
	if deps.Source == nil {
		deps.Source = document.StaticSource{Name: "filing.txt", Content: filing}
	}
	workflow, err := NewWorkflow(deps)
	if err != nil {
		t.Fatalf("NewWorkflow: %v", err)
	}
	return workflow
}

func TestWorkflow_AllSectionsPass(t *testing.T) {
	gateway := &scriptedGateway{respond: responder(nil)}
	workflow := newTestWorkflow(t, gateway, Deps{})

	report, err := workflow.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.FinalReport != "# Investor brief\nAll sections validated." {
		t.Errorf("final report = %q", report.FinalReport)
	}
	if want := "balance_sheet,income_statement,cash_flows"; strings.Join(report.Tasks, ",") != want {
		t.Errorf("tasks = %v", report.Tasks)
	}
	if report.RunID == "" || report.Source != "filing.txt" || report.Model != DefaultModel {
		t.Errorf("run metadata = %q %q %q", report.RunID, report.Source, report.Model)
	}

	for _, section := range report.Sections {
		if section.Status != string(StatusPassed) || !section.Passed {
			t.Errorf("%s: status %s passed %v", section.Name, section.Status, section.Passed)
		}
		if section.Version != 2 || section.RetryCount != 0 {
			t.Errorf("%s: version %d retries %d, want 2 and 0", section.Name, section.Version, section.RetryCount)
		}
		if section.Draft != "draft "+section.Name {
			t.Errorf("%s: draft %q", section.Name, section.Draft)
		}
	}

	if report.Summary.Calls != 9 {
		t.Errorf("calls = %d, want planner + 3×(generator, checker) + review + aggregator", report.Summary.Calls)
	}
	if report.Summary.InputTokens != 900 || report.Summary.OutputTokens != 180 {
		t.Errorf("tokens = %d/%d", report.Summary.InputTokens, report.Summary.OutputTokens)
	}
	if want := cost.DefaultPricing().Estimate(900, 180); report.Summary.EstimatedCost != want {
		t.Errorf("estimated cost = %v, want %v", report.Summary.EstimatedCost, want)
	}
	if first, last := report.Ledger[0], report.Ledger[len(report.Ledger)-1]; first.Node != NodePlanner || last.Node != NodeAggregator || last.Role != RoleSynthesizer {
		t.Errorf("ledger starts with %s and ends with %s/%s", first.Node, last.Node, last.Role)
	}

	if len(report.Suggestions) != 1 || report.Suggestions[0].Area != "units" || report.FallbackUsed {
		t.Errorf("suggestions = %+v fallback %v", report.Suggestions, report.FallbackUsed)
	}
	if report.Steps != 5 {
		t.Errorf("parent steps = %d, want 5", report.Steps)
	}
	for _, nodeID := range []string{NodeIngest, NodePlanner, NodeSections, "cash_flows_generator", "cash_flows_checker", NodeGlobalChecker, NodeAggregator} {
		if report.NodeVisits[nodeID] != 1 {
			t.Errorf("visits[%s] = %d, want 1", nodeID, report.NodeVisits[nodeID])
		}
	}
	if report.NodeVisits[NodeJoin] < 1 {
		t.Error("join barrier never ran")
	}

	aggregatorCalls := gateway.callsTo(aggregatorSystem)
	if len(aggregatorCalls) != 1 || !strings.Contains(aggregatorCalls[0].user, "draft income_statement") || !strings.Contains(aggregatorCalls[0].user, "units: report every figure") {
		t.Errorf("aggregator prompt = %+v", aggregatorCalls)
	}
	reviewCalls := gateway.callsTo(globalCheckerSystem)
	if len(reviewCalls) != 1 || !strings.Contains(reviewCalls[0].user, "BS:draft balance_sheet") {
		t.Errorf("global review prompt = %+v", reviewCalls)
	}
}

func TestWorkflow_RetryUntilOverride(t *testing.T) {
	balanceSheet := mustStatement(t, BalanceSheet)
	gateway := &scriptedGateway{respond: responder(func(system, _ string) (string, bool) {
		if system == balanceSheet.CheckerSystem {
			return `{"passed": false, "feedback": [{"issue": "assets do not balance", "rule_id": "BS-1", "suggestion": "recompute total assets"}]}`, true
		}
		return "", false
	})}
	workflow := newTestWorkflow(t, gateway, Deps{})

	report, err := workflow.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	section, _ := report.Section(string(BalanceSheet))
	if section.Status != string(StatusOverridden) || !section.Passed {
		t.Errorf("status %s passed %v, want overridden and passed", section.Status, section.Passed)
	}
	if section.RetryCount != DefaultMaxRetries {
		t.Errorf("retry count = %d, want %d", section.RetryCount, DefaultMaxRetries)
	}
	if section.Version != 4 {
		t.Errorf("version = %d, want 4", section.Version)
	}
	if len(section.Feedback) != 1 || section.Feedback[0].RuleID != "BS-1" {
		t.Errorf("feedback should be kept for audit, got %+v", section.Feedback)
	}

	drafts := gateway.callsTo(balanceSheet.GeneratorSystem)
	if len(drafts) != 2 {
		t.Fatalf("balance sheet drafted %d times, want 2", len(drafts))
	}
	if strings.Contains(drafts[0].user, "Revise") {
		t.Errorf("first draft should use the initial prompt: %q", drafts[0].user)
	}
	for _, want := range []string{"Revise the balance sheet", "assets do not balance: recompute total assets [BS-1]", "draft balance_sheet"} {
		if !strings.Contains(drafts[1].user, want) {
			t.Errorf("revision prompt missing %q:\n%s", want, drafts[1].user)
		}
	}

	if report.Summary.Calls != 11 {
		t.Errorf("calls = %d, want 11", report.Summary.Calls)
	}
	if report.NodeVisits["balance_sheet_checker"] != 2 || report.NodeVisits["income_statement_checker"] != 1 {
		t.Errorf("checker visits = %v", report.NodeVisits)
	}
}

func TestWorkflow_PassOnSecondAttempt(t *testing.T) {
	incomeStatement := mustStatement(t, IncomeStatement)
	var checks int
	var mu sync.Mutex
	gateway := &scriptedGateway{respond: responder(func(system, _ string) (string, bool) {
		if system != incomeStatement.CheckerSystem {
			return "", false
		}
		mu.Lock()
		defer mu.Unlock()
		checks++
		if checks == 1 {
			return `{"passed": false, "feedback": [{"issue": "margin math", "rule_id": "IS-2", "suggestion": "use net revenue"}]}`, true
		}
		return `{"passed": true, "feedback": [{"issue": "minor wording", "rule_id": "IS-9", "suggestion": ""}]}`, true
	})}
	workflow := newTestWorkflow(t, gateway, Deps{})

	report, err := workflow.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	section, _ := report.Section(string(IncomeStatement))
	if section.Status != string(StatusPassed) || section.RetryCount != 1 || section.Version != 4 {
		t.Errorf("section = %+v", section)
	}
	if len(section.Feedback) != 1 || section.Feedback[0].RuleID != "IS-9" {
		t.Errorf("pass feedback should be kept, got %+v", section.Feedback)
	}
}

func TestWorkflow_PlannerFallbacks(t *testing.T) {
	tests := []struct {
		name      string
		plan      string
		wantTasks string
		wantCalls int
	}{
		{name: "prose", plan: "I would look at everything.", wantTasks: "balance_sheet,income_statement,cash_flows", wantCalls: 9},
		{name: "only unknown tasks", plan: `{"tasks": ["segments"]}`, wantTasks: "balance_sheet,income_statement,cash_flows", wantCalls: 9},
		{name: "empty list", plan: `{"tasks": []}`, wantTasks: "balance_sheet,income_statement,cash_flows", wantCalls: 9},
		{name: "subset with noise", plan: `{"tasks": ["cash_flows", "bogus", "CASH_FLOWS"]}`, wantTasks: "cash_flows", wantCalls: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gateway := &scriptedGateway{respond: responder(func(system, _ string) (string, bool) {
				return tt.plan, system == plannerSystem
			})}
			workflow := newTestWorkflow(t, gateway, Deps{})

			report, err := workflow.Run(context.Background(), nil)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if got := strings.Join(report.Tasks, ","); got != tt.wantTasks {
				t.Errorf("tasks = %s, want %s", got, tt.wantTasks)
			}
			if report.Summary.Calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", report.Summary.Calls, tt.wantCalls)
			}
		})
	}
}

func TestWorkflow_UnplannedSectionsAreSkipped(t *testing.T) {
	gateway := &scriptedGateway{respond: responder(func(system, _ string) (string, bool) {
		return `{"tasks": ["cash_flows"]}`, system == plannerSystem
	})}
	workflow := newTestWorkflow(t, gateway, Deps{})

	report, err := workflow.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, name := range []string{string(BalanceSheet), string(IncomeStatement)} {
		section, _ := report.Section(name)
		if section.Status != string(StatusSkipped) || !section.Passed || section.Draft != "" || section.Version != 1 {
			t.Errorf("%s = %+v, want skipped", name, section)
		}
	}
	if calls := gateway.callsTo(mustStatement(t, BalanceSheet).GeneratorSystem); len(calls) != 0 {
		t.Errorf("skipped section was drafted %d times", len(calls))
	}
	if user := gateway.callsTo(aggregatorSystem)[0].user; !strings.Contains(user, "Balance Sheet:\n<none>") {
		t.Errorf("aggregator prompt should mark missing drafts:\n%s", user)
	}
}

func TestWorkflow_MalformedOutputFailsOpen(t *testing.T) {
	gateway := &scriptedGateway{respond: responder(func(system, _ string) (string, bool) {
		if _, ok := checkerFor(system); ok {
			return "Looks reasonable to me.", true
		}
		if system == globalCheckerSystem {
			return "No structured answer today.", true
		}
		return "", false
	})}
	workflow := newTestWorkflow(t, gateway, Deps{})

	report, err := workflow.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, section := range report.Sections {
		if section.Status != string(StatusPassed) || len(section.Feedback) != 0 {
			t.Errorf("%s = %+v, want passed without feedback", section.Name, section)
		}
	}
	if !report.FallbackUsed || len(report.Suggestions) != 1 || report.Suggestions[0].Area != "normalization" {
		t.Errorf("suggestions = %+v fallback %v", report.Suggestions, report.FallbackUsed)
	}
	if user := gateway.callsTo(aggregatorSystem)[0].user; !strings.Contains(user, "normalization: ensure units and terminology are consistent") {
		t.Errorf("aggregator prompt should carry the fallback suggestion:\n%s", user)
	}
}

func TestWorkflow_MissingDocumentUsesPlaceholder(t *testing.T) {
	gateway := &scriptedGateway{respond: responder(nil)}
	workflow := newTestWorkflow(t, gateway, Deps{Source: document.NewFileSource("/nonexistent/filing.txt")})

	report, err := workflow.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Source != "/nonexistent/filing.txt" {
		t.Errorf("source = %q", report.Source)
	}

	drafts := gateway.callsTo(mustStatement(t, CashFlows).GeneratorSystem)
	if len(drafts) != 1 || !strings.Contains(drafts[0].user, document.Placeholder) {
		t.Errorf("generator prompt should use the placeholder: %+v", drafts)
	}
}

func TestWorkflow_InitialContextDocument(t *testing.T) {
	var finalContext map[string]any
	gateway := &scriptedGateway{respond: responder(nil)}
	workflow, err := NewWorkflow(Deps{
		Gateway: gateway,
		OnEvent: func(event graph.Event) {
			if event.Type == graph.EventDone && event.Graph == "finagent" {
				finalContext = View(*event.State).Context()
			}
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	report, err := workflow.Run(context.Background(), map[string]any{
		ContextRunID:        "run-42",
		ContextDocumentText: "Acme Corp annual filing text",
		"company":           "Acme",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.RunID != "run-42" {
		t.Errorf("run id = %q", report.RunID)
	}
	if finalContext["company"] != "Acme" || finalContext[ContextSourcePath] != "initial context" || finalContext[ContextRetrievalEnabled] != false {
		t.Errorf("final context = %v", finalContext)
	}
	if drafts := gateway.callsTo(mustStatement(t, BalanceSheet).GeneratorSystem); !strings.Contains(drafts[0].user, "Acme Corp annual filing text") {
		t.Errorf("generator prompt = %q", drafts[0].user)
	}
}

func TestWorkflow_RetrievalAddsCitations(t *testing.T) {
	gateway := &scriptedGateway{respond: responder(nil)}
	workflow := newTestWorkflow(t, gateway, Deps{Retrieval: true, TopK: 3})

	report, err := workflow.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	section, _ := report.Section(string(BalanceSheet))
	if len(section.Citations) == 0 || section.Citations[0] != "Page 1" {
		t.Errorf("citations = %v, want Page 1 first", section.Citations)
	}

	drafts := gateway.callsTo(mustStatement(t, BalanceSheet).GeneratorSystem)
	if len(drafts) != 1 {
		t.Fatalf("drafts = %d", len(drafts))
	}
	if !strings.Contains(drafts[0].system, "【Page X") || !strings.Contains(drafts[0].user, "Retrieved excerpts:\n[1] Page 1") {
		t.Errorf("citation prompts missing:\nsystem: %s\nuser: %s", drafts[0].system, drafts[0].user)
	}

	for _, entry := range report.Ledger {
		if entry.Node == "balance_sheet_generator" && entry.Role != RoleCitationWorker {
			t.Errorf("generator role = %s, want %s", entry.Role, RoleCitationWorker)
		}
	}
}

type failingRetriever struct{}

func (failingRetriever) Retrieve(context.Context, document.Query) ([]document.Excerpt, error) {
	return nil, errors.New("index offline")
}

func TestWorkflow_RetrieverFailureKeepsDrafting(t *testing.T) {
	gateway := &scriptedGateway{respond: responder(nil)}
	workflow := newTestWorkflow(t, gateway, Deps{Retriever: failingRetriever{}})

	report, err := workflow.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, section := range report.Sections {
		if section.Draft == "" || len(section.Citations) != 0 {
			t.Errorf("%s = %+v", section.Name, section)
		}
	}
}

func TestWorkflow_StubGateway(t *testing.T) {
	workflow, err := NewWorkflow(Deps{Source: document.StaticSource{Content: filing}})
	if err != nil {
		t.Fatal(err)
	}

	report, err := workflow.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.HasPrefix(report.FinalReport, client.StubPrefix) {
		t.Errorf("final report = %q", report.FinalReport)
	}
	if report.StubCalls() != report.Summary.Calls || report.Summary.Calls != 9 {
		t.Errorf("stub calls %d of %d", report.StubCalls(), report.Summary.Calls)
	}
	for _, section := range report.Sections {
		if !section.Passed {
			t.Errorf("%s did not pass on stub output", section.Name)
		}
	}
}

func TestWorkflow_SharedLedger(t *testing.T) {
	ledger := cost.NewLedger(cost.Pricing{InputPer1K: 1, OutputPer1K: 2})
	workflow := newTestWorkflow(t, &scriptedGateway{respond: responder(nil)}, Deps{Ledger: ledger})

	reports := make([]*overview.Overview, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for index := range reports {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reports[index], errs[index] = workflow.Run(context.Background(), nil)
		}()
	}
	wg.Wait()

	if ledger.Len() != 18 {
		t.Errorf("shared ledger has %d entries, want both runs", ledger.Len())
	}
	for index, report := range reports {
		if errs[index] != nil {
			t.Fatalf("Run: %v", errs[index])
		}
		if report.Summary.Calls != 9 || len(report.Ledger) != 9 {
			t.Errorf("run %s counts %d calls and %d entries, want 9", report.RunID, report.Summary.Calls, len(report.Ledger))
		}
		for _, entry := range report.Ledger {
			if entry.RunID != report.RunID {
				t.Errorf("run %s lists an entry of run %s", report.RunID, entry.RunID)
			}
		}
		if report.Pricing.InputPer1K != 1 || report.Summary.EstimatedCost != ledger.Pricing().Estimate(900, 180) {
			t.Errorf("pricing %v cost %v", report.Pricing, report.Summary.EstimatedCost)
		}
	}
}

func TestWorkflow_ConcurrentRuns(t *testing.T) {
	workflow := newTestWorkflow(t, &scriptedGateway{respond: responder(nil)}, Deps{MaxConcurrency: 2})

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			report, err := workflow.Run(context.Background(), nil)
			if err != nil {
				errs <- err
				return
			}
			if report.Summary.Calls != 9 {
				errs <- fmt.Errorf("run %s recorded %d calls", report.RunID, report.Summary.Calls)
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestWorkflow_CanceledContextAborts(t *testing.T) {
	workflow := newTestWorkflow(t, &scriptedGateway{respond: responder(nil)}, Deps{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := workflow.Run(ctx, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if report != nil {
		t.Error("an aborted run must not return a report")
	}
}

func TestNewWorkflow_InvalidDeps(t *testing.T) {
	tests := []struct {
		name string
		deps Deps
	}{
		{"negative retries", Deps{MaxRetries: -1}},
		{"negative top k", Deps{TopK: -3}},
		{"negative context", Deps{MaxContextChars: -1}},
		{"negative concurrency", Deps{MaxConcurrency: -2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewWorkflow(tt.deps); !errors.Is(err, ErrInvalidDeps) {
				t.Errorf("error = %v, want ErrInvalidDeps", err)
			}
		})
	}
}

func TestWorkflow_Observability(t *testing.T) {
	balanceSheet := mustStatement(t, BalanceSheet)
	buf := &bytes.Buffer{}
	observer := slogobs.New(slogobs.WithOutput(buf), slogobs.WithLevel(slog.LevelDebug))
	gateway := &scriptedGateway{respond: responder(func(system, _ string) (string, bool) {
		return `{"passed": false, "feedback": []}`, system == balanceSheet.CheckerSystem
	})}
	workflow := newTestWorkflow(t, gateway, Deps{Observer: observer})

	report, err := workflow.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"document ingested", "tasks planned", "section drafted", "section checked", "retries exhausted", "report synthesized", "model call recorded", report.RunID} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q", want)
		}
	}
	if got := observer.CounterValue(observability.MetricWorkflowRetryCount); got != 1 {
		t.Errorf("retry counter = %d, want 1", got)
	}
}
