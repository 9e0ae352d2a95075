package analysis

import (
	"fmt"
	"slices"
)

// Statement is the configuration record of one section pipeline. The
// generator, checker and router of a section are all built from it.
type Statement struct {
	Type  StatementType
	Title string
	// Short labels the section in the global review prompt, e.g. "BS".
	Short string

	GeneratorSystem string
	CheckerSystem   string

	// Concepts are looked up one excerpt each when retrieval is enabled.
	Concepts []string
}

// GeneratorNode is the node id of the section generator.
func (statement Statement) GeneratorNode() string {
	return string(statement.Type) + "_generator"
}

// CheckerNode is the node id of the section checker.
func (statement Statement) CheckerNode() string {
	return string(statement.Type) + "_checker"
}

var statementTable = []Statement{
	{
		Type:            BalanceSheet,
		Title:           "Balance Sheet",
		Short:           "BS",
		GeneratorSystem: balanceSheetSystem,
		CheckerSystem:   balanceSheetCheckerSystem,
		Concepts:        []string{"total assets", "total liabilities", "stockholders equity", "cash", "debt"},
	},
	{
		Type:            IncomeStatement,
		Title:           "Income Statement",
		Short:           "IS",
		GeneratorSystem: incomeStatementSystem,
		CheckerSystem:   incomeStatementCheckerSystem,
		Concepts:        []string{"revenue", "net income", "operating income", "gross profit", "earnings per share"},
	},
	{
		Type:            CashFlows,
		Title:           "Cash Flows",
		Short:           "CF",
		GeneratorSystem: cashFlowsSystem,
		CheckerSystem:   cashFlowsCheckerSystem,
		Concepts:        []string{"operating cash flow", "free cash flow", "capital expenditures", "net income"},
	},
}

// Statements returns the configuration of every section in report order.
func Statements() []Statement {
	statements := slices.Clone(statementTable)
	for index := range statements {
		statements[index].Concepts = slices.Clone(statements[index].Concepts)
	}
	return statements
}

// LookupStatement returns the configuration of statementType.
func LookupStatement(statementType StatementType) (Statement, error) {
	for _, statement := range statementTable {
		if statement.Type == statementType {
			return statement, nil
		}
	}
	return Statement{}, fmt.Errorf("%w: %q", ErrUnknownStatement, statementType)
}
