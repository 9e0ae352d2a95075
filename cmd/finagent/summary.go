package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/leofalp/finagent/core/overview"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF"))
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Width(16)
	passedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4EC9B0"))
	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

// renderSummary formats the end-of-run overview for the terminal.
func renderSummary(report *overview.Overview, dir string) string {
	lines := []string{
		titleStyle.Render("finagent run " + report.RunID),
		"",
		row("model", report.Model),
		row("source", report.Source),
		row("tasks", strings.Join(report.Tasks, ", ")),
		"",
	}

	for _, section := range report.Sections {
		lines = append(lines, row(section.Title, sectionStatus(section)))
	}

	suggestions := fmt.Sprintf("%d", len(report.Suggestions))
	if report.FallbackUsed {
		suggestions = warnStyle.Render(suggestions + " (fallback)")
	}
	lines = append(lines,
		row("suggestions", suggestions),
		"",
		row("calls", callsLine(report)),
		row("tokens", fmt.Sprintf("%d in / %d out", report.Summary.InputTokens, report.Summary.OutputTokens)),
		row("cost", fmt.Sprintf("$%.4f", report.TotalCost())),
		row("duration", report.ExecutionDuration().Round(time.Millisecond).String()),
		row("report", filepath.Join(dir, overview.ReportFile)),
	)

	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value)
}

func sectionStatus(section overview.Section) string {
	status := fmt.Sprintf("%s v%d", section.Status, section.Version)
	if section.RetryCount > 0 {
		status += fmt.Sprintf(", %d retries", section.RetryCount)
	}
	if len(section.Citations) > 0 {
		status += fmt.Sprintf(", %d citations", len(section.Citations))
	}

	switch section.Status {
	case "passed":
		return passedStyle.Render(status)
	case "overridden":
		return warnStyle.Render(status)
	default:
		return status
	}
}

func callsLine(report *overview.Overview) string {
	line := fmt.Sprintf("%d", report.Summary.Calls)
	if stubs := report.StubCalls(); stubs > 0 {
		line += warnStyle.Render(fmt.Sprintf(" (%d stubbed)", stubs))
	}
	return line
}
