// Package main provides the finagent binary entry point. finagent drafts
// the balance sheet, income statement and cash flow sections of a financial
// brief from a filing, checks each section with a model-based reviewer and
// writes the synthesized report together with a cost ledger.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "finagent"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   appName,
		Short: "Financial brief drafting workflow",
		Long: `finagent reads a filing and drafts the balance sheet, income statement
and cash flow sections of a financial brief. Every section is reviewed by a
checker model and redrafted until it passes or the retry bound is reached.

Outputs written to the output directory:
- report.md          the synthesized brief
- cost_ledger.json   one entry per model call
- cost_summary.json  token and cost totals

Without OPENAI_API_KEY every model call returns placeholder text, which
keeps the workflow runnable offline.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(runCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}
