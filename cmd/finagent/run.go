package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leofalp/finagent/analysis"
	"github.com/leofalp/finagent/config"
	"github.com/leofalp/finagent/core/client"
	"github.com/leofalp/finagent/core/client/middleware"
	"github.com/leofalp/finagent/core/cost"
	"github.com/leofalp/finagent/providers/ai"
	"github.com/leofalp/finagent/providers/ai/openai"
	"github.com/leofalp/finagent/providers/document"
	"github.com/leofalp/finagent/providers/observability"
	"github.com/leofalp/finagent/providers/observability/promobs"
	"github.com/leofalp/finagent/providers/observability/slogobs"
)

// runOptions holds the flags of the run command. Flags override the config
// file and the environment only when they are set explicitly.
type runOptions struct {
	documentPath string
	configPath   string
	envFile      string
	outDir       string
	model        string
	retrieval    bool
	maxRetries   int
	metricsFile  string
	progress     bool
	quiet        bool
}

func runCmd() *cobra.Command {
	var options runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Draft, check and synthesize a financial brief",
		Example: `  finagent run --document 10k.txt
  finagent run --document 10k.html --retrieval --out reports/acme
  finagent run --config finagent.yaml --metrics-file finagent.prom`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(options, cmd.Flags().Changed)
			if err != nil {
				return err
			}
			return execute(cmd.Context(), cfg, options, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&options.documentPath, "document", "d", "", "Filing to analyze (.txt, .md, .html, or .pdf with a sibling .txt)")
	flags.StringVarP(&options.configPath, "config", "c", "", "Config file path (YAML)")
	flags.StringVar(&options.envFile, "env-file", ".env", "Dotenv file loaded before the environment is read")
	flags.StringVarP(&options.outDir, "out", "o", "", "Directory receiving the report and cost artifacts")
	flags.StringVarP(&options.model, "model", "m", "", "Model id sent to the provider")
	flags.BoolVar(&options.retrieval, "retrieval", false, "Ground generator prompts with cited document excerpts")
	flags.IntVar(&options.maxRetries, "max-retries", 0, "Failed checks allowed per section before it is forced through")
	flags.StringVar(&options.metricsFile, "metrics-file", "", "Write a Prometheus textfile snapshot of the run metrics")
	flags.BoolVar(&options.progress, "progress", false, "Print node completions and routes while the workflow runs")
	flags.BoolVarP(&options.quiet, "quiet", "q", false, "Skip the run summary")

	return cmd
}

// loadConfig resolves the effective configuration: .env file, defaults,
// config file, environment, then the flags reported by changed.
func loadConfig(options runOptions, changed func(name string) bool) (*config.Config, error) {
	if options.envFile != "" {
		if err := config.LoadDotEnv(options.envFile); err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load(options.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if changed("out") {
		cfg.Output.Dir = options.outDir
	}
	if changed("model") {
		cfg.Model.Name = options.model
	}
	if changed("retrieval") {
		cfg.Retrieval.Enabled = options.retrieval
	}
	if changed("max-retries") {
		cfg.Workflow.MaxRetries = options.maxRetries
	}
	if changed("metrics-file") {
		cfg.Output.MetricsFile = options.metricsFile
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// execute wires the collaborators described by cfg, runs the workflow once
// and writes the artifacts.
func execute(ctx context.Context, cfg *config.Config, options runOptions, stdout, stderr io.Writer) error {
	logger := newLogger(cfg.Logging, stderr)

	var observer observability.Provider = logger
	var metrics *promobs.Observer
	if cfg.Output.MetricsFile != "" {
		metrics = promobs.New(logger)
		observer = metrics
	}

	gateway, err := newGateway(cfg, observer, logger.Logger())
	if err != nil {
		return err
	}

	deps := analysis.Deps{
		Gateway:         gateway,
		Retrieval:       cfg.Retrieval.Enabled,
		Ledger:          cost.NewLedger(cfg.Pricing),
		Observer:        observer,
		Model:           cfg.Model.Name,
		MaxRetries:      cfg.Workflow.MaxRetries,
		TopK:            cfg.Retrieval.TopK,
		MaxContextChars: cfg.Workflow.MaxContextChars,
		MaxConcurrency:  cfg.Workflow.MaxConcurrency,
	}
	if options.documentPath != "" {
		deps.Source = document.NewFileSource(options.documentPath)
	}
	if options.progress {
		deps.OnEvent = progressPrinter(stderr)
	}

	workflow, err := analysis.NewWorkflow(deps)
	if err != nil {
		return err
	}

	report, err := workflow.Run(ctx, nil)
	if err != nil {
		return err
	}

	if err := report.WriteArtifacts(cfg.Output.Dir); err != nil {
		return fmt.Errorf("write artifacts: %w", err)
	}
	if metrics != nil {
		if err := metrics.WriteTextfile(cfg.Output.MetricsFile); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}

	logger.Info(ctx, "artifacts written",
		observability.String("dir", cfg.Output.Dir),
		observability.String("run_id", report.RunID),
	)

	if !options.quiet {
		fmt.Fprintln(stdout, renderSummary(report, cfg.Output.Dir))
	}
	return nil
}

// newLogger builds the slog observer. Empty config values defer to the
// FINAGENT_LOG_LEVEL and FINAGENT_LOG_FORMAT variables.
func newLogger(logging config.LoggingConfig, output io.Writer) *slogobs.Observer {
	opts := []slogobs.Option{slogobs.WithOutput(output)}
	if logging.Level != "" {
		opts = append(opts, slogobs.WithLevel(slogobs.ParseLogLevel(logging.Level)))
	}
	if logging.Format != "" {
		opts = append(opts, slogobs.WithFormat(slogobs.ParseFormat(logging.Format)))
	}
	return slogobs.New(opts...)
}

// newGateway builds the model client. Without an API key the client has no
// provider and answers every call with a stub completion.
func newGateway(cfg *config.Config, observer observability.Provider, logger *slog.Logger) (*client.Client, error) {
	var provider ai.Provider
	if cfg.Model.APIKey != "" {
		provider = openai.NewOpenAIProvider().
			WithAPIKey(cfg.Model.APIKey).
			WithBaseURL(cfg.Model.BaseURL)
	} else {
		logger.Warn("no API key configured, model calls return stub output", "env", config.EnvAPIKey)
	}

	opts := []client.Option{
		client.WithObserver(observer),
		client.WithGenerationConfig(cfg.Model.MaxTokens, float32(cfg.Model.Temperature)),
	}
	if level, ok := requestLogLevel(cfg.Client.RequestLog); ok {
		opts = append(opts, client.WithMiddleware(middleware.NewLoggingMiddleware(logger, level)))
	}
	if cfg.Client.Retries > 0 {
		opts = append(opts, client.WithMiddleware(middleware.NewRetryMiddleware(middleware.RetryConfig{
			MaxRetries:     cfg.Client.Retries,
			InitialBackoff: cfg.Client.InitialBackoff,
		})))
	}
	if cfg.Client.Timeout > 0 {
		opts = append(opts, client.WithMiddleware(middleware.NewTimeoutMiddleware(cfg.Client.Timeout)))
	}

	gateway, err := client.New(provider, opts...)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return gateway, nil
}

// requestLogLevel maps the client.request_log setting. "none" disables the
// logging middleware.
func requestLogLevel(name string) (middleware.LogLevel, bool) {
	switch strings.ToLower(name) {
	case "minimal":
		return middleware.LogLevelMinimal, true
	case "standard":
		return middleware.LogLevelStandard, true
	case "verbose":
		return middleware.LogLevelVerbose, true
	default:
		return 0, false
	}
}
