// Package config provides configuration loading for finagent: built-in
// defaults, an optional YAML file, a .env file and environment overrides,
// applied in that order.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/leofalp/finagent/core/cost"
)

// Config represents the complete finagent configuration.
type Config struct {
	Model     ModelConfig     `yaml:"model"`
	Pricing   cost.Pricing    `yaml:"pricing"`
	Workflow  WorkflowConfig  `yaml:"workflow"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Client    ClientConfig    `yaml:"client"`
	Logging   LoggingConfig   `yaml:"logging"`
	Output    OutputConfig    `yaml:"output"`
}

// ModelConfig configures the language model.
type ModelConfig struct {
	// Name is the model id sent to the provider (default: gpt-5-mini).
	Name string `yaml:"name"`
	// BaseURL is the OpenAI-compatible endpoint. Empty uses the provider
	// default or OPENAI_API_BASE_URL.
	BaseURL string `yaml:"base_url"`
	// APIKey is usually left empty and read from OPENAI_API_KEY.
	APIKey string `yaml:"api_key"`
	// MaxTokens bounds each completion; 0 leaves the provider default.
	MaxTokens int `yaml:"max_tokens"`
	// Temperature in [0, 2]; 0 leaves the provider default.
	Temperature float64 `yaml:"temperature"`
}

// WorkflowConfig configures the section loops.
type WorkflowConfig struct {
	// MaxRetries bounds failed checks per section (default: 2).
	MaxRetries int `yaml:"max_retries"`
	// MaxContextChars bounds the document text in a generator prompt.
	MaxContextChars int `yaml:"max_context_chars"`
	// MaxConcurrency bounds parallel nodes per step; 0 is unlimited.
	MaxConcurrency int `yaml:"max_concurrency"`
}

// RetrievalConfig configures citation retrieval.
type RetrievalConfig struct {
	Enabled bool `yaml:"enabled"`
	// TopK bounds the excerpts per generator call (default: 5).
	TopK int `yaml:"top_k"`
}

// ClientConfig configures the model client middlewares.
type ClientConfig struct {
	// Timeout applies to each provider attempt.
	Timeout time.Duration `yaml:"timeout"`
	// Retries is the number of retries after a transient provider error.
	Retries int `yaml:"retries"`
	// InitialBackoff is the wait before the first retry.
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	// RequestLog is one of none, minimal, standard or verbose.
	RequestLog string `yaml:"request_log"`
}

// LoggingConfig configures the slog observer. Empty values defer to
// FINAGENT_LOG_LEVEL and FINAGENT_LOG_FORMAT.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// OutputConfig configures the run artifacts.
type OutputConfig struct {
	// Dir receives report.md, cost_ledger.json and cost_summary.json.
	Dir string `yaml:"dir"`
	// MetricsFile, when set, receives a Prometheus textfile snapshot.
	MetricsFile string `yaml:"metrics_file"`
}

var requestLogLevels = []string{"none", "minimal", "standard", "verbose"}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Name: "gpt-5-mini",
		},
		Pricing: cost.DefaultPricing(),
		Workflow: WorkflowConfig{
			MaxRetries:      2,
			MaxContextChars: 4000,
		},
		Retrieval: RetrievalConfig{
			Enabled: false,
			TopK:    5,
		},
		Client: ClientConfig{
			Timeout:        2 * time.Minute,
			Retries:        3,
			InitialBackoff: time.Second,
			RequestLog:     "minimal",
		},
		Output: OutputConfig{
			Dir: "out",
		},
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var problems []error
	if strings.TrimSpace(c.Model.Name) == "" {
		problems = append(problems, errors.New("model.name is required"))
	}
	if c.Model.MaxTokens < 0 {
		problems = append(problems, errors.New("model.max_tokens must not be negative"))
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		problems = append(problems, errors.New("model.temperature must be between 0 and 2"))
	}
	if c.Pricing.InputPer1K < 0 || c.Pricing.OutputPer1K < 0 {
		problems = append(problems, errors.New("pricing rates must not be negative"))
	}
	if c.Workflow.MaxRetries < 1 {
		problems = append(problems, errors.New("workflow.max_retries must be at least 1"))
	}
	if c.Workflow.MaxContextChars < 0 || c.Workflow.MaxConcurrency < 0 {
		problems = append(problems, errors.New("workflow limits must not be negative"))
	}
	if c.Retrieval.TopK < 1 {
		problems = append(problems, errors.New("retrieval.top_k must be at least 1"))
	}
	if c.Client.Timeout < 0 || c.Client.Retries < 0 || c.Client.InitialBackoff < 0 {
		problems = append(problems, errors.New("client timeout, retries and backoff must not be negative"))
	}
	if !slices.Contains(requestLogLevels, c.Client.RequestLog) {
		problems = append(problems, fmt.Errorf("client.request_log must be one of %s", strings.Join(requestLogLevels, ", ")))
	}
	if strings.TrimSpace(c.Output.Dir) == "" {
		problems = append(problems, errors.New("output.dir is required"))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(problems...))
	}
	return nil
}

// Load builds the effective configuration: defaults, then the YAML file at
// path when path is not empty, then the environment. The result is
// validated.
func Load(path string) (*Config, error) {
	config := DefaultConfig()
	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		config = fileConfig
	}

	if err := config.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
// Unknown keys are rejected.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return config, nil
}

// Marshal renders the configuration as YAML. The API key is never written.
func (c *Config) Marshal() ([]byte, error) {
	redacted := *c
	redacted.Model.APIKey = ""
	data, err := yaml.Marshal(&redacted)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}
