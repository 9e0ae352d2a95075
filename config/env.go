package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables read by ApplyEnv.
const (
	EnvModel            = "FINLLM_MODEL"
	EnvInputPricePer1K  = "FINLLM_INPUT_PRICE_PER_1K"
	EnvOutputPricePer1K = "FINLLM_OUTPUT_PRICE_PER_1K"
	EnvAPIKey           = "OPENAI_API_KEY"
	EnvBaseURL          = "OPENAI_API_BASE_URL"
	EnvMaxRetries       = "FINAGENT_MAX_RETRIES"
	EnvRetrieval        = "FINAGENT_RETRIEVAL"
	EnvOutputDir        = "FINAGENT_OUTPUT_DIR"
)

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// LoadDotEnv loads KEY=value pairs from the given files (".env" when none is
// given) into the process environment. Variables already set are kept and
// missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// ApplyEnv overrides c with the variables found through lookup. Empty
// variables are ignored; malformed numbers are reported together.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	get := func(key string) (string, bool) {
		value, ok := lookup(key)
		value = strings.TrimSpace(value)
		return value, ok && value != ""
	}

	var problems []error
	parseFloat := func(key string, target *float64) {
		if value, ok := get(key); ok {
			parsed, err := strconv.ParseFloat(value, 64)
			if err != nil {
				problems = append(problems, fmt.Errorf("%s: %w", key, err))
				return
			}
			*target = parsed
		}
	}

	if value, ok := get(EnvModel); ok {
		c.Model.Name = value
	}
	if value, ok := get(EnvAPIKey); ok {
		c.Model.APIKey = value
	}
	if value, ok := get(EnvBaseURL); ok {
		c.Model.BaseURL = value
	}
	if value, ok := get(EnvOutputDir); ok {
		c.Output.Dir = value
	}
	parseFloat(EnvInputPricePer1K, &c.Pricing.InputPer1K)
	parseFloat(EnvOutputPricePer1K, &c.Pricing.OutputPer1K)

	if value, ok := get(EnvMaxRetries); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			problems = append(problems, fmt.Errorf("%s: %w", EnvMaxRetries, err))
		} else {
			c.Workflow.MaxRetries = parsed
		}
	}
	if value, ok := get(EnvRetrieval); ok {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			problems = append(problems, fmt.Errorf("%s: %w", EnvRetrieval, err))
		} else {
			c.Retrieval.Enabled = parsed
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid environment: %w", errors.Join(problems...))
	}
	return nil
}
