package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "finagent.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func lookupFrom(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func TestDefaultConfig_IsValid(t *testing.T) {
	config := DefaultConfig()
	if err := config.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if config.Model.Name != "gpt-5-mini" || config.Pricing.InputPer1K != 0.05 || config.Pricing.OutputPer1K != 0.15 {
		t.Errorf("defaults = %+v", config)
	}
	if config.Workflow.MaxRetries != 2 || config.Retrieval.TopK != 5 {
		t.Errorf("workflow defaults = %+v %+v", config.Workflow, config.Retrieval)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty model", func(c *Config) { c.Model.Name = " " }, "model.name"},
		{"temperature", func(c *Config) { c.Model.Temperature = 2.5 }, "model.temperature"},
		{"negative price", func(c *Config) { c.Pricing.OutputPer1K = -1 }, "pricing"},
		{"zero retries", func(c *Config) { c.Workflow.MaxRetries = 0 }, "workflow.max_retries"},
		{"zero top k", func(c *Config) { c.Retrieval.TopK = 0 }, "retrieval.top_k"},
		{"request log", func(c *Config) { c.Client.RequestLog = "chatty" }, "client.request_log"},
		{"output dir", func(c *Config) { c.Output.Dir = "" }, "output.dir"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want mention of %s", err, tt.want)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
model:
  name: gpt-4o-mini
  temperature: 0.2
pricing:
  input_per_1k: 0.1
workflow:
  max_retries: 3
retrieval:
  enabled: true
client:
  timeout: 45s
`)

	config, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if config.Model.Name != "gpt-4o-mini" || config.Model.Temperature != 0.2 {
		t.Errorf("model = %+v", config.Model)
	}
	if config.Pricing.InputPer1K != 0.1 || config.Pricing.OutputPer1K != 0.15 {
		t.Errorf("pricing = %+v, output rate should keep its default", config.Pricing)
	}
	if config.Workflow.MaxRetries != 3 || !config.Retrieval.Enabled || config.Retrieval.TopK != 5 {
		t.Errorf("workflow %+v retrieval %+v", config.Workflow, config.Retrieval)
	}
	if config.Client.Timeout != 45*time.Second || config.Client.Retries != 3 {
		t.Errorf("client = %+v", config.Client)
	}
}

func TestLoadFromFile_Errors(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file should fail")
	}
	if _, err := LoadFromFile(writeConfig(t, "model:\n  nmae: typo\n")); err == nil {
		t.Error("unknown keys should be rejected")
	}

	empty, err := LoadFromFile(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("empty file: %v", err)
	}
	if empty.Model.Name != "gpt-5-mini" {
		t.Errorf("empty file should keep defaults, got %+v", empty.Model)
	}
}

func TestApplyEnv(t *testing.T) {
	config := DefaultConfig()
	err := config.ApplyEnv(lookupFrom(map[string]string{
		EnvModel:            "gpt-4.1",
		EnvInputPricePer1K:  "0.2",
		EnvOutputPricePer1K: " 0.8 ",
		EnvAPIKey:           "sk-test",
		EnvBaseURL:          "http://localhost:8080/v1",
		EnvMaxRetries:       "4",
		EnvRetrieval:        "true",
		EnvOutputDir:        "",
	}))
	if err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}

	if config.Model.Name != "gpt-4.1" || config.Model.APIKey != "sk-test" || config.Model.BaseURL != "http://localhost:8080/v1" {
		t.Errorf("model = %+v", config.Model)
	}
	if config.Pricing.InputPer1K != 0.2 || config.Pricing.OutputPer1K != 0.8 {
		t.Errorf("pricing = %+v", config.Pricing)
	}
	if config.Workflow.MaxRetries != 4 || !config.Retrieval.Enabled {
		t.Errorf("workflow %+v retrieval %+v", config.Workflow, config.Retrieval)
	}
	if config.Output.Dir != "out" {
		t.Errorf("empty variable should be ignored, output dir = %q", config.Output.Dir)
	}
}

func TestApplyEnv_ReportsEveryMalformedValue(t *testing.T) {
	config := DefaultConfig()
	err := config.ApplyEnv(lookupFrom(map[string]string{
		EnvInputPricePer1K: "cheap",
		EnvMaxRetries:      "two",
		EnvRetrieval:       "maybe",
	}))
	if err == nil {
		t.Fatal("expected an error")
	}
	for _, key := range []string{EnvInputPricePer1K, EnvMaxRetries, EnvRetrieval} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error should mention %s: %v", key, err)
		}
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "model:\n  name: from-file\nworkflow:\n  max_retries: 5\n")
	t.Setenv(EnvModel, "from-env")
	t.Setenv(EnvMaxRetries, "")

	config, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if config.Model.Name != "from-env" || config.Workflow.MaxRetries != 5 {
		t.Errorf("model %q retries %d", config.Model.Name, config.Workflow.MaxRetries)
	}

	t.Setenv(EnvMaxRetries, "0")
	if _, err := Load(path); err == nil {
		t.Error("Load should validate the merged configuration")
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("FINLLM_MODEL=from-dotenv\nFINAGENT_RETRIEVAL=true\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvModel, "already-set")
	t.Setenv(EnvRetrieval, "")
	os.Unsetenv(EnvRetrieval)

	if err := LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv(EnvModel); got != "already-set" {
		t.Errorf("existing variable overwritten: %q", got)
	}
	if got := os.Getenv(EnvRetrieval); got != "true" {
		t.Errorf("%s = %q, want true", EnvRetrieval, got)
	}
}

func TestMarshal_RedactsAPIKey(t *testing.T) {
	config := DefaultConfig()
	config.Model.APIKey = "sk-secret"

	data, err := config.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "sk-secret") {
		t.Errorf("API key leaked:\n%s", data)
	}
	if config.Model.APIKey != "sk-secret" {
		t.Error("Marshal must not modify the receiver")
	}

	roundTrip, err := LoadFromFile(writeConfig(t, string(data)))
	if err != nil {
		t.Fatalf("marshaled config should load back: %v", err)
	}
	if roundTrip.Client.Timeout != config.Client.Timeout {
		t.Errorf("timeout = %v, want %v", roundTrip.Client.Timeout, config.Client.Timeout)
	}
}
