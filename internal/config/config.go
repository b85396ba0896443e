package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config is the complete agent configuration.
//
// Values are resolved in order: Default(), then the optional YAML file,
// then environment variables. Later sources win.
type Config struct {
	Jira      JiraConfig      `yaml:"jira"`
	Generator GeneratorConfig `yaml:"generator"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Storage   StorageConfig   `yaml:"storage"`
	Web       WebConfig       `yaml:"web"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// JiraConfig holds tracker connection settings
type JiraConfig struct {
	Server   string `yaml:"server"`
	Username string `yaml:"username"`
	APIToken string `yaml:"api_token"`

	// ProjectKey is the project stories are fetched from
	// Default: "KCA"
	ProjectKey string `yaml:"project_key"`

	// Status selects stories in this workflow status
	// Default: "To Do"
	Status string `yaml:"status"`

	// IssueType is the story issue type name
	// Default: "Story"
	IssueType string `yaml:"issue_type"`

	// SubtaskType is the issue type used for filed scenarios
	// Default: "Sub-task"
	SubtaskType string `yaml:"subtask_type"`

	// FilingRate caps child-task creation in requests per second
	// Default: 5, Range: 0.1-100
	FilingRate float64 `yaml:"filing_rate"`
}

// GeneratorConfig holds model settings
type GeneratorConfig struct {
	// Provider is "anthropic" or "gemini"
	// Default: "anthropic"
	Provider string `yaml:"provider"`

	// Model overrides the provider's default model
	Model string `yaml:"model"`

	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	GeminiAPIKey    string `yaml:"gemini_api_key"`

	// MaxTokens bounds the generated output
	// Default: 1000, Range: 1-64000
	MaxTokens int `yaml:"max_tokens"`

	// Temperature is the sampling temperature
	// Default: 0.7, Range: 0-1
	Temperature float64 `yaml:"temperature"`

	// TimeoutSecs is the per-call timeout
	// Default: 60, Range: 1-600
	TimeoutSecs int `yaml:"timeout_secs"`
}

// PipelineConfig holds cycle settings
type PipelineConfig struct {
	// LookbackDays limits fetched stories to those created in the last N days
	// Default: 1, Range: 0-365 (0 = no date filter)
	LookbackDays int `yaml:"lookback_days"`

	// PollIntervalSecs is the pause between cycles in continuous mode
	// Default: 300, Range: 10-86400
	PollIntervalSecs int `yaml:"poll_interval_secs"`

	// FileScenarios creates one child task per scenario
	// Default: true
	FileScenarios bool `yaml:"file_scenarios"`

	// CommentOnParent posts the rendered document on the story
	// Default: false
	CommentOnParent bool `yaml:"comment_on_parent"`

	// ScenarioMarkers overrides the line prefixes that open a scenario
	ScenarioMarkers []string `yaml:"scenario_markers"`
}

// StorageConfig holds database settings
type StorageConfig struct {
	// Path is the SQLite database file
	// Default: ".qa-agent/qa_agent.db"
	Path string `yaml:"path"`
}

// WebConfig holds viewer settings
type WebConfig struct {
	// Addr is the listen address
	// Default: ":5003"
	Addr string `yaml:"addr"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	// Level is a zap level name (debug, info, warn, error)
	// Default: "info"
	Level string `yaml:"level"`

	// Development switches to the human-readable console encoder
	// Default: false
	Development bool `yaml:"development"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Jira: JiraConfig{
			ProjectKey:  "KCA",
			Status:      "To Do",
			IssueType:   "Story",
			SubtaskType: "Sub-task",
			FilingRate:  5,
		},
		Generator: GeneratorConfig{
			Provider:    "anthropic",
			MaxTokens:   1000,
			Temperature: 0.7,
			TimeoutSecs: 60,
		},
		Pipeline: PipelineConfig{
			LookbackDays:     1,
			PollIntervalSecs: 300,
			FileScenarios:    true,
		},
		Storage: StorageConfig{
			Path: ".qa-agent/qa_agent.db",
		},
		Web: WebConfig{
			Addr: ":5003",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load resolves the configuration from defaults, the YAML file at path
// (skipped when path is empty) and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables.
//
// Environment variables:
//   - JIRA_SERVER, JIRA_USERNAME, JIRA_API_TOKEN
//   - JIRA_PROJECT_KEY, JIRA_STATUS
//   - ANTHROPIC_API_KEY, GEMINI_API_KEY
//   - QA_GENERATOR_PROVIDER, QA_MODEL
//   - QA_DB_PATH
//   - QA_LOOKBACK_DAYS, QA_POLL_INTERVAL_SECS
//   - QA_FILE_SCENARIOS, QA_COMMENT_ON_PARENT
//   - QA_WEB_ADDR, QA_LOG_LEVEL
//
// Returns an error if any environment variable has an invalid value.
func (c *Config) ApplyEnv() error {
	strs := []struct {
		key  string
		dest *string
	}{
		{"JIRA_SERVER", &c.Jira.Server},
		{"JIRA_USERNAME", &c.Jira.Username},
		{"JIRA_API_TOKEN", &c.Jira.APIToken},
		{"JIRA_PROJECT_KEY", &c.Jira.ProjectKey},
		{"JIRA_STATUS", &c.Jira.Status},
		{"ANTHROPIC_API_KEY", &c.Generator.AnthropicAPIKey},
		{"GEMINI_API_KEY", &c.Generator.GeminiAPIKey},
		{"QA_GENERATOR_PROVIDER", &c.Generator.Provider},
		{"QA_MODEL", &c.Generator.Model},
		{"QA_DB_PATH", &c.Storage.Path},
		{"QA_WEB_ADDR", &c.Web.Addr},
		{"QA_LOG_LEVEL", &c.Logging.Level},
	}
	for _, s := range strs {
		if err := parseEnvString(s.key, s.dest); err != nil {
			return err
		}
	}

	if err := parseEnvInt("QA_LOOKBACK_DAYS", &c.Pipeline.LookbackDays); err != nil {
		return err
	}
	if err := parseEnvInt("QA_POLL_INTERVAL_SECS", &c.Pipeline.PollIntervalSecs); err != nil {
		return err
	}
	if err := parseEnvBool("QA_FILE_SCENARIOS", &c.Pipeline.FileScenarios); err != nil {
		return err
	}
	if err := parseEnvBool("QA_COMMENT_ON_PARENT", &c.Pipeline.CommentOnParent); err != nil {
		return err
	}
	return nil
}

// Validate checks if the configuration has valid values.
// Credentials are checked separately by RequireCredentials.
func (c *Config) Validate() error {
	if c.Jira.ProjectKey == "" {
		return fmt.Errorf("jira.project_key is required")
	}
	if c.Jira.FilingRate < 0.1 || c.Jira.FilingRate > 100 {
		return fmt.Errorf("jira.filing_rate must be between 0.1 and 100 (got %g)", c.Jira.FilingRate)
	}

	switch c.Generator.Provider {
	case "anthropic", "gemini":
	default:
		return fmt.Errorf("generator.provider must be \"anthropic\" or \"gemini\" (got %q)", c.Generator.Provider)
	}
	if c.Generator.MaxTokens < 1 || c.Generator.MaxTokens > 64000 {
		return fmt.Errorf("generator.max_tokens must be between 1 and 64000 (got %d)", c.Generator.MaxTokens)
	}
	if c.Generator.Temperature < 0 || c.Generator.Temperature > 1 {
		return fmt.Errorf("generator.temperature must be between 0 and 1 (got %g)", c.Generator.Temperature)
	}
	if c.Generator.TimeoutSecs < 1 || c.Generator.TimeoutSecs > 600 {
		return fmt.Errorf("generator.timeout_secs must be between 1 and 600 (got %d)", c.Generator.TimeoutSecs)
	}

	if c.Pipeline.LookbackDays < 0 || c.Pipeline.LookbackDays > 365 {
		return fmt.Errorf("pipeline.lookback_days must be between 0 and 365 (got %d)", c.Pipeline.LookbackDays)
	}
	if c.Pipeline.PollIntervalSecs < 10 || c.Pipeline.PollIntervalSecs > 86400 {
		return fmt.Errorf("pipeline.poll_interval_secs must be between 10 and 86400 (got %d)", c.Pipeline.PollIntervalSecs)
	}

	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required")
	}
	if c.Web.Addr == "" {
		return fmt.Errorf("web.addr is required")
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	return nil
}

// RequireCredentials checks the secrets needed to run the pipeline.
// The viewer alone does not need them.
func (c *Config) RequireCredentials() error {
	var errs []error
	if c.Jira.Server == "" {
		errs = append(errs, fmt.Errorf("JIRA_SERVER not set"))
	}
	if c.Jira.Username == "" {
		errs = append(errs, fmt.Errorf("JIRA_USERNAME not set"))
	}
	if c.Jira.APIToken == "" {
		errs = append(errs, fmt.Errorf("JIRA_API_TOKEN not set"))
	}
	if c.GeneratorAPIKey() == "" {
		switch c.Generator.Provider {
		case "gemini":
			errs = append(errs, fmt.Errorf("GEMINI_API_KEY not set"))
		default:
			errs = append(errs, fmt.Errorf("ANTHROPIC_API_KEY not set"))
		}
	}
	return errors.Join(errs...)
}

// GeneratorAPIKey returns the API key of the selected provider
func (c *Config) GeneratorAPIKey() string {
	if c.Generator.Provider == "gemini" {
		return c.Generator.GeminiAPIKey
	}
	return c.Generator.AnthropicAPIKey
}

// PollInterval returns the cycle interval as a time.Duration
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Pipeline.PollIntervalSecs) * time.Second
}

// GeneratorTimeout returns the per-call timeout as a time.Duration
func (c *Config) GeneratorTimeout() time.Duration {
	return time.Duration(c.Generator.TimeoutSecs) * time.Second
}

// String returns a human-readable representation of the config with
// secrets redacted
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Jira: {Server: %s, Username: %s, APIToken: %s, Project: %s, Status: %q, FilingRate: %g}, "+
			"Generator: {Provider: %s, Model: %s, APIKey: %s, MaxTokens: %d, Temperature: %g, TimeoutSecs: %d}, "+
			"Pipeline: {LookbackDays: %d, PollIntervalSecs: %d, FileScenarios: %v, CommentOnParent: %v}, "+
			"Storage: {Path: %s}, Web: {Addr: %s}, Logging: {Level: %s, Development: %v}}",
		c.Jira.Server, c.Jira.Username, redact(c.Jira.APIToken), c.Jira.ProjectKey, c.Jira.Status, c.Jira.FilingRate,
		c.Generator.Provider, c.Generator.Model, redact(c.GeneratorAPIKey()), c.Generator.MaxTokens,
		c.Generator.Temperature, c.Generator.TimeoutSecs,
		c.Pipeline.LookbackDays, c.Pipeline.PollIntervalSecs, c.Pipeline.FileScenarios, c.Pipeline.CommentOnParent,
		c.Storage.Path, c.Web.Addr, c.Logging.Level, c.Logging.Development,
	)
}

func redact(secret string) string {
	if secret == "" {
		return "<unset>"
	}
	return "<redacted>"
}
