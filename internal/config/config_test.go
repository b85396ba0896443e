package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"JIRA_SERVER", "JIRA_USERNAME", "JIRA_API_TOKEN", "JIRA_PROJECT_KEY", "JIRA_STATUS",
	"ANTHROPIC_API_KEY", "GEMINI_API_KEY", "QA_GENERATOR_PROVIDER", "QA_MODEL",
	"QA_DB_PATH", "QA_LOOKBACK_DAYS", "QA_POLL_INTERVAL_SECS", "QA_FILE_SCENARIOS",
	"QA_COMMENT_ON_PARENT", "QA_WEB_ADDR", "QA_LOG_LEVEL",
}

// clearEnv blanks every variable the loader reads
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "KCA", cfg.Jira.ProjectKey)
	assert.Equal(t, "To Do", cfg.Jira.Status)
	assert.Equal(t, "Sub-task", cfg.Jira.SubtaskType)
	assert.Equal(t, "anthropic", cfg.Generator.Provider)
	assert.Equal(t, 1000, cfg.Generator.MaxTokens)
	assert.InDelta(t, 0.7, cfg.Generator.Temperature, 1e-9)
	assert.Equal(t, 1, cfg.Pipeline.LookbackDays)
	assert.Equal(t, 5*time.Minute, cfg.PollInterval())
	assert.Equal(t, ".qa-agent/qa_agent.db", cfg.Storage.Path)
	assert.Equal(t, ":5003", cfg.Web.Addr)
}

func TestLoadFromEnv(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr string
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name:    "no environment variables uses defaults",
			envVars: map[string]string{},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, Default(), cfg)
			},
		},
		{
			name: "valid overrides",
			envVars: map[string]string{
				"JIRA_SERVER":           "https://example.atlassian.net",
				"JIRA_USERNAME":         "qa-bot",
				"JIRA_API_TOKEN":        "tok",
				"JIRA_PROJECT_KEY":      "ABC",
				"JIRA_STATUS":           "Ready",
				"GEMINI_API_KEY":        "gem",
				"QA_GENERATOR_PROVIDER": "gemini",
				"QA_MODEL":              "gemini-2.5-pro",
				"QA_DB_PATH":            "/tmp/qa.db",
				"QA_LOOKBACK_DAYS":      "0",
				"QA_POLL_INTERVAL_SECS": "60",
				"QA_FILE_SCENARIOS":     "false",
				"QA_COMMENT_ON_PARENT":  "true",
				"QA_WEB_ADDR":           "127.0.0.1:8080",
				"QA_LOG_LEVEL":          "debug",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "https://example.atlassian.net", cfg.Jira.Server)
				assert.Equal(t, "ABC", cfg.Jira.ProjectKey)
				assert.Equal(t, "Ready", cfg.Jira.Status)
				assert.Equal(t, "gemini", cfg.Generator.Provider)
				assert.Equal(t, "gem", cfg.GeneratorAPIKey())
				assert.Equal(t, "gemini-2.5-pro", cfg.Generator.Model)
				assert.Equal(t, "/tmp/qa.db", cfg.Storage.Path)
				assert.Equal(t, 0, cfg.Pipeline.LookbackDays)
				assert.Equal(t, time.Minute, cfg.PollInterval())
				assert.False(t, cfg.Pipeline.FileScenarios)
				assert.True(t, cfg.Pipeline.CommentOnParent)
				assert.Equal(t, "127.0.0.1:8080", cfg.Web.Addr)
				assert.Equal(t, "debug", cfg.Logging.Level)
				assert.NoError(t, cfg.RequireCredentials())
			},
		},
		{
			name:    "invalid int",
			envVars: map[string]string{"QA_LOOKBACK_DAYS": "yesterday"},
			wantErr: "invalid value for QA_LOOKBACK_DAYS",
		},
		{
			name:    "invalid bool",
			envVars: map[string]string{"QA_FILE_SCENARIOS": "sometimes"},
			wantErr: "invalid value for QA_FILE_SCENARIOS",
		},
		{
			name:    "lookback out of range",
			envVars: map[string]string{"QA_LOOKBACK_DAYS": "400"},
			wantErr: "lookback_days must be between 0 and 365",
		},
		{
			name:    "interval too short",
			envVars: map[string]string{"QA_POLL_INTERVAL_SECS": "1"},
			wantErr: "poll_interval_secs must be between 10 and 86400",
		},
		{
			name:    "unknown provider",
			envVars: map[string]string{"QA_GENERATOR_PROVIDER": "openai"},
			wantErr: "generator.provider",
		},
		{
			name:    "bad log level",
			envVars: map[string]string{"QA_LOG_LEVEL": "loud"},
			wantErr: "logging.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg, err := Load("")
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "qa-agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
jira:
  server: https://jira.example.com
  project_key: QA
  filing_rate: 2
generator:
  max_tokens: 2048
  temperature: 0.2
pipeline:
  lookback_days: 7
  scenario_markers: ["Scenario:", "Caso:"]
logging:
  development: true
`), 0o600))

	// Environment wins over the file
	t.Setenv("JIRA_PROJECT_KEY", "ENV")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://jira.example.com", cfg.Jira.Server)
	assert.Equal(t, "ENV", cfg.Jira.ProjectKey)
	assert.InDelta(t, 2.0, cfg.Jira.FilingRate, 1e-9)
	assert.Equal(t, 2048, cfg.Generator.MaxTokens)
	assert.Equal(t, 7, cfg.Pipeline.LookbackDays)
	assert.Equal(t, []string{"Scenario:", "Caso:"}, cfg.Pipeline.ScenarioMarkers)
	assert.True(t, cfg.Logging.Development)

	// Unset fields keep their defaults
	assert.Equal(t, "To Do", cfg.Jira.Status)
	assert.True(t, cfg.Pipeline.FileScenarios)
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadMalformedFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("jira: [unterminated"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestRequireCredentials(t *testing.T) {
	cfg := Default()
	err := cfg.RequireCredentials()
	require.Error(t, err)
	for _, want := range []string{"JIRA_SERVER", "JIRA_USERNAME", "JIRA_API_TOKEN", "ANTHROPIC_API_KEY"} {
		assert.Contains(t, err.Error(), want)
	}

	cfg.Generator.Provider = "gemini"
	assert.Contains(t, cfg.RequireCredentials().Error(), "GEMINI_API_KEY")
}

func TestStringRedactsSecrets(t *testing.T) {
	cfg := Default()
	cfg.Jira.APIToken = "super-secret-token"
	cfg.Generator.AnthropicAPIKey = "sk-ant-123"

	s := cfg.String()
	assert.NotContains(t, s, "super-secret-token")
	assert.NotContains(t, s, "sk-ant-123")
	assert.Contains(t, s, "<redacted>")
	assert.Contains(t, s, "Project: KCA")
}
