package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/steveyegge/qa-agent/internal/types"
	"go.uber.org/zap"
)

// Generator turns a user story into test-case text.
// Implementations make one model call per invocation and never retry.
type Generator interface {
	GenerateTestCases(ctx context.Context, storyText string) (string, error)
}

// Provider names a model backend
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
)

// IsValid checks if the provider value is valid
func (p Provider) IsValid() bool {
	switch p {
	case ProviderAnthropic, ProviderGemini:
		return true
	}
	return false
}

// Model defaults per provider
const (
	// ModelSonnet is the default Anthropic model
	ModelSonnet = "claude-sonnet-4-5-20250929"

	// ModelGeminiFlash is the default Gemini model
	ModelGeminiFlash = "gemini-2.5-flash"
)

// Config holds generator configuration
type Config struct {
	Provider    Provider      // Default: anthropic
	APIKey      string        // Required
	Model       string        // Default depends on provider
	MaxTokens   int           // Default: 1000
	Temperature float64       // Default: 0.7
	Timeout     time.Duration // Per-call timeout (default: 60s)
	BaseURL     string        // Optional API endpoint override
	Logger      *zap.Logger
}

func (c *Config) applyDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderAnthropic
	}
	if c.Model == "" {
		switch c.Provider {
		case ProviderGemini:
			c.Model = ModelGeminiFlash
		default:
			c.Model = ModelSonnet
		}
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 1000
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// NewGenerator builds the generator selected by cfg.Provider
func NewGenerator(ctx context.Context, cfg Config) (Generator, error) {
	cfg.applyDefaults()
	if !cfg.Provider.IsValid() {
		return nil, fmt.Errorf("unknown generator provider %q (expected %q or %q)",
			cfg.Provider, ProviderAnthropic, ProviderGemini)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s API key not set", cfg.Provider)
	}

	switch cfg.Provider {
	case ProviderGemini:
		return NewGeminiGenerator(ctx, cfg)
	default:
		return NewAnthropicGenerator(cfg)
	}
}

// BuildStoryText formats a story for the prompt
func BuildStoryText(title, description string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n\n", strings.TrimSpace(title))
	b.WriteString("Description:\n")
	b.WriteString(strings.TrimSpace(description))
	return b.String()
}

// BuildPrompt wraps story text in the QA instructions
func BuildPrompt(storyText string) string {
	return fmt.Sprintf(`You are a QA specialist. Given the user story below, write detailed test cases.
Cover success scenarios, failure scenarios and edge cases where they apply.

Format rules:
- Start every scenario on its own line with "Scenario:" followed by a short name.
- Under each scenario, write the steps in Gherkin style, one per line
  (Given / When / Then / And / But).
- Write in the same language as the user story.
- Do not add text before the first scenario.

User story:
%s

Test cases:
`, strings.TrimSpace(storyText))
}

// cleanOutput trims model output and rejects blank results
func cleanOutput(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", types.ErrEmptyGeneration
	}
	return text, nil
}
