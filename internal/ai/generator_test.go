package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/steveyegge/qa-agent/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestBuildStoryText(t *testing.T) {
	got := BuildStoryText("  Reset password ", "\nComo usuário quero redefinir a senha.\n")
	assert.Equal(t, "Title: Reset password\n\nDescription:\nComo usuário quero redefinir a senha.", got)

	// Empty description still yields the headings
	assert.Equal(t, "Title: X\n\nDescription:\n", BuildStoryText("X", ""))
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("Title: Login")
	assert.Contains(t, prompt, "Title: Login")
	assert.Contains(t, prompt, `"Scenario:"`)
	assert.Contains(t, prompt, "success scenarios")
	assert.Contains(t, prompt, "failure scenarios")
	assert.Contains(t, prompt, "edge cases")
}

func TestCleanOutput(t *testing.T) {
	got, err := cleanOutput("\n  Scenario: A\nGiven x  \n")
	require.NoError(t, err)
	assert.Equal(t, "Scenario: A\nGiven x", got)

	_, err = cleanOutput(" \n\t ")
	assert.ErrorIs(t, err, types.ErrEmptyGeneration)
}

func TestNewGenerator(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown provider", func(t *testing.T) {
		_, err := NewGenerator(ctx, Config{Provider: "openai", APIKey: "k"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown generator provider")
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := NewGenerator(ctx, Config{Provider: ProviderAnthropic})
		require.Error(t, err)
	})

	t.Run("anthropic default", func(t *testing.T) {
		g, err := NewGenerator(ctx, Config{APIKey: "k"})
		require.NoError(t, err)
		ag, ok := g.(*AnthropicGenerator)
		require.True(t, ok, "expected *AnthropicGenerator, got %T", g)
		assert.Equal(t, ModelSonnet, ag.model)
		assert.Equal(t, int64(1000), ag.maxTokens)
	})

	t.Run("gemini", func(t *testing.T) {
		g, err := NewGenerator(ctx, Config{Provider: ProviderGemini, APIKey: "k"})
		require.NoError(t, err)
		gg, ok := g.(*GeminiGenerator)
		require.True(t, ok, "expected *GeminiGenerator, got %T", g)
		assert.Equal(t, ModelGeminiFlash, gg.model)
	})
}

func TestAnthropicGenerator(t *testing.T) {
	var calls atomic.Int32
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-test",
			"content": [
				{"type": "text", "text": "Scenario: Sucesso\nDado que"},
				{"type": "text", "text": " o usuário existe\n"}
			],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 12, "output_tokens": 34}
		}`)
	}))
	defer srv.Close()

	g, err := NewAnthropicGenerator(Config{
		APIKey:      "test-key",
		Model:       "claude-test",
		MaxTokens:   256,
		Temperature: 0.7,
		BaseURL:     srv.URL,
		Logger:      zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	text, err := g.GenerateTestCases(context.Background(), "Title: Login")
	require.NoError(t, err)
	assert.Equal(t, "Scenario: Sucesso\nDado que o usuário existe", text)
	assert.Equal(t, int32(1), calls.Load())

	assert.Equal(t, "claude-test", gotBody["model"])
	assert.EqualValues(t, 256, gotBody["max_tokens"])
	assert.InDelta(t, 0.7, gotBody["temperature"], 1e-9)
}

func TestAnthropicGeneratorNoRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"overloaded_error","message":"busy"}}`)
	}))
	defer srv.Close()

	g, err := NewAnthropicGenerator(Config{APIKey: "k", BaseURL: srv.URL, Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)

	_, err = g.GenerateTestCases(context.Background(), "story")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "generator must not retry")
}

func TestAnthropicGeneratorEmptyReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_2", "type": "message", "role": "assistant", "model": "m",
			"content": [{"type": "text", "text": "   "}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 1, "output_tokens": 1}
		}`)
	}))
	defer srv.Close()

	g, err := NewAnthropicGenerator(Config{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = g.GenerateTestCases(context.Background(), "story")
	assert.True(t, errors.Is(err, types.ErrEmptyGeneration), "got %v", err)
}

func TestAnthropicGeneratorTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	g, err := NewAnthropicGenerator(Config{
		APIKey:  "k",
		BaseURL: srv.URL,
		Timeout: 50 * time.Millisecond,
	})
	require.NoError(t, err)

	start := time.Now()
	_, err = g.GenerateTestCases(context.Background(), "story")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestGeminiGenerator(t *testing.T) {
	var gotPath string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"candidates": [{
				"content": {"role": "model", "parts": [{"text": "Scenario: Falha\nDado que a senha é inválida"}]},
				"finishReason": "STOP"
			}],
			"usageMetadata": {"promptTokenCount": 5, "candidatesTokenCount": 9, "totalTokenCount": 14}
		}`)
	}))
	defer srv.Close()

	g, err := NewGeminiGenerator(context.Background(), Config{
		Provider:    ProviderGemini,
		APIKey:      "k",
		Model:       "gemini-test",
		Temperature: 0.7,
		BaseURL:     srv.URL,
		Logger:      zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	text, err := g.GenerateTestCases(context.Background(), "Title: Login")
	require.NoError(t, err)
	assert.Equal(t, "Scenario: Falha\nDado que a senha é inválida", text)
	assert.True(t, strings.HasSuffix(gotPath, "models/gemini-test:generateContent"), "path %s", gotPath)

	genCfg, ok := gotBody["generationConfig"].(map[string]any)
	require.True(t, ok, "generationConfig expected in %v", gotBody)
	assert.EqualValues(t, 1000, genCfg["maxOutputTokens"])
}
