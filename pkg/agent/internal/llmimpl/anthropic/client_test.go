package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maestro/pkg/agent/llm"
	"maestro/pkg/agent/llmerrors"
)

func TestEnsureAlternation(t *testing.T) {
	system, msgs, err := ensureAlternation([]llm.CompletionMessage{
		llm.NewSystemMessage("Previous sub-agent tasks:"),
		llm.NewUserMessage("first"),
		llm.NewUserMessage("second"),
		llm.NewAssistantMessage("answer"),
		llm.NewUserMessage("continue"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Previous sub-agent tasks:", system)
	require.Len(t, msgs, 3)
	assert.Equal(t, "first\n\nsecond", msgs[0].Content)
	assert.Equal(t, llm.RoleAssistant, msgs[1].Role)

	_, _, err = ensureAlternation([]llm.CompletionMessage{llm.NewSystemMessage("only system")})
	assert.Error(t, err)

	_, _, err = ensureAlternation([]llm.CompletionMessage{llm.NewAssistantMessage("a")})
	assert.Error(t, err)

	_, _, err = ensureAlternation([]llm.CompletionMessage{llm.NewUserMessage("q"), llm.NewAssistantMessage("a")})
	assert.Error(t, err)
}

func TestCompleteSuccess(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant-test", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("anthropic-ratelimit-tokens-remaining", "77000")
		_, _ = w.Write([]byte(`{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-sonnet-4-5",
			"content": [{"type": "text", "text": "Refined "}, {"type": "text", "text": "output"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 300, "output_tokens": 25}
		}`))
	}))
	defer srv.Close()

	client := New(Options{APIKey: "sk-ant-test", BaseURL: srv.URL, HTTPClient: srv.Client()})
	resp, err := client.Complete(context.Background(), llm.NewCompletionRequest("claude-sonnet-4-5", 5000,
		llm.NewSystemMessage("Refine the results."),
		llm.NewUserMessage("Objective: add numbers"),
	))
	require.NoError(t, err)

	assert.Equal(t, "Refined output", resp.Content)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, 300, resp.Usage.PromptTokens)
	assert.Equal(t, 25, resp.Usage.CompletionTokens)
	assert.Equal(t, "77000", resp.Header.Get("anthropic-ratelimit-tokens-remaining"))

	assert.EqualValues(t, 5000, body["max_tokens"])
	system, ok := body["system"].([]any)
	require.True(t, ok)
	assert.Equal(t, "Refine the results.", system[0].(map[string]any)["text"])
}

func TestCompleteErrors(t *testing.T) {
	tests := []struct {
		status int
		want   llmerrors.ErrorType
	}{
		{http.StatusTooManyRequests, llmerrors.ErrorTypeRateLimit},
		{http.StatusUnauthorized, llmerrors.ErrorTypeAuth},
		{529, llmerrors.ErrorTypeTransient},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "2")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"type": "error", "error": {"type": "overloaded_error", "message": "busy"}}`))
			}))
			defer srv.Close()

			client := New(Options{APIKey: "k", BaseURL: srv.URL, HTTPClient: srv.Client()})
			_, err := client.Complete(context.Background(), llm.NewCompletionRequest("claude-sonnet-4-5", 10, llm.NewUserMessage("x")))
			assert.Equal(t, tt.want, llmerrors.TypeOf(err))
			assert.Equal(t, tt.status, llmerrors.StatusOf(err))
		})
	}
}

func TestCompleteBadPrompt(t *testing.T) {
	client := New(Options{APIKey: "k"})
	_, err := client.Complete(context.Background(), llm.NewCompletionRequest("claude-sonnet-4-5", 10, llm.NewSystemMessage("only")))
	assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeBadPrompt))
}
