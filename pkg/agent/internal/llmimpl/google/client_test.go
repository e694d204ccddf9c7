package google

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"maestro/pkg/agent/llm"
	"maestro/pkg/agent/llmerrors"
)

func TestConvertMessagesToGemini(t *testing.T) {
	contents, system, err := convertMessagesToGemini([]llm.CompletionMessage{
		llm.NewSystemMessage("a"),
		llm.NewSystemMessage("b"),
		llm.NewUserMessage("question"),
		llm.NewAssistantMessage("partial"),
		llm.NewUserMessage("continue"),
	})
	require.NoError(t, err)
	assert.Equal(t, "a\n\nb", system)
	require.Len(t, contents, 3)
	assert.Equal(t, "model", contents[1].Role)
	assert.Equal(t, "partial", contents[1].Parts[0].Text)

	_, _, err = convertMessagesToGemini(nil)
	assert.Error(t, err)
}

func TestGetStopReason(t *testing.T) {
	mk := func(r genai.FinishReason) *genai.GenerateContentResponse {
		return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{FinishReason: r}}}
	}
	assert.Equal(t, "end_turn", getStopReason(mk(genai.FinishReasonStop)))
	assert.Equal(t, "max_tokens", getStopReason(mk(genai.FinishReasonMaxTokens)))
	assert.Equal(t, "safety", getStopReason(mk(genai.FinishReasonSafety)))
	assert.Equal(t, "unknown", getStopReason(nil))
}

func TestCompleteSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.Contains(r.URL.Path, "gemini-2.5-flash:generateContent"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "hello"}]}, "finishReason": "STOP"}],
			"usageMetadata": {"promptTokenCount": 12, "candidatesTokenCount": 3},
			"modelVersion": "gemini-2.5-flash"
		}`))
	}))
	defer srv.Close()

	client := New(Options{APIKey: "g-key", BaseURL: srv.URL, HTTPClient: srv.Client()})
	resp, err := client.Complete(context.Background(), llm.NewCompletionRequest("gemini-2.5-flash", 100, llm.NewUserMessage("hi")))
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Content)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, 12, resp.Usage.PromptTokens)
	assert.Equal(t, 3, resp.Usage.CompletionTokens)
}

func TestCompleteRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"code": 429, "message": "quota", "status": "RESOURCE_EXHAUSTED"}}`))
	}))
	defer srv.Close()

	client := New(Options{APIKey: "g-key", BaseURL: srv.URL, HTTPClient: srv.Client()})
	_, err := client.Complete(context.Background(), llm.NewCompletionRequest("gemini-2.5-flash", 100, llm.NewUserMessage("hi")))
	require.Error(t, err)
	assert.Equal(t, llmerrors.ErrorTypeRateLimit, llmerrors.TypeOf(err))
}
