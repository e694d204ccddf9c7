package metrics

import (
	"context"
	"time"

	"maestro/pkg/agent/llm"
	"maestro/pkg/agent/llmerrors"
	"maestro/pkg/utils"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// UsageExtractor returns the token usage of a request and response.
type UsageExtractor func(req llm.CompletionRequest, resp llm.CompletionResponse) (promptTokens, completionTokens int)

// DefaultUsageExtractor uses the provider-reported usage and falls back to
// TikToken counting when the provider returned none.
//
//nolint:gocritic // request passed by value to match LLMClient
func DefaultUsageExtractor(req llm.CompletionRequest, resp llm.CompletionResponse) (promptTokens, completionTokens int) {
	if resp.Usage.PromptTokens > 0 || resp.Usage.CompletionTokens > 0 {
		return resp.Usage.PromptTokens, resp.Usage.CompletionTokens
	}

	var promptText string
	for i := range req.Messages {
		promptText += req.Messages[i].Content + "\n"
	}
	return utils.CountTokensSimple(promptText), utils.CountTokensSimple(resp.Content)
}

// Middleware returns a middleware function that records metrics for every attempt.
// Placed inside the retry middleware it observes each attempt separately.
func Middleware(recorder Recorder, usageExtractor UsageExtractor) llm.Middleware {
	if recorder == nil {
		recorder = Nop()
	}
	if usageExtractor == nil {
		usageExtractor = DefaultUsageExtractor
	}

	return func(next llm.LLMClient) llm.LLMClient {
		return llm.ClientFunc(func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
			start := time.Now()
			resp, err := next.Complete(ctx, req)
			duration := time.Since(start)

			var promptTokens, completionTokens int
			errorType := ""
			if err == nil {
				promptTokens, completionTokens = usageExtractor(req, resp)
			} else {
				errorType = llmerrors.TypeOf(err).String()
			}

			recorder.ObserveRequest(req.Model, llm.StageFrom(ctx), promptTokens, completionTokens, err == nil, errorType, duration)
			return resp, err
		})
	}
}
