package ratelimit

import (
	"strings"

	"maestro/pkg/agent/llm"
	"maestro/pkg/utils"
)

// TokenEstimator estimates the number of tokens needed for a request.
type TokenEstimator interface {
	// EstimatePrompt estimates the number of prompt tokens for a request.
	EstimatePrompt(req llm.CompletionRequest) int
}

// DefaultTokenEstimator provides token estimation using TikToken.
type DefaultTokenEstimator struct {
	counter *utils.TokenCounter
}

// NewDefaultTokenEstimator creates a new default token estimator. If the
// tiktoken codec cannot be loaded, estimation falls back to 4 chars per token.
func NewDefaultTokenEstimator() *DefaultTokenEstimator {
	counter, err := utils.NewTokenCounter("gpt-4")
	if err != nil {
		counter = nil
	}
	return &DefaultTokenEstimator{counter: counter}
}

// EstimatePrompt estimates prompt tokens using TikToken-based counting.
//
//nolint:gocritic // request passed by value to match LLMClient
func (e *DefaultTokenEstimator) EstimatePrompt(req llm.CompletionRequest) int {
	var b strings.Builder
	for i := range req.Messages {
		b.WriteString(req.Messages[i].Content)
		b.WriteByte('\n')
	}
	return e.counter.CountTokens(b.String())
}
