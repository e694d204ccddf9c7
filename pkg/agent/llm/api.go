// Package llm defines the completion types shared by every pipeline stage,
// provider transport and client middleware.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// CompletionRole represents the role of a message in a conversation.
type CompletionRole string

const (
	RoleSystem    CompletionRole = "system"
	RoleUser      CompletionRole = "user"
	RoleAssistant CompletionRole = "assistant"
)

// CompletionMessage is one role-tagged message of a request.
type CompletionMessage struct {
	Role    CompletionRole
	Content string
}

// CompletionRequest is sent to a model. Model selects the provider transport.
type CompletionRequest struct {
	Model       string
	Messages    []CompletionMessage
	MaxTokens   int
	Temperature *float64 // provider default when nil
}

// Usage reports the token counts of one call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Total returns prompt plus completion tokens.
func (u Usage) Total() int {
	return u.PromptTokens + u.CompletionTokens
}

// RateLimit is the provider's token window as reported in response headers.
// Present is false when the provider sent no rate limit headers.
type RateLimit struct {
	Limit     int
	Remaining int
	Reset     time.Duration
	Present   bool
}

// CompletionResponse is the result of a successful call.
type CompletionResponse struct {
	Content    string
	StopReason string // provider finish reason: "stop", "length", "max_tokens", ...
	Model      string
	Usage      Usage
	Header     http.Header // raw response headers, when the transport exposes them
	RateLimit  RateLimit   // filled by the rate limit middleware from Header
}

// LLMClient is implemented by provider transports and by every middleware layer.
type LLMClient interface { //nolint:revive // name kept for consistency across packages
	Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error)
}

// NewCompletionRequest builds a request for model with the given output budget.
func NewCompletionRequest(model string, maxTokens int, messages ...CompletionMessage) CompletionRequest {
	return CompletionRequest{
		Model:     model,
		Messages:  messages,
		MaxTokens: maxTokens,
	}
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant message.
func NewAssistantMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleAssistant, Content: content}
}

// Validate rejects requests no provider would accept.
func (r *CompletionRequest) Validate() error {
	if r.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}
	if len(r.Messages) == 0 {
		return fmt.Errorf("request has no messages")
	}
	if r.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive")
	}
	if r.Temperature != nil && (*r.Temperature < 0.0 || *r.Temperature > 2.0) {
		return fmt.Errorf("temperature must be between 0.0 and 2.0")
	}
	return nil
}

// SplitSystem separates system messages (joined by blank lines) from the
// conversation, for providers that take the system prompt as a separate field.
func SplitSystem(messages []CompletionMessage) (string, []CompletionMessage) {
	var system string
	rest := make([]CompletionMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}
