// Package openaiofficial implements llm.LLMClient over the OpenAI Chat
// Completions API using the official SDK. It serves Groq through Groq's
// OpenAI-compatible endpoint as well as OpenAI itself.
package openaiofficial

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"maestro/pkg/agent/llm"
	"maestro/pkg/agent/llmerrors"
)

// Options configures the client.
type Options struct {
	APIKey     string
	BaseURL    string       // "" = SDK default (api.openai.com)
	HTTPClient *http.Client // nil = http.DefaultClient
}

// Client wraps the official OpenAI client to implement llm.LLMClient.
type Client struct {
	client openai.Client
}

// New creates a chat completions client. SDK retries are disabled; retrying
// is done by the retry middleware so every attempt is observed.
func New(opts Options) *Client {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		base := opts.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		reqOpts = append(reqOpts, option.WithBaseURL(base))
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}
	return &Client{client: openai.NewClient(reqOpts...)}
}

// Complete implements the llm.LLMClient interface.
//
//nolint:gocritic // CompletionRequest size acceptable for interface consistency
func (c *Client) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	params := openai.ChatCompletionNewParams{
		Model:     openai.ChatModel(in.Model),
		Messages:  convertMessages(in.Messages),
		MaxTokens: openai.Int(int64(in.MaxTokens)),
	}
	if in.Temperature != nil {
		params.Temperature = openai.Float(*in.Temperature)
	}

	var raw *http.Response
	resp, err := c.client.Chat.Completions.New(ctx, params, option.WithResponseInto(&raw))
	if err != nil {
		return llm.CompletionResponse{}, classifyError(err)
	}

	if len(resp.Choices) == 0 {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "no choices in chat completion response")
	}

	out := llm.CompletionResponse{
		Content:    resp.Choices[0].Message.Content,
		StopReason: string(resp.Choices[0].FinishReason),
		Model:      resp.Model,
		Usage: llm.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
		},
	}
	if raw != nil {
		out.Header = raw.Header
	}
	return out, nil
}

func convertMessages(messages []llm.CompletionMessage) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for i := range messages {
		switch messages[i].Role {
		case llm.RoleSystem:
			out = append(out, openai.SystemMessage(messages[i].Content))
		case llm.RoleAssistant:
			out = append(out, openai.AssistantMessage(messages[i].Content))
		default:
			out = append(out, openai.UserMessage(messages[i].Content))
		}
	}
	return out
}

// classifyError converts SDK errors to llmerrors types, keeping the status
// code, headers and a body stub for retry logging.
func classifyError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		var header http.Header
		if apiErr.Response != nil {
			header = apiErr.Response.Header
		}
		return llmerrors.FromStatus(apiErr.StatusCode, header, apiErr.RawJSON(), err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeTransient, err, fmt.Sprintf("request interrupted: %v", err))
	}
	return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeTransient, err, fmt.Sprintf("chat completion request failed: %v", err))
}
