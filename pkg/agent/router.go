package agent

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"maestro/pkg/agent/internal/llmimpl/anthropic"
	"maestro/pkg/agent/internal/llmimpl/google"
	"maestro/pkg/agent/internal/llmimpl/ollama"
	"maestro/pkg/agent/internal/llmimpl/openaiofficial"
	"maestro/pkg/agent/llm"
	"maestro/pkg/agent/llmerrors"
	"maestro/pkg/config"
)

// Router dispatches each request to the transport of the model's provider.
// Transports are built on first use and then reused.
type Router struct {
	cfg        *config.Config
	httpClient *http.Client

	mu         sync.Mutex
	transports map[string]llm.LLMClient
}

// NewRouter creates a router. Entries in overrides replace the built-in
// transport for their provider.
func NewRouter(cfg *config.Config, httpClient *http.Client, overrides map[string]llm.LLMClient) *Router {
	transports := make(map[string]llm.LLMClient, len(overrides))
	for provider, t := range overrides {
		transports[provider] = t
	}
	return &Router{cfg: cfg, httpClient: httpClient, transports: transports}
}

// Transport returns the transport for provider, creating it if needed.
func (r *Router) Transport(provider string) (llm.LLMClient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.transports[provider]; ok {
		return t, nil
	}
	t, err := r.build(provider)
	if err != nil {
		return nil, err
	}
	r.transports[provider] = t
	return t, nil
}

func (r *Router) build(provider string) (llm.LLMClient, error) {
	apiKey, err := config.GetAPIKey(provider)
	if err != nil {
		return nil, fmt.Errorf("failed to get API key for provider %s: %w", provider, err)
	}

	switch provider {
	case config.ProviderGroq:
		return openaiofficial.New(openaiofficial.Options{
			APIKey: apiKey, BaseURL: r.cfg.Providers.GroqBaseURL, HTTPClient: r.httpClient,
		}), nil
	case config.ProviderOpenAI:
		return openaiofficial.New(openaiofficial.Options{
			APIKey: apiKey, BaseURL: r.cfg.Providers.OpenAIBaseURL, HTTPClient: r.httpClient,
		}), nil
	case config.ProviderAnthropic:
		return anthropic.New(anthropic.Options{
			APIKey: apiKey, BaseURL: r.cfg.Providers.AnthropicBaseURL, HTTPClient: r.httpClient,
		}), nil
	case config.ProviderGoogle:
		return google.New(google.Options{
			APIKey: apiKey, BaseURL: r.cfg.Providers.GoogleBaseURL, HTTPClient: r.httpClient,
		}), nil
	case config.ProviderOllama:
		return ollama.New(r.cfg.OllamaHost(), r.httpClient), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

// Complete implements llm.LLMClient.
//
//nolint:gocritic // CompletionRequest passed by value to match interface
func (r *Router) Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	provider, err := config.GetModelProvider(req.Model)
	if err != nil {
		return llm.CompletionResponse{}, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeBadPrompt, err, err.Error())
	}
	t, err := r.Transport(provider)
	if err != nil {
		return llm.CompletionResponse{}, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeAuth, err, err.Error())
	}
	return t.Complete(ctx, req)
}
