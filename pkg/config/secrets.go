package config

import (
	"errors"
	"fmt"
	"os"
)

// ErrMissingAPIKey is returned when a provider's API key is not set.
var ErrMissingAPIKey = errors.New("missing API key")

// API key environment variable names.
const (
	EnvGroqAPIKey      = "GROQ_API_KEY"
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvGeminiAPIKey    = "GEMINI_API_KEY"
	EnvGoogleAPIKey    = "GOOGLE_API_KEY"
	EnvTavilyAPIKey    = "TAVILY_API_KEY"
	EnvOllamaHost      = "OLLAMA_HOST"
)

// ProviderTavily names the search provider for key lookups.
const ProviderTavily = "tavily"

//nolint:gochecknoglobals // static lookup table
var providerKeyEnv = map[string][]string{
	ProviderGroq:      {EnvGroqAPIKey},
	ProviderOpenAI:    {EnvOpenAIAPIKey},
	ProviderAnthropic: {EnvAnthropicAPIKey},
	ProviderGoogle:    {EnvGeminiAPIKey, EnvGoogleAPIKey},
	ProviderTavily:    {EnvTavilyAPIKey},
}

// GetAPIKey returns the API key for provider from the environment.
// Ollama needs no key and always returns "".
func GetAPIKey(provider string) (string, error) {
	if provider == ProviderOllama {
		return "", nil
	}
	names, ok := providerKeyEnv[provider]
	if !ok {
		return "", fmt.Errorf("unknown provider %q", provider)
	}
	for _, name := range names {
		if value := os.Getenv(name); value != "" {
			return value, nil
		}
	}
	return "", fmt.Errorf("%w: set %s for provider %s", ErrMissingAPIKey, names[0], provider)
}

// OllamaHost returns OLLAMA_HOST when set, otherwise the configured host.
func (c *Config) OllamaHost() string {
	if host := os.Getenv(EnvOllamaHost); host != "" {
		return host
	}
	return c.Providers.OllamaHost
}
