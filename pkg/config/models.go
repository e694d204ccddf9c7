package config

import (
	"fmt"
	"strings"
)

// Provider identifiers.
const (
	ProviderGroq      = "groq"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGoogle    = "google"
	ProviderOllama    = "ollama"
)

// Groq model ids used by the default pipeline stages.
const (
	ModelLlama3_8B  = "llama3-8b-8192"
	ModelLlama3_70B = "llama3-70b-8192"
	ModelMixtral    = "mixtral-8x7b-32768"
	ModelGemma7B    = "gemma-7b-it"
)

// ModelInfo holds the provider and published limits of a model.
type ModelInfo struct {
	Provider        string // API provider (groq, openai, anthropic, google, ollama)
	TokensPerMinute int    // Provider tokens-per-minute limit (0 = unlimited)
	RequestsPerDay  int    // Provider requests-per-day limit (0 = unlimited)
	MaxOutputTokens int    // Maximum output tokens per request
}

// KnownModels registry contains provider and rate limit information for common models.
// Unknown models are inferred via ProviderPatterns.
//
//nolint:gochecknoglobals // Intentional global for static model registry
var KnownModels = map[string]ModelInfo{
	ModelLlama3_70B: {Provider: ProviderGroq, TokensPerMinute: 6000, RequestsPerDay: 14400, MaxOutputTokens: 8192},
	ModelLlama3_8B:  {Provider: ProviderGroq, TokensPerMinute: 30000, RequestsPerDay: 14400, MaxOutputTokens: 8192},
	ModelGemma7B:    {Provider: ProviderGroq, TokensPerMinute: 15000, RequestsPerDay: 14400, MaxOutputTokens: 8192},
	ModelMixtral:    {Provider: ProviderGroq, TokensPerMinute: 5000, RequestsPerDay: 14400, MaxOutputTokens: 32768},

	"gpt-4o":      {Provider: ProviderOpenAI, MaxOutputTokens: 16384},
	"gpt-4o-mini": {Provider: ProviderOpenAI, MaxOutputTokens: 16384},

	"claude-sonnet-4-5":         {Provider: ProviderAnthropic, MaxOutputTokens: 64000},
	"claude-3-5-haiku-20241022": {Provider: ProviderAnthropic, MaxOutputTokens: 8192},

	"gemini-2.5-flash": {Provider: ProviderGoogle, MaxOutputTokens: 65536},
	"gemini-2.5-pro":   {Provider: ProviderGoogle, MaxOutputTokens: 65536},
}

// ProviderPattern maps a model name prefix to its provider.
type ProviderPattern struct {
	Prefix   string
	Provider string
}

// ProviderPatterns defines rules for inferring providers from unknown model names.
// Open-weight model families resolve to Groq; prefix a name with "ollama:" to
// run it on a local Ollama server instead.
//
//nolint:gochecknoglobals // Intentional global for inference rules
var ProviderPatterns = []ProviderPattern{
	{OllamaModelPrefix, ProviderOllama},
	{"claude", ProviderAnthropic},
	{"gpt", ProviderOpenAI},
	{"o1", ProviderOpenAI},
	{"o3", ProviderOpenAI},
	{"o4", ProviderOpenAI},
	{"gemini", ProviderGoogle},
	{"llama", ProviderGroq},
	{"mixtral", ProviderGroq},
	{"gemma", ProviderGroq},
	{"qwen", ProviderGroq},
	{"deepseek", ProviderGroq},
}

// OllamaModelPrefix marks a model id that should be served by a local Ollama server.
const OllamaModelPrefix = "ollama:"

// GetModelProvider returns the provider for a model name.
// KnownModels is checked first, then ProviderPatterns.
func GetModelProvider(modelName string) (string, error) {
	if info, exists := KnownModels[modelName]; exists {
		return info.Provider, nil
	}

	for i := range ProviderPatterns {
		if strings.HasPrefix(modelName, ProviderPatterns[i].Prefix) {
			return ProviderPatterns[i].Provider, nil
		}
	}

	return "", fmt.Errorf("unknown model '%s': no known provider mapping or pattern match - cannot determine API provider", modelName)
}

// GetModelInfo returns the ModelInfo for a model and whether it was found in
// KnownModels. Unknown models get an inferred provider and no rate limits.
func GetModelInfo(modelName string) (ModelInfo, bool) {
	if info, exists := KnownModels[modelName]; exists {
		return info, true
	}

	provider, _ := GetModelProvider(modelName)
	return ModelInfo{
		Provider:        provider,
		MaxOutputTokens: 4096,
	}, false
}

// ProviderModelName strips routing prefixes from a model id before it is sent
// to the provider API.
func ProviderModelName(modelName string) string {
	return strings.TrimPrefix(modelName, OllamaModelPrefix)
}
