// Package config provides configuration loading, validation and model
// registry lookups for the maestro pipeline.
package config

import (
	"errors"
	"fmt"
	"time"
)

// SchemaVersion is bumped for breaking changes to the config file format.
const SchemaVersion = "1.0"

// Default stage settings.
const (
	DefaultOrchestratorMaxTokens = 5000
	DefaultSubAgentMaxTokens     = 4000
	DefaultRefinerMaxTokens      = 5000

	DefaultSubAgentMaxContinuations = 8
	DefaultRefinerMaxContinuations  = 1
)

// Default resilience settings.
const (
	DefaultMaxRetries        = 10
	DefaultBaseDelay         = time.Second
	DefaultRetryAfter        = time.Second
	DefaultGovernorThreshold = 100
	DefaultRequestTimeout    = 5 * time.Minute
)

// Default provider endpoints.
const (
	DefaultGroqBaseURL   = "https://api.groq.com/openai/v1/"
	DefaultOllamaHost    = "http://localhost:11434"
	DefaultTavilyBaseURL = "https://api.tavily.com"
)

// Default output and monitoring settings.
const (
	DefaultOutputDir      = "."
	DefaultArchiveFile    = "maestro-runs.db"
	DefaultMetricsAddress = "127.0.0.1:9464"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid config")

// StageConfig configures one pipeline stage.
type StageConfig struct {
	Model               string   `json:"model" yaml:"model"`                                                   // Model id (mapped to provider via KnownModels)
	MaxTokens           int      `json:"max_tokens" yaml:"max_tokens"`                                         // Max output tokens per call
	ContinuationCeiling int      `json:"continuation_ceiling,omitempty" yaml:"continuation_ceiling,omitempty"` // Completion tokens at or above this trigger a continuation (0 = MaxTokens)
	MaxContinuations    int      `json:"max_continuations,omitempty" yaml:"max_continuations,omitempty"`       // Upper bound on continuation calls
	Temperature         *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`                   // Provider default when nil
}

// Ceiling returns the completion-token count that marks a response as truncated.
func (s StageConfig) Ceiling() int {
	if s.ContinuationCeiling > 0 {
		return s.ContinuationCeiling
	}
	return s.MaxTokens
}

// StagesConfig groups the three model-backed stages.
type StagesConfig struct {
	Orchestrator StageConfig `json:"orchestrator" yaml:"orchestrator"`
	SubAgent     StageConfig `json:"subagent" yaml:"subagent"`
	Refiner      StageConfig `json:"refiner" yaml:"refiner"`
}

// ResilienceConfig defines the retry and rate limit behavior of the client.
type ResilienceConfig struct {
	MaxRetries        int      `json:"max_retries" yaml:"max_retries"`                 // Attempts per request (including the first)
	BaseDelay         Duration `json:"base_delay" yaml:"base_delay"`                   // Backoff delay = base × 2^attempt
	MaxDelay          Duration `json:"max_delay,omitempty" yaml:"max_delay,omitempty"` // Backoff cap (0 = uncapped)
	DefaultRetryAfter Duration `json:"default_retry_after" yaml:"default_retry_after"` // Sleep on 429 without a usable retry-after header
	RequestTimeout    Duration `json:"request_timeout" yaml:"request_timeout"`         // Per-attempt timeout (0 = none)
	GovernorThreshold int      `json:"governor_threshold" yaml:"governor_threshold"`   // Sleep until reset when remaining tokens drop below this
	Preflight         bool     `json:"preflight" yaml:"preflight"`                     // Opt-in wait for the local minute budget before sending
}

// PipelineConfig bounds the driver loop.
type PipelineConfig struct {
	MaxIterations int `json:"max_iterations" yaml:"max_iterations"` // Orchestrator calls before forcing refinement (0 = unbounded)
}

// SearchConfig configures the Tavily search augmenter.
type SearchConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`         // Default for the use-search prompt
	BaseURL    string `json:"base_url" yaml:"base_url"`       // Tavily API root
	Depth      string `json:"depth" yaml:"depth"`             // "basic" or "advanced"
	MaxRetries int    `json:"max_retries" yaml:"max_retries"` // Attempts on 429/5xx
}

// OutputConfig controls where run artifacts are written.
type OutputConfig struct {
	Dir         string `json:"dir" yaml:"dir"`                   // Base directory for project folders and transcripts
	Scaffold    bool   `json:"scaffold" yaml:"scaffold"`         // Create the project folder tree and files
	Transcript  bool   `json:"transcript" yaml:"transcript"`     // Write the exchange transcript markdown file
	ArchivePath string `json:"archive_path" yaml:"archive_path"` // SQLite run archive ("" disables)
	LogDir      string `json:"log_dir" yaml:"log_dir"`           // Log file directory ("" logs to stderr)
}

// MetricsConfig defines configuration for metrics collection.
type MetricsConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`         // Whether Prometheus metrics are collected
	ListenAddr string `json:"listen_addr" yaml:"listen_addr"` // Serve /status and /metrics during a run ("" disables)
	Namespace  string `json:"namespace" yaml:"namespace"`     // Metrics namespace for grouping
}

// ProvidersConfig overrides provider endpoints.
type ProvidersConfig struct {
	GroqBaseURL      string `json:"groq_base_url" yaml:"groq_base_url"`
	OpenAIBaseURL    string `json:"openai_base_url,omitempty" yaml:"openai_base_url,omitempty"`
	AnthropicBaseURL string `json:"anthropic_base_url,omitempty" yaml:"anthropic_base_url,omitempty"`
	GoogleBaseURL    string `json:"google_base_url,omitempty" yaml:"google_base_url,omitempty"`
	OllamaHost       string `json:"ollama_host" yaml:"ollama_host"`
}

// ModelLimits overrides the published limits of a model in KnownModels.
type ModelLimits struct {
	TokensPerMinute int `json:"tokens_per_minute" yaml:"tokens_per_minute"`
	RequestsPerDay  int `json:"requests_per_day" yaml:"requests_per_day"`
}

// Config is the complete configuration of a maestro run.
type Config struct {
	SchemaVersion string                 `json:"schema_version" yaml:"schema_version"`
	Stages        StagesConfig           `json:"stages" yaml:"stages"`
	Resilience    ResilienceConfig       `json:"resilience" yaml:"resilience"`
	Pipeline      PipelineConfig         `json:"pipeline" yaml:"pipeline"`
	Search        SearchConfig           `json:"search" yaml:"search"`
	Output        OutputConfig           `json:"output" yaml:"output"`
	Metrics       MetricsConfig          `json:"metrics" yaml:"metrics"`
	Providers     ProvidersConfig        `json:"providers" yaml:"providers"`
	Models        map[string]ModelLimits `json:"models,omitempty" yaml:"models,omitempty"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		SchemaVersion: SchemaVersion,
		Stages: StagesConfig{
			Orchestrator: StageConfig{Model: ModelLlama3_8B, MaxTokens: DefaultOrchestratorMaxTokens},
			SubAgent: StageConfig{
				Model:            ModelMixtral,
				MaxTokens:        DefaultSubAgentMaxTokens,
				MaxContinuations: DefaultSubAgentMaxContinuations,
			},
			Refiner: StageConfig{
				Model:            ModelLlama3_70B,
				MaxTokens:        DefaultRefinerMaxTokens,
				MaxContinuations: DefaultRefinerMaxContinuations,
			},
		},
		Resilience: ResilienceConfig{
			MaxRetries:        DefaultMaxRetries,
			BaseDelay:         Duration(DefaultBaseDelay),
			DefaultRetryAfter: Duration(DefaultRetryAfter),
			RequestTimeout:    Duration(DefaultRequestTimeout),
			GovernorThreshold: DefaultGovernorThreshold,
			Preflight:         false,
		},
		Search: SearchConfig{
			BaseURL:    DefaultTavilyBaseURL,
			Depth:      "advanced",
			MaxRetries: 3,
		},
		Output: OutputConfig{
			Dir:         DefaultOutputDir,
			Scaffold:    true,
			Transcript:  true,
			ArchivePath: DefaultArchiveFile,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "maestro",
		},
		Providers: ProvidersConfig{
			GroqBaseURL: DefaultGroqBaseURL,
			OllamaHost:  DefaultOllamaHost,
		},
	}
}

// applyDefaults fills zero values that would otherwise make the config unusable.
// Zero continuation counts and governor thresholds are meaningful and kept.
func applyDefaults(cfg *Config) {
	def := DefaultConfig()

	if cfg.SchemaVersion == "" {
		cfg.SchemaVersion = SchemaVersion
	}
	applyStageDefaults(&cfg.Stages.Orchestrator, def.Stages.Orchestrator)
	applyStageDefaults(&cfg.Stages.SubAgent, def.Stages.SubAgent)
	applyStageDefaults(&cfg.Stages.Refiner, def.Stages.Refiner)

	if cfg.Resilience.MaxRetries == 0 {
		cfg.Resilience.MaxRetries = def.Resilience.MaxRetries
	}
	if cfg.Resilience.BaseDelay == 0 {
		cfg.Resilience.BaseDelay = def.Resilience.BaseDelay
	}
	if cfg.Resilience.DefaultRetryAfter == 0 {
		cfg.Resilience.DefaultRetryAfter = def.Resilience.DefaultRetryAfter
	}
	if cfg.Search.BaseURL == "" {
		cfg.Search.BaseURL = def.Search.BaseURL
	}
	if cfg.Search.Depth == "" {
		cfg.Search.Depth = def.Search.Depth
	}
	if cfg.Search.MaxRetries == 0 {
		cfg.Search.MaxRetries = def.Search.MaxRetries
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = def.Output.Dir
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = def.Metrics.Namespace
	}
	if cfg.Providers.GroqBaseURL == "" {
		cfg.Providers.GroqBaseURL = def.Providers.GroqBaseURL
	}
	if cfg.Providers.OllamaHost == "" {
		cfg.Providers.OllamaHost = def.Providers.OllamaHost
	}
}

func applyStageDefaults(stage *StageConfig, def StageConfig) {
	if stage.Model == "" {
		stage.Model = def.Model
	}
	if stage.MaxTokens == 0 {
		stage.MaxTokens = def.MaxTokens
	}
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	stages := map[string]StageConfig{
		"orchestrator": c.Stages.Orchestrator,
		"subagent":     c.Stages.SubAgent,
		"refiner":      c.Stages.Refiner,
	}
	for name, stage := range stages {
		if stage.Model == "" {
			return fmt.Errorf("%w: stages.%s.model is required", ErrInvalidConfig, name)
		}
		if _, err := GetModelProvider(stage.Model); err != nil {
			return fmt.Errorf("%w: stages.%s: %w", ErrInvalidConfig, name, err)
		}
		if stage.MaxTokens <= 0 {
			return fmt.Errorf("%w: stages.%s.max_tokens must be positive", ErrInvalidConfig, name)
		}
		if stage.MaxContinuations < 0 {
			return fmt.Errorf("%w: stages.%s.max_continuations must not be negative", ErrInvalidConfig, name)
		}
	}

	if c.Resilience.MaxRetries < 1 {
		return fmt.Errorf("%w: resilience.max_retries must be at least 1", ErrInvalidConfig)
	}
	if c.Resilience.BaseDelay < 0 || c.Resilience.MaxDelay < 0 {
		return fmt.Errorf("%w: resilience delays must not be negative", ErrInvalidConfig)
	}
	if c.Pipeline.MaxIterations < 0 {
		return fmt.Errorf("%w: pipeline.max_iterations must not be negative", ErrInvalidConfig)
	}
	if c.Search.Depth != "basic" && c.Search.Depth != "advanced" {
		return fmt.Errorf("%w: search.depth must be \"basic\" or \"advanced\", got %q", ErrInvalidConfig, c.Search.Depth)
	}
	return nil
}

// ModelInfoFor returns the registry entry for model with any configured limit overrides applied.
func (c *Config) ModelInfoFor(model string) ModelInfo {
	info, _ := GetModelInfo(model)
	if override, ok := c.Models[model]; ok {
		if override.TokensPerMinute > 0 {
			info.TokensPerMinute = override.TokensPerMinute
		}
		if override.RequestsPerDay > 0 {
			info.RequestsPerDay = override.RequestsPerDay
		}
	}
	return info
}

// StageModels returns the distinct models referenced by the stages, in stage order.
func (c *Config) StageModels() []string {
	seen := make(map[string]bool, 3)
	var models []string
	for _, m := range []string{c.Stages.Orchestrator.Model, c.Stages.SubAgent.Model, c.Stages.Refiner.Model} {
		if !seen[m] {
			seen[m] = true
			models = append(models, m)
		}
	}
	return models
}
