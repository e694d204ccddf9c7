// Package retry provides retry logic with exponential backoff for resilient completion calls.
package retry

import (
	"context"
	"errors"
	"math"
	"time"

	"maestro/pkg/agent/llmerrors"
	"maestro/pkg/utils"
)

// Config defines configuration for retry behavior.
type Config struct {
	MaxRetries        int           `json:"max_retries"`         // Maximum number of attempts (including initial)
	BaseDelay         time.Duration `json:"base_delay"`          // Delay after attempt i is BaseDelay × 2^i
	MaxDelay          time.Duration `json:"max_delay"`           // Cap on the backoff delay (0 = uncapped)
	DefaultRetryAfter time.Duration `json:"default_retry_after"` // 429 sleep when the provider sends no retry-after
	AttemptTimeout    time.Duration `json:"attempt_timeout"`     // Per-attempt deadline (0 = none)
}

// DefaultConfig matches the Groq client the pipeline was tuned against.
//
//nolint:gochecknoglobals // Sensible default config pattern
var DefaultConfig = Config{
	MaxRetries:        10,
	BaseDelay:         time.Second,
	DefaultRetryAfter: time.Second,
}

// Classifier determines if an error should be retried.
type Classifier func(error) bool

// ShouldRetry is the default classifier: every failure is retried except
// cancellation and an already exhausted inner retry loop. Per-attempt
// deadlines are retried; the parent context is checked separately.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if llmerrors.Is(err, llmerrors.ErrorTypeRetriesExhausted) {
		return false
	}
	return true
}

// Event describes one failed attempt that will be retried.
type Event struct {
	Err         error
	Model       string
	Delay       time.Duration
	Attempt     int // zero-based index of the failed attempt
	RateLimited bool
}

// Policy encapsulates retry configuration and logic.
//
//nolint:govet // Simple struct, logical grouping preferred
type Policy struct {
	Config     Config
	Classifier Classifier
	Sleep      utils.Sleeper
	OnRetry    func(Event) // optional hook, called before each backoff sleep
}

// NewPolicy creates a new retry policy with the given configuration and classifier.
func NewPolicy(config Config, classifier Classifier) *Policy {
	if classifier == nil {
		classifier = ShouldRetry
	}
	if config.MaxRetries < 1 {
		config.MaxRetries = 1
	}
	return &Policy{
		Config:     config,
		Classifier: classifier,
		Sleep:      utils.SleepContext,
	}
}

// CalculateDelay returns BaseDelay × 2^attempt for a zero-based attempt index,
// capped at MaxDelay when one is set.
func (p *Policy) CalculateDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := p.Config.BaseDelay
	for i := 0; i < attempt; i++ {
		if p.Config.MaxDelay > 0 && delay >= p.Config.MaxDelay {
			break
		}
		// Saturate instead of overflowing for large attempt counts.
		if delay > math.MaxInt64/2 {
			break
		}
		delay *= 2
	}
	if p.Config.MaxDelay > 0 && delay > p.Config.MaxDelay {
		delay = p.Config.MaxDelay
	}
	return delay
}

// RetryDelay returns how long to wait after attempt failed with err. A rate
// limited failure waits for the provider's retry-after (DefaultRetryAfter when
// absent) instead of the exponential delay.
func (p *Policy) RetryDelay(attempt int, err error) (time.Duration, bool) {
	var llmErr *llmerrors.Error
	if errors.As(err, &llmErr) && llmErr.Type == llmerrors.ErrorTypeRateLimit {
		if llmErr.HasRetryAfter {
			return llmErr.RetryAfter, true
		}
		return p.Config.DefaultRetryAfter, true
	}
	return p.CalculateDelay(attempt), false
}

// ShouldRetry determines if an error should be retried based on the configured classifier.
func (p *Policy) ShouldRetry(err error) bool {
	return p.Classifier(err)
}
