// Package agent builds the resilient LLM client shared by every pipeline stage.
package agent

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"maestro/pkg/agent/llm"
	"maestro/pkg/agent/middleware/metrics"
	"maestro/pkg/agent/middleware/resilience/ratelimit"
	"maestro/pkg/agent/middleware/resilience/retry"
	"maestro/pkg/config"
	"maestro/pkg/logx"
	"maestro/pkg/utils"
)

// ClientOptions carries the collaborators of a Client. All fields are optional.
type ClientOptions struct {
	Recorder   metrics.Recorder         // nil = no metrics
	Sleep      utils.Sleeper            // nil = context-aware time.Sleep
	Transports map[string]llm.LLMClient // per-provider transport overrides
	HTTPClient *http.Client             // used by built-in transports
	Estimator  ratelimit.TokenEstimator // nil = tiktoken estimator
}

// Client is the resilient completion client. It is an explicit instance
// passed to every stage; it owns the model profiles and the last rate
// limit snapshot.
type Client struct {
	chain   llm.LLMClient
	router  *Router
	tracker *ratelimit.Tracker
	logger  *logx.Logger
}

// NewClient builds the middleware chain
//
//	ratelimit (pre-flight, record, governor) -> retry -> metrics -> router
//
// so every attempt is measured, only the final outcome updates the profile,
// and the governor runs once after each successful call. Transports of all
// stage models are created eagerly so a missing API key fails fast.
func NewClient(cfg *config.Config, opts ClientOptions) (*Client, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = metrics.Nop()
	}
	sleep := opts.Sleep.OrDefault()

	router := NewRouter(cfg, opts.HTTPClient, opts.Transports)
	limits := make(map[string]ratelimit.Limits)
	for _, model := range cfg.StageModels() {
		provider, err := config.GetModelProvider(model)
		if err != nil {
			return nil, fmt.Errorf("failed to determine provider for model %s: %w", model, err)
		}
		if _, err := router.Transport(provider); err != nil {
			return nil, err
		}
		info := cfg.ModelInfoFor(model)
		limits[model] = ratelimit.Limits{TokensPerMinute: info.TokensPerMinute, RequestsPerDay: info.RequestsPerDay}
	}
	tracker := ratelimit.NewTracker(limits)

	policy := retry.NewPolicy(retry.Config{
		MaxRetries:        cfg.Resilience.MaxRetries,
		BaseDelay:         cfg.Resilience.BaseDelay.Std(),
		MaxDelay:          cfg.Resilience.MaxDelay.Std(),
		DefaultRetryAfter: cfg.Resilience.DefaultRetryAfter.Std(),
		AttemptTimeout:    cfg.Resilience.RequestTimeout.Std(),
	}, nil)
	policy.Sleep = sleep
	policy.OnRetry = func(ev retry.Event) {
		reason := "error"
		if ev.RateLimited {
			reason = "rate_limit"
		}
		recorder.IncRetry(ev.Model, reason)
	}

	estimator := opts.Estimator
	if estimator == nil && cfg.Resilience.Preflight {
		estimator = ratelimit.NewDefaultTokenEstimator()
	}

	chain := llm.Chain(router,
		ratelimit.Middleware(ratelimit.Options{
			Tracker:   tracker,
			Governor:  ratelimit.NewGovernor(cfg.Resilience.GovernorThreshold, sleep),
			Estimator: estimator,
			Sleep:     sleep,
			Preflight: cfg.Resilience.Preflight,
			OnThrottle: func(model, reason string, slept time.Duration) {
				recorder.IncThrottle(model, reason)
				recorder.ObserveQueueWait(model, slept)
			},
		}),
		retry.Middleware(policy),
		metrics.Middleware(recorder, nil),
	)

	return &Client{
		chain:   chain,
		router:  router,
		tracker: tracker,
		logger:  logx.NewLogger("client"),
	}, nil
}

// Complete sends req through the middleware chain.
//
//nolint:gocritic // CompletionRequest passed by value to match interface
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	if err := req.Validate(); err != nil {
		return llm.CompletionResponse{}, err
	}
	c.logger.Debug("%s -> %s (%d messages, max %d tokens)", llm.StageFrom(ctx), req.Model, len(req.Messages), req.MaxTokens)
	return c.chain.Complete(ctx, req)
}

// LastSnapshot returns the rate limit snapshot of the most recent successful
// call and the model it came from.
func (c *Client) LastSnapshot() (ratelimit.Snapshot, string) {
	return c.tracker.Last()
}

// TokensRemaining returns the provider-reported remaining tokens of the most
// recent call, or -1 when no call has reported them yet.
func (c *Client) TokensRemaining() int {
	snap, _ := c.tracker.Last()
	if !snap.Present {
		return -1
	}
	return snap.Remaining
}

// Profiles returns copies of all model profiles.
func (c *Client) Profiles() []ratelimit.Profile {
	return c.tracker.Snapshot()
}

// Tracker exposes the profile tracker for the status monitor.
func (c *Client) Tracker() *ratelimit.Tracker {
	return c.tracker
}
