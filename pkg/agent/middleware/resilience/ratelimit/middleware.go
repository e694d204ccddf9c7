package ratelimit

import (
	"context"
	"fmt"
	"time"

	"maestro/pkg/agent/llm"
	"maestro/pkg/logx"
	"maestro/pkg/utils"
)

// Throttle reasons reported to OnThrottle.
const (
	ReasonPreflight = "preflight"
	ReasonGovernor  = "governor"
)

// Options configures the rate limit middleware.
type Options struct {
	Tracker   *Tracker
	Governor  *Governor
	Estimator TokenEstimator // required when Preflight is set
	Sleep     utils.Sleeper  // used for pre-flight waits
	Preflight bool

	// OnThrottle is called after every throttling sleep.
	OnThrottle func(model, reason string, slept time.Duration)
}

// Middleware records usage and provider snapshots for every successful call
// and applies the governor afterwards. With Preflight set it first waits for
// the local minute window to roll over when the estimated request would not
// fit the model's remaining budget.
func Middleware(opts Options) llm.Middleware {
	logger := logx.NewLogger("governor")
	sleep := opts.Sleep.OrDefault()

	return func(next llm.LLMClient) llm.LLMClient {
		return llm.ClientFunc(func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
			if opts.Preflight && opts.Estimator != nil && opts.Tracker != nil {
				if err := preflight(ctx, opts, req, sleep, logger); err != nil {
					return llm.CompletionResponse{}, err
				}
			}

			resp, err := next.Complete(ctx, req)
			if err != nil {
				return resp, err
			}

			snap := ParseHeaders(resp.Header)
			resp.RateLimit = snap
			if opts.Tracker != nil {
				opts.Tracker.Record(req.Model, resp.Usage, snap)
			}
			logx.Debug(ctx, "governor", "%s tokens remaining=%d limit=%d reset=%s present=%v",
				req.Model, snap.Remaining, snap.Limit, snap.Reset, snap.Present)

			if opts.Governor != nil {
				slept, err := opts.Governor.Wait(ctx, snap)
				if err != nil {
					return resp, fmt.Errorf("rate limit wait cancelled: %w", err)
				}
				if slept > 0 && opts.OnThrottle != nil {
					opts.OnThrottle(req.Model, ReasonGovernor, slept)
				}
			}
			return resp, nil
		})
	}
}

//nolint:gocritic // request passed by value to match LLMClient
func preflight(ctx context.Context, opts Options, req llm.CompletionRequest, sleep utils.Sleeper, logger *logx.Logger) error {
	remaining, resetIn, limited := opts.Tracker.MinuteBudget(req.Model)
	if !limited {
		return nil
	}
	needed := opts.Estimator.EstimatePrompt(req) + req.MaxTokens
	if needed <= remaining || resetIn <= 0 {
		return nil
	}

	logger.Info("Estimated %d tokens for %s exceeds the %d left this minute; waiting %s.",
		needed, req.Model, remaining, resetIn.Round(time.Millisecond))
	if err := sleep(ctx, resetIn); err != nil {
		return fmt.Errorf("rate limit wait cancelled: %w", err)
	}
	if opts.OnThrottle != nil {
		opts.OnThrottle(req.Model, ReasonPreflight, resetIn)
	}
	return nil
}
