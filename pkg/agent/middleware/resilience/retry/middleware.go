package retry

import (
	"context"
	"errors"
	"fmt"

	"maestro/pkg/agent/llm"
	"maestro/pkg/agent/llmerrors"
	"maestro/pkg/logx"
)

// Middleware returns a middleware function that wraps a client with retry logic.
// Attempts are made up to Config.MaxRetries times; the final failure is never
// followed by a sleep and is returned as an ErrMaxRetriesExceeded error.
func Middleware(policy *Policy) llm.Middleware {
	logger := logx.NewLogger("retry")
	sleep := policy.Sleep.OrDefault()

	return func(next llm.LLMClient) llm.LLMClient {
		return llm.ClientFunc(func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
			var lastErr error

			for attempt := 0; attempt < policy.Config.MaxRetries; attempt++ {
				resp, err := completeAttempt(ctx, next, req, policy)
				if err == nil {
					if attempt > 0 {
						logger.Info("%s request to %s succeeded on attempt %d", llm.StageFrom(ctx), req.Model, attempt+1)
					}
					return resp, nil
				}

				if ctxErr := ctx.Err(); ctxErr != nil {
					return llm.CompletionResponse{}, fmt.Errorf("retry cancelled: %w", ctxErr)
				}
				if !policy.ShouldRetry(err) {
					return llm.CompletionResponse{}, err
				}
				lastErr = err

				if attempt == policy.Config.MaxRetries-1 {
					break
				}

				delay, rateLimited := policy.RetryDelay(attempt, err)
				if rateLimited {
					logger.Warn("Rate limit hit for %s. Retrying after %s.", req.Model, delay)
				} else {
					logFailure(logger, req, err, delay)
				}
				if policy.OnRetry != nil {
					policy.OnRetry(Event{Err: err, Model: req.Model, Delay: delay, Attempt: attempt, RateLimited: rateLimited})
				}

				if sleepErr := sleep(ctx, delay); sleepErr != nil {
					return llm.CompletionResponse{}, fmt.Errorf("retry cancelled: %w", sleepErr)
				}
			}

			logger.Error("Maximum retries exceeded for %s after %d attempts: %v", req.Model, policy.Config.MaxRetries, lastErr)
			return llm.CompletionResponse{}, llmerrors.NewRetriesExhaustedError(lastErr, policy.Config.MaxRetries)
		})
	}
}

func completeAttempt(ctx context.Context, next llm.LLMClient, req llm.CompletionRequest, policy *Policy) (llm.CompletionResponse, error) {
	if policy.Config.AttemptTimeout <= 0 {
		return next.Complete(ctx, req)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, policy.Config.AttemptTimeout)
	defer cancel()
	return next.Complete(attemptCtx, req)
}

// maxLoggedPrompt bounds the request excerpt logged for a failed attempt.
const maxLoggedPrompt = 400

//nolint:gocritic // request passed by value to match LLMClient
func logFailure(logger *logx.Logger, req llm.CompletionRequest, err error, delay fmt.Stringer) {
	logger.Error("Error: %v. Retrying in %s.", err, delay)
	if n := len(req.Messages); n > 0 {
		logger.Error("Request (%s, %d messages): %s", req.Model, n,
			llmerrors.SanitizePrompt(req.Messages[n-1].Content, maxLoggedPrompt))
	}

	var llmErr *llmerrors.Error
	if !errors.As(err, &llmErr) {
		return
	}
	if llmErr.StatusCode != 0 {
		logger.Error("Status Code: %d", llmErr.StatusCode)
	}
	if len(llmErr.Header) > 0 {
		logger.Error("Response Headers: %v", llmErr.Header)
	}
	if llmErr.BodyStub != "" {
		logger.Error("Response Content: %s", llmErr.BodyStub)
	}
}
