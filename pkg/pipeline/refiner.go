package pipeline

import (
	"context"
	"fmt"
	"strings"

	"maestro/pkg/agent/llm"
	"maestro/pkg/config"
	"maestro/pkg/logx"
)

// Refiner merges all sub-task results into the final output.
type Refiner struct {
	client llm.LLMClient
	cfg    config.StageConfig
	logger *logx.Logger
}

// NewRefiner creates the refiner stage.
func NewRefiner(client llm.LLMClient, cfg config.StageConfig) *Refiner {
	return &Refiner{client: client, cfg: cfg, logger: logx.NewLogger(StageRefiner)}
}

func refinerUserMessage(objective string, results []string, continuation bool) string {
	msg := "Here is the Objective you are trying to achieve: " + objective +
		"\n\nHere are the Sub-task results:\n" + strings.Join(results, "\n") + refinerConventions
	if continuation {
		msg += refinerContinuation
	}
	return msg
}

// Refine synthesizes results. A truncated response is continued with the
// previous response appended to the results; continuation text is joined
// with a newline. At most MaxContinuations continuations are made.
func (r *Refiner) Refine(ctx context.Context, objective string, results []string) (Reply, error) {
	ctx = llm.WithStage(ctx, StageRefiner)
	r.logger.Info("Calling the refiner to provide the refined final output for your objective")

	history := append([]string(nil), results...)
	var reply Reply
	var parts []string
	continuation := false
	for {
		req := llm.NewCompletionRequest(r.cfg.Model, r.cfg.MaxTokens,
			llm.NewSystemMessage(refinerSystemPrompt),
			llm.NewUserMessage(refinerUserMessage(objective, history, continuation)))
		req.Temperature = r.cfg.Temperature

		resp, err := r.client.Complete(ctx, req)
		if err != nil {
			return Reply{}, fmt.Errorf("%s: %w", StageRefiner, err)
		}
		r.logger.Info("Input Tokens: %d, Output Tokens: %d", resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
		parts = append(parts, resp.Content)
		reply.Usage.PromptTokens += resp.Usage.PromptTokens
		reply.Usage.CompletionTokens += resp.Usage.CompletionTokens

		if resp.Usage.CompletionTokens < r.cfg.Ceiling() {
			break
		}
		if reply.Continuations >= r.cfg.MaxContinuations {
			r.logger.Warn("Refined output still truncated after %d continuations", reply.Continuations)
			reply.StillTruncated = true
			break
		}
		r.logger.Warn("Output may be truncated. Attempting to continue the response.")
		reply.Continuations++
		history = append(history, resp.Content)
		continuation = true
	}

	reply.Text = strings.Join(parts, "\n")
	return reply, nil
}
