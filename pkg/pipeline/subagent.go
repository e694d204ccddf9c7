package pipeline

import (
	"context"
	"fmt"
	"strings"

	"maestro/pkg/agent/llm"
	"maestro/pkg/config"
	"maestro/pkg/logx"
	"maestro/pkg/search"
)

// Reply is the accumulated output of a stage that may continue truncated
// responses.
type Reply struct {
	Text           string
	Usage          llm.Usage // summed over all calls
	Continuations  int
	StillTruncated bool // the continuation cap was hit while still truncated
	SearchAnswer   string
}

// SubTask is one sub-agent call.
type SubTask struct {
	Prompt      string
	SearchQuery string
	UseSearch   bool
}

// SubAgent executes sub-tasks.
type SubAgent struct {
	client llm.LLMClient
	search search.Provider // nil disables search
	cfg    config.StageConfig
	logger *logx.Logger
}

// NewSubAgent creates the sub-agent stage.
func NewSubAgent(client llm.LLMClient, cfg config.StageConfig, provider search.Provider) *SubAgent {
	return &SubAgent{client: client, search: provider, cfg: cfg, logger: logx.NewLogger(StageSubAgent)}
}

func historyMessage(records []TaskRecord) string {
	parts := make([]string, len(records))
	for i := range records {
		parts[i] = fmt.Sprintf("Task: %s\nResult: %s", records[i].Task, records[i].Result)
	}
	return subAgentHistoryHeader + strings.Join(parts, "\n")
}

// lookup runs the search once per sub-task. Failures are logged and ignored.
func (s *SubAgent) lookup(ctx context.Context, task SubTask) string {
	if !task.UseSearch || task.SearchQuery == "" || s.search == nil {
		return ""
	}
	answer, err := s.search.Answer(ctx, task.SearchQuery)
	if err != nil {
		s.logger.Warn("Search for %q failed, continuing without results: %v", task.SearchQuery, err)
		return ""
	}
	s.logger.Info("QnA response: %s", answer)
	return answer
}

// Execute runs task. While the completion token count reaches the stage
// ceiling it issues continuation calls, whose text is appended directly, up
// to MaxContinuations of them.
func (s *SubAgent) Execute(ctx context.Context, task SubTask, records []TaskRecord) (Reply, error) {
	ctx = llm.WithStage(ctx, StageSubAgent)
	reply := Reply{SearchAnswer: s.lookup(ctx, task)}

	system := historyMessage(records)
	if reply.SearchAnswer != "" {
		system += "\nSearch Results:\n" + reply.SearchAnswer
	}

	prompt := task.Prompt
	var text strings.Builder
	for {
		req := llm.NewCompletionRequest(s.cfg.Model, s.cfg.MaxTokens, llm.NewSystemMessage(system), llm.NewUserMessage(prompt))
		req.Temperature = s.cfg.Temperature

		resp, err := s.client.Complete(ctx, req)
		if err != nil {
			return Reply{}, fmt.Errorf("%s: %w", StageSubAgent, err)
		}
		s.logger.Info("Input Tokens: %d, Output Tokens: %d", resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
		text.WriteString(resp.Content)
		reply.Usage.PromptTokens += resp.Usage.PromptTokens
		reply.Usage.CompletionTokens += resp.Usage.CompletionTokens

		if resp.Usage.CompletionTokens < s.cfg.Ceiling() {
			break
		}
		if reply.Continuations >= s.cfg.MaxContinuations {
			s.logger.Warn("Output still truncated after %d continuations; returning partial result", reply.Continuations)
			reply.StillTruncated = true
			break
		}
		s.logger.Warn("Output may be truncated. Attempting to continue the response.")
		reply.Continuations++
		prompt = subAgentContinuationPrompt
	}

	reply.Text = text.String()
	return reply, nil
}
