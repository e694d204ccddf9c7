package pipeline

import (
	"context"
	"fmt"
	"strings"

	"maestro/pkg/agent/llm"
	"maestro/pkg/config"
	"maestro/pkg/logx"
)

// Stage names used for context tagging, metrics labels and log components.
const (
	StageOrchestrator = "orchestrator"
	StageSubAgent     = "subagent"
	StageRefiner      = "refiner"
)

// OrchestratorInput is one orchestrator call.
type OrchestratorInput struct {
	Objective       string
	FileContent     string // first iteration only
	PreviousResults []string
	UseSearch       bool
}

// OrchestratorOutput is the orchestrator's answer.
type OrchestratorOutput struct {
	Text        string // response with any search query JSON removed
	FileContent string // cleared when the input file content was blank
	SearchQuery string
	HasQuery    bool
	Usage       llm.Usage
}

// Orchestrator decomposes the objective into the next sub-task.
type Orchestrator struct {
	client llm.LLMClient
	cfg    config.StageConfig
	logger *logx.Logger
}

// NewOrchestrator creates the orchestrator stage.
func NewOrchestrator(client llm.LLMClient, cfg config.StageConfig) *Orchestrator {
	return &Orchestrator{client: client, cfg: cfg, logger: logx.NewLogger(StageOrchestrator)}
}

func (o *Orchestrator) messages(in *OrchestratorInput, fileContent string) []llm.CompletionMessage {
	system := orchestratorSystemPrompt
	if in.UseSearch {
		system += "\n" + searchQueryInstruction
	}

	previous := "None"
	if len(in.PreviousResults) > 0 {
		previous = strings.Join(in.PreviousResults, "\n")
	}
	andFile := ""
	if fileContent != "" {
		andFile = " and file content"
	}
	user := fmt.Sprintf(orchestratorUserPrompt, andFile, in.Objective)
	if fileContent != "" {
		user += "\n\nFile content:\n" + fileContent
	}
	user += "\n\nPrevious sub-task results:\n" + previous

	return []llm.CompletionMessage{llm.NewSystemMessage(system), llm.NewUserMessage(user)}
}

// Next asks for the next sub-task or the completion signal.
func (o *Orchestrator) Next(ctx context.Context, in OrchestratorInput) (OrchestratorOutput, error) {
	fileContent := in.FileContent
	if fileContent != "" && strings.TrimSpace(fileContent) == "" {
		o.logger.Warn("Missing code content in file; continuing without it")
		fileContent = ""
	}

	o.logger.Info("Calling Orchestrator for your objective")
	req := llm.NewCompletionRequest(o.cfg.Model, o.cfg.MaxTokens, o.messages(&in, fileContent)...)
	req.Temperature = o.cfg.Temperature

	resp, err := o.client.Complete(llm.WithStage(ctx, StageOrchestrator), req)
	if err != nil {
		return OrchestratorOutput{}, fmt.Errorf("%s: %w", StageOrchestrator, err)
	}
	o.logger.Info("Total Tokens Used: %d", resp.Usage.CompletionTokens)

	out := OrchestratorOutput{Text: resp.Content, FileContent: fileContent, Usage: resp.Usage}
	if in.UseSearch {
		if query, rest, ok := ExtractSearchQuery(resp.Content); ok {
			o.logger.Info("Search Query: %s", query)
			out.Text, out.SearchQuery, out.HasQuery = rest, query, true
		} else {
			o.logger.Warn("No search query JSON in orchestrator response; skipping search query extraction")
		}
	}
	return out, nil
}
