package pipeline

import (
	"maestro/pkg/agent"
	"maestro/pkg/agent/llm"
	"maestro/pkg/config"
)

func reply(content string, completionTokens int) llm.CompletionResponse {
	return llm.CompletionResponse{
		Content: content,
		Usage:   llm.Usage{PromptTokens: 10, CompletionTokens: completionTokens},
	}
}

func newMock(responses ...llm.CompletionResponse) *agent.MockLLMClient {
	return agent.NewMockLLMClient(responses, nil)
}

func stages() config.StagesConfig {
	return config.DefaultConfig().Stages
}

func userContent(req llm.CompletionRequest) string {
	for _, m := range req.Messages {
		if m.Role == llm.RoleUser {
			return m.Content
		}
	}
	return ""
}

func systemContent(req llm.CompletionRequest) string {
	for _, m := range req.Messages {
		if m.Role == llm.RoleSystem {
			return m.Content
		}
	}
	return ""
}
