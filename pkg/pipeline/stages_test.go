package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maestro/pkg/agent"
	"maestro/pkg/agent/llm"
	"maestro/pkg/search"
)

func TestOrchestratorMessages(t *testing.T) {
	mock := newMock(reply("Write add(a, b).", 20))
	o := NewOrchestrator(mock, stages().Orchestrator)

	out, err := o.Next(context.Background(), OrchestratorInput{Objective: "Add two numbers", FileContent: "x = 1"})
	require.NoError(t, err)
	assert.Equal(t, "Write add(a, b).", out.Text)
	assert.Equal(t, "x = 1", out.FileContent)
	assert.False(t, out.HasQuery)

	reqs := mock.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, stages().Orchestrator.Model, reqs[0].Model)
	assert.Equal(t, stages().Orchestrator.MaxTokens, reqs[0].MaxTokens)
	assert.NotContains(t, systemContent(reqs[0]), "search_query")

	user := userContent(reqs[0])
	assert.Contains(t, user, "Based on the following objective and file content, and the previous sub-task results")
	assert.Contains(t, user, "Objective: Add two numbers")
	assert.Contains(t, user, "\n\nFile content:\nx = 1")
	assert.True(t, strings.HasSuffix(user, "Previous sub-task results:\nNone"))
}

func TestOrchestratorPreviousResults(t *testing.T) {
	mock := newMock(reply("next", 5))
	o := NewOrchestrator(mock, stages().Orchestrator)

	_, err := o.Next(context.Background(), OrchestratorInput{Objective: "obj", PreviousResults: []string{"r1", "r2"}})
	require.NoError(t, err)

	user := userContent(mock.Requests()[0])
	assert.Contains(t, user, "Based on the following objective, and the previous")
	assert.NotContains(t, user, "File content:")
	assert.True(t, strings.HasSuffix(user, "Previous sub-task results:\nr1\nr2"))
}

func TestOrchestratorBlankFileContent(t *testing.T) {
	mock := newMock(reply("next", 5))
	o := NewOrchestrator(mock, stages().Orchestrator)

	out, err := o.Next(context.Background(), OrchestratorInput{Objective: "obj", FileContent: " \n\t"})
	require.NoError(t, err)
	assert.Empty(t, out.FileContent)
	assert.NotContains(t, userContent(mock.Requests()[0]), "File content:")
}

func TestOrchestratorSearchQuery(t *testing.T) {
	mock := newMock(
		reply("Implement add.\n{\"search_query\": \"python addition\"}", 30),
		reply("Implement sub.", 10),
	)
	o := NewOrchestrator(mock, stages().Orchestrator)

	out, err := o.Next(context.Background(), OrchestratorInput{Objective: "obj", UseSearch: true})
	require.NoError(t, err)
	assert.True(t, out.HasQuery)
	assert.Equal(t, "python addition", out.SearchQuery)
	assert.Equal(t, "Implement add.", out.Text)
	assert.Contains(t, systemContent(mock.Requests()[0]), "'search_query' key")

	out, err = o.Next(context.Background(), OrchestratorInput{Objective: "obj", UseSearch: true})
	require.NoError(t, err)
	assert.False(t, out.HasQuery)
	assert.Equal(t, "Implement sub.", out.Text)
}

func TestOrchestratorErrorIsWrapped(t *testing.T) {
	base := errors.New("boom")
	mock := agent.NewMockLLMClient(nil, []error{base})
	o := NewOrchestrator(mock, stages().Orchestrator)

	_, err := o.Next(context.Background(), OrchestratorInput{Objective: "obj"})
	require.Error(t, err)
	assert.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), "orchestrator:")
}

func TestSubAgentContinuation(t *testing.T) {
	cfg := stages().SubAgent
	mock := newMock(
		reply("part one ", cfg.MaxTokens),
		reply("part two ", cfg.MaxTokens),
		reply("part three", 12),
	)
	s := NewSubAgent(mock, cfg, nil)

	records := []TaskRecord{{Task: "t0", Result: "r0"}}
	got, err := s.Execute(context.Background(), SubTask{Prompt: "do it"}, records)
	require.NoError(t, err)
	assert.Equal(t, "part one part two part three", got.Text)
	assert.Equal(t, 2, got.Continuations)
	assert.False(t, got.StillTruncated)
	assert.Equal(t, 2*cfg.MaxTokens+12, got.Usage.CompletionTokens)
	assert.Equal(t, 30, got.Usage.PromptTokens)

	reqs := mock.Requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, "do it", userContent(reqs[0]))
	assert.Equal(t, subAgentContinuationPrompt, userContent(reqs[1]))
	assert.Equal(t, subAgentContinuationPrompt, userContent(reqs[2]))
	for _, req := range reqs {
		assert.Equal(t, "Previous sub-agent tasks:\nTask: t0\nResult: r0", systemContent(req))
		assert.Equal(t, cfg.Model, req.Model)
	}
}

func TestSubAgentContinuationCap(t *testing.T) {
	cfg := stages().SubAgent
	cfg.MaxContinuations = 2
	mock := newMock(reply("a", cfg.MaxTokens), reply("b", cfg.MaxTokens), reply("c", cfg.MaxTokens), reply("unused", 1))
	s := NewSubAgent(mock, cfg, nil)

	got, err := s.Execute(context.Background(), SubTask{Prompt: "p"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "abc", got.Text)
	assert.True(t, got.StillTruncated)
	assert.Equal(t, 2, got.Continuations)
	assert.Len(t, mock.Requests(), 3)
}

func TestSubAgentSearch(t *testing.T) {
	cfg := stages().SubAgent
	var queries []string
	provider := search.ProviderFunc(func(_ context.Context, query string) (string, error) {
		queries = append(queries, query)
		return "use the + operator", nil
	})
	mock := newMock(reply("part", cfg.MaxTokens), reply(" end", 3))
	s := NewSubAgent(mock, cfg, provider)

	got, err := s.Execute(context.Background(), SubTask{Prompt: "p", SearchQuery: "how to add", UseSearch: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"how to add"}, queries, "search runs once per sub-task")
	assert.Equal(t, "use the + operator", got.SearchAnswer)
	for _, req := range mock.Requests() {
		assert.Equal(t, "Previous sub-agent tasks:\n\nSearch Results:\nuse the + operator", systemContent(req))
	}
}

func TestSubAgentSearchFailureIsNotFatal(t *testing.T) {
	provider := search.ProviderFunc(func(context.Context, string) (string, error) {
		return "", errors.New("search down")
	})
	mock := newMock(reply("done", 3))
	s := NewSubAgent(mock, stages().SubAgent, provider)

	got, err := s.Execute(context.Background(), SubTask{Prompt: "p", SearchQuery: "q", UseSearch: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, "done", got.Text)
	assert.Empty(t, got.SearchAnswer)
	assert.NotContains(t, systemContent(mock.Requests()[0]), "Search Results")
}

func TestSubAgentSearchSkippedWhenDisabled(t *testing.T) {
	called := false
	provider := search.ProviderFunc(func(context.Context, string) (string, error) {
		called = true
		return "x", nil
	})
	s := NewSubAgent(newMock(reply("ok", 1)), stages().SubAgent, provider)

	_, err := s.Execute(context.Background(), SubTask{Prompt: "p", SearchQuery: "q"}, nil)
	require.NoError(t, err)
	assert.False(t, called)
}

func TestRefinerContinuation(t *testing.T) {
	cfg := stages().Refiner
	mock := newMock(reply("first half", cfg.MaxTokens), reply("second half", 100))
	r := NewRefiner(mock, cfg)

	got, err := r.Refine(context.Background(), "obj", []string{"r1", "r2"})
	require.NoError(t, err)
	assert.Equal(t, "first half\nsecond half", got.Text)
	assert.Equal(t, 1, got.Continuations)
	assert.False(t, got.StillTruncated)

	reqs := mock.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, refinerSystemPrompt, systemContent(reqs[0]))

	first := userContent(reqs[0])
	assert.True(t, strings.HasPrefix(first, "Here is the Objective you are trying to achieve: obj\n\nHere are the Sub-task results:\nr1\nr2"))
	assert.NotContains(t, first, "Continue from the previous output.")

	second := userContent(reqs[1])
	assert.Contains(t, second, "r1\nr2\nfirst half")
	assert.True(t, strings.HasSuffix(second, "\n\nContinue from the previous output."))
}

func TestRefinerContinuationCap(t *testing.T) {
	cfg := stages().Refiner
	mock := newMock(reply("a", cfg.MaxTokens), reply("b", cfg.MaxTokens), reply("unused", 1))
	r := NewRefiner(mock, cfg)

	got, err := r.Refine(context.Background(), "obj", nil)
	require.NoError(t, err)
	assert.Equal(t, "a\nb", got.Text)
	assert.True(t, got.StillTruncated)
	assert.Len(t, mock.Requests(), 2)
}

func TestStagesTagContext(t *testing.T) {
	var stagesSeen []string
	client := llm.ClientFunc(func(ctx context.Context, _ llm.CompletionRequest) (llm.CompletionResponse, error) {
		stagesSeen = append(stagesSeen, llm.StageFrom(ctx))
		return reply("ok", 1), nil
	})

	_, err := NewOrchestrator(client, stages().Orchestrator).Next(context.Background(), OrchestratorInput{Objective: "o"})
	require.NoError(t, err)
	_, err = NewSubAgent(client, stages().SubAgent, nil).Execute(context.Background(), SubTask{Prompt: "p"}, nil)
	require.NoError(t, err)
	_, err = NewRefiner(client, stages().Refiner).Refine(context.Background(), "o", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{StageOrchestrator, StageSubAgent, StageRefiner}, stagesSeen)
}
