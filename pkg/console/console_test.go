package console

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"

	"maestro/pkg/agent/llm"
	"maestro/pkg/pipeline"
	"maestro/pkg/scaffold"
)

func TestOrchestratorPanel(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf)

	c.Orchestrator(1, pipeline.OrchestratorOutput{
		Text:        "Write add(a, b).",
		SearchQuery: "python add",
		HasQuery:    true,
		Usage:       llm.Usage{CompletionTokens: 42},
	})

	out := buf.String()
	assert.Contains(t, out, "Total Tokens Used: 42")
	assert.Contains(t, out, "Search Query: python add")
	assert.Contains(t, out, "Orchestrator (iteration 1)")
	assert.Contains(t, out, "Write add(a, b).")
	assert.Contains(t, out, "Sending task to Subagent")
}

func TestOrchestratorDonePanel(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).Orchestrator(3, pipeline.OrchestratorOutput{Text: "The task is complete: all good"})

	out := buf.String()
	assert.Contains(t, out, "all good")
	assert.NotContains(t, out, pipeline.CompletionMarker)
	assert.Contains(t, out, "Objective complete")
}

func TestSubAgentAndRefinedPanels(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf)

	c.SubAgent(1, "prompt", pipeline.Reply{
		Text:           "def add(a, b): return a + b",
		Usage:          llm.Usage{PromptTokens: 7, CompletionTokens: 9},
		SearchAnswer:   "use +",
		StillTruncated: true,
		Continuations:  8,
	})
	c.Refined(pipeline.Reply{Text: "final answer"})

	out := buf.String()
	assert.Contains(t, out, "Search Results")
	assert.Contains(t, out, "use +")
	assert.Contains(t, out, "Input Tokens: 7, Output Tokens: 9")
	assert.Contains(t, out, "still truncated after 8 continuations")
	assert.Contains(t, out, "Sub-agent Result")
	assert.Contains(t, out, "Refined Output")
	assert.Contains(t, out, "final answer")
}

func TestSummary(t *testing.T) {
	var buf bytes.Buffer
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	New(&buf).Summary(&pipeline.Result{
		RunID:               "run-1",
		Iterations:          4,
		IterationCapReached: true,
		Usage:               llm.Usage{PromptTokens: 10, CompletionTokens: 20},
		StartedAt:           start,
		FinishedAt:          start.Add(1500 * time.Millisecond),
		TranscriptPath:      "out/log.md",
		ArtifactErr:         errors.New("disk full"),
		Scaffold: &scaffold.Report{
			ProjectDir: "out/adder",
			Files:      []string{"out/adder/adder.py"},
			Skipped:    []string{"README.md"},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "Created project folder: out/adder")
	assert.Contains(t, out, "Created file: out/adder/adder.py")
	assert.Contains(t, out, "Code content not found for file: README.md")
	assert.Contains(t, out, "Stopped after 4 orchestrator calls")
	assert.Contains(t, out, "Full exchange log saved to out/log.md")
	assert.Contains(t, out, "disk full")
	assert.Contains(t, out, "Run run-1 used 10 prompt and 20 completion tokens in 1.5s.")
}

func TestSetWidth(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf)
	c.SetWidth(10) // too narrow, ignored
	c.SetWidth(40)

	c.Panel("Result", strings.Repeat("word ", 40), "", colorGreen)
	for _, line := range strings.Split(strings.TrimRight(buf.String(), "\n"), "\n") {
		assert.LessOrEqual(t, lipgloss.Width(line), 40, line)
	}
}
