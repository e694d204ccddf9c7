package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maestro/pkg/agent/llm"
	"maestro/pkg/agent/llmerrors"
	"maestro/pkg/config"
	"maestro/pkg/persistence"
	"maestro/pkg/pipeline"
	"maestro/pkg/version"
)

func TestDetectSeedFile(t *testing.T) {
	tests := []struct {
		objective string
		wantPath  string
		wantRest  string
		wantOK    bool
	}{
		{"Review ./main.py and add tests", "./main.py", "Review", true},
		{"Refactor src/app/server.go", "src/app/server.go", "Refactor", true},
		{"Write a function that adds two numbers", "", "Write a function that adds two numbers", false},
		{"Compare a/b without extension", "", "Compare a/b without extension", false},
	}
	for _, tt := range tests {
		t.Run(tt.objective, func(t *testing.T) {
			path, rest, ok := detectSeedFile(tt.objective)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantPath, path)
			assert.Equal(t, tt.wantRest, rest)
		})
	}
}

func TestSeedContent(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile("main.py", []byte("x = 1\n"), 0o644))
	require.NoError(t, os.WriteFile("notes.txt", []byte("use pytest"), 0o644))

	content, objective, err := seedContent("Review ./main.py", nil)
	require.NoError(t, err)
	assert.Equal(t, "x = 1\n", content)
	assert.Equal(t, "Review", objective)

	content, objective, err = seedContent("Review ./main.py", []string{"notes.txt"})
	require.NoError(t, err)
	assert.Equal(t, "File: ./main.py\nx = 1\n\n\nFile: notes.txt\nuse pytest", content)
	assert.Equal(t, "Review", objective)

	content, objective, err = seedContent("Review ./missing.py", nil)
	require.NoError(t, err)
	assert.Empty(t, content)
	assert.Equal(t, "Review ./missing.py", objective, "unreadable paths stay in the objective")

	_, _, err = seedContent("anything", []string{"missing.txt"})
	assert.Error(t, err)
}

func TestPrompterCollect(t *testing.T) {
	in := strings.NewReader("y\n3\na.txt\n\nWrite a CLI\nyes\n")
	var out bytes.Buffer

	answers, err := newPrompter(in, &out).collect(true)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, answers.Files)
	assert.Equal(t, "Write a CLI", answers.Objective)
	assert.True(t, answers.UseSearch)
	assert.Contains(t, out.String(), "Enter the file path for file 2")
	assert.Contains(t, out.String(), "Do you want to use search? (y/n): ")
}

func TestPrompterCollectWithoutSearchQuestion(t *testing.T) {
	answers, err := newPrompter(strings.NewReader("n\nSummarize Go generics"), &bytes.Buffer{}).collect(false)
	require.NoError(t, err)
	assert.Empty(t, answers.Files)
	assert.Equal(t, "Summarize Go generics", answers.Objective)
	assert.False(t, answers.UseSearch)
}

func TestPrompterRejectsEmptyObjective(t *testing.T) {
	_, err := newPrompter(strings.NewReader("n\n\n"), &bytes.Buffer{}).collect(true)
	assert.ErrorIs(t, err, errNoObjective)
}

func TestPrompterRejectsBadFileCount(t *testing.T) {
	_, err := newPrompter(strings.NewReader("y\nmany\n"), &bytes.Buffer{}).collect(true)
	assert.Error(t, err)
}

// scriptedTransport answers requests with canned responses in order and
// adds Groq-style rate limit headers.
type scriptedTransport struct {
	mu        sync.Mutex
	responses []string
	models    []string
}

func (s *scriptedTransport) Complete(_ context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.models = append(s.models, req.Model)
	if len(s.responses) == 0 {
		return llm.CompletionResponse{}, fmt.Errorf("no scripted response for %s", req.Model)
	}
	content := s.responses[0]
	s.responses = s.responses[1:]

	header := http.Header{}
	header.Set("x-ratelimit-limit-tokens", "30000")
	header.Set("x-ratelimit-remaining-tokens", "29000")
	header.Set("x-ratelimit-reset-tokens", "2s")
	return llm.CompletionResponse{
		Content: content,
		Model:   req.Model,
		Usage:   llm.Usage{PromptTokens: 100, CompletionTokens: 20},
		Header:  header,
	}, nil
}

func testRunConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Output.Dir = filepath.Join(dir, "out")
	cfg.Output.ArchivePath = filepath.Join(dir, "runs.db")
	return cfg
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestRunObjective(t *testing.T) {
	cfg := testRunConfig(t)
	transport := &scriptedTransport{responses: []string{
		"Write add(a, b) in Python.",
		"def add(a, b):\n    return a + b",
		"The task is complete: add is implemented.",
		"Project Name: adder\n<folder_structure>{\"adder.py\": null}</folder_structure>\n" +
			"Filename: adder.py\n```python\ndef add(a, b):\n    return a + b\n```\n",
	}}
	metricsPath := filepath.Join(t.TempDir(), "metrics.prom")
	var out bytes.Buffer

	res, err := runObjective(context.Background(), cfg,
		pipeline.Input{Objective: "Write a function that adds two numbers"},
		runDeps{
			out:        &out,
			transports: map[string]llm.LLMClient{config.ProviderGroq: transport},
			sleep:      noSleep,
			metricsOut: metricsPath,
		})
	require.NoError(t, err)
	require.NoError(t, res.ArtifactErr)
	assert.Len(t, res.Exchanges, 1)
	assert.Equal(t, []string{
		cfg.Stages.Orchestrator.Model, cfg.Stages.SubAgent.Model,
		cfg.Stages.Orchestrator.Model, cfg.Stages.Refiner.Model,
	}, transport.models)

	code, err := os.ReadFile(filepath.Join(cfg.Output.Dir, "adder", "adder.py"))
	require.NoError(t, err)
	assert.Contains(t, string(code), "return a + b")
	assert.FileExists(t, res.TranscriptPath)

	store, err := persistence.Open(cfg.Output.ArchivePath)
	require.NoError(t, err)
	defer store.Close()
	run, err := store.GetRun(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, "add is implemented.", run.FinalText)

	metricsText, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(metricsText), "maestro_llm_requests_total")

	assert.Contains(t, out.String(), "Refined Output")
	assert.Contains(t, out.String(), "Created file:")
}

func TestRunObjectiveFailsOnStageError(t *testing.T) {
	cfg := testRunConfig(t)
	cfg.Output.ArchivePath = ""
	failing := llm.ClientFunc(func(context.Context, llm.CompletionRequest) (llm.CompletionResponse, error) {
		return llm.CompletionResponse{}, llmerrors.FromStatus(http.StatusUnauthorized, nil, "invalid api key", nil)
	})

	_, err := runObjective(context.Background(), cfg, pipeline.Input{Objective: "anything"}, runDeps{
		out:        &bytes.Buffer{},
		transports: map[string]llm.LLMClient{config.ProviderGroq: failing},
		sleep:      noSleep,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "orchestrator")
}

func TestRunObjectiveDisablesSearchWithoutKey(t *testing.T) {
	t.Setenv(config.EnvTavilyAPIKey, "")
	cfg := testRunConfig(t)
	cfg.Output.ArchivePath = ""
	transport := &scriptedTransport{responses: []string{"The task is complete: nothing to do", "done"}}
	var out bytes.Buffer

	res, err := runObjective(context.Background(), cfg, pipeline.Input{Objective: "trivial", UseSearch: true}, runDeps{
		out:        &out,
		transports: map[string]llm.LLMClient{config.ProviderGroq: transport},
		sleep:      noSleep,
	})
	require.NoError(t, err)
	assert.False(t, res.UseSearch)
	assert.Contains(t, out.String(), "Search disabled")
}

func TestRunObjectiveStopsStatusServer(t *testing.T) {
	cfg := testRunConfig(t)
	cfg.Output.ArchivePath = ""
	cfg.Metrics.ListenAddr = "127.0.0.1:0"
	transport := &scriptedTransport{responses: []string{"The task is complete: nothing to do", "done"}}

	var addr string
	_, err := runObjective(context.Background(), cfg, pipeline.Input{Objective: "trivial"}, runDeps{
		out:        &bytes.Buffer{},
		transports: map[string]llm.LLMClient{config.ProviderGroq: transport},
		sleep:      noSleep,
		serverStarted: func(a string) {
			addr = a
			resp, err := http.Get("http://" + a + "/healthz")
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, http.StatusOK, resp.StatusCode)
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, addr)

	client := &http.Client{Timeout: time.Second}
	assert.Eventually(t, func() bool {
		resp, err := client.Get("http://" + addr + "/healthz")
		if err != nil {
			return true
		}
		resp.Body.Close()
		return false
	}, 5*time.Second, 50*time.Millisecond)
}

func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "none.env")}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestHistoryCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	store, err := persistence.Open(path)
	require.NoError(t, err)
	started := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveRun(context.Background(), &persistence.Run{
		ID:          "run-42",
		Objective:   "Write a function that adds two numbers",
		FinalText:   "done",
		Refined:     "refined body",
		ProjectName: "adder",
		StartedAt:   started,
		FinishedAt:  started.Add(3 * time.Second),
		Exchanges:   []persistence.Exchange{{Prompt: "Write add", Result: "def add"}},
	}))
	require.NoError(t, store.Close())

	out, err := executeRoot(t, "history", "--archive", path)
	require.NoError(t, err)
	assert.Contains(t, out, "RUN ID")
	assert.Contains(t, out, "run-42")
	assert.Contains(t, out, "adder")

	out, err = executeRoot(t, "history", "--archive", path, "run-42")
	require.NoError(t, err)
	assert.Contains(t, out, "Run run-42")
	assert.Contains(t, out, "Final: done")
	assert.Contains(t, out, "Task 1:\nPrompt: Write add\nResult: def add")
	assert.Contains(t, out, "refined body")

	_, err = executeRoot(t, "history", "--archive", path, "missing")
	assert.ErrorIs(t, err, persistence.ErrRunNotFound)
}

func TestVersionCommand(t *testing.T) {
	out, err := executeRoot(t, "version")
	require.NoError(t, err)
	assert.Equal(t, version.String()+"\n", out)
}

func TestConfigCommand(t *testing.T) {
	out, err := executeRoot(t, "config", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"orchestrator"`)
	assert.Contains(t, out, cfgModel())
}

func cfgModel() string {
	return config.DefaultConfig().Stages.Orchestrator.Model
}

func TestRunRequiresObjectiveWithoutTerminal(t *testing.T) {
	if isTerminal() {
		t.Skip("stdin is a terminal")
	}
	_, err := executeRoot(t, "run")
	assert.ErrorIs(t, err, errNoObjective)
}
