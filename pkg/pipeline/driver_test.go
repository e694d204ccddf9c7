package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maestro/pkg/agent"
	"maestro/pkg/agent/llm"
	"maestro/pkg/agent/llmerrors"
	"maestro/pkg/config"
	"maestro/pkg/logx"
	"maestro/pkg/persistence"
	"maestro/pkg/scaffold"
)

const refinedAdder = "Project Name: adder\n" +
	"<folder_structure>{\"adder.py\": null}</folder_structure>\n" +
	"Filename: adder.py\n```python\ndef add(a, b):\n    return a + b\n```\n"

type recordingReporter struct {
	file         string
	orchestrator []int
	subAgent     []string
	refined      int
}

func (r *recordingReporter) FileContent(content string) { r.file = content }
func (r *recordingReporter) Orchestrator(i int, _ OrchestratorOutput) {
	r.orchestrator = append(r.orchestrator, i)
}
func (r *recordingReporter) SubAgent(_ int, prompt string, _ Reply) {
	r.subAgent = append(r.subAgent, prompt)
}
func (r *recordingReporter) Refined(Reply) { r.refined++ }

type memoryStore struct {
	runs []*persistence.Run
}

func (m *memoryStore) SaveRun(_ context.Context, run *persistence.Run) error {
	m.runs = append(m.runs, run)
	return nil
}

func fixedClock() func() time.Time {
	at := time.Date(2024, 5, 1, 9, 7, 3, 0, time.UTC)
	return func() time.Time { return at }
}

func TestDriverSingleExchange(t *testing.T) {
	cfg := config.DefaultConfig()
	mock := newMock(
		reply("Write add(a, b) in Python.", 40),
		reply("def add(a, b):\n    return a + b", 20),
		reply("The task is complete: add(a, b) is implemented.", 15),
		reply(refinedAdder, 60),
	)
	reporter := &recordingReporter{}
	d := NewDriver(cfg, mock, DriverOptions{Reporter: reporter, Now: fixedClock()})

	res, err := d.Run(context.Background(), Input{Objective: "Write a function that adds two numbers"})
	require.NoError(t, err)

	require.Len(t, res.Exchanges, 1)
	assert.Equal(t, "Write add(a, b) in Python.", res.Exchanges[0].Prompt)
	assert.Equal(t, "def add(a, b):\n    return a + b", res.Exchanges[0].Result)
	assert.Equal(t, "add(a, b) is implemented.", res.FinalText)
	assert.Equal(t, 2, res.Iterations)
	assert.False(t, res.IterationCapReached)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 135, res.Usage.CompletionTokens)
	assert.Equal(t, 40, res.Usage.PromptTokens)

	assert.Equal(t, "adder", res.Refined.ProjectName)
	require.Len(t, res.Refined.Files, 1)
	assert.Equal(t, "adder.py", res.Refined.Files[0].Name)

	reqs := mock.Requests()
	require.Len(t, reqs, 4)
	models := make([]string, len(reqs))
	for i := range reqs {
		models[i] = reqs[i].Model
	}
	assert.Equal(t, []string{
		cfg.Stages.Orchestrator.Model,
		cfg.Stages.SubAgent.Model,
		cfg.Stages.Orchestrator.Model,
		cfg.Stages.Refiner.Model,
	}, models)
	assert.True(t, strings.HasSuffix(userContent(reqs[2]), "Previous sub-task results:\ndef add(a, b):\n    return a + b"))
	assert.Contains(t, userContent(reqs[3]), "Here are the Sub-task results:\ndef add(a, b):")

	assert.Equal(t, []int{1, 2}, reporter.orchestrator)
	assert.Equal(t, []string{"Write add(a, b) in Python."}, reporter.subAgent)
	assert.Equal(t, 1, reporter.refined)
	assert.Empty(t, reporter.file)
}

func TestDriverFileContentOnlyInFirstSubTask(t *testing.T) {
	mock := newMock(
		reply("Review the file.", 10),
		reply("Looks fine.", 10),
		reply("Add tests.", 10),
		reply("Tests added.", 10),
		reply("The task is complete: reviewed", 10),
		reply("final", 10),
	)
	reporter := &recordingReporter{}
	d := NewDriver(config.DefaultConfig(), mock, DriverOptions{Reporter: reporter})

	res, err := d.Run(context.Background(), Input{Objective: "Review ./main.py", FileContent: "x = 1"})
	require.NoError(t, err)
	require.Len(t, res.Exchanges, 2)
	assert.Equal(t, "x = 1", reporter.file)

	reqs := mock.Requests()
	require.Len(t, reqs, 6)
	assert.Contains(t, userContent(reqs[0]), "File content:\nx = 1")
	assert.Equal(t, "Review the file.\n\nFile content:\nx = 1", userContent(reqs[1]))
	assert.NotContains(t, userContent(reqs[2]), "File content:")
	assert.Equal(t, "Add tests.", userContent(reqs[3]))
	assert.Contains(t, systemContent(reqs[3]), "Task: Review the file.\n\nFile content:\nx = 1\nResult: Looks fine.")
	assert.Equal(t, "Review the file.\n\nFile content:\nx = 1", res.Exchanges[0].Prompt)
}

func TestDriverIterationCap(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Pipeline.MaxIterations = 2
	mock := newMock(
		reply("task 1", 10),
		reply("result 1", 10),
		reply("task 2", 10),
		reply("result 2", 10),
		reply("refined", 10),
	)
	d := NewDriver(cfg, mock, DriverOptions{})

	res, err := d.Run(context.Background(), Input{Objective: "never ends"})
	require.NoError(t, err)
	assert.True(t, res.IterationCapReached)
	assert.Equal(t, 2, res.Iterations)
	assert.Len(t, res.Exchanges, 2)
	assert.Empty(t, res.FinalText)
	assert.Equal(t, "refined", res.Refined.Text)
	assert.Len(t, mock.Requests(), 5)
}

func TestDriverStageErrorAbortsRun(t *testing.T) {
	exhausted := llmerrors.NewRetriesExhaustedError(errors.New("rate limited"), 10)
	mock := agent.NewMockLLMClient(
		[]llm.CompletionResponse{reply("task", 10)},
		[]error{nil, exhausted},
	)
	d := NewDriver(config.DefaultConfig(), mock, DriverOptions{Sinks: []Sink{SinkFunc(func(context.Context, *Result) error {
		t.Fatal("sinks must not run for failed runs")
		return nil
	})}})

	res, err := d.Run(context.Background(), Input{Objective: "obj"})
	require.Error(t, err)
	assert.ErrorIs(t, err, llmerrors.ErrMaxRetriesExceeded)
	assert.Contains(t, err.Error(), "subagent:")
	require.NotNil(t, res)
	assert.Empty(t, res.Exchanges)
	assert.False(t, res.FinishedAt.IsZero())
}

func TestDriverSinks(t *testing.T) {
	dir := t.TempDir()
	store := &memoryStore{}
	failing := errors.New("disk full")

	mock := newMock(
		reply("Write add.", 10),
		reply("def add(a, b):\n    return a + b", 10),
		reply("The task is complete: done", 10),
		reply(refinedAdder, 10),
	)
	d := NewDriver(config.DefaultConfig(), mock, DriverOptions{
		Now: fixedClock(),
		Sinks: []Sink{
			ScaffoldSink{Builder: scaffold.NewBuilder(dir)},
			SinkFunc(func(context.Context, *Result) error { return failing }),
			TranscriptSink{Dir: dir},
			ArchiveSink{Store: store},
		},
	})

	res, err := d.Run(context.Background(), Input{Objective: "Write a function that adds two numbers"})
	require.NoError(t, err)
	assert.ErrorIs(t, res.ArtifactErr, failing)

	require.NotNil(t, res.Scaffold)
	code, err := os.ReadFile(filepath.Join(dir, "adder", "adder.py"))
	require.NoError(t, err)
	assert.Equal(t, "def add(a, b):\n    return a + b", string(code))

	assert.Equal(t, filepath.Join(dir, "09-07-03_Write_a_function_that_add.md"), res.TranscriptPath)
	data, err := os.ReadFile(res.TranscriptPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Write a function that adds two numbers")
	assert.Contains(t, string(data), "Write add.")

	require.Len(t, store.runs, 1)
	run := store.runs[0]
	assert.Equal(t, res.RunID, run.ID)
	assert.Equal(t, "adder", run.ProjectName)
	assert.Equal(t, "done", run.FinalText)
	require.Len(t, run.Exchanges, 1)
	assert.Equal(t, "Write add.", run.Exchanges[0].Prompt)
}

func TestDriverArchivesToSQLite(t *testing.T) {
	store, err := persistence.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	mock := newMock(reply("The task is complete: trivial", 5), reply("refined text", 5))
	d := NewDriver(config.DefaultConfig(), mock, DriverOptions{Sinks: []Sink{ArchiveSink{Store: store}}})

	res, err := d.Run(context.Background(), Input{Objective: "trivial"})
	require.NoError(t, err)
	require.NoError(t, res.ArtifactErr)
	assert.Empty(t, res.Exchanges)

	run, err := store.GetRun(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, "trivial", run.FinalText)
	assert.Equal(t, "refined text", run.Refined)
	assert.Empty(t, run.Exchanges)
}

func TestScaffoldSinkSkipsWithoutFiles(t *testing.T) {
	dir := t.TempDir()
	res := &Result{Refined: ParseRefined("plain prose answer", "obj")}

	require.NoError(t, ScaffoldSink{Builder: scaffold.NewBuilder(dir)}.Emit(context.Background(), res))
	assert.Nil(t, res.Scaffold)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDriverLogsTransitionsAndSinkErrors(t *testing.T) {
	var buf bytes.Buffer
	logx.SetOutput(&buf)
	logx.SetDebug(true)
	logx.SetDebugDomains(nil)
	defer func() {
		logx.SetOutput(nil)
		logx.SetDebug(false)
	}()

	mock := newMock(
		reply("Write add(a, b) in Python.", 40),
		reply("def add(a, b):\n    return a + b", 20),
		reply("The task is complete: done", 15),
		reply("no artifacts", 10),
	)
	failing := SinkFunc(func(context.Context, *Result) error { return errors.New("disk full") })
	d := NewDriver(config.DefaultConfig(), mock, DriverOptions{Sinks: []Sink{failing}, Now: fixedClock()})

	res, err := d.Run(context.Background(), Input{Objective: "add"})
	require.NoError(t, err)
	require.Error(t, res.ArtifactErr)
	assert.Equal(t, "artifact output failed: disk full", res.ArtifactErr.Error())

	out := buf.String()
	assert.Contains(t, out, "[driver] DEBUG: State transition: RUNNING -> RUNNING - sub-task 1 done")
	assert.Contains(t, out, "[driver] DEBUG: State transition: RUNNING -> DONE - completion marker")
	assert.Contains(t, out, "ERROR: artifact output failed: disk full")
}
