// Package pipeline runs the orchestrator, sub-agent and refiner stages over
// one objective.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"maestro/pkg/agent/llm"
	"maestro/pkg/config"
	"maestro/pkg/logx"
	"maestro/pkg/scaffold"
	"maestro/pkg/search"
)

// Input is what a run needs from the user.
type Input struct {
	Objective   string
	FileContent string
	UseSearch   bool
}

// Result describes a finished run.
type Result struct {
	RunID               string
	Objective           string
	UseSearch           bool
	Exchanges           []Exchange
	FinalText           string // orchestrator text after the completion marker
	Refined             Refined
	Usage               llm.Usage
	Iterations          int // orchestrator calls
	IterationCapReached bool
	StartedAt           time.Time
	FinishedAt          time.Time

	// Filled by sinks.
	Scaffold       *scaffold.Report
	TranscriptPath string
	ArtifactErr    error
}

// DriverOptions carries the optional collaborators of a Driver.
type DriverOptions struct {
	Search   search.Provider // nil disables search even when requested
	Reporter Reporter        // nil = NopReporter
	Sinks    []Sink
	Now      func() time.Time
}

// Driver sequences the stages. It owns the run state; stages only see the
// inputs of their call.
type Driver struct {
	orchestrator  *Orchestrator
	subAgent      *SubAgent
	refiner       *Refiner
	maxIterations int
	reporter      Reporter
	sinks         []Sink
	now           func() time.Time
	logger        *logx.Logger
}

// NewDriver builds the three stages on client using cfg.
func NewDriver(cfg *config.Config, client llm.LLMClient, opts DriverOptions) *Driver {
	reporter := opts.Reporter
	if reporter == nil {
		reporter = NopReporter{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Driver{
		orchestrator:  NewOrchestrator(client, cfg.Stages.Orchestrator),
		subAgent:      NewSubAgent(client, cfg.Stages.SubAgent, opts.Search),
		refiner:       NewRefiner(client, cfg.Stages.Refiner),
		maxIterations: cfg.Pipeline.MaxIterations,
		reporter:      reporter,
		sinks:         opts.Sinks,
		now:           now,
		logger:        logx.NewLogger("driver"),
	}
}

// Run drives the pipeline to completion. Stage errors (retry exhaustion
// included) abort the run; sink errors are collected in Result.ArtifactErr.
func (d *Driver) Run(ctx context.Context, in Input) (*Result, error) {
	res := &Result{
		RunID:     uuid.NewString(),
		Objective: in.Objective,
		UseSearch: in.UseSearch,
		StartedAt: d.now(),
	}
	ctx = logx.WithRunID(ctx, res.RunID)

	state := &State{
		Objective:   in.Objective,
		FileContent: in.FileContent,
		UseSearch:   in.UseSearch,
		Phase:       StateRunning,
	}
	if state.FileContent != "" {
		d.reporter.FileContent(state.FileContent)
	}
	d.logger.Info("Starting run %s", res.RunID)

	err := d.loop(ctx, state, res)
	res.Exchanges = state.Exchanges
	if err != nil {
		res.FinishedAt = d.now()
		return res, err
	}

	logx.DebugFlow(ctx, "driver", "refine", string(state.Phase), fmt.Sprintf("%d exchanges", len(state.Exchanges)))
	reply, err := d.refiner.Refine(ctx, state.Objective, state.Results())
	if err != nil {
		res.FinishedAt = d.now()
		return res, err
	}
	addUsage(&res.Usage, reply.Usage)
	d.reporter.Refined(reply)

	res.Refined = ParseRefined(reply.Text, state.Objective)
	res.FinishedAt = d.now()

	var errs []error
	for _, sink := range d.sinks {
		if err := sink.Emit(ctx, res); err != nil {
			errs = append(errs, logx.Wrap(err, "artifact output failed"))
		}
	}
	res.ArtifactErr = errors.Join(errs...)
	return res, nil
}

// loop runs the RUNNING state until the orchestrator signals completion or
// the iteration cap is reached.
func (d *Driver) loop(ctx context.Context, state *State, res *Result) error {
	var subAgentFile string
	for state.Phase == StateRunning {
		if d.maxIterations > 0 && res.Iterations >= d.maxIterations {
			d.logger.Warn("Reached the iteration cap of %d without a completion signal; refining what we have", d.maxIterations)
			res.IterationCapReached = true
			return d.transition(state, StateDone, "iteration cap")
		}

		in := OrchestratorInput{
			Objective:       state.Objective,
			PreviousResults: state.Results(),
			UseSearch:       state.UseSearch,
		}
		first := len(state.Exchanges) == 0
		if first {
			in.FileContent = state.FileContent
		}

		out, err := d.orchestrator.Next(ctx, in)
		if err != nil {
			return err
		}
		res.Iterations++
		addUsage(&res.Usage, out.Usage)
		d.reporter.Orchestrator(res.Iterations, out)
		if first {
			subAgentFile = out.FileContent
		}

		outcome := Classify(out.Text)
		if outcome.Kind == OutcomeDone {
			res.FinalText = outcome.Text
			d.logger.Info("Orchestrator reported the objective complete after %d sub-tasks", len(state.Exchanges))
			return d.transition(state, StateDone, "completion marker")
		}

		prompt := outcome.Text
		if subAgentFile != "" && len(state.Tasks) == 0 {
			prompt = fmt.Sprintf("%s\n\nFile content:\n%s", prompt, subAgentFile)
		}
		reply, err := d.subAgent.Execute(ctx, SubTask{
			Prompt:      prompt,
			SearchQuery: out.SearchQuery,
			UseSearch:   state.UseSearch,
		}, state.Tasks)
		if err != nil {
			return err
		}
		addUsage(&res.Usage, reply.Usage)
		d.reporter.SubAgent(res.Iterations, prompt, reply)

		state.Tasks = append(state.Tasks, TaskRecord{Task: prompt, Result: reply.Text})
		state.Exchanges = append(state.Exchanges, Exchange{Prompt: prompt, Result: reply.Text, SearchQuery: out.SearchQuery})
		subAgentFile = ""

		if err := d.transition(state, StateRunning, fmt.Sprintf("sub-task %d done", len(state.Tasks))); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) transition(state *State, to DriverState, reason string) error {
	from := state.Phase
	if err := state.transition(to); err != nil {
		return err
	}
	d.logger.DebugState("transition", fmt.Sprintf("%s -> %s", from, to), reason)
	return nil
}

func addUsage(total *llm.Usage, u llm.Usage) {
	total.PromptTokens += u.PromptTokens
	total.CompletionTokens += u.CompletionTokens
}
