package pipeline

import (
	"context"
	"fmt"

	"maestro/pkg/logx"
	"maestro/pkg/persistence"
	"maestro/pkg/scaffold"
	"maestro/pkg/transcript"
)

// Sink consumes a finished run. Sinks run in order and may fill the
// artifact fields of the result.
type Sink interface {
	Emit(ctx context.Context, res *Result) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, res *Result) error

// Emit implements Sink.
func (f SinkFunc) Emit(ctx context.Context, res *Result) error {
	return f(ctx, res)
}

// ScaffoldSink creates the project folder and files of the refined output.
type ScaffoldSink struct {
	Builder *scaffold.Builder
}

// Emit implements Sink. Runs whose output declares neither files nor a
// folder structure are not scaffolded.
func (s ScaffoldSink) Emit(_ context.Context, res *Result) error {
	if res.Refined.Tree.Empty() && len(res.Refined.Files) == 0 {
		logx.NewLogger("scaffold").Info("No folder structure or code files in the refined output; skipping scaffolding")
		return nil
	}
	report, err := s.Builder.Build(res.Refined.ProjectName, res.Refined.Tree, res.Refined.Files)
	res.Scaffold = report
	if err != nil {
		return fmt.Errorf("scaffold %s: %w", res.Refined.ProjectName, err)
	}
	return nil
}

// TranscriptSink writes the exchange log into Dir.
type TranscriptSink struct {
	Dir string
}

// Emit implements Sink.
func (s TranscriptSink) Emit(_ context.Context, res *Result) error {
	entries := make([]transcript.Entry, len(res.Exchanges))
	for i := range res.Exchanges {
		entries[i] = transcript.Entry{Prompt: res.Exchanges[i].Prompt, Result: res.Exchanges[i].Result}
	}
	path, err := transcript.Write(s.Dir, res.StartedAt, transcript.Log{
		Objective: res.Objective,
		Entries:   entries,
		Refined:   res.Refined.Text,
	})
	if err != nil {
		return err //nolint:wrapcheck // already descriptive
	}
	res.TranscriptPath = path
	return nil
}

// RunStore saves archived runs.
type RunStore interface {
	SaveRun(ctx context.Context, run *persistence.Run) error
}

// ArchiveSink records the run in the run archive.
type ArchiveSink struct {
	Store RunStore
}

// Emit implements Sink.
func (s ArchiveSink) Emit(ctx context.Context, res *Result) error {
	if err := s.Store.SaveRun(ctx, ArchiveRecord(res)); err != nil {
		return fmt.Errorf("archive run %s: %w", res.RunID, err)
	}
	return nil
}

// ArchiveRecord converts a result into its archive form.
func ArchiveRecord(res *Result) *persistence.Run {
	run := &persistence.Run{
		ID:                  res.RunID,
		Objective:           res.Objective,
		UseSearch:           res.UseSearch,
		FinalText:           res.FinalText,
		Refined:             res.Refined.Text,
		ProjectName:         res.Refined.ProjectName,
		IterationCapReached: res.IterationCapReached,
		PromptTokens:        res.Usage.PromptTokens,
		CompletionTokens:    res.Usage.CompletionTokens,
		StartedAt:           res.StartedAt,
		FinishedAt:          res.FinishedAt,
	}
	for i := range res.Exchanges {
		run.Exchanges = append(run.Exchanges, persistence.Exchange{
			Prompt:      res.Exchanges[i].Prompt,
			Result:      res.Exchanges[i].Result,
			SearchQuery: res.Exchanges[i].SearchQuery,
		})
	}
	return run
}
