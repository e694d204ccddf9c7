package pipeline

import "strings"

// OutcomeKind tags an orchestrator outcome.
type OutcomeKind int

const (
	// OutcomeContinue carries the next sub-task prompt.
	OutcomeContinue OutcomeKind = iota
	// OutcomeDone carries the final answer.
	OutcomeDone
)

// Outcome is the classified orchestrator response.
type Outcome struct {
	Kind OutcomeKind
	Text string // next task for Continue, final answer for Done
}

// Classify turns orchestrator text into Continue(task) or Done(final). Done is
// chosen whenever the completion marker occurs anywhere in the text; the final
// answer is the text with every marker removed, trimmed.
func Classify(text string) Outcome {
	if strings.Contains(text, CompletionMarker) {
		return Outcome{Kind: OutcomeDone, Text: strings.TrimSpace(strings.ReplaceAll(text, CompletionMarker, ""))}
	}
	return Outcome{Kind: OutcomeContinue, Text: text}
}
