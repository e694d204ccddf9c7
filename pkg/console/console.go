// Package console renders pipeline progress as bordered terminal panels.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"maestro/pkg/pipeline"
	"maestro/pkg/scaffold"
)

const defaultWidth = 100

// Panel colours.
const (
	colorGreen  = lipgloss.Color("34")
	colorBlue   = lipgloss.Color("33")
	colorYellow = lipgloss.Color("214")
	colorRed    = lipgloss.Color("196")
	colorDim    = lipgloss.Color("243")
)

var _ pipeline.Reporter = (*Console)(nil)

// Console implements pipeline.Reporter on top of a writer.
type Console struct {
	mu    sync.Mutex
	w     io.Writer
	width int
}

// New returns a console writing to w (stdout when nil).
func New(w io.Writer) *Console {
	if w == nil {
		w = os.Stdout
	}
	return &Console{w: w, width: defaultWidth}
}

// SetWidth sets the panel width.
func (c *Console) SetWidth(width int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if width > 20 {
		c.width = width
	}
}

// Panel prints body in a bordered box with a title line and an optional
// subtitle below it.
func (c *Console) Panel(title, body, subtitle string, color lipgloss.Color) {
	c.mu.Lock()
	defer c.mu.Unlock()

	heading := lipgloss.NewStyle().Bold(true).Foreground(color).Render(title)
	box := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(0, 1).
		Width(c.width - 2).
		Render(strings.TrimRight(body, "\n"))

	parts := []string{heading, box}
	if subtitle != "" {
		parts = append(parts, lipgloss.NewStyle().Italic(true).Foreground(colorDim).Render(subtitle))
	}
	fmt.Fprintln(c.w, lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// Line prints a plain status line.
func (c *Console) Line(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, format+"\n", args...)
}

// Warning prints a highlighted warning line.
func (c *Console) Warning(format string, args ...any) {
	c.Line("%s %s", lipgloss.NewStyle().Bold(true).Foreground(colorYellow).Render("Warning:"), fmt.Sprintf(format, args...))
}

// FileContent implements pipeline.Reporter.
func (c *Console) FileContent(content string) {
	c.Panel("File Content", "File content:\n"+content, "", colorBlue)
}

// Orchestrator implements pipeline.Reporter.
func (c *Console) Orchestrator(iteration int, out pipeline.OrchestratorOutput) {
	c.Line(" Total Tokens Used: %d", out.Usage.CompletionTokens)
	if out.HasQuery {
		c.Panel("Search Query", "Search Query: "+out.SearchQuery, "", colorBlue)
	}
	title := fmt.Sprintf("Orchestrator (iteration %d)", iteration)
	if outcome := pipeline.Classify(out.Text); outcome.Kind == pipeline.OutcomeDone {
		c.Panel(title, outcome.Text, "Objective complete, refining the results", colorGreen)
		return
	}
	c.Panel(title, out.Text, "Sending task to Subagent", colorGreen)
}

// SubAgent implements pipeline.Reporter.
func (c *Console) SubAgent(_ int, _ string, reply pipeline.Reply) {
	if reply.SearchAnswer != "" {
		c.Panel("Search Results", reply.SearchAnswer, "", colorYellow)
	}
	c.Line("Input Tokens: %d, Output Tokens: %d", reply.Usage.PromptTokens, reply.Usage.CompletionTokens)
	if reply.StillTruncated {
		c.Warning("Output still truncated after %d continuations.", reply.Continuations)
	}
	c.Panel("Sub-agent Result", reply.Text, "Task completed, sending result to Orchestrator", colorBlue)
}

// Refined implements pipeline.Reporter.
func (c *Console) Refined(reply pipeline.Reply) {
	c.Line("Input Tokens: %d, Output Tokens: %d", reply.Usage.PromptTokens, reply.Usage.CompletionTokens)
	if reply.StillTruncated {
		c.Warning("Refined output may be incomplete.")
	}
	c.Panel("Refined Output", reply.Text, "Refinement complete", colorGreen)
}

// Scaffold prints the folders and files created for a project.
func (c *Console) Scaffold(report *scaffold.Report) {
	if report == nil {
		return
	}
	c.Panel("Project Folder", "Created project folder: "+report.ProjectDir, "", colorGreen)
	for _, dir := range report.Dirs {
		c.Panel("Folder Creation", "Created folder: "+dir, "", colorBlue)
	}
	for _, file := range report.Files {
		c.Panel("File Creation", "Created file: "+file, "", colorGreen)
	}
	for _, name := range report.Skipped {
		c.Panel("Missing Code Content", "Code content not found for file: "+name, "", colorYellow)
	}
}

// Summary prints the closing lines of a run.
func (c *Console) Summary(res *pipeline.Result) {
	c.Scaffold(res.Scaffold)
	if res.IterationCapReached {
		c.Warning("Stopped after %d orchestrator calls without a completion signal.", res.Iterations)
	}
	if res.TranscriptPath != "" {
		c.Line("Full exchange log saved to %s", res.TranscriptPath)
	}
	if res.ArtifactErr != nil {
		c.Panel("Artifact Errors", res.ArtifactErr.Error(), "", colorRed)
	}
	c.Line("Run %s used %d prompt and %d completion tokens in %s.",
		res.RunID, res.Usage.PromptTokens, res.Usage.CompletionTokens, res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond))
}

// Error prints a fatal error panel.
func (c *Console) Error(err error) {
	c.Panel("Error", err.Error(), "", colorRed)
}
