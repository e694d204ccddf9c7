// Package transcript writes the exchange log of a pipeline run as markdown.
package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"maestro/pkg/logx"
	"maestro/pkg/utils"
)

const maxStemLength = 25

// Entry is one sub-task prompt and its result.
type Entry struct {
	Prompt string
	Result string
}

// Log is everything a transcript contains.
type Log struct {
	Objective string
	Entries   []Entry
	Refined   string
}

func banner(title string) string {
	bar := strings.Repeat("=", 40)
	return bar + " " + title + " " + bar + "\n\n"
}

// FileName returns "HH-MM-SS_<objective>.md" where the objective has every
// run of non-word characters replaced by "_" and is cut to 25 bytes.
func FileName(at time.Time, objective string) string {
	return fmt.Sprintf("%s_%s.md", at.Format("15-04-05"), utils.SanitizeFileStem(objective, maxStemLength))
}

// Render formats the log.
func Render(l Log) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Objective: %s\n\n", l.Objective)
	b.WriteString(banner("Task Breakdown"))
	for i, e := range l.Entries {
		fmt.Fprintf(&b, "Task %d:\n", i+1)
		fmt.Fprintf(&b, "Prompt: %s\n", e.Prompt)
		fmt.Fprintf(&b, "Result: %s\n\n", e.Result)
	}
	b.WriteString(banner("Refined Final Output"))
	b.WriteString(l.Refined)
	return b.String()
}

// Write renders l into dir and returns the file path.
func Write(dir string, at time.Time, l Log) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create transcript dir: %w", err)
	}
	path := filepath.Join(dir, FileName(at, l.Objective))
	if err := os.WriteFile(path, []byte(Render(l)), 0o644); err != nil {
		return "", fmt.Errorf("write transcript: %w", err)
	}
	logx.NewLogger("transcript").Info("Full exchange log saved to %s", path)
	return path, nil
}
