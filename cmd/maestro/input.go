package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"

	"maestro/pkg/logx"
)

var seedPathPattern = regexp.MustCompile(`[./\w]+\.[\w]+`)

var errNoObjective = errors.New("no objective given; pass --objective or run in a terminal")

// isTerminal reports whether stdin is an interactive terminal.
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// terminalWidth reports the column count of w when it is a terminal.
func terminalWidth(w io.Writer) (int, bool) {
	f, ok := w.(*os.File)
	if !ok {
		return 0, false
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return 0, false
	}
	return width, true
}

// prompter asks questions on an interactive terminal.
type prompter struct {
	in       *bufio.Reader
	out      io.Writer
	question *color.Color
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out, question: color.New(color.FgCyan, color.Bold)}
}

func (p *prompter) ask(question string) (string, error) {
	p.question.Fprint(p.out, question)
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read answer: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func (p *prompter) confirm(question string) (bool, error) {
	answer, err := p.ask(question + " (y/n): ")
	if err != nil {
		return false, err
	}
	return strings.EqualFold(answer, "y") || strings.EqualFold(answer, "yes"), nil
}

// interactiveInput collects the file paths, the objective and, unless
// askSearch is false, the search choice.
type interactiveInput struct {
	Files     []string
	Objective string
	UseSearch bool
}

func (p *prompter) collect(askSearch bool) (interactiveInput, error) {
	var in interactiveInput

	include, err := p.confirm("Do you want to include files in the objective?")
	if err != nil {
		return in, err
	}
	if include {
		raw, err := p.ask("Enter the number of files: ")
		if err != nil {
			return in, err
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return in, fmt.Errorf("invalid number of files %q", raw)
		}
		for i := 1; i <= n; i++ {
			path, err := p.ask(fmt.Sprintf("Enter the file path for file %d (or press Enter to finish): ", i))
			if err != nil {
				return in, err
			}
			if path == "" {
				break
			}
			in.Files = append(in.Files, path)
		}
	}

	in.Objective, err = p.ask("Please enter your objective: ")
	if err != nil {
		return in, err
	}
	if in.Objective == "" {
		return in, errNoObjective
	}

	if askSearch {
		in.UseSearch, err = p.confirm("Do you want to use search?")
		if err != nil {
			return in, err
		}
	}
	return in, nil
}

// detectSeedFile finds a file path mentioned in an objective containing a
// "/" and returns it with the objective cut before the path.
func detectSeedFile(objective string) (path, rest string, ok bool) {
	if !strings.Contains(objective, "/") {
		return "", objective, false
	}
	loc := seedPathPattern.FindStringIndex(objective)
	if loc == nil {
		return "", objective, false
	}
	return objective[loc[0]:loc[1]], strings.TrimSpace(objective[:loc[0]]), true
}

// seedContent builds the file content handed to the first orchestrator call.
// A path found in the objective is read and removed from it when the file
// exists; explicit files must be readable. With several sources each one is
// prefixed by its path.
func seedContent(objective string, files []string) (content, cleaned string, err error) {
	cleaned = objective
	type source struct{ path, data string }
	var sources []source

	if path, rest, ok := detectSeedFile(objective); ok {
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			logx.NewLogger("input").Warn("Objective mentions %s but it could not be read: %v", path, readErr)
		} else {
			sources = append(sources, source{path, string(data)})
			if rest != "" {
				cleaned = rest
			}
		}
	}
	for _, path := range files {
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return "", objective, fmt.Errorf("read input file: %w", readErr)
		}
		sources = append(sources, source{path, string(data)})
	}

	switch len(sources) {
	case 0:
		return "", cleaned, nil
	case 1:
		return sources[0].data, cleaned, nil
	}
	parts := make([]string, len(sources))
	for i, s := range sources {
		parts[i] = fmt.Sprintf("File: %s\n%s", s.path, s.data)
	}
	return strings.Join(parts, "\n\n"), cleaned, nil
}
