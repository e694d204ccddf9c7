package pipeline

import (
	"encoding/json"
	"regexp"
	"strings"

	"maestro/pkg/logx"
	"maestro/pkg/scaffold"
	"maestro/pkg/utils"
)

var (
	projectNamePattern     = regexp.MustCompile(`Project Name: (.*)`)
	folderStructurePattern = regexp.MustCompile(`(?s)<folder_structure>(.*?)</folder_structure>`)
	codeBlockPattern       = regexp.MustCompile("(?s)Filename: (\\S+)\\s*```[\\w]*\\n(.*?)\\n```")
)

// ExtractSearchQuery finds the first JSON object in text with a string
// "search_query" key. It returns the query and text with that object removed
// and trimmed; ok is false (and text is returned unchanged) when there is none.
func ExtractSearchQuery(text string) (query, rest string, ok bool) {
	for i := strings.IndexByte(text, '{'); i >= 0; {
		dec := json.NewDecoder(strings.NewReader(text[i:]))
		var obj map[string]any
		if err := dec.Decode(&obj); err == nil {
			if q, isString := obj["search_query"].(string); isString {
				end := i + int(dec.InputOffset())
				return q, strings.TrimSpace(text[:i] + text[end:]), true
			}
		}
		next := strings.IndexByte(text[i+1:], '{')
		if next < 0 {
			break
		}
		i += next + 1
	}
	return "", text, false
}

// maxProjectName caps the project folder name.
const maxProjectName = 20

// Refined is the parsed refiner output.
type Refined struct {
	Text        string
	ProjectName string
	Tree        scaffold.Tree
	Files       []scaffold.File
}

// ParseRefined extracts the project name, folder structure and code blocks
// from text. The project name falls back to the sanitized objective; a
// missing or malformed folder structure leaves Tree empty.
func ParseRefined(text, objective string) Refined {
	out := Refined{Text: text}

	if m := projectNamePattern.FindStringSubmatch(text); m != nil {
		name := []rune(strings.Trim(strings.TrimSpace(m[1]), "*`\"'"))
		if len(name) > maxProjectName {
			name = name[:maxProjectName]
		}
		out.ProjectName = strings.TrimSpace(string(name))
	}
	if out.ProjectName == "" {
		out.ProjectName = utils.SanitizeFileStem(objective, maxProjectName)
	}

	if m := folderStructurePattern.FindStringSubmatch(text); m != nil {
		tree, err := scaffold.ParseTree(m[1])
		if err != nil {
			logx.NewLogger("refiner").Warn("Error parsing folder structure JSON: %v", err)
		} else {
			out.Tree = tree
		}
	}

	for _, m := range codeBlockPattern.FindAllStringSubmatch(text, -1) {
		out.Files = append(out.Files, scaffold.File{Name: m[1], Code: m[2]})
	}
	return out
}
