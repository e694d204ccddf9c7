package scaffold

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"maestro/pkg/logx"
)

// ErrUnsafePath is returned for names that would escape the output directory.
var ErrUnsafePath = errors.New("unsafe path")

// Report lists what a Build created or skipped, relative to the output root.
type Report struct {
	ProjectDir string   `json:"project_dir"`
	Dirs       []string `json:"dirs"`
	Files      []string `json:"files"`
	Skipped    []string `json:"skipped,omitempty"`
}

// Builder creates project trees under Root.
type Builder struct {
	Root   string
	logger *logx.Logger
}

// NewBuilder creates a builder rooted at dir.
func NewBuilder(dir string) *Builder {
	return &Builder{Root: dir, logger: logx.NewLogger("scaffold")}
}

func safeName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || filepath.IsAbs(name) || strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	return nil
}

// Build creates <Root>/<project>, mirrors tree inside it and writes each file
// whose code is found in files. A file without code is skipped with a
// warning. When tree is empty every extracted file is written flat into the
// project folder.
func (b *Builder) Build(project string, tree Tree, files []File) (*Report, error) {
	project = strings.TrimSpace(project)
	if err := safeName(project); err != nil {
		return nil, err
	}

	projectDir := filepath.Join(b.Root, project)
	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		return nil, fmt.Errorf("create project folder %s: %w", projectDir, err)
	}
	b.logger.Info("Created project folder: %s", projectDir)

	report := &Report{ProjectDir: projectDir}
	if tree.Empty() {
		for i := range files {
			tree = append(tree, Node{Name: files[i].Name})
		}
	}
	if err := b.build(projectDir, tree, files, report); err != nil {
		return report, err
	}
	return report, nil
}

func (b *Builder) build(dir string, tree Tree, files []File, report *Report) error {
	var errs []error
	for i := range tree {
		node := &tree[i]
		if err := safeName(node.Name); err != nil {
			b.logger.Warn("Skipping %s: %v", node.Name, err)
			report.Skipped = append(report.Skipped, node.Name)
			continue
		}
		path := filepath.Join(dir, node.Name)

		if node.Dir {
			if err := os.MkdirAll(path, 0o755); err != nil {
				b.logger.Error("Error creating folder %s: %v", path, err)
				errs = append(errs, err)
				continue
			}
			b.logger.Info("Created folder: %s", path)
			report.Dirs = append(report.Dirs, path)
			if err := b.build(path, node.Children, files, report); err != nil {
				errs = append(errs, err)
			}
			continue
		}

		code, ok := Lookup(files, node.Name)
		if !ok || code == "" {
			b.logger.Warn("Code content not found for file: %s", node.Name)
			report.Skipped = append(report.Skipped, path)
			continue
		}
		if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
			b.logger.Error("Error creating file %s: %v", path, err)
			errs = append(errs, err)
			continue
		}
		b.logger.Info("Created file: %s", path)
		report.Files = append(report.Files, path)
	}
	return errors.Join(errs...)
}
