package scaffold

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTreeKeepsOrder(t *testing.T) {
	tree, err := ParseTree(`{"adder": {"src": {"main.py": null, "util.py": null}, "README.md": null}, "setup.py": null}`)
	require.NoError(t, err)

	require.Len(t, tree, 2)
	assert.Equal(t, "adder", tree[0].Name)
	assert.True(t, tree[0].Dir)
	assert.Equal(t, "src", tree[0].Children[0].Name)
	assert.Equal(t, []string{"main.py", "util.py", "README.md", "setup.py"}, tree.FileNames())
}

func TestParseTreeTolerates(t *testing.T) {
	tree, err := ParseTree("```json\n{\"a.txt\": \"\", \"b\": [1, [2]], \"c.txt\": null}\n```")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b", "c.txt"}, tree.FileNames())

	tree, err = ParseTree(`{}`)
	require.NoError(t, err)
	assert.True(t, tree.Empty())
}

func TestParseTreeErrors(t *testing.T) {
	for _, in := range []string{``, `[]`, `{"a": `, `{"a": null,}`, `"x"`} {
		_, err := ParseTree(in)
		assert.Error(t, err, in)
	}
}

func TestBuildCreatesTreeAndSkipsMissingCode(t *testing.T) {
	root := t.TempDir()
	tree, err := ParseTree(`{"src": {"main.py": null, "missing.py": null}, "README.md": null}`)
	require.NoError(t, err)

	files := []File{
		{Name: "main.py", Code: "print(1 + 2)"},
		{Name: "README.md", Code: "# adder"},
	}
	report, err := NewBuilder(root).Build("Adder", tree, files)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "Adder", "src", "main.py"))
	require.NoError(t, err)
	assert.Equal(t, "print(1 + 2)", string(data))
	assert.FileExists(t, filepath.Join(root, "Adder", "README.md"))
	assert.NoFileExists(t, filepath.Join(root, "Adder", "src", "missing.py"))

	assert.Len(t, report.Files, 2)
	assert.Equal(t, []string{filepath.Join(root, "Adder", "src", "missing.py")}, report.Skipped)
}

func TestBuildFlatWhenTreeEmpty(t *testing.T) {
	root := t.TempDir()
	report, err := NewBuilder(root).Build("flat", nil, []File{{Name: "a.go", Code: "package a"}})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(root, "flat", "a.go"))
	assert.Len(t, report.Files, 1)
}

func TestBuildRejectsUnsafeNames(t *testing.T) {
	root := t.TempDir()
	_, err := NewBuilder(root).Build("../escape", nil, nil)
	assert.ErrorIs(t, err, ErrUnsafePath)

	tree := Tree{{Name: ".."}, {Name: "ok.txt"}}
	report, err := NewBuilder(root).Build("proj", tree, []File{{Name: "ok.txt", Code: "x"}})
	require.NoError(t, err)
	assert.Equal(t, []string{".."}, report.Skipped)
	assert.FileExists(t, filepath.Join(root, "proj", "ok.txt"))
}

func TestLookup(t *testing.T) {
	files := []File{{Name: "a", Code: "1"}, {Name: "a", Code: "2"}}
	code, ok := Lookup(files, "a")
	assert.True(t, ok)
	assert.Equal(t, "1", code)
	_, ok = Lookup(files, "b")
	assert.False(t, ok)
}
