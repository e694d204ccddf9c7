// Package scaffold turns a refined project description into directories and
// files on disk.
package scaffold

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Node is one entry of a folder structure. Directories carry children;
// everything else is a file.
type Node struct {
	Name     string
	Dir      bool
	Children Tree
}

// Tree is an ordered folder structure.
type Tree []Node

// File is one extracted (filename, code) pair.
type File struct {
	Name string
	Code string
}

var errNotObject = errors.New("folder structure must be a JSON object")

// ParseTree decodes a folder structure JSON object, keeping key order.
// Nested objects are directories; null (or any other value) marks a file.
// Surrounding markdown fences are tolerated.
func ParseTree(data string) (Tree, error) {
	data = stripFence(strings.TrimSpace(data))
	dec := json.NewDecoder(strings.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("parse folder structure: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errNotObject
	}
	tree, err := parseObject(dec)
	if err != nil {
		return nil, fmt.Errorf("parse folder structure: %w", err)
	}
	return tree, nil
}

func parseObject(dec *json.Decoder) (Tree, error) {
	var tree Tree
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected key %v", tok)
		}

		tok, err = dec.Token()
		if err != nil {
			return nil, err
		}
		switch v := tok.(type) {
		case json.Delim:
			switch v {
			case '{':
				children, err := parseObject(dec)
				if err != nil {
					return nil, err
				}
				tree = append(tree, Node{Name: key, Dir: true, Children: children})
			case '[':
				if err := skipArray(dec); err != nil {
					return nil, err
				}
				tree = append(tree, Node{Name: key})
			default:
				return nil, fmt.Errorf("unexpected delimiter %v", v)
			}
		default:
			tree = append(tree, Node{Name: key})
		}
	}
	// closing '}'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return tree, nil
}

func skipArray(dec *json.Decoder) error {
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '[', '{':
				depth++
			case ']', '}':
				depth--
			}
		}
	}
	return nil
}

func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

// Empty reports whether the tree has no entries.
func (t Tree) Empty() bool {
	return len(t) == 0
}

// FileNames returns the names of all file nodes in depth-first order.
func (t Tree) FileNames() []string {
	var names []string
	for i := range t {
		if t[i].Dir {
			names = append(names, t[i].Children.FileNames()...)
		} else {
			names = append(names, t[i].Name)
		}
	}
	return names
}

// Lookup returns the code of the first file named name.
func Lookup(files []File, name string) (string, bool) {
	for i := range files {
		if files[i].Name == name {
			return files[i].Code, true
		}
	}
	return "", false
}
