package stub

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// ErrNoStubFiles is returned when a pattern expands to no files.
var ErrNoStubFiles = errors.New("no stub files matched")

// LoadFiles expands each pattern (doublestar syntax, e.g. "stubs/**/*.yaml")
// and parses every file it names. Files are read in lexical order so the
// resulting precedence is stable.
func LoadFiles(patterns []string) ([]*Exchange, error) {
	var files []string
	seen := make(map[string]bool)
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid stub pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoStubFiles, pattern)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	sort.Strings(files)

	var all []*Exchange
	for _, path := range files {
		exchanges, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		all = append(all, exchanges...)
	}
	return all, nil
}

// LoadFile parses a single stub file. The format is chosen by extension
// (.yaml and .yml are YAML, anything else JSON) and the document may hold
// either one exchange or a list of them.
func LoadFile(path string) ([]*Exchange, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read stub file: %w", err)
	}

	var exchanges []*Exchange
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		exchanges, err = parseYAML(data)
	default:
		exchanges, err = parseJSON(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	for i, ex := range exchanges {
		if ex == nil {
			return nil, fmt.Errorf("%s: exchange %d: %w: empty", path, i, ErrInvalidExchange)
		}
		if err := ex.Validate(); err != nil {
			return nil, fmt.Errorf("%s: exchange %d: %w: %v", path, i, ErrInvalidExchange, err)
		}
	}
	return exchanges, nil
}

func parseJSON(data []byte) ([]*Exchange, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var list []*Exchange
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
		return list, nil
	}
	var ex Exchange
	if err := json.Unmarshal(trimmed, &ex); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return []*Exchange{&ex}, nil
}

func parseYAML(data []byte) ([]*Exchange, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}

	root := doc.Content[0]
	if root.Kind == yaml.SequenceNode {
		var list []*Exchange
		if err := root.Decode(&list); err != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
		return list, nil
	}
	var ex Exchange
	if err := root.Decode(&ex); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	return []*Exchange{&ex}, nil
}
