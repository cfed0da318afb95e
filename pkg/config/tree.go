package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"google.golang.org/protobuf/types/known/structpb"
	"gopkg.in/yaml.v3"
)

// Tree is a nested key/value job configuration addressed by dotted paths
// such as "model.abundances.Fe". Set never creates keys: a path must exist
// in the tree before it can be overwritten.
type Tree struct {
	root map[string]any
}

// NewTree wraps a deep copy of m.
func NewTree(m map[string]any) *Tree {
	if m == nil {
		return &Tree{root: map[string]any{}}
	}
	return &Tree{root: cloneMap(m)}
}

// ParseTreeYAML decodes a YAML mapping into a Tree.
func ParseTreeYAML(data []byte) (*Tree, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse tree yaml: %w", err)
	}
	if m == nil {
		m = map[string]any{}
	}
	normalized, err := normalizeYAML(m)
	if err != nil {
		return nil, err
	}
	return &Tree{root: normalized.(map[string]any)}, nil
}

// LoadTree reads a YAML job template from disk.
func LoadTree(path string) (*Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read base config %s: %w", path, err)
	}
	tree, err := ParseTreeYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base config %s: %w", path, err)
	}
	return tree, nil
}

// TreeFromStruct converts a protobuf Struct received over the wire.
func TreeFromStruct(s *structpb.Struct) *Tree {
	if s == nil {
		return NewTree(nil)
	}
	return &Tree{root: s.AsMap()}
}

// Get returns the value stored at path.
func (t *Tree) Get(path string) (any, error) {
	parent, leaf, err := t.walk(path)
	if err != nil {
		return nil, err
	}
	v, ok := parent[leaf]
	if !ok {
		return nil, &PathNotFoundError{Path: path, Segment: leaf}
	}
	return v, nil
}

// Leaf returns the scalar stored at path. A path naming a nested mapping
// fails with *NotLeafError.
func (t *Tree) Leaf(path string) (any, error) {
	v, err := t.Get(path)
	if err != nil {
		return nil, err
	}
	if _, ok := v.(map[string]any); ok {
		return nil, &NotLeafError{Path: path}
	}
	return v, nil
}

// Has reports whether path resolves.
func (t *Tree) Has(path string) bool {
	_, err := t.Get(path)
	return err == nil
}

// Float returns the numeric value at path.
func (t *Tree) Float(path string) (float64, error) {
	v, err := t.Get(path)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("value at %s is %T, not a number", path, v)
	}
}

// Set overwrites an existing leaf. The tree is unchanged on error.
func (t *Tree) Set(path string, value any) error {
	parent, leaf, err := t.walk(path)
	if err != nil {
		return err
	}
	current, ok := parent[leaf]
	if !ok {
		return &PathNotFoundError{Path: path, Segment: leaf}
	}
	if _, nested := current.(map[string]any); nested {
		return &NotLeafError{Path: path}
	}
	parent[leaf] = value
	return nil
}

// walk resolves every segment but the last and returns the owning map.
func (t *Tree) walk(path string) (map[string]any, string, error) {
	if path == "" {
		return nil, "", &PathNotFoundError{Path: path}
	}
	parts := strings.Split(path, ".")
	node := t.root
	for _, part := range parts[:len(parts)-1] {
		next, ok := node[part]
		if !ok {
			return nil, "", &PathNotFoundError{Path: path, Segment: part}
		}
		child, ok := next.(map[string]any)
		if !ok {
			return nil, "", &PathNotFoundError{Path: path, Segment: part}
		}
		node = child
	}
	return node, parts[len(parts)-1], nil
}

// TreeFromPaths builds a tree holding every dotted path with its value. A
// path that is also the prefix of another path is a configuration error.
func TreeFromPaths(values map[string]any) (*Tree, error) {
	paths := make([]string, 0, len(values))
	for p := range values {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	root := map[string]any{}
	for _, path := range paths {
		if path == "" {
			return nil, &ConfigurationError{Field: "parameters", Reason: "empty path"}
		}
		parts := strings.Split(path, ".")
		node := root
		for _, part := range parts[:len(parts)-1] {
			next, ok := node[part]
			if !ok {
				child := map[string]any{}
				node[part] = child
				node = child
				continue
			}
			child, ok := next.(map[string]any)
			if !ok {
				return nil, &ConfigurationError{Field: path, Reason: "conflicts with a leaf at " + part}
			}
			node = child
		}
		leaf := parts[len(parts)-1]
		if _, exists := node[leaf]; exists {
			return nil, &ConfigurationError{Field: path, Reason: "conflicts with a nested path"}
		}
		node[leaf] = values[path]
	}
	return &Tree{root: root}, nil
}

// Clone returns a deep copy.
func (t *Tree) Clone() *Tree {
	return &Tree{root: cloneMap(t.root)}
}

// Paths lists every leaf path in sorted order. Empty mappings hold no
// leaves.
func (t *Tree) Paths() []string {
	var out []string
	var visit func(prefix string, m map[string]any)
	visit = func(prefix string, m map[string]any) {
		for k, v := range m {
			p := k
			if prefix != "" {
				p = prefix + "." + k
			}
			if child, ok := v.(map[string]any); ok {
				visit(p, child)
				continue
			}
			out = append(out, p)
		}
	}
	visit("", t.root)
	sort.Strings(out)
	return out
}

// Struct converts the tree for transport.
func (t *Tree) Struct() (*structpb.Struct, error) {
	s, err := structpb.NewStruct(t.root)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tree: %w", err)
	}
	return s, nil
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return cloneMap(x)
	case []any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = cloneValue(x[i])
		}
		return out
	default:
		return v
	}
}

// normalizeYAML turns map[any]any produced by non-string keys into
// map[string]any so the tree stays path-addressable.
func normalizeYAML(v any) (any, error) {
	switch x := v.(type) {
	case map[string]any:
		for k, child := range x {
			n, err := normalizeYAML(child)
			if err != nil {
				return nil, err
			}
			x[k] = n
		}
		return x, nil
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, child := range x {
			n, err := normalizeYAML(child)
			if err != nil {
				return nil, err
			}
			out[fmt.Sprint(k)] = n
		}
		return out, nil
	case []any:
		for i := range x {
			n, err := normalizeYAML(x[i])
			if err != nil {
				return nil, err
			}
			x[i] = n
		}
		return x, nil
	default:
		return v, nil
	}
}
