package config

import (
	"errors"
	"reflect"
	"testing"
)

func TestTreeGetSet(t *testing.T) {
	tree, err := ParseTreeYAML([]byte(`
model:
  t_inner: 9000
  abundances:
    Fe: 0.1
    Si: 0.9
montecarlo:
  seed: 23
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	v, err := tree.Float("model.abundances.Fe")
	if err != nil || v != 0.1 {
		t.Fatalf("expected 0.1, got %v (err %v)", v, err)
	}
	if err := tree.Set("model.t_inner", 10500.0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, _ := tree.Float("model.t_inner")
	if got != 10500 {
		t.Fatalf("expected 10500, got %v", got)
	}
}

func TestTreeSetMissingPath(t *testing.T) {
	tree := NewTree(map[string]any{"a": map[string]any{"b": 1}})

	tests := []string{"a.c", "x.y", "a.b.c", ""}
	for _, path := range tests {
		t.Run(path, func(t *testing.T) {
			err := tree.Set(path, 5)
			var pnf *PathNotFoundError
			if !errors.As(err, &pnf) {
				t.Fatalf("expected PathNotFoundError, got %v", err)
			}
			if !errors.Is(err, ErrConfiguration) {
				t.Fatalf("expected error to be a configuration error")
			}
		})
	}

	if !reflect.DeepEqual(tree.root, map[string]any{"a": map[string]any{"b": 1}}) {
		t.Fatalf("tree mutated by failed Set: %v", tree.root)
	}
}

func TestTreeSetRejectsNestedMapping(t *testing.T) {
	tree, err := ParseTreeYAML([]byte(`
model:
  t_inner: 9000
  abundances:
    Fe: 0.2
    Si: 0.8
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	err = tree.Set("model.abundances", 0.5)
	var notLeaf *NotLeafError
	if !errors.As(err, &notLeaf) || notLeaf.Path != "model.abundances" {
		t.Fatalf("expected NotLeafError, got %v", err)
	}
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected error to be a configuration error")
	}
	if fe, err := tree.Float("model.abundances.Fe"); err != nil || fe != 0.2 {
		t.Fatalf("abundance subtree changed: %v (err %v)", fe, err)
	}

	if _, err := tree.Leaf("model"); !errors.As(err, &notLeaf) {
		t.Fatalf("Leaf(model): expected NotLeafError, got %v", err)
	}
	if v, err := tree.Leaf("model.t_inner"); err != nil || v != 9000 {
		t.Fatalf("Leaf(model.t_inner) = %v (err %v)", v, err)
	}
}

func TestTreeCloneIsDeep(t *testing.T) {
	orig := NewTree(map[string]any{"a": map[string]any{"b": 1}, "l": []any{1, 2}})
	clone := orig.Clone()
	if err := clone.Set("a.b", 2); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, _ := orig.Get("a.b"); v != 1 {
		t.Fatalf("original changed: %v", v)
	}
}

func TestTreePaths(t *testing.T) {
	tree := NewTree(map[string]any{
		"b": 1,
		"a": map[string]any{"y": 1, "x": map[string]any{"z": 1}},
		"e": map[string]any{},
	})
	want := []string{"a.x.z", "a.y", "b"}
	if got := tree.Paths(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Paths() = %v, want %v", got, want)
	}
}

func TestTreeStructRoundTrip(t *testing.T) {
	tree := NewTree(map[string]any{"model": map[string]any{"t_inner": 9000.0, "name": "w7"}})
	s, err := tree.Struct()
	if err != nil {
		t.Fatalf("Struct: %v", err)
	}
	back := TreeFromStruct(s)
	if !reflect.DeepEqual(back.root, tree.root) {
		t.Fatalf("round trip mismatch: %v vs %v", back.root, tree.root)
	}
}

func TestTreeFromPaths(t *testing.T) {
	tree, err := TreeFromPaths(map[string]any{
		"model.t_inner":       5000.0,
		"model.abundances.Fe": 0.5,
		"seed":                1.0,
	})
	if err != nil {
		t.Fatalf("TreeFromPaths: %v", err)
	}
	if got := tree.Paths(); !reflect.DeepEqual(got, []string{"model.abundances.Fe", "model.t_inner", "seed"}) {
		t.Fatalf("unexpected paths %v", got)
	}
	if v, _ := tree.Float("model.t_inner"); v != 5000 {
		t.Fatalf("expected 5000, got %v", v)
	}

	_, err = TreeFromPaths(map[string]any{"model": 1.0, "model.t_inner": 2.0})
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
