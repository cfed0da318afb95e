package utils

import (
	"strings"
	"testing"
)

func TestGenerateBatchIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateBatchID()
		if !strings.HasPrefix(id, "batch-") {
			t.Fatalf("unexpected batch id %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate batch id %q", id)
		}
		seen[id] = true
	}
}

func TestGenerateTaskID(t *testing.T) {
	if got := GenerateTaskID("batch-x", 3); got != "batch-x/3" {
		t.Fatalf("GenerateTaskID = %q", got)
	}
}

func TestGenerateRunID(t *testing.T) {
	id := GenerateRunID()
	if !strings.HasPrefix(id, "fit-") {
		t.Fatalf("unexpected run id %q", id)
	}
}
