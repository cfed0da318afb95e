package artifact

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
)

func TestStoreAndLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "spectra.db")
	s, err := Open(ctx, path, false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	want := []float64{1.5, -2, math.Inf(1), 0}
	if err := s.Store(ctx, 3, want); err != nil {
		t.Fatalf("Store: %v", err)
	}
	got, err := s.Load(ctx, 3)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d values, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("value %d = %g, want %g", i, got[i], want[i])
		}
	}

	var nf *NotFoundError
	if _, err := s.Load(ctx, 4); !errors.As(err, &nf) || nf.Index != 4 {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestEmptyArtifact(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, filepath.Join(t.TempDir(), "s.db"), false)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if err := s.Store(ctx, 0, nil); err != nil {
		t.Fatal(err)
	}
	got, err := s.Load(ctx, 0)
	if err != nil || len(got) != 0 {
		t.Fatalf("Load = %v, %v", got, err)
	}
}

func TestOpenExistingWithoutResume(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "spectra.db")
	s, err := Open(ctx, path, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Store(ctx, 0, []float64{1}); err != nil {
		t.Fatal(err)
	}
	s.Close()

	var exists *AlreadyExistsError
	if _, err := Open(ctx, path, false); !errors.As(err, &exists) {
		t.Fatalf("expected AlreadyExistsError, got %v", err)
	}
}

func TestResumeAppends(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "spectra.db")
	s, err := Open(ctx, path, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.StoreBatch(ctx, map[int][]float64{0: {1}, 1: {2}}); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(ctx, path, true)
	if err != nil {
		t.Fatalf("resume Open: %v", err)
	}
	defer s.Close()
	if err := s.Store(ctx, 2, []float64{3}); err != nil {
		t.Fatal(err)
	}
	n, err := s.Count(ctx)
	if err != nil || n != 3 {
		t.Fatalf("Count = %d, %v", n, err)
	}
	maxIdx, err := s.MaxIndex(ctx)
	if err != nil || maxIdx != 2 {
		t.Fatalf("MaxIndex = %d, %v", maxIdx, err)
	}
	first, err := s.Load(ctx, 0)
	if err != nil || first[0] != 1 {
		t.Fatalf("earlier artifact lost: %v, %v", first, err)
	}
}

func TestDuplicateIndexOverwrites(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, filepath.Join(t.TempDir(), "s.db"), false)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if err := s.Store(ctx, 7, []float64{1, 2}); err != nil {
		t.Fatal(err)
	}
	if err := s.Store(ctx, 7, []float64{9}); err != nil {
		t.Fatal(err)
	}
	got, err := s.Load(ctx, 7)
	if err != nil || len(got) != 1 || got[0] != 9 {
		t.Fatalf("Load = %v, %v", got, err)
	}
	if n, _ := s.Count(ctx); n != 1 {
		t.Fatalf("Count = %d", n)
	}
}

func TestEmptyStoreMaxIndex(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, filepath.Join(t.TempDir(), "s.db"), false)
	if err != nil {
		t.Fatal(err)
	}
	maxIdx, err := s.MaxIndex(ctx)
	if err != nil || maxIdx != -1 {
		t.Fatalf("MaxIndex = %d, %v", maxIdx, err)
	}
	s.Close()
	if _, err := s.Count(ctx); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
