package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matzehuels/depwalk/pkg/graph"
)

func testGraph() graph.Graph {
	return graph.Graph{
		Nodes: []graph.Node{{ID: "app"}, {ID: "requests"}},
		Edges: []graph.Edge{{From: "app", To: "requests"}},
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	snap := NewSnapshot("/usr/bin/python3", "fp", []string{"app", "requests"}, "hash", testGraph())
	if snap.ID == "" {
		t.Fatal("NewSnapshot() assigned empty ID")
	}
	if err := s.Put(ctx, snap); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := s.Get(ctx, snap.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.GraphHash != "hash" || len(got.Graph.Edges) != 1 {
		t.Errorf("Get() = %+v, want stored snapshot", got)
	}
}

func TestMemoryStoreGetMissing(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreListNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	old := NewSnapshot("py", "fp", []string{"a"}, "h1", testGraph())
	old.CreatedAt = time.Now().Add(-time.Hour)
	recent := NewSnapshot("py", "fp", []string{"b"}, "h2", testGraph())

	for _, snap := range []*Snapshot{old, recent} {
		if err := s.Put(ctx, snap); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
	}

	got, err := s.List(ctx, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != recent.ID {
		t.Errorf("List() order wrong: got %d snapshots, first = %v", len(got), got[0].ID)
	}

	limited, err := s.List(ctx, 1)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("List(1) returned %d snapshots, want 1", len(limited))
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	snap := NewSnapshot("py", "fp", []string{"a"}, "h", testGraph())
	if err := s.Put(ctx, snap); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := s.Delete(ctx, snap.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Get(ctx, snap.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}

	// Deleting again is fine.
	if err := s.Delete(ctx, snap.ID); err != nil {
		t.Errorf("Delete() of missing ID error = %v, want nil", err)
	}
}

func TestMemoryStoreCopiesOnPut(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	snap := NewSnapshot("py", "fp", []string{"a"}, "h", testGraph())
	if err := s.Put(ctx, snap); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	snap.GraphHash = "mutated"

	got, err := s.Get(ctx, snap.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.GraphHash != "h" {
		t.Errorf("stored snapshot mutated through caller pointer: hash = %q", got.GraphHash)
	}
}
