package store

import (
	"context"
	"slices"
	"sync"
)

// MemoryStore keeps snapshots in memory. Safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	snaps map[string]*Snapshot
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snaps: make(map[string]*Snapshot)}
}

// Get retrieves a snapshot by ID.
func (s *MemoryStore) Get(_ context.Context, id string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snaps[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *snap
	return &cp, nil
}

// Put stores a snapshot.
func (s *MemoryStore) Put(_ context.Context, snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *snap
	s.snaps[snap.ID] = &cp
	return nil
}

// List returns snapshots newest first.
func (s *MemoryStore) List(_ context.Context, limit int) ([]*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Snapshot, 0, len(s.snaps))
	for _, snap := range s.snaps {
		cp := *snap
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *Snapshot) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Delete removes a snapshot.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snaps, id)
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close(context.Context) error { return nil }
