// Package store persists dependency graph snapshots.
//
// A snapshot is a reduced graph together with the inputs that produced
// it: the requested packages and the interpreter environment
// fingerprint. Snapshots let the API serve previously built graphs by ID
// without re-probing an environment.
//
// Two backends are provided:
//   - memory: in-memory storage for development and tests
//   - mongo: MongoDB-backed storage for deployments
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/depwalk/pkg/graph"
)

// ErrNotFound is returned when a snapshot does not exist.
var ErrNotFound = errors.New("snapshot not found")

// Snapshot is a stored graph build.
type Snapshot struct {
	ID             string      `json:"id" bson:"_id"`
	CreatedAt      time.Time   `json:"created_at" bson:"created_at"`
	Interpreter    string      `json:"interpreter" bson:"interpreter"`
	EnvFingerprint string      `json:"env_fingerprint" bson:"env_fingerprint"`
	Packages       []string    `json:"packages" bson:"packages"`
	GraphHash      string      `json:"graph_hash" bson:"graph_hash"`
	Graph          graph.Graph `json:"graph" bson:"graph"`
}

// NewSnapshot creates a snapshot with a fresh ID and timestamp.
func NewSnapshot(interpreter, envFingerprint string, packages []string, graphHash string, g graph.Graph) *Snapshot {
	return &Snapshot{
		ID:             uuid.NewString(),
		CreatedAt:      time.Now().UTC(),
		Interpreter:    interpreter,
		EnvFingerprint: envFingerprint,
		Packages:       packages,
		GraphHash:      graphHash,
		Graph:          g,
	}
}

// Store is the interface for snapshot storage backends.
type Store interface {
	// Get retrieves a snapshot by ID. Returns ErrNotFound if absent.
	Get(ctx context.Context, id string) (*Snapshot, error)

	// Put stores a snapshot, replacing any existing one with the same ID.
	Put(ctx context.Context, snap *Snapshot) error

	// List returns the most recent snapshots, newest first.
	List(ctx context.Context, limit int) ([]*Snapshot, error)

	// Delete removes a snapshot. Deleting a missing ID is not an error.
	Delete(ctx context.Context, id string) error

	// Close releases backend resources.
	Close(ctx context.Context) error
}
