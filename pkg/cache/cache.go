// Package cache provides pluggable byte caches used to persist probe
// results between depwalk runs.
//
// Caching here is strictly optional and sits outside the discovery core:
// the per-build memoization in [pkg/discover] is always on and never uses
// this package. These backends only back the opt-in probe cache (CLI
// --cache flag) and the HTTP server.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned when an item is not found in cache.
var ErrCacheMiss = errors.New("cache miss")

// Cache is a byte-oriented cache with TTL support.
//
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get retrieves the value for key. The second return value reports
	// whether the key was found; a miss is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data under key for the given TTL. A zero TTL means the
	// entry does not expire.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Delete removes the value for key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases any resources held by the cache.
	Close() error
}

// Keyer generates cache keys for the different cached artifact kinds.
type Keyer interface {
	// ProbeKey generates a key for one package's declared dependency list
	// in one environment.
	ProbeKey(envFingerprint, pkg string) string
	// GraphKey generates a key for a reduced graph built from a seed set
	// in one environment.
	GraphKey(envFingerprint string, seeds []string) string
}

// DefaultKeyer generates hash-based cache keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// ProbeKey generates a probe-result key of the form "probe:<hash>".
func (k *DefaultKeyer) ProbeKey(envFingerprint, pkg string) string {
	return hashKey("probe", envFingerprint, pkg)
}

// GraphKey generates a graph key of the form "graph:<hash>".
// Seed order does not affect the key; callers pass seeds pre-sorted.
func (k *DefaultKeyer) GraphKey(envFingerprint string, seeds []string) string {
	return hashKey("graph", envFingerprint, seeds)
}

// ScopedKeyer wraps a Keyer with a prefix for namespace isolation,
// e.g. separating cache entries per user in a shared Redis deployment.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// ProbeKey generates a prefixed probe-result key.
func (k *ScopedKeyer) ProbeKey(envFingerprint, pkg string) string {
	return k.prefix + k.inner.ProbeKey(envFingerprint, pkg)
}

// GraphKey generates a prefixed graph key.
func (k *ScopedKeyer) GraphKey(envFingerprint string, seeds []string) string {
	return k.prefix + k.inner.GraphKey(envFingerprint, seeds)
}
