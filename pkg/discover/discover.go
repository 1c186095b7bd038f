// Package discover walks an installed Python environment outward from a
// set of requested packages, probing each package's declared dependencies
// and collecting the raw dependency graph.
//
// The walk is a breadth-style frontier crawl over a worker pool: every
// package is probed at most once per build, dependencies whose
// environment markers evaluate false never join the frontier, and probe
// failures abort the build rather than producing a silently partial
// graph. The resulting edge set is independent of probe completion
// order.
package discover

import (
	"time"

	"github.com/matzehuels/depwalk/pkg/probe"
)

const (
	DefaultWorkers  = 8              // Default concurrent probe subprocesses
	DefaultMaxNodes = 5000           // Default maximum packages to probe
	DefaultCacheTTL = 24 * time.Hour // Default probe cache duration
)

// Options configures a discovery run.
type Options struct {
	Workers  int                  // Concurrent probes (default: 8)
	MaxNodes int                  // Maximum packages to probe (default: 5000)
	CacheTTL time.Duration        // Probe cache duration (default: 24h)
	Logger   func(string, ...any) // Progress/warning callback (optional)
}

// WithDefaults returns a copy of Options with zero values replaced by defaults.
func (o Options) WithDefaults() Options {
	opts := o
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.MaxNodes <= 0 {
		opts.MaxNodes = DefaultMaxNodes
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.Logger == nil {
		opts.Logger = func(string, ...any) {}
	}
	return opts
}

// Builder discovers dependency graphs by probing installed packages.
type Builder struct {
	prober probe.Prober
}

// New creates a Builder that walks dependencies using the given Prober.
func New(prober probe.Prober) *Builder {
	return &Builder{prober: prober}
}
