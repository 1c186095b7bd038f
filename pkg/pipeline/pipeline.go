// Package pipeline runs the complete discover → reduce → serialize
// pipeline. Both CLI and API use it so that caching and staging behave
// identically across entry points.
//
// The pipeline consists of three stages:
//
//  1. Discover: probe the Python environment for declared dependencies,
//     walking outward from the requested packages
//  2. Reduce: restrict the transitive closure to the requested set and
//     compute its transitive reduction
//  3. Serialize: emit the reduced graph as DOT and/or JSON
package pipeline

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/depwalk/pkg/errors"
	"github.com/matzehuels/depwalk/pkg/graph"
	"github.com/matzehuels/depwalk/pkg/probe"
	"github.com/matzehuels/depwalk/pkg/pyenv"
)

const (
	// DefaultInterpreter is probed when no interpreter is given.
	DefaultInterpreter = "python3"
)

// Format constants for output formats.
const (
	FormatDOT  = "dot"
	FormatJSON = "json"
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatDOT:  true,
	FormatJSON: true,
}

// Options contains all configuration for a pipeline run.
// This struct supports JSON serialization for API requests.
type Options struct {
	Packages    []string `json:"packages"`
	Interpreter string   `json:"interpreter,omitempty"`
	Workers     int      `json:"workers,omitempty"`
	MaxNodes    int      `json:"max_nodes,omitempty"`
	Refresh     bool     `json:"refresh,omitempty"`

	Formats   []string `json:"formats,omitempty"`
	GraphName string   `json:"graph_name,omitempty"`

	// Runtime options (not serialized)
	Logger *log.Logger        `json:"-"`
	Prober probe.Prober       `json:"-"` // Overrides the default subprocess prober
	Env    *pyenv.Environment `json:"-"` // Skips interpreter detection when set

	validated bool `json:"-"`
}

// ValidateAndSetDefaults checks the options and fills in defaults.
func (o *Options) ValidateAndSetDefaults() error {
	if len(o.Packages) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "no packages requested")
	}
	for _, pkg := range o.Packages {
		if err := errors.ValidatePythonPackageName(pkg); err != nil {
			return err
		}
	}
	if o.Interpreter == "" {
		o.Interpreter = DefaultInterpreter
	}
	if err := errors.ValidateInterpreterPath(o.Interpreter); err != nil {
		return err
	}
	if len(o.Formats) == 0 {
		o.Formats = []string{FormatDOT}
	}
	for _, f := range o.Formats {
		if !ValidFormats[f] {
			return errors.New(errors.ErrCodeInvalidFormat, "unsupported format %q", f)
		}
	}
	o.validated = true
	return nil
}

// cacheSeeds returns the inputs that determine the graph for cache
// keying: the requested packages plus every option that changes the
// discovered edge set.
func (o *Options) cacheSeeds() []string {
	seeds := make([]string, 0, len(o.Packages)+1)
	for _, pkg := range o.Packages {
		seeds = append(seeds, pyenv.NormalizeName(pkg))
	}
	seeds = append(seeds, fmt.Sprintf("max-nodes=%d", o.MaxNodes))
	return seeds
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Graph is the reduced dependency graph in serialized form.
	Graph graph.Graph

	// GraphHash is the content hash of the serialized graph.
	GraphHash string

	// Artifacts contains serialized outputs keyed by format.
	Artifacts map[string][]byte

	// Environment describes the probed interpreter.
	Environment *pyenv.Environment

	// Stats holds per-stage timing and graph size counters.
	Stats Stats

	// CacheInfo reports which stages were served from cache.
	CacheInfo CacheInfo
}

// Stats holds pipeline timing and size information.
type Stats struct {
	DiscoverTime time.Duration `json:"discover_time"`
	ReduceTime   time.Duration `json:"reduce_time"`
	RenderTime   time.Duration `json:"render_time"`
	RawNodes     int           `json:"raw_nodes"`
	RawEdges     int           `json:"raw_edges"`
	Nodes        int           `json:"nodes"`
	Edges        int           `json:"edges"`
}

// CacheInfo reports cache hits for a pipeline run.
type CacheInfo struct {
	GraphHit bool `json:"graph_hit"`
}
