package pipeline

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/depwalk/pkg/cache"
	"github.com/matzehuels/depwalk/pkg/depgraph"
	"github.com/matzehuels/depwalk/pkg/discover"
	"github.com/matzehuels/depwalk/pkg/errors"
	"github.com/matzehuels/depwalk/pkg/graph"
	"github.com/matzehuels/depwalk/pkg/probe"
	"github.com/matzehuels/depwalk/pkg/pyenv"
	"github.com/matzehuels/depwalk/pkg/render/nodelink"
)

// Runner encapsulates pipeline execution with caching.
//
// The Runner is stateless except for the cache and logger - it doesn't
// store pipeline results. Multiple goroutines can safely use the same
// Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute runs the complete discover → reduce → serialize pipeline.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if !opts.validated {
		if err := opts.ValidateAndSetDefaults(); err != nil {
			return nil, err
		}
	}

	env := opts.Env
	if env == nil {
		detected, err := pyenv.Detect(ctx, opts.Interpreter)
		if err != nil {
			return nil, err
		}
		env = detected
	}

	result := &Result{
		Environment: env,
		Artifacts:   make(map[string][]byte),
	}

	red, hit, err := r.reducedGraph(ctx, env, opts, &result.Stats)
	if err != nil {
		return nil, err
	}
	result.CacheInfo.GraphHit = hit
	result.Stats.Nodes = red.Graph.NodeCount()
	result.Stats.Edges = red.Graph.EdgeCount()

	if red.Cyclic() {
		r.Logger.Warn("dependency cycle among requested packages; reduction is one minimal representative",
			"packages", red.CycleNodes)
	}

	result.Graph = graph.FromReduction(red)
	if data, err := result.Graph.MarshalIndent(); err == nil {
		result.GraphHash = cache.Hash(data)
	}

	renderStart := time.Now()
	for _, format := range opts.Formats {
		artifact, err := r.render(result.Graph, red, format, opts)
		if err != nil {
			return nil, err
		}
		result.Artifacts[format] = artifact
	}
	result.Stats.RenderTime = time.Since(renderStart)

	r.Logger.Info("serialized outputs",
		"formats", opts.Formats,
		"duration", result.Stats.RenderTime)

	return result, nil
}

// reducedGraph returns the reduced graph for opts, serving it from the
// graph-level cache when possible. Cached entries carry the cycle flags,
// so a hit skips both discovery and reduction.
func (r *Runner) reducedGraph(ctx context.Context, env *pyenv.Environment, opts Options, stats *Stats) (depgraph.Reduction, bool, error) {
	cacheKey := r.Keyer.GraphKey(env.Fingerprint(), opts.cacheSeeds())

	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			if red, err := reductionFromCache(data); err == nil {
				return red, true, nil
			}
			_ = r.Cache.Delete(ctx, cacheKey)
		}
	}

	discoverStart := time.Now()
	raw, err := r.discover(ctx, env, opts)
	if err != nil {
		return depgraph.Reduction{}, false, err
	}
	stats.DiscoverTime = time.Since(discoverStart)
	stats.RawNodes = raw.NodeCount()
	stats.RawEdges = raw.EdgeCount()

	r.Logger.Info("discovered dependencies",
		"nodes", raw.NodeCount(),
		"edges", raw.EdgeCount(),
		"duration", stats.DiscoverTime)

	reduceStart := time.Now()
	keep := make([]string, 0, len(opts.Packages))
	for _, pkg := range opts.Packages {
		keep = append(keep, pyenv.NormalizeName(pkg))
	}
	red := depgraph.Reduce(raw, keep)
	stats.ReduceTime = time.Since(reduceStart)

	r.Logger.Info("reduced graph",
		"nodes", red.Graph.NodeCount(),
		"edges", red.Graph.EdgeCount(),
		"duration", stats.ReduceTime)

	if data, err := graph.FromReduction(red).MarshalIndent(); err == nil {
		_ = r.Cache.Set(ctx, cacheKey, data, discover.DefaultCacheTTL)
	}

	return red, false, nil
}

func (r *Runner) discover(ctx context.Context, env *pyenv.Environment, opts Options) (*depgraph.Graph, error) {
	prober := opts.Prober
	if prober == nil {
		prober = probe.NewCachedProber(
			probe.NewPythonProber(probe.DefaultTimeout),
			r.Cache, r.Keyer, discover.DefaultCacheTTL)
	}

	logger := opts.Logger
	if logger == nil {
		logger = r.Logger
	}

	return discover.New(prober).Discover(ctx, env, opts.Packages, discover.Options{
		Workers:  opts.Workers,
		MaxNodes: opts.MaxNodes,
		Logger: func(format string, args ...any) {
			logger.Warnf(format, args...)
		},
	})
}

func (r *Runner) render(doc graph.Graph, red depgraph.Reduction, format string, opts Options) ([]byte, error) {
	switch format {
	case FormatJSON:
		return doc.MarshalIndent()
	case FormatDOT:
		dot := nodelink.ToDOT(red.Graph, nodelink.Options{
			Name:       opts.GraphName,
			CycleNodes: red.CycleNodes,
		})
		return []byte(dot), nil
	default:
		return nil, errors.New(errors.ErrCodeInvalidFormat, "unsupported format %q", format)
	}
}

// reductionFromCache rebuilds a Reduction from a cached serialized graph.
func reductionFromCache(data []byte) (depgraph.Reduction, error) {
	doc, err := graph.Unmarshal(data)
	if err != nil {
		return depgraph.Reduction{}, err
	}
	g, err := doc.ToGraph()
	if err != nil {
		return depgraph.Reduction{}, err
	}
	return depgraph.Reduction{Graph: g, CycleNodes: doc.CycleNodes()}, nil
}
