package discover

import (
	"context"
	"slices"
	"sync"

	"github.com/matzehuels/depwalk/pkg/depgraph"
	"github.com/matzehuels/depwalk/pkg/errors"
	"github.com/matzehuels/depwalk/pkg/pep508"
	"github.com/matzehuels/depwalk/pkg/pyenv"
)

// Discover probes roots and their transitive dependencies within env,
// returning the raw dependency graph over normalized package names.
// Dependencies whose markers evaluate false in env are excluded;
// dependencies whose markers reference variables env does not define are
// excluded with a warning. Any probe failure or malformed requirement
// aborts the build.
//
// The walk expands round by round: each round probes the current
// frontier in lexicographic order (probes within a round run in
// parallel), so the set of packages admitted under MaxNodes does not
// depend on goroutine scheduling.
func (b *Builder) Discover(ctx context.Context, env *pyenv.Environment, roots []string, opts Options) (*depgraph.Graph, error) {
	if len(roots) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no packages requested")
	}

	c := &crawler{
		ctx:     ctx,
		env:     env,
		opts:    opts.WithDefaults(),
		probe:   b.prober.DeclaredDependencies,
		g:       depgraph.New(),
		visited: make(map[string]bool),
		done:    make(chan struct{}),
	}
	c.jobs = make(chan string, c.opts.Workers*2)
	c.results = make(chan result, c.opts.Workers*2)
	return c.run(roots)
}

type crawler struct {
	ctx   context.Context
	env   *pyenv.Environment
	opts  Options
	probe func(context.Context, *pyenv.Environment, string) ([]string, error)

	g *depgraph.Graph

	jobs    chan string
	results chan result
	done    chan struct{}
	wg      sync.WaitGroup

	// visited is touched only by the run goroutine; it bounds the walk
	// to one probe per package and counts against MaxNodes.
	visited map[string]bool
}

type result struct {
	name     string
	requires []string
	err      error
}

func (c *crawler) run(roots []string) (*depgraph.Graph, error) {
	defer c.shutdown()

	for range c.opts.Workers {
		c.wg.Add(1)
		go c.worker()
	}

	frontier := make([]string, 0, len(roots))
	for _, root := range roots {
		name := pyenv.NormalizeName(root)
		if err := c.g.AddNode(name); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidPackage, err, "invalid package name %q", root)
		}
		if !c.visited[name] {
			c.visited[name] = true
			frontier = append(frontier, name)
		}
	}
	slices.Sort(frontier)

	for len(frontier) > 0 {
		results, err := c.probeRound(frontier)
		if err != nil {
			return nil, err
		}

		var next []string
		for _, name := range frontier {
			deps, err := c.handle(results[name])
			if err != nil {
				return nil, err
			}
			for _, dep := range deps {
				if c.visited[dep] || len(c.visited) >= c.opts.MaxNodes {
					continue
				}
				c.visited[dep] = true
				next = append(next, dep)
			}
		}
		slices.Sort(next)
		frontier = next
	}
	return c.g, nil
}

// shutdown stops workers and any in-flight job feed. Closing done
// instead of the jobs channel keeps an aborted build from racing a late
// feed against channel close.
func (c *crawler) shutdown() {
	close(c.done)
	c.wg.Wait()
}

func (c *crawler) worker() {
	defer c.wg.Done()
	for {
		select {
		case <-c.done:
			return
		case name := <-c.jobs:
			var r result
			if err := c.ctx.Err(); err != nil {
				r = result{name: name, err: err}
			} else {
				requires, err := c.probe(c.ctx, c.env, name)
				r = result{name: name, requires: requires, err: err}
			}
			select {
			case c.results <- r:
			case <-c.done:
				return
			}
		}
	}
}

// probeRound probes every frontier member once and returns the results
// keyed by package name. The feed runs in its own goroutine so a full
// jobs buffer cannot deadlock against a full results buffer.
func (c *crawler) probeRound(frontier []string) (map[string]result, error) {
	go func() {
		for _, name := range frontier {
			select {
			case c.jobs <- name:
			case <-c.done:
				return
			}
		}
	}()

	out := make(map[string]result, len(frontier))
	for range frontier {
		select {
		case r := <-c.results:
			out[r.name] = r
		case <-c.ctx.Done():
			return nil, c.ctx.Err()
		}
	}
	return out, nil
}

// handle records the probed package's edges and returns the applicable
// dependency names. Only the run goroutine touches the graph, so no
// locking is needed around it.
func (c *crawler) handle(r result) ([]string, error) {
	if r.err != nil {
		code := errors.GetCode(r.err)
		if code == "" {
			code = errors.ErrCodeProbeFailed
		}
		return nil, errors.Wrap(code, r.err, "probe failed for %s", r.name)
	}

	_ = c.g.AddNode(r.name)

	var deps []string
	for _, raw := range r.requires {
		req, err := pep508.Parse(raw)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeMalformedRequirement, err,
				"malformed requirement in %s", r.name)
		}

		applies, err := req.Applies(c.env)
		if err != nil {
			if errors.GetCode(err) == errors.ErrCodeUnsupportedMarker {
				c.opts.Logger("skipping %s -> %s: %v", r.name, req.Name, err)
				continue
			}
			return nil, err
		}
		if !applies {
			continue
		}

		dep := pyenv.NormalizeName(req.Name)
		_ = c.g.AddEdge(r.name, dep)
		deps = append(deps, dep)
	}
	return deps, nil
}
