package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/depwalk/pkg/discover"
	"github.com/matzehuels/depwalk/pkg/pipeline"
)

// graphOpts holds the command-line flags for the graph command.
type graphOpts struct {
	interpreter string // Python interpreter to probe
	workers     int    // concurrent probe subprocesses
	maxNodes    int    // maximum packages to probe
	refresh     bool   // bypass the probe and graph caches
	noCache     bool   // disable caching entirely
	redisAddr   string // Redis cache backend address
	formats     string // comma-separated output formats
	output      string // output file path (stdout if empty)
	name        string // graph name in DOT output
	pyproject   string // read requested packages from a pyproject.toml
}

// graphCommand creates the graph command.
//
// Default options:
//   - interpreter: python3 from PATH
//   - workers: 8 concurrent probes
//   - maxNodes: 5000 packages maximum
func (c *CLI) graphCommand() *cobra.Command {
	opts := graphOpts{
		interpreter: pipeline.DefaultInterpreter,
		workers:     discover.DefaultWorkers,
		maxNodes:    discover.DefaultMaxNodes,
	}

	cmd := &cobra.Command{
		Use:   "graph [packages...]",
		Short: "Build the reduced dependency graph for a set of packages",
		Long: `Build the dependency graph over the requested packages.

Depwalk probes the interpreter's installed distributions, follows their
declared dependencies transitively, then reduces the result to a minimal
graph whose nodes are exactly the packages you asked about. Dependency
paths through packages you did not request become direct edges.

Examples:
  depwalk graph requests urllib3 certifi
  depwalk graph --python .venv/bin/python flask click werkzeug
  depwalk graph --from-pyproject pyproject.toml -o deps.dot
  depwalk graph requests urllib3 --format json`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runGraph(cmd, args, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.interpreter, "python", opts.interpreter, "Python interpreter to probe")
	cmd.Flags().IntVar(&opts.workers, "workers", opts.workers, "concurrent probe subprocesses")
	cmd.Flags().IntVar(&opts.maxNodes, "max-nodes", opts.maxNodes, "maximum packages to probe")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "bypass cache")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")
	cmd.Flags().StringVar(&opts.redisAddr, "redis", "", "Redis address for the probe cache (host:port)")
	cmd.Flags().StringVar(&opts.formats, "format", pipeline.FormatDOT, "output formats, comma-separated (dot, json)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (stdout if empty)")
	cmd.Flags().StringVarP(&opts.name, "name", "n", "", "graph name in DOT output")
	cmd.Flags().StringVar(&opts.pyproject, "from-pyproject", "", "read the requested packages from a pyproject.toml")

	return cmd
}

func (c *CLI) runGraph(cmd *cobra.Command, args []string, opts *graphOpts) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)

	cfg, err := loadConfig(c.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if cfg.Interpreter != "" && !flags.Changed("python") {
		opts.interpreter = cfg.Interpreter
	}
	if cfg.Workers > 0 && !flags.Changed("workers") {
		opts.workers = cfg.Workers
	}
	if cfg.MaxNodes > 0 && !flags.Changed("max-nodes") {
		opts.maxNodes = cfg.MaxNodes
	}
	if cfg.Redis != "" && !flags.Changed("redis") {
		opts.redisAddr = cfg.Redis
	}

	packages := args
	if opts.pyproject != "" {
		fromFile, err := pyprojectPackages(opts.pyproject)
		if err != nil {
			return err
		}
		logger.Debugf("read %d packages from %s", len(fromFile), opts.pyproject)
		packages = append(packages, fromFile...)
	}

	formats := parseFormats(opts.formats)
	if opts.output == "" && len(formats) > 1 {
		return fmt.Errorf("multiple formats require --output")
	}

	runner, err := c.newRunner(opts.noCache, opts.redisAddr, cfg.CacheDir)
	if err != nil {
		return err
	}
	defer runner.Cache.Close()

	popts := pipeline.Options{
		Packages:    packages,
		Interpreter: opts.interpreter,
		Workers:     opts.workers,
		MaxNodes:    opts.maxNodes,
		Refresh:     opts.refresh,
		Formats:     formats,
		GraphName:   opts.name,
	}
	if err := popts.ValidateAndSetDefaults(); err != nil {
		return err
	}

	prog := newProgress(logger)
	spin := newSpinnerWithContext(ctx, fmt.Sprintf("Probing %s…", opts.interpreter))
	spin.Start()

	result, err := runner.Execute(ctx, popts)
	spin.Stop()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}

	prog.done(fmt.Sprintf("Built graph over %d packages with %d dependencies",
		result.Stats.Nodes, result.Stats.Edges))
	printStats(result.Stats.Nodes, result.Stats.Edges, result.CacheInfo.GraphHit)

	if cycles := result.Graph.CycleNodes(); len(cycles) > 0 {
		printWarning("dependency cycle among: %s", strings.Join(cycles, ", "))
		printDetail("the reduced graph shows one minimal representative")
	}

	return writeArtifacts(result, formats, opts.output)
}

// writeArtifacts writes each requested format, deriving per-format file
// names when more than one format goes to disk.
func writeArtifacts(result *pipeline.Result, formats []string, output string) error {
	for _, format := range formats {
		path := output
		if path != "" && len(formats) > 1 {
			path = output + "." + format
		}
		out, err := openOutput(path)
		if err != nil {
			return err
		}
		if _, err := out.Write(result.Artifacts[format]); err != nil {
			out.Close()
			return err
		}
		out.Close()
		if path != "" {
			printFile(path)
		}
	}
	return nil
}

// parseFormats parses a comma-separated format string into a slice.
func parseFormats(s string) []string {
	if s == "" {
		return []string{pipeline.FormatDOT}
	}
	parts := strings.Split(s, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

// nopCloser wraps an io.Writer with a no-op Close method.
type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// openOutput returns a WriteCloser for the given path.
// If path is empty, it returns os.Stdout wrapped in nopCloser.
func openOutput(path string) (io.WriteCloser, error) {
	if path == "" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(path)
}
