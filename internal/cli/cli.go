// Package cli implements the depwalk command-line interface.
//
// This package provides commands for building dependency graphs from
// installed Python environments, inspecting interpreter marker
// environments, probing individual packages, serving the HTTP API, and
// managing the probe cache. The CLI is built using cobra and supports
// verbose logging via the charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - graph: Build the reduced dependency graph for a set of packages
//   - probe: Show the declared dependencies of a single package
//   - env: Print the interpreter's marker environment
//   - serve: Run the HTTP API
//   - cache: Manage the probe cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Loggers
// are passed through context.Context to allow structured progress
// tracking.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/depwalk/pkg/buildinfo"
	"github.com/matzehuels/depwalk/pkg/cache"
	"github.com/matzehuels/depwalk/pkg/pipeline"
)

// appName is the application name used for directories and display.
const appName = "depwalk"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Depwalk builds dependency graphs from installed Python packages",
		Long:         `Depwalk probes an installed Python environment for the dependencies each package declares, then reduces the result to a minimal graph over the packages you asked about.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default ~/.config/depwalk/depwalk.toml)")

	root.AddCommand(c.graphCommand())
	root.AddCommand(c.probeCommand())
	root.AddCommand(c.envCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(noCache bool, redisAddr, dir string) (*pipeline.Runner, error) {
	cache, err := c.newCache(noCache, redisAddr, dir)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(cache, nil, c.Logger), nil
}

// newCache picks the cache backend: Redis when an address is given, a
// file cache otherwise (dir overrides the XDG default). A broken file
// cache degrades to no caching rather than failing the command.
func (c *CLI) newCache(noCache bool, redisAddr, dir string) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	if redisAddr != "" {
		return cache.NewRedisCache(context.Background(), redisAddr)
	}
	if dir == "" {
		d, err := cacheDir()
		if err != nil {
			return cache.NewNullCache(), nil
		}
		dir = d
	}
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		c.Logger.Warnf("probe cache disabled: %v", err)
		return cache.NewNullCache(), nil
	}
	return fc, nil
}

// cacheDir returns the cache directory using XDG standard (~/.cache/depwalk/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
