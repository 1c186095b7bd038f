package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/depwalk/internal/server"
	"github.com/matzehuels/depwalk/pkg/store"
)

// serveOpts holds the command-line flags for the serve command.
type serveOpts struct {
	addr      string
	redisAddr string
	mongoURI  string
	mongoDB   string
	noCache   bool
}

// serveCommand creates the serve command, which runs the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	opts := serveOpts{
		addr:    ":8080",
		mongoDB: appName,
	}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the depwalk HTTP API.

Graph snapshots are kept in memory unless a MongoDB URI is given. Probe
results are cached on disk unless a Redis address is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", opts.addr, "listen address")
	cmd.Flags().StringVar(&opts.redisAddr, "redis", "", "Redis address for the probe cache (host:port)")
	cmd.Flags().StringVar(&opts.mongoURI, "mongo-uri", "", "MongoDB URI for snapshot storage (in-memory if empty)")
	cmd.Flags().StringVar(&opts.mongoDB, "mongo-db", opts.mongoDB, "MongoDB database name")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable probe caching")

	return cmd
}

func (c *CLI) runServe(cmd *cobra.Command, opts *serveOpts) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(c.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if cfg.Serve.Addr != "" && !flags.Changed("addr") {
		opts.addr = cfg.Serve.Addr
	}
	if cfg.Redis != "" && !flags.Changed("redis") {
		opts.redisAddr = cfg.Redis
	}
	if cfg.Serve.MongoURI != "" && !flags.Changed("mongo-uri") {
		opts.mongoURI = cfg.Serve.MongoURI
	}
	if cfg.Serve.MongoDB != "" && !flags.Changed("mongo-db") {
		opts.mongoDB = cfg.Serve.MongoDB
	}

	runner, err := c.newRunner(opts.noCache, opts.redisAddr, cfg.CacheDir)
	if err != nil {
		return err
	}
	defer runner.Cache.Close()

	var st store.Store
	if opts.mongoURI != "" {
		ms, err := store.NewMongoStore(ctx, opts.mongoURI, opts.mongoDB)
		if err != nil {
			return err
		}
		defer ms.Close(ctx)
		st = ms
		c.Logger.Info("snapshot storage", "backend", "mongodb", "database", opts.mongoDB)
	} else {
		st = store.NewMemoryStore()
		c.Logger.Info("snapshot storage", "backend", "memory")
	}

	return server.New(runner, st, c.Logger).ListenAndServe(ctx, opts.addr)
}
