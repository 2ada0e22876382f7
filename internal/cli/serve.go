package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/orcha/internal/server"
	"github.com/matzehuels/orcha/pkg/cache"
	"github.com/matzehuels/orcha/pkg/observability"
	"github.com/matzehuels/orcha/pkg/pipeline"
	"github.com/matzehuels/orcha/pkg/store"
)

// apiKeyPrefix keeps server cache entries apart from CLI entries in a
// shared Redis.
const apiKeyPrefix = "api:"

// serveCommand runs the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the layout HTTP API",
		Long: `Serve layouts over HTTP. Layouts live in MongoDB when server.mongo_uri
(ORCHA_SERVER_MONGO_URI) is set and in memory otherwise. Pipeline results
are cached in Redis when cache.redis_url is set.

Prometheus metrics are exposed on /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runServe(cmd.Context())
		},
	}

	cmd.Flags().String("addr", ":8080", "listen address")
	cmd.Flags().String("mongo-uri", "", "MongoDB connection string")
	cmd.Flags().Int("ticks", server.DefaultTicks, "solver steps re-run after an edit")
	bind(cmd, "addr", "server.addr")
	bind(cmd, "mongo-uri", "server.mongo_uri")
	bind(cmd, "ticks", "server.ticks")
	return cmd
}

func (c *CLI) runServe(ctx context.Context) error {
	cfg := c.cfg

	cch, err := c.newCache(ctx)
	if err != nil {
		return err
	}
	runner := pipeline.NewRunner(cch, cache.NewScopedKeyer(nil, apiKeyPrefix), c.Logger)
	defer runner.Close()

	st, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	metrics := server.NewMetrics()
	observability.SetPipelineHooks(metrics)
	observability.SetCacheHooks(metrics)
	observability.SetHTTPHooks(metrics)
	defer observability.Reset()

	srv := server.New(st, runner,
		server.WithLogger(c.Logger),
		server.WithMetrics(metrics),
		server.WithTicks(cfg.Server.Ticks),
		server.WithMaxTicks(cfg.Server.MaxTicks),
		server.WithForceConfig(cfg.Force),
		server.WithBuildDefaults(store.BuildOptions{
			Seed:         cfg.Layout.Seed,
			StreamSize:   cfg.Layout.StreamSize,
			FontSize:     cfg.Layout.FontSize,
			RootSize:     cfg.Layout.RootSize,
			CanvasWidth:  cfg.Layout.Width,
			CanvasHeight: cfg.Layout.Height,
		}),
	)
	printInfo("Serving on %s", cfg.Server.Addr)
	return srv.ListenAndServe(ctx, cfg.Server.Addr)
}

func (c *CLI) openStore(ctx context.Context) (store.Store, error) {
	if c.cfg.Server.MongoURI == "" {
		c.Logger.Info("storing layouts in memory")
		return store.NewMemory(), nil
	}
	st, err := store.NewMongoStore(ctx, c.cfg.Server.MongoURI, c.cfg.Server.MongoDB)
	if err != nil {
		return nil, fmt.Errorf("connect store: %w", err)
	}
	c.Logger.Info("storing layouts in MongoDB", "db", c.cfg.Server.MongoDB)
	return st, nil
}
