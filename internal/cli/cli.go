// Package cli implements the orcha command-line interface.
//
// # Commands
//
//   - build: compile a spec into a timestep graph
//   - layout: build and solve, writing layout JSON
//   - render: draw a spec or a layout as SVG, PNG, PDF, JSON or DOT
//   - watch: re-render on every save of a spec, warm starting from the last layout
//   - tune: adjust solver parameters live in the terminal
//   - serve: run the HTTP API
//   - cache: inspect and clear the local cache
//
// Settings come from flags, ORCHA_* environment variables and an optional
// orcha.yaml, in that order of precedence.
package cli

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/matzehuels/orcha/internal/config"
	"github.com/matzehuels/orcha/pkg/buildinfo"
	"github.com/matzehuels/orcha/pkg/cache"
	errs "github.com/matzehuels/orcha/pkg/errors"
	"github.com/matzehuels/orcha/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "orcha"

	// configKey is the flag annotation naming the config keys a flag sets.
	configKey = "orcha_config_key"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	verbose    bool
	noCache    bool

	v   *viper.Viper
	cfg config.Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		v:      viper.New(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Orcha lays out stream diagrams",
		Long: `Orcha turns a spec of streams, tags and links into a timestep graph,
positions it with a force solver and renders the result as a stream diagram
or a node-link graph.`,
		Version:           buildinfo.Version,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
	}
	root.SetVersionTemplate(buildinfo.Template())

	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "", "config file (default: ./orcha.yaml)")
	pf.BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	pf.BoolVar(&c.noCache, "no-cache", false, "disable caching")

	root.AddCommand(c.buildCommand())
	root.AddCommand(c.layoutCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.watchCommand())
	root.AddCommand(c.tuneCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.versionCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// setup binds the flags of the running command to their config keys and
// loads the configuration.
func (c *CLI) setup(cmd *cobra.Command, _ []string) error {
	if c.verbose {
		c.SetLogLevel(LogDebug)
	}
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		for _, key := range f.Annotations[configKey] {
			if err := c.v.BindPFlag(key, f); err != nil && bindErr == nil {
				bindErr = err
			}
		}
	})
	if bindErr != nil {
		return bindErr
	}

	cfg, err := config.Load(c.v, c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg
	if cfg.File != "" {
		c.Logger.Debug("loaded config", "file", cfg.File)
	}
	return nil
}

// bind marks flag as setting the given config keys.
func bind(cmd *cobra.Command, flag string, keys ...string) {
	_ = cmd.Flags().SetAnnotation(flag, configKey, keys)
}

// layoutFlags registers the build and solver flags shared by several commands.
func layoutFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Float64("width", pipeline.DefaultWidth, "canvas width")
	f.Float64("height", pipeline.DefaultHeight, "canvas height")
	f.Uint64("seed", pipeline.DefaultSeed, "random seed for the builder and the solver")
	f.Float64("stream-size", 0, "default stream size")
	f.Int("ticks", 0, "solver steps to run (0 runs to convergence)")
	bind(cmd, "width", "layout.width")
	bind(cmd, "height", "layout.height")
	bind(cmd, "seed", "layout.seed", "force.seed")
	bind(cmd, "stream-size", "layout.stream_size")
	bind(cmd, "ticks", "layout.ticks")
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner() (*pipeline.Runner, error) {
	cch, err := c.newCache(context.Background())
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(cch, nil, c.Logger), nil
}

// newCache opens the configured cache: Redis when a URL is set, the local
// file cache otherwise.
func (c *CLI) newCache(ctx context.Context) (cache.Cache, error) {
	if c.noCache || c.cfg.Cache.Disabled {
		return cache.NewNullCache(), nil
	}
	if c.cfg.Cache.RedisURL != "" {
		rc, err := cache.NewRedisCache(ctx, c.cfg.Cache.RedisURL, appName+":")
		if err != nil {
			return nil, fmt.Errorf("connect cache: %w", err)
		}
		return rc, nil
	}
	dir, err := c.cfg.CacheDir()
	if err != nil {
		c.Logger.Warn("no cache directory, caching disabled", "err", err)
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// =============================================================================
// Options Helpers
// =============================================================================

// pipelineOptions returns pipeline options seeded from the loaded config.
func (c *CLI) pipelineOptions() pipeline.Options {
	l := c.cfg.Layout
	fc := c.cfg.Force
	return pipeline.Options{
		Seed:       l.Seed,
		StreamSize: l.StreamSize,
		FontSize:   l.FontSize,
		RootSize:   l.RootSize,
		Width:      l.Width,
		Height:     l.Height,
		Force:      &fc,
		Ticks:      l.Ticks,
		View:       l.View,
		Logger:     c.Logger,
	}
}

// setInput points opts at a local spec file or, for http(s) arguments, a
// remote one.
func setInput(opts *pipeline.Options, arg string) {
	if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
		opts.SpecURL = arg
		return
	}
	opts.SpecPath = arg
}

// applySets applies name=value solver overrides from --set.
func applySets(opts *pipeline.Options, sets []string) error {
	if len(sets) == 0 {
		return nil
	}
	values := make(map[string]float64, len(sets))
	for _, s := range sets {
		name, raw, ok := strings.Cut(s, "=")
		if !ok {
			return errs.New(errs.ErrCodeInvalidParam, "expected name=value, got %q", s)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return errs.Wrap(errs.ErrCodeInvalidParam, err, "parameter %s", name)
		}
		values[strings.ReplaceAll(strings.TrimSpace(name), "-", "_")] = v
	}
	return opts.Force.Apply(values)
}

// parseFormats parses a comma-separated format string into a slice.
func parseFormats(s string) []string {
	if s == "" {
		return []string{pipeline.FormatSVG}
	}
	parts := strings.Split(s, ",")
	for i, p := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(p))
	}
	return parts
}

// basePath derives the output path without extension. An empty output
// falls back to the input name; known format extensions and ".layout" are
// stripped.
func basePath(output, input string) string {
	if output == "" {
		output = input
		if strings.Contains(input, "://") {
			output = path.Base(strings.SplitN(input, "?", 2)[0])
		}
	}
	ext := filepath.Ext(output)
	if pipeline.ValidFormats[strings.TrimPrefix(ext, ".")] || isSpecExt(ext) {
		output = strings.TrimSuffix(output, ext)
	}
	return strings.TrimSuffix(output, ".layout")
}

func isSpecExt(ext string) bool {
	switch strings.ToLower(ext) {
	case ".toml", ".yaml", ".yml", ".csv":
		return true
	}
	return false
}
