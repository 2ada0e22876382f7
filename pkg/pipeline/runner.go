package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/orcha/pkg/cache"
	"github.com/matzehuels/orcha/pkg/core/build"
	"github.com/matzehuels/orcha/pkg/core/flat"
	"github.com/matzehuels/orcha/pkg/graph"
	"github.com/matzehuels/orcha/pkg/observability"
	"github.com/matzehuels/orcha/pkg/spec"
)

// Cache key types reported to observability hooks.
const (
	keyGraph    = "graph"
	keyLayout   = "layout"
	keyArtifact = "artifact"
)

// Runner executes pipeline stages with caching.
//
// A Runner holds no per-run state, so multiple goroutines can share one
// with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner. A nil keyer uses cache.DefaultKeyer, a nil
// cache disables caching and a nil logger uses log.Default().
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
	return &Runner{Cache: c, Keyer: keyer, Logger: logger}
}

// Execute runs load → build → layout → render.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	s, err := LoadSpec(ctx, r.Cache, opts)
	if err != nil {
		return nil, fmt.Errorf("load spec: %w", err)
	}
	result := &Result{Spec: s}

	buildStart := time.Now()
	built, hash, hit, err := r.BuildWithCacheInfo(ctx, s, opts)
	if err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}
	result.Graph = built.Graph
	result.GraphHash = hash
	result.Dropped = built.Dropped
	result.Warm = built.Warm
	result.Stats.BuildTime = time.Since(buildStart)
	result.Stats.NodeCount = len(built.Graph.Nodes)
	result.Stats.EdgeCount = len(built.Graph.Links)
	result.Stats.MergeCount = len(built.Graph.Merges)
	result.CacheInfo.BuildHit = hit

	r.Logger.Info("built graph",
		"nodes", result.Stats.NodeCount,
		"edges", result.Stats.EdgeCount,
		"dropped", len(built.Dropped),
		"warm", built.Warm,
		"duration", result.Stats.BuildTime)

	layoutStart := time.Now()
	l, hit, err := r.LayoutWithCacheInfo(ctx, built.Graph, opts)
	if err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}
	result.Layout = l
	result.Stats.Steps = l.Iterations
	result.Stats.LayoutTime = time.Since(layoutStart)
	result.CacheInfo.LayoutHit = hit

	r.Logger.Info("solved layout",
		"steps", l.Iterations,
		"bound", l.Bound,
		"duration", result.Stats.LayoutTime)

	renderStart := time.Now()
	artifacts, hit, err := r.RenderWithCacheInfo(ctx, l, opts)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	result.Artifacts = artifacts
	result.Stats.RenderTime = time.Since(renderStart)
	result.CacheInfo.RenderHit = hit

	r.Logger.Info("rendered outputs",
		"view", opts.View,
		"formats", opts.Formats,
		"duration", result.Stats.RenderTime)

	return result, nil
}

// cachedBuild is the cached form of the build stage.
type cachedBuild struct {
	Graph   graph.Graph     `json:"graph"`
	Dropped []build.Dropped `json:"dropped,omitempty"`
	Warm    int             `json:"warm,omitempty"`
}

// BuildWithCacheInfo builds s with caching. It returns the content hash of
// the flattened graph and whether the cache was hit.
func (r *Runner) BuildWithCacheInfo(ctx context.Context, s spec.Spec, opts Options) (*Built, string, bool, error) {
	r.applyLogger(&opts)
	opts.SetBuildDefaults()

	key := r.Keyer.GraphKey(s.Hash(), opts.GraphKeyOpts())
	if !opts.Refresh {
		if data, ok := r.get(ctx, keyGraph, key); ok {
			var c cachedBuild
			if err := json.Unmarshal(data, &c); err == nil {
				g := graph.ToFlat(c.Graph)
				return &Built{Graph: g, Dropped: c.Dropped, Warm: c.Warm}, hashGraph(g), true, nil
			}
		}
	}

	built := Build(ctx, s, opts)
	data, err := json.Marshal(cachedBuild{
		Graph:   graph.FromFlat(built.Graph),
		Dropped: built.Dropped,
		Warm:    built.Warm,
	})
	if err != nil {
		return nil, "", false, fmt.Errorf("serialize graph: %w", err)
	}
	r.set(ctx, keyGraph, key, data, cache.TTLGraph)
	return built, hashGraph(built.Graph), false, nil
}

// Build is BuildWithCacheInfo without the cache details.
func (r *Runner) Build(ctx context.Context, s spec.Spec, opts Options) (*Built, error) {
	b, _, _, err := r.BuildWithCacheInfo(ctx, s, opts)
	return b, err
}

// LayoutWithCacheInfo solves g with caching. Interrupted runs are not
// cached.
func (r *Runner) LayoutWithCacheInfo(ctx context.Context, g *flat.Graph, opts Options) (graph.Layout, bool, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateForLayout(); err != nil {
		return graph.Layout{}, false, err
	}

	key := r.Keyer.LayoutKey(hashGraph(g), opts.LayoutKeyOpts())
	if !opts.Refresh {
		if data, ok := r.get(ctx, keyLayout, key); ok {
			if l, err := graph.UnmarshalLayout(data); err == nil {
				return l, true, nil
			}
		}
	}

	l, err := Solve(ctx, g, opts)
	if err != nil {
		return graph.Layout{}, false, err
	}
	if data, err := graph.MarshalLayout(l); err == nil {
		r.set(ctx, keyLayout, key, data, cache.TTLLayout)
	}
	return l, false, nil
}

// Layout is LayoutWithCacheInfo without the cache details.
func (r *Runner) Layout(ctx context.Context, g *flat.Graph, opts Options) (graph.Layout, error) {
	l, _, err := r.LayoutWithCacheInfo(ctx, g, opts)
	return l, err
}

// RenderWithCacheInfo renders l with caching. The hit flag is true only
// when every format came from the cache.
func (r *Runner) RenderWithCacheInfo(ctx context.Context, l graph.Layout, opts Options) (map[string][]byte, bool, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateForRender(); err != nil {
		return nil, false, err
	}

	data, err := graph.MarshalLayout(l)
	if err != nil {
		return nil, false, fmt.Errorf("serialize layout for cache key: %w", err)
	}
	layoutHash := cache.Hash(data)

	artifacts := make(map[string][]byte, len(opts.Formats))
	var missing []string
	for _, format := range opts.Formats {
		key := r.Keyer.ArtifactKey(layoutHash, opts.ArtifactKeyOpts(format))
		if !opts.Refresh {
			if data, ok := r.get(ctx, keyArtifact, key); ok {
				artifacts[format] = data
				continue
			}
		}
		missing = append(missing, format)
	}
	if len(missing) == 0 {
		return artifacts, true, nil
	}

	sub := opts
	sub.Formats = missing
	rendered, err := Render(ctx, l, sub)
	if err != nil {
		return nil, false, err
	}
	for format, data := range rendered {
		key := r.Keyer.ArtifactKey(layoutHash, opts.ArtifactKeyOpts(format))
		r.set(ctx, keyArtifact, key, data, cache.TTLArtifact)
		artifacts[format] = data
	}
	return artifacts, false, nil
}

// Render is RenderWithCacheInfo without the cache details.
func (r *Runner) Render(ctx context.Context, l graph.Layout, opts Options) (map[string][]byte, error) {
	a, _, err := r.RenderWithCacheInfo(ctx, l, opts)
	return a, err
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

func (r *Runner) get(ctx context.Context, keyType, key string) ([]byte, bool) {
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil {
		r.Logger.Debug("cache read failed", "type", keyType, "err", err)
		return nil, false
	}
	if hit {
		observability.Cache().OnCacheHit(ctx, keyType)
		return data, true
	}
	observability.Cache().OnCacheMiss(ctx, keyType)
	return nil, false
}

func (r *Runner) set(ctx context.Context, keyType, key string, data []byte, ttl time.Duration) {
	if err := r.Cache.Set(ctx, key, data, ttl); err != nil {
		r.Logger.Debug("cache write failed", "type", keyType, "err", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, keyType, len(data))
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

func hashGraph(g *flat.Graph) string {
	data, err := graph.MarshalGraph(g)
	if err != nil {
		return ""
	}
	return cache.Hash(data)
}
