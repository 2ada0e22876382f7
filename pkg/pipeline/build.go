package pipeline

import (
	"context"
	"time"

	"github.com/matzehuels/orcha/pkg/cache"
	"github.com/matzehuels/orcha/pkg/core/build"
	"github.com/matzehuels/orcha/pkg/core/flat"
	"github.com/matzehuels/orcha/pkg/observability"
	"github.com/matzehuels/orcha/pkg/spec"
)

// =============================================================================
// Spec Loading
// =============================================================================

// LoadSpec resolves the input named by opts. Remote specs are fetched
// through c.
func LoadSpec(ctx context.Context, c cache.Cache, opts Options) (spec.Spec, error) {
	var format spec.Format
	if opts.SpecFormat != "" {
		f, err := spec.ParseFormat(opts.SpecFormat)
		if err != nil {
			return spec.Spec{}, err
		}
		format = f
	}

	switch {
	case opts.Spec != nil:
		return *opts.Spec, nil
	case opts.SpecURL != "":
		return spec.NewFetcher(c).Fetch(ctx, opts.SpecURL, format)
	}
	return spec.Load(opts.SpecPath)
}

// =============================================================================
// Build
// =============================================================================

// Built is the output of the build stage.
type Built struct {
	Graph   *flat.Graph
	Dropped []build.Dropped
	Warm    int
}

// Build compiles s into a flattened graph.
func Build(ctx context.Context, s spec.Spec, opts Options) *Built {
	hooks := observability.Pipeline()
	hooks.OnBuildStart(ctx, len(s.Streams))
	start := time.Now()

	res := build.Build(s, opts.BuildOptions())
	g := flat.Flatten(res.Graph)

	hooks.OnBuildComplete(ctx, len(g.Nodes), len(res.Dropped), time.Since(start), nil)
	for _, d := range res.Dropped {
		opts.Logger.Warn("skipped input row", "kind", d.Kind, "index", d.Index, "reason", d.Reason)
	}
	return &Built{Graph: g, Dropped: res.Dropped, Warm: res.Warm}
}
