package pipeline

import (
	"context"
	"time"

	"github.com/matzehuels/orcha/pkg/core/flat"
	"github.com/matzehuels/orcha/pkg/core/force"
	"github.com/matzehuels/orcha/pkg/graph"
	"github.com/matzehuels/orcha/pkg/observability"
)

// =============================================================================
// Layout
// =============================================================================

// Solve runs the force solver over g and captures the result.
//
// With opts.Ticks > 0 exactly that many steps are taken. Otherwise the
// solver runs until it settles, hits MaxIterations or ctx is cancelled; a
// cancelled run still returns the positions reached so far together with
// ctx.Err().
func Solve(ctx context.Context, g *flat.Graph, opts Options) (graph.Layout, error) {
	hooks := observability.Pipeline()
	hooks.OnLayoutStart(ctx, len(g.Nodes))
	start := time.Now()

	sim := force.New(*opts.Force, force.WithLogger(opts.Logger))
	sim.SetData(g)
	if opts.Ticks > 0 {
		sim.Tick(opts.Ticks)
	} else {
		sim.Run(ctx)
	}
	err := ctx.Err()

	l := graph.FromSimulation(sim, g)
	hooks.OnLayoutComplete(ctx, sim.Steps(), time.Since(start), err)
	opts.Logger.Debug("solved layout",
		"steps", sim.Steps(),
		"alpha", sim.Alpha(),
		"state", sim.State(),
		"bound", sim.Bound())
	return l, err
}
