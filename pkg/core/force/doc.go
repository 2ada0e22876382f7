// Package force lays out a flattened timestep graph with a damped force
// simulation.
//
// Every node sits at x = time*XScale and only moves vertically. Each step
// cools alpha, applies the forces in a fixed order and integrates:
//
//  1. axis pull toward YTarget
//  2. many-body repulsion between non-link nodes
//  3. collision, with radius height/2
//  4. link forces for stream, link and tag edges, each with its own
//     strength, distance and iteration count
//
// After integration every node is clamped into the padded bound and then
// into its parent, parents first. This makes containment hold after every
// step, not just at the end.
//
// Typical use:
//
//	sim := force.New(force.DefaultConfig(), force.WithLogger(logger))
//	sim.SetData(flat.Flatten(res.Graph))
//	sim.Run(ctx)
//	nodes := sim.Nodes()
package force
