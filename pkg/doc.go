// Package pkg provides the libraries behind orcha, a layout engine for stream
// diagrams.
//
// # Overview
//
// A stream diagram shows entities (empires, rivers, teams) as bands that
// run along a time axis, split, merge and nest inside each other. The pkg
// directory is organized into:
//
//  1. [spec] - the input model, decoded from TOML, YAML, JSON or CSV
//  2. [core] - the timestep graph builder, its flattened form and the force solver
//  3. [graph] - serialization types for graphs and solved layouts
//  4. [render] - stream and node-link renderers plus PNG/PDF conversion
//  5. [pipeline] - orchestration (load → build → solve → render) with caching
//  6. [cache], [store], [observability], [errors] - infrastructure
//
// # Architecture
//
//	spec (streams, tags, links)
//	         ↓
//	    [core/build] timestep graph, one node per entity and time
//	         ↓
//	    [core/flat] flattened nodes, links and merge events
//	         ↓
//	    [core/force] vertical positions
//	         ↓
//	    [graph] Layout → [render] SVG/PNG/PDF/DOT
//
// # Quick Start
//
//	s, _ := spec.Load("empires.toml")
//	res := build.Build(s, build.Options{})
//	g := flat.Flatten(res.Graph)
//
//	sim := force.New(force.DefaultConfig())
//	sim.SetData(g)
//	sim.Run(ctx)
//
//	svg := stream.RenderSVG(graph.FromSimulation(sim, g))
//
// Most callers go through [pipeline.Runner], which adds caching and
// format handling.
//
// [spec]: github.com/matzehuels/orcha/pkg/spec
// [core]: github.com/matzehuels/orcha/pkg/core
// [core/build]: github.com/matzehuels/orcha/pkg/core/build
// [core/flat]: github.com/matzehuels/orcha/pkg/core/flat
// [core/force]: github.com/matzehuels/orcha/pkg/core/force
// [graph]: github.com/matzehuels/orcha/pkg/graph
// [render]: github.com/matzehuels/orcha/pkg/render
// [pipeline]: github.com/matzehuels/orcha/pkg/pipeline
// [pipeline.Runner]: github.com/matzehuels/orcha/pkg/pipeline#Runner
// [cache]: github.com/matzehuels/orcha/pkg/cache
// [store]: github.com/matzehuels/orcha/pkg/store
// [observability]: github.com/matzehuels/orcha/pkg/observability
// [errors]: github.com/matzehuels/orcha/pkg/errors
package pkg
