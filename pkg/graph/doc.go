// Package graph provides serialization types for timestep graphs and solved
// layouts.
//
// This package defines the wire format used for JSON files, API responses,
// the layout store and caching. It sits at the boundary between the solver's
// internal types and everything that persists or transmits them:
//
//   - [Graph]: a built timestep graph (pkg/core/flat.Graph on the wire)
//   - [Layout]: solved positions plus solver provenance
//   - [Node], [Edge], [Merge]: shared structural types
//   - [StreamView]: a per-time projection of a layout for band renderers
//
// # Constants
//
// This package is the single source of truth for view names:
//
//	graph.ViewStream    // "stream"
//	graph.ViewNodelink  // "nodelink"
//
// # Graph Serialization
//
//	{
//	  "nodes": [{"id": "A-1900", "name": "A", "time": 1900, "y": 1.5, "height": 1, "kind": "stream"}],
//	  "edges": [{"source": "A-1900", "target": "A-1901", "class": "stream"}],
//	  "bound": 4
//	}
//
// Common operations:
//
//	data, _ := graph.MarshalGraph(flat.Flatten(g))  // flat → []byte
//	fg, _ := graph.ReadGraphFile("graph.json")       // File → flat
//
// # Layout Serialization
//
//	layout := graph.FromSimulation(sim, fg)
//	graph.WriteLayoutFile(layout, "layout.json")
//	layout, _ = graph.ReadLayoutFile("layout.json")
//	view := layout.StreamView()
//
// Layouts carry bson tags so the Mongo store saves them as-is.
//
// # Concurrency
//
// All functions are safe for concurrent reads but not concurrent writes.
package graph
