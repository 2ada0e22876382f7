// Package timestep provides the timestep graph: one node per (entity, time)
// pair, continuation edges from time t to t+1, and containment of nodes in
// a parent entity at the same time.
//
// Entities are streams, in-transit link nodes, tag shapes and tag labels.
// All of them are addressed by name within a time step, so a node's
// identity is its [Key]. Identity is stable across rebuilds, which is what
// lets a new graph start from the positions of the previous layout (see
// [Graph.ApplyPositions]).
//
// Within a time step nodes keep their creation order. Renderers layer
// siblings in that order, so builders must add nodes deliberately.
//
// A Graph is not safe for concurrent use. It is built once, finalized and
// then only read.
package timestep
