// Package flat converts a timestep graph into node and link lists for the
// layout solver.
//
// Links are split into classes so each class can carry its own force:
//
//   - stream: continuation of the same entity
//   - link: edges into in-transit or port nodes
//   - tag: attachment of a tag to its stream
//   - label: edges into tag labels
package flat

import (
	"github.com/matzehuels/orcha/pkg/core/timestep"
)

// Class is the kind of a link.
type Class string

const (
	ClassStream Class = "stream"
	ClassLink   Class = "link"
	ClassTag    Class = "tag"
	ClassLabel  Class = "label"
)

// Node is one timestep node.
type Node struct {
	ID     string
	Name   string
	Time   int
	Parent string // id of the parent node at the same time, empty if top-level
	Height float64
	Color  string
	Kind   timestep.Kind
	Y      float64
	Labels []string
	Font   float64
}

// Link is a directed edge between consecutive times.
type Link struct {
	ID     string
	Source string
	Target string
	Class  Class
}

// MergeEvent records a node that receives a predecessor of another entity.
type MergeEvent struct {
	Node string
	From string
	Time int
}

// Graph is the flattened form of a timestep graph.
type Graph struct {
	Nodes []Node
	Links []Link

	StreamLinks []Link
	LinkLinks   []Link
	TagLinks    []Link
	LabelLinks  []Link

	Merges []MergeEvent

	// Bound is the canvas height of the source graph.
	Bound float64
}

// Flatten lists every node once, by time and creation order, and every
// edge once, classified. The result shares nothing with g.
func Flatten(g *timestep.Graph) *Graph {
	out := &Graph{
		Nodes: make([]Node, 0, g.NodeCount()),
		Links: make([]Link, 0, g.EdgeCount()),
		Bound: g.Bound(),
	}
	for n := range g.All() {
		node := Node{
			ID:     n.ID(),
			Name:   n.Name,
			Time:   n.Time,
			Height: n.Size,
			Color:  n.Color,
			Kind:   n.Kind,
			Y:      n.Pos,
			Font:   n.FontSize,
		}
		if n.Parent != "" {
			node.Parent = timestep.ID(n.Parent, n.Time)
		}
		if len(n.Labels) > 0 {
			node.Labels = append([]string(nil), n.Labels...)
		}
		out.Nodes = append(out.Nodes, node)

		for _, p := range n.Prev() {
			l := Link{
				ID:     p.ID() + n.ID(),
				Source: p.ID(),
				Target: n.ID(),
				Class:  Classify(p, n),
			}
			out.add(l)
			if p.Name != n.Name {
				out.Merges = append(out.Merges, MergeEvent{Node: n.ID(), From: p.ID(), Time: n.Time})
			}
		}
	}
	return out
}

func (g *Graph) add(l Link) {
	g.Links = append(g.Links, l)
	switch l.Class {
	case ClassStream:
		g.StreamLinks = append(g.StreamLinks, l)
	case ClassLink:
		g.LinkLinks = append(g.LinkLinks, l)
	case ClassTag:
		g.TagLinks = append(g.TagLinks, l)
	case ClassLabel:
		g.LabelLinks = append(g.LabelLinks, l)
	}
}

// Classify returns the class of the edge src -> dst. The first matching
// rule wins: into a link node, into a label, from a non-tag into a tag,
// between equal names, and link for everything else.
func Classify(src, dst *timestep.Node) Class {
	switch {
	case dst.Kind == timestep.KindLink:
		return ClassLink
	case dst.Kind == timestep.KindLabel:
		return ClassLabel
	case src.Kind != timestep.KindTag && dst.Kind == timestep.KindTag:
		return ClassTag
	case src.Name == dst.Name:
		return ClassStream
	default:
		return ClassLink
	}
}

// Index maps node ids to their position in Nodes.
func (g *Graph) Index() map[string]int {
	idx := make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		idx[n.ID] = i
	}
	return idx
}
