package graph

import (
	"github.com/matzehuels/orcha/pkg/core/flat"
	"github.com/matzehuels/orcha/pkg/core/timestep"
)

// =============================================================================
// Constants - Single Source of Truth
// =============================================================================

// Views select how a layout is drawn.
const (
	ViewStream   = "stream"
	ViewNodelink = "nodelink"
)

// NodeWidthRatio is the width of a node-link box relative to XScale.
const NodeWidthRatio = 0.65

// Node kinds, mirrored from the timestep graph.
const (
	KindStream = string(timestep.KindStream)
	KindLink   = string(timestep.KindLink)
	KindTag    = string(timestep.KindTag)
	KindLabel  = string(timestep.KindLabel)
)

// =============================================================================
// Graph - Timestep Graph Serialization
// =============================================================================

// Graph is the serialization format of a built timestep graph, before any
// layout has run. Y holds the initial stacked position.
type Graph struct {
	Nodes  []Node  `json:"nodes" bson:"nodes"`
	Edges  []Edge  `json:"edges" bson:"edges"`
	Merges []Merge `json:"merges,omitempty" bson:"merges,omitempty"`
	Bound  float64 `json:"bound" bson:"bound"`
}

// =============================================================================
// Node - Unified Node Type
// =============================================================================

// Node is one entity at one time. Used by both Graph and Layout.
type Node struct {
	ID       string   `json:"id" bson:"id"`
	Name     string   `json:"name" bson:"name"`
	Time     int      `json:"time" bson:"time"`
	X        float64  `json:"x,omitempty" bson:"x,omitempty"`
	Y        float64  `json:"y" bson:"y"`
	Width    float64  `json:"width,omitempty" bson:"width,omitempty"`
	Height   float64  `json:"height" bson:"height"`
	Color    string   `json:"color,omitempty" bson:"color,omitempty"`
	Kind     string   `json:"kind" bson:"kind"`
	Parent   string   `json:"parent,omitempty" bson:"parent,omitempty"`
	Labels   []string `json:"labels,omitempty" bson:"labels,omitempty"`
	FontSize float64  `json:"font_size,omitempty" bson:"font_size,omitempty"`
}

// IsTag reports whether n is a tag outline or label.
func (n *Node) IsTag() bool { return n.Kind == KindTag || n.Kind == KindLabel }

// Top and Bottom return the vertical extent of n.
func (n *Node) Top() float64    { return n.Y - n.Height/2 }
func (n *Node) Bottom() float64 { return n.Y + n.Height/2 }

// =============================================================================
// Edge - Directed Continuation
// =============================================================================

// Edge connects a node to a node one time step later.
type Edge struct {
	Source string `json:"source" bson:"source"`
	Target string `json:"target" bson:"target"`
	Class  string `json:"class" bson:"class"`
}

// Merge records a node that receives a predecessor of another entity.
type Merge struct {
	Node string `json:"node" bson:"node"`
	From string `json:"from" bson:"from"`
	Time int    `json:"time" bson:"time"`
}

// =============================================================================
// Flat ↔ Graph Conversion
// =============================================================================

// FromFlat converts a flattened graph to its serialization format. Node and
// edge order is preserved.
func FromFlat(g *flat.Graph) Graph {
	out := Graph{
		Nodes:  make([]Node, len(g.Nodes)),
		Edges:  edgesFromFlat(g.Links),
		Merges: mergesFromFlat(g.Merges),
		Bound:  g.Bound,
	}
	for i, n := range g.Nodes {
		out.Nodes[i] = nodeFromFlat(n)
	}
	return out
}

// ToFlat converts a serialized graph back into solver input.
func ToFlat(g Graph) *flat.Graph {
	out := &flat.Graph{
		Nodes: make([]flat.Node, len(g.Nodes)),
		Bound: g.Bound,
	}
	for i, n := range g.Nodes {
		out.Nodes[i] = flat.Node{
			ID:     n.ID,
			Name:   n.Name,
			Time:   n.Time,
			Parent: n.Parent,
			Height: n.Height,
			Color:  n.Color,
			Kind:   timestep.Kind(n.Kind),
			Y:      n.Y,
			Labels: n.Labels,
			Font:   n.FontSize,
		}
	}
	for _, e := range g.Edges {
		l := flat.Link{ID: e.Source + e.Target, Source: e.Source, Target: e.Target, Class: flat.Class(e.Class)}
		out.Links = append(out.Links, l)
		switch l.Class {
		case flat.ClassStream:
			out.StreamLinks = append(out.StreamLinks, l)
		case flat.ClassLink:
			out.LinkLinks = append(out.LinkLinks, l)
		case flat.ClassTag:
			out.TagLinks = append(out.TagLinks, l)
		case flat.ClassLabel:
			out.LabelLinks = append(out.LabelLinks, l)
		}
	}
	for _, m := range g.Merges {
		out.Merges = append(out.Merges, flat.MergeEvent{Node: m.Node, From: m.From, Time: m.Time})
	}
	return out
}

// =============================================================================
// Internal Helpers
// =============================================================================

func nodeFromFlat(n flat.Node) Node {
	return Node{
		ID:       n.ID,
		Name:     n.Name,
		Time:     n.Time,
		Y:        n.Y,
		Height:   n.Height,
		Color:    n.Color,
		Kind:     string(n.Kind),
		Parent:   n.Parent,
		Labels:   n.Labels,
		FontSize: n.Font,
	}
}

func edgesFromFlat(links []flat.Link) []Edge {
	out := make([]Edge, len(links))
	for i, l := range links {
		out[i] = Edge{Source: l.Source, Target: l.Target, Class: string(l.Class)}
	}
	return out
}

func mergesFromFlat(ms []flat.MergeEvent) []Merge {
	if len(ms) == 0 {
		return nil
	}
	out := make([]Merge, len(ms))
	for i, m := range ms {
		out[i] = Merge{Node: m.Node, From: m.From, Time: m.Time}
	}
	return out
}
