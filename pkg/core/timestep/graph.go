package timestep

import (
	"iter"
	"slices"
	"strconv"
	"strings"
)

// DefaultSize is the size of a node created without an explicit size.
const DefaultSize = 1.0

// Unsized is passed to AddNode when the caller has no size.
const Unsized = -1.0

// Kind is the visual class of a node.
type Kind string

// Node kinds.
const (
	KindStream Kind = "stream"
	KindLink   Kind = "link"
	KindTag    Kind = "tag-shape"
	KindLabel  Kind = "tag-label"
)

// Key identifies an entity at one time step.
type Key struct {
	Name string
	Time int
}

// ID returns the flat node id "name-time".
func (k Key) ID() string { return ID(k.Name, k.Time) }

// ID formats a flat node id as "name-time". A name ending in "-" or "."
// gets a "." appended first, so the separator never follows a "-" of the
// name and ("X", -4) stays apart from ("X-", 4).
func ID(name string, t int) string {
	if strings.HasSuffix(name, "-") || strings.HasSuffix(name, ".") {
		name += "."
	}
	return name + "-" + strconv.Itoa(t)
}

// Positions maps keys to centre positions on the secondary axis.
type Positions map[Key]float64

// Attrs are the optional attributes of AddNode. Zero values mean "not
// given".
type Attrs struct {
	Color    string
	Kind     Kind
	Labels   []string
	FontSize float64
}

// Node is an entity at one time step.
type Node struct {
	Name     string
	Time     int
	Parent   string // entity name of the containing node at the same time
	Size     float64
	Pos      float64 // centre on the secondary axis
	Color    string
	Kind     Kind
	Labels   []string
	FontSize float64
	Warm     bool // Pos was carried over from a previous layout

	prev     []*Node
	next     []*Node
	parent   *Node
	children []*Node
}

// Key returns the node's key.
func (n *Node) Key() Key { return Key{n.Name, n.Time} }

// ID returns the flat node id.
func (n *Node) ID() string { return ID(n.Name, n.Time) }

// Prev returns the predecessors at Time-1. The slice must not be modified.
func (n *Node) Prev() []*Node { return n.prev }

// Next returns the successors at Time+1. The slice must not be modified.
func (n *Node) Next() []*Node { return n.next }

// ParentNode returns the containing node, or nil.
func (n *Node) ParentNode() *Node { return n.parent }

// Children returns the contained nodes in creation order.
func (n *Node) Children() []*Node { return n.children }

// IsMerge reports whether a predecessor belongs to another entity.
func (n *Node) IsMerge() bool {
	for _, p := range n.prev {
		if p.Name != n.Name {
			return true
		}
	}
	return false
}

// Step holds the nodes of one time value.
type Step struct {
	Time    int
	Stacked float64 // summed size of top-level nodes

	nodes  []*Node
	byName map[string]*Node
}

// Nodes returns the step's nodes in creation order.
func (s *Step) Nodes() []*Node { return s.nodes }

// Graph is a timestep graph.
type Graph struct {
	steps      map[int]*Step
	times      []int
	edges      int
	maxStacked float64
	bound      float64
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{steps: make(map[int]*Step)}
}

// AddNode creates name at time t, or updates the existing node. On update
// only given arguments overwrite (size >= 0, non-zero attributes). A new
// node created with Unsized gets DefaultSize, and without kind KindStream.
func (g *Graph) AddNode(t int, name string, size float64, a Attrs) *Node {
	s := g.step(t)
	if n, ok := s.byName[name]; ok {
		if size >= 0 {
			n.Size = size
		}
		applyAttrs(n, a)
		return n
	}
	n := &Node{Name: name, Time: t, Size: size, Kind: KindStream}
	if n.Size < 0 {
		n.Size = DefaultSize
	}
	applyAttrs(n, a)
	s.nodes = append(s.nodes, n)
	s.byName[name] = n
	return n
}

func applyAttrs(n *Node, a Attrs) {
	if a.Color != "" {
		n.Color = a.Color
	}
	if a.Kind != "" {
		n.Kind = a.Kind
	}
	if a.Labels != nil {
		n.Labels = a.Labels
	}
	if a.FontSize > 0 {
		n.FontSize = a.FontSize
	}
}

func (g *Graph) step(t int) *Step {
	if s, ok := g.steps[t]; ok {
		return s
	}
	s := &Step{Time: t, byName: make(map[string]*Node)}
	g.steps[t] = s
	i, _ := slices.BinarySearch(g.times, t)
	g.times = slices.Insert(g.times, i, t)
	return s
}

// AddParent nests name inside parent at time t. It reports false, changing
// nothing, when either node is missing or the nesting would form a cycle.
func (g *Graph) AddParent(t int, name, parent string) bool {
	n, p := g.Node(t, name), g.Node(t, parent)
	if n == nil || p == nil {
		return false
	}
	for a := p; a != nil; a = a.parent {
		if a == n {
			return false
		}
	}
	if old := n.parent; old != nil {
		old.children = slices.DeleteFunc(old.children, func(c *Node) bool { return c == n })
	}
	n.Parent = parent
	n.parent = p
	p.children = append(p.children, n)
	return true
}

// AddNext connects from@t to to@t+1. It reports false when an endpoint is
// missing or the edge already exists.
func (g *Graph) AddNext(t int, from, to string) bool {
	a, b := g.Node(t, from), g.Node(t+1, to)
	if a == nil || b == nil || Connected(a, b) {
		return false
	}
	a.next = append(a.next, b)
	b.prev = append(b.prev, a)
	g.edges++
	return true
}

// Connected reports whether the edge a -> b exists.
func Connected(a, b *Node) bool {
	return slices.Contains(a.next, b)
}

// ConnectEqualIDs adds a continuation edge between every pair of
// same-named nodes at consecutive times that is not connected yet, and
// returns the number of edges added. Existing edges are left untouched.
func (g *Graph) ConnectEqualIDs() int {
	added := 0
	for i := 1; i < len(g.times); i++ {
		prev, cur := g.times[i-1], g.times[i]
		if cur != prev+1 {
			continue
		}
		ps := g.steps[prev]
		for _, n := range g.steps[cur].nodes {
			if p, ok := ps.byName[n.Name]; ok && !Connected(p, n) {
				p.next = append(p.next, n)
				n.prev = append(n.prev, p)
				g.edges++
				added++
			}
		}
	}
	return added
}

// ApplyPositions copies prior centre positions onto nodes with the same key
// and marks them warm. It returns the number of nodes updated.
func (g *Graph) ApplyPositions(p Positions) int {
	if len(p) == 0 {
		return 0
	}
	applied := 0
	for n := range g.All() {
		if pos, ok := p[n.Key()]; ok {
			n.Pos = pos
			n.Warm = true
			applied++
		}
	}
	return applied
}

// Finalize computes the stacked size of every step and the canvas bound
// (spread times the largest stack, at least 1), and gives every node that
// was not warm-started an initial position: top-level nodes are stacked
// bottom-up in creation order and centred on the canvas, children are
// stacked inside their parent.
func (g *Graph) Finalize(spread float64) {
	if spread <= 0 {
		spread = 1
	}
	g.maxStacked = 0
	for _, t := range g.times {
		s := g.steps[t]
		s.Stacked = 0
		for _, n := range s.nodes {
			if n.parent == nil {
				s.Stacked += n.Size
			}
		}
		g.maxStacked = max(g.maxStacked, s.Stacked)
	}
	g.bound = max(g.maxStacked*spread, 1)

	for _, t := range g.times {
		s := g.steps[t]
		cursor := (g.bound - s.Stacked) / 2
		for _, n := range s.nodes {
			if n.parent != nil {
				continue
			}
			if !n.Warm {
				n.Pos = cursor + n.Size/2
			}
			cursor += n.Size
			stackChildren(n)
		}
	}
}

func stackChildren(p *Node) {
	cursor := p.Pos - p.Size/2
	for _, c := range p.children {
		if !c.Warm {
			c.Pos = cursor + c.Size/2
		}
		cursor += c.Size
		stackChildren(c)
	}
}

// Node returns name at time t, or nil.
func (g *Graph) Node(t int, name string) *Node {
	s, ok := g.steps[t]
	if !ok {
		return nil
	}
	return s.byName[name]
}

// Step returns the step at time t, or nil.
func (g *Graph) Step(t int) *Step { return g.steps[t] }

// Times returns the occupied times in ascending order. The slice must not
// be modified.
func (g *Graph) Times() []int { return g.times }

// Nodes returns the nodes at time t in creation order.
func (g *Graph) Nodes(t int) []*Node {
	if s, ok := g.steps[t]; ok {
		return s.nodes
	}
	return nil
}

// All yields every node, by ascending time and then creation order.
func (g *Graph) All() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		for _, t := range g.times {
			for _, n := range g.steps[t].nodes {
				if !yield(n) {
					return
				}
			}
		}
	}
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	c := 0
	for _, s := range g.steps {
		c += len(s.nodes)
	}
	return c
}

// EdgeCount returns the number of continuation edges.
func (g *Graph) EdgeCount() int { return g.edges }

// MaxStacked returns the largest stacked size over all steps. Valid after
// Finalize.
func (g *Graph) MaxStacked() float64 { return g.maxStacked }

// Bound returns the extent of the secondary axis. Valid after Finalize.
func (g *Graph) Bound() float64 { return g.bound }

// Positions returns the centre position of every node.
func (g *Graph) Positions() Positions {
	p := make(Positions, g.NodeCount())
	for n := range g.All() {
		p[n.Key()] = n.Pos
	}
	return p
}
