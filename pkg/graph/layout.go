package graph

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/matzehuels/orcha/pkg/core/flat"
	"github.com/matzehuels/orcha/pkg/core/force"
	"github.com/matzehuels/orcha/pkg/core/timestep"
)

// =============================================================================
// Layout - Solved Positions
// =============================================================================

// Layout is the serialization format of a solved stream diagram.
//
// Node X is time*XScale and Y is the centre found by the solver, both in
// layout units. Width spans the first to the last time plus one node width;
// Height equals Bound.
type Layout struct {
	Nodes  []Node  `json:"nodes" bson:"nodes"`
	Edges  []Edge  `json:"edges,omitempty" bson:"edges,omitempty"`
	Merges []Merge `json:"merges,omitempty" bson:"merges,omitempty"`

	Width  float64 `json:"width" bson:"width"`
	Height float64 `json:"height" bson:"height"`
	Bound  float64 `json:"bound" bson:"bound"`
	XScale float64 `json:"x_scale" bson:"x_scale"`

	// Solver provenance
	Seed       uint64             `json:"seed" bson:"seed"`
	Iterations int                `json:"iterations" bson:"iterations"`
	Params     map[string]float64 `json:"params,omitempty" bson:"params,omitempty"`
}

// FromSimulation captures the current state of sim as a Layout. g supplies
// edges and merges and must be the data bound to sim.
func FromSimulation(sim *force.Simulation, g *flat.Graph) Layout {
	cfg := sim.Config()
	nodes := sim.Nodes()
	l := Layout{
		Nodes:      make([]Node, len(nodes)),
		Edges:      edgesFromFlat(g.Links),
		Merges:     mergesFromFlat(g.Merges),
		Bound:      sim.Bound(),
		Height:     sim.Bound(),
		XScale:     cfg.XScale,
		Seed:       cfg.Seed,
		Iterations: sim.Steps(),
		Params:     cfg.Values(),
	}
	width := NodeWidthRatio * cfg.XScale
	for i, n := range nodes {
		node := nodeFromFlat(n.Node)
		node.X = n.X
		node.Width = width
		l.Nodes[i] = node
	}
	if first, last, ok := l.TimeRange(); ok {
		l.Width = float64(last-first)*cfg.XScale + width
	}
	return l
}

// TimeRange returns the first and last time in the layout.
func (l *Layout) TimeRange() (first, last int, ok bool) {
	for i, n := range l.Nodes {
		if i == 0 || n.Time < first {
			first = n.Time
		}
		if i == 0 || n.Time > last {
			last = n.Time
		}
	}
	return first, last, len(l.Nodes) > 0
}

// Positions returns node centres keyed by name and time, for warm-starting
// a rebuild.
func (l *Layout) Positions() timestep.Positions {
	p := make(timestep.Positions, len(l.Nodes))
	for _, n := range l.Nodes {
		p[timestep.Key{Name: n.Name, Time: n.Time}] = n.Y
	}
	return p
}

// Graph returns the structure of the layout with solved positions, usable as
// solver input for further ticks.
func (l *Layout) Graph() Graph {
	return Graph{Nodes: l.Nodes, Edges: l.Edges, Merges: l.Merges, Bound: l.Bound}
}

// =============================================================================
// StreamView - Per-Time Projection
// =============================================================================

// StreamView groups layout nodes by time for band renderers.
type StreamView struct {
	Steps []StreamStep
	Bound float64
}

// StreamStep holds the nodes of one time, in layout order.
type StreamStep struct {
	Time  int
	Nodes []Node
}

// StreamView projects the layout into time steps, ascending.
func (l *Layout) StreamView() StreamView {
	byTime := make(map[int][]Node)
	for _, n := range l.Nodes {
		byTime[n.Time] = append(byTime[n.Time], n)
	}
	times := make([]int, 0, len(byTime))
	for t := range byTime {
		times = append(times, t)
	}
	slices.Sort(times)

	v := StreamView{Steps: make([]StreamStep, len(times)), Bound: l.Bound}
	for i, t := range times {
		v.Steps[i] = StreamStep{Time: t, Nodes: byTime[t]}
	}
	return v
}

// Runs returns the maximal runs of same-named nodes at consecutive times,
// ordered by their first node.
func (v StreamView) Runs() []Run {
	var runs []Run
	open := make(map[string]int) // name -> index into runs
	for _, st := range v.Steps {
		for _, n := range st.Nodes {
			if i, ok := open[n.Name]; ok && runs[i].End() == n.Time-1 {
				runs[i].Nodes = append(runs[i].Nodes, n)
				continue
			}
			open[n.Name] = len(runs)
			runs = append(runs, Run{Name: n.Name, Nodes: []Node{n}})
		}
	}
	return runs
}

// Run is a band of one entity over consecutive times.
type Run struct {
	Name  string
	Nodes []Node
}

// Start and End return the first and last time of the run.
func (r Run) Start() int { return r.Nodes[0].Time }
func (r Run) End() int   { return r.Nodes[len(r.Nodes)-1].Time }

// =============================================================================
// Layout Serialization API
// =============================================================================

// MarshalLayout serializes a Layout to pretty-printed JSON bytes.
func MarshalLayout(l Layout) ([]byte, error) {
	return json.MarshalIndent(l, "", "  ")
}

// UnmarshalLayout deserializes JSON bytes into a Layout and checks that
// every edge and parent refers to a node.
func UnmarshalLayout(data []byte) (Layout, error) {
	var l Layout
	if err := json.Unmarshal(data, &l); err != nil {
		return Layout{}, fmt.Errorf("unmarshal layout: %w", err)
	}
	if err := l.Validate(); err != nil {
		return Layout{}, err
	}
	return l, nil
}

// Validate reports the first dangling reference in l.
func (l *Layout) Validate() error {
	ids := make(map[string]struct{}, len(l.Nodes))
	for _, n := range l.Nodes {
		if n.ID == "" {
			return fmt.Errorf("layout node without id")
		}
		ids[n.ID] = struct{}{}
	}
	for _, n := range l.Nodes {
		if _, ok := ids[n.Parent]; n.Parent != "" && !ok {
			return fmt.Errorf("node %s: unknown parent %s", n.ID, n.Parent)
		}
	}
	for _, e := range l.Edges {
		if _, ok := ids[e.Source]; !ok {
			return fmt.Errorf("edge %s→%s: unknown source", e.Source, e.Target)
		}
		if _, ok := ids[e.Target]; !ok {
			return fmt.Errorf("edge %s→%s: unknown target", e.Source, e.Target)
		}
	}
	return nil
}

// WriteLayout writes l as indented JSON to w.
func WriteLayout(l Layout, w io.Writer) error {
	return encodeJSON(w, l)
}

// ReadLayout decodes and validates a Layout from r.
func ReadLayout(r io.Reader) (Layout, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Layout{}, fmt.Errorf("read layout: %w", err)
	}
	return UnmarshalLayout(data)
}

// WriteLayoutFile writes l to path, replacing any existing file.
func WriteLayoutFile(l Layout, path string) error {
	return writeFile(path, func(w io.Writer) error { return WriteLayout(l, w) })
}

// ReadLayoutFile reads and validates a layout from path.
func ReadLayoutFile(path string) (Layout, error) {
	f, err := os.Open(path)
	if err != nil {
		return Layout{}, err
	}
	defer f.Close()
	return ReadLayout(f)
}
