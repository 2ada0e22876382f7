package force

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"slices"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/orcha/pkg/core/flat"
	"github.com/matzehuels/orcha/pkg/core/timestep"
)

// State is the lifecycle stage of a Simulation.
type State int

const (
	Idle       State = iota // no data bound
	Configured              // data bound, not stepping
	Running                 // inside Tick or Run
	Settled                 // alpha fell below AlphaMin or MaxIterations reached
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Configured:
		return "configured"
	case Running:
		return "running"
	case Settled:
		return "settled"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Handler receives the simulation after a tick or when a run settles.
type Handler func(s *Simulation)

// Option configures a Simulation.
type Option func(*Simulation)

// WithTickHandler sets the function called after every step.
func WithTickHandler(fn Handler) Option {
	return func(s *Simulation) { s.onTick = fn }
}

// WithEndHandler sets the function called when Run settles.
func WithEndHandler(fn Handler) Option {
	return func(s *Simulation) { s.onEnd = fn }
}

// WithLogger sets the logger for debug output.
func WithLogger(l *log.Logger) Option {
	return func(s *Simulation) {
		if l != nil {
			s.log = l
		}
	}
}

// Node is a snapshot of a solved node.
type Node struct {
	flat.Node
	X  float64
	VY float64
}

// Simulation positions the nodes of a flattened graph vertically. x is
// pinned to time*XScale; only y moves.
//
// A Simulation is not safe for concurrent use, except for Stop.
type Simulation struct {
	cfg   Config
	log   *log.Logger
	rng   *rand.Rand
	state State
	alpha float64
	steps int
	bound float64

	graphBound float64

	nodes  []flat.Node
	bodies []body
	order  []int // parents before children

	streams, links, tags *linkForce
	many                 manyBody
	coll                 collide

	onTick, onEnd Handler
	delivering    bool
	pending       *flat.Graph
	stop          atomic.Bool
}

// New returns an idle simulation. Bind data with SetData before stepping.
func New(cfg Config, opts ...Option) *Simulation {
	s := &Simulation{
		cfg: cfg,
		log: log.NewWithOptions(io.Discard, log.Options{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.reseed()
	return s
}

func (s *Simulation) reseed() {
	s.rng = rand.New(rand.NewPCG(s.cfg.Seed, s.cfg.Seed^0xdeadbeef))
}

// SetData binds g, resets velocities and alpha, and moves the simulation to
// Configured. Positions start from the node Y values. Called from a tick
// handler, the data is bound after the handler returns.
//
// SetData panics when a link or parent references an unknown node.
func (s *Simulation) SetData(g *flat.Graph) {
	if s.delivering {
		s.pending = g
		return
	}
	s.bind(g)
}

func (s *Simulation) bind(g *flat.Graph) {
	idx := make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		if _, dup := idx[n.ID]; dup {
			panic(fmt.Sprintf("force: duplicate node %q", n.ID))
		}
		idx[n.ID] = i
	}

	s.nodes = slices.Clone(g.Nodes)
	s.bodies = make([]body, len(g.Nodes))
	for i, n := range g.Nodes {
		b := body{
			y:      n.Y,
			height: n.Height,
			parent: -1,
			link:   n.Kind == timestep.KindLink,
		}
		if n.Parent != "" {
			p, ok := idx[n.Parent]
			if !ok {
				panic(fmt.Sprintf("force: node %q has unknown parent %q", n.ID, n.Parent))
			}
			b.parent = p
		}
		s.bodies[i] = b
	}
	s.order = topoOrder(s.bodies)

	resolve := func(links []flat.Link) [][2]int {
		pairs := make([][2]int, len(links))
		for i, l := range links {
			src, ok := idx[l.Source]
			if !ok {
				panic(fmt.Sprintf("force: link %q has unknown source %q", l.ID, l.Source))
			}
			dst, ok := idx[l.Target]
			if !ok {
				panic(fmt.Sprintf("force: link %q has unknown target %q", l.ID, l.Target))
			}
			pairs[i] = [2]int{src, dst}
		}
		return pairs
	}
	s.streams = newLinkForce(len(s.bodies), resolve(g.StreamLinks))
	s.links = newLinkForce(len(s.bodies), resolve(g.LinkLinks))
	s.tags = newLinkForce(len(s.bodies), resolve(g.TagLinks))

	s.graphBound = g.Bound
	s.resolveBound()
	s.placeX()
	s.alpha = 1
	s.steps = 0
	s.state = Configured

	s.log.Debug("bound layout data",
		"nodes", len(s.bodies),
		"stream_links", len(g.StreamLinks),
		"link_links", len(g.LinkLinks),
		"tag_links", len(g.TagLinks),
		"bound", s.bound)
}

// topoOrder lists bodies so every parent precedes its children, keeping
// creation order among equal depths.
func topoOrder(bs []body) []int {
	depth := make([]int, len(bs))
	for i := range bs {
		for p := bs[i].parent; p >= 0; p = bs[p].parent {
			depth[i]++
		}
	}
	order := make([]int, len(bs))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int { return depth[a] - depth[b] })
	return order
}

func (s *Simulation) resolveBound() {
	s.bound = s.cfg.Bound
	if s.bound <= 0 {
		s.bound = s.graphBound
	}
	if s.bound <= 0 {
		s.bound = 1
	}
}

// placeX pins x and rebuilds the columns used by the pairwise forces.
func (s *Simulation) placeX() {
	var all, free []int
	maxHeight := 0.0
	for i := range s.bodies {
		b := &s.bodies[i]
		b.x = float64(s.nodes[i].Time) * s.cfg.XScale
		b.vy = 0
		all = append(all, i)
		if !b.link {
			free = append(free, i)
		}
		maxHeight = max(maxHeight, b.height)
	}
	s.many = manyBody{cols: newColumns(s.bodies, free)}
	s.coll = collide{cols: newColumns(s.bodies, all), maxHeight: maxHeight}
}

func (s *Simulation) yTarget() float64 {
	if s.cfg.YTarget == 0 {
		return s.bound / 2
	}
	return s.cfg.YTarget
}

// step advances one tick without notifying handlers.
func (s *Simulation) step() {
	c := &s.cfg
	s.alpha += (c.AlphaTarget - s.alpha) * c.AlphaDecay

	pullY(s.bodies, s.alpha, c.YStrength, s.yTarget())
	s.many.apply(s.bodies, s.alpha, c.BodyStrength, s.bound, s.rng)
	s.coll.apply(s.bodies, c.CollisionStrength, s.rng)
	s.streams.apply(s.bodies, s.alpha, c.StreamStrength, c.StreamDistance*c.XScale, c.StreamIterations, s.rng)
	s.links.apply(s.bodies, s.alpha, c.LinkStrength, c.LinkDistance*c.XScale, c.LinkIterations, s.rng)
	s.tags.apply(s.bodies, s.alpha, c.TagStrength, c.TagDistance*c.XScale, c.TagIterations, s.rng)

	keep := 1 - c.VelocityDecay
	for i := range s.bodies {
		b := &s.bodies[i]
		b.vy *= keep
		b.y += b.vy
	}
	s.constrain()
	s.steps++
}

// constrain keeps every node inside the padded bound and inside its parent.
// A node larger than the space it must fit is centred on it.
func (s *Simulation) constrain() {
	pad := s.cfg.Padding
	for _, i := range s.order {
		b := &s.bodies[i]
		half := b.height / 2
		b.y = clamp(b.y, half+pad, s.bound-half-pad, s.bound/2)
		if b.parent >= 0 {
			p := &s.bodies[b.parent]
			ph := p.height / 2
			b.y = clamp(b.y, p.y-ph+half, p.y+ph-half, p.y)
		}
	}
}

func clamp(v, lo, hi, centre float64) float64 {
	if lo > hi {
		return centre
	}
	return min(max(v, lo), hi)
}

func (s *Simulation) deliver(fn Handler) {
	if fn == nil {
		return
	}
	s.delivering = true
	defer func() {
		s.delivering = false
		if g := s.pending; g != nil {
			s.pending = nil
			s.bind(g)
		}
	}()
	fn(s)
}

func (s *Simulation) mustHaveData(op string) {
	if s.state == Idle {
		panic("force: " + op + " called before SetData")
	}
}

// Tick runs exactly n steps synchronously, notifying the tick handler after
// each. It ignores AlphaMin and MaxIterations.
func (s *Simulation) Tick(n int) {
	s.mustHaveData("Tick")
	s.state = Running
	for range n {
		s.step()
		s.deliver(s.onTick)
	}
	s.settleState()
}

func (s *Simulation) settleState() {
	if s.alpha < s.cfg.AlphaMin {
		s.state = Settled
	} else {
		s.state = Configured
	}
}

// Run restarts at alpha 1 and steps until alpha drops below AlphaMin,
// MaxIterations steps were taken, Stop is called or ctx is done. The end
// handler is notified only when the run settles. Run returns the number of
// steps taken.
func (s *Simulation) Run(ctx context.Context) int {
	s.mustHaveData("Run")
	s.stop.Store(false)
	s.alpha = 1
	s.state = Running

	limit := s.cfg.MaxIterations
	if limit <= 0 {
		limit = DefaultConfig().MaxIterations
	}
	steps := 0
	settled := false
	for {
		if s.stop.Load() || ctx.Err() != nil {
			break
		}
		s.step()
		steps++
		s.deliver(s.onTick)
		if s.alpha < s.cfg.AlphaMin || steps >= limit {
			settled = true
			break
		}
	}

	if !settled {
		s.state = Configured
		s.log.Debug("layout interrupted", "steps", steps, "alpha", s.alpha)
		return steps
	}
	s.state = Settled
	s.log.Debug("layout settled", "steps", steps, "alpha", s.alpha)
	s.deliver(s.onEnd)
	return steps
}

// Stop ends a running Run after the current step. It is safe to call from
// another goroutine or a tick handler.
func (s *Simulation) Stop() {
	s.stop.Store(true)
}

// Update sets a parameter on the live simulation. Strengths and distances
// take effect on the next step; callers re-run to converge again.
func (s *Simulation) Update(name string, value float64) error {
	if err := s.cfg.Set(name, value); err != nil {
		return err
	}
	switch name {
	case "seed":
		s.reseed()
	case "bound":
		s.resolveBound()
	case "x_scale":
		if s.state != Idle {
			s.placeX()
		}
	}
	s.log.Debug("updated parameter", "name", name, "value", value)
	return nil
}

// Config returns a copy of the current parameters.
func (s *Simulation) Config() Config { return s.cfg }

// Alpha returns the current cooling value.
func (s *Simulation) Alpha() float64 { return s.alpha }

// SetAlpha sets the current alpha, typically to reheat a settled
// simulation after Update. Values are clamped to [0, 1].
func (s *Simulation) SetAlpha(a float64) {
	s.alpha = math.Max(0, math.Min(1, a))
	if s.state == Settled && s.alpha >= s.cfg.AlphaMin {
		s.state = Configured
	}
}

// State returns the lifecycle stage.
func (s *Simulation) State() State { return s.state }

// Steps returns the number of steps since the data was bound.
func (s *Simulation) Steps() int { return s.steps }

// Bound returns the canvas height in use.
func (s *Simulation) Bound() float64 { return s.bound }

// Nodes returns a snapshot of every node with its current position.
func (s *Simulation) Nodes() []Node {
	out := make([]Node, len(s.bodies))
	for i, b := range s.bodies {
		n := s.nodes[i]
		n.Y = b.y
		out[i] = Node{Node: n, X: b.x, VY: b.vy}
	}
	return out
}

// Positions returns the current y of every node keyed by name and time,
// for warm-starting a rebuilt graph.
func (s *Simulation) Positions() timestep.Positions {
	p := make(timestep.Positions, len(s.bodies))
	for i, b := range s.bodies {
		p[timestep.Key{Name: s.nodes[i].Name, Time: s.nodes[i].Time}] = b.y
	}
	return p
}
