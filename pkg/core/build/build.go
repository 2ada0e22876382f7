// Package build compiles an Interval Spec into a timestep graph.
//
// The build runs in a fixed order because creation order decides sibling
// layering downstream:
//
//  1. stream colours (children darken their parent's colour)
//  2. tag naming and side assignment
//  3. per stream: upper tags, the stream, lower tags, tag attachments
//  4. inner tags
//  5. links (in-transit nodes, merges, ports)
//  6. continuation between equal names at consecutive times
//  7. finalize (stack sizes, bound, initial positions)
//
// Malformed rows never fail a build. They are skipped and reported in
// [Result.Dropped].
package build

import (
	"io"
	"math/rand/v2"
	"strconv"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/orcha/pkg/core/timestep"
	errs "github.com/matzehuels/orcha/pkg/errors"
	"github.com/matzehuels/orcha/pkg/spec"
)

// Defaults for Options.
const (
	DefaultStreamSize   = 1.0
	DefaultFontSize     = 7.0
	DefaultRootSize     = 200.0
	DefaultCanvasWidth  = 800.0
	DefaultCanvasHeight = 600.0
	DefaultSpread       = 2.0
	DefaultSeed         = uint64(42)
)

// Options configures a build. Zero values take the defaults above.
type Options struct {
	// Seed drives the side of tags that do not specify one.
	Seed uint64

	// StreamSize is the size of streams without keyframes.
	StreamSize float64

	// FontSize, RootSize and the canvas size convert tag text into a number
	// of time steps and a height in stream units.
	FontSize     float64
	RootSize     float64
	CanvasWidth  float64
	CanvasHeight float64

	// Spread scales the largest stacked size into the canvas bound, leaving
	// room for the layout to separate streams.
	Spread float64

	// Previous holds positions of an earlier layout, carried over by key.
	Previous timestep.Positions

	Logger *log.Logger
}

func (o *Options) setDefaults() {
	if o.Seed == 0 {
		o.Seed = DefaultSeed
	}
	if o.StreamSize <= 0 {
		o.StreamSize = DefaultStreamSize
	}
	if o.FontSize <= 0 {
		o.FontSize = DefaultFontSize
	}
	if o.RootSize <= 0 {
		o.RootSize = DefaultRootSize
	}
	if o.CanvasWidth <= 0 {
		o.CanvasWidth = DefaultCanvasWidth
	}
	if o.CanvasHeight <= 0 {
		o.CanvasHeight = DefaultCanvasHeight
	}
	if o.Spread <= 0 {
		o.Spread = DefaultSpread
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// Row kinds reported in Dropped.
const (
	RowStream = "stream"
	RowTag    = "tag"
	RowLink   = "link"
)

// Dropped describes an input row that was skipped.
type Dropped struct {
	Kind   string `json:"kind"`
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// Result is the output of Build.
type Result struct {
	Graph   *timestep.Graph
	Dropped []Dropped
	Warm    int // nodes that received a previous position
}

type builder struct {
	opts   Options
	g      *timestep.Graph
	rng    *rand.Rand
	log    *log.Logger
	res    *Result
	colors map[string]string
	steps  int

	// names of generated tag, label, link and port nodes
	reserved map[string]struct{}
}

// Build compiles s into a finalized timestep graph. The same spec and
// options always produce the same graph. s is not modified.
func Build(s spec.Spec, opts Options) *Result {
	opts.setDefaults()
	b := &builder{
		opts:   opts,
		g:      timestep.New(),
		rng:    rand.New(rand.NewPCG(opts.Seed, opts.Seed^0xdeadbeef)),
		log:    opts.Logger,
		colors: make(map[string]string, len(s.Streams)),
	}
	b.res = &Result{Graph: b.g}

	b.reserveNames(s)
	b.resolveColors(s.Streams)
	b.steps = countSteps(s.Streams)
	tags := b.prepareTags(s.Tags)

	var pending []parentRef
	for i, st := range s.Streams {
		for _, tg := range tags.upper[st.Name] {
			b.addTag(tg)
		}
		pending = append(pending, b.addStream(i, st)...)
		for _, tg := range tags.lower[st.Name] {
			b.addTag(tg)
		}
		for _, tg := range tags.upper[st.Name] {
			b.attachTag(tg)
		}
		for _, tg := range tags.lower[st.Name] {
			b.attachTag(tg)
		}
	}
	// children listed before their parent stream
	for _, p := range pending {
		b.g.AddParent(p.time, p.name, p.parent)
	}

	for _, tg := range tags.inner {
		b.addTag(tg)
	}
	for i, l := range s.Links {
		b.addLink(i, l)
	}

	implicit := b.g.ConnectEqualIDs()
	b.res.Warm = b.g.ApplyPositions(opts.Previous)
	b.g.Finalize(opts.Spread)

	b.log.Debug("built timestep graph",
		"nodes", b.g.NodeCount(),
		"edges", b.g.EdgeCount(),
		"implicit_edges", implicit,
		"dropped", len(b.res.Dropped),
		"warm", b.res.Warm)
	return b.res
}

func (b *builder) drop(kind string, index int, reason string) {
	b.res.Dropped = append(b.res.Dropped, Dropped{Kind: kind, Index: index, Reason: reason})
	b.log.Debug("skipped row", "kind", kind, "index", index, "reason", reason)
}

// reserveNames records the names the builder generates for tags and links,
// so a stream row cannot take over their nodes.
func (b *builder) reserveNames(s spec.Spec) {
	b.reserved = make(map[string]struct{}, 2*len(s.Tags)+2*len(s.Links))
	for i := range s.Tags {
		b.reserved[TagName(i)] = struct{}{}
		b.reserved[LabelName(TagName(i))] = struct{}{}
	}
	for _, l := range s.Links {
		if l.Start.Valid {
			name := LinkName(l.From, l.To, l.Start.Int())
			b.reserved[name] = struct{}{}
			b.reserved[PortName(name)] = struct{}{}
		}
	}
}

// resolveColors derives missing child colours from the parent, in input
// order, so a derived colour can itself be darkened again.
func (b *builder) resolveColors(streams []spec.Stream) {
	for _, st := range streams {
		c := st.Color
		if st.Parent != "" && c == "" {
			if parent, ok := b.colors[st.Parent]; ok {
				c = Darken(parent)
			} else if ps, ok := findStream(streams, st.Parent); ok {
				c = Darken(ps.Color)
			}
		}
		if _, seen := b.colors[st.Name]; !seen {
			b.colors[st.Name] = c
		}
	}
}

func findStream(streams []spec.Stream, name string) (spec.Stream, bool) {
	for _, st := range streams {
		if st.Name == name {
			return st, true
		}
	}
	return spec.Stream{}, false
}

// countSteps returns the number of distinct integer times covered by valid
// streams, at least 1.
func countSteps(streams []spec.Stream) int {
	seen := make(map[int]struct{})
	for _, st := range streams {
		if !st.Start.Valid || !st.End.Valid {
			continue
		}
		for t := st.Start.Int(); t <= st.End.Int(); t++ {
			seen[t] = struct{}{}
		}
	}
	return max(len(seen), 1)
}

type parentRef struct {
	time         int
	name, parent string
}

// addStream emits one node per time in [start, end]. It returns the
// nestings that could not be made yet because the parent does not exist.
func (b *builder) addStream(i int, st spec.Stream) []parentRef {
	if err := errs.ValidateName(st.Name); err != nil {
		b.drop(RowStream, i, errs.UserMessage(err))
		return nil
	}
	if _, ok := b.reserved[st.Name]; ok {
		b.drop(RowStream, i, "name "+strconv.Quote(st.Name)+" is taken by a generated tag or link node")
		return nil
	}
	if !st.Start.Valid || !st.End.Valid {
		b.drop(RowStream, i, "start and end must be numeric")
		return nil
	}
	start, end := st.Start.Int(), st.End.Int()
	if start > end {
		b.drop(RowStream, i, "start is after end")
		return nil
	}

	var pending []parentRef
	color := b.colors[st.Name]
	for t := start; t <= end; t++ {
		size := st.Values.At(float64(t), b.opts.StreamSize)
		if size <= 0 {
			size = b.opts.StreamSize
		}
		b.g.AddNode(t, st.Name, size, timestep.Attrs{Color: color, Kind: timestep.KindStream})
		if st.Parent != "" && !b.g.AddParent(t, st.Name, st.Parent) && b.g.Node(t, st.Parent) == nil {
			pending = append(pending, parentRef{t, st.Name, st.Parent})
		}
	}
	return pending
}
