package stream

import (
	"bytes"
	"cmp"
	"encoding/xml"
	"fmt"
	"slices"
	"strings"

	"github.com/matzehuels/orcha/pkg/core/build"
	"github.com/matzehuels/orcha/pkg/graph"
)

// Default canvas size in pixels.
const (
	DefaultWidth  = 800.0
	DefaultHeight = 600.0
)

// fontFill is the share of a label line taken by the glyphs.
const fontFill = 0.8

type RenderOption func(*renderer)

type renderer struct {
	width, height float64
	background    string
	curved        bool
	labels        bool
}

func WithSize(w, h float64) RenderOption {
	return func(r *renderer) {
		if w > 0 {
			r.width = w
		}
		if h > 0 {
			r.height = h
		}
	}
}
func WithBackground(c string) RenderOption { return func(r *renderer) { r.background = c } }
func WithStraightEdges() RenderOption      { return func(r *renderer) { r.curved = false } }
func WithoutLabels() RenderOption          { return func(r *renderer) { r.labels = false } }

func newRenderer(opts ...RenderOption) renderer {
	r := renderer{width: DefaultWidth, height: DefaultHeight, curved: true, labels: true}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// frame maps layout units to pixels.
type frame struct {
	x0, sx, sy, half float64
}

func newFrame(l graph.Layout, width, height float64) frame {
	f := frame{sx: 1, sy: 1}
	first, _, ok := l.TimeRange()
	if !ok {
		return f
	}
	f.x0 = float64(first) * l.XScale
	if l.Width > 0 {
		f.sx = width / l.Width
	}
	if l.Bound > 0 {
		f.sy = height / l.Bound
	}
	f.half = graph.NodeWidthRatio * l.XScale / 2
	return f
}

func (f frame) x(n graph.Node) float64 { return (n.X-f.x0+f.half)*f.sx }
func (f frame) y(v float64) float64    { return v * f.sy }

// RenderSVG draws l as a stream diagram.
func RenderSVG(l graph.Layout, opts ...RenderOption) []byte {
	r := newRenderer(opts...)
	f := newFrame(l, r.width, r.height)
	runs := orderRuns(l)

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.1f %.1f" width="%.0f" height="%.0f">`+"\n",
		r.width, r.height, r.width, r.height)
	if r.background != "" {
		fmt.Fprintf(&buf, `  <rect width="100%%" height="100%%" fill="%s"/>`+"\n", escape(r.background))
	}

	for _, run := range runs {
		if run.color == build.Transparent {
			continue
		}
		renderBand(&buf, f, run, r.curved)
	}
	if r.labels {
		for _, run := range runs {
			if run.kind == graph.KindLabel {
				renderLabel(&buf, f, run)
			}
		}
	}

	buf.WriteString("</svg>\n")
	return buf.Bytes()
}

type band struct {
	graph.Run
	kind  string
	color string
	layer int
	depth int
}

// orderRuns splits the layout into runs and sorts them into paint order.
func orderRuns(l graph.Layout) []band {
	parents := make(map[string]string, len(l.Nodes))
	for _, n := range l.Nodes {
		parents[n.ID] = n.Parent
	}
	depth := func(id string) int {
		d := 0
		for p := parents[id]; p != ""; p = parents[p] {
			d++
		}
		return d
	}

	var out []band
	for _, run := range l.StreamView().Runs() {
		first := run.Nodes[0]
		b := band{Run: run, kind: first.Kind, color: first.Color, depth: depth(first.ID)}
		if b.color == "" {
			b.color = build.DefaultColor
		}
		switch first.Kind {
		case graph.KindLink:
			b.layer = 1
		case graph.KindTag:
			b.layer = 2
		case graph.KindLabel:
			b.layer = 3
		}
		out = append(out, b)
	}
	slices.SortStableFunc(out, func(a, b band) int {
		return cmp.Or(cmp.Compare(a.layer, b.layer), cmp.Compare(a.depth, b.depth))
	})
	return out
}

func renderBand(buf *bytes.Buffer, f frame, b band, curved bool) {
	nodes := b.Nodes
	half := f.half * f.sx

	var path strings.Builder
	first := nodes[0]
	fmt.Fprintf(&path, "M%.2f,%.2f", f.x(first)-half, f.y(first.Top()))
	fmt.Fprintf(&path, " L%.2f,%.2f", f.x(first), f.y(first.Top()))
	for i := 1; i < len(nodes); i++ {
		segment(&path, f, nodes[i-1], nodes[i], (*graph.Node).Top, curved)
	}
	last := nodes[len(nodes)-1]
	fmt.Fprintf(&path, " L%.2f,%.2f", f.x(last)+half, f.y(last.Top()))
	fmt.Fprintf(&path, " L%.2f,%.2f", f.x(last)+half, f.y(last.Bottom()))
	fmt.Fprintf(&path, " L%.2f,%.2f", f.x(last), f.y(last.Bottom()))
	for i := len(nodes) - 2; i >= 0; i-- {
		segment(&path, f, nodes[i+1], nodes[i], (*graph.Node).Bottom, curved)
	}
	fmt.Fprintf(&path, " L%.2f,%.2f Z", f.x(first)-half, f.y(first.Bottom()))

	fmt.Fprintf(buf, `  <path class="%s" data-name="%s" d="%s" fill="%s"/>`+"\n",
		b.kind, escape(b.Name), path.String(), escape(b.color))
}

// segment continues path from a to b along edge. Curves use horizontal
// tangents so consecutive segments join smoothly.
func segment(path *strings.Builder, f frame, a, b graph.Node, edge func(*graph.Node) float64, curved bool) {
	x1, y1 := f.x(a), f.y(edge(&a))
	x2, y2 := f.x(b), f.y(edge(&b))
	if !curved {
		fmt.Fprintf(path, " L%.2f,%.2f", x2, y2)
		return
	}
	mx := (x1 + x2) / 2
	fmt.Fprintf(path, " C%.2f,%.2f %.2f,%.2f %.2f,%.2f", mx, y1, mx, y2, x2, y2)
}

// renderLabel writes the tag text centred on the middle node of the run.
func renderLabel(buf *bytes.Buffer, f frame, b band) {
	mid := b.Nodes[len(b.Nodes)/2]
	if len(mid.Labels) == 0 {
		return
	}
	lineHeight := mid.Height / float64(len(mid.Labels))
	px := lineHeight * f.sy * fontFill
	for i, line := range mid.Labels {
		y := f.y(mid.Top() + lineHeight*(float64(i)+0.5))
		fmt.Fprintf(buf, `  <text x="%.2f" y="%.2f" font-size="%.1f" font-family="sans-serif" text-anchor="middle" dominant-baseline="central">%s</text>`+"\n",
			f.x(mid), y, px, escape(line))
	}
}

func escape(s string) string {
	var buf bytes.Buffer
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
