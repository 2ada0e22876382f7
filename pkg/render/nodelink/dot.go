package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/orcha/pkg/core/build"
	"github.com/matzehuels/orcha/pkg/core/flat"
	"github.com/matzehuels/orcha/pkg/graph"
)

// Options configures node-link diagram rendering.
type Options struct {
	// Width and Height are the canvas size in points.
	Width, Height float64

	// Labels shows entity names inside stream nodes. When false, only tag
	// text is shown.
	Labels bool
}

func (o *Options) setDefaults() {
	if o.Width <= 0 {
		o.Width = 800
	}
	if o.Height <= 0 {
		o.Height = 600
	}
}

// ToDOT converts a layout to Graphviz DOT with every node pinned at its
// solved position. Render it with neato in no-op mode (see [RenderSVG]).
//
// Stream and link nodes are boxes, tag outlines are ellipses and tag labels
// become plain text. Edges take the colour of their source node.
func ToDOT(l graph.Layout, opts Options) string {
	opts.setDefaults()
	first, _, _ := l.TimeRange()
	sx, sy := 1.0, 1.0
	if l.Width > 0 {
		sx = opts.Width / l.Width
	}
	if l.Bound > 0 {
		sy = opts.Height / l.Bound
	}
	nodeWidth := graph.NodeWidthRatio * l.XScale

	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  inputscale=72;\n")
	buf.WriteString("  notranslate=true;\n")
	buf.WriteString("  overlap=true;\n")
	buf.WriteString("  splines=line;\n")
	buf.WriteString("  node [fixedsize=true, style=filled, penwidth=0, fontsize=10, fontname=\"sans-serif\"];\n")
	buf.WriteString("  edge [arrowhead=none];\n")
	buf.WriteString("\n")

	colors := make(map[string]string, len(l.Nodes))
	for _, n := range l.Nodes {
		colors[n.ID] = fillColor(n.Color)
		x := (n.X - float64(first)*l.XScale + nodeWidth/2) * sx
		y := (l.Bound - n.Y) * sy
		attrs := []string{
			fmt.Sprintf("pos=\"%.2f,%.2f!\"", x, y),
			fmt.Sprintf("width=%.4f", nodeWidth*sx/72),
			fmt.Sprintf("height=%.4f", max(n.Height*sy/72, 0.01)),
		}
		attrs = append(attrs, fmtShape(n, opts.Labels)...)
		fmt.Fprintf(&buf, "  %q [%s];\n", n.ID, strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, e := range l.Edges {
		if e.Class == string(flat.ClassLabel) {
			continue
		}
		fmt.Fprintf(&buf, "  %q -> %q [color=%q];\n", e.Source, e.Target, colors[e.Source])
	}

	buf.WriteString("}\n")
	return buf.String()
}

func fillColor(c string) string {
	if c == "" {
		return build.DefaultColor
	}
	if c == build.Transparent {
		return c
	}
	if rgb, ok := build.ParseColor(c); ok {
		return rgb.Hex()
	}
	return build.DefaultColor
}

func fmtShape(n graph.Node, labels bool) []string {
	switch n.Kind {
	case graph.KindTag:
		return []string{"shape=ellipse", fmt.Sprintf("fillcolor=%q", fillColor(n.Color)), `label=""`}
	case graph.KindLabel:
		return []string{"shape=plaintext", `fillcolor="transparent"`, fmt.Sprintf("label=%q", strings.Join(n.Labels, "\n"))}
	}
	label := ""
	if labels && n.Kind == graph.KindStream {
		label = n.Name
	}
	return []string{"shape=box", fmt.Sprintf("fillcolor=%q", fillColor(n.Color)), fmt.Sprintf("label=%q", label)}
}

// RenderSVG renders a DOT graph with pinned positions to SVG using
// Graphviz's neato engine.
func RenderSVG(dot string) ([]byte, error) {
	out, err := renderDOT(dot, graphviz.SVG)
	if err != nil {
		return nil, err
	}
	return normalizeViewBox(out), nil
}

// RenderPNG renders a DOT graph with pinned positions to PNG in-process.
func RenderPNG(dot string) ([]byte, error) {
	return renderDOT(dot, graphviz.PNG)
}

func renderDOT(dot string, format graphviz.Format) ([]byte, error) {
	ctx := context.Background()
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()
	gv.SetLayout(graphviz.NEATO)

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, format, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}
