// Package nodelink renders solved layouts as node-link diagrams.
//
// # Overview
//
// Every timestep node becomes a Graphviz node pinned at its solved
// position, so the picture shows exactly what the solver produced: stream
// and link nodes as boxes, tag outlines as ellipses, tag labels as text and
// edges coloured by their source.
//
// # Usage
//
//	dot := nodelink.ToDOT(layout, nodelink.Options{Width: 1200, Height: 600})
//	svg, err := nodelink.RenderSVG(dot)
//	png, err := nodelink.RenderPNG(dot)
//
// # DOT Format
//
// Positions are written as pos="x,y!" in points with inputscale=72 and
// rendered with the neato engine, which keeps pinned nodes in place. The
// DOT can also be saved and rendered with `neato -n2`.
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz] for in-process SVG and
// PNG rendering.
package nodelink
