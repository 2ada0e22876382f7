// Package stream renders solved layouts as stream diagrams.
//
// Each entity becomes one or more closed bands, one per run of consecutive
// times, traced through the top and bottom edge of its nodes. Bands are
// drawn parents first so nested streams sit on top of their parent; link
// bands follow, then tag outlines and finally tag text.
//
//	svg := stream.RenderSVG(layout, stream.WithSize(1200, 600))
//	png, err := render.ToPNG(svg, 2.0)
//
// Transparent nodes (labels, "on" tags) are not filled.
package stream
