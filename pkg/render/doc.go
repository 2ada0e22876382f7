// Package render turns solved layouts into pictures.
//
// # Overview
//
//   - [stream]: the stream diagram, one filled band per entity run
//   - [nodelink]: every timestep node pinned at its solved position, drawn
//     by Graphviz
//
// # Format Conversion
//
// The [ToPDF] and [ToPNG] functions convert any SVG to other formats using
// the external rsvg-convert tool (from librsvg). The stream renderer relies
// on them for PNG and PDF; the node-link renderer can also produce PNG
// in-process.
//
//	svg := stream.RenderSVG(layout)
//	png, err := render.ToPNG(svg, 2.0)  // 2x scale
//
// [stream]: github.com/matzehuels/orcha/pkg/render/stream
// [nodelink]: github.com/matzehuels/orcha/pkg/render/nodelink
package render
