package pipeline

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	errs "github.com/matzehuels/orcha/pkg/errors"
	"github.com/matzehuels/orcha/pkg/graph"
	"github.com/matzehuels/orcha/pkg/observability"
	"github.com/matzehuels/orcha/pkg/render"
	"github.com/matzehuels/orcha/pkg/render/nodelink"
	"github.com/matzehuels/orcha/pkg/render/stream"
)

// =============================================================================
// Render
// =============================================================================

// Render produces every requested format from l. Formats render
// concurrently; l is only read.
func Render(ctx context.Context, l graph.Layout, opts Options) (map[string][]byte, error) {
	hooks := observability.Pipeline()
	hooks.OnRenderStart(ctx, opts.View, opts.Formats)
	start := time.Now()

	var (
		mu        sync.Mutex
		artifacts = make(map[string][]byte, len(opts.Formats))
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, format := range opts.Formats {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := RenderFormat(l, format, opts)
			if err != nil {
				return err
			}
			mu.Lock()
			artifacts[format] = data
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()
	hooks.OnRenderComplete(ctx, opts.View, opts.Formats, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return artifacts, nil
}

// RenderFormat produces one artifact.
func RenderFormat(l graph.Layout, format string, opts Options) ([]byte, error) {
	if format == FormatJSON {
		return graph.MarshalLayout(l)
	}
	if opts.IsNodelink() {
		return renderNodelink(l, format, opts)
	}
	return renderStream(l, format, opts)
}

func renderStream(l graph.Layout, format string, opts Options) ([]byte, error) {
	svgOpts := []stream.RenderOption{stream.WithSize(opts.Width, opts.Height)}
	if opts.Straight {
		svgOpts = append(svgOpts, stream.WithStraightEdges())
	}
	svg := stream.RenderSVG(l, svgOpts...)

	switch format {
	case FormatSVG:
		return svg, nil
	case FormatPNG:
		return render.ToPNG(svg, DefaultPNGScale)
	case FormatPDF:
		return render.ToPDF(svg)
	}
	return nil, errs.New(errs.ErrCodeUnsupported, "format %q is not available in the stream view", format)
}

func renderNodelink(l graph.Layout, format string, opts Options) ([]byte, error) {
	dot := nodelink.ToDOT(l, nodelink.Options{
		Width:  opts.Width,
		Height: opts.Height,
		Labels: opts.Labels,
	})

	switch format {
	case FormatDOT:
		return []byte(dot), nil
	case FormatSVG:
		return nodelink.RenderSVG(dot)
	case FormatPNG:
		return nodelink.RenderPNG(dot)
	case FormatPDF:
		svg, err := nodelink.RenderSVG(dot)
		if err != nil {
			return nil, err
		}
		return render.ToPDF(svg)
	}
	return nil, errs.New(errs.ErrCodeUnsupported, "format %q is not available in the node-link view", format)
}
