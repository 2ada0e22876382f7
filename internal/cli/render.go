package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/orcha/pkg/graph"
	"github.com/matzehuels/orcha/pkg/pipeline"
)

// renderFlags holds the flags of the render command.
type renderFlags struct {
	output     string
	formats    string
	labels     bool
	straight   bool
	fromLayout bool
	refresh    bool
	sets       []string
}

// renderCommand draws a spec or a solved layout.
func (c *CLI) renderCommand() *cobra.Command {
	var f renderFlags

	cmd := &cobra.Command{
		Use:   "render [spec | layout.json]",
		Short: "Render a spec or a layout",
		Long: `Render a spec or a layout produced by 'layout'.

Specs run the whole pipeline (build, solve, render). Files ending in
.layout.json, or any file with --from-layout, are rendered as they are.

The stream view supports svg, png, pdf and json; the node-link view adds dot.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := c.pipelineOptions()
			opts.Formats = parseFormats(f.formats)
			opts.Labels = f.labels
			opts.Straight = f.straight
			opts.Refresh = f.refresh
			if err := opts.ValidateForRender(); err != nil {
				return err
			}
			if err := applySets(&opts, f.sets); err != nil {
				return err
			}
			if f.fromLayout || strings.HasSuffix(args[0], ".layout.json") {
				return c.renderLayoutFile(cmd.Context(), args[0], opts, f.output)
			}
			setInput(&opts, args[0])
			return c.runRender(cmd.Context(), args[0], opts, f.output)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.output, "output", "o", "", "output file (single format) or base path (multiple)")
	fl.StringVarP(&f.formats, "format", "f", "", "output format(s): svg (default), png, pdf, json, dot (comma-separated)")
	fl.StringP("type", "t", pipeline.DefaultView, "view: stream (default), nodelink")
	fl.BoolVar(&f.labels, "labels", false, "show entity names in the node-link view")
	fl.BoolVar(&f.straight, "straight", false, "draw straight band segments in the stream view")
	fl.BoolVar(&f.fromLayout, "from-layout", false, "treat the input as layout JSON")
	fl.BoolVar(&f.refresh, "refresh", false, "ignore cached results")
	fl.StringArrayVar(&f.sets, "set", nil, "solver parameter as name=value (repeatable)")
	bind(cmd, "type", "layout.view")
	layoutFlags(cmd)
	return cmd
}

// runRender runs the full pipeline on a spec.
func (c *CLI) runRender(ctx context.Context, input string, opts pipeline.Options, output string) error {
	runner, err := c.newRunner()
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	spinner := newSpinner(ctx, "Rendering "+input+"...")
	spinner.Start()
	result, err := runner.Execute(ctx, opts)
	if err != nil {
		spinner.StopWithError("Render failed")
		return err
	}
	spinner.Stop()

	printDropped(result.Dropped)
	paths, err := writeArtifacts(result.Artifacts, opts.Formats, output, input)
	if err != nil {
		return err
	}
	printSuccess("Rendered %s view", opts.View)
	for _, p := range paths {
		printFile(p)
	}
	printStats(graphStats{
		Nodes:  result.Stats.NodeCount,
		Edges:  result.Stats.EdgeCount,
		Merges: result.Stats.MergeCount,
		Steps:  result.Stats.Steps,
		Cached: result.CacheInfo.BuildHit && result.CacheInfo.LayoutHit && result.CacheInfo.RenderHit,
	})
	return nil
}

// renderLayoutFile renders a layout JSON file without solving again.
func (c *CLI) renderLayoutFile(ctx context.Context, input string, opts pipeline.Options, output string) error {
	l, err := graph.ReadLayoutFile(input)
	if err != nil {
		return fmt.Errorf("load layout %s: %w", input, err)
	}
	runner, err := c.newRunner()
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	artifacts, hit, err := runner.RenderWithCacheInfo(ctx, l, opts)
	if err != nil {
		return err
	}
	paths, err := writeArtifacts(artifacts, opts.Formats, output, input)
	if err != nil {
		return err
	}
	printSuccess("Rendered %s view", opts.View)
	for _, p := range paths {
		printFile(p)
	}
	printStats(graphStats{Nodes: len(l.Nodes), Edges: len(l.Edges), Merges: len(l.Merges), Cached: hit})
	return nil
}

// writeArtifacts writes one file per format. A single format goes to output
// verbatim when it has an extension; otherwise files are named
// <base>.<format>.
func writeArtifacts(artifacts map[string][]byte, formats []string, output, input string) ([]string, error) {
	formats = slices.Compact(slices.Clone(formats))
	var paths []string
	for _, format := range formats {
		data, ok := artifacts[format]
		if !ok {
			continue
		}
		path := basePath(output, input) + "." + format
		if len(formats) == 1 && output != "" && filepath.Ext(output) != "" {
			path = output
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create output directory: %w", err)
			}
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, fmt.Errorf("write output %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
