package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/orcha/pkg/graph"
	"github.com/matzehuels/orcha/pkg/pipeline"
)

// buildCommand compiles a spec into a timestep graph.
func (c *CLI) buildCommand() *cobra.Command {
	var output, format string

	cmd := &cobra.Command{
		Use:   "build [spec]",
		Short: "Compile a spec into a timestep graph",
		Long: `Compile a spec into a timestep graph and write it as JSON.

The spec may be a local TOML, YAML, JSON or CSV file or an http(s) URL.
Rows that cannot be placed are skipped and reported.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := c.pipelineOptions()
			setInput(&opts, args[0])
			opts.SpecFormat = format
			return c.runBuild(cmd.Context(), args[0], opts, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <spec>.graph.json)")
	cmd.Flags().StringVar(&format, "spec-format", "", "spec format: toml, yaml, json, csv (default: from extension)")
	layoutFlags(cmd)
	return cmd
}

func (c *CLI) runBuild(ctx context.Context, input string, opts pipeline.Options, output string) error {
	if err := opts.ValidateForBuild(); err != nil {
		return err
	}
	runner, err := c.newRunner()
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	s, err := pipeline.LoadSpec(ctx, runner.Cache, opts)
	if err != nil {
		return fmt.Errorf("load spec %s: %w", input, err)
	}
	built, _, hit, err := runner.BuildWithCacheInfo(ctx, s, opts)
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}

	if output == "" {
		output = basePath("", input) + ".graph.json"
	}
	if err := graph.WriteGraphFile(built.Graph, output); err != nil {
		return fmt.Errorf("write output %s: %w", output, err)
	}

	printDropped(built.Dropped)
	printSuccess("Graph built")
	printFile(output)
	printStats(graphStats{
		Nodes:  len(built.Graph.Nodes),
		Edges:  len(built.Graph.Links),
		Merges: len(built.Graph.Merges),
		Cached: hit,
	})
	printNewline()
	printNextStep("Lay out", appName+" layout "+input)
	return nil
}
