package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/orcha/pkg/graph"
	"github.com/matzehuels/orcha/pkg/pipeline"
)

// layoutCommand builds a spec and solves its layout.
func (c *CLI) layoutCommand() *cobra.Command {
	var (
		output string
		warm   string
		sets   []string
	)

	cmd := &cobra.Command{
		Use:   "layout [spec]",
		Short: "Solve the layout of a spec",
		Long: `Build a spec and position its nodes with the force solver. The result is
a layout JSON file that 'render' turns into SVG, PNG, PDF or DOT.

--warm starts from the node positions of an earlier layout; combine it with
--ticks to refine instead of solving from scratch.

Results are cached locally for faster subsequent runs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := c.pipelineOptions()
			setInput(&opts, args[0])
			if err := applySets(&opts, sets); err != nil {
				return err
			}
			if warm != "" {
				prev, err := graph.ReadLayoutFile(warm)
				if err != nil {
					return fmt.Errorf("load warm layout %s: %w", warm, err)
				}
				opts.Previous = &prev
			}
			return c.runLayout(cmd.Context(), args[0], opts, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <spec>.layout.json)")
	cmd.Flags().StringVar(&warm, "warm", "", "layout JSON to warm start from")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "solver parameter as name=value (repeatable)")
	layoutFlags(cmd)
	return cmd
}

func (c *CLI) runLayout(ctx context.Context, input string, opts pipeline.Options, output string) error {
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
	built, _, _, err := runner.BuildWithCacheInfo(ctx, s, opts)
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}
	printDropped(built.Dropped)

	spinner := newSpinner(ctx, fmt.Sprintf("Solving %d nodes...", len(built.Graph.Nodes)))
	spinner.Start()
	prog := newProgress(c.Logger)
	l, hit, err := runner.LayoutWithCacheInfo(ctx, built.Graph, opts)
	if err != nil {
		spinner.StopWithError("Layout failed")
		return fmt.Errorf("compute layout: %w", err)
	}
	spinner.Stop()
	prog.done("solved layout", "steps", l.Iterations, "cached", hit)

	if output == "" {
		output = basePath("", input) + ".layout.json"
	}
	if err := graph.WriteLayoutFile(l, output); err != nil {
		return fmt.Errorf("write output %s: %w", output, err)
	}

	printSuccess("Layout complete")
	printFile(output)
	printStats(graphStats{
		Nodes:  len(l.Nodes),
		Edges:  len(l.Edges),
		Merges: len(l.Merges),
		Steps:  l.Iterations,
		Warm:   built.Warm,
		Cached: hit,
	})
	printNewline()
	printNextStep("Render", appName+" render "+output)
	return nil
}
