package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	errs "github.com/matzehuels/orcha/pkg/errors"
	"github.com/matzehuels/orcha/pkg/graph"
	"github.com/matzehuels/orcha/pkg/pipeline"
)

// defaultWatchTicks is the number of solver steps run after each change.
const defaultWatchTicks = 50

// =============================================================================
// specWatcher - debounced file change notifications
// =============================================================================

// specWatcher reports writes to one file. It watches the parent directory
// so editors that replace the file on save are still seen.
type specWatcher struct {
	path     string
	debounce time.Duration
	Changes  <-chan struct{}

	changes chan struct{}
	done    chan struct{}
	fw      *fsnotify.Watcher
}

// minDebounce keeps the polling ticker in loop at a positive period.
const minDebounce = 10 * time.Millisecond

func newSpecWatcher(path string, debounce time.Duration) (*specWatcher, error) {
	debounce = max(debounce, minDebounce)
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, err
	}
	ch := make(chan struct{}, 1)
	w := &specWatcher{
		path:     abs,
		debounce: debounce,
		Changes:  ch,
		changes:  ch,
		done:     make(chan struct{}),
		fw:       fw,
	}
	go w.loop()
	return w, nil
}

// Close stops watching and closes Changes.
func (w *specWatcher) Close() error {
	err := w.fw.Close()
	<-w.done
	close(w.changes)
	return err
}

func (w *specWatcher) loop() {
	defer close(w.done)

	var pending time.Time
	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				pending = time.Now()
			}

		case <-ticker.C:
			if !pending.IsZero() && time.Since(pending) >= w.debounce {
				pending = time.Time{}
				select {
				case w.changes <- struct{}{}:
				default: // a change is already queued
				}
			}

		case _, ok := <-w.fw.Errors:
			if !ok {
				return
			}
		}
	}
}

// =============================================================================
// watch command
// =============================================================================

// watchCommand re-renders a spec on every save.
func (c *CLI) watchCommand() *cobra.Command {
	var (
		output   string
		formats  string
		debounce time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch [spec]",
		Short: "Re-render a spec whenever it changes",
		Long: `Render a spec, then watch it and render again on every save.

After the first solve, rebuilds start from the previous node positions and
run only --ticks solver steps (default 50), so the diagram moves smoothly
between edits. Stop with Ctrl-C.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if debounce < 0 {
				return errs.New(errs.ErrCodeInvalidInput, "--debounce must not be negative, got %s", debounce).On("debounce")
			}
			opts := c.pipelineOptions()
			opts.SpecPath = args[0]
			opts.Formats = parseFormats(formats)
			return c.runWatch(cmd.Context(), args[0], opts, output, debounce)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file or base path")
	cmd.Flags().StringVarP(&formats, "format", "f", "", "output format(s): svg (default), png, pdf, json, dot")
	cmd.Flags().StringP("type", "t", pipeline.DefaultView, "view: stream (default), nodelink")
	cmd.Flags().DurationVar(&debounce, "debounce", 200*time.Millisecond, "quiet period before rebuilding (min 10ms)")
	bind(cmd, "type", "layout.view")
	layoutFlags(cmd)
	return cmd
}

func (c *CLI) runWatch(ctx context.Context, input string, opts pipeline.Options, output string, debounce time.Duration) error {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return err
	}
	runner, err := c.newRunner()
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	w, err := newSpecWatcher(input, debounce)
	if err != nil {
		return fmt.Errorf("watch %s: %w", input, err)
	}
	defer w.Close()

	ticks := opts.Ticks
	if ticks == 0 {
		ticks = defaultWatchTicks
	}

	var prev *graph.Layout
	rebuild := func() {
		run := opts
		if prev != nil {
			run.Previous = prev
			run.Ticks = ticks
		}
		l, err := c.watchOnce(ctx, runner, input, run, output)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			printError("%v", err)
			return
		}
		prev = &l
	}

	rebuild()
	printInfo("Watching %s (Ctrl-C to stop)", input)
	for {
		select {
		case <-ctx.Done():
			printNewline()
			return nil
		case _, ok := <-w.Changes:
			if !ok {
				return nil
			}
			c.Logger.Debug("spec changed", "path", input)
			rebuild()
		}
	}
}

// watchOnce builds, solves and renders input once and writes the outputs.
func (c *CLI) watchOnce(ctx context.Context, runner *pipeline.Runner, input string, opts pipeline.Options, output string) (graph.Layout, error) {
	prog := newProgress(c.Logger)
	result, err := runner.Execute(ctx, opts)
	if err != nil {
		return graph.Layout{}, err
	}
	printDropped(result.Dropped)
	paths, err := writeArtifacts(result.Artifacts, opts.Formats, output, input)
	if err != nil {
		return graph.Layout{}, err
	}
	prog.done("rendered", "steps", result.Stats.Steps, "warm", result.Warm)
	for _, p := range paths {
		printFile(p)
	}
	return result.Layout, nil
}
