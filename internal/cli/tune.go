package cli

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/orcha/pkg/core/flat"
	"github.com/matzehuels/orcha/pkg/core/force"
	"github.com/matzehuels/orcha/pkg/core/timestep"
	"github.com/matzehuels/orcha/pkg/graph"
	"github.com/matzehuels/orcha/pkg/pipeline"
)

// frameInterval is the time between solver steps in the tuner.
const frameInterval = 33 * time.Millisecond

var (
	tuneSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	tuneNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	tuneDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
	tunePlotStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorDim)
)

// =============================================================================
// tuneModel - live solver view
// =============================================================================

type frameMsg time.Time

func nextFrame() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg { return frameMsg(t) })
}

// tuneModel steps a simulation once per frame and lets the user change its
// parameters while it runs.
type tuneModel struct {
	sim    *force.Simulation
	g      *flat.Graph
	params []string
	save   func(graph.Layout) (string, error)

	cursor int
	paused bool
	width  int
	height int
	status string
	err    error
}

func newTuneModel(sim *force.Simulation, g *flat.Graph, save func(graph.Layout) (string, error)) tuneModel {
	return tuneModel{
		sim:    sim,
		g:      g,
		params: force.Params(),
		save:   save,
		width:  80,
		height: 24,
	}
}

func (m tuneModel) Init() tea.Cmd {
	return nextFrame()
}

func (m tuneModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case frameMsg:
		if m.hot() {
			m.sim.Tick(1)
		}
		return m, nextFrame()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.params)-1 {
				m.cursor++
			}
		case "right", "l", "+":
			m.adjust(1)
		case "left", "h", "-":
			m.adjust(-1)
		case " ":
			m.paused = !m.paused
		case "r":
			m.sim.SetAlpha(1)
			m.status = "reheated"
		case "s":
			m.status, m.err = m.write()
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	}
	return m, nil
}

// hot reports whether the simulation should keep stepping.
func (m tuneModel) hot() bool {
	return !m.paused && m.sim.Alpha() >= m.sim.Config().AlphaMin
}

// adjust nudges the selected parameter: integers by one, others by a tenth
// of their magnitude. The simulation is reheated so the change shows.
func (m *tuneModel) adjust(dir float64) {
	name := m.params[m.cursor]
	cfg := m.sim.Config()
	v, err := cfg.Get(name)
	if err != nil {
		m.err = err
		return
	}
	v += dir * stepFor(name, v)
	if err := m.sim.Update(name, v); err != nil {
		m.err = err
		return
	}
	m.err = nil
	m.status = fmt.Sprintf("%s = %s", name, formatParam(name, v))
	m.sim.SetAlpha(math.Max(m.sim.Alpha(), 0.3))
}

func stepFor(name string, v float64) float64 {
	if force.IsInteger(name) {
		return 1
	}
	if step := math.Abs(v) / 10; step > 1e-6 {
		return step
	}
	return 0.01
}

func formatParam(name string, v float64) string {
	if force.IsInteger(name) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.4g", v)
}

func (m tuneModel) layout() graph.Layout {
	return graph.FromSimulation(m.sim, m.g)
}

func (m tuneModel) write() (string, error) {
	if m.save == nil {
		return "", nil
	}
	path, err := m.save(m.layout())
	if err != nil {
		return "", err
	}
	return "saved " + path, nil
}

func (m tuneModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("orcha tune"))
	state := m.sim.State().String()
	if m.paused {
		state = "paused"
	}
	b.WriteString(tuneDimStyle.Render(fmt.Sprintf("  %s · alpha %.3f · %d steps", state, m.sim.Alpha(), m.sim.Steps())))
	b.WriteString("\n")

	plotW := max(m.width-4, 20)
	plotH := max(m.height-len(m.params)-8, 6)
	b.WriteString(tunePlotStyle.Render(m.plot(plotW, plotH)))
	b.WriteString("\n")

	cfg := m.sim.Config()
	for i, name := range m.params {
		v, _ := cfg.Get(name)
		line := fmt.Sprintf("%-20s %s", name, formatParam(name, v))
		if i == m.cursor {
			b.WriteString(tuneSelectedStyle.Render("▸ " + line))
		} else {
			b.WriteString(tuneNormalStyle.Render("  " + line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	switch {
	case m.err != nil:
		b.WriteString(StyleError.Render(m.err.Error()))
	case m.status != "":
		b.WriteString(tuneDimStyle.Render(m.status))
	}
	b.WriteString("\n")
	b.WriteString(tuneDimStyle.Render("↑/↓ select  ←/→ adjust  space pause  r reheat  s save  q quit"))
	return b.String()
}

// plot draws stream nodes as characters on a w×h grid: time runs along x
// and the solved centre along y.
func (m tuneModel) plot(w, h int) string {
	nodes := m.sim.Nodes()
	grid := make([][]string, h)
	for i := range grid {
		grid[i] = make([]string, w)
		for j := range grid[i] {
			grid[i][j] = " "
		}
	}
	if len(nodes) == 0 {
		return joinGrid(grid)
	}

	minX, maxX := nodes[0].X, nodes[0].X
	for _, n := range nodes {
		minX = math.Min(minX, n.X)
		maxX = math.Max(maxX, n.X)
	}
	spanX := math.Max(maxX-minX, 1)
	bound := math.Max(m.sim.Bound(), 1)

	for _, n := range nodes {
		if n.Kind != timestep.KindStream || n.Name == "" || n.Color == "" || n.Color == "transparent" {
			continue
		}
		col := int((n.X - minX) / spanX * float64(w-1))
		row := int(n.Y / bound * float64(h-1))
		if col < 0 || col >= w || row < 0 || row >= h {
			continue
		}
		grid[row][col] = lipgloss.NewStyle().Foreground(lipgloss.Color(n.Color)).Render(string([]rune(n.Name)[0]))
	}
	return joinGrid(grid)
}

func joinGrid(grid [][]string) string {
	rows := make([]string, len(grid))
	for i, r := range grid {
		rows[i] = strings.Join(r, "")
	}
	return strings.Join(rows, "\n")
}

// =============================================================================
// tune command
// =============================================================================

// tuneCommand opens the live solver view.
func (c *CLI) tuneCommand() *cobra.Command {
	var (
		output string
		sets   []string
	)

	cmd := &cobra.Command{
		Use:   "tune [spec]",
		Short: "Adjust solver parameters live",
		Long: `Build a spec and run the solver one step per frame in the terminal.
Pick a parameter with the arrow keys and change it while the layout moves.

Press s to write the current layout, q to quit. On exit the final
parameters are printed as --set flags for 'layout' and 'render'.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := c.pipelineOptions()
			setInput(&opts, args[0])
			if err := applySets(&opts, sets); err != nil {
				return err
			}
			if output == "" {
				output = basePath("", args[0]) + ".layout.json"
			}
			return c.runTune(cmd.Context(), args[0], opts, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "layout file written by s (default: <spec>.layout.json)")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "initial solver parameter as name=value (repeatable)")
	layoutFlags(cmd)
	return cmd
}

func (c *CLI) runTune(ctx context.Context, input string, opts pipeline.Options, output string) error {
	if err := opts.ValidateForBuild(); err != nil {
		return err
	}
	if err := opts.ValidateForLayout(); err != nil {
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
	built, err := runner.Build(ctx, s, opts)
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}
	printDropped(built.Dropped)

	// The terminal belongs to the view while it runs.
	sim := force.New(*opts.Force, force.WithLogger(log.NewWithOptions(io.Discard, log.Options{})))
	sim.SetData(built.Graph)

	save := func(l graph.Layout) (string, error) {
		return output, graph.WriteLayoutFile(l, output)
	}
	final, err := tea.NewProgram(newTuneModel(sim, built.Graph, save), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("run tuner: %w", err)
	}
	if m, ok := final.(tuneModel); ok && m.err != nil {
		printWarning("%v", m.err)
	}

	printSuccess("Tuned %d nodes over %d steps", len(built.Graph.Nodes), sim.Steps())
	printDetail("%s", setFlags(sim.Config(), *opts.Force))
	return nil
}

// setFlags renders the parameters that differ from base as --set flags.
func setFlags(cfg, base force.Config) string {
	before := base.Values()
	var parts []string
	for _, name := range force.Params() {
		v, _ := cfg.Get(name)
		if v != before[name] {
			parts = append(parts, fmt.Sprintf("--set %s=%s", name, formatParam(name, v)))
		}
	}
	if len(parts) == 0 {
		return "parameters unchanged"
	}
	return strings.Join(parts, " ")
}
