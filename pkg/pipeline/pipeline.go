// Package pipeline runs the orcha build → layout → render pipeline.
//
// The CLI, the API server and the watch loop all drive the same three
// stages through a [Runner], which caches each stage by content hash:
//
//  1. Build: compile an Interval Spec into a flattened timestep graph
//  2. Layout: run the force solver over the graph
//  3. Render: produce artifacts (SVG, PNG, PDF, JSON) in the stream or
//     node-link view
//
// # Usage
//
//	runner := pipeline.NewRunner(c, nil, logger)
//	result, err := runner.Execute(ctx, pipeline.Options{
//	    SpecPath: "empires.toml",
//	    View:     graph.ViewStream,
//	    Formats:  []string{"svg", "json"},
//	})
//	svg := result.Artifacts["svg"]
//
// A previous layout can be passed in [Options.Previous] to warm start the
// build, so unchanged streams keep their positions across edits.
package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/orcha/pkg/cache"
	"github.com/matzehuels/orcha/pkg/core/build"
	"github.com/matzehuels/orcha/pkg/core/flat"
	"github.com/matzehuels/orcha/pkg/core/force"
	errs "github.com/matzehuels/orcha/pkg/errors"
	"github.com/matzehuels/orcha/pkg/graph"
	"github.com/matzehuels/orcha/pkg/spec"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and API
// =============================================================================

const (
	// DefaultWidth is the default frame width in pixels.
	DefaultWidth = 800.0

	// DefaultHeight is the default frame height in pixels.
	DefaultHeight = 600.0

	// DefaultSeed seeds both the builder and the solver.
	DefaultSeed = uint64(42)

	// DefaultPNGScale is the resolution multiplier for PNG output.
	DefaultPNGScale = 2.0
)

// DefaultView is the default visualization.
const DefaultView = graph.ViewStream

// Format constants for output formats.
const (
	FormatSVG  = "svg"
	FormatPNG  = "png"
	FormatPDF  = "pdf"
	FormatJSON = "json"
	FormatDOT  = "dot"
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatSVG:  true,
	FormatPNG:  true,
	FormatPDF:  true,
	FormatJSON: true,
	FormatDOT:  true,
}

// ValidViews is the set of supported views.
var ValidViews = map[string]bool{
	graph.ViewStream:   true,
	graph.ViewNodelink: true,
}

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for the pipeline. It supports JSON for
// API requests; the spec itself travels inline.
type Options struct {
	// Input: exactly one of Spec, SpecPath or SpecURL.
	Spec       *spec.Spec `json:"spec,omitempty"`
	SpecPath   string     `json:"-"`
	SpecURL    string     `json:"spec_url,omitempty"`
	SpecFormat string     `json:"spec_format,omitempty"` // overrides detection

	// Build options
	Seed       uint64  `json:"seed,omitempty"`
	StreamSize float64 `json:"stream_size,omitempty"`
	FontSize   float64 `json:"font_size,omitempty"`
	RootSize   float64 `json:"root_size,omitempty"`
	Width      float64 `json:"width,omitempty"`
	Height     float64 `json:"height,omitempty"`

	// Layout options. Ticks > 0 runs exactly that many steps from the
	// current alpha instead of running to rest.
	Force *force.Config `json:"force,omitempty"`
	Ticks int           `json:"ticks,omitempty"`

	// Render options
	View     string   `json:"view,omitempty"`
	Formats  []string `json:"formats,omitempty"`
	Labels   bool     `json:"labels,omitempty"` // entity names in the node-link view
	Straight bool     `json:"straight,omitempty"`

	// Refresh bypasses cached stages.
	Refresh bool `json:"refresh,omitempty"`

	// Runtime options (not serialized)
	Previous *graph.Layout `json:"-"`
	Logger   *log.Logger   `json:"-"`

	validated bool
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Spec is the decoded input.
	Spec spec.Spec

	// Graph is the flattened timestep graph.
	Graph *flat.Graph

	// GraphHash is the content hash of Graph.
	GraphHash string

	// Dropped lists the input rows the builder skipped.
	Dropped []build.Dropped

	// Warm is the number of nodes that kept a previous position.
	Warm int

	// Layout holds the solved positions.
	Layout graph.Layout

	// Artifacts contains rendered outputs keyed by format.
	Artifacts map[string][]byte

	Stats     Stats
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	NodeCount  int
	EdgeCount  int
	MergeCount int
	Steps      int
	BuildTime  time.Duration
	LayoutTime time.Duration
	RenderTime time.Duration
}

// CacheInfo tracks cache hits for each pipeline stage.
type CacheInfo struct {
	BuildHit  bool
	LayoutHit bool
	RenderHit bool // all artifacts came from cache
}

// =============================================================================
// Validation Functions
// =============================================================================

// ValidateFormat checks that a format is valid.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return errs.New(errs.ErrCodeInvalidFormat, "invalid format: %q (must be one of: svg, png, pdf, json, dot)", format)
	}
	return nil
}

// ValidateFormats checks that all formats are valid.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// ValidateView checks that a view is valid.
func ValidateView(view string) error {
	if !ValidViews[view] {
		return errs.New(errs.ErrCodeInvalidView, "invalid view: %q (must be one of: stream, nodelink)", view)
	}
	return nil
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks required fields and applies defaults for
// the full pipeline. It is idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if err := o.ValidateForBuild(); err != nil {
		return err
	}
	if err := o.ValidateForLayout(); err != nil {
		return err
	}
	if err := o.ValidateForRender(); err != nil {
		return err
	}
	o.validated = true
	return nil
}

// ValidateForBuild checks that exactly one input is given.
func (o *Options) ValidateForBuild() error {
	inputs := 0
	for _, set := range []bool{o.Spec != nil, o.SpecPath != "", o.SpecURL != ""} {
		if set {
			inputs++
		}
	}
	switch {
	case inputs == 0:
		return errs.New(errs.ErrCodeInvalidInput, "a spec, spec path or spec URL is required")
	case inputs > 1:
		return errs.New(errs.ErrCodeInvalidInput, "only one of spec, spec path and spec URL may be given")
	}
	if o.SpecFormat != "" {
		if _, err := spec.ParseFormat(o.SpecFormat); err != nil {
			return err
		}
	}
	o.SetBuildDefaults()
	return nil
}

// SetBuildDefaults sets default values for the build stage.
func (o *Options) SetBuildDefaults() {
	if o.Seed == 0 {
		o.Seed = DefaultSeed
	}
	if o.Width == 0 {
		o.Width = DefaultWidth
	}
	if o.Height == 0 {
		o.Height = DefaultHeight
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// ValidateForLayout sets layout defaults and validates the solver config.
func (o *Options) ValidateForLayout() error {
	o.SetBuildDefaults()
	if o.Force == nil {
		cfg := force.DefaultConfig()
		cfg.Seed = o.Seed
		o.Force = &cfg
	}
	if o.Ticks < 0 {
		return errs.New(errs.ErrCodeInvalidParam, "ticks must not be negative, got %d", o.Ticks)
	}
	return o.Force.Validate()
}

// SetRenderDefaults sets default values for rendering.
func (o *Options) SetRenderDefaults() {
	if o.View == "" {
		o.View = DefaultView
	}
	if len(o.Formats) == 0 {
		o.Formats = []string{FormatSVG}
	}
	o.SetBuildDefaults()
}

// ValidateForRender validates and sets defaults for rendering.
func (o *Options) ValidateForRender() error {
	o.SetRenderDefaults()
	if err := ValidateView(o.View); err != nil {
		return err
	}
	return ValidateFormats(o.Formats)
}

// IsNodelink reports whether the node-link view is requested.
func (o *Options) IsNodelink() bool {
	return o.View == graph.ViewNodelink
}

// BuildOptions returns the builder options, warm started from Previous.
func (o *Options) BuildOptions() build.Options {
	b := build.Options{
		Seed:         o.Seed,
		StreamSize:   o.StreamSize,
		FontSize:     o.FontSize,
		RootSize:     o.RootSize,
		CanvasWidth:  o.Width,
		CanvasHeight: o.Height,
		Logger:       o.Logger,
	}
	if o.Previous != nil {
		b.Previous = o.Previous.Positions()
	}
	return b
}

// GraphKeyOpts returns cache key options for the build stage.
func (o *Options) GraphKeyOpts() cache.GraphKeyOpts {
	k := cache.GraphKeyOpts{
		Seed:         o.Seed,
		StreamSize:   o.StreamSize,
		FontSize:     o.FontSize,
		RootSize:     o.RootSize,
		CanvasWidth:  o.Width,
		CanvasHeight: o.Height,
	}
	if o.Previous != nil {
		if data, err := graph.MarshalLayout(*o.Previous); err == nil {
			k.WarmHash = cache.Hash(data)
		}
	}
	return k
}

// LayoutKeyOpts returns cache key options for the layout stage.
func (o *Options) LayoutKeyOpts() cache.LayoutKeyOpts {
	return cache.LayoutKeyOpts{Params: o.Force.Values(), Ticks: o.Ticks}
}

// ArtifactKeyOpts returns cache key options for one rendered format.
func (o *Options) ArtifactKeyOpts(format string) cache.ArtifactKeyOpts {
	return cache.ArtifactKeyOpts{
		Format:   format,
		View:     o.View,
		Width:    o.Width,
		Height:   o.Height,
		Labels:   o.Labels,
		Straight: o.Straight,
	}
}

func (o *Options) String() string {
	src := o.SpecPath
	switch {
	case o.SpecURL != "":
		src = o.SpecURL
	case o.Spec != nil:
		src = "inline"
	}
	return fmt.Sprintf("%s view=%s formats=%v", src, o.View, o.Formats)
}
