package force

import (
	"math"

	errs "github.com/matzehuels/orcha/pkg/errors"
)

// Config holds every solver parameter. Use [DefaultConfig] as a base; the
// zero value disables all forces.
type Config struct {
	AlphaDecay    float64 `json:"alpha_decay" mapstructure:"alpha_decay"`
	AlphaMin      float64 `json:"alpha_min" mapstructure:"alpha_min"`
	AlphaTarget   float64 `json:"alpha_target" mapstructure:"alpha_target"`
	VelocityDecay float64 `json:"velocity_decay" mapstructure:"velocity_decay"`
	MaxIterations int     `json:"max_iterations" mapstructure:"max_iterations"`

	// YTarget is the position the axis force pulls toward. Zero means the
	// middle of the bound.
	YStrength float64 `json:"y_strength" mapstructure:"y_strength"`
	YTarget   float64 `json:"y_target" mapstructure:"y_target"`

	// BodyStrength is multiplied by the node height. Negative repels.
	BodyStrength      float64 `json:"body_strength" mapstructure:"body_strength"`
	CollisionStrength float64 `json:"collision_strength" mapstructure:"collision_strength"`

	// Distances are in time steps and scaled by XScale.
	StreamStrength   float64 `json:"stream_strength" mapstructure:"stream_strength"`
	StreamIterations int     `json:"stream_iterations" mapstructure:"stream_iterations"`
	StreamDistance   float64 `json:"stream_distance" mapstructure:"stream_distance"`
	LinkStrength     float64 `json:"link_strength" mapstructure:"link_strength"`
	LinkIterations   int     `json:"link_iterations" mapstructure:"link_iterations"`
	LinkDistance     float64 `json:"link_distance" mapstructure:"link_distance"`
	TagStrength      float64 `json:"tag_strength" mapstructure:"tag_strength"`
	TagIterations    int     `json:"tag_iterations" mapstructure:"tag_iterations"`
	TagDistance      float64 `json:"tag_distance" mapstructure:"tag_distance"`

	// XScale is the horizontal distance between consecutive times.
	XScale float64 `json:"x_scale" mapstructure:"x_scale"`

	// Bound is the canvas height. Zero takes the bound of the graph.
	Bound   float64 `json:"bound" mapstructure:"bound"`
	Padding float64 `json:"padding" mapstructure:"padding"`

	Seed uint64 `json:"seed" mapstructure:"seed"`
}

// DefaultConfig returns the tuned defaults for stream layouts.
func DefaultConfig() Config {
	return Config{
		AlphaDecay:        0.0228,
		AlphaMin:          0.001,
		VelocityDecay:     0.4,
		MaxIterations:     300,
		YStrength:         0.001,
		BodyStrength:      -0.3,
		CollisionStrength: 0.003,
		StreamStrength:    1,
		StreamIterations:  20,
		LinkStrength:      0.5,
		LinkIterations:    1,
		TagStrength:       0.2,
		TagIterations:     1,
		XScale:            1000,
		Padding:           0.2,
		Seed:              42,
	}
}

// param binds a snake_case name to a Config field.
type param struct {
	name    string
	integer bool
	min     float64
	max     float64
	get     func(*Config) float64
	set     func(*Config, float64)
}

func floatParam(name string, lo, hi float64, f func(*Config) *float64) param {
	return param{
		name: name, min: lo, max: hi,
		get: func(c *Config) float64 { return *f(c) },
		set: func(c *Config, v float64) { *f(c) = v },
	}
}

func intParam(name string, lo float64, f func(*Config) *int) param {
	return param{
		name: name, integer: true, min: lo, max: math.Inf(1),
		get: func(c *Config) float64 { return float64(*f(c)) },
		set: func(c *Config, v float64) { *f(c) = int(v) },
	}
}

var inf = math.Inf(1)

var params = []param{
	floatParam("alpha_decay", 0, 1, func(c *Config) *float64 { return &c.AlphaDecay }),
	floatParam("alpha_min", 0, 1, func(c *Config) *float64 { return &c.AlphaMin }),
	floatParam("alpha_target", 0, 1, func(c *Config) *float64 { return &c.AlphaTarget }),
	floatParam("velocity_decay", 0, 1, func(c *Config) *float64 { return &c.VelocityDecay }),
	intParam("max_iterations", 1, func(c *Config) *int { return &c.MaxIterations }),
	floatParam("y_strength", -inf, inf, func(c *Config) *float64 { return &c.YStrength }),
	floatParam("y_target", -inf, inf, func(c *Config) *float64 { return &c.YTarget }),
	floatParam("body_strength", -inf, inf, func(c *Config) *float64 { return &c.BodyStrength }),
	floatParam("collision_strength", 0, 1, func(c *Config) *float64 { return &c.CollisionStrength }),
	floatParam("stream_strength", -inf, inf, func(c *Config) *float64 { return &c.StreamStrength }),
	intParam("stream_iterations", 1, func(c *Config) *int { return &c.StreamIterations }),
	floatParam("stream_distance", 0, inf, func(c *Config) *float64 { return &c.StreamDistance }),
	floatParam("link_strength", -inf, inf, func(c *Config) *float64 { return &c.LinkStrength }),
	intParam("link_iterations", 1, func(c *Config) *int { return &c.LinkIterations }),
	floatParam("link_distance", 0, inf, func(c *Config) *float64 { return &c.LinkDistance }),
	floatParam("tag_strength", -inf, inf, func(c *Config) *float64 { return &c.TagStrength }),
	intParam("tag_iterations", 1, func(c *Config) *int { return &c.TagIterations }),
	floatParam("tag_distance", 0, inf, func(c *Config) *float64 { return &c.TagDistance }),
	floatParam("x_scale", math.SmallestNonzeroFloat64, inf, func(c *Config) *float64 { return &c.XScale }),
	floatParam("bound", 0, inf, func(c *Config) *float64 { return &c.Bound }),
	floatParam("padding", 0, inf, func(c *Config) *float64 { return &c.Padding }),
	{
		name: "seed", integer: true, min: 0, max: math.MaxUint32,
		get: func(c *Config) float64 { return float64(c.Seed) },
		set: func(c *Config, v float64) { c.Seed = uint64(v) },
	},
}

func lookup(name string) (param, bool) {
	for _, p := range params {
		if p.name == name {
			return p, true
		}
	}
	return param{}, false
}

// Params lists every parameter name in a stable order.
func Params() []string {
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.name
	}
	return names
}

// IsInteger reports whether the named parameter only takes whole numbers.
func IsInteger(name string) bool {
	p, ok := lookup(name)
	return ok && p.integer
}

// Get returns the value of the named parameter.
func (c *Config) Get(name string) (float64, error) {
	p, ok := lookup(name)
	if !ok {
		return 0, errs.New(errs.ErrCodeInvalidParam, "unknown parameter %q", name).On(name)
	}
	return p.get(c), nil
}

// Set assigns the named parameter. Out-of-range and non-finite values are
// rejected and leave c unchanged.
func (c *Config) Set(name string, value float64) error {
	p, ok := lookup(name)
	if !ok {
		return errs.New(errs.ErrCodeInvalidParam, "unknown parameter %q", name).On(name)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return errs.New(errs.ErrCodeInvalidParam, "%s must be finite", name).On(name)
	}
	if p.integer && value != math.Trunc(value) {
		return errs.New(errs.ErrCodeInvalidParam, "%s must be a whole number", name).On(name)
	}
	if value < p.min || value > p.max {
		return errs.New(errs.ErrCodeInvalidParam, "%s must be in [%g, %g]", name, p.min, p.max).On(name)
	}
	p.set(c, value)
	return nil
}

// Values returns every parameter by name.
func (c *Config) Values() map[string]float64 {
	out := make(map[string]float64, len(params))
	for _, p := range params {
		out[p.name] = p.get(c)
	}
	return out
}

// Apply sets several parameters. It stops at the first invalid entry; the
// entries applied before it are kept.
func (c *Config) Apply(values map[string]float64) error {
	for _, name := range Params() {
		v, ok := values[name]
		if !ok {
			continue
		}
		if err := c.Set(name, v); err != nil {
			return err
		}
	}
	for name := range values {
		if _, ok := lookup(name); !ok {
			return errs.New(errs.ErrCodeInvalidParam, "unknown parameter %q", name).On(name)
		}
	}
	return nil
}

// Validate checks every parameter against its range.
func (c *Config) Validate() error {
	for _, p := range params {
		scratch := *c
		if err := scratch.Set(p.name, p.get(c)); err != nil {
			return err
		}
	}
	return nil
}
