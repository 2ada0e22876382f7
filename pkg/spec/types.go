package spec

import (
	"encoding/json"
	"strings"

	"github.com/matzehuels/orcha/pkg/cache"
)

// TagType places a tag relative to its stream.
type TagType string

// Tag types. In and On nest the tag inside the stream; Upper and Lower float
// it beside the stream. Any other value lets the builder pick a side.
const (
	TagIn    TagType = "in"
	TagOn    TagType = "on"
	TagUpper TagType = "upper"
	TagLower TagType = "lower"
)

// Inner reports whether the tag is drawn inside its stream.
func (t TagType) Inner() bool { return t == TagIn || t == TagOn }

// Shape is the outline of a tag.
type Shape string

// Tag shapes.
const (
	ShapeRect    Shape = "rect"
	ShapeDiamond Shape = "diamond"
	ShapeEllipse Shape = "ellipse"
)

// Normalize maps unknown or empty shapes to ShapeRect.
func (s Shape) Normalize() Shape {
	switch Shape(strings.ToLower(string(s))) {
	case ShapeDiamond:
		return ShapeDiamond
	case ShapeEllipse:
		return ShapeEllipse
	}
	return ShapeRect
}

// Stream is a named entity existing at every integer time in [Start, End].
type Stream struct {
	Name   string    `json:"name" toml:"name" yaml:"name"`
	Start  Number    `json:"start" toml:"start" yaml:"start"`
	End    Number    `json:"end" toml:"end" yaml:"end"`
	Color  string    `json:"color,omitempty" toml:"color" yaml:"color,omitempty"`
	Parent string    `json:"parent,omitempty" toml:"parent" yaml:"parent,omitempty"`
	Values Keyframes `json:"values,omitempty" toml:"values" yaml:"values,omitempty"`
}

// Tag is a text label attached to a stream at one time.
type Tag struct {
	Stream string  `json:"stream" toml:"stream" yaml:"stream"`
	Time   Number  `json:"time" toml:"time" yaml:"time"`
	Text   string  `json:"text" toml:"text" yaml:"text"`
	Type   TagType `json:"type,omitempty" toml:"type" yaml:"type,omitempty"`
	Shape  Shape   `json:"shape,omitempty" toml:"shape" yaml:"shape,omitempty"`
	Size   Number  `json:"size,omitempty" toml:"size" yaml:"size,omitempty"`
}

// Link connects stream From at Start with stream To at End. A merging link
// fuses From into To; otherwise it ends on a port inside To.
type Link struct {
	From  string `json:"from" toml:"from" yaml:"from"`
	Start Number `json:"start" toml:"start" yaml:"start"`
	To    string `json:"to" toml:"to" yaml:"to"`
	End   Number `json:"end,omitempty" toml:"end" yaml:"end,omitempty"`
	Merge Bool   `json:"merge,omitempty" toml:"merge" yaml:"merge,omitempty"`
}

// Spec is the complete input of one build.
type Spec struct {
	Streams []Stream `json:"streams" toml:"streams" yaml:"streams"`
	Tags    []Tag    `json:"tags,omitempty" toml:"tags" yaml:"tags,omitempty"`
	Links   []Link   `json:"links,omitempty" toml:"links" yaml:"links,omitempty"`
}

// Empty reports whether the spec holds no rows at all.
func (s Spec) Empty() bool {
	return len(s.Streams) == 0 && len(s.Tags) == 0 && len(s.Links) == 0
}

// Hash returns a content hash of the spec, stable across input formats.
func (s Spec) Hash() string {
	data, _ := json.Marshal(s)
	return cache.Hash(data)
}

// Stream returns the first stream called name.
func (s Spec) Stream(name string) (Stream, bool) {
	for _, st := range s.Streams {
		if st.Name == name {
			return st, true
		}
	}
	return Stream{}, false
}
