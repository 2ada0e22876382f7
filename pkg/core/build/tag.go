package build

import (
	"math"
	"strconv"
	"strings"

	"github.com/matzehuels/orcha/pkg/core/timestep"
	"github.com/matzehuels/orcha/pkg/spec"
)

// Tag text metrics, relative to the font size.
const (
	charWidthRatio = 0.4
	tagLengthSlack = 1.3
)

type tagRef struct {
	index int
	name  string
	color string
	side  spec.TagType
	tag   spec.Tag
}

type tagSet struct {
	inner []tagRef
	upper map[string][]tagRef
	lower map[string][]tagRef
}

// TagName is the node name of the i-th tag.
func TagName(i int) string { return "tag" + strconv.Itoa(i) }

// LabelName is the node name of the text label inside a tag.
func LabelName(tag string) string { return "label" + tag }

// prepareTags names tags by input position, picks colours and partitions
// them. Tags without an explicit side flip a seeded coin.
func (b *builder) prepareTags(tags []spec.Tag) tagSet {
	set := tagSet{
		upper: make(map[string][]tagRef),
		lower: make(map[string][]tagRef),
	}
	for i, tg := range tags {
		ref := tagRef{index: i, name: TagName(i), tag: tg, side: tg.Type}
		if tg.Type == spec.TagOn {
			ref.color = Transparent
		} else {
			ref.color = Darken(b.colors[tg.Stream])
		}

		if tg.Type.Inner() {
			set.inner = append(set.inner, ref)
			continue
		}
		if ref.side != spec.TagUpper && ref.side != spec.TagLower {
			ref.side = spec.TagUpper
			if b.rng.Float64() < 0.5 {
				ref.side = spec.TagLower
			}
		}
		if _, ok := b.colors[tg.Stream]; !ok {
			b.drop(RowTag, i, "unknown stream "+strconv.Quote(tg.Stream))
			continue
		}
		if ref.side == spec.TagUpper {
			set.upper[tg.Stream] = append(set.upper[tg.Stream], ref)
		} else {
			set.lower[tg.Stream] = append(set.lower[tg.Stream], ref)
		}
	}
	return set
}

// tagShape holds the per-time sizes of a tag.
type tagShape struct {
	length   int // number of time steps minus one, always even
	fontSize float64
	lines    []string
	rect     []float64
	outline  []float64
}

// measureTag converts text into a tag footprint. Text is upper-cased and
// split into lines at "/".
func (b *builder) measureTag(tg spec.Tag) tagShape {
	fontSize := tg.Size.Or(1) * b.opts.FontSize
	fontHeight := fontSize * b.opts.RootSize / b.opts.CanvasHeight
	perStep := b.opts.CanvasWidth / float64(b.steps)
	charWidth := fontSize * charWidthRatio / perStep

	lines := strings.Split(strings.ToUpper(tg.Text), "/")
	maxChars := 0
	for _, l := range lines {
		maxChars = max(maxChars, len([]rune(l)))
	}
	length := int(math.Ceil(float64(maxChars) * charWidth * tagLengthSlack))
	if length%2 != 0 {
		length++
	}

	height := fontHeight * float64(len(lines))
	s := tagShape{
		length:   length,
		fontSize: fontSize,
		lines:    lines,
		rect:     make([]float64, length+1),
		outline:  make([]float64, length+1),
	}
	half := float64(length) / 2
	for i := range s.rect {
		s.rect[i] = height
		s.outline[i] = height
		if half == 0 {
			continue
		}
		d := math.Abs(float64(i)-half) / half
		switch tg.Shape.Normalize() {
		case spec.ShapeDiamond:
			s.outline[i] = 2 * height * (1 - d)
		case spec.ShapeEllipse:
			s.outline[i] = height * math.Max(0.5, 1.5*math.Cos(math.Pi/2*d))
		}
	}
	return s
}

// addTag emits the tag outline nodes and the label nodes nested in them.
// Inner tags are nested in their stream.
func (b *builder) addTag(ref tagRef) {
	tg := ref.tag
	if strings.TrimSpace(tg.Text) == "" {
		b.drop(RowTag, ref.index, "empty text")
		return
	}
	if !tg.Time.Valid {
		b.drop(RowTag, ref.index, "time must be numeric")
		return
	}
	if tg.Type.Inner() {
		if _, ok := b.colors[tg.Stream]; !ok {
			b.drop(RowTag, ref.index, "unknown stream "+strconv.Quote(tg.Stream))
			return
		}
	}

	shape := b.measureTag(tg)
	label := LabelName(ref.name)
	first := tg.Time.Int() - shape.length/2
	for i := 0; i <= shape.length; i++ {
		t := first + i
		b.g.AddNode(t, ref.name, shape.outline[i], timestep.Attrs{
			Color: ref.color,
			Kind:  timestep.KindTag,
		})
		if tg.Type.Inner() {
			b.g.AddParent(t, ref.name, tg.Stream)
		}
		b.g.AddNode(t, label, shape.rect[i], timestep.Attrs{
			Color:    Transparent,
			Kind:     timestep.KindLabel,
			Labels:   shape.lines,
			FontSize: shape.fontSize,
		})
		b.g.AddParent(t, label, ref.name)
	}
}

// attachTag connects an outer tag to its stream one step before the tag's
// time.
func (b *builder) attachTag(ref tagRef) {
	t := ref.tag.Time.Int()
	if !ref.tag.Time.Valid || b.g.Node(t, ref.name) == nil {
		return
	}
	b.g.AddNext(t-1, ref.tag.Stream, ref.name)
}
