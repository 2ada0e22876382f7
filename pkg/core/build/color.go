package build

import (
	"image/color"
	"regexp"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/colornames"
)

// DefaultColor replaces colours that cannot be parsed.
const DefaultColor = "orange"

// Transparent is the colour of invisible helper nodes.
const Transparent = "transparent"

// darkenRatio reduces HSL lightness by a quarter.
const darkenRatio = 0.25

var rgbPattern = regexp.MustCompile(`^rgba?\(\s*(\d{1,3})\s*,\s*(\d{1,3})\s*,\s*(\d{1,3})\s*(?:,\s*[\d.]+\s*)?\)$`)

// ParseColor parses "#rgb", "#rrggbb", "rgb(r,g,b)" and CSS colour names.
func ParseColor(s string) (colorful.Color, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == Transparent {
		return colorful.Color{}, false
	}
	if strings.HasPrefix(s, "#") {
		c, err := colorful.Hex(s)
		return c, err == nil
	}
	if m := rgbPattern.FindStringSubmatch(s); m != nil {
		var rgb [3]uint8
		for i := range rgb {
			v, err := strconv.Atoi(m[i+1])
			if err != nil || v > 255 {
				return colorful.Color{}, false
			}
			rgb[i] = uint8(v)
		}
		c, _ := colorful.MakeColor(color.RGBA{rgb[0], rgb[1], rgb[2], 255})
		return c, true
	}
	if named, ok := colornames.Map[s]; ok {
		c, _ := colorful.MakeColor(named)
		return c, true
	}
	return colorful.Color{}, false
}

// Darken returns c with its HSL lightness reduced by a quarter, as hex.
// Unparseable input yields DefaultColor; transparent stays transparent.
func Darken(c string) string {
	if strings.EqualFold(strings.TrimSpace(c), Transparent) {
		return Transparent
	}
	col, ok := ParseColor(c)
	if !ok {
		return DefaultColor
	}
	h, s, l := col.Hsl()
	return colorful.Hsl(h, s, l-l*darkenRatio).Clamped().Hex()
}
