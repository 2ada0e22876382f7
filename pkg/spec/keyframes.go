package spec

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Keyframe is a stream size at one point in time.
type Keyframe struct {
	Time  float64 `json:"time"`
	Value float64 `json:"value"`
}

// Keyframes is a size curve, sorted by time with unique times.
type Keyframes []Keyframe

// NewKeyframes sorts kfs by time. When a time repeats the later entry wins.
func NewKeyframes(kfs ...Keyframe) Keyframes {
	out := make(Keyframes, 0, len(kfs))
	for _, kf := range kfs {
		i, found := slices.BinarySearchFunc(out, kf.Time, func(k Keyframe, t float64) int {
			switch {
			case k.Time < t:
				return -1
			case k.Time > t:
				return 1
			}
			return 0
		})
		if found {
			out[i] = kf
			continue
		}
		out = slices.Insert(out, i, kf)
	}
	return out
}

// At returns the size at time t: def without keyframes, the first value
// before the first keyframe, the last value after the last keyframe, and a
// linear interpolation in between.
func (k Keyframes) At(t, def float64) float64 {
	if len(k) == 0 {
		return def
	}
	if t <= k[0].Time {
		return k[0].Value
	}
	last := k[len(k)-1]
	if t >= last.Time {
		return last.Value
	}
	for i := 1; i < len(k); i++ {
		hi := k[i]
		if t > hi.Time {
			continue
		}
		lo := k[i-1]
		p := (t - lo.Time) / (hi.Time - lo.Time)
		return lo.Value + p*(hi.Value-lo.Value)
	}
	return last.Value
}

// ParseKeyframes parses the compact textual form. Two dialects exist:
//
//	1900/10-1950/20    pairs separated by "-", time and value by "/"
//	1900:10/1950:20    pairs separated by "/", time and value by ":"
//
// Commas, semicolons and spaces also separate pairs. Malformed pairs are
// skipped.
func ParseKeyframes(s string) Keyframes {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	kvSep, pairs := "/", splitDashPairs(s)
	if strings.Contains(s, ":") {
		kvSep = ":"
		pairs = strings.FieldsFunc(s, func(r rune) bool {
			return strings.ContainsRune("/,; ", r)
		})
	}
	var kfs []Keyframe
	for _, p := range pairs {
		ts, vs, ok := strings.Cut(p, kvSep)
		if !ok {
			continue
		}
		t, v := ParseNumber(ts), ParseNumber(vs)
		if !t.Valid || !v.Valid {
			continue
		}
		kfs = append(kfs, Keyframe{Time: t.Value, Value: v.Value})
	}
	return NewKeyframes(kfs...)
}

// splitDashPairs splits the "-" dialect. A "-" right after a digit or "."
// ends a pair; anywhere else it is the sign of the following number, so
// "-50/10-0/20" holds the pairs "-50/10" and "0/20".
func splitDashPairs(s string) []string {
	var pairs []string
	start, prev := 0, rune(0)
	for i, r := range s {
		sep := strings.ContainsRune(",; ", r) ||
			r == '-' && (prev >= '0' && prev <= '9' || prev == '.')
		if sep {
			if i > start {
				pairs = append(pairs, s[start:i])
			}
			start = i + 1
		}
		prev = r
	}
	if start < len(s) {
		pairs = append(pairs, s[start:])
	}
	return pairs
}

// String renders the "-" and "/" dialect.
func (k Keyframes) String() string {
	parts := make([]string, len(k))
	for i, kf := range k {
		parts[i] = strconv.FormatFloat(kf.Time, 'f', -1, 64) + "/" + strconv.FormatFloat(kf.Value, 'f', -1, 64)
	}
	return strings.Join(parts, "-")
}

// MarshalJSON encodes keyframes as a {"time": value} object.
func (k Keyframes) MarshalJSON() ([]byte, error) {
	if len(k) == 0 {
		return []byte("null"), nil
	}
	var b strings.Builder
	b.WriteByte('{')
	for i, kf := range k {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%q:%s", strconv.FormatFloat(kf.Time, 'f', -1, 64), strconv.FormatFloat(kf.Value, 'f', -1, 64))
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

// UnmarshalJSON accepts the textual form, a {"time": value} object or an
// array of {"time", "value"} objects.
func (k *Keyframes) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	return k.set(v)
}

// UnmarshalTOML implements toml.Unmarshaler.
func (k *Keyframes) UnmarshalTOML(v any) error {
	return k.set(v)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (k *Keyframes) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*k = ParseKeyframes(node.Value)
	case yaml.MappingNode:
		var kfs []Keyframe
		for i := 0; i+1 < len(node.Content); i += 2 {
			t, v := ParseNumber(node.Content[i].Value), ParseNumber(node.Content[i+1].Value)
			if t.Valid && v.Valid {
				kfs = append(kfs, Keyframe{Time: t.Value, Value: v.Value})
			}
		}
		*k = NewKeyframes(kfs...)
	case yaml.SequenceNode:
		var kfs []Keyframe
		if err := node.Decode(&kfs); err != nil {
			return err
		}
		*k = NewKeyframes(kfs...)
	default:
		return fmt.Errorf("line %d: keyframes must be a string, mapping or sequence", node.Line)
	}
	return nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Keyframes) UnmarshalText(text []byte) error {
	*k = ParseKeyframes(string(text))
	return nil
}

func (k *Keyframes) set(v any) error {
	switch x := v.(type) {
	case nil:
		*k = nil
	case string:
		*k = ParseKeyframes(x)
	case map[string]any:
		kfs := make([]Keyframe, 0, len(x))
		for ts, vv := range x {
			var val Number
			if err := val.set(vv); err != nil {
				return err
			}
			t := ParseNumber(ts)
			if t.Valid && val.Valid {
				kfs = append(kfs, Keyframe{Time: t.Value, Value: val.Value})
			}
		}
		*k = NewKeyframes(kfs...)
	case []any:
		kfs := make([]Keyframe, 0, len(x))
		for _, item := range x {
			m, ok := item.(map[string]any)
			if !ok {
				return fmt.Errorf("keyframe must be an object, got %T", item)
			}
			var t, val Number
			if err := t.set(m["time"]); err != nil {
				return err
			}
			if err := val.set(m["value"]); err != nil {
				return err
			}
			if t.Valid && val.Valid {
				kfs = append(kfs, Keyframe{Time: t.Value, Value: val.Value})
			}
		}
		*k = NewKeyframes(kfs...)
	default:
		return fmt.Errorf("cannot use %T as keyframes", v)
	}
	return nil
}
