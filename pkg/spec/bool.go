package spec

import (
	"encoding/json"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Bool accepts booleans and the strings "true"/"false"/"1"/"0"/"yes"/"no".
// Anything else decodes as false.
type Bool bool

func parseBool(s string) Bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "on":
		return true
	}
	b, _ := strconv.ParseBool(strings.TrimSpace(s))
	return Bool(b)
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *Bool) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	return b.UnmarshalTOML(v)
}

// UnmarshalTOML implements toml.Unmarshaler.
func (b *Bool) UnmarshalTOML(v any) error {
	switch x := v.(type) {
	case bool:
		*b = Bool(x)
	case string:
		*b = parseBool(x)
	case float64:
		*b = x != 0
	case int64:
		*b = x != 0
	default:
		*b = false
	}
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *Bool) UnmarshalYAML(node *yaml.Node) error {
	*b = parseBool(node.Value)
	return nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *Bool) UnmarshalText(text []byte) error {
	*b = parseBool(string(text))
	return nil
}
