package spec

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in    string
		want  float64
		valid bool
	}{
		{"1900", 1900, true},
		{" 12.5 ", 12.5, true},
		{"-3", -3, true},
		{"", 0, false},
		{"abc", 0, false},
		{"12abc", 0, false},
		{"Inf", 0, false},
		{"NaN", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			n := ParseNumber(tt.in)
			assert.Equal(t, tt.valid, n.Valid)
			if tt.valid {
				assert.Equal(t, tt.want, n.Value)
			}
		})
	}
}

func TestNumberJSON(t *testing.T) {
	var v struct {
		A, B, C, D Number
	}
	require.NoError(t, json.Unmarshal([]byte(`{"A": 1915, "B": "1916", "C": null, "D": "soon"}`), &v))

	assert.Equal(t, Num(1915), v.A)
	assert.Equal(t, Num(1916), v.B)
	assert.False(t, v.C.Valid)
	assert.False(t, v.D.Valid)

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"A":1915,"B":1916,"C":null,"D":null}`, string(out))
}

func TestNumberYAML(t *testing.T) {
	var v struct {
		A Number `yaml:"a"`
		B Number `yaml:"b"`
		C Number `yaml:"c"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("a: 3\nb: '4.5'\nc: ~\n"), &v))
	assert.Equal(t, Num(3), v.A)
	assert.Equal(t, Num(4.5), v.B)
	assert.False(t, v.C.Valid)

	err := yaml.Unmarshal([]byte("a: [1, 2]\n"), &v)
	assert.Error(t, err)
}

func TestNumberHelpers(t *testing.T) {
	assert.Equal(t, 1916, Num(1915.6).Int())
	assert.Equal(t, 7.0, Number{}.Or(7))
	assert.Equal(t, 2.0, Num(2).Or(7))
	assert.Equal(t, "", Number{}.String())
	assert.Equal(t, "1915", Num(1915).String())
}

func TestBool(t *testing.T) {
	var v struct {
		A, B, C, D Bool
	}
	require.NoError(t, json.Unmarshal([]byte(`{"A": true, "B": "true", "C": "no", "D": 1}`), &v))
	assert.True(t, bool(v.A))
	assert.True(t, bool(v.B))
	assert.False(t, bool(v.C))
	assert.True(t, bool(v.D))
}
