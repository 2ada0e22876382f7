package flat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/orcha/pkg/core/build"
	"github.com/matzehuels/orcha/pkg/core/timestep"
	"github.com/matzehuels/orcha/pkg/spec"
)

func sample() *timestep.Graph {
	s := spec.Spec{
		Streams: []spec.Stream{
			{Name: "A", Start: spec.Num(0), End: spec.Num(10), Color: "#336699"},
			{Name: "B", Start: spec.Num(0), End: spec.Num(10), Color: "#993366"},
			{Name: "C", Start: spec.Num(2), End: spec.Num(4), Parent: "A"},
		},
		Tags: []spec.Tag{{Stream: "A", Time: spec.Num(5), Text: "t", Type: spec.TagUpper}},
		Links: []spec.Link{
			{From: "A", Start: spec.Num(1), To: "B", End: spec.Num(4), Merge: true},
			{From: "B", Start: spec.Num(6), To: "A", End: spec.Num(7)},
		},
	}
	return build.Build(s, build.Options{}).Graph
}

func TestFlattenCounts(t *testing.T) {
	g := sample()
	f := Flatten(g)

	assert.Len(t, f.Nodes, g.NodeCount())
	assert.Len(t, f.Links, g.EdgeCount())
	assert.Equal(t, len(f.Links), len(f.StreamLinks)+len(f.LinkLinks)+len(f.TagLinks)+len(f.LabelLinks))

	seen := map[string]bool{}
	for _, n := range f.Nodes {
		assert.False(t, seen[n.ID], "duplicate node %s", n.ID)
		seen[n.ID] = true
	}
	for _, l := range f.Links {
		assert.True(t, seen[l.Source])
		assert.True(t, seen[l.Target])
		assert.Equal(t, l.Source+l.Target, l.ID)
	}
}

func TestFlattenClasses(t *testing.T) {
	f := Flatten(sample())
	class := map[string]Class{}
	for _, l := range f.Links {
		class[l.ID] = l.Class
	}
	transit := build.LinkName("A", "B", 1)
	port := build.PortName(build.LinkName("B", "A", 6))

	tests := []struct {
		src, dst string
		want     Class
	}{
		{"A-0", "A-1", ClassStream},
		{"A-1", transit + "-2", ClassLink},
		{transit + "-2", transit + "-3", ClassLink},
		{transit + "-3", "B-4", ClassLink},
		{"B-6", port + "-7", ClassLink},
		{"A-4", "tag0-5", ClassTag},
		{"tag0-5", "tag0-6", ClassStream},
		{"labeltag0-5", "labeltag0-6", ClassLabel},
	}
	for _, tt := range tests {
		got, ok := class[tt.src+tt.dst]
		require.True(t, ok, "missing edge %s -> %s", tt.src, tt.dst)
		assert.Equal(t, tt.want, got, "%s -> %s", tt.src, tt.dst)
	}
}

func TestFlattenParents(t *testing.T) {
	f := Flatten(sample())
	idx := f.Index()

	c := f.Nodes[idx["C-3"]]
	assert.Equal(t, "A-3", c.Parent)
	assert.Equal(t, "", f.Nodes[idx["A-3"]].Parent)

	label := f.Nodes[idx["labeltag0-5"]]
	assert.Equal(t, "tag0-5", label.Parent)
	assert.Equal(t, []string{"T"}, label.Labels)
	assert.Equal(t, timestep.KindLabel, label.Kind)
}

func TestFlattenMerges(t *testing.T) {
	g := sample()
	first := Flatten(g)
	second := Flatten(g)

	transit := build.LinkName("A", "B", 1)
	port := build.PortName(build.LinkName("B", "A", 6))
	want := []MergeEvent{
		{Node: transit + "-2", From: "A-1", Time: 2},
		{Node: "B-4", From: transit + "-3", Time: 4},
		{Node: "tag0-5", From: "A-4", Time: 5},
		{Node: port + "-7", From: "B-6", Time: 7},
	}
	assert.Equal(t, want, first.Merges)
	assert.Equal(t, first.Merges, second.Merges, "merges are recomputed per call")
}

func TestClassify(t *testing.T) {
	node := func(name string, k timestep.Kind) *timestep.Node {
		return &timestep.Node{Name: name, Kind: k}
	}
	tests := []struct {
		name     string
		src, dst *timestep.Node
		want     Class
	}{
		{"into link", node("a", timestep.KindStream), node("l", timestep.KindLink), ClassLink},
		{"into label", node("tag0", timestep.KindTag), node("labeltag0", timestep.KindLabel), ClassLabel},
		{"attach tag", node("a", timestep.KindStream), node("tag0", timestep.KindTag), ClassTag},
		{"tag continues", node("tag0", timestep.KindTag), node("tag0", timestep.KindTag), ClassStream},
		{"stream continues", node("a", timestep.KindStream), node("a", timestep.KindStream), ClassStream},
		{"merge", node("a", timestep.KindStream), node("b", timestep.KindStream), ClassLink},
		{"tag into stream", node("tag0", timestep.KindTag), node("a", timestep.KindStream), ClassLink},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.src, tt.dst))
		})
	}
}

func TestFlattenEmpty(t *testing.T) {
	f := Flatten(timestep.New())
	assert.Empty(t, f.Nodes)
	assert.Empty(t, f.Links)
	assert.Empty(t, f.Merges)
}

func TestFlattenNegativeTimesKeepIDsUnique(t *testing.T) {
	s := spec.Spec{Streams: []spec.Stream{
		{Name: "X", Start: spec.Num(-6), End: spec.Num(-4)},
		{Name: "X-", Start: spec.Num(4), End: spec.Num(6)},
	}}
	fg := Flatten(build.Build(s, build.Options{}).Graph)

	require.Len(t, fg.Nodes, 6)
	ids := make(map[string]bool, len(fg.Nodes))
	for _, n := range fg.Nodes {
		assert.False(t, ids[n.ID], "duplicate node %s", n.ID)
		ids[n.ID] = true
	}
	assert.True(t, ids["X--4"])
	assert.True(t, ids["X-.-4"])
}
