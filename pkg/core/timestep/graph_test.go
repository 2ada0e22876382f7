package timestep

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(ns []*Node) []string {
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = n.Name
	}
	return out
}

func TestAddNode(t *testing.T) {
	g := New()
	a := g.AddNode(1, "a", Unsized, Attrs{Color: "red"})
	assert.Equal(t, DefaultSize, a.Size)
	assert.Equal(t, KindStream, a.Kind)
	assert.Equal(t, "a-1", a.ID())

	again := g.AddNode(1, "a", 3, Attrs{Kind: KindLink})
	g.AddNode(1, "a", Unsized, Attrs{})
	assert.Same(t, a, again, "same key returns the existing node")
	assert.Equal(t, 3.0, a.Size)
	assert.Equal(t, "red", a.Color, "unset attributes are kept")
	assert.Equal(t, KindLink, a.Kind)

	g.AddNode(1, "b", 1, Attrs{})
	g.AddNode(0, "c", 1, Attrs{})
	assert.Equal(t, []string{"a", "b"}, names(g.Nodes(1)), "creation order is kept")
	assert.Equal(t, []int{0, 1}, g.Times())
	assert.Equal(t, 3, g.NodeCount())
}

func TestIDsAreUnambiguous(t *testing.T) {
	assert.Equal(t, "X--4", ID("X", -4))
	assert.Equal(t, "X-.-4", ID("X-", 4))
	assert.Equal(t, "X..-4", ID("X.", 4))
	assert.Equal(t, "A1-2", ID("A1", 2))

	seen := make(map[string]Key)
	for _, name := range []string{"X", "X-", "X--", "X.", "X-.", "X.-", "X..", "-", "."} {
		for _, tm := range []int{-12, -4, -1, 0, 4, 12} {
			id := ID(name, tm)
			if prev, dup := seen[id]; dup {
				t.Fatalf("%v and %v share id %q", prev, Key{name, tm}, id)
			}
			seen[id] = Key{name, tm}
		}
	}
}

func TestAddNext(t *testing.T) {
	g := New()
	g.AddNode(1, "a", 1, Attrs{})
	g.AddNode(2, "b", 1, Attrs{})

	assert.True(t, g.AddNext(1, "a", "b"))
	assert.False(t, g.AddNext(1, "a", "b"), "duplicate edge")
	assert.False(t, g.AddNext(1, "a", "missing"))
	assert.False(t, g.AddNext(5, "a", "b"))
	assert.Equal(t, 1, g.EdgeCount())

	b := g.Node(2, "b")
	require.Len(t, b.Prev(), 1)
	assert.Equal(t, "a", b.Prev()[0].Name)
	assert.True(t, b.IsMerge())
}

func TestAddParent(t *testing.T) {
	g := New()
	g.AddNode(1, "outer", 4, Attrs{})
	g.AddNode(1, "inner", 1, Attrs{})

	assert.True(t, g.AddParent(1, "inner", "outer"))
	assert.Equal(t, "outer", g.Node(1, "inner").Parent)
	assert.Equal(t, []string{"inner"}, names(g.Node(1, "outer").Children()))

	assert.False(t, g.AddParent(1, "outer", "inner"), "cycle is rejected")
	assert.False(t, g.AddParent(1, "inner", "nope"))
	assert.False(t, g.AddParent(2, "inner", "outer"))
}

func TestConnectEqualIDs(t *testing.T) {
	g := New()
	for tm := 1; tm <= 3; tm++ {
		g.AddNode(tm, "a", 1, Attrs{})
	}
	g.AddNode(5, "a", 1, Attrs{})
	g.AddNode(2, "b", 1, Attrs{})
	require.True(t, g.AddNext(1, "a", "a"))

	added := g.ConnectEqualIDs()
	assert.Equal(t, 1, added, "only a-2 -> a-3 is missing; the gap 3..5 is not bridged")
	assert.Equal(t, 2, g.EdgeCount())
	assert.Len(t, g.Node(2, "a").Prev(), 1, "explicit edge is not duplicated")
	assert.Empty(t, g.Node(5, "a").Prev())
}

func TestFinalize(t *testing.T) {
	g := New()
	g.AddNode(1, "a", 2, Attrs{})
	g.AddNode(1, "b", 4, Attrs{})
	g.AddNode(1, "c", 1, Attrs{})
	require.True(t, g.AddParent(1, "c", "b"))
	g.AddNode(2, "a", 1, Attrs{})

	g.Finalize(2)

	assert.Equal(t, 6.0, g.Step(1).Stacked, "children do not add to the stack")
	assert.Equal(t, 1.0, g.Step(2).Stacked)
	assert.Equal(t, 6.0, g.MaxStacked())
	assert.Equal(t, 12.0, g.Bound())

	// step 1 stack [3, 9] centred on 6
	assert.Equal(t, 4.0, g.Node(1, "a").Pos)
	assert.Equal(t, 7.0, g.Node(1, "b").Pos)
	assert.Equal(t, 5.5, g.Node(1, "c").Pos, "child stacked from its parent's low edge")
	assert.Equal(t, 6.0, g.Node(2, "a").Pos)
}

func TestApplyPositions(t *testing.T) {
	g := New()
	g.AddNode(1, "a", 1, Attrs{})
	g.AddNode(1, "b", 1, Attrs{})

	n := g.ApplyPositions(Positions{{"a", 1}: 9, {"zz", 1}: 3})
	assert.Equal(t, 1, n)

	g.Finalize(2)
	assert.Equal(t, 9.0, g.Node(1, "a").Pos, "warm positions survive Finalize")
	assert.True(t, g.Node(1, "a").Warm)
	assert.False(t, g.Node(1, "b").Warm)

	pos := g.Positions()
	assert.Equal(t, 9.0, pos[Key{"a", 1}])
}

func TestAllOrder(t *testing.T) {
	g := New()
	g.AddNode(2, "x", 1, Attrs{})
	g.AddNode(1, "y", 1, Attrs{})
	g.AddNode(1, "z", 1, Attrs{})

	var ids []string
	for n := range g.All() {
		ids = append(ids, n.ID())
	}
	assert.Equal(t, []string{"y-1", "z-1", "x-2"}, ids)
}
