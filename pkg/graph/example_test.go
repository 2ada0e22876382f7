package graph_test

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/matzehuels/orcha/pkg/core/flat"
	"github.com/matzehuels/orcha/pkg/core/timestep"
	"github.com/matzehuels/orcha/pkg/graph"
)

func ExampleWriteGraph() {
	// One stream over two time steps
	g := timestep.New()
	g.AddNode(0, "a", 1, timestep.Attrs{Color: "#336699"})
	g.AddNode(1, "a", 1, timestep.Attrs{Color: "#336699"})
	g.ConnectEqualIDs()
	g.Finalize(2)

	var buf bytes.Buffer
	if err := graph.WriteGraph(flat.Flatten(g), &buf); err != nil {
		fmt.Println("Error:", err)
		return
	}
	fmt.Print(buf.String())
	// Output:
	// {
	//   "nodes": [
	//     {
	//       "id": "a-0",
	//       "name": "a",
	//       "time": 0,
	//       "y": 1,
	//       "height": 1,
	//       "color": "#336699",
	//       "kind": "stream"
	//     },
	//     {
	//       "id": "a-1",
	//       "name": "a",
	//       "time": 1,
	//       "y": 1,
	//       "height": 1,
	//       "color": "#336699",
	//       "kind": "stream"
	//     }
	//   ],
	//   "edges": [
	//     {
	//       "source": "a-0",
	//       "target": "a-1",
	//       "class": "stream"
	//     }
	//   ],
	//   "bound": 2
	// }
}

func ExampleReadLayout() {
	data := `{
		"nodes": [
			{"id": "a-0", "name": "a", "time": 0, "y": 2, "height": 1, "kind": "stream"},
			{"id": "a-1", "name": "a", "time": 1, "y": 3, "height": 1, "kind": "stream"},
			{"id": "b-1", "name": "b", "time": 1, "y": 1, "height": 1, "kind": "stream"}
		],
		"edges": [{"source": "a-0", "target": "a-1", "class": "stream"}],
		"bound": 4
	}`

	layout, err := graph.ReadLayout(strings.NewReader(data))
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	for _, st := range layout.StreamView().Steps {
		fmt.Printf("t=%d:", st.Time)
		for _, n := range st.Nodes {
			fmt.Printf(" %s[%.1f..%.1f]", n.Name, n.Top(), n.Bottom())
		}
		fmt.Println()
	}
	// Output:
	// t=0: a[1.5..2.5]
	// t=1: a[2.5..3.5] b[0.5..1.5]
}
