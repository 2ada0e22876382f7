package graph

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/orcha/pkg/core/build"
	"github.com/matzehuels/orcha/pkg/core/flat"
	"github.com/matzehuels/orcha/pkg/core/force"
	"github.com/matzehuels/orcha/pkg/spec"
)

func sampleFlat() *flat.Graph {
	s := spec.Spec{
		Streams: []spec.Stream{
			{Name: "A", Start: spec.Num(0), End: spec.Num(4), Color: "#4682b4"},
			{Name: "B", Start: spec.Num(2), End: spec.Num(6), Color: "#b44682"},
		},
		Links: []spec.Link{{From: "A", Start: spec.Num(4), To: "B", End: spec.Num(5), Merge: true}},
	}
	return flat.Flatten(build.Build(s, build.Options{}).Graph)
}

func solved(t *testing.T) (Layout, *flat.Graph) {
	t.Helper()
	fg := sampleFlat()
	sim := force.New(force.DefaultConfig())
	sim.SetData(fg)
	sim.Run(context.Background())
	return FromSimulation(sim, fg), fg
}

func TestGraphRoundTrip(t *testing.T) {
	fg := sampleFlat()
	data, err := MarshalGraph(fg)
	if err != nil {
		t.Fatalf("MarshalGraph: %v", err)
	}
	back, err := ReadGraph(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadGraph: %v", err)
	}

	if len(back.Nodes) != len(fg.Nodes) {
		t.Errorf("nodes = %d, want %d", len(back.Nodes), len(fg.Nodes))
	}
	if len(back.StreamLinks) != len(fg.StreamLinks) || len(back.LinkLinks) != len(fg.LinkLinks) {
		t.Errorf("link classes lost: stream %d/%d link %d/%d",
			len(back.StreamLinks), len(fg.StreamLinks), len(back.LinkLinks), len(fg.LinkLinks))
	}
	if back.Bound != fg.Bound {
		t.Errorf("bound = %v, want %v", back.Bound, fg.Bound)
	}
	if len(back.Merges) != 1 || back.Merges[0].Node != "B-5" {
		t.Errorf("merges = %+v, want one into B-5", back.Merges)
	}
	for i, l := range back.Links {
		if l.ID != fg.Links[i].ID {
			t.Errorf("link %d id = %s, want %s", i, l.ID, fg.Links[i].ID)
		}
	}
}

func TestGraphFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")
	if err := WriteGraphFile(sampleFlat(), path); err != nil {
		t.Fatalf("WriteGraphFile: %v", err)
	}
	g, err := ReadGraphFile(path)
	if err != nil {
		t.Fatalf("ReadGraphFile: %v", err)
	}
	if len(g.Nodes) == 0 {
		t.Error("no nodes read back")
	}

	if _, err := ReadGraphFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestUnmarshalGraphInvalid(t *testing.T) {
	if _, err := UnmarshalGraph([]byte("{not json")); err == nil {
		t.Error("expected error")
	}
}

func TestFromSimulation(t *testing.T) {
	l, fg := solved(t)

	if len(l.Nodes) != len(fg.Nodes) {
		t.Fatalf("nodes = %d, want %d", len(l.Nodes), len(fg.Nodes))
	}
	if l.Iterations != 300 {
		t.Errorf("iterations = %d, want 300", l.Iterations)
	}
	if l.Height != l.Bound || l.Bound != fg.Bound {
		t.Errorf("height = %v bound = %v, want %v", l.Height, l.Bound, fg.Bound)
	}
	// times 0..6 at 1000 per step plus one node width
	if want := 6*1000 + NodeWidthRatio*1000; l.Width != want {
		t.Errorf("width = %v, want %v", l.Width, want)
	}
	if l.Params["stream_iterations"] != 20 {
		t.Errorf("params = %v", l.Params)
	}
	for _, n := range l.Nodes {
		if n.X != float64(n.Time)*1000 {
			t.Errorf("%s: x = %v, want %v", n.ID, n.X, n.Time*1000)
		}
		if n.Top() < 0 || n.Bottom() > l.Bound {
			t.Errorf("%s: [%v, %v] outside [0, %v]", n.ID, n.Top(), n.Bottom(), l.Bound)
		}
	}
}

func TestLayoutRoundTrip(t *testing.T) {
	l, _ := solved(t)
	var buf bytes.Buffer
	if err := WriteLayout(l, &buf); err != nil {
		t.Fatalf("WriteLayout: %v", err)
	}
	back, err := ReadLayout(&buf)
	if err != nil {
		t.Fatalf("ReadLayout: %v", err)
	}
	if len(back.Nodes) != len(l.Nodes) || len(back.Edges) != len(l.Edges) {
		t.Errorf("round trip lost data")
	}
	for i := range l.Nodes {
		if back.Nodes[i].Y != l.Nodes[i].Y {
			t.Errorf("%s: y = %v, want %v", l.Nodes[i].ID, back.Nodes[i].Y, l.Nodes[i].Y)
		}
	}

	path := filepath.Join(t.TempDir(), "layout.json")
	if err := WriteLayoutFile(l, path); err != nil {
		t.Fatalf("WriteLayoutFile: %v", err)
	}
	if _, err := ReadLayoutFile(path); err != nil {
		t.Fatalf("ReadLayoutFile: %v", err)
	}
}

func TestUnmarshalLayoutValidation(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		wantErr string
	}{
		{"BadJSON", `{`, "unmarshal layout"},
		{"MissingID", `{"nodes":[{"name":"a"}]}`, "without id"},
		{"UnknownParent", `{"nodes":[{"id":"a-1","parent":"b-1"}]}`, "unknown parent"},
		{"UnknownTarget", `{"nodes":[{"id":"a-1"}],"edges":[{"source":"a-1","target":"a-2"}]}`, "unknown target"},
		{"Valid", `{"nodes":[{"id":"a-1"},{"id":"a-2"}],"edges":[{"source":"a-1","target":"a-2"}]}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalLayout([]byte(tt.json))
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestStreamView(t *testing.T) {
	l, _ := solved(t)
	v := l.StreamView()

	if len(v.Steps) != 7 {
		t.Fatalf("steps = %d, want 7", len(v.Steps))
	}
	for i, st := range v.Steps {
		if st.Time != i {
			t.Errorf("step %d time = %d", i, st.Time)
		}
	}

	runs := v.Runs()
	got := map[string][2]int{}
	for _, r := range runs {
		got[r.Name] = [2]int{r.Start(), r.End()}
	}
	if got["A"] != [2]int{0, 4} || got["B"] != [2]int{2, 6} {
		t.Errorf("runs = %v", got)
	}
}

func TestRunsSplitOnGaps(t *testing.T) {
	l := Layout{Nodes: []Node{
		{ID: "a-1", Name: "a", Time: 1},
		{ID: "a-2", Name: "a", Time: 2},
		{ID: "a-5", Name: "a", Time: 5},
	}}
	runs := l.StreamView().Runs()
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(runs))
	}
	if runs[1].Start() != 5 {
		t.Errorf("second run starts at %d", runs[1].Start())
	}
}

func TestPositions(t *testing.T) {
	l, _ := solved(t)
	p := l.Positions()
	if len(p) != len(l.Nodes) {
		t.Errorf("positions = %d, want %d", len(p), len(l.Nodes))
	}
}
