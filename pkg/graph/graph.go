package graph

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/orcha/pkg/core/flat"
)

// Graph files hold the solver input: a flattened timestep graph in the Graph
// wire form, indented for diffing.

// MarshalGraph encodes g as indented JSON.
func MarshalGraph(g *flat.Graph) ([]byte, error) {
	return json.MarshalIndent(FromFlat(g), "", "  ")
}

// UnmarshalGraph decodes the wire form without converting it.
func UnmarshalGraph(data []byte) (Graph, error) {
	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return Graph{}, fmt.Errorf("unmarshal graph: %w", err)
	}
	return g, nil
}

// WriteGraph encodes g to w.
func WriteGraph(g *flat.Graph, w io.Writer) error {
	return encodeJSON(w, FromFlat(g))
}

// ReadGraph decodes a graph from r into solver input.
func ReadGraph(r io.Reader) (*flat.Graph, error) {
	var g Graph
	if err := json.NewDecoder(r).Decode(&g); err != nil {
		return nil, fmt.Errorf("decode graph: %w", err)
	}
	return ToFlat(g), nil
}

// WriteGraphFile writes g to path, replacing any existing file.
func WriteGraphFile(g *flat.Graph, path string) error {
	return writeFile(path, func(w io.Writer) error { return WriteGraph(g, w) })
}

// ReadGraphFile reads solver input from path.
func ReadGraphFile(path string) (*flat.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadGraph(f)
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeFile creates path and runs write on it, keeping the first error of
// write and Close.
func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return write(f)
}
