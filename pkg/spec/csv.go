package spec

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	errs "github.com/matzehuels/orcha/pkg/errors"
)

// File names of the tables in a CSV spec directory.
const (
	StreamsFile = "streams.csv"
	TagsFile    = "tags.csv"
	LinksFile   = "links.csv"
)

// table is a CSV file with a header row. Column lookup is case-insensitive.
type table struct {
	cols map[string]int
	rows [][]string
}

func readTable(r io.Reader) (*table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	t := &table{cols: make(map[string]int)}
	if len(records) == 0 {
		return t, nil
	}
	for i, h := range records[0] {
		t.cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, rec := range records[1:] {
		if blank(rec) {
			continue
		}
		t.rows = append(t.rows, rec)
	}
	return t, nil
}

func (t *table) get(row []string, col string) string {
	i, ok := t.cols[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (t *table) require(cols ...string) error {
	for _, c := range cols {
		if _, ok := t.cols[c]; !ok {
			return fmt.Errorf("missing column %q", c)
		}
	}
	return nil
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// ReadStreamsCSV reads a name,start,end[,color,parent,values] table.
func ReadStreamsCSV(r io.Reader) ([]Stream, error) {
	t, err := readTable(r)
	if err != nil {
		return nil, err
	}
	if len(t.rows) == 0 {
		return nil, nil
	}
	if err := t.require("name", "start", "end"); err != nil {
		return nil, err
	}
	out := make([]Stream, 0, len(t.rows))
	for _, row := range t.rows {
		out = append(out, Stream{
			Name:   t.get(row, "name"),
			Start:  ParseNumber(t.get(row, "start")),
			End:    ParseNumber(t.get(row, "end")),
			Color:  t.get(row, "color"),
			Parent: t.get(row, "parent"),
			Values: ParseKeyframes(t.get(row, "values")),
		})
	}
	return out, nil
}

// ReadTagsCSV reads a stream,time,text[,type,shape,size] table.
func ReadTagsCSV(r io.Reader) ([]Tag, error) {
	t, err := readTable(r)
	if err != nil {
		return nil, err
	}
	if len(t.rows) == 0 {
		return nil, nil
	}
	if err := t.require("stream", "time", "text"); err != nil {
		return nil, err
	}
	out := make([]Tag, 0, len(t.rows))
	for _, row := range t.rows {
		out = append(out, Tag{
			Stream: t.get(row, "stream"),
			Time:   ParseNumber(t.get(row, "time")),
			Text:   t.get(row, "text"),
			Type:   TagType(strings.ToLower(t.get(row, "type"))),
			Shape:  Shape(strings.ToLower(t.get(row, "shape"))),
			Size:   ParseNumber(t.get(row, "size")),
		})
	}
	return out, nil
}

// ReadLinksCSV reads a from,start,to[,end,merge] table.
func ReadLinksCSV(r io.Reader) ([]Link, error) {
	t, err := readTable(r)
	if err != nil {
		return nil, err
	}
	if len(t.rows) == 0 {
		return nil, nil
	}
	if err := t.require("from", "start", "to"); err != nil {
		return nil, err
	}
	out := make([]Link, 0, len(t.rows))
	for _, row := range t.rows {
		out = append(out, Link{
			From:  t.get(row, "from"),
			Start: ParseNumber(t.get(row, "start")),
			To:    t.get(row, "to"),
			End:   ParseNumber(t.get(row, "end")),
			Merge: parseBool(t.get(row, "merge")),
		})
	}
	return out, nil
}

// LoadCSVDir reads streams.csv and the optional tags.csv and links.csv from
// dir.
func LoadCSVDir(dir string) (Spec, error) {
	var s Spec
	var err error

	if s.Streams, err = readCSVFile(dir, StreamsFile, true, ReadStreamsCSV); err != nil {
		return Spec{}, err
	}
	if s.Tags, err = readCSVFile(dir, TagsFile, false, ReadTagsCSV); err != nil {
		return Spec{}, err
	}
	if s.Links, err = readCSVFile(dir, LinksFile, false, ReadLinksCSV); err != nil {
		return Spec{}, err
	}
	return s, nil
}

func readCSVFile[T any](dir, name string, required bool, read func(io.Reader) ([]T, error)) ([]T, error) {
	if err := errs.ValidatePath(name); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		if os.IsNotExist(err) && !required {
			return nil, nil
		}
		if os.IsNotExist(err) {
			return nil, errs.Wrap(errs.ErrCodeFileNotFound, err, "%s in %s", name, dir)
		}
		return nil, err
	}
	defer f.Close()

	rows, err := read(f)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidSpec, err, "decode %s", name)
	}
	return rows, nil
}
