package spec

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/orcha/pkg/cache"
	errs "github.com/matzehuels/orcha/pkg/errors"
)

func wantEmpires() Spec {
	return Spec{
		Streams: []Stream{
			{Name: "A", Start: Num(1900), End: Num(1920), Color: "#4682b4"},
			{Name: "B", Start: Num(1910), End: Num(1930), Color: "#b44682",
				Values: Keyframes{{1910, 1}, {1930, 3}}},
			{Name: "A1", Start: Num(1905), End: Num(1912), Parent: "A"},
		},
		Tags: []Tag{
			{Stream: "A", Time: Num(1908), Text: "Founding/Of A", Type: TagUpper, Shape: ShapeDiamond},
		},
		Links: []Link{
			{From: "A", Start: Num(1915), To: "B", End: Num(1916), Merge: true},
		},
	}
}

func TestLoadFormatsAgree(t *testing.T) {
	want := wantEmpires()
	for _, path := range []string{
		"testdata/empires.toml",
		"testdata/empires.yaml",
		"testdata/empires.json",
		"testdata/csv",
	} {
		t.Run(filepath.Base(path), func(t *testing.T) {
			got, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, want, got)
			assert.Equal(t, want.Hash(), got.Hash())
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("testdata/nope.toml")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrCodeFileNotFound))
}

func TestLoadCSVDirRequiresStreams(t *testing.T) {
	_, err := LoadCSVDir(t.TempDir())
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrCodeFileNotFound))
}

func TestParseStreamsCSV(t *testing.T) {
	in := "name,start,end,values\na,1920,1980,\nb,1915,1945,1920:2/1940:3\n\n"
	s, err := Parse([]byte(in), FormatCSV)
	require.NoError(t, err)
	require.Len(t, s.Streams, 2)
	assert.Equal(t, Keyframes{{1920, 2}, {1940, 3}}, s.Streams[1].Values)
}

func TestParseCSVMissingColumn(t *testing.T) {
	_, err := Parse([]byte("name,start\na,1\n"), FormatCSV)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrCodeInvalidSpec))
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse([]byte("{not json"), FormatJSON)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrCodeInvalidSpec))

	_, err = Parse([]byte("{}"), Format("xml"))
	assert.True(t, errs.Is(err, errs.ErrCodeInvalidFormat))
}

func TestParseKeepsMalformedRows(t *testing.T) {
	// Bad values survive decoding so the builder can skip them row by row.
	in := `{"links": [{"from": "A", "start": "later", "to": "B"}]}`
	s, err := Parse([]byte(in), FormatJSON)
	require.NoError(t, err)
	require.Len(t, s.Links, 1)
	assert.False(t, s.Links[0].Start.Valid)
	assert.False(t, s.Links[0].End.Valid)
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		want Format
		err  bool
	}{
		{"a.json", FormatJSON, false},
		{"dir/a.TOML", FormatTOML, false},
		{"a.yml", FormatYAML, false},
		{"https://x.org/a.yaml?raw=1", FormatYAML, false},
		{"a.csv", FormatCSV, false},
		{"a.txt", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectFormat(tt.name)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFetch(t *testing.T) {
	body, err := os.ReadFile("testdata/empires.json")
	require.NoError(t, err)

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	c, err := cache.NewFileCache(t.TempDir())
	require.NoError(t, err)
	f := NewFetcher(c)

	ctx := context.Background()
	got, err := f.Fetch(ctx, srv.URL+"/empires.json", "")
	require.NoError(t, err)
	assert.Equal(t, wantEmpires(), got)
	assert.Equal(t, int32(2), calls.Load(), "first 502 is retried")

	// served from cache
	_, err = f.Fetch(ctx, srv.URL+"/empires.json", "")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewFetcher(nil).Fetch(context.Background(), srv.URL+"/missing.toml", "")
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))
	assert.True(t, strings.Contains(err.Error(), "missing.toml"))
}

func TestFetchRejectsScheme(t *testing.T) {
	_, err := NewFetcher(nil).Fetch(context.Background(), "file:///etc/passwd", FormatJSON)
	assert.True(t, errs.Is(err, errs.ErrCodeInvalidInput))
}
