package spec

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/orcha/pkg/cache"
	errs "github.com/matzehuels/orcha/pkg/errors"
	"github.com/matzehuels/orcha/pkg/observability"
)

// Format identifies an input encoding.
type Format string

// Supported input formats.
const (
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
)

// maxFetchSize bounds remote spec downloads.
const maxFetchSize = 8 << 20

// DetectFormat infers the format from a file name or URL path.
func DetectFormat(name string) (Format, error) {
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return FormatJSON, nil
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".csv":
		return FormatCSV, nil
	}
	return "", errs.New(errs.ErrCodeInvalidFormat, "cannot detect spec format of %q (use .json, .toml, .yaml or .csv)", name)
}

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatTOML, FormatYAML, FormatCSV:
		return f, nil
	case "yml":
		return FormatYAML, nil
	}
	return "", errs.New(errs.ErrCodeInvalidFormat, "unknown spec format %q", s)
}

// Parse decodes data in the given format. CSV data is read as a streams
// table.
func Parse(data []byte, format Format) (Spec, error) {
	var s Spec
	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &s)
	case FormatTOML:
		_, err = toml.Decode(string(data), &s)
	case FormatYAML:
		err = yaml.Unmarshal(data, &s)
	case FormatCSV:
		s.Streams, err = ReadStreamsCSV(bytes.NewReader(data))
	default:
		return Spec{}, errs.New(errs.ErrCodeInvalidFormat, "unknown spec format %q", format)
	}
	if err != nil {
		return Spec{}, errs.Wrap(errs.ErrCodeInvalidSpec, err, "decode %s spec", format)
	}
	return s, nil
}

// Read decodes a spec from r.
func Read(r io.Reader, format Format) (Spec, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Spec{}, fmt.Errorf("read spec: %w", err)
	}
	return Parse(data, format)
}

// Load reads a spec file, or a directory of CSV tables.
func Load(path string) (Spec, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Spec{}, errs.Wrap(errs.ErrCodeFileNotFound, err, "spec %s", path)
		}
		return Spec{}, err
	}
	if info.IsDir() {
		return LoadCSVDir(path)
	}
	format, err := DetectFormat(path)
	if err != nil {
		return Spec{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Spec{}, fmt.Errorf("read spec %s: %w", path, err)
	}
	return Parse(data, format)
}

// Fetcher loads remote specs over HTTP, caching raw bodies.
type Fetcher struct {
	Client *http.Client
	Cache  cache.Cache
	Keyer  cache.Keyer
	TTL    time.Duration
}

// NewFetcher returns a Fetcher with a 30s client timeout. A nil cache
// disables caching.
func NewFetcher(c cache.Cache) *Fetcher {
	if c == nil {
		c = cache.NewNullCache()
	}
	return &Fetcher{
		Client: &http.Client{Timeout: 30 * time.Second},
		Cache:  c,
		Keyer:  cache.NewDefaultKeyer(),
		TTL:    cache.TTLFetch,
	}
}

// Fetch downloads and decodes the spec at url. The format comes from the
// URL path unless given. Network failures and 5xx responses are retried.
func (f *Fetcher) Fetch(ctx context.Context, url string, format Format) (Spec, error) {
	if err := errs.ValidateURL(url); err != nil {
		return Spec{}, err
	}
	if format == "" {
		var err error
		if format, err = DetectFormat(url); err != nil {
			return Spec{}, err
		}
	}

	key := f.Keyer.HTTPKey("spec", url)
	if data, hit, err := f.Cache.Get(ctx, key); err == nil && hit {
		return Parse(data, format)
	}

	var body []byte
	err := cache.RetryWithBackoff(ctx, func() error {
		var err error
		body, err = f.get(ctx, url)
		return err
	})
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return Spec{}, errs.Wrap(errs.ErrCodeNotFound, err, "fetch %s", url)
		}
		if ctx.Err() != nil {
			return Spec{}, errs.Wrap(errs.ErrCodeTimeout, err, "fetch %s", url)
		}
		return Spec{}, errs.Wrap(errs.ErrCodeNetwork, err, "fetch %s", url)
	}

	s, err := Parse(body, format)
	if err != nil {
		return Spec{}, err
	}
	_ = f.Cache.Set(ctx, key, body, f.TTL)
	return s, nil
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	hooks := observability.HTTP()
	host, path := req.URL.Host, req.URL.Path
	hooks.OnRequest(ctx, req.Method, host, path)
	start := time.Now()
	resp, err := f.Client.Do(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, host, path, err)
		return nil, cache.Retryable(fmt.Errorf("%w: %v", cache.ErrNetwork, err))
	}
	defer resp.Body.Close()
	hooks.OnResponse(ctx, req.Method, host, path, resp.StatusCode, time.Since(start))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", cache.ErrNotFound, url)
	case resp.StatusCode >= 500:
		return nil, cache.Retryable(fmt.Errorf("%w: status %d", cache.ErrNetwork, resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxFetchSize))
}
