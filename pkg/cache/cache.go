// Package cache provides the byte cache used by the orcha pipeline.
//
// Three stages are cached, each keyed by a content hash of its input plus the
// options that affect its output:
//
//   - graph: Interval Spec -> built timestep graph (flattened)
//   - layout: flattened graph + solver parameters -> positioned layout
//   - artifact: layout + view/format -> rendered bytes
//
// Remote spec fetches are cached under HTTP keys.
//
// Implementations:
//   - FileCache: one file per entry below a directory (CLI default)
//   - RedisCache: shared cache for the API server
//   - NewNullCache: caching disabled
package cache

import (
	"context"
	"time"
)

// Cache is a byte store with per-entry expiration.
type Cache interface {
	// Get returns the cached data and whether it was found.
	// A miss is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A zero ttl means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the cache.
	Close() error
}

// Default TTLs per cached stage.
const (
	TTLFetch    = time.Hour
	TTLGraph    = 24 * time.Hour
	TTLLayout   = 7 * 24 * time.Hour
	TTLArtifact = 7 * 24 * time.Hour
)

// =============================================================================
// Keys
// =============================================================================

// GraphKeyOpts holds the build options that change the timestep graph.
type GraphKeyOpts struct {
	Seed         uint64  `json:"seed"`
	StreamSize   float64 `json:"stream_size"`
	FontSize     float64 `json:"font_size"`
	RootSize     float64 `json:"root_size"`
	CanvasWidth  float64 `json:"canvas_width"`
	CanvasHeight float64 `json:"canvas_height"`
	WarmHash     string  `json:"warm_hash,omitempty"` // hash of warm-start positions
}

// LayoutKeyOpts holds the solver options that change the layout.
type LayoutKeyOpts struct {
	Params map[string]float64 `json:"params"`
	Ticks  int                `json:"ticks"`
}

// ArtifactKeyOpts holds the render options that change an artifact.
type ArtifactKeyOpts struct {
	Format string  `json:"format"`
	View   string  `json:"view"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Labels   bool    `json:"labels,omitempty"`
	Straight bool    `json:"straight,omitempty"`
}

// Keyer builds cache keys. Implementations must be deterministic.
type Keyer interface {
	HTTPKey(namespace, key string) string
	GraphKey(specHash string, opts GraphKeyOpts) string
	LayoutKey(graphHash string, opts LayoutKeyOpts) string
	ArtifactKey(layoutHash string, opts ArtifactKeyOpts) string
}

// DefaultKeyer is the standard Keyer.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the standard Keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// HTTPKey generates a key for a fetched remote resource.
func (DefaultKeyer) HTTPKey(namespace, key string) string {
	return "http:" + namespace + ":" + key
}

// GraphKey generates a key for a built graph.
func (DefaultKeyer) GraphKey(specHash string, opts GraphKeyOpts) string {
	return hashKey("graph", specHash, opts)
}

// LayoutKey generates a key for a solved layout.
func (DefaultKeyer) LayoutKey(graphHash string, opts LayoutKeyOpts) string {
	return hashKey("layout", graphHash, opts)
}

// ArtifactKey generates a key for a rendered artifact.
func (DefaultKeyer) ArtifactKey(layoutHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", layoutHash, opts)
}

var _ Keyer = DefaultKeyer{}
