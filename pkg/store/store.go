// Package store persists layouts served by the HTTP API.
//
// A [Record] holds everything needed to continue working on a layout: the
// input spec, the build options, the solver parameters and the last solved
// layout. Two implementations are provided:
//
//   - [Memory]: process-local, for tests and single-instance servers
//   - [MongoStore]: a MongoDB collection, one document per record
//
// Records are keyed by a random UUID assigned on Create.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/orcha/pkg/core/build"
	"github.com/matzehuels/orcha/pkg/core/force"
	"github.com/matzehuels/orcha/pkg/graph"
	"github.com/matzehuels/orcha/pkg/spec"
)

// ErrNotFound is returned when no record has the requested id.
var ErrNotFound = errors.New("store: record not found")

// BuildOptions are the builder settings a record was created with.
type BuildOptions struct {
	Seed         uint64  `json:"seed" bson:"seed"`
	StreamSize   float64 `json:"stream_size,omitempty" bson:"stream_size,omitempty"`
	FontSize     float64 `json:"font_size,omitempty" bson:"font_size,omitempty"`
	RootSize     float64 `json:"root_size,omitempty" bson:"root_size,omitempty"`
	CanvasWidth  float64 `json:"canvas_width,omitempty" bson:"canvas_width,omitempty"`
	CanvasHeight float64 `json:"canvas_height,omitempty" bson:"canvas_height,omitempty"`
}

// Build returns the builder options, without warm-start positions.
func (o BuildOptions) Build() build.Options {
	return build.Options{
		Seed:         o.Seed,
		StreamSize:   o.StreamSize,
		FontSize:     o.FontSize,
		RootSize:     o.RootSize,
		CanvasWidth:  o.CanvasWidth,
		CanvasHeight: o.CanvasHeight,
	}
}

// Record is one stored layout.
type Record struct {
	ID        string             `json:"id" bson:"_id"`
	Spec      spec.Spec          `json:"spec" bson:"spec"`
	Options   BuildOptions       `json:"options" bson:"options"`
	Params    map[string]float64 `json:"params" bson:"params"`
	Layout    graph.Layout       `json:"layout" bson:"layout"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time          `json:"updated_at" bson:"updated_at"`
}

// Config rebuilds the solver configuration from the stored parameters on
// top of the defaults.
func (r *Record) Config() (force.Config, error) {
	cfg := force.DefaultConfig()
	if err := cfg.Apply(r.Params); err != nil {
		return force.Config{}, err
	}
	return cfg, nil
}

// Store persists records. Implementations are safe for concurrent use.
type Store interface {
	// Create assigns a new id and timestamps, stores r and returns the id.
	Create(ctx context.Context, r *Record) (string, error)

	// Get returns the record or ErrNotFound.
	Get(ctx context.Context, id string) (*Record, error)

	// Update replaces an existing record, refreshing UpdatedAt. It returns
	// ErrNotFound when the id is unknown.
	Update(ctx context.Context, r *Record) error

	// Delete removes a record. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error

	Close() error
}

// NewID returns a fresh record id.
func NewID() string { return uuid.NewString() }

// stamp prepares r for Create.
func stamp(r *Record, now time.Time) {
	r.ID = NewID()
	r.CreatedAt = now
	r.UpdatedAt = now
}
