package cache

import (
	"context"
	"time"
)

// nullCache misses on every lookup. It backs --no-cache and runners built
// without a cache.
type nullCache struct{}

// NewNullCache returns a Cache that stores nothing.
func NewNullCache() Cache { return nullCache{} }

func (nullCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (nullCache) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (nullCache) Delete(context.Context, string) error { return nil }
func (nullCache) Close() error { return nil }
