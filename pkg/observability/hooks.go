// Package observability provides hooks for metrics, tracing, and logging.
//
// Libraries emit events through globally registered hook implementations
// that default to no-ops, so the core packages stay free of any metrics
// backend. The API server registers Prometheus-backed hooks at startup.
//
// # Usage
//
// Register hooks at application startup:
//
//	observability.SetPipelineHooks(metrics)
//	observability.SetCacheHooks(metrics)
//
// Libraries call hooks to emit events:
//
//	observability.Pipeline().OnBuildStart(ctx, len(s.Streams))
//	// ... build ...
//	observability.Pipeline().OnBuildComplete(ctx, nodes, dropped, time.Since(start), err)
package observability

import (
	"context"
	"sync/atomic"
	"time"
)

// =============================================================================
// Pipeline Hooks
// =============================================================================

// PipelineHooks receives events from the build, layout and render stages.
type PipelineHooks interface {
	// OnBuildComplete reports the flattened node count and the number of
	// input rows the builder skipped.
	OnBuildStart(ctx context.Context, streams int)
	OnBuildComplete(ctx context.Context, nodes, dropped int, duration time.Duration, err error)

	// OnLayoutComplete reports the solver steps taken, which is below the
	// configured maximum when the simulation settled early.
	OnLayoutStart(ctx context.Context, nodes int)
	OnLayoutComplete(ctx context.Context, steps int, duration time.Duration, err error)

	OnRenderStart(ctx context.Context, view string, formats []string)
	OnRenderComplete(ctx context.Context, view string, formats []string, duration time.Duration, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives runner cache lookups. keyType is the stage: graph,
// layout or artifact.
type CacheHooks interface {
	OnCacheHit(ctx context.Context, keyType string)
	OnCacheMiss(ctx context.Context, keyType string)
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from outgoing HTTP requests (remote spec fetches).
type HTTPHooks interface {
	OnRequest(ctx context.Context, method, host, path string)
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)

	// OnError records a network failure or timeout.
	OnError(ctx context.Context, method, host, path string, err error)
}

// =============================================================================
// No-op defaults
// =============================================================================

// NoopPipelineHooks ignores every event. Embed it to implement a subset.
type NoopPipelineHooks struct{}

func (NoopPipelineHooks) OnBuildStart(context.Context, int)                                {}
func (NoopPipelineHooks) OnBuildComplete(context.Context, int, int, time.Duration, error) {}
func (NoopPipelineHooks) OnLayoutStart(context.Context, int)                               {}
func (NoopPipelineHooks) OnLayoutComplete(context.Context, int, time.Duration, error)      {}
func (NoopPipelineHooks) OnRenderStart(context.Context, string, []string)                  {}
func (NoopPipelineHooks) OnRenderComplete(context.Context, string, []string, time.Duration, error) {
}

// NoopCacheHooks ignores every event.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks ignores every event.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

// =============================================================================
// Registry
// =============================================================================

// Hooks are swapped atomically so stages running on errgroup goroutines
// never need a lock to emit.
var (
	pipelineHooks atomic.Pointer[PipelineHooks]
	cacheHooks    atomic.Pointer[CacheHooks]
	httpHooks     atomic.Pointer[HTTPHooks]
)

func init() { Reset() }

func set[T any](p *atomic.Pointer[T], h T) { p.Store(&h) }

// SetPipelineHooks registers pipeline hooks. A nil h is ignored.
func SetPipelineHooks(h PipelineHooks) {
	if h != nil {
		set(&pipelineHooks, h)
	}
}

// SetCacheHooks registers cache hooks. A nil h is ignored.
func SetCacheHooks(h CacheHooks) {
	if h != nil {
		set(&cacheHooks, h)
	}
}

// SetHTTPHooks registers hooks for remote spec fetches. A nil h is ignored.
func SetHTTPHooks(h HTTPHooks) {
	if h != nil {
		set(&httpHooks, h)
	}
}

// Pipeline returns the registered pipeline hooks.
func Pipeline() PipelineHooks { return *pipelineHooks.Load() }

// Cache returns the registered cache hooks.
func Cache() CacheHooks { return *cacheHooks.Load() }

// HTTP returns the registered fetch hooks.
func HTTP() HTTPHooks { return *httpHooks.Load() }

// Reset restores the no-op defaults.
func Reset() {
	set[PipelineHooks](&pipelineHooks, NoopPipelineHooks{})
	set[CacheHooks](&cacheHooks, NoopCacheHooks{})
	set[HTTPHooks](&httpHooks, NoopHTTPHooks{})
}
