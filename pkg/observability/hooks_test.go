package observability

import (
	"context"
	"errors"
	"testing"
	"time"
)

type recordingPipeline struct {
	NoopPipelineHooks
	builds  int
	dropped int
	err     error
}

func (r *recordingPipeline) OnBuildComplete(_ context.Context, _, dropped int, _ time.Duration, err error) {
	r.builds++
	r.dropped += dropped
	r.err = err
}

type recordingCache struct {
	NoopCacheHooks
	hits map[string]int
}

func (r *recordingCache) OnCacheHit(_ context.Context, keyType string) { r.hits[keyType]++ }

type recordingHTTP struct{ NoopHTTPHooks }

func TestNoopHooks(t *testing.T) {
	ctx := context.Background()

	p := NoopPipelineHooks{}
	p.OnBuildStart(ctx, 3)
	p.OnBuildComplete(ctx, 40, 1, time.Millisecond, nil)
	p.OnLayoutStart(ctx, 40)
	p.OnLayoutComplete(ctx, 300, time.Second, nil)
	p.OnRenderStart(ctx, "stream", []string{"svg"})
	p.OnRenderComplete(ctx, "stream", []string{"svg"}, time.Millisecond, nil)

	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "graph")
	c.OnCacheMiss(ctx, "layout")
	c.OnCacheSet(ctx, "artifact", 512)

	h := NoopHTTPHooks{}
	h.OnRequest(ctx, "GET", "example.com", "/spec.toml")
	h.OnResponse(ctx, "GET", "example.com", "/spec.toml", 200, time.Millisecond)
	h.OnError(ctx, "GET", "example.com", "/spec.toml", errors.New("refused"))
}

func TestRegistry(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	if _, ok := Pipeline().(NoopPipelineHooks); !ok {
		t.Error("Pipeline() default should be NoopPipelineHooks")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() default should be NoopCacheHooks")
	}
	if _, ok := HTTP().(NoopHTTPHooks); !ok {
		t.Error("HTTP() default should be NoopHTTPHooks")
	}

	p := &recordingPipeline{}
	c := &recordingCache{hits: map[string]int{}}
	h := &recordingHTTP{}
	SetPipelineHooks(p)
	SetCacheHooks(c)
	SetHTTPHooks(h)

	ctx := context.Background()
	boom := errors.New("boom")
	Pipeline().OnBuildComplete(ctx, 10, 2, time.Millisecond, nil)
	Pipeline().OnBuildComplete(ctx, 0, 1, time.Millisecond, boom)
	Cache().OnCacheHit(ctx, "layout")
	Cache().OnCacheHit(ctx, "layout")

	if p.builds != 2 || p.dropped != 3 || !errors.Is(p.err, boom) {
		t.Errorf("pipeline hooks recorded builds=%d dropped=%d err=%v", p.builds, p.dropped, p.err)
	}
	if c.hits["layout"] != 2 {
		t.Errorf("cache hits = %v", c.hits)
	}
	if HTTP() != h {
		t.Error("SetHTTPHooks did not register")
	}

	Reset()
	if _, ok := Pipeline().(NoopPipelineHooks); !ok {
		t.Error("Reset should restore NoopPipelineHooks")
	}
}

func TestSetNilIgnored(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	p := &recordingPipeline{}
	SetPipelineHooks(p)
	SetPipelineHooks(nil)
	SetCacheHooks(nil)
	SetHTTPHooks(nil)

	if Pipeline() != p {
		t.Error("SetPipelineHooks(nil) replaced the registered hooks")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("SetCacheHooks(nil) replaced the default")
	}
}
