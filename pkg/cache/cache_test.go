package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNullCacheNeverHits(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	if err := c.Set(ctx, "layout:abc", []byte("{}"), time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if data, hit, err := c.Get(ctx, "layout:abc"); hit || data != nil || err != nil {
		t.Errorf("Get = (%q, %v, %v), want clean miss", data, hit, err)
	}
	if err := c.Delete(ctx, "layout:abc"); err != nil {
		t.Errorf("Delete: %v", err)
	}
}

func TestHash(t *testing.T) {
	// sha256("") is a fixed vector.
	if got := Hash(nil); got != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Errorf("Hash(nil) = %s", got)
	}
	if Hash([]byte("A@1")) == Hash([]byte("A@2")) {
		t.Error("different inputs should hash differently")
	}
}

func TestKeysTrackOptions(t *testing.T) {
	k := NewDefaultKeyer()

	if got := k.HTTPKey("spec", "https://example.com/a.toml"); got != "http:spec:https://example.com/a.toml" {
		t.Errorf("HTTPKey = %s", got)
	}

	tests := []struct {
		name string
		a, b string
	}{
		{"graph seed",
			k.GraphKey("s", GraphKeyOpts{Seed: 1, FontSize: 7}),
			k.GraphKey("s", GraphKeyOpts{Seed: 2, FontSize: 7})},
		{"graph warm start",
			k.GraphKey("s", GraphKeyOpts{Seed: 1}),
			k.GraphKey("s", GraphKeyOpts{Seed: 1, WarmHash: "w"})},
		{"layout params",
			k.LayoutKey("g", LayoutKeyOpts{Params: map[string]float64{"stream_strength": 1}}),
			k.LayoutKey("g", LayoutKeyOpts{Params: map[string]float64{"stream_strength": 0.5}})},
		{"layout ticks",
			k.LayoutKey("g", LayoutKeyOpts{Ticks: 50}),
			k.LayoutKey("g", LayoutKeyOpts{Ticks: 51})},
		{"artifact view",
			k.ArtifactKey("l", ArtifactKeyOpts{Format: "svg", View: "stream"}),
			k.ArtifactKey("l", ArtifactKeyOpts{Format: "svg", View: "nodelink"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.a == tt.b {
				t.Errorf("keys collide: %s", tt.a)
			}
		})
	}

	if k.GraphKey("s", GraphKeyOpts{Seed: 1}) != k.GraphKey("s", GraphKeyOpts{Seed: 1}) {
		t.Error("GraphKey should be deterministic")
	}
}

func TestScopedKeyer(t *testing.T) {
	api := NewScopedKeyer(nil, "api:")
	cli := NewDefaultKeyer()

	if got := api.HTTPKey("spec", "x"); got != "api:http:spec:x" {
		t.Errorf("HTTPKey = %s", got)
	}
	lk := api.LayoutKey("g", LayoutKeyOpts{Ticks: 5})
	if lk != "api:"+cli.LayoutKey("g", LayoutKeyOpts{Ticks: 5}) {
		t.Errorf("LayoutKey = %s, want prefixed default key", lk)
	}
	if !strings.HasPrefix(api.ArtifactKey("l", ArtifactKeyOpts{}), "api:artifact:") {
		t.Error("ArtifactKey should be prefixed")
	}
}

func TestFileCache(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	defer c.Close()

	if _, hit, err := c.Get(ctx, "missing"); err != nil || hit {
		t.Fatalf("Get(missing) = hit %v, err %v; want miss", hit, err)
	}

	if err := c.Set(ctx, "layout:1", []byte(`{"nodes":[]}`), time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}
	data, hit, err := c.Get(ctx, "layout:1")
	if err != nil || !hit {
		t.Fatalf("Get after Set = hit %v, err %v", hit, err)
	}
	if string(data) != `{"nodes":[]}` {
		t.Errorf("Get data = %q", data)
	}

	if err := c.Delete(ctx, "layout:1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, hit, _ := c.Get(ctx, "layout:1"); hit {
		t.Error("entry should be gone after Delete")
	}
	if err := c.Delete(ctx, "layout:1"); err != nil {
		t.Errorf("Delete of missing key should not fail: %v", err)
	}
}

func TestFileCacheExpiration(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if err := c.Set(ctx, "k", []byte("v"), time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}
	now = now.Add(59 * time.Minute)
	if _, hit, _ := c.Get(ctx, "k"); !hit {
		t.Error("entry should live until its ttl")
	}
	now = now.Add(2 * time.Minute)
	if _, hit, _ := c.Get(ctx, "k"); hit {
		t.Error("expired entry should be a miss")
	}
	if _, err := os.Stat(c.path("k")); !os.IsNotExist(err) {
		t.Error("expired entry should be removed from disk")
	}

	if err := c.Set(ctx, "forever", []byte("v"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, hit, _ := c.Get(ctx, "forever"); !hit {
		t.Error("entry without ttl should not expire")
	}
}

func TestFileCacheCorruptEntry(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	if err := c.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := os.WriteFile(c.path("k"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, hit, err := c.Get(ctx, "k"); hit || err != nil {
		t.Errorf("Get = hit %v, err %v; want clean miss", hit, err)
	}
}

func TestFileCacheClear(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c, err := NewFileCache(dir)
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	for _, k := range []string{"a", "b", "c"} {
		if err := c.Set(ctx, k, []byte(k), time.Hour); err != nil {
			t.Fatalf("Set(%s): %v", k, err)
		}
	}
	// unrelated files in the cache dir survive
	if err := os.WriteFile(filepath.Join(dir, "README"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	n, err := c.Clear()
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if n != 3 {
		t.Errorf("Clear removed %d entries, want 3", n)
	}
	if _, hit, _ := c.Get(ctx, "a"); hit {
		t.Error("entries should be gone after Clear")
	}
	if _, err := os.Stat(filepath.Join(dir, "README")); err != nil {
		t.Errorf("unrelated file removed: %v", err)
	}
}

func TestRetryable(t *testing.T) {
	if Retryable(nil) != nil {
		t.Error("Retryable(nil) should stay nil")
	}
	err := Retryable(ErrNetwork)
	if !IsRetryable(err) || !errors.Is(err, ErrNetwork) {
		t.Errorf("Retryable(ErrNetwork) = %v, want retryable network error", err)
	}
	if err.Error() != ErrNetwork.Error() {
		t.Errorf("message changed: %s", err)
	}
	if IsRetryable(ErrNotFound) {
		t.Error("unmarked errors are not retryable")
	}
	if !IsRetryable(fmt.Errorf("fetch: %w", Retryable(ErrNetwork))) {
		t.Error("marking should survive wrapping")
	}
}

func TestRetryWithBackoff(t *testing.T) {
	ctx := context.Background()

	// Success on first try
	calls := 0
	err := RetryWithBackoff(ctx, func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Errorf("Should succeed: %v", err)
	}
	if calls != 1 {
		t.Errorf("Should call once: %d", calls)
	}

	// Non-retryable error stops immediately
	calls = 0
	err = RetryWithBackoff(ctx, func() error {
		calls++
		return ErrNotFound
	})
	if err != ErrNotFound {
		t.Errorf("Should return non-retryable error: %v", err)
	}
	if calls != 1 {
		t.Errorf("Should not retry non-retryable error: %d", calls)
	}

	// Retryable error triggers retries
	calls = 0
	err = RetryWithBackoff(ctx, func() error {
		calls++
		if calls < 2 {
			return Retryable(ErrNetwork)
		}
		return nil
	})
	if err != nil {
		t.Errorf("Should succeed after retry: %v", err)
	}
	if calls != 2 {
		t.Errorf("Should retry once: %d", calls)
	}
}

func TestRetryWithBackoffContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately

	err := RetryWithBackoff(ctx, func() error {
		return Retryable(ErrNetwork)
	})
	if err != context.Canceled {
		t.Errorf("Should return context error: %v", err)
	}
}

func TestBackoffExhaustsAttempts(t *testing.T) {
	b := Backoff{Attempts: 4, Delay: time.Millisecond, Max: 2 * time.Millisecond}

	calls := 0
	err := b.Retry(context.Background(), func() error {
		calls++
		return Retryable(ErrNetwork)
	})
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("Retry err = %v, want ErrNetwork", err)
	}
	if calls != 4 {
		t.Errorf("calls = %d, want 4", calls)
	}

	// Zero attempts still calls once.
	calls = 0
	_ = Backoff{}.Retry(context.Background(), func() error {
		calls++
		return Retryable(ErrNetwork)
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
