package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yunhaishang/Mallorn-sub002/internal/port/outbound/cache"
)

func newTestCache(t *testing.T) (cache.Cache, *miniredis.Miniredis) {
	t.Helper()

	srv := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewCache(client, time.Minute), srv
}

func TestCache_GetSet(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k1", []byte("v1"), 0); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	got, hit, err := c.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if !hit {
		t.Fatal("expected hit")
	}
	if string(got) != "v1" {
		t.Errorf("value = %q, want %q", got, "v1")
	}

	_, hit, err = c.Get(ctx, "absent")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if hit {
		t.Error("expected miss for absent key")
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	c, srv := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "short", []byte("v"), 10*time.Second); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	srv.FastForward(11 * time.Second)

	_, hit, err := c.Get(ctx, "short")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if hit {
		t.Error("expected expired entry to miss")
	}
}

func TestCache_Remove(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k1", []byte("v1"), 0); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if err := c.Remove(ctx, "k1"); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}
	if _, hit, _ := c.Get(ctx, "k1"); hit {
		t.Error("expected miss after Remove")
	}

	// Removing an absent key is not an error.
	if err := c.Remove(ctx, "absent"); err != nil {
		t.Errorf("Remove absent returned error: %v", err)
	}
}

func TestCache_Exists(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k1", []byte("v1"), 0); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	ok, err := c.Exists(ctx, "k1")
	if err != nil {
		t.Fatalf("Exists returned error: %v", err)
	}
	if !ok {
		t.Error("expected key to exist")
	}

	ok, err = c.Exists(ctx, "absent")
	if err != nil {
		t.Fatalf("Exists returned error: %v", err)
	}
	if ok {
		t.Error("expected key to be absent")
	}

	// Exists does not count toward hit accounting.
	if stats := c.Stats(); stats.Total != 0 {
		t.Errorf("Total = %d after Exists probes, want 0", stats.Total)
	}
}

func TestCache_GetMany(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "a", []byte("1"), 0); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if err := c.Set(ctx, "c", []byte("3"), 0); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	got, err := c.GetMany(ctx, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("GetMany returned error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if string(got["a"]) != "1" || string(got["c"]) != "3" {
		t.Errorf("unexpected values: %v", got)
	}
	if _, ok := got["b"]; ok {
		t.Error("missing key must be absent from result")
	}

	stats := c.Stats()
	if stats.Total != 3 || stats.Hits != 2 {
		t.Errorf("stats = %d/%d, want 2/3", stats.Hits, stats.Total)
	}
}

func TestCache_GetMany_Empty(t *testing.T) {
	c, _ := newTestCache(t)

	got, err := c.GetMany(context.Background(), nil)
	if err != nil {
		t.Fatalf("GetMany returned error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}

func TestCache_RemoveByPrefix(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	for _, key := range []string{"user:profile:1", "user:profile:2", "user:security:1", "order:1"} {
		if err := c.Set(ctx, key, []byte("v"), 0); err != nil {
			t.Fatalf("Set returned error: %v", err)
		}
	}

	removed, err := c.RemoveByPrefix(ctx, "user:profile:")
	if err != nil {
		t.Fatalf("RemoveByPrefix returned error: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	if _, hit, _ := c.Get(ctx, "user:profile:1"); hit {
		t.Error("prefixed key survived removal")
	}
	if _, hit, _ := c.Get(ctx, "user:security:1"); !hit {
		t.Error("unrelated key was removed")
	}
	if _, hit, _ := c.Get(ctx, "order:1"); !hit {
		t.Error("unrelated key was removed")
	}
}

func TestCache_Stats(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	if rate := c.Stats().HitRate(); rate != 0 {
		t.Errorf("HitRate = %v with no lookups, want 0", rate)
	}

	if err := c.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	c.Get(ctx, "k")
	c.Get(ctx, "k")
	c.Get(ctx, "absent")

	stats := c.Stats()
	if stats.Hits != 2 || stats.Total != 3 {
		t.Errorf("stats = %d/%d, want 2/3", stats.Hits, stats.Total)
	}
	want := 2.0 / 3.0
	if got := stats.HitRate(); got != want {
		t.Errorf("HitRate = %v, want %v", got, want)
	}
}
