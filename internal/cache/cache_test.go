//go:build unit

package cache

import (
	"context"
	"testing"
	"time"

	"go-directory-wiki/internal/config"
)

func newTestCache(t *testing.T) (*Cache, *time.Time) {
	t.Helper()
	c, err := New(config.CacheConfig{FilePath: ":memory:", TTL: time.Minute})
	if err != nil {
		t.Fatalf("failed to open cache: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestCache_SetGetDelete(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "wiki:categories", []byte(`["General"]`), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := c.Get(ctx, "wiki:categories")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != `["General"]` {
		t.Errorf("unexpected value %q", got)
	}

	if err := c.Delete(ctx, "wiki:categories"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	got, err = c.Get(ctx, "wiki:categories")
	if err != nil || got != nil {
		t.Errorf("expected miss after delete, got %q (%v)", got, err)
	}
}

func TestCache_Expiry(t *testing.T) {
	c, now := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "short", []byte("x"), time.Second); err != nil {
		t.Fatal(err)
	}
	if err := c.Set(ctx, "default", []byte("y"), 0); err != nil {
		t.Fatal(err)
	}

	*now = now.Add(2 * time.Second)
	if got, _ := c.Get(ctx, "short"); got != nil {
		t.Errorf("expected expired entry to miss, got %q", got)
	}
	if got, _ := c.Get(ctx, "default"); string(got) != "y" {
		t.Errorf("expected default ttl entry to survive, got %q", got)
	}

	*now = now.Add(time.Hour)
	n, err := c.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 purged entry, got %d", n)
	}
}
