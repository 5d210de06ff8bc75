package cache

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestLRUCacheSetGet(t *testing.T) {
	c := NewLRUCache(8)
	ctx := context.Background()

	if err := c.Set(ctx, "k1", []byte("v1"), time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	got, err := c.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(got) != "v1" {
		t.Errorf("got %q, want v1", got)
	}
}

func TestLRUCacheMissReturnsNil(t *testing.T) {
	c := NewLRUCache(8)

	got, err := c.Get(context.Background(), "absent")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing key, got %q", got)
	}
}

func TestLRUCacheTTLExpiry(t *testing.T) {
	c := NewLRUCache(8)
	ctx := context.Background()

	if err := c.Set(ctx, "k1", []byte("v1"), 10*time.Millisecond); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	got, err := c.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected expired entry to miss, got %q", got)
	}
}

func TestLRUCacheOverwrite(t *testing.T) {
	c := NewLRUCache(8)
	ctx := context.Background()

	c.Set(ctx, "k1", []byte("v1"), time.Minute)
	c.Set(ctx, "k1", []byte("v2"), time.Minute)

	got, _ := c.Get(ctx, "k1")
	if string(got) != "v2" {
		t.Errorf("got %q, want v2", got)
	}

	size, _ := c.Stats()
	if size != 1 {
		t.Errorf("size = %d, want 1", size)
	}
}

func TestLRUCacheEviction(t *testing.T) {
	c := NewLRUCache(3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		c.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), time.Minute)
	}

	// Touch k0 so k1 becomes least recently used.
	c.Get(ctx, "k0")
	c.Set(ctx, "k3", []byte("v"), time.Minute)

	if got, _ := c.Get(ctx, "k1"); got != nil {
		t.Error("expected k1 to be evicted")
	}
	if got, _ := c.Get(ctx, "k0"); got == nil {
		t.Error("expected k0 to survive eviction")
	}

	size, capacity := c.Stats()
	if size != 3 || capacity != 3 {
		t.Errorf("stats = %d/%d, want 3/3", size, capacity)
	}
}

func TestLRUCacheDelete(t *testing.T) {
	c := NewLRUCache(8)
	ctx := context.Background()

	c.Set(ctx, "k1", []byte("v1"), time.Minute)
	if err := c.Delete(ctx, "k1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if got, _ := c.Get(ctx, "k1"); got != nil {
		t.Error("expected deleted key to miss")
	}

	// Deleting a missing key is a no-op.
	if err := c.Delete(ctx, "absent"); err != nil {
		t.Errorf("delete of missing key failed: %v", err)
	}
}

func TestLRUCacheClose(t *testing.T) {
	c := NewLRUCache(8)
	ctx := context.Background()

	c.Set(ctx, "k1", []byte("v1"), time.Minute)
	if err := c.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if got, _ := c.Get(ctx, "k1"); got != nil {
		t.Error("expected cache to be empty after close")
	}
}
