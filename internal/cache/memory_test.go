package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCache_SetAndGet(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	defer c.Close()

	key := "test-key"
	value := []byte("test-value")

	if err := c.Set(ctx, key, value, time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := c.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != string(value) {
		t.Errorf("Get returned wrong value: got %q, want %q", string(got), string(value))
	}
}

func TestMemoryCache_GetNonExistent(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	defer c.Close()

	got, err := c.Get(ctx, "non-existent-key")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil for non-existent key, got %q", string(got))
	}
}

func TestMemoryCache_Delete(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	defer c.Close()

	key := "delete-key"
	c.Set(ctx, key, []byte("delete-value"), time.Hour)

	if err := c.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	got, _ := c.Get(ctx, key)
	if got != nil {
		t.Error("Key still exists after delete")
	}
}

func TestMemoryCache_Expiration(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	defer c.Close()

	key := "expire-key"
	c.Set(ctx, key, []byte("expire-value"), 1*time.Millisecond)

	got, _ := c.Get(ctx, key)
	if got == nil {
		t.Error("Key should exist immediately after set")
	}

	time.Sleep(10 * time.Millisecond)

	got, _ = c.Get(ctx, key)
	if got != nil {
		t.Error("Key should be expired")
	}
}

func TestMemoryCache_CleanupExpired(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	defer c.Close()

	c.Set(ctx, "expired-key", []byte("value"), 1*time.Nanosecond)
	c.Set(ctx, "live-key", []byte("value"), time.Hour)
	time.Sleep(10 * time.Millisecond)

	if err := c.CleanupExpired(ctx); err != nil {
		t.Fatalf("CleanupExpired failed: %v", err)
	}

	c.mu.RLock()
	_, expiredPresent := c.data["expired-key"]
	_, livePresent := c.data["live-key"]
	c.mu.RUnlock()
	if expiredPresent {
		t.Error("expired entry survived cleanup")
	}
	if !livePresent {
		t.Error("live entry was swept by cleanup")
	}
}

func TestMemoryCache_Ping(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()

	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}
