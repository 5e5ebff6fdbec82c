package cache

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory()
	if err := c.Set(ctx, "k", "v", 10*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	if v, ok := c.Get(ctx, "k"); !ok || v != "v" {
		t.Fatalf("expected hit before expiry, got %q %v", v, ok)
	}
	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatalf("expected miss after expiry")
	}
}

func TestInMemoryDeletePrefix(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory()
	_ = c.Set(ctx, "match:alice:bob", "1", 0)
	_ = c.Set(ctx, "match:alice:carol", "2", 0)
	_ = c.Set(ctx, "match:dave:alice", "3", 0)
	if err := c.DeletePrefix(ctx, "match:alice:"); err != nil {
		t.Fatalf("delete prefix: %v", err)
	}
	if _, ok := c.Get(ctx, "match:alice:bob"); ok {
		t.Fatalf("expected match:alice:bob evicted")
	}
	if _, ok := c.Get(ctx, "match:dave:alice"); !ok {
		t.Fatalf("expected match:dave:alice kept")
	}
}
