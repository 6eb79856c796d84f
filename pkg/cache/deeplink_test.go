package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func testCache(t *testing.T) *DeepLinkCache {
	t.Helper()
	mr := miniredis.RunT(t)
	return New(mr.Addr(), "", time.Minute)
}

func TestDeepLinkRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := testCache(t)

	if _, hit, err := c.Get(ctx, "A3F9K2"); err != nil || hit {
		t.Fatalf("fresh cache: hit=%v err=%v", hit, err)
	}

	if err := c.Put(ctx, "A3F9K2", "cim-550-0"); err != nil {
		t.Fatalf("put: %v", err)
	}
	key, hit, err := c.Get(ctx, "A3F9K2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !hit || key != "cim-550-0" {
		t.Fatalf("get = %q hit=%v", key, hit)
	}
}

func TestDeepLinkInvalidate(t *testing.T) {
	ctx := context.Background()
	c := testCache(t)

	if err := c.Put(ctx, "A3F9K2", "cim-550-0"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := c.Invalidate(ctx, "A3F9K2"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, hit, _ := c.Get(ctx, "A3F9K2"); hit {
		t.Fatalf("mapping survived invalidate")
	}
	// Invalidating an absent mapping is a no-op.
	if err := c.Invalidate(ctx, "A3F9K2"); err != nil {
		t.Fatalf("second invalidate: %v", err)
	}
}

func TestDeepLinkExpiry(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	c := New(mr.Addr(), "", time.Second)

	if err := c.Put(ctx, "A3F9K2", "cim-550-0"); err != nil {
		t.Fatalf("put: %v", err)
	}
	mr.FastForward(2 * time.Second)
	if _, hit, _ := c.Get(ctx, "A3F9K2"); hit {
		t.Fatalf("mapping survived ttl")
	}
}
