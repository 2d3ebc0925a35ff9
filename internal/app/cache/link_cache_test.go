package cache

import (
	"testing"
	"time"
)

func TestTTLFor(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	if got := TTLFor(nil, now); got != DefaultTTL {
		t.Fatalf("expected default TTL for never-expiring links, got %v", got)
	}

	in30 := now.Add(30 * time.Minute)
	if got := TTLFor(&in30, now); got != 30*time.Minute {
		t.Fatalf("expected TTL bounded by expiry, got %v", got)
	}

	past := now.Add(-time.Minute)
	if got := TTLFor(&past, now); got > 0 {
		t.Fatalf("expected non-positive TTL for an expired link, got %v", got)
	}
}
