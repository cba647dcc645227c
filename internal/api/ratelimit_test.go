package api

import (
	"testing"
	"time"
)

func TestRateLimiterPerIP(t *testing.T) {
	rl := NewRateLimiter(5, time.Minute)
	for i := 0; i < 5; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Fatalf("sixth request inside the window should be rejected")
	}
	if !rl.Allow("10.0.0.2") {
		t.Fatalf("other clients have their own budget")
	}
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(5, time.Minute)
	rl.now = func() time.Time { return now }

	// one request every 5s for a full minute: only the first five fit
	allowed := 0
	for i := 0; i < 12; i++ {
		if rl.Allow("10.0.0.1") {
			allowed++
		}
		now = now.Add(5 * time.Second)
	}
	if allowed != 5 {
		t.Fatalf("allowed within one window: %d, want 5", allowed)
	}

	// the first admission was at +0s, so its slot frees exactly at +60s
	now = time.Date(2024, 1, 1, 12, 0, 59, 0, time.UTC)
	if rl.Allow("10.0.0.1") {
		t.Fatalf("slot must stay taken until the window has fully passed")
	}
	now = time.Date(2024, 1, 1, 12, 1, 0, 0, time.UTC)
	if !rl.Allow("10.0.0.1") {
		t.Fatalf("oldest admission left the window, next request should pass")
	}
	if rl.Allow("10.0.0.1") {
		t.Fatalf("only one slot was freed")
	}
}

func TestRateLimiterRealClockBound(t *testing.T) {
	rl := NewRateLimiter(5, 500*time.Millisecond)
	start := time.Now()
	allowed := 0
	for time.Since(start) < 450*time.Millisecond {
		if rl.Allow("10.0.0.1") {
			allowed++
		}
		time.Sleep(10 * time.Millisecond)
	}
	if allowed != 5 {
		t.Fatalf("allowed within one window: %d, want 5", allowed)
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(0, time.Minute)
	for i := 0; i < 100; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("disabled limiter must allow everything")
		}
	}
}

func TestRateLimiterEvictsIdle(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	rl.Allow("10.0.0.1")
	if n := rl.evictIdle(time.Now().Add(-time.Hour)); n != 0 {
		t.Fatalf("recently seen ip must be kept, evicted %d", n)
	}
	if n := rl.evictIdle(time.Now().Add(time.Second)); n != 1 {
		t.Fatalf("expected one idle eviction, got %d", n)
	}
	if !rl.Allow("10.0.0.1") {
		t.Fatalf("evicted ip starts with a fresh budget")
	}
}
