package realtime

import (
	"testing"
	"time"
)

func TestRateLimiter_SlidingWindow(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(3, 10*time.Second)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if !rl.Allow(base.Add(time.Duration(i) * time.Second)) {
			t.Fatalf("event %d should be allowed", i)
		}
	}
	if rl.Allow(base.Add(5 * time.Second)) {
		t.Fatalf("4th event inside window should be denied")
	}
	// First event leaves the window.
	if !rl.Allow(base.Add(10*time.Second + time.Millisecond)) {
		t.Fatalf("event after window slide should be allowed")
	}
}

func TestRateLimiter_DisabledWhenZero(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(0, time.Second)
	if rl != nil {
		t.Fatalf("limit 0 must disable the limiter")
	}
	now := time.Now()
	for i := 0; i < 1000; i++ {
		if !rl.Allow(now) {
			t.Fatalf("nil limiter must allow everything")
		}
	}
}
