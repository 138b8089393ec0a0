package realtime

import "time"

// RateLimiter caps frames per sliding window for one connection. It keeps the
// last limit accepted timestamps in a ring and is owned by the read loop, so
// it is not safe for concurrent use. A nil *RateLimiter allows everything.
type RateLimiter struct {
	ring   []time.Time
	next   int
	filled int
	window time.Duration
}

// NewRateLimiter returns nil (no limiting) when limit <= 0.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		return nil
	}
	if window <= 0 {
		window = defaultRateWindow
	}
	return &RateLimiter{ring: make([]time.Time, limit), window: window}
}

// Allow records an event at now unless limit events already fall inside the window.
func (r *RateLimiter) Allow(now time.Time) bool {
	if r == nil {
		return true
	}

	if r.filled == len(r.ring) {
		// r.next holds the oldest accepted event.
		if r.ring[r.next].After(now.Add(-r.window)) {
			return false
		}
	} else {
		r.filled++
	}

	r.ring[r.next] = now
	r.next = (r.next + 1) % len(r.ring)
	return true
}
