package dispatch

import (
	"sync"
	"time"
)

// RateLimiter enforces a sliding-window request limit per client identity.
type RateLimiter struct {
	mu        sync.Mutex
	window    time.Duration
	limit     int
	byClient  map[string][]time.Time
	lastSweep time.Time

	now func() time.Time
}

// NewRateLimiter allows limit requests per window per client.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 100
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		window:   window,
		limit:    limit,
		byClient: make(map[string][]time.Time),
		now:      time.Now,
	}
}

// Allow records a request for the client and reports whether it fits the
// window. Stale timestamps are pruned as a side effect, and clients whose
// whole window has expired are evicted once per window so the map does not
// grow with one-off senders.
func (rl *RateLimiter) Allow(client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)

	if now.Sub(rl.lastSweep) >= rl.window {
		for c, ts := range rl.byClient {
			if c == client {
				continue
			}
			if len(ts) == 0 || !ts[len(ts)-1].After(cutoff) {
				delete(rl.byClient, c)
			}
		}
		rl.lastSweep = now
	}

	stamps := rl.byClient[client]
	kept := stamps[:0]
	for _, t := range stamps {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= rl.limit {
		rl.byClient[client] = kept
		return false
	}

	rl.byClient[client] = append(kept, now)
	return true
}
