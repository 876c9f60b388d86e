package http

import (
	"sync"
	"time"
)

// rateLimiter bounds requests per client with a one-minute sliding window.
type rateLimiter struct {
	mu       sync.Mutex
	limit    int
	requests map[string][]time.Time
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func newRateLimiter(perMinute int) *rateLimiter {
	rl := &rateLimiter{
		limit:    perMinute,
		requests: make(map[string][]time.Time),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-time.Minute)

	recent := rl.requests[clientIP][:0]
	for _, ts := range rl.requests[clientIP] {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}
	if len(recent) >= rl.limit {
		rl.requests[clientIP] = recent
		return false
	}
	rl.requests[clientIP] = append(recent, now)
	return true
}

// cleanupLoop drops clients that have been idle for over a minute.
func (rl *rateLimiter) cleanupLoop() {
	defer close(rl.doneCh)

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-time.Minute)
			rl.mu.Lock()
			for ip, times := range rl.requests {
				if len(times) == 0 || !times[len(times)-1].After(cutoff) {
					delete(rl.requests, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *rateLimiter) stop() {
	close(rl.stopCh)
	<-rl.doneCh
}
