// Package ratelimit throttles ICAP connections per client IP with a
// sliding window and a cooldown block once the window's attempt budget is
// spent.
package ratelimit

import (
	"sync"
	"time"
)

// clientState is the sliding-window bookkeeping for one client IP.
type clientState struct {
	attempts     int
	windowStart  time.Time
	blockedUntil time.Time
}

// Limiter manages per-client-IP rate limiting for incoming ICAP
// connections.
type Limiter struct {
	mu            sync.Mutex
	clients       map[string]*clientState
	maxAttempts   int
	windowSize    time.Duration
	blockDuration time.Duration
}

// New creates a Limiter allowing up to maxAttempts connections per
// clientIP within windowSize; a client that exceeds the budget is refused
// for blockDuration.
func New(maxAttempts int, windowSize, blockDuration time.Duration) *Limiter {
	return &Limiter{
		clients:       make(map[string]*clientState),
		maxAttempts:   maxAttempts,
		windowSize:    windowSize,
		blockDuration: blockDuration,
	}
}

// Allow reports whether clientIP may proceed, updating its bookkeeping as
// a side effect.
func (l *Limiter) Allow(clientIP string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	c, exists := l.clients[clientIP]
	if !exists {
		l.clients[clientIP] = &clientState{attempts: 1, windowStart: now}
		return true
	}

	if !c.blockedUntil.IsZero() && now.Before(c.blockedUntil) {
		return false
	}

	if now.Sub(c.windowStart) >= l.windowSize {
		c.attempts = 1
		c.windowStart = now
		c.blockedUntil = time.Time{}
		return true
	}

	c.attempts++
	if c.attempts > l.maxAttempts {
		c.blockedUntil = now.Add(l.blockDuration)
		return false
	}
	return true
}

// Reset clears rate-limiting state for a single client, e.g. after an
// operator override.
func (l *Limiter) Reset(clientIP string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.clients, clientIP)
}

// Cleanup drops bookkeeping for clients that are both unblocked and
// outside their window, bounding the map's growth on a long-running
// daemon. Callers typically run this on a ticker.
func (l *Limiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for ip, c := range l.clients {
		windowExpired := now.Sub(c.windowStart) >= l.windowSize
		blockExpired := c.blockedUntil.IsZero() || now.After(c.blockedUntil)
		if windowExpired && blockExpired {
			delete(l.clients, ip)
		}
	}
}
