// Package ratelimit bounds how often one session may ask for decisions.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultIdleTTL is how long an unused session bucket is kept.
const DefaultIdleTTL = 3 * time.Minute

// Limiter keeps one token bucket per session.
type Limiter struct {
	rps   rate.Limit
	burst int
	idle  time.Duration
	now   func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewLimiter(rps float64, burst int, idle time.Duration) *Limiter {
	if idle <= 0 {
		idle = DefaultIdleTTL
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		idle:     idle,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

// Allow spends one token from the bucket of id.
func (l *Limiter) Allow(id string) bool {
	now := l.now()

	l.mu.Lock()
	s, ok := l.sessions[id]
	if !ok {
		s = &session{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.sessions[id] = s
	}
	s.lastSeen = now
	l.mu.Unlock()

	return s.limiter.AllowN(now, 1)
}

// Evict drops buckets idle longer than the idle TTL and reports how many.
func (l *Limiter) Evict() int {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for id, s := range l.sessions {
		if now.Sub(s.lastSeen) > l.idle {
			delete(l.sessions, id)
			removed++
		}
	}
	return removed
}

func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sessions)
}

// Run evicts idle buckets every interval until ctx is cancelled.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Evict()
		}
	}
}
