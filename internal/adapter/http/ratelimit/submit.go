// Package ratelimit throttles job submissions per caller.
package ratelimit

import (
	"sync"
	"time"
)

const pruneInterval = time.Minute

// window is one client's submission count in the current window.
type window struct {
	count        int
	start        time.Time
	last         time.Time
	blockedUntil time.Time
}

// SubmitLimiter allows limit submissions per client and period. Going over
// blocks the client for the block duration and starts a fresh window once
// the block ends.
type SubmitLimiter struct {
	mu      sync.Mutex
	clients map[string]*window
	limit   int
	period  time.Duration
	block   time.Duration
	now     func() time.Time

	done      chan struct{}
	closeOnce sync.Once
}

func NewSubmitLimiter(limit int, period, block time.Duration) *SubmitLimiter {
	l := &SubmitLimiter{
		clients: make(map[string]*window),
		limit:   limit,
		period:  period,
		block:   block,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go l.pruneLoop()
	return l
}

// Allow counts a submission and reports whether it may proceed, or how
// long the client has to wait.
func (l *SubmitLimiter) Allow(clientID string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w := l.clients[clientID]
	if w == nil {
		w = &window{start: now}
		l.clients[clientID] = w
	}
	if now.Before(w.blockedUntil) {
		return false, w.blockedUntil.Sub(now)
	}
	if now.Sub(w.start) > l.period {
		w.count, w.start = 0, now
	}

	w.count++
	w.last = now
	if w.count <= l.limit {
		return true, 0
	}
	w.blockedUntil = now.Add(l.block)
	w.count, w.start = 0, w.blockedUntil
	return false, l.block
}

func (l *SubmitLimiter) Close() {
	l.closeOnce.Do(func() { close(l.done) })
}

func (l *SubmitLimiter) pruneLoop() {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.prune()
		}
	}
}

// prune drops clients idle for two periods that are not blocked.
func (l *SubmitLimiter) prune() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for id, w := range l.clients {
		if now.Sub(w.last) > 2*l.period && !now.Before(w.blockedUntil) {
			delete(l.clients, id)
		}
	}
}
