package service

import (
	"sync"

	"github.com/bnema/mediafetch/internal/domain"
	"github.com/bnema/mediafetch/internal/port"
)

// Subscription holds the newest snapshot of one job that its reader has not
// taken yet. Publishing coalesces: a reader that falls behind skips
// intermediate progress and only ever sees the latest state.
type Subscription struct {
	jobID  string
	notify chan struct{}

	mu      sync.Mutex
	pending *domain.Job
	// newest accepted snapshot, kept after Take to reject late arrivals
	latest *domain.Job
}

// Updates fires when a snapshot is waiting. It is closed on Unsubscribe.
func (s *Subscription) Updates() <-chan struct{} {
	return s.notify
}

// Take returns the waiting snapshot, or nil when it was already taken.
func (s *Subscription) Take() *domain.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.pending
	s.pending = nil
	return job
}

func (s *Subscription) offer(snapshot *domain.Job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !snapshot.Supersedes(s.latest) {
		return false
	}
	s.latest = snapshot
	s.pending = snapshot
	select {
	case s.notify <- struct{}{}:
	default:
	}
	return true
}

// EventBus fans job snapshots out to per-job subscribers.
type EventBus struct {
	subscribers map[string][]*Subscription
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[string][]*Subscription),
	}
}

func (eb *EventBus) Subscribe(jobID string) *Subscription {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	sub := &Subscription{jobID: jobID, notify: make(chan struct{}, 1)}
	eb.subscribers[jobID] = append(eb.subscribers[jobID], sub)
	return sub
}

func (eb *EventBus) Unsubscribe(sub *Subscription) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	subs := eb.subscribers[sub.jobID]
	for i, s := range subs {
		if s == sub {
			eb.subscribers[sub.jobID] = append(subs[:i], subs[i+1:]...)
			close(sub.notify)
			break
		}
	}

	if len(eb.subscribers[sub.jobID]) == 0 {
		delete(eb.subscribers, sub.jobID)
	}
}

// Publish never blocks. A snapshot older than one a subscriber already has
// is dropped for that subscriber.
func (eb *EventBus) Publish(jobID string, snapshot *domain.Job) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	subs := eb.subscribers[jobID]
	if len(subs) == 0 {
		return
	}
	// Subscribers share one copy and never mutate it.
	snapshot = snapshot.Clone()
	for _, sub := range subs {
		sub.offer(snapshot)
	}
}

// Subscribers returns the number of live subscriptions for a job.
func (eb *EventBus) Subscribers(jobID string) int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subscribers[jobID])
}

var _ port.JobPublisher = (*EventBus)(nil)
