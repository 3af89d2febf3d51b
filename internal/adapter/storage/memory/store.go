package memory

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bnema/mediafetch/internal/domain"
	"github.com/bnema/mediafetch/internal/port"
)

// Store keeps job records in process memory. Jobs do not survive a restart.
type Store struct {
	mu        sync.RWMutex
	jobs      map[string]*domain.Job
	publisher port.JobPublisher
	now       func() time.Time
}

func NewStore(publisher port.JobPublisher) *Store {
	return &Store{
		jobs:      make(map[string]*domain.Job),
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Create(job *domain.Job) error {
	s.mu.Lock()
	if _, exists := s.jobs[job.ID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("job %s already exists", job.ID)
	}
	s.jobs[job.ID] = job.Clone()
	snapshot := job.Clone()
	s.mu.Unlock()

	s.publish(snapshot)
	return nil
}

func (s *Store) Get(id string) (*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return j.Clone(), nil
}

// Apply commits the update atomically and returns the resulting snapshot.
// A rejected update leaves the record untouched.
func (s *Store) Apply(id string, update domain.JobUpdate) (*domain.Job, error) {
	s.mu.Lock()
	j, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return nil, domain.ErrNotFound
	}
	next := j.Clone()
	if err := next.Apply(update, s.now()); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.jobs[id] = next
	snapshot := next.Clone()
	s.mu.Unlock()

	s.publish(snapshot)
	return snapshot.Clone(), nil
}

// List returns every job, newest first.
func (s *Store) List() ([]*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]*domain.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j.Clone())
	}
	sort.Slice(jobs, func(a, b int) bool {
		return jobs[a].CreatedAt.After(jobs[b].CreatedAt)
	})
	return jobs, nil
}

func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.jobs, id)
	return nil
}

func (s *Store) ListExpired(retention time.Duration, now time.Time) ([]*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var expired []*domain.Job
	for _, j := range s.jobs {
		if j.IsExpired(retention, now) {
			expired = append(expired, j.Clone())
		}
	}
	return expired, nil
}

func (s *Store) publish(snapshot *domain.Job) {
	if s.publisher != nil {
		s.publisher.Publish(snapshot.ID, snapshot)
	}
}

var _ port.JobStore = (*Store)(nil)
