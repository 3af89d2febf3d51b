package service

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/bnema/mediafetch/internal/domain"
	"github.com/bnema/mediafetch/internal/infrastructure/logger"
	"github.com/bnema/mediafetch/internal/port"
)

var ErrSchedulerStopped = errors.New("scheduler stopped")

// RunFunc is the body of an admitted job. ctx ends when the scheduler is
// stopped past its grace period.
type RunFunc func(ctx context.Context)

type pendingJob struct {
	id  string
	run RunFunc
}

// Scheduler runs at most capacity jobs at once and admits the rest in
// submission order. Queue positions are written to the job store so they
// show up in progress snapshots.
type Scheduler struct {
	mu       sync.Mutex
	capacity int
	running  int
	waiting  []pendingJob
	stopped  bool

	store  port.JobStore
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewScheduler(capacity int, store port.JobStore) *Scheduler {
	if capacity < 1 {
		capacity = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		capacity: capacity,
		store:    store,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Submit starts run immediately when a slot is free, otherwise the job
// moves to queued with its 1-based position.
func (s *Scheduler) Submit(id string, run RunFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrSchedulerStopped
	}

	job := pendingJob{id: id, run: run}
	if s.running < s.capacity {
		s.running++
		s.admitLocked(job)
		return nil
	}

	s.waiting = append(s.waiting, job)
	position := len(s.waiting)
	update := domain.JobUpdate{}.WithStatus(domain.JobStatusQueued).WithQueuePosition(position)
	if _, err := s.store.Apply(id, update); err != nil {
		logger.WithJob(id).Warnf("Cannot mark job queued: %v", err)
	}
	logger.WithJob(id).Infof("Queued at position %d", position)
	return nil
}

// admitLocked moves the job to downloading and launches it. The slot has
// already been counted by the caller.
func (s *Scheduler) admitLocked(job pendingJob) {
	update := domain.JobUpdate{}.WithStatus(domain.JobStatusDownloading).WithQueuePosition(0)
	if _, err := s.store.Apply(job.id, update); err != nil {
		// Deleted or already finished while waiting.
		logger.WithJob(job.id).Warnf("Skipping admission: %v", err)
		s.running--
		return
	}

	s.wg.Add(1)
	go s.execute(job)
}

func (s *Scheduler) execute(job pendingJob) {
	defer s.wg.Done()
	defer s.release()
	defer func() {
		if r := recover(); r != nil {
			logger.WithJob(job.id).Errorf("Job panicked: %v\n%s", r, debug.Stack())
			update := domain.JobUpdate{}.WithStatus(domain.JobStatusError).WithError(fmt.Sprintf("internal error: %v", r))
			_, _ = s.store.Apply(job.id, update)
		}
	}()

	job.run(s.ctx)
}

// release frees a slot, admits waiting jobs into free slots and renumbers
// the rest of the queue.
func (s *Scheduler) release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running--
	for !s.stopped && s.running < s.capacity && len(s.waiting) > 0 {
		next := s.waiting[0]
		s.waiting = s.waiting[1:]
		s.running++
		s.admitLocked(next)
	}
	s.renumberLocked()
}

func (s *Scheduler) renumberLocked() {
	for i, job := range s.waiting {
		if _, err := s.store.Apply(job.id, domain.JobUpdate{}.WithQueuePosition(i+1)); err != nil {
			logger.WithJob(job.id).Debugf("Cannot update queue position: %v", err)
		}
	}
}

// Positions returns the queue position of every waiting job.
func (s *Scheduler) Positions() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	positions := make(map[string]int, len(s.waiting))
	for i, job := range s.waiting {
		positions[job.id] = i + 1
	}
	return positions
}

// Running returns the number of occupied slots.
func (s *Scheduler) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stop refuses new work, fails every waiting job and waits for running
// jobs. When ctx ends first the running jobs are cancelled.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	waiting := s.waiting
	s.waiting = nil
	for _, job := range waiting {
		update := domain.JobUpdate{}.WithStatus(domain.JobStatusError).WithError("server shutting down")
		_, _ = s.store.Apply(job.id, update)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		return ctx.Err()
	}
}
