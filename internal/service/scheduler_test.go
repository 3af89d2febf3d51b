package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bnema/mediafetch/internal/adapter/storage/memory"
	"github.com/bnema/mediafetch/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQueuedJob(t *testing.T, store *memory.Store) string {
	t.Helper()
	job := domain.NewJob("https://example.com/v", domain.QualityBest, false, "")
	require.NoError(t, store.Create(job))
	return job.ID
}

// blockingRun returns a run func that signals start and waits for release.
func blockingRun(started chan<- string, id string, release <-chan struct{}) RunFunc {
	return func(ctx context.Context) {
		started <- id
		select {
		case <-release:
		case <-ctx.Done():
		}
	}
}

func TestScheduler_CapacityAndFIFO(t *testing.T) {
	store := memory.NewStore(nil)
	sched := NewScheduler(2, store)

	started := make(chan string, 10)
	releases := map[string]chan struct{}{}
	var ids []string
	for i := 0; i < 5; i++ {
		id := newQueuedJob(t, store)
		ids = append(ids, id)
		releases[id] = make(chan struct{})
		require.NoError(t, sched.Submit(id, blockingRun(started, id, releases[id])))
	}

	assert.ElementsMatch(t, ids[:2], []string{<-started, <-started})
	assert.Equal(t, 2, sched.Running())
	assert.Equal(t, map[string]int{ids[2]: 1, ids[3]: 2, ids[4]: 3}, sched.Positions())

	for i, id := range ids[2:] {
		job, err := store.Get(id)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusQueued, job.Status)
		assert.Equal(t, i+1, job.QueuePosition)
	}

	close(releases[ids[0]])
	assert.Equal(t, ids[2], <-started, "head of queue admitted first")

	require.Eventually(t, func() bool {
		j3, _ := store.Get(ids[3])
		j4, _ := store.Get(ids[4])
		return j3.QueuePosition == 1 && j4.QueuePosition == 2
	}, time.Second, 5*time.Millisecond)

	admitted, err := store.Get(ids[2])
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusDownloading, admitted.Status)
	assert.Zero(t, admitted.QueuePosition)

	for _, id := range ids[1:] {
		select {
		case <-releases[id]:
		default:
			close(releases[id])
		}
	}
	require.NoError(t, sched.Stop(context.Background()))
	assert.Zero(t, sched.Running())
}

func TestScheduler_NeverExceedsCapacity(t *testing.T) {
	store := memory.NewStore(nil)
	sched := NewScheduler(3, store)

	var (
		mu      sync.Mutex
		current int
		peak    int
	)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		id := newQueuedJob(t, store)
		wg.Add(1)
		require.NoError(t, sched.Submit(id, func(context.Context) {
			defer wg.Done()
			mu.Lock()
			current++
			peak = max(peak, current)
			mu.Unlock()
			time.Sleep(2 * time.Millisecond)
			mu.Lock()
			current--
			mu.Unlock()
		}))
	}
	wg.Wait()
	require.NoError(t, sched.Stop(context.Background()))
	assert.LessOrEqual(t, peak, 3)
	assert.Empty(t, sched.Positions())
}

func TestScheduler_PanicReleasesSlot(t *testing.T) {
	store := memory.NewStore(nil)
	sched := NewScheduler(1, store)

	bad := newQueuedJob(t, store)
	good := newQueuedJob(t, store)
	ran := make(chan struct{})

	require.NoError(t, sched.Submit(bad, func(context.Context) { panic("boom") }))
	require.NoError(t, sched.Submit(good, func(context.Context) { close(ran) }))

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("queued job never admitted after panic")
	}

	job, err := store.Get(bad)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusError, job.Status)
	assert.Contains(t, job.Error, "boom")
	require.NoError(t, sched.Stop(context.Background()))
}

func TestScheduler_Stop(t *testing.T) {
	store := memory.NewStore(nil)
	sched := NewScheduler(1, store)

	started := make(chan string, 1)
	running := newQueuedJob(t, store)
	waiting := newQueuedJob(t, store)
	require.NoError(t, sched.Submit(running, blockingRun(started, running, make(chan struct{}))))
	require.NoError(t, sched.Submit(waiting, func(context.Context) { t.Error("waiting job must not run") }))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, sched.Stop(ctx), context.DeadlineExceeded)

	job, err := store.Get(waiting)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusError, job.Status)

	assert.ErrorIs(t, sched.Submit(newQueuedJob(t, store), func(context.Context) {}), ErrSchedulerStopped)
}
