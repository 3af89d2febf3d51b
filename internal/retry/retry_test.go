package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func TestPolicy_Do_SucceedsAfterRetries(t *testing.T) {
	var waits []time.Duration
	calls := 0
	p := Policy{
		Attempts: 3,
		Base:     time.Millisecond,
		Max:      time.Second,
		OnRetry:  func(_ int, _ error, wait time.Duration) { waits = append(waits, wait) },
	}

	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, waits)
}

func TestPolicy_Do_ReturnsLastErrorWhenExhausted(t *testing.T) {
	var retried []int
	calls := 0
	p := Policy{
		Attempts: 3,
		Base:     time.Millisecond,
		OnRetry: func(attempt int, err error, _ time.Duration) {
			assert.ErrorIs(t, err, errTransient)
			retried = append(retried, attempt)
		},
	}

	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return errTransient
	})

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried, "no wait after the final attempt")
}

func TestPolicy_Do_CapsWaits(t *testing.T) {
	var waits []time.Duration
	p := Policy{
		Attempts: 4,
		Base:     time.Millisecond,
		Max:      2 * time.Millisecond,
		OnRetry:  func(_ int, _ error, wait time.Duration) { waits = append(waits, wait) },
	}
	_ = p.Do(context.Background(), func(context.Context) error { return errTransient })

	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond, 2 * time.Millisecond}, waits)
}

func TestPolicy_Do_StopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	p := Policy{Attempts: 5, Base: time.Hour}

	err := p.Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return errTransient
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestPolicy_Do_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	err := Policy{}.Do(context.Background(), func(context.Context) error {
		calls++
		return errTransient
	})
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 1, calls)
}
