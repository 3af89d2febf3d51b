// Package breaker wraps a translator in a circuit breaker so a dead
// translation service fails fast instead of timing out on every block.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bnema/mediafetch/internal/infrastructure/logger"
	"github.com/bnema/mediafetch/internal/port"
	"github.com/sony/gobreaker"
)

// ErrUnavailable is returned while the breaker is open.
var ErrUnavailable = errors.New("translation service unavailable")

type Settings struct {
	Name string
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

func DefaultSettings() Settings {
	return Settings{Name: "translator", ConsecutiveFailures: 5, OpenTimeout: 30 * time.Second}
}

type Translator struct {
	next port.Translator
	cb   *gobreaker.CircuitBreaker
}

func New(next port.Translator, s Settings) *Translator {
	if s.ConsecutiveFailures == 0 {
		s.ConsecutiveFailures = DefaultSettings().ConsecutiveFailures
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= s.ConsecutiveFailures {
				return true
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.6
		},
		// a cancelled job says nothing about the service
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn.Printf("Circuit breaker %s: %s -> %s", name, from, to)
		},
	})
	return &Translator{next: next, cb: cb}
}

func (t *Translator) Translate(ctx context.Context, text, source, target string) (string, error) {
	out, err := t.cb.Execute(func() (interface{}, error) {
		return t.next.Translate(ctx, text, source, target)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return "", err
	}
	return out.(string), nil
}

// State reports the breaker state for diagnostics.
func (t *Translator) State() gobreaker.State {
	return t.cb.State()
}

var _ port.Translator = (*Translator)(nil)
