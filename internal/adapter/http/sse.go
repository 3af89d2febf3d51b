package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bnema/mediafetch/internal/domain"
	"github.com/bnema/mediafetch/internal/infrastructure/logger"
	"github.com/bnema/mediafetch/internal/service"
)

const (
	defaultAppearTimeout = 5 * time.Second
	defaultPollInterval  = 500 * time.Millisecond
	defaultKeepAlive     = 15 * time.Second
)

// JobReader reads job snapshots on behalf of a caller.
type JobReader interface {
	Get(id, callerID string) (*domain.Job, error)
}

type SSEHandler struct {
	eventBus      *service.EventBus
	jobs          JobReader
	appearTimeout time.Duration
	pollInterval  time.Duration
	keepAlive     time.Duration
}

func NewSSEHandler(eventBus *service.EventBus, jobs JobReader) *SSEHandler {
	return &SSEHandler{
		eventBus:      eventBus,
		jobs:          jobs,
		appearTimeout: defaultAppearTimeout,
		pollInterval:  defaultPollInterval,
		keepAlive:     defaultKeepAlive,
	}
}

// sseWrite writes one unnamed event so EventSource.onmessage receives it.
func sseWrite(w http.ResponseWriter, data []byte) {
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// sendKeepAlive writes an SSE comment to keep the connection active.
func sendKeepAlive(w http.ResponseWriter) {
	_, _ = fmt.Fprint(w, ": keep-alive\n\n")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// sendSnapshot writes job unless it encodes the same as the previous
// event. It returns the encoding to compare the next snapshot with.
func sendSnapshot(w http.ResponseWriter, job *domain.Job, last []byte) ([]byte, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return last, err
	}
	if bytes.Equal(data, last) {
		return last, nil
	}
	sseWrite(w, data)
	return data, nil
}

// goneSnapshot stands in for a job that no longer exists so the client
// does not wait forever.
func goneSnapshot(id, reason string) *domain.Job {
	return &domain.Job{ID: id, Status: domain.JobStatusError, Error: reason}
}

// waitForJob absorbs the race between submission and subscription.
func (h *SSEHandler) waitForJob(ctx context.Context, id, callerID string) (*domain.Job, error) {
	deadline := time.NewTimer(h.appearTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(h.pollInterval / 5)
	defer tick.Stop()

	for {
		job, err := h.jobs.Get(id, callerID)
		if err == nil || !errors.Is(err, domain.ErrNotFound) {
			return job, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, err
		case <-tick.C:
		}
	}
}

// Events streams snapshots of one job until it is terminal. Closing the
// stream leaves the job running.
func (h *SSEHandler) Events() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if id == "" {
			http.Error(w, "Missing job ID", http.StatusBadRequest)
			return
		}
		ctx := r.Context()
		callerID := ClientID(ctx)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		// Subscribe first so nothing published while we read is lost.
		sub := h.eventBus.Subscribe(id)
		defer h.eventBus.Unsubscribe(sub)

		job, err := h.waitForJob(ctx, id, callerID)
		if err != nil {
			if ctx.Err() == nil {
				_, _ = sendSnapshot(w, goneSnapshot(id, "job not found"), nil)
			}
			return
		}

		last, err := sendSnapshot(w, job, nil)
		if err != nil {
			logger.Error.Printf("encode job %s: %v", id, err)
			return
		}
		if job.Status.IsTerminal() {
			return
		}
		current := job

		poll := time.NewTicker(h.pollInterval)
		defer poll.Stop()
		keepAlive := time.NewTicker(h.keepAlive)
		defer keepAlive.Stop()

		for {
			var next *domain.Job
			select {
			case <-ctx.Done():
				return
			case <-keepAlive.C:
				sendKeepAlive(w)
				continue
			case _, ok := <-sub.Updates():
				if !ok {
					return
				}
				if next = sub.Take(); next == nil {
					continue
				}
			case <-poll.C:
				// Polling also notices a job removed by cleanup.
				next, err = h.jobs.Get(id, callerID)
				if errors.Is(err, domain.ErrNotFound) {
					_, _ = sendSnapshot(w, goneSnapshot(id, "job no longer exists"), last)
					return
				}
				if err != nil {
					continue
				}
			}

			// A push can race a newer poll; never roll the client back.
			if !next.Supersedes(current) {
				continue
			}
			current = next
			if last, err = sendSnapshot(w, next, last); err != nil {
				logger.Error.Printf("encode job %s: %v", id, err)
				return
			}
			if next.Status.IsTerminal() {
				return
			}
		}
	}
}
