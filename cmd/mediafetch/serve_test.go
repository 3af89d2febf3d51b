package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/bnema/mediafetch/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"
)

type stubCleaner struct {
	removed int
	err     error
	calls   int
	stop    context.CancelFunc
}

func (s *stubCleaner) Cleanup(time.Time) (int, error) {
	s.calls++
	s.stop()
	return s.removed, s.err
}

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(os.Stdout) })
	return &buf
}

func TestRunCleanup_LeavesReportingToService(t *testing.T) {
	buf := captureLog(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := &stubCleaner{removed: 3, stop: cancel}

	runCleanup(ctx, c, time.Millisecond)

	// A tick racing the cancellation may sweep once more.
	assert.GreaterOrEqual(t, c.calls, 1)
	assert.Empty(t, buf.String())
}

func TestRunCleanup_LogsFailure(t *testing.T) {
	buf := captureLog(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := &stubCleaner{err: errors.New("disk gone"), stop: cancel}

	runCleanup(ctx, c, time.Millisecond)

	assert.Contains(t, buf.String(), "cleanup failed: disk gone")
}
