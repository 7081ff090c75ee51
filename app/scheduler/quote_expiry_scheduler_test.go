package scheduler

import (
	"bytes"
	"context"
	"errors"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExpirer struct {
	mu      sync.Mutex
	batches []int
	err     error
	calls   int
}

func (s *stubExpirer) ExpireOverdueQuotes(_ context.Context, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.batches) == 0 {
		return 0, s.err
	}
	n := min(s.batches[0], limit)
	s.batches = s.batches[1:]
	return n, nil
}

func (s *stubExpirer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestRunOnceDrainsFullBatches(t *testing.T) {
	var buf bytes.Buffer
	exp := &stubExpirer{batches: []int{10, 10, 3}}
	s := NewQuoteExpiryScheduler(exp, log.New(&buf, "", 0), time.Minute, 10)

	total := s.runOnce(context.Background())

	assert.Equal(t, 23, total)
	assert.Equal(t, 3, exp.callCount())
	assert.Contains(t, buf.String(), "expired 23 overdue quotes")
}

func TestRunOnceStopsOnError(t *testing.T) {
	var buf bytes.Buffer
	exp := &stubExpirer{batches: []int{5}, err: errors.New("db down")}
	s := NewQuoteExpiryScheduler(exp, log.New(&buf, "", 0), time.Minute, 5)

	total := s.runOnce(context.Background())

	assert.Equal(t, 5, total)
	assert.Equal(t, 2, exp.callCount())
	assert.Contains(t, buf.String(), "db down")
}

func TestRunOnceQuietWhenNothingExpires(t *testing.T) {
	var buf bytes.Buffer
	s := NewQuoteExpiryScheduler(&stubExpirer{}, log.New(&buf, "", 0), time.Minute, 10)

	assert.Zero(t, s.runOnce(context.Background()))
	assert.Empty(t, buf.String())
}

func TestStartRunsImmediatelyAndStops(t *testing.T) {
	exp := &stubExpirer{}
	s := NewQuoteExpiryScheduler(exp, log.New(&bytes.Buffer{}, "", 0), time.Hour, 10)

	stop := s.Start(context.Background())
	require.Eventually(t, func() bool { return exp.callCount() == 1 }, time.Second, 5*time.Millisecond)
	stop()
}
