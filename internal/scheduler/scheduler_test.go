package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextTimesAlignsToInterval(t *testing.T) {
	s := NewAlignedScheduler(context.Background(), time.Hour, 5*time.Second)
	now := time.Date(2026, 8, 30, 10, 17, 42, 0, time.UTC)

	nextClose, wakeAt, untilClose, wait := s.nextTimes(now)
	assert.Equal(t, time.Date(2026, 8, 30, 11, 0, 0, 0, time.UTC), nextClose)
	assert.Equal(t, time.Date(2026, 8, 30, 11, 0, 5, 0, time.UTC), wakeAt)
	assert.Equal(t, 42*time.Minute+18*time.Second, untilClose)
	assert.Equal(t, untilClose+5*time.Second, wait)
}

func TestNextTimesOnBoundary(t *testing.T) {
	s := NewAlignedScheduler(context.Background(), 15*time.Minute, 0)
	now := time.Date(2026, 8, 30, 10, 15, 0, 0, time.UTC)

	nextClose, _, untilClose, _ := s.nextTimes(now)
	// Exactly on a boundary schedules the following close, never a
	// zero-length wait loop.
	assert.Equal(t, time.Date(2026, 8, 30, 10, 30, 0, 0, time.UTC), nextClose)
	assert.Equal(t, 15*time.Minute, untilClose)
}

func TestRunOncePassesDeadline(t *testing.T) {
	s := NewAlignedScheduler(context.Background(), time.Hour, 0)
	deadline := time.Now().Add(time.Hour)

	var got time.Time
	s.runOnce(func(ctx context.Context) {
		d, ok := ctx.Deadline()
		assert.True(t, ok)
		got = d
	}, deadline)
	assert.Equal(t, deadline, got)
}
