package scheduler

import (
	"context"
	"time"

	"tactix/internal/logger"
)

// AlignedScheduler wakes a task on bar-close boundaries: the wall clock
// truncated to Interval, plus Offset to let the exchange settle the candle.
//
// Each run gets a context whose deadline is the next wake time. A cycle
// that overruns its slot is abandoned through that deadline rather than
// queued behind the next one; ticks never pile up.
type AlignedScheduler struct {
	Interval       time.Duration
	Offset         time.Duration
	RunImmediately bool

	ctx   context.Context
	nowFn func() time.Time
}

func NewAlignedScheduler(ctx context.Context, interval, offset time.Duration) *AlignedScheduler {
	if ctx == nil {
		ctx = context.Background()
	}
	return &AlignedScheduler{
		Interval: interval,
		Offset:   offset,
		ctx:      ctx,
		nowFn:    time.Now,
	}
}

func (s *AlignedScheduler) Start(task func(ctx context.Context)) {
	if s == nil {
		return
	}
	if task == nil {
		logger.Warnf("AlignedScheduler: task is nil, exit")
		return
	}
	if s.Interval <= 0 {
		logger.Warnf("AlignedScheduler: invalid interval=%s, exit", s.Interval)
		return
	}
	if s.Offset < 0 {
		logger.Warnf("AlignedScheduler: negative offset=%s, clamp to 0", s.Offset)
		s.Offset = 0
	}
	if s.ctx == nil {
		s.ctx = context.Background()
	}
	if s.nowFn == nil {
		s.nowFn = time.Now
	}

	startAt := s.nowFn().UTC()
	logger.Infof("AlignedScheduler: started interval=%s offset=%s run_immediately=%v at=%s",
		s.Interval, s.Offset, s.RunImmediately, startAt.Format(time.RFC3339))

	if s.RunImmediately {
		_, wakeAt, _, _ := s.nextTimes(startAt)
		s.runOnce(task, wakeAt)
	}

	for {
		now := s.nowFn().UTC()
		nextClose, wakeAt, untilClose, wait := s.nextTimes(now)

		logger.Debugf("AlignedScheduler: bar closes in %s (close=%s), next run at %s (in %s)",
			untilClose.Truncate(time.Second),
			nextClose.Format(time.RFC3339),
			wakeAt.Format(time.RFC3339),
			wait.Truncate(time.Second),
		)

		if wait <= 0 {
			s.runOnce(task, wakeAt.Add(s.Interval))
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-s.ctx.Done():
			timer.Stop()
			logger.Infof("AlignedScheduler: ctx done, exit")
			return
		case <-timer.C:
		}
		s.runOnce(task, wakeAt.Add(s.Interval))
	}
}

// runOnce executes the task with a soft deadline at the next slot.
func (s *AlignedScheduler) runOnce(task func(ctx context.Context), deadline time.Time) {
	runCtx, cancel := context.WithDeadline(s.ctx, deadline)
	defer cancel()
	started := s.nowFn()
	task(runCtx)
	if elapsed := s.nowFn().Sub(started); elapsed > s.Interval {
		logger.Warnf("AlignedScheduler: cycle overran its slot (%s > %s), abandoned at deadline",
			elapsed.Truncate(time.Millisecond), s.Interval)
	}
}

func (s *AlignedScheduler) nextTimes(now time.Time) (nextClose time.Time, wakeAt time.Time, untilClose time.Duration, wait time.Duration) {
	now = now.UTC()
	nextClose = now.Truncate(s.Interval).Add(s.Interval)
	wakeAt = nextClose.Add(s.Offset)
	untilClose = nextClose.Sub(now)
	wait = wakeAt.Sub(now)
	return nextClose, wakeAt, untilClose, wait
}
