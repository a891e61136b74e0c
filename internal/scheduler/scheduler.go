// Package scheduler runs the trading cycle on a wall-clock aligned
// interval. An external cron can be used instead; this built-in one just
// removes the dependency for single-host deployments.
package scheduler

import (
	"context"
	"time"

	"hansu/internal/logger"
)

// AlignedScheduler fires task at every interval boundary plus offset.
// Alignment is to UTC wall time, so restarts do not drift the schedule.
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

// Start blocks until the context ends, invoking task at each aligned
// tick. The task runs on the scheduler goroutine; overlap protection is
// the task's concern.
func (s *AlignedScheduler) Start(task func()) {
	if s == nil || task == nil {
		return
	}
	if s.Interval <= 0 {
		logger.Warnf("调度器 interval=%s 非法，退出", s.Interval)
		return
	}
	if s.Offset < 0 {
		s.Offset = 0
	}
	if s.nowFn == nil {
		s.nowFn = time.Now
	}

	startAt := s.nowFn().UTC()
	logger.Infof("调度器启动 interval=%s offset=%s run_immediately=%v",
		s.Interval, s.Offset, s.RunImmediately)

	if s.RunImmediately {
		task()
	}

	for {
		now := s.nowFn().UTC()
		wakeAt, wait := s.nextTick(now)
		logger.Infof("调度器：下一周期 %s (in %s) | uptime=%s",
			wakeAt.Format(time.RFC3339),
			wait.Truncate(time.Second),
			now.Sub(startAt).Truncate(time.Second))

		if wait <= 0 {
			task()
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-s.ctx.Done():
			timer.Stop()
			logger.Infof("调度器收到退出信号")
			return
		case <-timer.C:
		}
		task()
	}
}

func (s *AlignedScheduler) nextTick(now time.Time) (wakeAt time.Time, wait time.Duration) {
	now = now.UTC()
	boundary := now.Truncate(s.Interval).Add(s.Interval)
	wakeAt = boundary.Add(s.Offset)
	return wakeAt, wakeAt.Sub(now)
}
