package attemptmanager

import (
	"context"
	"sync"
	"time"
)

// RemainingSeconds derives the attempt's remaining time from absolute
// timestamps: max(0, duration - floor(now - startedAt)). It is a pure function
// of (now, startedAt, duration) and must be recomputed from started_at on every
// load, never carried over from an in-memory countdown; a reload therefore
// cannot extend the time limit.
func RemainingSeconds(startedAt time.Time, durationMinutes int, now time.Time) int {
	elapsed := int(now.Sub(startedAt) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := durationMinutes*60 - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// TimeSpentSeconds converts remaining time at submission into wall-clock time
// spent, clamped to [0, duration].
func TimeSpentSeconds(durationMinutes, remainingAtSubmission int) int {
	spent := durationMinutes*60 - remainingAtSubmission
	if spent < 0 {
		return 0
	}
	if max := durationMinutes * 60; spent > max {
		return max
	}
	return spent
}

// Countdown polls the remaining time once per tick interval and fires an
// expiry callback exactly once when it reaches zero. The expiry guard is a
// sync.Once: overlapping tickers (e.g. a resume racing the original session
// goroutine) cannot double-fire.
type Countdown struct {
	startedAt       time.Time
	durationMinutes int
	interval        time.Duration
	now             func() time.Time

	expireOnce sync.Once
}

// NewCountdown creates a countdown for one attempt
func NewCountdown(startedAt time.Time, durationMinutes int, interval time.Duration, now func() time.Time) *Countdown {
	if now == nil {
		now = time.Now
	}
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Countdown{
		startedAt:       startedAt,
		durationMinutes: durationMinutes,
		interval:        interval,
		now:             now,
	}
}

// Remaining returns the current remaining seconds
func (c *Countdown) Remaining() int {
	return RemainingSeconds(c.startedAt, c.durationMinutes, c.now())
}

// Expire fires onExpire if it has not fired yet
func (c *Countdown) Expire(onExpire func()) {
	c.expireOnce.Do(onExpire)
}

// Run ticks until expiry or context cancellation. onTick receives the freshly
// derived remaining seconds; onExpire runs at most once across all callers.
func (c *Countdown) Run(ctx context.Context, onTick func(remaining int), onExpire func()) {
	if remaining := c.Remaining(); remaining <= 0 {
		c.Expire(onExpire)
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			remaining := c.Remaining()
			if onTick != nil {
				onTick(remaining)
			}
			if remaining <= 0 {
				c.Expire(onExpire)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
